package services

import (
	"encoding/json"
	"strings"
	"time"

	"access-approval-api/models"

	"gorm.io/gorm"
)

// AuditMeta carries request-level details recorded with every audit row.
type AuditMeta struct {
	IPAddress string
	UserAgent string
}

type auditEntry struct {
	userID       int
	action       string
	entityType   string
	entityID     int64
	entityNumber string
	oldValues    map[string]interface{}
	newValues    map[string]interface{}
	description  string
	at           time.Time
}

func writeAudit(tx *gorm.DB, entry auditEntry, meta AuditMeta) error {
	entityID := entry.entityID
	audit := models.AuditLog{
		UserID:      entry.userID,
		Action:      entry.action,
		EntityType:  entry.entityType,
		EntityID:    &entityID,
		OldValues:   marshalValues(entry.oldValues),
		NewValues:   marshalValues(entry.newValues),
		Description: ptr(entry.description),
		IPAddress:   meta.IPAddress,
		UserAgent:   ptr(strings.TrimSpace(meta.UserAgent)),
		CreatedAt:   entry.at,
	}
	if entry.entityNumber != "" {
		number := entry.entityNumber
		audit.EntityNumber = &number
	}
	return tx.Create(&audit).Error
}

func marshalValues(values map[string]interface{}) *string {
	if len(values) == 0 {
		return nil
	}
	serialized, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return ptr(string(serialized))
}

func ptr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
