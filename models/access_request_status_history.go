package models

import "time"

// AccessRequestStatusHistory tracks historical status changes for access requests.
type AccessRequestStatusHistory struct {
	HistoryID       int       `gorm:"primaryKey;column:history_id" json:"history_id"`
	AccessRequestID int       `gorm:"column:access_request_id;index" json:"access_request_id"`
	OldStatus       *string   `gorm:"column:old_status;size:32" json:"old_status"`
	NewStatus       string    `gorm:"column:new_status;size:32" json:"new_status"`
	ChangedBy       int       `gorm:"column:changed_by" json:"changed_by"`
	Reason          *string   `gorm:"column:reason;type:text" json:"reason"`
	Notes           *string   `gorm:"column:notes" json:"notes"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName specifies the table for AccessRequestStatusHistory.
func (AccessRequestStatusHistory) TableName() string {
	return "access_request_status_history"
}
