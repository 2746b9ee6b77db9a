package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"access-approval-api/config"
	"access-approval-api/models"
	"access-approval-api/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SubmitInput is a new access request filed by a staff member.
type SubmitInput struct {
	StaffName    string
	PFNumber     string
	DepartmentID int
	Purpose      string
	Meta         AuditMeta
}

// AccessRequestService covers submission and read access to requests.
type AccessRequestService struct {
	db      *gorm.DB
	emitter Emitter
	now     func() time.Time
}

func NewAccessRequestService(db *gorm.DB, emitter Emitter) *AccessRequestService {
	if db == nil {
		db = config.DB
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &AccessRequestService{db: db, emitter: emitter, now: time.Now}
}

// Submit files a request in status submitted and notifies the department head.
// Name and PF number default to the actor's own.
func (s *AccessRequestService) Submit(ctx context.Context, actor *Actor, in SubmitInput) (*models.AccessRequest, error) {
	if actor == nil {
		return nil, AuthorizationError("authentication required")
	}

	staffName := utils.SanitizeInput(in.StaffName)
	if staffName == "" {
		staffName = actor.Name
	}
	pfNumber := utils.SanitizeInput(in.PFNumber)
	if pfNumber == "" {
		pfNumber = actor.PFNumber
	}
	departmentID := in.DepartmentID
	if departmentID == 0 && actor.PrimaryDepartmentID != nil {
		departmentID = *actor.PrimaryDepartmentID
	}

	switch {
	case staffName == "":
		return nil, ValidationError("staff name is required")
	case !utils.ValidatePFNumber(pfNumber):
		return nil, ValidationError("a valid PF number is required")
	case departmentID <= 0:
		return nil, ValidationError("department_id is required")
	}

	now := s.now()
	req := models.AccessRequest{
		RequestNumber: "AR-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10]),
		RequesterID:   actor.UserID,
		StaffName:     staffName,
		PFNumber:      pfNumber,
		DepartmentID:  departmentID,
		Status:        string(StatusSubmitted),
		Purpose:       utils.SanitizeInput(in.Purpose),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dept models.Department
		if err := tx.Select("department_id").First(&dept, departmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ValidationError("department %d does not exist", departmentID)
			}
			return err
		}

		if err := tx.Create(&req).Error; err != nil {
			return err
		}

		history := models.AccessRequestStatusHistory{
			AccessRequestID: req.AccessRequestID,
			NewStatus:       req.Status,
			ChangedBy:       actor.UserID,
			Notes:           ptr("submitted"),
			CreatedAt:       now,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		return writeAudit(tx, auditEntry{
			userID:       actor.UserID,
			action:       "create",
			entityType:   "access_request",
			entityID:     int64(req.AccessRequestID),
			entityNumber: req.RequestNumber,
			newValues:    map[string]interface{}{"status": req.Status, "department_id": departmentID},
			description:  "Access request submitted",
			at:           now,
		}, in.Meta)
	})
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, InternalError(err, "Failed to submit access request")
	}

	config.Log(ctx).Info("access request submitted",
		zap.Int("access_request_id", req.AccessRequestID),
		zap.Int("department_id", req.DepartmentID),
		zap.Int("actor_id", actor.UserID),
	)
	s.emitter.EmitRequestSubmitted(ctx, actor, req)
	return &req, nil
}

// Get loads one request with its department. Only the requester, an admin or
// an approver scoped to the department may read it.
func (s *AccessRequestService) Get(ctx context.Context, actor *Actor, id int) (*models.AccessRequest, error) {
	req, err := loadReadableRequest(ctx, s.db, actor, id)
	if err != nil {
		return nil, err
	}
	var dept models.Department
	err = s.db.WithContext(ctx).First(&dept, req.DepartmentID).Error
	switch {
	case err == nil:
		req.Department = &dept
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, InternalError(err, "Failed to load department")
	}
	return req, nil
}

// History lists the status changes of a request, oldest first.
func (s *AccessRequestService) History(ctx context.Context, actor *Actor, id int) ([]models.AccessRequestStatusHistory, error) {
	if _, err := loadReadableRequest(ctx, s.db, actor, id); err != nil {
		return nil, err
	}
	var rows []models.AccessRequestStatusHistory
	if err := s.db.WithContext(ctx).
		Where("access_request_id = ?", id).
		Order("created_at ASC, history_id ASC").
		Find(&rows).Error; err != nil {
		return nil, InternalError(err, fmt.Sprintf("Failed to load history of request %d", id))
	}
	return rows, nil
}

// AllowedTransitions lists what actor may do with req right now. Scope is not
// checked here; Apply does that.
func AllowedTransitions(actor *Actor, req *models.AccessRequest) []Status {
	if actor == nil || req == nil {
		return nil
	}
	current, ok := ParseStatus(req.Status)
	if !ok {
		return nil
	}
	return CanAct(actor.Roles, current)
}
