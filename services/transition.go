package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"access-approval-api/config"
	"access-approval-api/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransitionInput is a status change requested by an actor.
type TransitionInput struct {
	RequestID    int
	TargetStatus string
	Comment      string
	Meta         AuditMeta
}

// TransitionResult is returned after the change has been committed.
type TransitionResult struct {
	Request   models.AccessRequest `json:"request"`
	OldStatus Status               `json:"old_status"`
	NewStatus Status               `json:"new_status"`
}

// TransitionService validates and applies role-gated status changes.
type TransitionService struct {
	db      *gorm.DB
	emitter Emitter
	now     func() time.Time
}

func NewTransitionService(db *gorm.DB, emitter Emitter) *TransitionService {
	if db == nil {
		db = config.DB
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &TransitionService{db: db, emitter: emitter, now: time.Now}
}

// Apply moves a request to in.TargetStatus. The status update, history row and
// audit row commit together; the status-change event is emitted after commit.
func (s *TransitionService) Apply(ctx context.Context, actor *Actor, in TransitionInput) (*TransitionResult, error) {
	if actor == nil {
		return nil, AuthorizationError("authentication required")
	}
	if in.RequestID <= 0 {
		return nil, ValidationError("invalid access request id")
	}
	target, ok := ParseStatus(in.TargetStatus)
	if !ok {
		return nil, ValidationError("unknown target status %q", in.TargetStatus)
	}
	comment := strings.TrimSpace(in.Comment)

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, InternalError(tx.Error, "Failed to begin transaction")
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var req models.AccessRequest
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("access_request_id = ?", in.RequestID).
		First(&req).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("access request %d not found", in.RequestID)
		}
		return nil, InternalError(err, "Failed to load access request")
	}

	current, ok := ParseStatus(req.Status)
	if !ok {
		tx.Rollback()
		return nil, InternalError(fmt.Errorf("stored status %q", req.Status), "Access request has an unknown status")
	}

	rule, err := s.authorize(ctx, tx, actor, &req, current, target)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if rule.CommentRequired && comment == "" {
		tx.Rollback()
		return nil, ValidationError("comment is required to move from %s to %s", current, target)
	}

	now := s.now()
	updates := map[string]interface{}{
		"status":     string(target),
		"updated_at": now,
	}
	if rule.Closes != StageNone {
		if stageRecorded(&req, rule.Closes) {
			tx.Rollback()
			return nil, InvalidTransitionError("%s stage has already been recorded", rule.Closes)
		}
		commentCol, atCol, byCol := stageColumns(rule.Closes)
		updates[commentCol] = comment
		updates[atCol] = now
		updates[byCol] = actor.UserID
	}

	if err := tx.Model(&models.AccessRequest{}).
		Where("access_request_id = ?", req.AccessRequestID).
		Updates(updates).Error; err != nil {
		tx.Rollback()
		return nil, InternalError(err, "Failed to update access request")
	}

	oldStatus := string(current)
	history := models.AccessRequestStatusHistory{
		AccessRequestID: req.AccessRequestID,
		OldStatus:       &oldStatus,
		NewStatus:       string(target),
		ChangedBy:       actor.UserID,
		Reason:          ptr(comment),
		Notes:           ptr(fmt.Sprintf("roles=%s;stage=%s", strings.Join(actor.Roles.Names(), ","), rule.Closes)),
		CreatedAt:       now,
	}
	if err := tx.Create(&history).Error; err != nil {
		tx.Rollback()
		return nil, InternalError(err, "Failed to log status history")
	}

	if err := writeAudit(tx, auditEntry{
		userID:       actor.UserID,
		action:       "status_change",
		entityType:   "access_request",
		entityID:     int64(req.AccessRequestID),
		entityNumber: req.RequestNumber,
		oldValues:    map[string]interface{}{"status": oldStatus},
		newValues:    map[string]interface{}{"status": string(target), "comment": comment},
		description:  fmt.Sprintf("Access request moved from %s to %s", current, target),
		at:           now,
	}, in.Meta); err != nil {
		tx.Rollback()
		return nil, InternalError(err, "Failed to write audit log")
	}

	if err := tx.Commit().Error; err != nil {
		return nil, InternalError(err, "Failed to finalize status change")
	}

	applyStageUpdate(&req, rule.Closes, comment, now, actor.UserID)
	req.Status = string(target)
	req.UpdatedAt = now

	transitionsTotal.WithLabelValues(string(current), string(target)).Inc()
	config.Log(ctx).Info("access request status changed",
		zap.Int("access_request_id", req.AccessRequestID),
		zap.String("from", string(current)),
		zap.String("to", string(target)),
		zap.Int("actor_id", actor.UserID),
	)

	s.emitter.EmitStatusChanged(ctx, actor, req, current, target, comment)

	return &TransitionResult{Request: req, OldStatus: current, NewStatus: target}, nil
}

// authorize checks, in order: terminal state, role for the current status,
// legality of the target, role for the specific rule, department scope.
func (s *TransitionService) authorize(ctx context.Context, tx *gorm.DB, actor *Actor, req *models.AccessRequest, current, target Status) (TransitionRule, error) {
	if current.IsTerminal() {
		return TransitionRule{}, InvalidTransitionError("access request is already %s", current)
	}
	if len(CanAct(actor.Roles, current)) == 0 {
		return TransitionRule{}, AuthorizationError("your roles do not allow acting on %s requests", current)
	}
	rule, ok := FindRule(current, target)
	if !ok {
		return TransitionRule{}, InvalidTransitionError("cannot move from %s to %s", current, target)
	}
	if !rule.allows(actor.Roles) {
		return TransitionRule{}, AuthorizationError("your roles do not allow moving from %s to %s", current, target)
	}

	for _, role := range rule.Roles {
		if !actor.Roles.Has(role) {
			continue
		}
		scope, err := scopeForRole(ctx, tx, actor, role)
		if err != nil {
			return TransitionRule{}, err
		}
		if scope.Contains(req.DepartmentID) {
			return rule, nil
		}
	}
	return TransitionRule{}, AuthorizationError("department %d is outside your scope", req.DepartmentID)
}

func stageColumns(stage Stage) (comment, at, by string) {
	switch stage {
	case StageHOD:
		return "hod_comment", "hod_reviewed_at", "hod_reviewed_by"
	case StageDivisional:
		return "divisional_comment", "divisional_approved_at", "divisional_reviewed_by"
	case StageICT:
		return "dict_comment", "dict_approved_at", "dict_reviewed_by"
	}
	return "", "", ""
}

func stageRecorded(req *models.AccessRequest, stage Stage) bool {
	switch stage {
	case StageHOD:
		return models.HasComment(req.HODComment) || req.HODReviewedAt != nil
	case StageDivisional:
		return models.HasComment(req.DivisionalComment) || req.DivisionalApprovedAt != nil
	case StageICT:
		return models.HasComment(req.DictComment) || req.DictApprovedAt != nil
	}
	return false
}

func applyStageUpdate(req *models.AccessRequest, stage Stage, comment string, at time.Time, by int) {
	c, t, u := comment, at, by
	switch stage {
	case StageHOD:
		req.HODComment, req.HODReviewedAt, req.HODReviewedBy = &c, &t, &u
	case StageDivisional:
		req.DivisionalComment, req.DivisionalApprovedAt, req.DivisionalReviewedBy = &c, &t, &u
	case StageICT:
		req.DictComment, req.DictApprovedAt, req.DictReviewedBy = &c, &t, &u
	}
}
