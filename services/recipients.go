package services

import (
	"context"
	"errors"
	"strings"

	"access-approval-api/config"
	"access-approval-api/models"
	"access-approval-api/utils"

	"gorm.io/gorm"
)

// RecipientResolver applies the role/department fan-out rules against the database.
type RecipientResolver struct {
	db *gorm.DB
}

func NewRecipientResolver(db *gorm.DB) *RecipientResolver {
	if db == nil {
		db = config.DB
	}
	return &RecipientResolver{db: db}
}

// ForSubmitted notifies the head of the request's department.
func (r *RecipientResolver) ForSubmitted(ctx context.Context, req models.AccessRequest) ([]Recipient, error) {
	dept, err := r.department(ctx, req.DepartmentID)
	if err != nil || dept == nil || dept.HODUserID == nil {
		return nil, err
	}
	users, err := r.usersByID(ctx, []int{*dept.HODUserID})
	if err != nil {
		return nil, err
	}
	return toRecipients(users, "head_of_department"), nil
}

// ForStatusChange notifies the next approver group; terminal statuses also
// notify the requester through the extra list.
func (r *RecipientResolver) ForStatusChange(ctx context.Context, req models.AccessRequest, _ Status, next Status) ([]Recipient, []Recipient, error) {
	var recipients []Recipient

	switch next {
	case StatusHODReviewed:
		users, err := r.divisionalDirectorsFor(ctx, req.DepartmentID)
		if err != nil {
			return nil, nil, err
		}
		recipients = toRecipients(users, RoleDivisionalDirector)
	case StatusDivisionalApproved, StatusPendingICTDirector:
		users, err := r.usersWithRole(ctx, RoleICTDirector)
		if err != nil {
			return nil, nil, err
		}
		recipients = toRecipients(users, RoleICTDirector)
	}

	var extra []Recipient
	if next.IsTerminal() && req.RequesterID > 0 {
		users, err := r.usersByID(ctx, []int{req.RequesterID})
		if err != nil {
			return nil, nil, err
		}
		extra = toRecipients(users, "requester")
	}
	return recipients, extra, nil
}

func (r *RecipientResolver) department(ctx context.Context, id int) (*models.Department, error) {
	var dept models.Department
	if err := r.db.WithContext(ctx).Preload("Division").First(&dept, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &dept, nil
}

func (r *RecipientResolver) divisionalDirectorsFor(ctx context.Context, departmentID int) ([]models.User, error) {
	dept, err := r.department(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if dept != nil && dept.Division != nil && dept.Division.DirectorUserID != nil {
		return r.usersByID(ctx, []int{*dept.Division.DirectorUserID})
	}
	return r.usersWithRole(ctx, RoleDivisionalDirector)
}

func (r *RecipientResolver) usersByID(ctx context.Context, ids []int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("user_id IN ? AND delete_at IS NULL", ids).
		Find(&users).Error
	return users, err
}

func (r *RecipientResolver) usersWithRole(ctx context.Context, role string) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN user_roles ur ON ur.user_id = users.user_id").
		Joins("JOIN roles r ON r.role_id = ur.role_id").
		Where("r.role = ? AND users.delete_at IS NULL", role).
		Find(&users).Error
	return users, err
}

// toRecipients keeps users with a contact address on file.
func toRecipients(users []models.User, reason string) []Recipient {
	out := make([]Recipient, 0, len(users))
	for i := range users {
		u := &users[i]
		if !u.HasContact() {
			continue
		}
		rec := Recipient{UserID: u.UserID, Name: u.Name, Reason: reason}
		if u.Email != nil && utils.ValidateEmail(strings.TrimSpace(*u.Email)) {
			rec.Email = strings.TrimSpace(*u.Email)
		}
		if u.Phone != nil {
			rec.Phone = strings.TrimSpace(*u.Phone)
		}
		out = append(out, rec)
	}
	return dedupeRecipients(out, 0)
}
