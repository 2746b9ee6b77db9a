package services

import (
	"context"
	"errors"
	"slices"

	"access-approval-api/models"

	"gorm.io/gorm"
)

// DepartmentScope is the set of departments an actor may see for one role.
type DepartmentScope struct {
	Unrestricted  bool  `json:"unrestricted"`
	DepartmentIDs []int `json:"department_ids"`
}

func (s DepartmentScope) Contains(departmentID int) bool {
	return s.Unrestricted || slices.Contains(s.DepartmentIDs, departmentID)
}

// Empty means the actor has no department to act on.
func (s DepartmentScope) Empty() bool {
	return !s.Unrestricted && len(s.DepartmentIDs) == 0
}

// scopeForRole resolves the department jurisdiction of actor when acting as role.
// HOD: departments it heads. Divisional director: departments of divisions it
// directs plus departments without a division. ICT director and admin: everything.
func scopeForRole(ctx context.Context, db *gorm.DB, actor *Actor, role string) (DepartmentScope, error) {
	if actor == nil {
		return DepartmentScope{}, nil
	}
	if actor.IsAdmin() {
		return DepartmentScope{Unrestricted: true}, nil
	}
	if !actor.Roles.Has(role) {
		return DepartmentScope{}, nil
	}

	ids := make([]int, 0)
	switch role {
	case RoleICTDirector:
		return DepartmentScope{Unrestricted: true}, nil
	case RoleHeadOfDepartment:
		if err := db.WithContext(ctx).Model(&models.Department{}).
			Where("hod_user_id = ?", actor.UserID).
			Order("department_id").
			Pluck("department_id", &ids).Error; err != nil {
			return DepartmentScope{}, InternalError(err, "Failed to resolve department scope")
		}
	case RoleDivisionalDirector:
		if err := db.WithContext(ctx).Table("departments AS d").
			Joins("LEFT JOIN divisions AS v ON v.division_id = d.division_id").
			Where("v.director_user_id = ? OR d.division_id IS NULL", actor.UserID).
			Order("d.department_id").
			Pluck("d.department_id", &ids).Error; err != nil {
			return DepartmentScope{}, InternalError(err, "Failed to resolve divisional scope")
		}
	}
	return DepartmentScope{DepartmentIDs: ids}, nil
}

// approverRoles are checked in order when deciding read access; the ICT
// director needs no query.
var approverRoles = []string{RoleICTDirector, RoleHeadOfDepartment, RoleDivisionalDirector}

// canReadRequest allows the requester, an admin, or an approver whose scope
// covers the request's department.
func canReadRequest(ctx context.Context, db *gorm.DB, actor *Actor, req *models.AccessRequest) (bool, error) {
	if actor == nil || req == nil {
		return false, nil
	}
	if actor.IsAdmin() || req.RequesterID == actor.UserID {
		return true, nil
	}
	for _, role := range approverRoles {
		if !actor.Roles.Has(role) {
			continue
		}
		scope, err := scopeForRole(ctx, db, actor, role)
		if err != nil {
			return false, err
		}
		if scope.Contains(req.DepartmentID) {
			return true, nil
		}
	}
	return false, nil
}

// loadReadableRequest loads a request the actor may see. Requests outside the
// actor's reach are reported as not found.
func loadReadableRequest(ctx context.Context, db *gorm.DB, actor *Actor, id int) (*models.AccessRequest, error) {
	if actor == nil {
		return nil, AuthorizationError("authentication required")
	}
	if id <= 0 {
		return nil, ValidationError("invalid access request id")
	}
	var req models.AccessRequest
	if err := db.WithContext(ctx).First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("access request %d not found", id)
		}
		return nil, InternalError(err, "Failed to load access request")
	}
	ok, err := canReadRequest(ctx, db, actor, &req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NotFoundError("access request %d not found", id)
	}
	return &req, nil
}
