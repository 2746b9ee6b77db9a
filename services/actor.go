package services

import (
	"context"
	"errors"

	"access-approval-api/config"
	"access-approval-api/models"

	"gorm.io/gorm"
)

// Actor is the authenticated user acting on requests or documents.
type Actor struct {
	UserID              int
	Name                string
	PFNumber            string
	Roles               RoleSet
	PrimaryDepartmentID *int
}

// IsAdmin reports whether the actor has unrestricted department scope.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Roles.Has(RoleAdmin)
}

// NewActor builds an actor from a user row with its roles preloaded.
func NewActor(user *models.User) *Actor {
	return &Actor{
		UserID:              user.UserID,
		Name:                user.Name,
		PFNumber:            user.PFNumber,
		Roles:               NewRoleSet(user.RoleNames()...),
		PrimaryDepartmentID: user.PrimaryDepartmentID,
	}
}

// LoadActor reads an active user and its roles.
func LoadActor(ctx context.Context, db *gorm.DB, userID int) (*Actor, error) {
	if db == nil {
		db = config.DB
	}
	var user models.User
	err := db.WithContext(ctx).
		Preload("Roles").
		Where("user_id = ? AND delete_at IS NULL", userID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("user %d not found", userID)
		}
		return nil, InternalError(err, "Failed to load user")
	}
	return NewActor(&user), nil
}
