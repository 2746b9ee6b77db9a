package models

import (
	"strings"
	"time"
)

type User struct {
	UserID              int        `gorm:"primaryKey;column:user_id" json:"user_id"`
	Name                string     `gorm:"column:name" json:"name"`
	PFNumber            string     `gorm:"column:pf_number;index" json:"pf_number"`
	Email               *string    `gorm:"column:email" json:"email,omitempty"`
	Phone               *string    `gorm:"column:phone" json:"phone,omitempty"`
	PrimaryDepartmentID *int       `gorm:"column:primary_department_id" json:"primary_department_id,omitempty"`
	CreateAt            *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt            *time.Time `gorm:"column:update_at" json:"update_at"`
	DeleteAt            *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	Roles []Role `gorm:"many2many:user_roles;foreignKey:UserID;joinForeignKey:UserID;references:RoleID;joinReferences:RoleID" json:"roles,omitempty"`
}

type Role struct {
	RoleID   int        `gorm:"primaryKey;column:role_id" json:"role_id"`
	Role     string     `gorm:"column:role;uniqueIndex;size:64" json:"role"`
	CreateAt *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt *time.Time `gorm:"column:update_at" json:"update_at"`
}

// UserRole is the join row between users and roles.
type UserRole struct {
	UserID int `gorm:"primaryKey;column:user_id" json:"user_id"`
	RoleID int `gorm:"primaryKey;column:role_id" json:"role_id"`
}

// TableName overrides
func (User) TableName() string {
	return "users"
}

func (Role) TableName() string {
	return "roles"
}

func (UserRole) TableName() string {
	return "user_roles"
}

// RoleNames returns the lower-cased role names attached to the user.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if name := strings.ToLower(strings.TrimSpace(r.Role)); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// HasContact reports whether a notification can reach the user.
func (u *User) HasContact() bool {
	return (u.Email != nil && strings.TrimSpace(*u.Email) != "") ||
		(u.Phone != nil && strings.TrimSpace(*u.Phone) != "")
}
