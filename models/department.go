package models

import "time"

// Division groups departments under one divisional director.
type Division struct {
	DivisionID     int        `gorm:"primaryKey;column:division_id" json:"division_id"`
	Name           string     `gorm:"column:name" json:"name"`
	DirectorUserID *int       `gorm:"column:director_user_id;index" json:"director_user_id,omitempty"`
	CreateAt       *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt       *time.Time `gorm:"column:update_at" json:"update_at"`
}

// Department is an organisational unit with at most one head of department.
type Department struct {
	DepartmentID int        `gorm:"primaryKey;column:department_id" json:"department_id"`
	Name         string     `gorm:"column:name" json:"name"`
	HODUserID    *int       `gorm:"column:hod_user_id;index" json:"hod_user_id,omitempty"`
	DivisionID   *int       `gorm:"column:division_id;index" json:"division_id,omitempty"`
	CreateAt     *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt     *time.Time `gorm:"column:update_at" json:"update_at"`

	Division *Division `gorm:"foreignKey:DivisionID;references:DivisionID" json:"division,omitempty"`
}

func (Division) TableName() string {
	return "divisions"
}

func (Department) TableName() string {
	return "departments"
}
