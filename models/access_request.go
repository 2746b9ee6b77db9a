package models

import (
	"strings"
	"time"
)

// AccessRequest is one staff request moving through the approval chain.
// Each stage keeps a comment/timestamp/actor triple that is written once.
type AccessRequest struct {
	AccessRequestID int    `gorm:"primaryKey;column:access_request_id" json:"access_request_id"`
	RequestNumber   string `gorm:"column:request_number;size:32;index" json:"request_number"`
	RequesterID     int    `gorm:"column:requester_id;index" json:"requester_id"`
	StaffName       string `gorm:"column:staff_name" json:"staff_name"`
	PFNumber        string `gorm:"column:pf_number;size:64" json:"pf_number"`
	DepartmentID    int    `gorm:"column:department_id;index" json:"department_id"`
	Status          string `gorm:"column:status;size:32;index" json:"status"`
	Purpose         string `gorm:"column:purpose;type:text" json:"purpose,omitempty"`

	HODComment    *string    `gorm:"column:hod_comment;type:text" json:"hod_comment"`
	HODReviewedAt *time.Time `gorm:"column:hod_reviewed_at" json:"hod_reviewed_at"`
	HODReviewedBy *int       `gorm:"column:hod_reviewed_by" json:"hod_reviewed_by,omitempty"`

	DivisionalComment    *string    `gorm:"column:divisional_comment;type:text" json:"divisional_comment"`
	DivisionalApprovedAt *time.Time `gorm:"column:divisional_approved_at" json:"divisional_approved_at"`
	DivisionalReviewedBy *int       `gorm:"column:divisional_reviewed_by" json:"divisional_reviewed_by,omitempty"`

	DictComment    *string    `gorm:"column:dict_comment;type:text" json:"dict_comment"`
	DictApprovedAt *time.Time `gorm:"column:dict_approved_at" json:"dict_approved_at"`
	DictReviewedBy *int       `gorm:"column:dict_reviewed_by" json:"dict_reviewed_by,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`

	Department *Department `gorm:"foreignKey:DepartmentID;references:DepartmentID" json:"department,omitempty"`
}

func (AccessRequest) TableName() string {
	return "access_requests"
}

// HasComment reports whether a stage comment column holds non-blank text.
func HasComment(comment *string) bool {
	return comment != nil && strings.TrimSpace(*comment) != ""
}
