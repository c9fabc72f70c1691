package model

import (
	"time"

	"gorm.io/gorm"
)

// Assignment 派遣表 — 对应 assignments
// 每个（活动, 志愿者）仅一行；取消/拒绝后再次派遣时复用该行
type Assignment struct {
	AssignmentID string           `gorm:"type:uuid;primaryKey"                                    json:"assignment_id"`
	EventID      string           `gorm:"type:uuid;not null;uniqueIndex:uk_assignment_pair"       json:"event_id"`
	VolunteerID  string           `gorm:"type:uuid;not null;uniqueIndex:uk_assignment_pair;index" json:"volunteer_id"`
	Status       AssignmentStatus `gorm:"type:varchar(20);not null;default:'pending'"             json:"status"`
	MatchScore   *int             `json:"match_score,omitempty"`
	AssignedBy   *string          `gorm:"type:uuid"                                               json:"assigned_by,omitempty"`
	ConfirmedAt  *time.Time       `json:"confirmed_at,omitempty"`
	BaseModel

	// 关联
	Event     *Event     `gorm:"foreignKey:EventID;references:EventID"         json:"event,omitempty"`
	Volunteer *Volunteer `gorm:"foreignKey:VolunteerID;references:VolunteerID" json:"volunteer,omitempty"`
}

// TableName 指定表名
func (Assignment) TableName() string { return "assignments" }

func (a *Assignment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.AssignmentID)
	return nil
}
