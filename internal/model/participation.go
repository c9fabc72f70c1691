package model

import (
	"time"

	"gorm.io/gorm"
)

// ParticipationHistory 参与记录表 — 对应 participation_histories
// 每个（活动, 志愿者）至多一条记录
type ParticipationHistory struct {
	HistoryID         string              `gorm:"type:uuid;primaryKey"                                    json:"history_id"`
	EventID           string              `gorm:"type:uuid;not null;uniqueIndex:uk_history_pair"          json:"event_id"`
	VolunteerID       string              `gorm:"type:uuid;not null;uniqueIndex:uk_history_pair;index"    json:"volunteer_id"`
	Status            ParticipationStatus `gorm:"type:varchar(20);not null;default:'registered'"          json:"status"`
	Attendance        AttendanceStatus    `gorm:"type:varchar(20);not null;default:'pending'"             json:"attendance"`
	ParticipationDate time.Time           `gorm:"not null"                                                json:"participation_date"`
	CompletionDate    *time.Time          `json:"completion_date,omitempty"`
	HoursWorked       float64             `gorm:"type:numeric(6,2);not null;default:0"                    json:"hours_worked"`
	PerformanceRating *int                `json:"performance_rating,omitempty"` // 1..5
	Feedback          string              `gorm:"type:text"                                               json:"feedback"`
	AdminNotes        string              `gorm:"type:text"                                               json:"admin_notes"`
	Version           int                 `gorm:"not null;default:1"                                      json:"version"`
	BaseModel

	// 关联
	Event *Event `gorm:"foreignKey:EventID;references:EventID" json:"event,omitempty"`
}

// TableName 指定表名
func (ParticipationHistory) TableName() string { return "participation_histories" }

func (h *ParticipationHistory) BeforeCreate(*gorm.DB) error {
	ensureID(&h.HistoryID)
	ensureVersion(&h.Version)
	return nil
}

// IsCheckedIn 已签到且未签退
func (h *ParticipationHistory) IsCheckedIn() bool {
	return h.Attendance.IsAttended() && h.Status != ParticipationCompleted
}
