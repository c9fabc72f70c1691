package model

import (
	"time"

	"gorm.io/gorm"
)

// Event 活动表 — 对应 events
type Event struct {
	EventID           string      `gorm:"type:uuid;primaryKey"                        json:"event_id"`
	Title             string      `gorm:"type:varchar(200);not null"                  json:"title"`
	Description       string      `gorm:"type:text"                                   json:"description"`
	Latitude          *float64    `json:"latitude,omitempty"`
	Longitude         *float64    `json:"longitude,omitempty"`
	Address           string      `gorm:"type:varchar(300)"                           json:"address"`
	StartTime         time.Time   `gorm:"not null;index"                              json:"start_time"`
	EndTime           time.Time   `gorm:"not null"                                    json:"end_time"`
	MaxVolunteers     int         `gorm:"not null"                                    json:"max_volunteers"`
	CurrentVolunteers int         `gorm:"not null;default:0"                          json:"current_volunteers"` // 冗余派生：confirmed 派遣数
	Urgency           Urgency     `gorm:"type:varchar(10);not null;default:'normal'"  json:"urgency"`
	Status            EventStatus `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	VersionedModel

	// 关联
	RequiredSkills []EventRequiredSkill `gorm:"foreignKey:EventID;references:EventID" json:"required_skills,omitempty"`
}

// TableName 指定表名
func (Event) TableName() string { return "events" }

func (e *Event) BeforeCreate(*gorm.DB) error {
	ensureID(&e.EventID)
	ensureVersion(&e.Version)
	return nil
}

// HasLocation 经纬度均已登记
func (e *Event) HasLocation() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// IsFull confirmed 人数已达上限
func (e *Event) IsFull() bool {
	return e.CurrentVolunteers >= e.MaxVolunteers
}

// EventRequiredSkill 活动技能要求表 — 对应 event_required_skills
type EventRequiredSkill struct {
	EventID        string      `gorm:"type:uuid;primaryKey"      json:"event_id"`
	SkillID        string      `gorm:"type:uuid;primaryKey"      json:"skill_id"`
	MinProficiency Proficiency `gorm:"type:varchar(20);not null" json:"min_proficiency"`
	IsRequired     bool        `gorm:"not null"                  json:"is_required"`
	BaseModel

	Skill *Skill `gorm:"foreignKey:SkillID;references:SkillID" json:"skill,omitempty"`
}

// TableName 指定表名
func (EventRequiredSkill) TableName() string { return "event_required_skills" }
