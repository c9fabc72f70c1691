package model

import (
	"time"

	"gorm.io/gorm"
)

// Volunteer 志愿者表 — 对应 volunteers
type Volunteer struct {
	VolunteerID      string   `gorm:"type:uuid;primaryKey"       json:"volunteer_id"`
	Name             string   `gorm:"type:varchar(100);not null" json:"name"`
	Email            string   `gorm:"type:varchar(255);not null" json:"email"`
	Phone            string   `gorm:"type:varchar(30)"           json:"phone"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	ReliabilityScore *int     `json:"reliability_score,omitempty"` // 派生缓存，nil 表示暂无参与记录
	IsActive         bool     `gorm:"not null"                   json:"is_active"`
	VersionedModel

	// 关联
	Skills         []VolunteerSkill        `gorm:"foreignKey:VolunteerID;references:VolunteerID" json:"skills,omitempty"`
	Availabilities []VolunteerAvailability `gorm:"foreignKey:VolunteerID;references:VolunteerID" json:"availabilities,omitempty"`
}

// TableName 指定表名
func (Volunteer) TableName() string { return "volunteers" }

func (v *Volunteer) BeforeCreate(*gorm.DB) error {
	ensureID(&v.VolunteerID)
	ensureVersion(&v.Version)
	return nil
}

// HasLocation 经纬度均已登记
func (v *Volunteer) HasLocation() bool {
	return v.Latitude != nil && v.Longitude != nil
}

// VolunteerSkill 志愿者技能表 — 对应 volunteer_skills
type VolunteerSkill struct {
	VolunteerID string      `gorm:"type:uuid;primaryKey"       json:"volunteer_id"`
	SkillID     string      `gorm:"type:uuid;primaryKey"       json:"skill_id"`
	Proficiency Proficiency `gorm:"type:varchar(20);not null"  json:"proficiency"`
	BaseModel

	Skill *Skill `gorm:"foreignKey:SkillID;references:SkillID" json:"skill,omitempty"`
}

// TableName 指定表名
func (VolunteerSkill) TableName() string { return "volunteer_skills" }

// 可用时间来源
const (
	AvailabilitySourceManual = "manual"
	AvailabilitySourceICS    = "ics"
)

// VolunteerAvailability 志愿者可用时间表 — 对应 volunteer_availabilities
// DayOfWeek 与 SpecificDate 二选一：前者为每周重复（1=周一..7=周日），后者为单日
type VolunteerAvailability struct {
	AvailabilityID string     `gorm:"type:uuid;primaryKey"                      json:"availability_id"`
	VolunteerID    string     `gorm:"type:uuid;not null;index"                  json:"volunteer_id"`
	DayOfWeek      *int       `json:"day_of_week,omitempty"`
	SpecificDate   *time.Time `gorm:"type:date"                                 json:"specific_date,omitempty"`
	StartTime      string     `gorm:"type:varchar(5);not null"                  json:"start_time"` // HH:MM
	EndTime        string     `gorm:"type:varchar(5);not null"                  json:"end_time"`   // HH:MM，24:00 表示当日结束
	Source         string     `gorm:"type:varchar(10);not null;default:'manual'" json:"source"`
	BaseModel
}

// TableName 指定表名
func (VolunteerAvailability) TableName() string { return "volunteer_availabilities" }

func (a *VolunteerAvailability) BeforeCreate(*gorm.DB) error {
	ensureID(&a.AvailabilityID)
	return nil
}
