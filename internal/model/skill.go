package model

import "gorm.io/gorm"

// Skill 技能目录表 — 对应 skills
type Skill struct {
	SkillID     string `gorm:"type:uuid;primaryKey"                   json:"skill_id"`
	Name        string `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Category    string `gorm:"type:varchar(50)"                       json:"category"`
	Description string `gorm:"type:text"                              json:"description"`
	BaseModel
}

// TableName 指定表名
func (Skill) TableName() string { return "skills" }

func (s *Skill) BeforeCreate(*gorm.DB) error {
	ensureID(&s.SkillID)
	return nil
}
