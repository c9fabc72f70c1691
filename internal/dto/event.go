package dto

import "time"

// ── 活动模块 DTO ──

// RequiredSkillInput 活动技能要求项，is_required 缺省为 true
type RequiredSkillInput struct {
	SkillID        string `json:"skill_id"        binding:"required,uuid"`
	MinProficiency string `json:"min_proficiency" binding:"required"`
	IsRequired     *bool  `json:"is_required"`
}

// CreateEventRequest 创建活动请求
type CreateEventRequest struct {
	Title          string               `json:"title"           binding:"required,min=1,max=200"`
	Description    string               `json:"description"     binding:"omitempty,max=5000"`
	Latitude       *float64             `json:"latitude"        binding:"omitempty,min=-90,max=90"`
	Longitude      *float64             `json:"longitude"       binding:"omitempty,min=-180,max=180"`
	Address        string               `json:"address"         binding:"omitempty,max=300"`
	StartTime      time.Time            `json:"start_time"      binding:"required"`
	EndTime        time.Time            `json:"end_time"        binding:"required"`
	MaxVolunteers  int                  `json:"max_volunteers"  binding:"required,min=1,max=10000"`
	Urgency        string               `json:"urgency"`
	RequiredSkills []RequiredSkillInput `json:"required_skills" binding:"omitempty,max=50,dive"`
}

// UpdateEventStatusRequest 活动状态变更（publish / start / cancel）
type UpdateEventStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// EventListRequest 活动列表查询参数
type EventListRequest struct {
	Status string `form:"status"`
	PaginationRequest
}

// ── 响应 ──

// EventResponse 活动详情
type EventResponse struct {
	ID                string                  `json:"id"`
	Title             string                  `json:"title"`
	Description       string                  `json:"description,omitempty"`
	Latitude          *float64                `json:"latitude,omitempty"`
	Longitude         *float64                `json:"longitude,omitempty"`
	Address           string                  `json:"address,omitempty"`
	StartTime         string                  `json:"start_time"`
	EndTime           string                  `json:"end_time"`
	MaxVolunteers     int                     `json:"max_volunteers"`
	CurrentVolunteers int                     `json:"current_volunteers"`
	Urgency           string                  `json:"urgency"`
	Status            string                  `json:"status"`
	Version           int                     `json:"version"`
	RequiredSkills    []RequiredSkillResponse `json:"required_skills"`
	CreatedAt         string                  `json:"created_at"`
}

// RequiredSkillResponse 活动技能要求
type RequiredSkillResponse struct {
	SkillID        string `json:"skill_id"`
	Name           string `json:"name,omitempty"`
	MinProficiency string `json:"min_proficiency"`
	IsRequired     bool   `json:"is_required"`
}
