package dto

// ── 志愿者模块 DTO ──

// CreateVolunteerRequest 创建志愿者请求
type CreateVolunteerRequest struct {
	Name      string   `json:"name"      binding:"required,min=1,max=100"`
	Email     string   `json:"email"     binding:"required,email,max=255"`
	Phone     string   `json:"phone"     binding:"omitempty,max=30"`
	Latitude  *float64 `json:"latitude"  binding:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
}

// VolunteerSkillInput 志愿者技能项
type VolunteerSkillInput struct {
	SkillID     string `json:"skill_id"    binding:"required,uuid"`
	Proficiency string `json:"proficiency" binding:"required"`
}

// UpdateVolunteerSkillsRequest 全量替换志愿者技能
type UpdateVolunteerSkillsRequest struct {
	Skills []VolunteerSkillInput `json:"skills" binding:"omitempty,max=50,dive"`
}

// AvailabilitySlotInput 可用时间段；day_of_week 与 specific_date 二选一
type AvailabilitySlotInput struct {
	DayOfWeek    *int    `json:"day_of_week"   binding:"omitempty,min=1,max=7"`
	SpecificDate *string `json:"specific_date" binding:"omitempty,datetime=2006-01-02"`
	StartTime    string  `json:"start_time"    binding:"required"`
	EndTime      string  `json:"end_time"      binding:"required"`
}

// UpdateAvailabilityRequest 全量替换手工录入的可用时间
type UpdateAvailabilityRequest struct {
	Slots []AvailabilitySlotInput `json:"slots" binding:"omitempty,max=200,dive"`
}

// ImportAvailabilityRequest 通过 URL 导入 ICS，支持 http(s) 与 webcal
type ImportAvailabilityRequest struct {
	URL string `json:"url" binding:"required,max=2048"`
}

// ── 响应 ──

// VolunteerResponse 志愿者详情
type VolunteerResponse struct {
	ID               string                     `json:"id"`
	Name             string                     `json:"name"`
	Email            string                     `json:"email"`
	Phone            string                     `json:"phone,omitempty"`
	Latitude         *float64                   `json:"latitude,omitempty"`
	Longitude        *float64                   `json:"longitude,omitempty"`
	ReliabilityScore *int                       `json:"reliability_score,omitempty"`
	IsActive         bool                       `json:"is_active"`
	Skills           []VolunteerSkillResponse   `json:"skills"`
	Availability     []AvailabilitySlotResponse `json:"availability"`
	CreatedAt        string                     `json:"created_at"`
}

// VolunteerSkillResponse 志愿者技能
type VolunteerSkillResponse struct {
	SkillID     string `json:"skill_id"`
	Name        string `json:"name,omitempty"`
	Proficiency string `json:"proficiency"`
}

// AvailabilitySlotResponse 可用时间段
type AvailabilitySlotResponse struct {
	ID           string  `json:"id"`
	DayOfWeek    *int    `json:"day_of_week,omitempty"`
	SpecificDate *string `json:"specific_date,omitempty"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	Source       string  `json:"source"`
}

// ImportAvailabilityResponse ICS 导入结果
type ImportAvailabilityResponse struct {
	Imported int                        `json:"imported"`
	Skipped  int                        `json:"skipped"`
	Slots    []AvailabilitySlotResponse `json:"slots"`
}

// UpdateVolunteerActiveRequest 启用 / 停用志愿者
type UpdateVolunteerActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
	Version  int   `json:"version"   binding:"required,min=1"`
}
