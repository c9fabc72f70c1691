package dto

// ── 技能模块 DTO ──

// CreateSkillRequest 创建技能请求
type CreateSkillRequest struct {
	Name        string `json:"name"        binding:"required,min=1,max=100"`
	Category    string `json:"category"    binding:"omitempty,max=50"`
	Description string `json:"description" binding:"omitempty,max=1000"`
}

// SkillListRequest 技能列表筛选
type SkillListRequest struct {
	Category string `form:"category"`
}

// SkillResponse 技能响应
type SkillResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}
