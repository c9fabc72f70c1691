package dto

// ── 派遣模块 DTO ──

// CreateAssignmentRequest 派遣志愿者到活动，status 缺省为 pending
type CreateAssignmentRequest struct {
	VolunteerID string `json:"volunteer_id" binding:"required,uuid"`
	Status      string `json:"status"`
}

// UpdateAssignmentStatusRequest 派遣状态变更（confirm / decline / cancel / complete）
type UpdateAssignmentStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AssignmentResponse 派遣响应
type AssignmentResponse struct {
	ID            string  `json:"id"`
	EventID       string  `json:"event_id"`
	VolunteerID   string  `json:"volunteer_id"`
	VolunteerName string  `json:"volunteer_name,omitempty"`
	Status        string  `json:"status"`
	MatchScore    *int    `json:"match_score,omitempty"`
	AssignedBy    *string `json:"assigned_by,omitempty"`
	ConfirmedAt   *string `json:"confirmed_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
}
