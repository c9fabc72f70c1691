package dto

// ── 参与历史模块 DTO ──

// TrendsRequest 月度趋势查询参数，months 缺省 12
type TrendsRequest struct {
	Months int `form:"months" binding:"omitempty,min=1,max=36"`
}

// ReliabilityResponse 信誉分及其构成
type ReliabilityResponse struct {
	VolunteerID      string  `json:"volunteer_id"`
	ReliabilityScore int     `json:"reliability_score"`
	AttendanceRate   float64 `json:"attendance_rate"`
	CompletionRate   float64 `json:"completion_rate"`
	TotalRecords     int     `json:"total_records"`
	AttendedCount    int     `json:"attended_count"`
	CompletedCount   int     `json:"completed_count"`
	NoShowCount      int     `json:"no_show_count"`
	TotalHours       float64 `json:"total_hours"`
	ComputedAt       string  `json:"computed_at"`
}

// MonthlyTrendResponse 单月参与统计
type MonthlyTrendResponse struct {
	Month         string   `json:"month"` // 2006-01
	EventCount    int      `json:"event_count"`
	TotalHours    float64  `json:"total_hours"`
	AverageRating *float64 `json:"average_rating,omitempty"`
}
