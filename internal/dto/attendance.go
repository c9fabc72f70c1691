package dto

import "time"

// ── 出勤模块 DTO ──

// CheckInRequest 签到请求；管理员代签时指定 volunteer_id，志愿者本人签到可省略
type CheckInRequest struct {
	VolunteerID string `json:"volunteer_id" binding:"omitempty,uuid"`
}

// CheckOutRequest 签退请求
type CheckOutRequest struct {
	VolunteerID string  `json:"volunteer_id" binding:"omitempty,uuid"`
	Feedback    *string `json:"feedback"     binding:"omitempty,max=2000"`
	Rating      *int    `json:"rating"       binding:"omitempty,min=1,max=5"`
}

// UpdateAttendanceRequest 管理员修正出勤，字段均可选
type UpdateAttendanceRequest struct {
	Attendance        *string    `json:"attendance"`
	Status            *string    `json:"status"`
	HoursWorked       *float64   `json:"hours_worked"       binding:"omitempty,min=0,max=9999.99"`
	PerformanceRating *int       `json:"performance_rating" binding:"omitempty,min=1,max=5"`
	Feedback          *string    `json:"feedback"           binding:"omitempty,max=2000"`
	AdminNotes        *string    `json:"admin_notes"        binding:"omitempty,max=2000"`
	ParticipationDate *time.Time `json:"participation_date"`
	CompletionDate    *time.Time `json:"completion_date"`
}

// MarkNoShowRequest 标记缺席
type MarkNoShowRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// ── 响应 ──

// ParticipationResponse 参与记录
type ParticipationResponse struct {
	ID                string  `json:"id"`
	EventID           string  `json:"event_id"`
	EventTitle        string  `json:"event_title,omitempty"`
	VolunteerID       string  `json:"volunteer_id"`
	Status            string  `json:"status"`
	Attendance        string  `json:"attendance"`
	ParticipationDate string  `json:"participation_date"`
	CompletionDate    *string `json:"completion_date,omitempty"`
	HoursWorked       float64 `json:"hours_worked"`
	PerformanceRating *int    `json:"performance_rating,omitempty"`
	Feedback          string  `json:"feedback,omitempty"`
	AdminNotes        string  `json:"admin_notes,omitempty"`
	Version           int     `json:"version"`
}

// CheckInResponse 签到结果；重复签到时 already_checked_in=true 且记录不变
type CheckInResponse struct {
	ParticipationResponse
	AlreadyCheckedIn bool `json:"already_checked_in"`
}

// FinalizeSummaryResponse 活动结算汇总
type FinalizeSummaryResponse struct {
	EventID        string `json:"event_id"`
	Completed      int    `json:"completed"`
	AutoCheckedOut int    `json:"auto_checked_out"`
	NoShows        int    `json:"no_shows"`
	Untouched      int    `json:"untouched"`
}

// AttendanceStats 活动出勤统计
type AttendanceStats struct {
	Assigned       int     `json:"assigned"`
	Records        int     `json:"records"`
	Present        int     `json:"present"`
	Late           int     `json:"late"`
	Absent         int     `json:"absent"`
	Excused        int     `json:"excused"`
	Pending        int     `json:"pending"`
	Completed      int     `json:"completed"`
	NoShows        int     `json:"no_shows"`
	TotalHours     float64 `json:"total_hours"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// EventAttendanceResponse 活动出勤名册
type EventAttendanceResponse struct {
	EventID string                  `json:"event_id"`
	Stats   AttendanceStats         `json:"stats"`
	Records []ParticipationResponse `json:"records"`
}
