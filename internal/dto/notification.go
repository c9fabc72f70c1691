package dto

// ── 通知模块 DTO ──

// NotificationListRequest 我的通知列表查询参数
type NotificationListRequest struct {
	UnreadOnly bool `form:"unread_only"`
	PaginationRequest
}

// NotificationResponse 通知响应
type NotificationResponse struct {
	ID             string  `json:"id"`
	Type           string  `json:"type"`
	Priority       string  `json:"priority"`
	Title          string  `json:"title"`
	Message        string  `json:"message"`
	RelatedEventID *string `json:"related_event_id,omitempty"`
	IsRead         bool    `json:"is_read"`
	CreatedAt      string  `json:"created_at"`
}
