package model

import (
	"time"

	"gorm.io/gorm"
)

// Notification 通知消息表 — 对应 notifications
type Notification struct {
	NotificationID string               `gorm:"type:uuid;primaryKey"                       json:"notification_id"`
	RecipientID    string               `gorm:"type:uuid;not null;index"                   json:"recipient_id"`
	Type           NotificationType     `gorm:"type:varchar(50);not null"                  json:"type"`
	Priority       NotificationPriority `gorm:"type:varchar(10);not null;default:'normal'" json:"priority"`
	Title          string               `gorm:"type:varchar(200);not null"                 json:"title"`
	Message        string               `gorm:"type:text;not null"                         json:"message"`
	RelatedEventID *string              `gorm:"type:uuid"                                  json:"related_event_id,omitempty"`
	IsRead         bool                 `gorm:"not null;default:false"                     json:"is_read"`
	ReadAt         *time.Time           `json:"read_at,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.NotificationID)
	return nil
}
