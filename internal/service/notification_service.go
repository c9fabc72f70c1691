package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/model"
	"volunteer-hub/internal/repository"
)

// ── 通知模块业务错误 ──

var (
	ErrNotificationNotFound = errors.New("通知不存在")
)

// NotificationService 站内通知收件箱
type NotificationService interface {
	ListMine(ctx context.Context, recipientID string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error)
	MarkRead(ctx context.Context, id, recipientID string) error
}

type notificationService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, logger: logger, now: time.Now}
}

func (s *notificationService) ListMine(ctx context.Context, recipientID string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	offset, limit := req.Window()
	list, total, err := s.repo.Notification.ListByRecipient(ctx, recipientID, req.UnreadOnly, offset, limit)
	if err != nil {
		s.logger.Error("查询通知列表失败", zap.String("recipient_id", recipientID), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.NotificationResponse, 0, len(list))
	for i := range list {
		result = append(result, toNotificationResponse(&list[i]))
	}
	return result, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, recipientID string) error {
	if err := s.repo.Notification.MarkRead(ctx, id, recipientID, s.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		s.logger.Error("标记通知已读失败", zap.String("notification_id", id), zap.Error(err))
		return err
	}
	return nil
}

func toNotificationResponse(n *model.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:             n.NotificationID,
		Type:           string(n.Type),
		Priority:       string(n.Priority),
		Title:          n.Title,
		Message:        n.Message,
		RelatedEventID: n.RelatedEventID,
		IsRead:         n.IsRead,
		CreatedAt:      formatTime(n.CreatedAt),
	}
}
