package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"volunteer-hub/internal/metrics"
	"volunteer-hub/internal/model"
	"volunteer-hub/internal/repository"
)

// NotificationMessage 出站通知
type NotificationMessage struct {
	RecipientID    string
	Type           model.NotificationType
	Priority       model.NotificationPriority
	Title          string
	Message        string
	RelatedEventID string
}

// Notifier 通知出口。Notify 不阻塞、不返回错误：
// 投递失败只记录日志，不影响触发它的业务操作。
type Notifier interface {
	Notify(msg NotificationMessage)
}

// NotificationDispatcher 带缓冲队列的异步派发器，后台 worker 落库到 notifications 表
type NotificationDispatcher struct {
	repo   *repository.Repository
	queue  chan NotificationMessage
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewNotificationDispatcher 创建派发器，需调用 Run 启动消费
func NewNotificationDispatcher(repo *repository.Repository, queueSize int, logger *zap.Logger) *NotificationDispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &NotificationDispatcher{
		repo:   repo,
		queue:  make(chan NotificationMessage, queueSize),
		logger: logger,
	}
}

// Notify 入队；队列已满或派发器已停止时丢弃
func (d *NotificationDispatcher) Notify(msg NotificationMessage) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		metrics.RecordNotification(string(msg.Type), "dropped")
		return
	}
	select {
	case d.queue <- msg:
	default:
		d.logger.Warn("通知队列已满，丢弃通知",
			zap.String("type", string(msg.Type)),
			zap.String("recipient_id", msg.RecipientID),
		)
		metrics.RecordNotification(string(msg.Type), "dropped")
	}
}

// Run 消费队列直到 ctx 取消；取消后在限定时间内投递剩余消息
func (d *NotificationDispatcher) Run(ctx context.Context) {
	for {
		select {
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		case <-ctx.Done():
			d.drain()
			return
		}
	}
}

func (d *NotificationDispatcher) drain() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		default:
			return
		}
	}
}

func (d *NotificationDispatcher) deliver(ctx context.Context, msg NotificationMessage) {
	n := &model.Notification{
		RecipientID: msg.RecipientID,
		Type:        msg.Type,
		Priority:    msg.Priority,
		Title:       msg.Title,
		Message:     msg.Message,
	}
	if n.Priority == "" {
		n.Priority = model.PriorityNormal
	}
	if msg.RelatedEventID != "" {
		eventID := msg.RelatedEventID
		n.RelatedEventID = &eventID
	}

	if err := d.repo.Notification.Create(ctx, n); err != nil {
		d.logger.Error("通知落库失败",
			zap.String("type", string(msg.Type)),
			zap.String("recipient_id", msg.RecipientID),
			zap.Error(err),
		)
		metrics.RecordNotification(string(msg.Type), "error")
		return
	}
	metrics.RecordNotification(string(msg.Type), "sent")
}

// nopNotifier 未配置派发器时使用
type nopNotifier struct{}

func (nopNotifier) Notify(NotificationMessage) {}
