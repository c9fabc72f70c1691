package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"volunteer-hub/internal/model"
	pkgerrors "volunteer-hub/pkg/errors"
)

// EventRepository 活动数据访问接口
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	// GetByIDForUpdate 在事务内加行锁读取（PostgreSQL SELECT ... FOR UPDATE）
	GetByIDForUpdate(ctx context.Context, id string) (*model.Event, error)
	// GetByIDForShare 共享锁读取：签到类写入之间互不阻塞，但与结算的 FOR UPDATE 互斥
	GetByIDForShare(ctx context.Context, id string) (*model.Event, error)
	UpdateStatus(ctx context.Context, event *model.Event, status model.EventStatus) error
	UpdateCurrentVolunteers(ctx context.Context, id string, count int) error
	List(ctx context.Context, status string, offset, limit int) ([]model.Event, int64, error)
	ListPublishedUpcoming(ctx context.Context, after time.Time) ([]model.Event, error)
	ListDueForFinalize(ctx context.Context, before time.Time) ([]model.Event, error)
}

type eventRepo struct {
	db *gorm.DB
}

// NewEventRepo 创建 EventRepository 实例
func NewEventRepo(db *gorm.DB) EventRepository {
	return &eventRepo{db: db}
}

func (r *eventRepo) Create(ctx context.Context, event *model.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var event model.Event
	err := r.db.WithContext(ctx).
		Preload("RequiredSkills.Skill").
		Where("event_id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Event, error) {
	var event model.Event
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("RequiredSkills.Skill").
		Where("event_id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepo) GetByIDForShare(ctx context.Context, id string) (*model.Event, error) {
	var event model.Event
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthShare}).
		Where("event_id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// UpdateStatus 乐观锁更新活动状态，成功后回写 event 的 Status 与 Version
func (r *eventRepo) UpdateStatus(ctx context.Context, event *model.Event, status model.EventStatus) error {
	oldVersion := event.Version
	result := r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("event_id = ? AND version = ?", event.EventID, oldVersion).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_by": event.UpdatedBy,
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	event.Status = status
	event.Version = oldVersion + 1
	return nil
}

// UpdateCurrentVolunteers 回写 confirmed 人数，调用方需持有活动行锁
func (r *eventRepo) UpdateCurrentVolunteers(ctx context.Context, id string, count int) error {
	return r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("event_id = ?", id).
		UpdateColumn("current_volunteers", count).Error
}

func (r *eventRepo) List(ctx context.Context, status string, offset, limit int) ([]model.Event, int64, error) {
	var list []model.Event
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Event{})
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("start_time ASC").
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListPublishedUpcoming 已发布且在 after 之后开始的活动
func (r *eventRepo) ListPublishedUpcoming(ctx context.Context, after time.Time) ([]model.Event, error) {
	var list []model.Event
	err := r.db.WithContext(ctx).
		Preload("RequiredSkills.Skill").
		Where("status = ? AND start_time > ?", model.EventStatusPublished, after).
		Order("start_time ASC").
		Find(&list).Error
	return list, err
}

// ListDueForFinalize 已结束但尚未结算的活动
func (r *eventRepo) ListDueForFinalize(ctx context.Context, before time.Time) ([]model.Event, error) {
	var list []model.Event
	err := r.db.WithContext(ctx).
		Where("status IN ? AND end_time <= ?",
			[]model.EventStatus{model.EventStatusPublished, model.EventStatusInProgress}, before).
		Order("end_time ASC").
		Find(&list).Error
	return list, err
}
