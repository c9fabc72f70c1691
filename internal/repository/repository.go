package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	Volunteer    VolunteerRepository
	Skill        SkillRepository
	Event        EventRepository
	Assignment   AssignmentRepository
	History      HistoryRepository
	Notification NotificationRepository
	SystemConfig SystemConfigRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:           db,
		Volunteer:    NewVolunteerRepo(db),
		Skill:        NewSkillRepo(db),
		Event:        NewEventRepo(db),
		Assignment:   NewAssignmentRepo(db),
		History:      NewHistoryRepo(db),
		Notification: NewNotificationRepo(db),
		SystemConfig: NewSystemConfigRepo(db),
	}
}

// BeginTx 开启事务，由调用方负责 Commit / Rollback
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	tx := r.db.WithContext(ctx).Begin()
	return tx, tx.Error
}

// WithTx 返回绑定到指定事务的 Repository 聚合
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// Transaction 在单个数据库事务内执行 fn，fn 返回错误时整体回滚
// 未绑定数据库（单元测试中手工组装的聚合）时直接执行 fn
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

// Ping 数据库健康检查
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
