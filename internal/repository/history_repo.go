package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"volunteer-hub/internal/model"
	pkgerrors "volunteer-hub/pkg/errors"
)

// HistoryRepository 参与记录数据访问接口
type HistoryRepository interface {
	FindByPair(ctx context.Context, eventID, volunteerID string) (*model.ParticipationHistory, error)
	// Upsert 按（活动, 志愿者）插入或覆盖，完成后 h 反映数据库中的最新值
	// h.Version 为读取时的版本号，与库中不一致时返回 ErrOptimisticLock
	Upsert(ctx context.Context, h *model.ParticipationHistory) error
	ListByEvent(ctx context.Context, eventID string) ([]model.ParticipationHistory, error)
	ListByVolunteer(ctx context.Context, volunteerID string, offset, limit int) ([]model.ParticipationHistory, int64, error)
	ListAllByVolunteer(ctx context.Context, volunteerID string) ([]model.ParticipationHistory, error)
}

type historyRepo struct {
	db *gorm.DB
}

// NewHistoryRepo 创建 HistoryRepository 实例
func NewHistoryRepo(db *gorm.DB) HistoryRepository {
	return &historyRepo{db: db}
}

var historyUpsertColumns = []string{
	"status", "attendance", "participation_date", "completion_date", "hours_worked",
	"performance_rating", "feedback", "admin_notes", "updated_by", "updated_at",
}

func (r *historyRepo) FindByPair(ctx context.Context, eventID, volunteerID string) (*model.ParticipationHistory, error) {
	var h model.ParticipationHistory
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND volunteer_id = ?", eventID, volunteerID).
		First(&h).Error
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *historyRepo) Upsert(ctx context.Context, h *model.ParticipationHistory) error {
	set := clause.AssignmentColumns(historyUpsertColumns)
	set = append(set, clause.Assignment{
		Column: clause.Column{Name: "version"},
		Value:  gorm.Expr("participation_histories.version + 1"),
	})

	// 主键与版本号由插入路径重新生成，冲突时只按 (event_id, volunteer_id) 命中
	expected := h.Version
	row := *h
	row.HistoryID = ""
	row.Version = 0
	row.Event = nil

	// 冲突更新仅在库中版本等于调用方读到的版本时生效；新记录（version=0）撞上已有行同样视为并发冲突
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "volunteer_id"}},
			DoUpdates: set,
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "participation_histories.version = ?", Vars: []any{expected}},
			}},
		}).
		Create(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}

	// 冲突更新时 h 上的主键与版本号并非库中值，重新读取
	fresh, err := r.FindByPair(ctx, h.EventID, h.VolunteerID)
	if err != nil {
		return err
	}
	*h = *fresh
	return nil
}

func (r *historyRepo) ListByEvent(ctx context.Context, eventID string) ([]model.ParticipationHistory, error) {
	var list []model.ParticipationHistory
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("volunteer_id ASC").
		Find(&list).Error
	return list, err
}

func (r *historyRepo) ListByVolunteer(ctx context.Context, volunteerID string, offset, limit int) ([]model.ParticipationHistory, int64, error) {
	var list []model.ParticipationHistory
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ParticipationHistory{}).Where("volunteer_id = ?", volunteerID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Preload("Event").
		Offset(offset).Limit(limit).
		Order("participation_date DESC").
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *historyRepo) ListAllByVolunteer(ctx context.Context, volunteerID string) ([]model.ParticipationHistory, error) {
	var list []model.ParticipationHistory
	err := r.db.WithContext(ctx).
		Where("volunteer_id = ?", volunteerID).
		Order("participation_date ASC").
		Find(&list).Error
	return list, err
}
