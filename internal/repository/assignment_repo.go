package repository

import (
	"context"

	"gorm.io/gorm"

	"volunteer-hub/internal/model"
)

var inactiveAssignmentStatuses = []model.AssignmentStatus{
	model.AssignmentStatusCancelled,
	model.AssignmentStatusDeclined,
}

// AssignmentRepository 派遣数据访问接口
type AssignmentRepository interface {
	Create(ctx context.Context, a *model.Assignment) error
	GetByID(ctx context.Context, id string) (*model.Assignment, error)
	// FindByPair 按（活动, 志愿者）查询，不区分状态
	FindByPair(ctx context.Context, eventID, volunteerID string) (*model.Assignment, error)
	Update(ctx context.Context, a *model.Assignment) error
	ListByEvent(ctx context.Context, eventID string) ([]model.Assignment, error)
	ListActiveByEvent(ctx context.Context, eventID string) ([]model.Assignment, error)
	ListActiveEventIDsByVolunteer(ctx context.Context, volunteerID string) ([]string, error)
	CountByStatus(ctx context.Context, eventID string, status model.AssignmentStatus) (int64, error)
}

type assignmentRepo struct {
	db *gorm.DB
}

// NewAssignmentRepo 创建 AssignmentRepository 实例
func NewAssignmentRepo(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) Create(ctx context.Context, a *model.Assignment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *assignmentRepo) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	var a model.Assignment
	if err := r.db.WithContext(ctx).Where("assignment_id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepo) FindByPair(ctx context.Context, eventID, volunteerID string) (*model.Assignment, error) {
	var a model.Assignment
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND volunteer_id = ?", eventID, volunteerID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepo) Update(ctx context.Context, a *model.Assignment) error {
	return r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Where("assignment_id = ?", a.AssignmentID).
		Updates(map[string]interface{}{
			"status":       a.Status,
			"match_score":  a.MatchScore,
			"assigned_by":  a.AssignedBy,
			"confirmed_at": a.ConfirmedAt,
			"updated_by":   a.UpdatedBy,
		}).Error
}

func (r *assignmentRepo) ListByEvent(ctx context.Context, eventID string) ([]model.Assignment, error) {
	var list []model.Assignment
	err := r.db.WithContext(ctx).
		Preload("Volunteer").
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *assignmentRepo) ListActiveByEvent(ctx context.Context, eventID string) ([]model.Assignment, error) {
	var list []model.Assignment
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND status NOT IN ?", eventID, inactiveAssignmentStatuses).
		Order("volunteer_id ASC").
		Find(&list).Error
	return list, err
}

func (r *assignmentRepo) ListActiveEventIDsByVolunteer(ctx context.Context, volunteerID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Where("volunteer_id = ? AND status NOT IN ?", volunteerID, inactiveAssignmentStatuses).
		Pluck("event_id", &ids).Error
	return ids, err
}

func (r *assignmentRepo) CountByStatus(ctx context.Context, eventID string, status model.AssignmentStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Where("event_id = ? AND status = ?", eventID, status).
		Count(&n).Error
	return n, err
}
