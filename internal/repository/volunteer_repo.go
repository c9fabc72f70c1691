package repository

import (
	"context"

	"gorm.io/gorm"

	"volunteer-hub/internal/model"
	pkgerrors "volunteer-hub/pkg/errors"
)

// VolunteerRepository 志愿者数据访问接口
type VolunteerRepository interface {
	Create(ctx context.Context, v *model.Volunteer) error
	GetByID(ctx context.Context, id string) (*model.Volunteer, error)
	Update(ctx context.Context, v *model.Volunteer) error
	UpdateReliability(ctx context.Context, id string, score *int) error
	List(ctx context.Context, offset, limit int) ([]model.Volunteer, int64, error)
	ListActive(ctx context.Context) ([]model.Volunteer, error)
	ReplaceSkills(ctx context.Context, volunteerID string, skills []model.VolunteerSkill) error
	ReplaceAvailability(ctx context.Context, volunteerID, source string, slots []model.VolunteerAvailability) error
}

// volunteerRepo VolunteerRepository 的 GORM 实现
type volunteerRepo struct {
	db *gorm.DB
}

// NewVolunteerRepo 创建 VolunteerRepository 实例
func NewVolunteerRepo(db *gorm.DB) VolunteerRepository {
	return &volunteerRepo{db: db}
}

// 匹配打分需要的全部关联
func preloadProfile(db *gorm.DB) *gorm.DB {
	return db.Preload("Skills.Skill").Preload("Availabilities")
}

func (r *volunteerRepo) Create(ctx context.Context, v *model.Volunteer) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *volunteerRepo) GetByID(ctx context.Context, id string) (*model.Volunteer, error) {
	var v model.Volunteer
	err := preloadProfile(r.db.WithContext(ctx)).
		Where("volunteer_id = ?", id).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *volunteerRepo) Update(ctx context.Context, v *model.Volunteer) error {
	oldVersion := v.Version
	result := r.db.WithContext(ctx).
		Model(&model.Volunteer{}).
		Where("volunteer_id = ? AND version = ?", v.VolunteerID, oldVersion).
		Updates(map[string]interface{}{
			"name":       v.Name,
			"email":      v.Email,
			"phone":      v.Phone,
			"latitude":   v.Latitude,
			"longitude":  v.Longitude,
			"is_active":  v.IsActive,
			"updated_by": v.UpdatedBy,
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	v.Version = oldVersion + 1
	return nil
}

// UpdateReliability 写入派生信誉分，不参与乐观锁
func (r *volunteerRepo) UpdateReliability(ctx context.Context, id string, score *int) error {
	return r.db.WithContext(ctx).
		Model(&model.Volunteer{}).
		Where("volunteer_id = ?", id).
		UpdateColumn("reliability_score", score).Error
}

func (r *volunteerRepo) List(ctx context.Context, offset, limit int) ([]model.Volunteer, int64, error) {
	var list []model.Volunteer
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Volunteer{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *volunteerRepo) ListActive(ctx context.Context) ([]model.Volunteer, error) {
	var list []model.Volunteer
	err := preloadProfile(r.db.WithContext(ctx)).
		Where("is_active = ?", true).
		Order("volunteer_id ASC").
		Find(&list).Error
	return list, err
}

// ReplaceSkills 全量替换志愿者技能
func (r *volunteerRepo) ReplaceSkills(ctx context.Context, volunteerID string, skills []model.VolunteerSkill) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("volunteer_id = ?", volunteerID).Delete(&model.VolunteerSkill{}).Error; err != nil {
			return err
		}
		if len(skills) == 0 {
			return nil
		}
		return tx.Create(&skills).Error
	})
}

// ReplaceAvailability 全量替换指定来源的可用时间，其他来源保持不变
func (r *volunteerRepo) ReplaceAvailability(ctx context.Context, volunteerID, source string, slots []model.VolunteerAvailability) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("volunteer_id = ? AND source = ?", volunteerID, source).
			Delete(&model.VolunteerAvailability{}).Error; err != nil {
			return err
		}
		if len(slots) == 0 {
			return nil
		}
		return tx.CreateInBatches(&slots, 200).Error
	})
}
