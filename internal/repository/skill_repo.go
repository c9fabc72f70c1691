package repository

import (
	"context"

	"gorm.io/gorm"

	"volunteer-hub/internal/model"
)

// SkillRepository 技能目录数据访问接口
type SkillRepository interface {
	Create(ctx context.Context, skill *model.Skill) error
	GetByID(ctx context.Context, id string) (*model.Skill, error)
	GetByName(ctx context.Context, name string) (*model.Skill, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Skill, error)
	List(ctx context.Context, category string) ([]model.Skill, error)
}

type skillRepo struct {
	db *gorm.DB
}

// NewSkillRepo 创建 SkillRepository 实例
func NewSkillRepo(db *gorm.DB) SkillRepository {
	return &skillRepo{db: db}
}

func (r *skillRepo) Create(ctx context.Context, skill *model.Skill) error {
	return r.db.WithContext(ctx).Create(skill).Error
}

func (r *skillRepo) GetByID(ctx context.Context, id string) (*model.Skill, error) {
	var skill model.Skill
	if err := r.db.WithContext(ctx).Where("skill_id = ?", id).First(&skill).Error; err != nil {
		return nil, err
	}
	return &skill, nil
}

func (r *skillRepo) GetByName(ctx context.Context, name string) (*model.Skill, error) {
	var skill model.Skill
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&skill).Error; err != nil {
		return nil, err
	}
	return &skill, nil
}

func (r *skillRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Skill, error) {
	var list []model.Skill
	if len(ids) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).Where("skill_id IN ?", ids).Find(&list).Error
	return list, err
}

func (r *skillRepo) List(ctx context.Context, category string) ([]model.Skill, error) {
	var list []model.Skill
	db := r.db.WithContext(ctx)
	if category != "" {
		db = db.Where("category = ?", category)
	}
	err := db.Order("category ASC, name ASC").Find(&list).Error
	return list, err
}
