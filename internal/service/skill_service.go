package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/model"
	"volunteer-hub/internal/repository"
)

// ── 技能模块业务错误 ──

var (
	ErrSkillNotFound   = errors.New("技能不存在")
	ErrSkillNameExists = errors.New("技能名称已存在")
)

// SkillService 技能目录
type SkillService interface {
	Create(ctx context.Context, req *dto.CreateSkillRequest) (*dto.SkillResponse, error)
	List(ctx context.Context, req *dto.SkillListRequest) ([]dto.SkillResponse, error)
}

type skillService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewSkillService 创建 SkillService 实例
func NewSkillService(repo *repository.Repository, logger *zap.Logger) SkillService {
	return &skillService{repo: repo, logger: logger}
}

func (s *skillService) Create(ctx context.Context, req *dto.CreateSkillRequest) (*dto.SkillResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, newValidationError("name", "不能为空")
	}

	if _, err := s.repo.Skill.GetByName(ctx, name); err == nil {
		return nil, ErrSkillNameExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询技能失败", zap.Error(err))
		return nil, err
	}

	skill := &model.Skill{
		Name:        name,
		Category:    strings.TrimSpace(req.Category),
		Description: req.Description,
	}
	if err := s.repo.Skill.Create(ctx, skill); err != nil {
		s.logger.Error("创建技能失败", zap.Error(err))
		return nil, err
	}

	resp := toSkillResponse(skill)
	return &resp, nil
}

func (s *skillService) List(ctx context.Context, req *dto.SkillListRequest) ([]dto.SkillResponse, error) {
	list, err := s.repo.Skill.List(ctx, strings.TrimSpace(req.Category))
	if err != nil {
		s.logger.Error("查询技能列表失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.SkillResponse, 0, len(list))
	for i := range list {
		result = append(result, toSkillResponse(&list[i]))
	}
	return result, nil
}

func toSkillResponse(s *model.Skill) dto.SkillResponse {
	return dto.SkillResponse{
		ID:          s.SkillID,
		Name:        s.Name,
		Category:    s.Category,
		Description: s.Description,
	}
}
