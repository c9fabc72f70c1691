package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"volunteer-hub/config"
	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/model"
	"volunteer-hub/internal/repository"
)

// SystemConfigService 运行期可调的匹配与签到参数
type SystemConfigService interface {
	Get(ctx context.Context) (*dto.SystemConfigResponse, error)
	// Update 合并请求字段后整体校验：权重之和为 100，分档严格递减
	Update(ctx context.Context, req *dto.UpdateSystemConfigRequest, op Operator) (*dto.SystemConfigResponse, error)
	Reset(ctx context.Context, op Operator) (*dto.SystemConfigResponse, error)
}

type systemConfigService struct {
	repo     *repository.Repository
	settings SettingsProvider
	logger   *zap.Logger
}

// NewSystemConfigService 创建 SystemConfigService 实例
func NewSystemConfigService(repo *repository.Repository, settings SettingsProvider, logger *zap.Logger) SystemConfigService {
	return &systemConfigService{repo: repo, settings: settings, logger: logger}
}

// ────────────────────── Get ──────────────────────

func (s *systemConfigService) Get(ctx context.Context) (*dto.SystemConfigResponse, error) {
	row, err := s.repo.SystemConfig.Get(ctx)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询系统配置失败", zap.Error(err))
		return nil, err
	}

	// 未初始化时返回静态配置
	current := s.settings.Current(ctx)
	resp := toSystemConfigResponse(settingsToRow(current))
	if row != nil {
		resp = toSystemConfigResponse(row)
	}
	return &resp, nil
}

// ────────────────────── Update ──────────────────────

func (s *systemConfigService) Update(ctx context.Context, req *dto.UpdateSystemConfigRequest, op Operator) (*dto.SystemConfigResponse, error) {
	row := settingsToRow(s.settings.Current(ctx))

	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setInt(&row.WeightSkills, req.WeightSkills)
	setInt(&row.WeightAvailability, req.WeightAvailability)
	setInt(&row.WeightLocation, req.WeightLocation)
	setInt(&row.WeightReliability, req.WeightReliability)
	setInt(&row.BandExcellent, req.BandExcellent)
	setInt(&row.BandGood, req.BandGood)
	setInt(&row.BandFair, req.BandFair)
	setInt(&row.LocationFloor, req.LocationFloor)
	setInt(&row.NewcomerReliability, req.NewcomerReliability)
	setInt(&row.CheckInLeadMinutes, req.CheckInLeadMinutes)
	setInt(&row.LateAfterMinutes, req.LateAfterMinutes)
	if req.LocationRadiusKm != nil {
		row.LocationRadiusKm = *req.LocationRadiusKm
	}

	weights := config.MatchWeights{
		Skills:       row.WeightSkills,
		Availability: row.WeightAvailability,
		Location:     row.WeightLocation,
		Reliability:  row.WeightReliability,
	}
	bands := config.QualityBands{Excellent: row.BandExcellent, Good: row.BandGood, Fair: row.BandFair}
	if err := config.ValidateMatching(weights, bands); err != nil {
		return nil, newValidationError("weights", err.Error())
	}
	if row.LocationRadiusKm <= 0 {
		return nil, newValidationError("location_radius_km", "必须大于 0")
	}

	row.UpdatedBy = op.ref()
	if err := s.repo.SystemConfig.Save(ctx, row); err != nil {
		s.logger.Error("更新系统配置失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("系统配置已更新",
		zap.Int("weight_skills", row.WeightSkills),
		zap.Int("weight_availability", row.WeightAvailability),
		zap.Int("weight_location", row.WeightLocation),
		zap.Int("weight_reliability", row.WeightReliability),
	)
	resp := toSystemConfigResponse(row)
	return &resp, nil
}

// ────────────────────── Reset ──────────────────────

func (s *systemConfigService) Reset(ctx context.Context, op Operator) (*dto.SystemConfigResponse, error) {
	if err := s.repo.SystemConfig.Delete(ctx); err != nil {
		s.logger.Error("重置系统配置失败", zap.Error(err))
		return nil, err
	}
	s.logger.Info("系统配置已恢复为静态默认值", zap.String("operator", op.UserID))

	resp := toSystemConfigResponse(settingsToRow(s.settings.Current(ctx)))
	return &resp, nil
}

func settingsToRow(s Settings) *model.SystemConfig {
	return &model.SystemConfig{
		Singleton:           true,
		WeightSkills:        s.Weights.Skills,
		WeightAvailability:  s.Weights.Availability,
		WeightLocation:      s.Weights.Location,
		WeightReliability:   s.Weights.Reliability,
		BandExcellent:       s.Bands.Excellent,
		BandGood:            s.Bands.Good,
		BandFair:            s.Bands.Fair,
		LocationRadiusKm:    s.LocationRadiusKm,
		LocationFloor:       s.LocationFloor,
		NewcomerReliability: s.NewcomerReliability,
		CheckInLeadMinutes:  int(s.CheckInLead / time.Minute),
		LateAfterMinutes:    int(s.LateAfter / time.Minute),
	}
}

func toSystemConfigResponse(row *model.SystemConfig) dto.SystemConfigResponse {
	resp := dto.SystemConfigResponse{
		Weights: dto.MatchWeightsResponse{
			Skills:       row.WeightSkills,
			Availability: row.WeightAvailability,
			Location:     row.WeightLocation,
			Reliability:  row.WeightReliability,
		},
		Bands: dto.QualityBandsResponse{
			Excellent: row.BandExcellent,
			Good:      row.BandGood,
			Fair:      row.BandFair,
		},
		LocationRadiusKm:    row.LocationRadiusKm,
		LocationFloor:       row.LocationFloor,
		NewcomerReliability: row.NewcomerReliability,
		CheckInLeadMinutes:  row.CheckInLeadMinutes,
		LateAfterMinutes:    row.LateAfterMinutes,
	}
	if !row.UpdatedAt.IsZero() {
		resp.UpdatedAt = formatTime(row.UpdatedAt)
	}
	return resp
}
