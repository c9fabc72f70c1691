package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"volunteer-hub/config"
	"volunteer-hub/internal/model"
	"volunteer-hub/internal/repository"
)

// Settings 单次操作使用的匹配与签到参数快照
type Settings struct {
	Weights             config.MatchWeights
	Bands               config.QualityBands
	LocationRadiusKm    float64
	LocationFloor       int
	NewcomerReliability int
	CheckInLead         time.Duration
	LateAfter           time.Duration // 0 表示不区分迟到
	Location            *time.Location
	Workers             int
	DefaultLimit        int
	MaxLimit            int
}

// SettingsProvider 读取当前生效的参数
type SettingsProvider interface {
	Current(ctx context.Context) Settings
}

type settingsProvider struct {
	repo   *repository.Repository
	base   Settings
	logger *zap.Logger
}

// NewSettingsProvider 以 config.yaml 为默认值，system_config 表中的值优先
func NewSettingsProvider(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) SettingsProvider {
	return &settingsProvider{repo: repo, base: DefaultSettings(cfg), logger: logger}
}

// DefaultSettings 由静态配置生成参数快照
func DefaultSettings(cfg *config.Config) Settings {
	loc, err := time.LoadLocation(cfg.Matching.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return Settings{
		Weights:             cfg.Matching.Weights,
		Bands:               cfg.Matching.Bands,
		LocationRadiusKm:    cfg.Matching.LocationRadiusKm,
		LocationFloor:       cfg.Matching.LocationFloor,
		NewcomerReliability: cfg.Matching.NewcomerReliability,
		CheckInLead:         time.Duration(cfg.Attendance.CheckInLeadMinutes) * time.Minute,
		LateAfter:           time.Duration(cfg.Attendance.LateAfterMinutes) * time.Minute,
		Location:            loc,
		Workers:             cfg.Matching.Workers,
		DefaultLimit:        cfg.Matching.DefaultLimit,
		MaxLimit:            cfg.Matching.MaxLimit,
	}
}

func (p *settingsProvider) Current(ctx context.Context) Settings {
	s := p.base
	row, err := p.repo.SystemConfig.Get(ctx)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			p.logger.Warn("读取系统配置失败，使用静态配置", zap.Error(err))
		}
		return s
	}
	return s.withOverrides(row)
}

// withOverrides 合并 system_config 行
func (s Settings) withOverrides(row *model.SystemConfig) Settings {
	s.Weights = config.MatchWeights{
		Skills:       row.WeightSkills,
		Availability: row.WeightAvailability,
		Location:     row.WeightLocation,
		Reliability:  row.WeightReliability,
	}
	s.Bands = config.QualityBands{
		Excellent: row.BandExcellent,
		Good:      row.BandGood,
		Fair:      row.BandFair,
	}
	s.LocationRadiusKm = row.LocationRadiusKm
	s.LocationFloor = row.LocationFloor
	s.NewcomerReliability = row.NewcomerReliability
	s.CheckInLead = time.Duration(row.CheckInLeadMinutes) * time.Minute
	s.LateAfter = time.Duration(row.LateAfterMinutes) * time.Minute
	return s
}
