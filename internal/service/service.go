package service

import (
	"go.uber.org/zap"

	"volunteer-hub/config"
	"volunteer-hub/internal/repository"
)

// Deps 可选的基础设施依赖，均可为 nil（调用方需避免传入带类型的 nil 指针）
type Deps struct {
	Cache    ReliabilityCache
	Locker   Locker
	Notifier Notifier
}

// Service 所有 Service 的聚合入口
type Service struct {
	Settings     SettingsProvider
	Match        MatchService
	Event        EventService
	Volunteer    VolunteerService
	Skill        SkillService
	Assignment   AssignmentService
	Attendance   AttendanceService
	History      HistoryService
	Notification NotificationService
	SystemConfig SystemConfigService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	deps Deps,
	logger *zap.Logger,
) *Service {
	settings := NewSettingsProvider(cfg, repo, logger)

	history := NewHistoryService(repo, deps.Cache, cfg.Redis.ReliabilityTTL, settings, logger)

	return &Service{
		Settings:     settings,
		Match:        NewMatchService(repo, settings, logger),
		Event:        NewEventService(repo, logger),
		Volunteer:    NewVolunteerService(repo, settings, logger),
		Skill:        NewSkillService(repo, logger),
		Assignment:   NewAssignmentService(repo, settings, deps.Notifier, logger),
		Attendance:   NewAttendanceService(repo, settings, deps.Locker, history, deps.Notifier, logger),
		History:      history,
		Notification: NewNotificationService(repo, logger),
		SystemConfig: NewSystemConfigService(repo, settings, logger),
	}
}
