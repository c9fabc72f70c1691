package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/metrics"
	"volunteer-hub/internal/model"
	"volunteer-hub/internal/repository"
)

// ErrHistoryNotFound 志愿者在该活动没有参与记录
var ErrHistoryNotFound = errors.New("参与记录不存在")

// ReliabilityCache 信誉分缓存，由 pkg/redis.Client 实现
type ReliabilityCache interface {
	GetReliability(ctx context.Context, volunteerID string) ([]byte, bool, error)
	SetReliability(ctx context.Context, volunteerID string, data []byte, ttl time.Duration) error
	InvalidateReliability(ctx context.Context, volunteerID string) error
}

// ReliabilityRefresher 参与记录写入后刷新派生的信誉分
type ReliabilityRefresher interface {
	RefreshReliability(ctx context.Context, volunteerID string) error
}

// HistoryService 参与历史与信誉分
type HistoryService interface {
	ReliabilityRefresher
	GetVolunteerHistory(ctx context.Context, volunteerID string, req *dto.PaginationRequest) ([]dto.ParticipationResponse, int64, error)
	GetReliability(ctx context.Context, volunteerID string) (*dto.ReliabilityResponse, error)
	GetMonthlyTrends(ctx context.Context, volunteerID string, months int) ([]dto.MonthlyTrendResponse, error)
	GetEventAttendance(ctx context.Context, eventID string) (*dto.EventAttendanceResponse, error)
	GetParticipation(ctx context.Context, eventID, volunteerID string) (*dto.ParticipationResponse, error)
}

type historyService struct {
	repo     *repository.Repository
	cache    ReliabilityCache // 可为 nil
	cacheTTL time.Duration
	settings SettingsProvider
	logger   *zap.Logger
	now      func() time.Time
}

// NewHistoryService 创建 HistoryService 实例，cache 为 nil 时每次实时计算
func NewHistoryService(repo *repository.Repository, cache ReliabilityCache, cacheTTL time.Duration, settings SettingsProvider, logger *zap.Logger) HistoryService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Minute
	}
	return &historyService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *historyService) GetVolunteerHistory(ctx context.Context, volunteerID string, req *dto.PaginationRequest) ([]dto.ParticipationResponse, int64, error) {
	if err := s.ensureVolunteer(ctx, volunteerID); err != nil {
		return nil, 0, err
	}

	offset, limit := req.Window()
	list, total, err := s.repo.History.ListByVolunteer(ctx, volunteerID, offset, limit)
	if err != nil {
		s.logger.Error("查询参与记录失败", zap.String("volunteer_id", volunteerID), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.ParticipationResponse, 0, len(list))
	for i := range list {
		result = append(result, toParticipationResponse(&list[i]))
	}
	return result, total, nil
}

// ════════════════════════════════════════════════════════════
// 信誉分
// ════════════════════════════════════════════════════════════

func (s *historyService) GetReliability(ctx context.Context, volunteerID string) (*dto.ReliabilityResponse, error) {
	if s.cache != nil {
		data, ok, err := s.cache.GetReliability(ctx, volunteerID)
		if err != nil {
			s.logger.Warn("读取信誉分缓存失败", zap.String("volunteer_id", volunteerID), zap.Error(err))
		}
		if ok {
			var cached dto.ReliabilityResponse
			if err := json.Unmarshal(data, &cached); err == nil {
				metrics.RecordReliabilityCache(true)
				return &cached, nil
			}
		}
		metrics.RecordReliabilityCache(false)
	}

	if err := s.ensureVolunteer(ctx, volunteerID); err != nil {
		return nil, err
	}

	records, err := s.repo.History.ListAllByVolunteer(ctx, volunteerID)
	if err != nil {
		s.logger.Error("查询参与记录失败", zap.String("volunteer_id", volunteerID), zap.Error(err))
		return nil, err
	}

	st := ComputeReliability(records)
	resp := &dto.ReliabilityResponse{
		VolunteerID:      volunteerID,
		ReliabilityScore: st.Score,
		AttendanceRate:   st.AttendanceRate,
		CompletionRate:   st.CompletionRate,
		TotalRecords:     st.TotalRecords,
		AttendedCount:    st.Attended,
		CompletedCount:   st.Completed,
		NoShowCount:      st.NoShows,
		TotalHours:       st.TotalHours,
		ComputedAt:       formatTime(s.now()),
	}

	if s.cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := s.cache.SetReliability(ctx, volunteerID, data, s.cacheTTL); err != nil {
				s.logger.Warn("写入信誉分缓存失败", zap.String("volunteer_id", volunteerID), zap.Error(err))
			}
		}
	}
	return resp, nil
}

// RefreshReliability 重新计算并写回 volunteers.reliability_score，同时失效缓存。
// 无参与记录时写回 NULL，匹配时按新人默认分处理。
func (s *historyService) RefreshReliability(ctx context.Context, volunteerID string) error {
	if s.cache != nil {
		if err := s.cache.InvalidateReliability(ctx, volunteerID); err != nil {
			s.logger.Warn("失效信誉分缓存失败", zap.String("volunteer_id", volunteerID), zap.Error(err))
		}
	}

	records, err := s.repo.History.ListAllByVolunteer(ctx, volunteerID)
	if err != nil {
		return err
	}

	var score *int
	if st := ComputeReliability(records); st.TotalRecords > 0 {
		score = &st.Score
	}
	if err := s.repo.Volunteer.UpdateReliability(ctx, volunteerID, score); err != nil {
		return err
	}
	return nil
}

func (s *historyService) GetMonthlyTrends(ctx context.Context, volunteerID string, months int) ([]dto.MonthlyTrendResponse, error) {
	if months < 0 || months > maxTrendMonths {
		return nil, newValidationError("months", "取值范围为 1..36")
	}
	if err := s.ensureVolunteer(ctx, volunteerID); err != nil {
		return nil, err
	}

	records, err := s.repo.History.ListAllByVolunteer(ctx, volunteerID)
	if err != nil {
		s.logger.Error("查询参与记录失败", zap.String("volunteer_id", volunteerID), zap.Error(err))
		return nil, err
	}

	trends := MonthlyTrends(records, months, s.now(), s.settings.Current(ctx).Location)
	result := make([]dto.MonthlyTrendResponse, 0, len(trends))
	for _, t := range trends {
		result = append(result, dto.MonthlyTrendResponse{
			Month:         t.Month,
			EventCount:    t.EventCount,
			TotalHours:    t.TotalHours,
			AverageRating: t.AverageRating,
		})
	}
	return result, nil
}

// GetEventAttendance 活动出勤名册与统计；到场率按有效派遣人数计算
func (s *historyService) GetEventAttendance(ctx context.Context, eventID string) (*dto.EventAttendanceResponse, error) {
	if _, err := s.repo.Event.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		s.logger.Error("查询活动失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}

	records, err := s.repo.History.ListByEvent(ctx, eventID)
	if err != nil {
		s.logger.Error("查询活动出勤失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}
	active, err := s.repo.Assignment.ListActiveByEvent(ctx, eventID)
	if err != nil {
		s.logger.Error("查询活动派遣失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}

	stats := dto.AttendanceStats{Assigned: len(active), Records: len(records)}
	resp := &dto.EventAttendanceResponse{
		EventID: eventID,
		Records: make([]dto.ParticipationResponse, 0, len(records)),
	}
	for i := range records {
		r := &records[i]
		switch r.Attendance {
		case model.AttendancePresent:
			stats.Present++
		case model.AttendanceLate:
			stats.Late++
		case model.AttendanceAbsent:
			stats.Absent++
		case model.AttendanceExcused:
			stats.Excused++
		default:
			stats.Pending++
		}
		switch r.Status {
		case model.ParticipationCompleted:
			stats.Completed++
		case model.ParticipationNoShow:
			stats.NoShows++
		}
		stats.TotalHours += r.HoursWorked
		resp.Records = append(resp.Records, toParticipationResponse(r))
	}
	stats.TotalHours = round2(stats.TotalHours)
	if stats.Assigned > 0 {
		stats.AttendanceRate = round2(float64(stats.Present+stats.Late) / float64(stats.Assigned) * 100)
	}
	resp.Stats = stats
	return resp, nil
}

// GetParticipation 单条参与记录
func (s *historyService) GetParticipation(ctx context.Context, eventID, volunteerID string) (*dto.ParticipationResponse, error) {
	if _, err := s.repo.Event.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	h, err := s.repo.History.FindByPair(ctx, eventID, volunteerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHistoryNotFound
		}
		s.logger.Error("查询参与记录失败", zap.String("event_id", eventID), zap.String("volunteer_id", volunteerID), zap.Error(err))
		return nil, err
	}
	resp := toParticipationResponse(h)
	return &resp, nil
}

// ── 内部辅助 ──

func (s *historyService) ensureVolunteer(ctx context.Context, volunteerID string) error {
	if _, err := s.repo.Volunteer.GetByID(ctx, volunteerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVolunteerNotFound
		}
		s.logger.Error("查询志愿者失败", zap.String("volunteer_id", volunteerID), zap.Error(err))
		return err
	}
	return nil
}

func toParticipationResponse(h *model.ParticipationHistory) dto.ParticipationResponse {
	resp := dto.ParticipationResponse{
		ID:                h.HistoryID,
		EventID:           h.EventID,
		VolunteerID:       h.VolunteerID,
		Status:            string(h.Status),
		Attendance:        string(h.Attendance),
		ParticipationDate: formatTime(h.ParticipationDate),
		CompletionDate:    formatTimePtr(h.CompletionDate),
		HoursWorked:       h.HoursWorked,
		PerformanceRating: h.PerformanceRating,
		Feedback:          h.Feedback,
		AdminNotes:        h.AdminNotes,
		Version:           h.Version,
	}
	if h.Event != nil {
		resp.EventTitle = h.Event.Title
	}
	return resp
}
