package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/metrics"
	"volunteer-hub/internal/model"
	"volunteer-hub/internal/repository"
)

// ── 匹配模块业务错误 ──

var (
	ErrVolunteerNotFound = errors.New("志愿者不存在")
	ErrEventNotFound     = errors.New("活动不存在")
)

// MatchQuery 匹配查询参数；Limit 为 0 时取默认值，超过上限时截断
type MatchQuery struct {
	Limit           int
	MinScore        int
	IncludeAssigned bool
}

// MatchService 双向匹配查询
type MatchService interface {
	// FindVolunteersForEvent 为活动推荐志愿者，按匹配分降序、志愿者 ID 升序
	FindVolunteersForEvent(ctx context.Context, eventID string, q MatchQuery) ([]dto.MatchResultResponse, error)
	// FindEventsForVolunteer 为志愿者推荐已发布的未来活动，按匹配分降序、开始时间升序
	FindEventsForVolunteer(ctx context.Context, volunteerID string, q MatchQuery) ([]dto.MatchResultResponse, error)
}

type matchService struct {
	repo     *repository.Repository
	settings SettingsProvider
	logger   *zap.Logger
	now      func() time.Time
}

// NewMatchService 创建 MatchService 实例
func NewMatchService(repo *repository.Repository, settings SettingsProvider, logger *zap.Logger) MatchService {
	return &matchService{repo: repo, settings: settings, logger: logger, now: time.Now}
}

// scored 打分中间结果
type scored struct {
	volunteer *model.Volunteer
	event     *model.Event
	score     MatchScore
}

// ════════════════════════════════════════════════════════════
// 活动 → 志愿者
// ════════════════════════════════════════════════════════════

func (s *matchService) FindVolunteersForEvent(ctx context.Context, eventID string, q MatchQuery) (result []dto.MatchResultResponse, err error) {
	start := time.Now()
	defer func() { metrics.RecordMatchQuery("event", len(result), time.Since(start), err) }()

	settings := s.settings.Current(ctx)
	q, err = normalizeQuery(q, settings)
	if err != nil {
		return nil, err
	}

	event, err := s.repo.Event.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		s.logger.Error("查询活动失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}

	volunteers, err := s.repo.Volunteer.ListActive(ctx)
	if err != nil {
		s.logger.Error("查询志愿者列表失败", zap.Error(err))
		return nil, err
	}

	assigned := make(map[string]bool)
	if !q.IncludeAssigned {
		active, err := s.repo.Assignment.ListActiveByEvent(ctx, eventID)
		if err != nil {
			s.logger.Error("查询活动派遣失败", zap.String("event_id", eventID), zap.Error(err))
			return nil, err
		}
		for _, a := range active {
			assigned[a.VolunteerID] = true
		}
	}

	pairs := make([]scored, 0, len(volunteers))
	for i := range volunteers {
		if assigned[volunteers[i].VolunteerID] {
			continue
		}
		pairs = append(pairs, scored{volunteer: &volunteers[i], event: event})
	}

	if err := scoreAll(ctx, pairs, settings); err != nil {
		return nil, err
	}
	pairs = filterByScore(pairs, q.MinScore)

	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].score.Total != pairs[j].score.Total {
			return pairs[i].score.Total > pairs[j].score.Total
		}
		return pairs[i].volunteer.VolunteerID < pairs[j].volunteer.VolunteerID
	})
	if len(pairs) > q.Limit {
		pairs = pairs[:q.Limit]
	}

	result = make([]dto.MatchResultResponse, 0, len(pairs))
	for _, p := range pairs {
		result = append(result, toMatchResult(p.volunteer.VolunteerID, p.volunteer.Name, p.score, nil))
	}
	return result, nil
}

// ════════════════════════════════════════════════════════════
// 志愿者 → 活动
// ════════════════════════════════════════════════════════════

func (s *matchService) FindEventsForVolunteer(ctx context.Context, volunteerID string, q MatchQuery) (result []dto.MatchResultResponse, err error) {
	start := time.Now()
	defer func() { metrics.RecordMatchQuery("volunteer", len(result), time.Since(start), err) }()

	settings := s.settings.Current(ctx)
	q, err = normalizeQuery(q, settings)
	if err != nil {
		return nil, err
	}

	volunteer, err := s.repo.Volunteer.GetByID(ctx, volunteerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVolunteerNotFound
		}
		s.logger.Error("查询志愿者失败", zap.String("volunteer_id", volunteerID), zap.Error(err))
		return nil, err
	}

	events, err := s.repo.Event.ListPublishedUpcoming(ctx, s.now())
	if err != nil {
		s.logger.Error("查询可报名活动失败", zap.Error(err))
		return nil, err
	}

	assigned := make(map[string]bool)
	if !q.IncludeAssigned {
		ids, err := s.repo.Assignment.ListActiveEventIDsByVolunteer(ctx, volunteerID)
		if err != nil {
			s.logger.Error("查询志愿者派遣失败", zap.String("volunteer_id", volunteerID), zap.Error(err))
			return nil, err
		}
		for _, id := range ids {
			assigned[id] = true
		}
	}

	pairs := make([]scored, 0, len(events))
	for i := range events {
		if events[i].IsFull() || assigned[events[i].EventID] {
			continue
		}
		pairs = append(pairs, scored{volunteer: volunteer, event: &events[i]})
	}

	if err := scoreAll(ctx, pairs, settings); err != nil {
		return nil, err
	}
	pairs = filterByScore(pairs, q.MinScore)

	sort.SliceStable(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.score.Total != b.score.Total {
			return a.score.Total > b.score.Total
		}
		if !a.event.StartTime.Equal(b.event.StartTime) {
			return a.event.StartTime.Before(b.event.StartTime)
		}
		return a.event.EventID < b.event.EventID
	})
	if len(pairs) > q.Limit {
		pairs = pairs[:q.Limit]
	}

	result = make([]dto.MatchResultResponse, 0, len(pairs))
	for _, p := range pairs {
		startStr := formatTime(p.event.StartTime)
		result = append(result, toMatchResult(p.event.EventID, p.event.Title, p.score, &startStr))
	}
	return result, nil
}

// ── 内部辅助 ──

func normalizeQuery(q MatchQuery, s Settings) (MatchQuery, error) {
	if q.Limit < 0 {
		return q, newValidationError("limit", "不能为负数")
	}
	if q.MinScore < 0 || q.MinScore > 100 {
		return q, newValidationError("min_score", "取值范围为 0..100")
	}
	if q.Limit == 0 {
		q.Limit = s.DefaultLimit
	}
	if s.MaxLimit > 0 && q.Limit > s.MaxLimit {
		q.Limit = s.MaxLimit
	}
	return q, nil
}

// scoreAll 用固定数量的 worker 并发打分，结果写回 pairs[i].score
func scoreAll(ctx context.Context, pairs []scored, settings Settings) error {
	workers := settings.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(pairs) {
		workers = len(pairs)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				pairs[i].score = ScoreMatch(pairs[i].volunteer, pairs[i].event, settings)
			}
		}()
	}

	var err error
feed:
	for i := range pairs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return err
}

func filterByScore(pairs []scored, minScore int) []scored {
	if minScore <= 0 {
		return pairs
	}
	kept := pairs[:0]
	for _, p := range pairs {
		if p.score.Total >= minScore {
			kept = append(kept, p)
		}
	}
	return kept
}

func toMatchResult(id, name string, score MatchScore, startTime *string) dto.MatchResultResponse {
	recs := score.Recommendations
	if recs == nil {
		recs = []string{}
	}
	return dto.MatchResultResponse{
		SubjectID:   id,
		SubjectName: name,
		MatchScore:  score.Total,
		ScoreBreakdown: dto.ScoreBreakdown{
			Skills:       score.Breakdown.Skills,
			Availability: score.Breakdown.Availability,
			Location:     score.Breakdown.Location,
			Reliability:  score.Breakdown.Reliability,
		},
		MatchQuality:    score.Quality,
		Recommendations: recs,
		DistanceKm:      score.DistanceKm,
		StartTime:       startTime,
	}
}
