package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/metrics"
	"volunteer-hub/internal/model"
	"volunteer-hub/internal/repository"
)

// ── 出勤模块业务错误 ──

var (
	ErrCheckInWindowClosed   = errors.New("不在签到时间窗口内")
	ErrNotCheckedIn          = errors.New("尚未签到")
	ErrAlreadyCheckedOut     = errors.New("已签退")
	ErrNoActiveAssignment    = errors.New("志愿者未被派遣到该活动")
	ErrEventAlreadyFinalized = errors.New("活动已结算")
)

const (
	autoCheckOutNote = "活动结束时自动签退"
	noShowNotePrefix = "缺席原因: "
)

// Locker 按 key 串行化操作，由 pkg/lock.PairLocker 实现
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// AttendanceService 签到状态机
type AttendanceService interface {
	CheckIn(ctx context.Context, eventID, volunteerID string) (*dto.CheckInResponse, error)
	CheckOut(ctx context.Context, eventID, volunteerID string, req *dto.CheckOutRequest) (*dto.ParticipationResponse, error)
	// UpdateAttendance 管理员修正，不受签到时间窗口限制
	UpdateAttendance(ctx context.Context, eventID, volunteerID string, req *dto.UpdateAttendanceRequest) (*dto.ParticipationResponse, error)
	MarkNoShow(ctx context.Context, eventID, volunteerID, reason string) (*dto.ParticipationResponse, error)
	// FinalizeEvent 活动结算：补记缺席、自动签退并将活动置为 completed，单事务执行
	FinalizeEvent(ctx context.Context, eventID string) (*dto.FinalizeSummaryResponse, error)
	// SweepDueEvents 结算所有已结束但未结算的活动，单个活动失败不影响其余
	SweepDueEvents(ctx context.Context) ([]dto.FinalizeSummaryResponse, error)
}

type attendanceService struct {
	repo      *repository.Repository
	settings  SettingsProvider
	locker    Locker
	refresher ReliabilityRefresher
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(
	repo *repository.Repository,
	settings SettingsProvider,
	locker Locker,
	refresher ReliabilityRefresher,
	notifier Notifier,
	logger *zap.Logger,
) AttendanceService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &attendanceService{
		repo:      repo,
		settings:  settings,
		locker:    locker,
		refresher: refresher,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// ════════════════════════════════════════════════════════════
// 签到 / 签退
// ════════════════════════════════════════════════════════════

func (s *attendanceService) CheckIn(ctx context.Context, eventID, volunteerID string) (resp *dto.CheckInResponse, err error) {
	defer func() { metrics.RecordTransition("check_in", err) }()

	now := s.now()
	settings := s.settings.Current(ctx)

	var (
		record  *model.ParticipationHistory
		event   *model.Event
		already bool
	)
	err = s.inPairTx(ctx, eventID, volunteerID, func(tx *repository.Repository, e *model.Event) error {
		event = e
		if err := checkEventOpen(event); err != nil {
			return err
		}
		if err := s.requireActiveAssignment(ctx, tx, eventID, volunteerID); err != nil {
			return err
		}
		if now.Before(event.StartTime.Add(-settings.CheckInLead)) || now.After(event.EndTime) {
			return ErrCheckInWindowClosed
		}

		existing, err := s.findRecord(ctx, tx, eventID, volunteerID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Status == model.ParticipationCompleted {
				return ErrAlreadyCheckedOut
			}
			if existing.Attendance.IsAttended() {
				record, already = existing, true
				return nil
			}
		}

		h := existing
		if h == nil {
			h = &model.ParticipationHistory{EventID: eventID, VolunteerID: volunteerID}
		}
		h.Status = model.ParticipationConfirmed
		h.Attendance = model.AttendancePresent
		if settings.LateAfter > 0 && now.After(event.StartTime.Add(settings.LateAfter)) {
			h.Attendance = model.AttendanceLate
		}
		h.ParticipationDate = now
		h.CompletionDate = nil
		h.HoursWorked = 0

		if err := tx.History.Upsert(ctx, h); err != nil {
			s.logger.Error("签到写入参与记录失败", zap.String("event_id", eventID), zap.String("volunteer_id", volunteerID), zap.Error(err))
			return err
		}
		record = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !already {
		s.afterWrite(ctx, volunteerID)
		s.notifier.Notify(NotificationMessage{
			RecipientID:    volunteerID,
			Type:           model.NotifyCheckIn,
			Priority:       model.PriorityNormal,
			Title:          "签到成功",
			Message:        fmt.Sprintf("您已签到活动「%s」", event.Title),
			RelatedEventID: eventID,
		})
	}

	return &dto.CheckInResponse{ParticipationResponse: toParticipationResponse(record), AlreadyCheckedIn: already}, nil
}

func (s *attendanceService) CheckOut(ctx context.Context, eventID, volunteerID string, req *dto.CheckOutRequest) (resp *dto.ParticipationResponse, err error) {
	defer func() { metrics.RecordTransition("check_out", err) }()

	if req == nil {
		req = &dto.CheckOutRequest{}
	}
	if err := validateRating(req.Rating, "rating"); err != nil {
		return nil, err
	}
	now := s.now()

	var (
		record *model.ParticipationHistory
		event  *model.Event
	)
	err = s.inPairTx(ctx, eventID, volunteerID, func(tx *repository.Repository, e *model.Event) error {
		event = e

		h, err := s.findRecord(ctx, tx, eventID, volunteerID)
		if err != nil {
			return err
		}
		if h == nil {
			return ErrNotCheckedIn
		}
		if h.Status == model.ParticipationCompleted {
			return ErrAlreadyCheckedOut
		}
		if !h.Attendance.IsAttended() {
			return ErrNotCheckedIn
		}

		completeAt(h, now)
		if req.Feedback != nil {
			h.Feedback = appendNote(h.Feedback, *req.Feedback)
		}
		if req.Rating != nil {
			rating := *req.Rating
			h.PerformanceRating = &rating
		}

		if err := tx.History.Upsert(ctx, h); err != nil {
			s.logger.Error("签退写入参与记录失败", zap.String("event_id", eventID), zap.String("volunteer_id", volunteerID), zap.Error(err))
			return err
		}
		record = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, volunteerID)
	s.notifier.Notify(NotificationMessage{
		RecipientID:    volunteerID,
		Type:           model.NotifyCheckOut,
		Priority:       model.PriorityNormal,
		Title:          "签退成功",
		Message:        fmt.Sprintf("您已签退活动「%s」，本次服务 %.2f 小时", event.Title, record.HoursWorked),
		RelatedEventID: eventID,
	})

	out := toParticipationResponse(record)
	return &out, nil
}

// ════════════════════════════════════════════════════════════
// 管理员修正 / 缺席
// ════════════════════════════════════════════════════════════

func (s *attendanceService) UpdateAttendance(ctx context.Context, eventID, volunteerID string, req *dto.UpdateAttendanceRequest) (resp *dto.ParticipationResponse, err error) {
	defer func() { metrics.RecordTransition("override", err) }()

	var (
		attendance model.AttendanceStatus
		status     model.ParticipationStatus
	)
	if req.Attendance != nil {
		if attendance, err = model.ParseAttendanceStatus(*req.Attendance); err != nil {
			return nil, newValidationError("attendance", err.Error())
		}
	}
	if req.Status != nil {
		if status, err = model.ParseParticipationStatus(*req.Status); err != nil {
			return nil, newValidationError("status", err.Error())
		}
	}
	if req.HoursWorked != nil && *req.HoursWorked < 0 {
		return nil, newValidationError("hours_worked", "不能为负数")
	}
	if status == model.ParticipationNoShow && req.HoursWorked != nil && *req.HoursWorked > 0 {
		return nil, newValidationError("hours_worked", "缺席记录不能填写工时")
	}
	if err := validateRating(req.PerformanceRating, "performance_rating"); err != nil {
		return nil, err
	}
	now := s.now()

	var record *model.ParticipationHistory
	err = s.inPairTx(ctx, eventID, volunteerID, func(tx *repository.Repository, event *model.Event) error {
		if _, err := tx.Volunteer.GetByID(ctx, volunteerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVolunteerNotFound
			}
			s.logger.Error("查询志愿者失败", zap.String("volunteer_id", volunteerID), zap.Error(err))
			return err
		}

		h, err := s.findRecord(ctx, tx, eventID, volunteerID)
		if err != nil {
			return err
		}
		if h == nil {
			h = &model.ParticipationHistory{
				EventID:           eventID,
				VolunteerID:       volunteerID,
				Status:            model.ParticipationRegistered,
				Attendance:        model.AttendancePending,
				ParticipationDate: event.StartTime,
			}
		}

		if req.Attendance != nil {
			h.Attendance = attendance
		}
		if req.ParticipationDate != nil {
			h.ParticipationDate = *req.ParticipationDate
		}
		if req.HoursWorked != nil {
			h.HoursWorked = round2(*req.HoursWorked)
		}

		restamp := false
		switch {
		case req.Status != nil:
			h.Status = status
		case req.HoursWorked != nil && h.HoursWorked > 0:
			h.Status = model.ParticipationCompleted
			restamp = true
		}
		switch {
		case req.CompletionDate != nil:
			completion := *req.CompletionDate
			h.CompletionDate = &completion
		case restamp || (h.Status == model.ParticipationCompleted && h.CompletionDate == nil):
			completion := latest(now, h.ParticipationDate)
			h.CompletionDate = &completion
		}
		// 缺席记录不保留工时与完成时间
		if h.Status == model.ParticipationNoShow {
			markNoShow(h)
		}

		if req.PerformanceRating != nil {
			rating := *req.PerformanceRating
			h.PerformanceRating = &rating
		}
		if req.Feedback != nil {
			h.Feedback = *req.Feedback
		}
		if req.AdminNotes != nil {
			h.AdminNotes = *req.AdminNotes
		}

		if h.CompletionDate != nil && h.CompletionDate.Before(h.ParticipationDate) {
			return newValidationError("completion_date", "不能早于 participation_date")
		}

		if err := tx.History.Upsert(ctx, h); err != nil {
			s.logger.Error("修正参与记录失败", zap.String("event_id", eventID), zap.String("volunteer_id", volunteerID), zap.Error(err))
			return err
		}
		record = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, volunteerID)
	out := toParticipationResponse(record)
	return &out, nil
}

func (s *attendanceService) MarkNoShow(ctx context.Context, eventID, volunteerID, reason string) (resp *dto.ParticipationResponse, err error) {
	defer func() { metrics.RecordTransition("no_show", err) }()

	var (
		record *model.ParticipationHistory
		event  *model.Event
	)
	err = s.inPairTx(ctx, eventID, volunteerID, func(tx *repository.Repository, e *model.Event) error {
		event = e
		if event.Status == model.EventStatusCompleted {
			return ErrEventAlreadyFinalized
		}
		if err := s.requireActiveAssignment(ctx, tx, eventID, volunteerID); err != nil {
			return err
		}

		h, err := s.findRecord(ctx, tx, eventID, volunteerID)
		if err != nil {
			return err
		}
		if h != nil && h.Status == model.ParticipationCompleted {
			return ErrAlreadyCheckedOut
		}
		if h == nil {
			h = &model.ParticipationHistory{
				EventID:           eventID,
				VolunteerID:       volunteerID,
				ParticipationDate: event.StartTime,
			}
		}
		markNoShow(h)
		if reason = strings.TrimSpace(reason); reason != "" {
			h.AdminNotes = appendNote(h.AdminNotes, noShowNotePrefix+reason)
		}

		if err := tx.History.Upsert(ctx, h); err != nil {
			s.logger.Error("标记缺席失败", zap.String("event_id", eventID), zap.String("volunteer_id", volunteerID), zap.Error(err))
			return err
		}
		record = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, volunteerID)
	s.notifier.Notify(noShowNotice(event, volunteerID))

	out := toParticipationResponse(record)
	return &out, nil
}

// ════════════════════════════════════════════════════════════
// 活动结算
// ════════════════════════════════════════════════════════════

func (s *attendanceService) FinalizeEvent(ctx context.Context, eventID string) (resp *dto.FinalizeSummaryResponse, err error) {
	defer func() { metrics.RecordTransition("finalize", err) }()

	// 先取全部键锁再开事务，等待进行中的签到/签退落库
	unlock, err := s.lockEventPairs(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	summary := &dto.FinalizeSummaryResponse{EventID: eventID}
	var (
		event   *model.Event
		notices []NotificationMessage
		touched []string
	)

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		event, err = tx.Event.GetByIDForUpdate(ctx, eventID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}
		switch event.Status {
		case model.EventStatusPublished, model.EventStatusInProgress:
		case model.EventStatusCompleted:
			return ErrEventAlreadyFinalized
		default:
			return ErrInvalidStatusTransition
		}

		active, err := tx.Assignment.ListActiveByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		records, err := tx.History.ListByEvent(ctx, eventID)
		if err != nil {
			return err
		}

		assigned := make(map[string]bool, len(active))
		for _, a := range active {
			assigned[a.VolunteerID] = true
		}
		recorded := make(map[string]bool, len(records))
		attended := make(map[string]bool, len(records))

		for i := range records {
			h := &records[i]
			recorded[h.VolunteerID] = true

			switch {
			case h.Status == model.ParticipationCompleted:
				summary.Completed++
				attended[h.VolunteerID] = true
				continue
			case h.Status.IsFinal():
				summary.Untouched++
				continue
			case h.Attendance.IsAttended():
				completeAt(h, event.EndTime)
				h.AdminNotes = appendNote(h.AdminNotes, autoCheckOutNote)
				summary.AutoCheckedOut++
				attended[h.VolunteerID] = true
				notices = append(notices, NotificationMessage{
					RecipientID:    h.VolunteerID,
					Type:           model.NotifyCheckOut,
					Priority:       model.PriorityNormal,
					Title:          "已自动签退",
					Message:        fmt.Sprintf("活动「%s」已结束，系统已为您自动签退，服务 %.2f 小时", event.Title, h.HoursWorked),
					RelatedEventID: eventID,
				})
			case assigned[h.VolunteerID] && (h.Attendance == model.AttendancePending || h.Attendance == model.AttendanceAbsent):
				markNoShow(h)
				summary.NoShows++
				notices = append(notices, noShowNotice(event, h.VolunteerID))
			default:
				summary.Untouched++
				continue
			}

			if err := tx.History.Upsert(ctx, h); err != nil {
				return err
			}
			touched = append(touched, h.VolunteerID)
		}

		for i := range active {
			a := &active[i]
			if attended[a.VolunteerID] {
				// 已完成服务的 confirmed 派遣随活动一并完结
				if a.Status.CanTransitionTo(model.AssignmentStatusCompleted) {
					a.Status = model.AssignmentStatusCompleted
					if err := tx.Assignment.Update(ctx, a); err != nil {
						return err
					}
				}
				continue
			}
			if recorded[a.VolunteerID] {
				continue
			}
			h := &model.ParticipationHistory{
				EventID:           eventID,
				VolunteerID:       a.VolunteerID,
				ParticipationDate: event.StartTime,
			}
			markNoShow(h)
			if err := tx.History.Upsert(ctx, h); err != nil {
				return err
			}
			summary.NoShows++
			touched = append(touched, a.VolunteerID)
			notices = append(notices, noShowNotice(event, a.VolunteerID))
		}

		return tx.Event.UpdateStatus(ctx, event, model.EventStatusCompleted)
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("活动结算失败", zap.String("event_id", eventID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("活动结算完成",
		zap.String("event_id", eventID),
		zap.Int("completed", summary.Completed),
		zap.Int("auto_checked_out", summary.AutoCheckedOut),
		zap.Int("no_shows", summary.NoShows),
		zap.Int("untouched", summary.Untouched),
	)
	metrics.RecordFinalizedEvent()

	for _, id := range touched {
		s.afterWrite(ctx, id)
	}
	for _, n := range notices {
		s.notifier.Notify(n)
	}
	return summary, nil
}

func (s *attendanceService) SweepDueEvents(ctx context.Context) ([]dto.FinalizeSummaryResponse, error) {
	due, err := s.repo.Event.ListDueForFinalize(ctx, s.now())
	if err != nil {
		s.logger.Error("查询待结算活动失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.FinalizeSummaryResponse, 0, len(due))
	for _, e := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		summary, err := s.FinalizeEvent(ctx, e.EventID)
		if err != nil {
			s.logger.Warn("活动结算跳过", zap.String("event_id", e.EventID), zap.Error(err))
			continue
		}
		result = append(result, *summary)
	}
	return result, nil
}

// ── 内部辅助 ──

func pairKey(eventID, volunteerID string) string {
	return "attendance:" + eventID + ":" + volunteerID
}

func (s *attendanceService) withPairLock(ctx context.Context, eventID, volunteerID string, fn func() error) error {
	if s.locker == nil {
		return fn()
	}
	unlock, err := s.locker.Acquire(ctx, pairKey(eventID, volunteerID))
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// inPairTx 持有键锁后开启事务，并以共享锁读取活动
// 加锁顺序固定为先键锁后行锁，与 FinalizeEvent 相同
func (s *attendanceService) inPairTx(ctx context.Context, eventID, volunteerID string, fn func(tx *repository.Repository, event *model.Event) error) error {
	return s.withPairLock(ctx, eventID, volunteerID, func() error {
		return s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			event, err := tx.Event.GetByIDForShare(ctx, eventID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrEventNotFound
				}
				s.logger.Error("查询活动失败", zap.String("event_id", eventID), zap.Error(err))
				return err
			}
			return fn(tx, event)
		})
	})
}

// lockEventPairs 按志愿者 ID 升序获取活动下所有键锁，返回统一释放函数
func (s *attendanceService) lockEventPairs(ctx context.Context, eventID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	active, err := s.repo.Assignment.ListActiveByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.History.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(active)+len(records))
	ids := make([]string, 0, len(active)+len(records))
	for _, a := range active {
		if !seen[a.VolunteerID] {
			seen[a.VolunteerID] = true
			ids = append(ids, a.VolunteerID)
		}
	}
	for _, h := range records {
		if !seen[h.VolunteerID] {
			seen[h.VolunteerID] = true
			ids = append(ids, h.VolunteerID)
		}
	}
	sort.Strings(ids)

	unlocks := make([]func(), 0, len(ids))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, id := range ids {
		unlock, err := s.locker.Acquire(ctx, pairKey(eventID, id))
		if err != nil {
			release()
			s.logger.Warn("结算等待签到锁超时", zap.String("event_id", eventID), zap.String("volunteer_id", id), zap.Error(err))
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// findRecord 记录不存在时返回 nil, nil
func (s *attendanceService) findRecord(ctx context.Context, repo *repository.Repository, eventID, volunteerID string) (*model.ParticipationHistory, error) {
	h, err := repo.History.FindByPair(ctx, eventID, volunteerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logger.Error("查询参与记录失败", zap.String("event_id", eventID), zap.String("volunteer_id", volunteerID), zap.Error(err))
		return nil, err
	}
	return h, nil
}

func (s *attendanceService) requireActiveAssignment(ctx context.Context, repo *repository.Repository, eventID, volunteerID string) error {
	a, err := repo.Assignment.FindByPair(ctx, eventID, volunteerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoActiveAssignment
		}
		s.logger.Error("查询派遣失败", zap.String("event_id", eventID), zap.String("volunteer_id", volunteerID), zap.Error(err))
		return err
	}
	if !a.Status.IsActive() {
		return ErrNoActiveAssignment
	}
	return nil
}

// afterWrite 参与记录变更后刷新信誉分，失败只记录日志
func (s *attendanceService) afterWrite(ctx context.Context, volunteerID string) {
	if s.refresher == nil {
		return
	}
	if err := s.refresher.RefreshReliability(ctx, volunteerID); err != nil {
		s.logger.Warn("刷新信誉分失败", zap.String("volunteer_id", volunteerID), zap.Error(err))
	}
}

// checkEventOpen 仅 published 与 in_progress 的活动接受签到
func checkEventOpen(e *model.Event) error {
	switch e.Status {
	case model.EventStatusPublished, model.EventStatusInProgress:
		return nil
	case model.EventStatusCompleted:
		return ErrEventAlreadyFinalized
	default:
		return ErrEventNotPublished
	}
}

// completeAt 以 at 为签退时刻完成记录
func completeAt(h *model.ParticipationHistory, at time.Time) {
	completion := latest(at, h.ParticipationDate)
	h.Status = model.ParticipationCompleted
	h.CompletionDate = &completion
	h.HoursWorked = hoursBetween(h.ParticipationDate, completion)
}

func markNoShow(h *model.ParticipationHistory) {
	h.Status = model.ParticipationNoShow
	h.Attendance = model.AttendanceAbsent
	h.HoursWorked = 0
	h.CompletionDate = nil
}

func noShowNotice(e *model.Event, volunteerID string) NotificationMessage {
	return NotificationMessage{
		RecipientID:    volunteerID,
		Type:           model.NotifyNoShow,
		Priority:       model.PriorityHigh,
		Title:          "缺席记录",
		Message:        fmt.Sprintf("您在活动「%s」中被记为缺席，如有疑问请联系组织者", e.Title),
		RelatedEventID: e.EventID,
	}
}

// hoursBetween 保留两位小数，不小于 0
func hoursBetween(from, to time.Time) float64 {
	return math.Max(0, round2(to.Sub(from).Hours()))
}

func latest(a, b time.Time) time.Time {
	if a.Before(b) {
		return b
	}
	return a
}

func appendNote(existing, note string) string {
	note = strings.TrimSpace(note)
	switch {
	case note == "":
		return existing
	case existing == "":
		return note
	default:
		return existing + "\n" + note
	}
}

func validateRating(rating *int, field string) error {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return newValidationError(field, "取值范围为 1..5")
	}
	return nil
}

// isBusinessError 业务拒绝无需按系统错误记录
func isBusinessError(err error) bool {
	return errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrEventAlreadyFinalized) ||
		errors.Is(err, ErrInvalidStatusTransition) ||
		errors.Is(err, ErrValidation)
}
