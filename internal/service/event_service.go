package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/model"
	"volunteer-hub/internal/repository"
)

// ── 活动模块业务错误 ──

var (
	ErrEventNotPublished = errors.New("活动未发布")
)

const maxEventDuration = 7 * 24 * time.Hour

// EventService 活动管理
type EventService interface {
	Create(ctx context.Context, req *dto.CreateEventRequest, op Operator) (*dto.EventResponse, error)
	GetByID(ctx context.Context, id string) (*dto.EventResponse, error)
	List(ctx context.Context, req *dto.EventListRequest) ([]dto.EventResponse, int64, error)
	// UpdateStatus 发布 / 开始 / 取消；完成只能通过结算
	UpdateStatus(ctx context.Context, id string, req *dto.UpdateEventStatusRequest, op Operator) (*dto.EventResponse, error)
}

type eventService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewEventService 创建 EventService 实例
func NewEventService(repo *repository.Repository, logger *zap.Logger) EventService {
	return &eventService{repo: repo, logger: logger, now: time.Now}
}

func (s *eventService) Create(ctx context.Context, req *dto.CreateEventRequest, op Operator) (*dto.EventResponse, error) {
	start, end := req.StartTime.UTC(), req.EndTime.UTC()
	switch {
	case !end.After(start):
		return nil, newValidationError("end_time", "必须晚于 start_time")
	case !start.After(s.now()):
		return nil, newValidationError("start_time", "必须是未来时间")
	case end.Sub(start) > maxEventDuration:
		return nil, newValidationError("end_time", "活动时长不能超过 7 天")
	case req.MaxVolunteers < 1:
		return nil, newValidationError("max_volunteers", "至少为 1")
	case (req.Latitude == nil) != (req.Longitude == nil):
		return nil, newValidationError("latitude", "经纬度必须同时提供")
	}

	urgency := model.UrgencyNormal
	if req.Urgency != "" {
		u, err := model.ParseUrgency(req.Urgency)
		if err != nil {
			return nil, newValidationError("urgency", err.Error())
		}
		urgency = u
	}

	required := make([]model.EventRequiredSkill, 0, len(req.RequiredSkills))
	for _, in := range req.RequiredSkills {
		p, err := model.ParseProficiency(in.MinProficiency)
		if err != nil {
			return nil, newValidationError("required_skills", err.Error())
		}
		isRequired := true
		if in.IsRequired != nil {
			isRequired = *in.IsRequired
		}
		required = append(required, model.EventRequiredSkill{SkillID: in.SkillID, MinProficiency: p, IsRequired: isRequired})
	}
	if err := ValidateRequiredSkills(required); err != nil {
		return nil, err
	}
	if err := s.ensureSkillsExist(ctx, required); err != nil {
		return nil, err
	}

	event := &model.Event{
		Title:          req.Title,
		Description:    req.Description,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		Address:        req.Address,
		StartTime:      start,
		EndTime:        end,
		MaxVolunteers:  req.MaxVolunteers,
		Urgency:        urgency,
		Status:         model.EventStatusDraft,
		RequiredSkills: required,
	}
	event.CreatedBy = op.ref()
	event.UpdatedBy = op.ref()

	if err := s.repo.Event.Create(ctx, event); err != nil {
		s.logger.Error("创建活动失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("活动已创建", zap.String("event_id", event.EventID), zap.String("title", event.Title))
	return s.GetByID(ctx, event.EventID)
}

func (s *eventService) GetByID(ctx context.Context, id string) (*dto.EventResponse, error) {
	event, err := s.repo.Event.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		s.logger.Error("查询活动失败", zap.String("event_id", id), zap.Error(err))
		return nil, err
	}
	resp := toEventResponse(event)
	return &resp, nil
}

func (s *eventService) List(ctx context.Context, req *dto.EventListRequest) ([]dto.EventResponse, int64, error) {
	status := ""
	if req.Status != "" {
		st, err := model.ParseEventStatus(req.Status)
		if err != nil {
			return nil, 0, newValidationError("status", err.Error())
		}
		status = string(st)
	}

	offset, limit := req.Window()
	list, total, err := s.repo.Event.List(ctx, status, offset, limit)
	if err != nil {
		s.logger.Error("查询活动列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.EventResponse, 0, len(list))
	for i := range list {
		result = append(result, toEventResponse(&list[i]))
	}
	return result, total, nil
}

func (s *eventService) UpdateStatus(ctx context.Context, id string, req *dto.UpdateEventStatusRequest, op Operator) (*dto.EventResponse, error) {
	next, err := model.ParseEventStatus(req.Status)
	if err != nil {
		return nil, newValidationError("status", err.Error())
	}
	if next == model.EventStatusCompleted {
		return nil, ErrInvalidStatusTransition
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		event, err := lockEvent(ctx, tx, id)
		if err != nil {
			return err
		}
		if !event.Status.CanTransitionTo(next) {
			return ErrInvalidStatusTransition
		}

		event.UpdatedBy = op.ref()
		if err := tx.Event.UpdateStatus(ctx, event, next); err != nil {
			return err
		}
		if next != model.EventStatusCancelled {
			return nil
		}

		// 取消活动时一并取消所有有效派遣
		active, err := tx.Assignment.ListActiveByEvent(ctx, id)
		if err != nil {
			return err
		}
		for i := range active {
			a := &active[i]
			a.Status = model.AssignmentStatusCancelled
			a.UpdatedBy = op.ref()
			if err := tx.Assignment.Update(ctx, a); err != nil {
				return err
			}
		}
		return syncCurrentVolunteers(ctx, tx, id)
	})
	if err != nil {
		if !errors.Is(err, ErrEventNotFound) && !errors.Is(err, ErrInvalidStatusTransition) {
			s.logger.Error("更新活动状态失败", zap.String("event_id", id), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("活动状态已变更", zap.String("event_id", id), zap.String("status", string(next)))
	return s.GetByID(ctx, id)
}

// ── 内部辅助 ──

func (s *eventService) ensureSkillsExist(ctx context.Context, required []model.EventRequiredSkill) error {
	if len(required) == 0 {
		return nil
	}
	ids := make([]string, 0, len(required))
	for _, r := range required {
		ids = append(ids, r.SkillID)
	}
	found, err := s.repo.Skill.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询技能失败", zap.Error(err))
		return err
	}
	if len(found) != len(ids) {
		return ErrSkillNotFound
	}
	return nil
}

func toEventResponse(e *model.Event) dto.EventResponse {
	resp := dto.EventResponse{
		ID:                e.EventID,
		Title:             e.Title,
		Description:       e.Description,
		Latitude:          e.Latitude,
		Longitude:         e.Longitude,
		Address:           e.Address,
		StartTime:         formatTime(e.StartTime),
		EndTime:           formatTime(e.EndTime),
		MaxVolunteers:     e.MaxVolunteers,
		CurrentVolunteers: e.CurrentVolunteers,
		Urgency:           string(e.Urgency),
		Status:            string(e.Status),
		Version:           e.Version,
		RequiredSkills:    make([]dto.RequiredSkillResponse, 0, len(e.RequiredSkills)),
		CreatedAt:         formatTime(e.CreatedAt),
	}
	for _, rs := range e.RequiredSkills {
		item := dto.RequiredSkillResponse{
			SkillID:        rs.SkillID,
			MinProficiency: string(rs.MinProficiency),
			IsRequired:     rs.IsRequired,
		}
		if rs.Skill != nil {
			item.Name = rs.Skill.Name
		}
		resp.RequiredSkills = append(resp.RequiredSkills, item)
	}
	return resp
}
