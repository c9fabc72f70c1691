package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/metrics"
	"volunteer-hub/internal/model"
	"volunteer-hub/internal/repository"
	"volunteer-hub/pkg/jwt"
)

// ── 派遣模块业务错误 ──

var (
	ErrAssignmentNotFound      = errors.New("派遣记录不存在")
	ErrDuplicateAssignment     = errors.New("志愿者已被派遣到该活动")
	ErrEventFull               = errors.New("活动人数已满")
	ErrVolunteerInactive       = errors.New("志愿者已停用")
	ErrInvalidStatusTransition = errors.New("不允许的状态变更")
)

// Operator 发起操作的用户
type Operator struct {
	UserID string
	Role   string
}

// IsVolunteer 志愿者本人只能确认或拒绝自己的派遣
func (o Operator) IsVolunteer() bool {
	return o.Role == jwt.RoleVolunteer
}

// ref 审计字段只记录合法的 UUID
func (o Operator) ref() *string {
	if _, err := uuid.Parse(o.UserID); err != nil {
		return nil
	}
	id := o.UserID
	return &id
}

// AssignmentService 派遣生命周期
type AssignmentService interface {
	Create(ctx context.Context, eventID string, req *dto.CreateAssignmentRequest, op Operator) (*dto.AssignmentResponse, error)
	UpdateStatus(ctx context.Context, assignmentID string, req *dto.UpdateAssignmentStatusRequest, op Operator) (*dto.AssignmentResponse, error)
	ListByEvent(ctx context.Context, eventID string) ([]dto.AssignmentResponse, error)
}

type assignmentService struct {
	repo     *repository.Repository
	settings SettingsProvider
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewAssignmentService 创建 AssignmentService 实例
func NewAssignmentService(repo *repository.Repository, settings SettingsProvider, notifier Notifier, logger *zap.Logger) AssignmentService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &assignmentService{repo: repo, settings: settings, notifier: notifier, logger: logger, now: time.Now}
}

// Create 派遣志愿者；同一（活动, 志愿者）已取消或已拒绝的派遣会被重新启用
func (s *assignmentService) Create(ctx context.Context, eventID string, req *dto.CreateAssignmentRequest, op Operator) (resp *dto.AssignmentResponse, err error) {
	defer func() { metrics.RecordTransition("assign", err) }()

	status := model.AssignmentStatusPending
	if req.Status != "" {
		if status, err = model.ParseAssignmentStatus(req.Status); err != nil {
			return nil, newValidationError("status", err.Error())
		}
	}
	if status != model.AssignmentStatusPending && status != model.AssignmentStatusConfirmed {
		return nil, newValidationError("status", "新建派遣只能为 pending 或 confirmed")
	}

	now := s.now()
	settings := s.settings.Current(ctx)

	var (
		assignment *model.Assignment
		event      *model.Event
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		if event, err = lockEvent(ctx, tx, eventID); err != nil {
			return err
		}
		if event.Status != model.EventStatusPublished {
			return ErrEventNotPublished
		}

		volunteer, err := tx.Volunteer.GetByID(ctx, req.VolunteerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVolunteerNotFound
			}
			return err
		}
		if !volunteer.IsActive {
			return ErrVolunteerInactive
		}

		existing, err := tx.Assignment.FindByPair(ctx, eventID, req.VolunteerID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if existing != nil && existing.Status.IsActive() {
			return ErrDuplicateAssignment
		}

		// 满员后拒绝任何新派遣，pending 也不例外
		if err := ensureCapacity(ctx, tx, event); err != nil {
			return err
		}

		score := ScoreMatch(volunteer, event, settings).Total
		a := existing
		if a == nil {
			a = &model.Assignment{EventID: eventID, VolunteerID: req.VolunteerID}
		}
		a.Status = status
		a.MatchScore = &score
		a.AssignedBy = op.ref()
		a.UpdatedBy = op.ref()
		a.ConfirmedAt = nil
		if status == model.AssignmentStatusConfirmed {
			a.ConfirmedAt = &now
		}

		if existing == nil {
			a.CreatedBy = op.ref()
			if err := tx.Assignment.Create(ctx, a); err != nil {
				return err
			}
		} else if err := tx.Assignment.Update(ctx, a); err != nil {
			return err
		}

		assignment = a
		return syncCurrentVolunteers(ctx, tx, eventID)
	})
	if err != nil {
		if !isAssignmentBusinessError(err) {
			s.logger.Error("创建派遣失败", zap.String("event_id", eventID), zap.String("volunteer_id", req.VolunteerID), zap.Error(err))
		}
		return nil, err
	}

	s.notifier.Notify(NotificationMessage{
		RecipientID:    assignment.VolunteerID,
		Type:           model.NotifyAssignmentCreated,
		Priority:       priorityForUrgency(event.Urgency),
		Title:          "新的活动派遣",
		Message:        fmt.Sprintf("您已被派遣到活动「%s」，开始时间 %s", event.Title, formatTime(event.StartTime)),
		RelatedEventID: eventID,
	})

	out := toAssignmentResponse(assignment)
	return &out, nil
}

func (s *assignmentService) UpdateStatus(ctx context.Context, assignmentID string, req *dto.UpdateAssignmentStatusRequest, op Operator) (resp *dto.AssignmentResponse, err error) {
	defer func() { metrics.RecordTransition("assignment_status", err) }()

	next, err := model.ParseAssignmentStatus(req.Status)
	if err != nil {
		return nil, newValidationError("status", err.Error())
	}
	now := s.now()

	var (
		assignment *model.Assignment
		event      *model.Event
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		a, err := tx.Assignment.GetByID(ctx, assignmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAssignmentNotFound
			}
			return err
		}
		if op.IsVolunteer() {
			if a.VolunteerID != op.UserID {
				return ErrAssignmentNotFound
			}
			if next != model.AssignmentStatusConfirmed && next != model.AssignmentStatusDeclined {
				return ErrInvalidStatusTransition
			}
		}
		if !a.Status.CanTransitionTo(next) {
			return ErrInvalidStatusTransition
		}

		if event, err = lockEvent(ctx, tx, a.EventID); err != nil {
			return err
		}
		if next == model.AssignmentStatusConfirmed {
			if event.Status != model.EventStatusPublished {
				return ErrEventNotPublished
			}
			if err := ensureCapacity(ctx, tx, event); err != nil {
				return err
			}
			a.ConfirmedAt = &now
		}

		a.Status = next
		a.UpdatedBy = op.ref()
		if err := tx.Assignment.Update(ctx, a); err != nil {
			return err
		}
		assignment = a
		return syncCurrentVolunteers(ctx, tx, a.EventID)
	})
	if err != nil {
		if !isAssignmentBusinessError(err) {
			s.logger.Error("更新派遣状态失败", zap.String("assignment_id", assignmentID), zap.Error(err))
		}
		return nil, err
	}

	if next == model.AssignmentStatusConfirmed {
		s.notifier.Notify(NotificationMessage{
			RecipientID:    assignment.VolunteerID,
			Type:           model.NotifyAssignmentConfirmed,
			Priority:       priorityForUrgency(event.Urgency),
			Title:          "派遣已确认",
			Message:        fmt.Sprintf("您在活动「%s」中的派遣已确认", event.Title),
			RelatedEventID: event.EventID,
		})
	}

	out := toAssignmentResponse(assignment)
	return &out, nil
}

func (s *assignmentService) ListByEvent(ctx context.Context, eventID string) ([]dto.AssignmentResponse, error) {
	if _, err := s.repo.Event.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		s.logger.Error("查询活动失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}

	list, err := s.repo.Assignment.ListByEvent(ctx, eventID)
	if err != nil {
		s.logger.Error("查询派遣列表失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.AssignmentResponse, 0, len(list))
	for i := range list {
		result = append(result, toAssignmentResponse(&list[i]))
	}
	return result, nil
}

// ── 内部辅助 ──

// lockEvent 在事务内锁定活动行，后续的人数校验与回写都在该锁下完成
func lockEvent(ctx context.Context, tx *repository.Repository, eventID string) (*model.Event, error) {
	event, err := tx.Event.GetByIDForUpdate(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

func ensureCapacity(ctx context.Context, tx *repository.Repository, event *model.Event) error {
	confirmed, err := tx.Assignment.CountByStatus(ctx, event.EventID, model.AssignmentStatusConfirmed)
	if err != nil {
		return err
	}
	if int(confirmed) >= event.MaxVolunteers {
		return ErrEventFull
	}
	return nil
}

// syncCurrentVolunteers current_volunteers 始终等于 confirmed 派遣数
func syncCurrentVolunteers(ctx context.Context, tx *repository.Repository, eventID string) error {
	confirmed, err := tx.Assignment.CountByStatus(ctx, eventID, model.AssignmentStatusConfirmed)
	if err != nil {
		return err
	}
	return tx.Event.UpdateCurrentVolunteers(ctx, eventID, int(confirmed))
}

func priorityForUrgency(u model.Urgency) model.NotificationPriority {
	switch u {
	case model.UrgencyUrgent:
		return model.PriorityUrgent
	case model.UrgencyHigh:
		return model.PriorityHigh
	case model.UrgencyLow:
		return model.PriorityLow
	default:
		return model.PriorityNormal
	}
}

func isAssignmentBusinessError(err error) bool {
	for _, target := range []error{
		ErrEventNotFound, ErrVolunteerNotFound, ErrAssignmentNotFound, ErrEventNotPublished,
		ErrVolunteerInactive, ErrDuplicateAssignment, ErrEventFull, ErrInvalidStatusTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func toAssignmentResponse(a *model.Assignment) dto.AssignmentResponse {
	resp := dto.AssignmentResponse{
		ID:          a.AssignmentID,
		EventID:     a.EventID,
		VolunteerID: a.VolunteerID,
		Status:      string(a.Status),
		MatchScore:  a.MatchScore,
		AssignedBy:  a.AssignedBy,
		ConfirmedAt: formatTimePtr(a.ConfirmedAt),
		CreatedAt:   formatTime(a.CreatedAt),
	}
	if a.Volunteer != nil {
		resp.VolunteerName = a.Volunteer.Name
	}
	return resp
}
