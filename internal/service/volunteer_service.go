package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/model"
	"volunteer-hub/internal/repository"
	pkgerrors "volunteer-hub/pkg/errors"
)

// VolunteerService 志愿者档案：技能与可用时间
type VolunteerService interface {
	Create(ctx context.Context, req *dto.CreateVolunteerRequest, op Operator) (*dto.VolunteerResponse, error)
	GetByID(ctx context.Context, id string) (*dto.VolunteerResponse, error)
	List(ctx context.Context, req *dto.PaginationRequest) ([]dto.VolunteerResponse, int64, error)
	SetActive(ctx context.Context, id string, req *dto.UpdateVolunteerActiveRequest, op Operator) (*dto.VolunteerResponse, error)
	UpdateSkills(ctx context.Context, id string, req *dto.UpdateVolunteerSkillsRequest) (*dto.VolunteerResponse, error)
	// UpdateAvailability 全量替换手工录入的时间段，ICS 导入的时间段保持不变
	UpdateAvailability(ctx context.Context, id string, req *dto.UpdateAvailabilityRequest) (*dto.VolunteerResponse, error)
	// ImportAvailabilityICS 全量替换 ICS 来源的时间段
	ImportAvailabilityICS(ctx context.Context, id string, reader io.Reader) (*dto.ImportAvailabilityResponse, error)
}

type volunteerService struct {
	repo     *repository.Repository
	settings SettingsProvider
	logger   *zap.Logger
	now      func() time.Time
}

// NewVolunteerService 创建 VolunteerService 实例
func NewVolunteerService(repo *repository.Repository, settings SettingsProvider, logger *zap.Logger) VolunteerService {
	return &volunteerService{repo: repo, settings: settings, logger: logger, now: time.Now}
}

func (s *volunteerService) Create(ctx context.Context, req *dto.CreateVolunteerRequest, op Operator) (*dto.VolunteerResponse, error) {
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return nil, newValidationError("latitude", "经纬度必须同时提供")
	}

	v := &model.Volunteer{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		IsActive:  true,
	}
	v.CreatedBy = op.ref()
	v.UpdatedBy = op.ref()

	if err := s.repo.Volunteer.Create(ctx, v); err != nil {
		s.logger.Error("创建志愿者失败", zap.Error(err))
		return nil, err
	}
	return s.GetByID(ctx, v.VolunteerID)
}

func (s *volunteerService) GetByID(ctx context.Context, id string) (*dto.VolunteerResponse, error) {
	v, err := s.getVolunteer(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toVolunteerResponse(v)
	return &resp, nil
}

func (s *volunteerService) List(ctx context.Context, req *dto.PaginationRequest) ([]dto.VolunteerResponse, int64, error) {
	offset, limit := req.Window()
	list, total, err := s.repo.Volunteer.List(ctx, offset, limit)
	if err != nil {
		s.logger.Error("查询志愿者列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.VolunteerResponse, 0, len(list))
	for i := range list {
		result = append(result, toVolunteerResponse(&list[i]))
	}
	return result, total, nil
}

func (s *volunteerService) SetActive(ctx context.Context, id string, req *dto.UpdateVolunteerActiveRequest, op Operator) (*dto.VolunteerResponse, error) {
	v, err := s.getVolunteer(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Version != req.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	v.IsActive = *req.IsActive
	v.UpdatedBy = op.ref()
	if err := s.repo.Volunteer.Update(ctx, v); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("更新志愿者失败", zap.String("volunteer_id", id), zap.Error(err))
		}
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *volunteerService) UpdateSkills(ctx context.Context, id string, req *dto.UpdateVolunteerSkillsRequest) (*dto.VolunteerResponse, error) {
	if _, err := s.getVolunteer(ctx, id); err != nil {
		return nil, err
	}

	skills := make([]model.VolunteerSkill, 0, len(req.Skills))
	ids := make([]string, 0, len(req.Skills))
	seen := make(map[string]bool, len(req.Skills))
	for _, in := range req.Skills {
		p, err := model.ParseProficiency(in.Proficiency)
		if err != nil {
			return nil, newValidationError("skills", err.Error())
		}
		if seen[in.SkillID] {
			return nil, newValidationError("skills", "技能重复: "+in.SkillID)
		}
		seen[in.SkillID] = true
		ids = append(ids, in.SkillID)
		skills = append(skills, model.VolunteerSkill{VolunteerID: id, SkillID: in.SkillID, Proficiency: p})
	}

	if len(ids) > 0 {
		found, err := s.repo.Skill.ListByIDs(ctx, ids)
		if err != nil {
			s.logger.Error("查询技能失败", zap.Error(err))
			return nil, err
		}
		if len(found) != len(ids) {
			return nil, ErrSkillNotFound
		}
	}

	if err := s.repo.Volunteer.ReplaceSkills(ctx, id, skills); err != nil {
		s.logger.Error("更新志愿者技能失败", zap.String("volunteer_id", id), zap.Error(err))
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *volunteerService) UpdateAvailability(ctx context.Context, id string, req *dto.UpdateAvailabilityRequest) (*dto.VolunteerResponse, error) {
	if _, err := s.getVolunteer(ctx, id); err != nil {
		return nil, err
	}

	slots := make([]model.VolunteerAvailability, 0, len(req.Slots))
	for i, in := range req.Slots {
		slot, err := toAvailabilitySlot(in)
		if err != nil {
			return nil, newValidationError(fmt.Sprintf("slots[%d]", i), err.Error())
		}
		slot.VolunteerID = id
		slot.Source = model.AvailabilitySourceManual
		slots = append(slots, slot)
	}

	if err := s.repo.Volunteer.ReplaceAvailability(ctx, id, model.AvailabilitySourceManual, slots); err != nil {
		s.logger.Error("更新可用时间失败", zap.String("volunteer_id", id), zap.Error(err))
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *volunteerService) ImportAvailabilityICS(ctx context.Context, id string, reader io.Reader) (*dto.ImportAvailabilityResponse, error) {
	if _, err := s.getVolunteer(ctx, id); err != nil {
		return nil, err
	}

	parsed, err := ParseAvailabilityICS(reader, id, s.now(), s.settings.Current(ctx).Location)
	if err != nil {
		return nil, newValidationError("file", err.Error())
	}

	if err := s.repo.Volunteer.ReplaceAvailability(ctx, id, model.AvailabilitySourceICS, parsed.Slots); err != nil {
		s.logger.Error("导入可用时间失败", zap.String("volunteer_id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("ICS 可用时间已导入",
		zap.String("volunteer_id", id),
		zap.Int("imported", len(parsed.Slots)),
		zap.Int("skipped", parsed.Skipped),
	)

	resp := &dto.ImportAvailabilityResponse{
		Imported: len(parsed.Slots),
		Skipped:  parsed.Skipped,
		Slots:    make([]dto.AvailabilitySlotResponse, 0, len(parsed.Slots)),
	}
	for i := range parsed.Slots {
		resp.Slots = append(resp.Slots, toAvailabilitySlotResponse(&parsed.Slots[i]))
	}
	return resp, nil
}

// ── 内部辅助 ──

func (s *volunteerService) getVolunteer(ctx context.Context, id string) (*model.Volunteer, error) {
	v, err := s.repo.Volunteer.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVolunteerNotFound
		}
		s.logger.Error("查询志愿者失败", zap.String("volunteer_id", id), zap.Error(err))
		return nil, err
	}
	return v, nil
}

// toAvailabilitySlot 校验并转换手工录入的时间段
func toAvailabilitySlot(in dto.AvailabilitySlotInput) (model.VolunteerAvailability, error) {
	var slot model.VolunteerAvailability
	if (in.DayOfWeek == nil) == (in.SpecificDate == nil) {
		return slot, errors.New("day_of_week 与 specific_date 必须且只能提供一个")
	}
	if in.DayOfWeek != nil {
		if *in.DayOfWeek < 1 || *in.DayOfWeek > 7 {
			return slot, errors.New("day_of_week 取值范围为 1..7")
		}
		day := *in.DayOfWeek
		slot.DayOfWeek = &day
	} else {
		d, err := time.Parse("2006-01-02", *in.SpecificDate)
		if err != nil {
			return slot, errors.New("specific_date 格式应为 YYYY-MM-DD")
		}
		slot.SpecificDate = &d
	}

	from, err := parseClock(in.StartTime)
	if err != nil || from >= minutesPerDay {
		return slot, errors.New("start_time 格式应为 HH:MM")
	}
	to, err := parseClock(in.EndTime)
	if err != nil {
		return slot, errors.New("end_time 格式应为 HH:MM")
	}
	if to <= from {
		return slot, errors.New("end_time 必须晚于 start_time")
	}
	slot.StartTime = fmt.Sprintf("%02d:%02d", from/60, from%60)
	slot.EndTime = fmt.Sprintf("%02d:%02d", to/60, to%60)
	return slot, nil
}

func toVolunteerResponse(v *model.Volunteer) dto.VolunteerResponse {
	resp := dto.VolunteerResponse{
		ID:               v.VolunteerID,
		Name:             v.Name,
		Email:            v.Email,
		Phone:            v.Phone,
		Latitude:         v.Latitude,
		Longitude:        v.Longitude,
		ReliabilityScore: v.ReliabilityScore,
		IsActive:         v.IsActive,
		Skills:           make([]dto.VolunteerSkillResponse, 0, len(v.Skills)),
		Availability:     make([]dto.AvailabilitySlotResponse, 0, len(v.Availabilities)),
		CreatedAt:        formatTime(v.CreatedAt),
	}
	for _, sk := range v.Skills {
		item := dto.VolunteerSkillResponse{SkillID: sk.SkillID, Proficiency: string(sk.Proficiency)}
		if sk.Skill != nil {
			item.Name = sk.Skill.Name
		}
		resp.Skills = append(resp.Skills, item)
	}
	for i := range v.Availabilities {
		resp.Availability = append(resp.Availability, toAvailabilitySlotResponse(&v.Availabilities[i]))
	}
	return resp
}

func toAvailabilitySlotResponse(a *model.VolunteerAvailability) dto.AvailabilitySlotResponse {
	resp := dto.AvailabilitySlotResponse{
		ID:        a.AvailabilityID,
		DayOfWeek: a.DayOfWeek,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		Source:    a.Source,
	}
	if a.SpecificDate != nil {
		d := formatDate(*a.SpecificDate)
		resp.SpecificDate = &d
	}
	return resp
}
