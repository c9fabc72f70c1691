package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"volunteer-hub/config"
	"volunteer-hub/internal/model"
	"volunteer-hub/internal/repository"
	pkgerrors "volunteer-hub/pkg/errors"
)

var errMockDuplicateKey = errors.New("duplicate key value violates unique constraint")

// ── 聚合 ──

type mockRepos struct {
	volunteers    *mockVolunteerRepo
	skills        *mockSkillRepo
	events        *mockEventRepo
	assignments   *mockAssignmentRepo
	histories     *mockHistoryRepo
	notifications *mockNotificationRepo
	systemConfig  *mockSystemConfigRepo
}

func newMockRepository() (*repository.Repository, *mockRepos) {
	m := &mockRepos{
		volunteers:    newMockVolunteerRepo(),
		skills:        newMockSkillRepo(),
		events:        newMockEventRepo(),
		assignments:   newMockAssignmentRepo(),
		histories:     newMockHistoryRepo(),
		notifications: newMockNotificationRepo(),
		systemConfig:  newMockSystemConfigRepo(),
	}
	m.assignments.volunteers = m.volunteers
	m.histories.events = m.events

	repo := &repository.Repository{
		Volunteer:    m.volunteers,
		Skill:        m.skills,
		Event:        m.events,
		Assignment:   m.assignments,
		History:      m.histories,
		Notification: m.notifications,
		SystemConfig: m.systemConfig,
	}
	return repo, m
}

// ── 固定参数 ──

type staticSettings struct{ s Settings }

func (p staticSettings) Current(context.Context) Settings { return p.s }

func testSettings() Settings {
	return Settings{
		Weights:             config.MatchWeights{Skills: 40, Availability: 25, Location: 20, Reliability: 15},
		Bands:               config.QualityBands{Excellent: 90, Good: 70, Fair: 50},
		LocationRadiusKm:    50,
		LocationFloor:       10,
		NewcomerReliability: 50,
		CheckInLead:         30 * time.Minute,
		Location:            time.UTC,
		Workers:             4,
		DefaultLimit:        10,
		MaxLimit:            100,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// ── Mock VolunteerRepository ──

type mockVolunteerRepo struct {
	mu         sync.Mutex
	volunteers map[string]*model.Volunteer
	seq        int
}

func newMockVolunteerRepo() *mockVolunteerRepo {
	return &mockVolunteerRepo{volunteers: make(map[string]*model.Volunteer)}
}

func (m *mockVolunteerRepo) Create(_ context.Context, v *model.Volunteer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.VolunteerID == "" {
		m.seq++
		v.VolunteerID = fmt.Sprintf("vol-%03d", m.seq)
	}
	if v.Version == 0 {
		v.Version = 1
	}
	cp := *v
	m.volunteers[v.VolunteerID] = &cp
	return nil
}

func (m *mockVolunteerRepo) GetByID(_ context.Context, id string) (*model.Volunteer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.volunteers[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockVolunteerRepo) Update(_ context.Context, v *model.Volunteer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.volunteers[v.VolunteerID]
	if !ok || stored.Version != v.Version {
		return pkgerrors.ErrOptimisticLock
	}
	v.Version++
	cp := *v
	m.volunteers[v.VolunteerID] = &cp
	return nil
}

func (m *mockVolunteerRepo) UpdateReliability(_ context.Context, id string, score *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.volunteers[id]; ok {
		v.ReliabilityScore = score
	}
	return nil
}

func (m *mockVolunteerRepo) List(_ context.Context, offset, limit int) ([]model.Volunteer, int64, error) {
	all, _ := m.sorted(false)
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Volunteer{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockVolunteerRepo) ListActive(_ context.Context) ([]model.Volunteer, error) {
	return m.sorted(true)
}

func (m *mockVolunteerRepo) sorted(activeOnly bool) ([]model.Volunteer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]model.Volunteer, 0, len(m.volunteers))
	for _, v := range m.volunteers {
		if activeOnly && !v.IsActive {
			continue
		}
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VolunteerID < result[j].VolunteerID })
	return result, nil
}

func (m *mockVolunteerRepo) ReplaceSkills(_ context.Context, volunteerID string, skills []model.VolunteerSkill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.volunteers[volunteerID]; ok {
		v.Skills = append([]model.VolunteerSkill(nil), skills...)
	}
	return nil
}

func (m *mockVolunteerRepo) ReplaceAvailability(_ context.Context, volunteerID, source string, slots []model.VolunteerAvailability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.volunteers[volunteerID]
	if !ok {
		return nil
	}
	kept := make([]model.VolunteerAvailability, 0, len(v.Availabilities)+len(slots))
	for _, a := range v.Availabilities {
		if a.Source != source {
			kept = append(kept, a)
		}
	}
	v.Availabilities = append(kept, slots...)
	return nil
}

// ── Mock SkillRepository ──

type mockSkillRepo struct {
	mu     sync.Mutex
	skills map[string]*model.Skill
}

func newMockSkillRepo() *mockSkillRepo {
	return &mockSkillRepo{skills: make(map[string]*model.Skill)}
}

func (m *mockSkillRepo) Create(_ context.Context, skill *model.Skill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if skill.SkillID == "" {
		skill.SkillID = "skill-" + skill.Name
	}
	cp := *skill
	m.skills[skill.SkillID] = &cp
	return nil
}

func (m *mockSkillRepo) GetByID(_ context.Context, id string) (*model.Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.skills[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSkillRepo) GetByName(_ context.Context, name string) (*model.Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.skills {
		if s.Name == name {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSkillRepo) ListByIDs(_ context.Context, ids []string) ([]model.Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Skill
	for _, id := range ids {
		if s, ok := m.skills[id]; ok {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *mockSkillRepo) List(_ context.Context, category string) ([]model.Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Skill
	for _, s := range m.skills {
		if category != "" && s.Category != category {
			continue
		}
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ── Mock EventRepository ──

type mockEventRepo struct {
	mu     sync.Mutex
	events map[string]*model.Event
	seq    int
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{events: make(map[string]*model.Event)}
}

func (m *mockEventRepo) Create(_ context.Context, event *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.EventID == "" {
		m.seq++
		event.EventID = fmt.Sprintf("evt-%03d", m.seq)
	}
	if event.Version == 0 {
		event.Version = 1
	}
	for i := range event.RequiredSkills {
		event.RequiredSkills[i].EventID = event.EventID
	}
	cp := *event
	m.events[event.EventID] = &cp
	return nil
}

func (m *mockEventRepo) GetByID(_ context.Context, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEventRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Event, error) {
	return m.GetByID(ctx, id)
}

func (m *mockEventRepo) GetByIDForShare(ctx context.Context, id string) (*model.Event, error) {
	return m.GetByID(ctx, id)
}

func (m *mockEventRepo) UpdateStatus(_ context.Context, event *model.Event, status model.EventStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.events[event.EventID]
	if !ok || stored.Version != event.Version {
		return pkgerrors.ErrOptimisticLock
	}
	stored.Status = status
	stored.Version++
	event.Status = status
	event.Version = stored.Version
	return nil
}

func (m *mockEventRepo) UpdateCurrentVolunteers(_ context.Context, id string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[id]; ok {
		e.CurrentVolunteers = count
	}
	return nil
}

func (m *mockEventRepo) List(_ context.Context, status string, offset, limit int) ([]model.Event, int64, error) {
	all := m.filter(func(e *model.Event) bool { return status == "" || string(e.Status) == status })
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Event{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockEventRepo) ListPublishedUpcoming(_ context.Context, after time.Time) ([]model.Event, error) {
	return m.filter(func(e *model.Event) bool {
		return e.Status == model.EventStatusPublished && e.StartTime.After(after)
	}), nil
}

func (m *mockEventRepo) ListDueForFinalize(_ context.Context, before time.Time) ([]model.Event, error) {
	return m.filter(func(e *model.Event) bool {
		return (e.Status == model.EventStatusPublished || e.Status == model.EventStatusInProgress) &&
			!e.EndTime.After(before)
	}), nil
}

func (m *mockEventRepo) filter(keep func(*model.Event) bool) []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]model.Event, 0, len(m.events))
	for _, e := range m.events {
		if keep(e) {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].StartTime.Before(result[j].StartTime)
		}
		return result[i].EventID < result[j].EventID
	})
	return result
}

// ── Mock AssignmentRepository ──

type mockAssignmentRepo struct {
	mu          sync.Mutex
	assignments map[string]*model.Assignment
	volunteers  *mockVolunteerRepo
	seq         int
}

func newMockAssignmentRepo() *mockAssignmentRepo {
	return &mockAssignmentRepo{assignments: make(map[string]*model.Assignment)}
}

func (m *mockAssignmentRepo) Create(_ context.Context, a *model.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.assignments {
		if existing.EventID == a.EventID && existing.VolunteerID == a.VolunteerID {
			return errMockDuplicateKey
		}
	}
	if a.AssignmentID == "" {
		m.seq++
		a.AssignmentID = fmt.Sprintf("asg-%03d", m.seq)
	}
	cp := *a
	m.assignments[a.AssignmentID] = &cp
	return nil
}

func (m *mockAssignmentRepo) GetByID(_ context.Context, id string) (*model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.assignments[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) FindByPair(_ context.Context, eventID, volunteerID string) (*model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignments {
		if a.EventID == eventID && a.VolunteerID == volunteerID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) Update(_ context.Context, a *model.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[a.AssignmentID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *a
	m.assignments[a.AssignmentID] = &cp
	return nil
}

func (m *mockAssignmentRepo) ListByEvent(ctx context.Context, eventID string) ([]model.Assignment, error) {
	list := m.filter(func(a *model.Assignment) bool { return a.EventID == eventID })
	if m.volunteers != nil {
		for i := range list {
			if v, err := m.volunteers.GetByID(ctx, list[i].VolunteerID); err == nil {
				list[i].Volunteer = v
			}
		}
	}
	return list, nil
}

func (m *mockAssignmentRepo) ListActiveByEvent(_ context.Context, eventID string) ([]model.Assignment, error) {
	return m.filter(func(a *model.Assignment) bool { return a.EventID == eventID && a.Status.IsActive() }), nil
}

func (m *mockAssignmentRepo) ListActiveEventIDsByVolunteer(_ context.Context, volunteerID string) ([]string, error) {
	var ids []string
	for _, a := range m.filter(func(a *model.Assignment) bool { return a.VolunteerID == volunteerID && a.Status.IsActive() }) {
		ids = append(ids, a.EventID)
	}
	return ids, nil
}

func (m *mockAssignmentRepo) CountByStatus(_ context.Context, eventID string, status model.AssignmentStatus) (int64, error) {
	return int64(len(m.filter(func(a *model.Assignment) bool { return a.EventID == eventID && a.Status == status }))), nil
}

func (m *mockAssignmentRepo) filter(keep func(*model.Assignment) bool) []model.Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Assignment
	for _, a := range m.assignments {
		if keep(a) {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VolunteerID < result[j].VolunteerID })
	return result
}

// ── Mock HistoryRepository ──

type mockHistoryRepo struct {
	mu          sync.Mutex
	records     map[string]*model.ParticipationHistory // key: eventID|volunteerID
	events      *mockEventRepo
	upsertCalls int
	failUpsert  error
	seq         int
	onFind      func(eventID, volunteerID string) // FindByPair 读取前回调，用于构造并发交错
}

func newMockHistoryRepo() *mockHistoryRepo {
	return &mockHistoryRepo{records: make(map[string]*model.ParticipationHistory)}
}

func historyKey(eventID, volunteerID string) string { return eventID + "|" + volunteerID }

func (m *mockHistoryRepo) FindByPair(_ context.Context, eventID, volunteerID string) (*model.ParticipationHistory, error) {
	if m.onFind != nil {
		m.onFind(eventID, volunteerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.records[historyKey(eventID, volunteerID)]; ok {
		cp := *h
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockHistoryRepo) Upsert(_ context.Context, h *model.ParticipationHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.failUpsert != nil {
		return m.failUpsert
	}
	key := historyKey(h.EventID, h.VolunteerID)
	if existing, ok := m.records[key]; ok {
		if existing.Version != h.Version {
			return pkgerrors.ErrOptimisticLock
		}
		h.HistoryID = existing.HistoryID
		h.Version = existing.Version + 1
	} else {
		m.seq++
		h.HistoryID = fmt.Sprintf("his-%03d", m.seq)
		h.Version = 1
	}
	cp := *h
	cp.Event = nil
	m.records[key] = &cp
	return nil
}

func (m *mockHistoryRepo) ListByEvent(_ context.Context, eventID string) ([]model.ParticipationHistory, error) {
	return m.filter(func(h *model.ParticipationHistory) bool { return h.EventID == eventID }), nil
}

func (m *mockHistoryRepo) ListByVolunteer(ctx context.Context, volunteerID string, offset, limit int) ([]model.ParticipationHistory, int64, error) {
	all := m.filter(func(h *model.ParticipationHistory) bool { return h.VolunteerID == volunteerID })
	sort.Slice(all, func(i, j int) bool { return all[i].ParticipationDate.After(all[j].ParticipationDate) })
	total := int64(len(all))
	if offset >= len(all) {
		return []model.ParticipationHistory{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	page := all[offset:end]
	if m.events != nil {
		for i := range page {
			if e, err := m.events.GetByID(ctx, page[i].EventID); err == nil {
				page[i].Event = e
			}
		}
	}
	return page, total, nil
}

func (m *mockHistoryRepo) ListAllByVolunteer(_ context.Context, volunteerID string) ([]model.ParticipationHistory, error) {
	return m.filter(func(h *model.ParticipationHistory) bool { return h.VolunteerID == volunteerID }), nil
}

func (m *mockHistoryRepo) filter(keep func(*model.ParticipationHistory) bool) []model.ParticipationHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.ParticipationHistory
	for _, h := range m.records {
		if keep(h) {
			result = append(result, *h)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VolunteerID < result[j].VolunteerID })
	return result
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	mu            sync.Mutex
	notifications []*model.Notification
	failCreate    error
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{}
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	if n.NotificationID == "" {
		n.NotificationID = fmt.Sprintf("ntf-%03d", len(m.notifications)+1)
	}
	cp := *n
	m.notifications = append(m.notifications, &cp)
	return nil
}

func (m *mockNotificationRepo) ListByRecipient(_ context.Context, recipientID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Notification
	for _, n := range m.notifications {
		if n.RecipientID != recipientID || (unreadOnly && n.IsRead) {
			continue
		}
		all = append(all, *n)
	}
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Notification{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockNotificationRepo) CountUnread(_ context.Context, recipientID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, item := range m.notifications {
		if item.RecipientID == recipientID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id, recipientID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.NotificationID == id && n.RecipientID == recipientID {
			n.IsRead = true
			n.ReadAt = &at
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockNotificationRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

// ── Mock SystemConfigRepository ──

type mockSystemConfigRepo struct {
	cfg *model.SystemConfig
}

func newMockSystemConfigRepo() *mockSystemConfigRepo {
	return &mockSystemConfigRepo{}
}

func (m *mockSystemConfigRepo) Get(_ context.Context) (*model.SystemConfig, error) {
	if m.cfg == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m.cfg
	return &cp, nil
}

func (m *mockSystemConfigRepo) Save(_ context.Context, cfg *model.SystemConfig) error {
	cfg.UpdatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cp := *cfg
	m.cfg = &cp
	return nil
}

func (m *mockSystemConfigRepo) Delete(_ context.Context) error {
	m.cfg = nil
	return nil
}

// ── Mock Notifier ──

type mockNotifier struct {
	mu       sync.Mutex
	messages []NotificationMessage
}

func (n *mockNotifier) Notify(msg NotificationMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
}

func (n *mockNotifier) byType(t model.NotificationType) []NotificationMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var result []NotificationMessage
	for _, m := range n.messages {
		if m.Type == t {
			result = append(result, m)
		}
	}
	return result
}

// ── Mock ReliabilityCache ──

type mockCache struct {
	mu          sync.Mutex
	data        map[string][]byte
	invalidated []string
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (c *mockCache) GetReliability(_ context.Context, id string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.data[id]
	return d, ok, nil
}

func (c *mockCache) SetReliability(_ context.Context, id string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[id] = data
	return nil
}

func (c *mockCache) InvalidateReliability(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

// ── 测试数据 ──

func intPtr(v int) *int              { return &v }
func floatPtr(v float64) *float64    { return &v }
func strPtr(v string) *string        { return &v }
func boolPtr(v bool) *bool           { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func seedVolunteer(m *mockRepos, id string, mutate ...func(*model.Volunteer)) *model.Volunteer {
	v := &model.Volunteer{VolunteerID: id, Name: "志愿者-" + id, Email: id + "@example.org", IsActive: true}
	for _, fn := range mutate {
		fn(v)
	}
	_ = m.volunteers.Create(context.Background(), v)
	return v
}

func seedEvent(m *mockRepos, id string, start, end time.Time, status model.EventStatus, mutate ...func(*model.Event)) *model.Event {
	e := &model.Event{
		EventID:       id,
		Title:         "活动-" + id,
		StartTime:     start,
		EndTime:       end,
		MaxVolunteers: 10,
		Urgency:       model.UrgencyNormal,
		Status:        status,
	}
	for _, fn := range mutate {
		fn(e)
	}
	_ = m.events.Create(context.Background(), e)
	return e
}

func seedAssignment(m *mockRepos, eventID, volunteerID string, status model.AssignmentStatus) *model.Assignment {
	a := &model.Assignment{EventID: eventID, VolunteerID: volunteerID, Status: status}
	_ = m.assignments.Create(context.Background(), a)
	return a
}
