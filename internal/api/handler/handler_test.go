package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/service"
	pkgerrors "volunteer-hub/pkg/errors"
	"volunteer-hub/pkg/jwt"
	"volunteer-hub/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testAdminID     = "00000000-0000-0000-0000-0000000000a1"
	testVolunteerID = "00000000-0000-0000-0000-0000000000b1"
	otherVolunteer  = "00000000-0000-0000-0000-0000000000b2"
)

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock EventService ──

type mockEventService struct {
	result   *dto.EventResponse
	list     []dto.EventResponse
	total    int64
	err      error
	lastOp   service.Operator
	lastList *dto.EventListRequest
}

func (m *mockEventService) Create(_ context.Context, _ *dto.CreateEventRequest, op service.Operator) (*dto.EventResponse, error) {
	m.lastOp = op
	return m.result, m.err
}
func (m *mockEventService) GetByID(_ context.Context, _ string) (*dto.EventResponse, error) {
	return m.result, m.err
}
func (m *mockEventService) List(_ context.Context, req *dto.EventListRequest) ([]dto.EventResponse, int64, error) {
	m.lastList = req
	return m.list, m.total, m.err
}
func (m *mockEventService) UpdateStatus(_ context.Context, _ string, _ *dto.UpdateEventStatusRequest, op service.Operator) (*dto.EventResponse, error) {
	m.lastOp = op
	return m.result, m.err
}

// ── Mock MatchService ──

type mockMatchService struct {
	result    []dto.MatchResultResponse
	err       error
	lastQuery service.MatchQuery
	lastID    string
}

func (m *mockMatchService) FindVolunteersForEvent(_ context.Context, eventID string, q service.MatchQuery) ([]dto.MatchResultResponse, error) {
	m.lastID, m.lastQuery = eventID, q
	return m.result, m.err
}
func (m *mockMatchService) FindEventsForVolunteer(_ context.Context, volunteerID string, q service.MatchQuery) ([]dto.MatchResultResponse, error) {
	m.lastID, m.lastQuery = volunteerID, q
	return m.result, m.err
}

// ── Mock AttendanceService ──

type mockAttendanceService struct {
	checkIn       *dto.CheckInResponse
	participation *dto.ParticipationResponse
	summary       *dto.FinalizeSummaryResponse
	err           error
	calls         int
	lastVolunteer string
	lastReason    string
}

func (m *mockAttendanceService) CheckIn(_ context.Context, _, volunteerID string) (*dto.CheckInResponse, error) {
	m.calls++
	m.lastVolunteer = volunteerID
	return m.checkIn, m.err
}
func (m *mockAttendanceService) CheckOut(_ context.Context, _, volunteerID string, _ *dto.CheckOutRequest) (*dto.ParticipationResponse, error) {
	m.calls++
	m.lastVolunteer = volunteerID
	return m.participation, m.err
}
func (m *mockAttendanceService) UpdateAttendance(_ context.Context, _, volunteerID string, _ *dto.UpdateAttendanceRequest) (*dto.ParticipationResponse, error) {
	m.calls++
	m.lastVolunteer = volunteerID
	return m.participation, m.err
}
func (m *mockAttendanceService) MarkNoShow(_ context.Context, _, volunteerID, reason string) (*dto.ParticipationResponse, error) {
	m.calls++
	m.lastVolunteer, m.lastReason = volunteerID, reason
	return m.participation, m.err
}
func (m *mockAttendanceService) FinalizeEvent(_ context.Context, _ string) (*dto.FinalizeSummaryResponse, error) {
	m.calls++
	return m.summary, m.err
}
func (m *mockAttendanceService) SweepDueEvents(_ context.Context) ([]dto.FinalizeSummaryResponse, error) {
	return nil, m.err
}

// ── Mock AssignmentService ──

type mockAssignmentService struct {
	result *dto.AssignmentResponse
	err    error
	lastOp service.Operator
}

func (m *mockAssignmentService) Create(_ context.Context, _ string, _ *dto.CreateAssignmentRequest, op service.Operator) (*dto.AssignmentResponse, error) {
	m.lastOp = op
	return m.result, m.err
}
func (m *mockAssignmentService) UpdateStatus(_ context.Context, _ string, _ *dto.UpdateAssignmentStatusRequest, op service.Operator) (*dto.AssignmentResponse, error) {
	m.lastOp = op
	return m.result, m.err
}
func (m *mockAssignmentService) ListByEvent(_ context.Context, _ string) ([]dto.AssignmentResponse, error) {
	return nil, m.err
}

// ── Mock VolunteerService ──

type mockVolunteerService struct {
	result   *dto.VolunteerResponse
	imported *dto.ImportAvailabilityResponse
	err      error
	icsBody  string
}

func (m *mockVolunteerService) Create(_ context.Context, _ *dto.CreateVolunteerRequest, _ service.Operator) (*dto.VolunteerResponse, error) {
	return m.result, m.err
}
func (m *mockVolunteerService) GetByID(_ context.Context, _ string) (*dto.VolunteerResponse, error) {
	return m.result, m.err
}
func (m *mockVolunteerService) List(_ context.Context, _ *dto.PaginationRequest) ([]dto.VolunteerResponse, int64, error) {
	return nil, 0, m.err
}
func (m *mockVolunteerService) SetActive(_ context.Context, _ string, _ *dto.UpdateVolunteerActiveRequest, _ service.Operator) (*dto.VolunteerResponse, error) {
	return m.result, m.err
}
func (m *mockVolunteerService) UpdateSkills(_ context.Context, _ string, _ *dto.UpdateVolunteerSkillsRequest) (*dto.VolunteerResponse, error) {
	return m.result, m.err
}
func (m *mockVolunteerService) UpdateAvailability(_ context.Context, _ string, _ *dto.UpdateAvailabilityRequest) (*dto.VolunteerResponse, error) {
	return m.result, m.err
}
func (m *mockVolunteerService) ImportAvailabilityICS(_ context.Context, _ string, r io.Reader) (*dto.ImportAvailabilityResponse, error) {
	b, _ := io.ReadAll(r)
	m.icsBody = string(b)
	return m.imported, m.err
}

// ── Mock HistoryService ──

type mockHistoryService struct {
	reliability *dto.ReliabilityResponse
	attendance  *dto.EventAttendanceResponse
	err         error
	lastMonths  int
}

func (m *mockHistoryService) RefreshReliability(_ context.Context, _ string) error { return m.err }
func (m *mockHistoryService) GetVolunteerHistory(_ context.Context, _ string, _ *dto.PaginationRequest) ([]dto.ParticipationResponse, int64, error) {
	return nil, 0, m.err
}
func (m *mockHistoryService) GetReliability(_ context.Context, _ string) (*dto.ReliabilityResponse, error) {
	return m.reliability, m.err
}
func (m *mockHistoryService) GetMonthlyTrends(_ context.Context, _ string, months int) ([]dto.MonthlyTrendResponse, error) {
	m.lastMonths = months
	return []dto.MonthlyTrendResponse{}, m.err
}
func (m *mockHistoryService) GetEventAttendance(_ context.Context, _ string) (*dto.EventAttendanceResponse, error) {
	return m.attendance, m.err
}
func (m *mockHistoryService) GetParticipation(_ context.Context, _, _ string) (*dto.ParticipationResponse, error) {
	return nil, m.err
}

// ── Mock NotificationService ──

type mockNotificationService struct {
	err           error
	lastRecipient string
}

func (m *mockNotificationService) ListMine(_ context.Context, recipientID string, _ *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	m.lastRecipient = recipientID
	return []dto.NotificationResponse{}, 0, m.err
}
func (m *mockNotificationService) MarkRead(_ context.Context, _, recipientID string) error {
	m.lastRecipient = recipientID
	return m.err
}

// ── Mock SystemConfigService ──

type mockSystemConfigService struct {
	result *dto.SystemConfigResponse
	err    error
	lastOp service.Operator
}

func (m *mockSystemConfigService) Get(_ context.Context) (*dto.SystemConfigResponse, error) {
	return m.result, m.err
}
func (m *mockSystemConfigService) Update(_ context.Context, _ *dto.UpdateSystemConfigRequest, op service.Operator) (*dto.SystemConfigResponse, error) {
	m.lastOp = op
	return m.result, m.err
}
func (m *mockSystemConfigService) Reset(_ context.Context, op service.Operator) (*dto.SystemConfigResponse, error) {
	m.lastOp = op
	return m.result, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

// withAuth 模拟 JWTAuth 注入的身份
func withAuth(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("role", role)
		c.Next()
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func serve(r *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status, code int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, w.Code, w.Body.String())
	}
	if resp := parseResponse(w); resp.Code != code {
		t.Errorf("expected code %d, got %d", code, resp.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// EventHandler Tests
// ═══════════════════════════════════════════════════════════

func TestEventHandler_CreateEvent_Success(t *testing.T) {
	mock := &mockEventService{result: &dto.EventResponse{ID: "evt-1", Status: "draft"}}
	h := NewEventHandler(mock)

	r := gin.New()
	r.POST("/events", withAuth(testAdminID, jwt.RoleCoordinator), h.CreateEvent)
	w := serve(r, "POST", "/events", jsonBody(map[string]any{
		"title":          "海滩清洁",
		"start_time":     "2025-03-01T09:00:00Z",
		"end_time":       "2025-03-01T12:00:00Z",
		"max_volunteers": 10,
	}))

	expectStatus(t, w, http.StatusCreated, 0)
	if mock.lastOp.UserID != testAdminID || mock.lastOp.Role != jwt.RoleCoordinator {
		t.Errorf("operator not forwarded: %+v", mock.lastOp)
	}
}

func TestEventHandler_CreateEvent_BadJSON(t *testing.T) {
	h := NewEventHandler(&mockEventService{})

	r := gin.New()
	r.POST("/events", withAuth(testAdminID, jwt.RoleAdmin), h.CreateEvent)
	w := serve(r, "POST", "/events", bytes.NewReader([]byte("invalid json")))

	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestEventHandler_CreateEvent_Unauthenticated(t *testing.T) {
	h := NewEventHandler(&mockEventService{})

	r := gin.New()
	r.POST("/events", h.CreateEvent)
	w := serve(r, "POST", "/events", jsonBody(map[string]any{}))

	expectStatus(t, w, http.StatusUnauthorized, 10002)
}

func TestEventHandler_CreateEvent_ValidationDetails(t *testing.T) {
	mock := &mockEventService{err: &service.ValidationError{Field: "end_time", Reason: "必须晚于 start_time"}}
	h := NewEventHandler(mock)

	r := gin.New()
	r.POST("/events", withAuth(testAdminID, jwt.RoleAdmin), h.CreateEvent)
	w := serve(r, "POST", "/events", jsonBody(map[string]any{
		"title":          "夜跑补给",
		"start_time":     "2025-03-01T12:00:00Z",
		"end_time":       "2025-03-01T09:00:00Z",
		"max_volunteers": 5,
	}))

	expectStatus(t, w, http.StatusBadRequest, 10001)
	if resp := parseResponse(w); resp.Details != "end_time: 必须晚于 start_time" {
		t.Errorf("unexpected details: %q", resp.Details)
	}
}

func TestEventHandler_GetEvent_NotFound(t *testing.T) {
	h := NewEventHandler(&mockEventService{err: service.ErrEventNotFound})

	r := gin.New()
	r.GET("/events/:id", h.GetEvent)
	w := serve(r, "GET", "/events/missing", nil)

	expectStatus(t, w, http.StatusNotFound, 20001)
}

func TestEventHandler_ListEvents_Pagination(t *testing.T) {
	mock := &mockEventService{list: []dto.EventResponse{{ID: "evt-1"}}, total: 41}
	h := NewEventHandler(mock)

	r := gin.New()
	r.GET("/events", h.ListEvents)
	w := serve(r, "GET", "/events?status=published&page=2&page_size=20", nil)

	expectStatus(t, w, http.StatusOK, 0)
	if mock.lastList.Status != "published" {
		t.Errorf("status filter not bound: %q", mock.lastList.Status)
	}
	var body struct {
		Data response.PageData `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.Pagination.TotalPages != 3 || body.Data.Pagination.Page != 2 {
		t.Errorf("unexpected pagination: %+v", body.Data.Pagination)
	}
}

func TestEventHandler_UpdateStatus_InvalidTransition(t *testing.T) {
	h := NewEventHandler(&mockEventService{err: service.ErrInvalidStatusTransition})

	r := gin.New()
	r.PUT("/events/:id/status", withAuth(testAdminID, jwt.RoleAdmin), h.UpdateStatus)
	w := serve(r, "PUT", "/events/evt-1/status", jsonBody(dto.UpdateEventStatusRequest{Status: "published"}))

	expectStatus(t, w, http.StatusConflict, 20002)
}

// ═══════════════════════════════════════════════════════════
// MatchHandler Tests
// ═══════════════════════════════════════════════════════════

func TestMatchHandler_VolunteersForEvent_QueryBinding(t *testing.T) {
	mock := &mockMatchService{result: []dto.MatchResultResponse{}}
	h := NewMatchHandler(mock)

	r := gin.New()
	r.GET("/events/:id/matches", h.VolunteersForEvent)
	w := serve(r, "GET", "/events/evt-9/matches?limit=5&min_score=40&include_assigned=true", nil)

	expectStatus(t, w, http.StatusOK, 0)
	want := service.MatchQuery{Limit: 5, MinScore: 40, IncludeAssigned: true}
	if mock.lastID != "evt-9" || mock.lastQuery != want {
		t.Errorf("unexpected query: id=%s %+v", mock.lastID, mock.lastQuery)
	}
}

func TestMatchHandler_VolunteersForEvent_BadLimit(t *testing.T) {
	h := NewMatchHandler(&mockMatchService{})

	r := gin.New()
	r.GET("/events/:id/matches", h.VolunteersForEvent)

	for _, q := range []string{"limit=abc", "limit=500", "min_score=101"} {
		w := serve(r, "GET", "/events/evt-9/matches?"+q, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestMatchHandler_EventsForVolunteer_OtherVolunteerForbidden(t *testing.T) {
	mock := &mockMatchService{}
	h := NewMatchHandler(mock)

	r := gin.New()
	r.GET("/volunteers/:id/matches", withAuth(testVolunteerID, jwt.RoleVolunteer), h.EventsForVolunteer)

	w := serve(r, "GET", "/volunteers/"+otherVolunteer+"/matches", nil)
	expectStatus(t, w, http.StatusForbidden, 10003)

	w = serve(r, "GET", "/volunteers/"+testVolunteerID+"/matches", nil)
	expectStatus(t, w, http.StatusOK, 0)
	if mock.lastID != testVolunteerID {
		t.Errorf("expected own id, got %s", mock.lastID)
	}
}

// ═══════════════════════════════════════════════════════════
// AttendanceHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAttendanceHandler_CheckIn_VolunteerSelf(t *testing.T) {
	mock := &mockAttendanceService{checkIn: &dto.CheckInResponse{AlreadyCheckedIn: true}}
	h := NewAttendanceHandler(mock, &mockHistoryService{})

	r := gin.New()
	r.POST("/events/:id/check-in", withAuth(testVolunteerID, jwt.RoleVolunteer), h.CheckIn)
	w := serve(r, "POST", "/events/evt-1/check-in", nil)

	expectStatus(t, w, http.StatusOK, 0)
	if mock.lastVolunteer != testVolunteerID {
		t.Errorf("expected caller id, got %s", mock.lastVolunteer)
	}
}

func TestAttendanceHandler_CheckIn_VolunteerCannotCheckInOthers(t *testing.T) {
	mock := &mockAttendanceService{}
	h := NewAttendanceHandler(mock, &mockHistoryService{})

	r := gin.New()
	r.POST("/events/:id/check-in", withAuth(testVolunteerID, jwt.RoleVolunteer), h.CheckIn)
	w := serve(r, "POST", "/events/evt-1/check-in", jsonBody(dto.CheckInRequest{VolunteerID: otherVolunteer}))

	expectStatus(t, w, http.StatusForbidden, 10003)
	if mock.calls != 0 {
		t.Error("service must not be called")
	}
}

func TestAttendanceHandler_CheckIn_StaffMustNameVolunteer(t *testing.T) {
	mock := &mockAttendanceService{checkIn: &dto.CheckInResponse{}}
	h := NewAttendanceHandler(mock, &mockHistoryService{})

	r := gin.New()
	r.POST("/events/:id/check-in", withAuth(testAdminID, jwt.RoleAdmin), h.CheckIn)

	w := serve(r, "POST", "/events/evt-1/check-in", nil)
	expectStatus(t, w, http.StatusBadRequest, 10001)

	w = serve(r, "POST", "/events/evt-1/check-in", jsonBody(dto.CheckInRequest{VolunteerID: otherVolunteer}))
	expectStatus(t, w, http.StatusOK, 0)
	if mock.lastVolunteer != otherVolunteer {
		t.Errorf("expected %s, got %s", otherVolunteer, mock.lastVolunteer)
	}
}

func TestAttendanceHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"window closed", service.ErrCheckInWindowClosed, http.StatusBadRequest, 25001},
		{"no assignment", service.ErrNoActiveAssignment, http.StatusBadRequest, 25002},
		{"draft event", service.ErrEventNotPublished, http.StatusBadRequest, 25005},
		{"lock timeout", pkgerrors.ErrLockTimeout, http.StatusConflict, 10006},
		{"optimistic lock", pkgerrors.ErrOptimisticLock, http.StatusConflict, 10005},
		{"event missing", service.ErrEventNotFound, http.StatusNotFound, 20001},
		{"unexpected", io.ErrUnexpectedEOF, http.StatusInternalServerError, 50000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAttendanceHandler(&mockAttendanceService{err: tt.err}, &mockHistoryService{})

			r := gin.New()
			r.POST("/events/:id/check-in", withAuth(testVolunteerID, jwt.RoleVolunteer), h.CheckIn)
			w := serve(r, "POST", "/events/evt-1/check-in", nil)

			expectStatus(t, w, tt.status, tt.code)
		})
	}
}

func TestAttendanceHandler_CheckOut_AlreadyCheckedOut(t *testing.T) {
	h := NewAttendanceHandler(&mockAttendanceService{err: service.ErrAlreadyCheckedOut}, &mockHistoryService{})

	r := gin.New()
	r.POST("/events/:id/check-out", withAuth(testVolunteerID, jwt.RoleVolunteer), h.CheckOut)
	w := serve(r, "POST", "/events/evt-1/check-out", jsonBody(map[string]any{"rating": 5}))

	expectStatus(t, w, http.StatusConflict, 25004)
}

func TestAttendanceHandler_CheckOut_RatingOutOfRange(t *testing.T) {
	mock := &mockAttendanceService{}
	h := NewAttendanceHandler(mock, &mockHistoryService{})

	r := gin.New()
	r.POST("/events/:id/check-out", withAuth(testVolunteerID, jwt.RoleVolunteer), h.CheckOut)
	w := serve(r, "POST", "/events/evt-1/check-out", jsonBody(map[string]any{"rating": 9}))

	expectStatus(t, w, http.StatusBadRequest, 10001)
	if mock.calls != 0 {
		t.Error("service must not be called")
	}
}

func TestAttendanceHandler_MarkNoShow_ForwardsReason(t *testing.T) {
	mock := &mockAttendanceService{participation: &dto.ParticipationResponse{Attendance: "absent"}}
	h := NewAttendanceHandler(mock, &mockHistoryService{})

	r := gin.New()
	r.POST("/events/:id/no-show/:volunteer_id", h.MarkNoShow)
	w := serve(r, "POST", "/events/evt-1/no-show/"+testVolunteerID, jsonBody(dto.MarkNoShowRequest{Reason: "未联系上"}))

	expectStatus(t, w, http.StatusOK, 0)
	if mock.lastVolunteer != testVolunteerID || mock.lastReason != "未联系上" {
		t.Errorf("unexpected args: %s %q", mock.lastVolunteer, mock.lastReason)
	}
}

func TestAttendanceHandler_FinalizeEvent_AlreadyFinalized(t *testing.T) {
	h := NewAttendanceHandler(&mockAttendanceService{err: service.ErrEventAlreadyFinalized}, &mockHistoryService{})

	r := gin.New()
	r.POST("/events/:id/finalize", h.FinalizeEvent)
	w := serve(r, "POST", "/events/evt-1/finalize", nil)

	expectStatus(t, w, http.StatusConflict, 25006)
}

func TestAttendanceHandler_GetEventAttendance(t *testing.T) {
	hist := &mockHistoryService{attendance: &dto.EventAttendanceResponse{EventID: "evt-1"}}
	h := NewAttendanceHandler(&mockAttendanceService{}, hist)

	r := gin.New()
	r.GET("/events/:id/attendance", h.GetEventAttendance)
	w := serve(r, "GET", "/events/evt-1/attendance", nil)

	expectStatus(t, w, http.StatusOK, 0)
}

func TestAttendanceHandler_GetParticipation_NotFound(t *testing.T) {
	h := NewAttendanceHandler(&mockAttendanceService{}, &mockHistoryService{err: service.ErrHistoryNotFound})

	r := gin.New()
	r.GET("/events/:id/attendance/:volunteer_id", withAuth(testVolunteerID, jwt.RoleVolunteer), h.GetParticipation)

	expectStatus(t, serve(r, "GET", "/events/evt-1/attendance/"+testVolunteerID, nil), http.StatusNotFound, 25008)
	expectStatus(t, serve(r, "GET", "/events/evt-1/attendance/"+otherVolunteer, nil), http.StatusForbidden, 10003)
}

// ═══════════════════════════════════════════════════════════
// AssignmentHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAssignmentHandler_CreateAssignment_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   int
	}{
		{service.ErrEventFull, http.StatusConflict, 24003},
		{service.ErrDuplicateAssignment, http.StatusConflict, 24002},
		{service.ErrVolunteerInactive, http.StatusBadRequest, 24005},
		{service.ErrVolunteerNotFound, http.StatusNotFound, 21001},
	}
	for _, tt := range tests {
		h := NewAssignmentHandler(&mockAssignmentService{err: tt.err})

		r := gin.New()
		r.POST("/events/:id/assignments", withAuth(testAdminID, jwt.RoleAdmin), h.CreateAssignment)
		w := serve(r, "POST", "/events/evt-1/assignments", jsonBody(dto.CreateAssignmentRequest{VolunteerID: testVolunteerID}))

		expectStatus(t, w, tt.status, tt.code)
	}
}

func TestAssignmentHandler_CreateAssignment_VolunteerIDMustBeUUID(t *testing.T) {
	h := NewAssignmentHandler(&mockAssignmentService{})

	r := gin.New()
	r.POST("/events/:id/assignments", withAuth(testAdminID, jwt.RoleAdmin), h.CreateAssignment)
	w := serve(r, "POST", "/events/evt-1/assignments", jsonBody(dto.CreateAssignmentRequest{VolunteerID: "vol-1"}))

	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestAssignmentHandler_UpdateStatus_ForwardsOperator(t *testing.T) {
	mock := &mockAssignmentService{result: &dto.AssignmentResponse{Status: "confirmed"}}
	h := NewAssignmentHandler(mock)

	r := gin.New()
	r.PUT("/assignments/:id/status", withAuth(testVolunteerID, jwt.RoleVolunteer), h.UpdateStatus)
	w := serve(r, "PUT", "/assignments/asg-1/status", jsonBody(dto.UpdateAssignmentStatusRequest{Status: "confirmed"}))

	expectStatus(t, w, http.StatusOK, 0)
	if mock.lastOp.Role != jwt.RoleVolunteer || mock.lastOp.UserID != testVolunteerID {
		t.Errorf("unexpected operator: %+v", mock.lastOp)
	}
}

// ═══════════════════════════════════════════════════════════
// VolunteerHandler Tests
// ═══════════════════════════════════════════════════════════

func TestVolunteerHandler_GetVolunteer_Access(t *testing.T) {
	mock := &mockVolunteerService{result: &dto.VolunteerResponse{ID: testVolunteerID}}
	h := NewVolunteerHandler(mock)

	r := gin.New()
	r.GET("/volunteers/:id", withAuth(testVolunteerID, jwt.RoleVolunteer), h.GetVolunteer)

	expectStatus(t, serve(r, "GET", "/volunteers/"+otherVolunteer, nil), http.StatusForbidden, 10003)
	expectStatus(t, serve(r, "GET", "/volunteers/"+testVolunteerID, nil), http.StatusOK, 0)
}

func TestVolunteerHandler_UpdateSkills_UnknownSkill(t *testing.T) {
	h := NewVolunteerHandler(&mockVolunteerService{err: service.ErrSkillNotFound})

	r := gin.New()
	r.PUT("/volunteers/:id/skills", withAuth(testAdminID, jwt.RoleAdmin), h.UpdateSkills)
	w := serve(r, "PUT", "/volunteers/"+testVolunteerID+"/skills", jsonBody(dto.UpdateVolunteerSkillsRequest{}))

	expectStatus(t, w, http.StatusBadRequest, 21002)
}

func TestVolunteerHandler_ImportAvailability_FileUpload(t *testing.T) {
	mock := &mockVolunteerService{imported: &dto.ImportAvailabilityResponse{Imported: 1}}
	h := NewVolunteerHandler(mock)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "calendar.ics")
	part.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	mw.Close()

	r := gin.New()
	r.POST("/volunteers/:id/availability/import", withAuth(testVolunteerID, jwt.RoleVolunteer), h.ImportAvailability)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/volunteers/"+testVolunteerID+"/availability/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	expectStatus(t, w, http.StatusCreated, 0)
	if mock.icsBody != "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n" {
		t.Errorf("file content not forwarded: %q", mock.icsBody)
	}
}

func TestVolunteerHandler_ImportAvailability_NoInput(t *testing.T) {
	h := NewVolunteerHandler(&mockVolunteerService{})

	r := gin.New()
	r.POST("/volunteers/:id/availability/import", withAuth(testVolunteerID, jwt.RoleVolunteer), h.ImportAvailability)
	w := serve(r, "POST", "/volunteers/"+testVolunteerID+"/availability/import", jsonBody(map[string]any{}))

	expectStatus(t, w, http.StatusBadRequest, 22001)
}

func TestVolunteerHandler_ImportAvailability_UnsupportedURL(t *testing.T) {
	h := NewVolunteerHandler(&mockVolunteerService{})

	r := gin.New()
	r.POST("/volunteers/:id/availability/import", withAuth(testVolunteerID, jwt.RoleVolunteer), h.ImportAvailability)
	w := serve(r, "POST", "/volunteers/"+testVolunteerID+"/availability/import", jsonBody(dto.ImportAvailabilityRequest{URL: "ftp://example.com/a.ics"}))

	expectStatus(t, w, http.StatusBadRequest, 22002)
}

// ═══════════════════════════════════════════════════════════
// History / Notification / SystemConfig Tests
// ═══════════════════════════════════════════════════════════

func TestHistoryHandler_GetTrends_DefaultMonths(t *testing.T) {
	mock := &mockHistoryService{}
	h := NewHistoryHandler(mock)

	r := gin.New()
	r.GET("/volunteers/:id/trends", withAuth(testAdminID, jwt.RoleAdmin), h.GetTrends)

	expectStatus(t, serve(r, "GET", "/volunteers/"+testVolunteerID+"/trends", nil), http.StatusOK, 0)
	if mock.lastMonths != defaultTrendMonths {
		t.Errorf("expected %d months, got %d", defaultTrendMonths, mock.lastMonths)
	}

	expectStatus(t, serve(r, "GET", "/volunteers/"+testVolunteerID+"/trends?months=37", nil), http.StatusBadRequest, 10001)
}

func TestHistoryHandler_GetReliability_VolunteerNotFound(t *testing.T) {
	h := NewHistoryHandler(&mockHistoryService{err: service.ErrVolunteerNotFound})

	r := gin.New()
	r.GET("/volunteers/:id/reliability", withAuth(testAdminID, jwt.RoleAdmin), h.GetReliability)

	expectStatus(t, serve(r, "GET", "/volunteers/"+testVolunteerID+"/reliability", nil), http.StatusNotFound, 21001)
}

func TestNotificationHandler_MarkRead_NotFound(t *testing.T) {
	mock := &mockNotificationService{err: service.ErrNotificationNotFound}
	h := NewNotificationHandler(mock)

	r := gin.New()
	r.PUT("/notifications/:id/read", withAuth(testVolunteerID, jwt.RoleVolunteer), h.MarkRead)

	expectStatus(t, serve(r, "PUT", "/notifications/n-1/read", nil), http.StatusNotFound, 26001)
	if mock.lastRecipient != testVolunteerID {
		t.Errorf("expected recipient %s, got %s", testVolunteerID, mock.lastRecipient)
	}
}

func TestSystemConfigHandler_UpdateConfig(t *testing.T) {
	mock := &mockSystemConfigService{result: &dto.SystemConfigResponse{}}
	h := NewSystemConfigHandler(mock)

	r := gin.New()
	r.PUT("/system-config", withAuth(testAdminID, jwt.RoleAdmin), h.UpdateConfig)

	expectStatus(t, serve(r, "PUT", "/system-config", jsonBody(map[string]any{})), http.StatusOK, 0)
	if mock.lastOp.UserID != testAdminID {
		t.Errorf("operator not forwarded: %+v", mock.lastOp)
	}

	mock.err = &service.ValidationError{Field: "weights", Reason: "之和必须为 100"}
	expectStatus(t, serve(r, "PUT", "/system-config", jsonBody(map[string]any{})), http.StatusBadRequest, 10001)
}

func TestSystemConfigHandler_ResetConfig(t *testing.T) {
	mock := &mockSystemConfigService{result: &dto.SystemConfigResponse{}}
	h := NewSystemConfigHandler(mock)

	r := gin.New()
	r.DELETE("/system-config", withAuth(testAdminID, jwt.RoleAdmin), h.ResetConfig)

	expectStatus(t, serve(r, "DELETE", "/system-config", nil), http.StatusOK, 0)
	if mock.lastOp.Role != jwt.RoleAdmin {
		t.Errorf("operator not forwarded: %+v", mock.lastOp)
	}
}
