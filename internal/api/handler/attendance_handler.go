package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/service"
	"volunteer-hub/pkg/response"
)

// AttendanceHandler 签到签退与活动结算 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
	historySvc    service.HistoryService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService, historySvc service.HistoryService) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc, historySvc: historySvc}
}

// bindOptionalJSON 请求体为空时保留零值
func bindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return false
	}
	return true
}

// CheckIn 签到；重复签到返回 already_checked_in=true
// POST /api/v1/events/:id/check-in
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	op, ok := MustGetOperator(c)
	if !ok {
		return
	}

	var req dto.CheckInRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	volunteerID, ok := resolveAttendee(c, op, req.VolunteerID)
	if !ok {
		return
	}

	resp, err := h.attendanceSvc.CheckIn(c.Request.Context(), c.Param("id"), volunteerID)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, resp)
}

// CheckOut 签退并计算工时
// POST /api/v1/events/:id/check-out
func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	op, ok := MustGetOperator(c)
	if !ok {
		return
	}

	var req dto.CheckOutRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	volunteerID, ok := resolveAttendee(c, op, req.VolunteerID)
	if !ok {
		return
	}

	resp, err := h.attendanceSvc.CheckOut(c.Request.Context(), c.Param("id"), volunteerID, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, resp)
}

// UpdateAttendance 管理员修正出勤记录
// PUT /api/v1/events/:id/attendance/:volunteer_id
func (h *AttendanceHandler) UpdateAttendance(c *gin.Context) {
	var req dto.UpdateAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	resp, err := h.attendanceSvc.UpdateAttendance(c.Request.Context(), c.Param("id"), c.Param("volunteer_id"), &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, resp)
}

// MarkNoShow 标记缺席
// POST /api/v1/events/:id/no-show/:volunteer_id
func (h *AttendanceHandler) MarkNoShow(c *gin.Context) {
	var req dto.MarkNoShowRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	resp, err := h.attendanceSvc.MarkNoShow(c.Request.Context(), c.Param("id"), c.Param("volunteer_id"), req.Reason)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, resp)
}

// FinalizeEvent 活动结算
// POST /api/v1/events/:id/finalize
func (h *AttendanceHandler) FinalizeEvent(c *gin.Context) {
	summary, err := h.attendanceSvc.FinalizeEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, summary)
}

// GetEventAttendance 活动出勤名册与统计
// GET /api/v1/events/:id/attendance
func (h *AttendanceHandler) GetEventAttendance(c *gin.Context) {
	resp, err := h.historySvc.GetEventAttendance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, resp)
}

// GetParticipation 单个志愿者在活动中的参与记录
// GET /api/v1/events/:id/attendance/:volunteer_id
func (h *AttendanceHandler) GetParticipation(c *gin.Context) {
	volunteerID := c.Param("volunteer_id")
	if _, ok := MustAccessVolunteer(c, volunteerID); !ok {
		return
	}

	resp, err := h.historySvc.GetParticipation(c.Request.Context(), c.Param("id"), volunteerID)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, resp)
}

func (h *AttendanceHandler) handleAttendanceError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrCheckInWindowClosed):
		response.BadRequest(c, 25001, "不在签到时间窗口内")
	case errors.Is(err, service.ErrNoActiveAssignment):
		response.BadRequest(c, 25002, "志愿者未被派遣到该活动")
	case errors.Is(err, service.ErrNotCheckedIn):
		response.BadRequest(c, 25003, "尚未签到")
	case errors.Is(err, service.ErrAlreadyCheckedOut):
		response.Conflict(c, 25004, "已签退")
	case errors.Is(err, service.ErrEventNotPublished):
		response.BadRequest(c, 25005, "活动未发布")
	case errors.Is(err, service.ErrEventAlreadyFinalized):
		response.Conflict(c, 25006, "活动已结算")
	case errors.Is(err, service.ErrInvalidStatusTransition):
		response.Conflict(c, 25007, "活动当前状态不可结算")
	case errors.Is(err, service.ErrHistoryNotFound):
		response.NotFound(c, 25008, "参与记录不存在")
	default:
		response.InternalError(c)
	}
}
