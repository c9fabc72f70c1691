package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/service"
	"volunteer-hub/pkg/response"
)

// AssignmentHandler 派遣模块 HTTP 处理器
type AssignmentHandler struct {
	assignmentSvc service.AssignmentService
}

// NewAssignmentHandler 创建 AssignmentHandler
func NewAssignmentHandler(assignmentSvc service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentSvc: assignmentSvc}
}

// CreateAssignment 派遣志愿者到活动
// POST /api/v1/events/:id/assignments
func (h *AssignmentHandler) CreateAssignment(c *gin.Context) {
	op, ok := MustGetOperator(c)
	if !ok {
		return
	}

	var req dto.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	a, err := h.assignmentSvc.Create(c.Request.Context(), c.Param("id"), &req, op)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.Created(c, a)
}

// UpdateStatus 确认 / 拒绝 / 取消 / 完成派遣
// PUT /api/v1/assignments/:id/status
//
// 志愿者只能确认或拒绝本人的派遣，权限在业务层判定
func (h *AssignmentHandler) UpdateStatus(c *gin.Context) {
	op, ok := MustGetOperator(c)
	if !ok {
		return
	}

	var req dto.UpdateAssignmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	a, err := h.assignmentSvc.UpdateStatus(c.Request.Context(), c.Param("id"), &req, op)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.OK(c, a)
}

// ListByEvent 活动派遣名单
// GET /api/v1/events/:id/assignments
func (h *AssignmentHandler) ListByEvent(c *gin.Context) {
	list, err := h.assignmentSvc.ListByEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.OK(c, list)
}

func (h *AssignmentHandler) handleAssignmentError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		response.NotFound(c, 24001, "派遣记录不存在")
	case errors.Is(err, service.ErrDuplicateAssignment):
		response.Conflict(c, 24002, "志愿者已被派遣到该活动")
	case errors.Is(err, service.ErrEventFull):
		response.Conflict(c, 24003, "活动人数已满")
	case errors.Is(err, service.ErrEventNotPublished):
		response.BadRequest(c, 24004, "活动未发布")
	case errors.Is(err, service.ErrVolunteerInactive):
		response.BadRequest(c, 24005, "志愿者已停用")
	case errors.Is(err, service.ErrInvalidStatusTransition):
		response.Conflict(c, 24006, "不允许的派遣状态变更")
	default:
		response.InternalError(c)
	}
}
