package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/service"
	"volunteer-hub/pkg/response"
)

// EventHandler 活动模块 HTTP 处理器
type EventHandler struct {
	eventSvc service.EventService
}

// NewEventHandler 创建 EventHandler
func NewEventHandler(eventSvc service.EventService) *EventHandler {
	return &EventHandler{eventSvc: eventSvc}
}

// CreateEvent 创建活动（草稿）
// POST /api/v1/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	op, ok := MustGetOperator(c)
	if !ok {
		return
	}

	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	event, err := h.eventSvc.Create(c.Request.Context(), &req, op)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.Created(c, event)
}

// GetEvent 获取活动详情
// GET /api/v1/events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, err := h.eventSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, event)
}

// ListEvents 活动列表
// GET /api/v1/events
func (h *EventHandler) ListEvents(c *gin.Context) {
	var req dto.EventListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.eventSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// UpdateStatus 发布 / 开始 / 取消活动
// PUT /api/v1/events/:id/status
func (h *EventHandler) UpdateStatus(c *gin.Context) {
	op, ok := MustGetOperator(c)
	if !ok {
		return
	}

	var req dto.UpdateEventStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	event, err := h.eventSvc.UpdateStatus(c.Request.Context(), c.Param("id"), &req, op)
	if err != nil {
		h.handleEventError(c, err)
		return
	}

	response.OK(c, event)
}

func (h *EventHandler) handleEventError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrInvalidStatusTransition):
		response.Conflict(c, 20002, "不允许的活动状态变更")
	case errors.Is(err, service.ErrSkillNotFound):
		response.BadRequest(c, 20003, "技能不存在")
	default:
		response.InternalError(c)
	}
}
