package handler

import (
	"github.com/gin-gonic/gin"

	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/service"
	"volunteer-hub/pkg/response"
)

// MatchHandler 匹配模块 HTTP 处理器
type MatchHandler struct {
	matchSvc service.MatchService
}

// NewMatchHandler 创建 MatchHandler
func NewMatchHandler(matchSvc service.MatchService) *MatchHandler {
	return &MatchHandler{matchSvc: matchSvc}
}

func bindMatchQuery(c *gin.Context) (service.MatchQuery, bool) {
	var req dto.MatchQueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return service.MatchQuery{}, false
	}
	return service.MatchQuery{
		Limit:           req.Limit,
		MinScore:        req.MinScore,
		IncludeAssigned: req.IncludeAssigned,
	}, true
}

// VolunteersForEvent 为活动推荐志愿者
// GET /api/v1/events/:id/matches
func (h *MatchHandler) VolunteersForEvent(c *gin.Context) {
	q, ok := bindMatchQuery(c)
	if !ok {
		return
	}

	list, err := h.matchSvc.FindVolunteersForEvent(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		h.handleMatchError(c, err)
		return
	}

	response.OK(c, list)
}

// EventsForVolunteer 为志愿者推荐活动
// GET /api/v1/volunteers/:id/matches
func (h *MatchHandler) EventsForVolunteer(c *gin.Context) {
	volunteerID := c.Param("id")
	if _, ok := MustAccessVolunteer(c, volunteerID); !ok {
		return
	}
	q, ok := bindMatchQuery(c)
	if !ok {
		return
	}

	list, err := h.matchSvc.FindEventsForVolunteer(c.Request.Context(), volunteerID, q)
	if err != nil {
		h.handleMatchError(c, err)
		return
	}

	response.OK(c, list)
}

func (h *MatchHandler) handleMatchError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	response.InternalError(c)
}
