package handler

import (
	"github.com/gin-gonic/gin"

	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/service"
	"volunteer-hub/pkg/response"
)

const defaultTrendMonths = 12

// HistoryHandler 参与历史与信誉分 HTTP 处理器
type HistoryHandler struct {
	historySvc service.HistoryService
}

// NewHistoryHandler 创建 HistoryHandler
func NewHistoryHandler(historySvc service.HistoryService) *HistoryHandler {
	return &HistoryHandler{historySvc: historySvc}
}

// GetHistory 志愿者参与历史（按参与时间倒序）
// GET /api/v1/volunteers/:id/history
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	id := c.Param("id")
	if _, ok := MustAccessVolunteer(c, id); !ok {
		return
	}

	var req dto.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.historySvc.GetVolunteerHistory(c.Request.Context(), id, &req)
	if err != nil {
		h.handleHistoryError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetReliability 志愿者信誉分
// GET /api/v1/volunteers/:id/reliability
func (h *HistoryHandler) GetReliability(c *gin.Context) {
	id := c.Param("id")
	if _, ok := MustAccessVolunteer(c, id); !ok {
		return
	}

	resp, err := h.historySvc.GetReliability(c.Request.Context(), id)
	if err != nil {
		h.handleHistoryError(c, err)
		return
	}

	response.OK(c, resp)
}

// GetTrends 志愿者月度参与趋势
// GET /api/v1/volunteers/:id/trends
func (h *HistoryHandler) GetTrends(c *gin.Context) {
	id := c.Param("id")
	if _, ok := MustAccessVolunteer(c, id); !ok {
		return
	}

	var req dto.TrendsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	if req.Months == 0 {
		req.Months = defaultTrendMonths
	}

	trends, err := h.historySvc.GetMonthlyTrends(c.Request.Context(), id, req.Months)
	if err != nil {
		h.handleHistoryError(c, err)
		return
	}

	response.OK(c, trends)
}

func (h *HistoryHandler) handleHistoryError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	response.InternalError(c)
}
