package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/service"
	"volunteer-hub/pkg/response"
)

// VolunteerHandler 志愿者模块 HTTP 处理器
type VolunteerHandler struct {
	volunteerSvc service.VolunteerService
}

// NewVolunteerHandler 创建 VolunteerHandler
func NewVolunteerHandler(volunteerSvc service.VolunteerService) *VolunteerHandler {
	return &VolunteerHandler{volunteerSvc: volunteerSvc}
}

// CreateVolunteer 登记志愿者
// POST /api/v1/volunteers
func (h *VolunteerHandler) CreateVolunteer(c *gin.Context) {
	op, ok := MustGetOperator(c)
	if !ok {
		return
	}

	var req dto.CreateVolunteerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	v, err := h.volunteerSvc.Create(c.Request.Context(), &req, op)
	if err != nil {
		h.handleVolunteerError(c, err)
		return
	}

	response.Created(c, v)
}

// GetVolunteer 获取志愿者详情（含技能与可用时间）
// GET /api/v1/volunteers/:id
func (h *VolunteerHandler) GetVolunteer(c *gin.Context) {
	id := c.Param("id")
	if _, ok := MustAccessVolunteer(c, id); !ok {
		return
	}

	v, err := h.volunteerSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleVolunteerError(c, err)
		return
	}

	response.OK(c, v)
}

// ListVolunteers 志愿者列表
// GET /api/v1/volunteers
func (h *VolunteerHandler) ListVolunteers(c *gin.Context) {
	var req dto.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.volunteerSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleVolunteerError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// SetActive 启用 / 停用志愿者（乐观锁）
// PUT /api/v1/volunteers/:id/active
func (h *VolunteerHandler) SetActive(c *gin.Context) {
	op, ok := MustGetOperator(c)
	if !ok {
		return
	}

	var req dto.UpdateVolunteerActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	v, err := h.volunteerSvc.SetActive(c.Request.Context(), c.Param("id"), &req, op)
	if err != nil {
		h.handleVolunteerError(c, err)
		return
	}

	response.OK(c, v)
}

// UpdateSkills 全量替换技能
// PUT /api/v1/volunteers/:id/skills
func (h *VolunteerHandler) UpdateSkills(c *gin.Context) {
	id := c.Param("id")
	if _, ok := MustAccessVolunteer(c, id); !ok {
		return
	}

	var req dto.UpdateVolunteerSkillsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	v, err := h.volunteerSvc.UpdateSkills(c.Request.Context(), id, &req)
	if err != nil {
		h.handleVolunteerError(c, err)
		return
	}

	response.OK(c, v)
}

// UpdateAvailability 全量替换手工录入的可用时间
// PUT /api/v1/volunteers/:id/availability
func (h *VolunteerHandler) UpdateAvailability(c *gin.Context) {
	id := c.Param("id")
	if _, ok := MustAccessVolunteer(c, id); !ok {
		return
	}

	var req dto.UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	v, err := h.volunteerSvc.UpdateAvailability(c.Request.Context(), id, &req)
	if err != nil {
		h.handleVolunteerError(c, err)
		return
	}

	response.OK(c, v)
}

// ImportAvailability 导入 ICS 日历作为可用时间
// POST /api/v1/volunteers/:id/availability/import
//
// 支持两种方式：
//   - 文件上传: multipart/form-data, field="file"
//   - URL 导入: application/json, body={"url": "..."}
func (h *VolunteerHandler) ImportAvailability(c *gin.Context) {
	id := c.Param("id")
	if _, ok := MustAccessVolunteer(c, id); !ok {
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err == nil {
		defer file.Close()
		resp, err := h.volunteerSvc.ImportAvailabilityICS(c.Request.Context(), id, file)
		if err != nil {
			h.handleVolunteerError(c, err)
			return
		}
		response.Created(c, resp)
		return
	}

	var req dto.ImportAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 22001, "请上传 ICS 文件或提供 ICS URL")
		return
	}

	body, err := service.FetchICSContent(req.URL)
	if err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 22002, "ICS URL 获取失败", err.Error())
		return
	}
	defer body.Close()

	resp, err := h.volunteerSvc.ImportAvailabilityICS(c.Request.Context(), id, body)
	if err != nil {
		h.handleVolunteerError(c, err)
		return
	}
	response.Created(c, resp)
}

func (h *VolunteerHandler) handleVolunteerError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrSkillNotFound):
		response.BadRequest(c, 21002, "技能不存在")
	default:
		response.InternalError(c)
	}
}
