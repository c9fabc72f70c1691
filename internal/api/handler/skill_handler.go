package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"volunteer-hub/internal/dto"
	"volunteer-hub/internal/service"
	"volunteer-hub/pkg/response"
)

// SkillHandler 技能目录 HTTP 处理器
type SkillHandler struct {
	skillSvc service.SkillService
}

// NewSkillHandler 创建 SkillHandler
func NewSkillHandler(skillSvc service.SkillService) *SkillHandler {
	return &SkillHandler{skillSvc: skillSvc}
}

// ListSkills 技能列表，可按分类筛选
// GET /api/v1/skills
func (h *SkillHandler) ListSkills(c *gin.Context) {
	var req dto.SkillListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, err := h.skillSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleSkillError(c, err)
		return
	}

	response.OK(c, list)
}

// CreateSkill 新增技能
// POST /api/v1/skills
func (h *SkillHandler) CreateSkill(c *gin.Context) {
	var req dto.CreateSkillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	skill, err := h.skillSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleSkillError(c, err)
		return
	}

	response.Created(c, skill)
}

func (h *SkillHandler) handleSkillError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrSkillNameExists):
		response.Conflict(c, 23001, "技能名称已存在")
	case errors.Is(err, service.ErrSkillNotFound):
		response.NotFound(c, 23002, "技能不存在")
	default:
		response.InternalError(c)
	}
}
