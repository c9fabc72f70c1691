package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"volunteer-hub/internal/service"
	pkgerrors "volunteer-hub/pkg/errors"
	"volunteer-hub/pkg/response"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Match        *MatchHandler
	Event        *EventHandler
	Volunteer    *VolunteerHandler
	Skill        *SkillHandler
	Assignment   *AssignmentHandler
	Attendance   *AttendanceHandler
	History      *HistoryHandler
	Notification *NotificationHandler
	SystemConfig *SystemConfigHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Match:        NewMatchHandler(svc.Match),
		Event:        NewEventHandler(svc.Event),
		Volunteer:    NewVolunteerHandler(svc.Volunteer),
		Skill:        NewSkillHandler(svc.Skill),
		Assignment:   NewAssignmentHandler(svc.Assignment),
		Attendance:   NewAttendanceHandler(svc.Attendance, svc.History),
		History:      NewHistoryHandler(svc.History),
		Notification: NewNotificationHandler(svc.Notification),
		SystemConfig: NewSystemConfigHandler(svc.SystemConfig),
	}
}

// handleCommonError 处理各模块共用的错误，已写入响应时返回 true
func handleCommonError(c *gin.Context, err error) bool {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", ve.Error())
	case errors.Is(err, service.ErrValidation):
		response.BadRequest(c, 10001, "参数校验失败")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 10005, "数据已被其他操作修改，请刷新后重试")
	case errors.Is(err, pkgerrors.ErrLockTimeout):
		response.Conflict(c, 10006, "操作正在处理中，请稍后重试")
	case errors.Is(err, service.ErrEventNotFound):
		response.NotFound(c, 20001, "活动不存在")
	case errors.Is(err, service.ErrVolunteerNotFound):
		response.NotFound(c, 21001, "志愿者不存在")
	default:
		return false
	}
	return true
}
