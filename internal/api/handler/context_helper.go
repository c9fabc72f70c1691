package handler

import (
	"github.com/gin-gonic/gin"

	"volunteer-hub/internal/service"
	"volunteer-hub/pkg/jwt"
	"volunteer-hub/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	v, exists := c.Get("role")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetOperator 组装当前操作人
func MustGetOperator(c *gin.Context) (service.Operator, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return service.Operator{}, false
	}
	role, ok := MustGetRole(c)
	if !ok {
		return service.Operator{}, false
	}
	return service.Operator{UserID: userID, Role: role}, true
}

// MustAccessVolunteer 志愿者只能访问本人数据，管理员与协调员不受限
func MustAccessVolunteer(c *gin.Context, volunteerID string) (service.Operator, bool) {
	op, ok := MustGetOperator(c)
	if !ok {
		return op, false
	}
	if op.Role == jwt.RoleVolunteer && op.UserID != volunteerID {
		response.Forbidden(c, 10003, "无权限访问")
		return op, false
	}
	return op, true
}

// resolveAttendee 志愿者本人签到时忽略请求体中的 volunteer_id；管理员代签必须指定
func resolveAttendee(c *gin.Context, op service.Operator, requested string) (string, bool) {
	if op.Role == jwt.RoleVolunteer {
		if requested != "" && requested != op.UserID {
			response.Forbidden(c, 10003, "无权限访问")
			return "", false
		}
		return op.UserID, true
	}
	if requested == "" {
		response.BadRequest(c, 10001, "请指定 volunteer_id")
		return "", false
	}
	return requested, true
}
