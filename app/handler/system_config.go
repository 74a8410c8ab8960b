package handler

import (
	"net/http"

	"vidrelay/app/service"
	"vidrelay/app/task"

	"github.com/gin-gonic/gin"
)

// SystemConfigHandler 运行参数与统计处理器
type SystemConfigHandler struct {
	sysConfig *service.SystemConfigService
	stats     *service.StatsService
	users     *service.UserService
	gate      *task.Gate
}

// NewSystemConfigHandler 创建系统配置处理器
func NewSystemConfigHandler(sysConfig *service.SystemConfigService, stats *service.StatsService, users *service.UserService, gate *task.Gate) *SystemConfigHandler {
	return &SystemConfigHandler{
		sysConfig: sysConfig,
		stats:     stats,
		users:     users,
		gate:      gate,
	}
}

// ConcurrencyRequest 修改并发上限的请求
type ConcurrencyRequest struct {
	Limit int `json:"limit" binding:"required,min=1"`
}

// ConcurrencyResponse 当前并发状态
type ConcurrencyResponse struct {
	Limit  int `json:"limit"`
	Active int `json:"active"`
	Queued int `json:"queued"`
}

func (h *SystemConfigHandler) concurrency() ConcurrencyResponse {
	return ConcurrencyResponse{
		Limit:  h.gate.Limit(),
		Active: h.gate.ActiveCount(),
		Queued: len(h.gate.QueuedIDs()),
	}
}

// GetConcurrency 获取并发上限
func (h *SystemConfigHandler) GetConcurrency(c *gin.Context) {
	success(c, h.concurrency(), "success")
}

// SetConcurrency 修改并发上限并持久化
func (h *SystemConfigHandler) SetConcurrency(c *gin.Context) {
	var req ConcurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	if err := h.sysConfig.SetConcurrencyLimit(c.Request.Context(), req.Limit); err != nil {
		fail(c, http.StatusInternalServerError, "保存并发上限失败: "+err.Error())
		return
	}
	success(c, h.concurrency(), "更新成功")
}

// GetStats 获取全局统计
func (h *SystemConfigHandler) GetStats(c *gin.Context) {
	global, err := h.stats.Global(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "读取统计失败: "+err.Error())
		return
	}
	users, err := h.users.Count(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "读取用户数失败: "+err.Error())
		return
	}
	success(c, gin.H{
		"total_videos": global.TotalVideos,
		"total_bytes":  global.TotalBytes,
		"total_millis": global.TotalMillis,
		"users":        users,
		"concurrency":  h.concurrency(),
	}, "success")
}
