package handler

import (
	"net/http"
	"time"

	"vidrelay/app/auth"
	"vidrelay/app/config"
	"vidrelay/app/middleware"

	"github.com/gin-gonic/gin"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	config     *config.Config
	jwtService *auth.JWTService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		config:     cfg,
		jwtService: auth.NewJWTService(cfg),
	}
}

// RefreshToken 刷新令牌
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "Authorization header is required")
		return
	}

	newToken, err := h.jwtService.RefreshToken(token)
	if err != nil {
		fail(c, http.StatusUnauthorized, "刷新令牌失败: "+err.Error())
		return
	}

	expireAt := time.Now().Add(time.Duration(h.config.JWT.ExpireTime) * time.Hour).Unix()

	success(c, gin.H{
		"token":     newToken,
		"expire_at": expireAt,
	}, "刷新成功")
}

// Me 获取当前管理员信息
func (h *AuthHandler) Me(c *gin.Context) {
	adminID, exists := c.Get(middleware.AdminIDKey)
	if !exists {
		fail(c, http.StatusUnauthorized, "未认证")
		return
	}
	success(c, gin.H{"admin_id": adminID}, "success")
}
