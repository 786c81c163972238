package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/auth"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/service"
)

// Handler 聚合所有 HTTP handler,依赖注入 service 层。
type Handler struct {
	userSvc  *service.UserService
	chatSvc  *service.ChatService
	groupSvc *service.GroupService
}

func NewHandler(userSvc *service.UserService, chatSvc *service.ChatService, groupSvc *service.GroupService) *Handler {
	return &Handler{userSvc: userSvc, chatSvc: chatSvc, groupSvc: groupSvc}
}

// Register 处理用户注册请求。
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(req.Username) < 2 || len(req.Username) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
		return
	}
	if len(req.Password) < 4 || len(req.Password) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
		return
	}
	result, err := h.userSvc.Register(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "username taken"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("register")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": result.ID, "username": result.Username})
}

// Login 处理用户登录请求。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("login")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"user":          gin.H{"id": result.User.ID, "username": result.User.Username},
	})
}

// RefreshToken 处理 token 刷新请求。
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.RefreshTokens(req.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("refresh token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": result.AccessToken, "refresh_token": result.RefreshToken})
}

// ListConversations 返回最近会话摘要,含未读数和最后一条消息预览。
func (h *Handler) ListConversations(c *gin.Context) {
	out, err := h.chatSvc.RecentConversations(auth.GetUserID(c))
	if err != nil {
		log.Error().Err(err).Uint("user_id", auth.GetUserID(c)).Msg("list conversations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

// DirectHistory 返回与指定用户的私聊历史。
func (h *Handler) DirectHistory(c *gin.Context) {
	peerID, ok := pathID(c, "peerID")
	if !ok {
		return
	}
	msgs, err := h.chatSvc.DirectHistory(auth.GetUserID(c), peerID, queryLimit(c))
	if err != nil {
		log.Error().Err(err).Uint("peer_id", peerID).Msg("direct history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GroupHistory 返回群聊历史。
func (h *Handler) GroupHistory(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.chatSvc.GroupHistory(auth.GetUserID(c), groupID, queryLimit(c))
	if err != nil {
		log.Error().Err(err).Uint("group_id", groupID).Msg("group history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// DirectPinned 返回私聊会话的置顶消息。
func (h *Handler) DirectPinned(c *gin.Context) {
	peerID, ok := pathID(c, "peerID")
	if !ok {
		return
	}
	msgs, err := h.chatSvc.PinnedDirect(auth.GetUserID(c), peerID)
	if err != nil {
		log.Error().Err(err).Uint("peer_id", peerID).Msg("direct pinned")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list pinned messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GroupPinned 返回群聊的置顶消息。
func (h *Handler) GroupPinned(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.chatSvc.PinnedGroup(auth.GetUserID(c), groupID)
	if err != nil {
		log.Error().Err(err).Uint("group_id", groupID).Msg("group pinned")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list pinned messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// CreateGroup 创建群组。
func (h *Handler) CreateGroup(c *gin.Context) {
	var req struct {
		Name      string `json:"name"`
		MemberIDs []uint `json:"memberIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group name"})
		return
	}
	group, err := h.groupSvc.Create(req.Name, auth.GetUserID(c), req.MemberIDs)
	if err != nil {
		log.Error().Err(err).Str("name", req.Name).Msg("create group")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create group"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": group.ID, "name": group.Name})
}

// AddGroupMember 把用户加入群组。
func (h *Handler) AddGroupMember(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		UserID uint   `json:"userId"`
		Role   string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := h.groupSvc.AddMember(groupID, req.UserID, req.Role); err != nil {
		if errors.Is(err, service.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		log.Error().Err(err).Uint("group_id", groupID).Msg("add group member")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add member"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ListNotifications 返回当前用户的通知。
func (h *Handler) ListNotifications(c *gin.Context) {
	out, err := h.chatSvc.Notifications(auth.GetUserID(c), queryLimit(c))
	if err != nil {
		log.Error().Err(err).Uint("user_id", auth.GetUserID(c)).Msg("list notifications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

// ReadNotification 把单条通知置为已读。
func (h *Handler) ReadNotification(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.chatSvc.MarkNotificationRead(auth.GetUserID(c), id); err != nil {
		if errors.Is(err, service.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		log.Error().Err(err).Uint("notification_id", id).Msg("read notification")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update notification"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func pathID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(v), true
}

func queryLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	return limit
}
