package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/auth"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/chat"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/config"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/metrics"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/mw"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/service"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/ws"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, db *gorm.DB, engine *chat.Engine) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	// 控制单个 IP+路由的速率,内网部署也挡一下失控客户端。
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := NewHandler(
		service.NewUserService(db, cfg),
		service.NewChatService(db),
		service.NewGroupService(db),
	)

	api := r.Group("/api/v1")
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.RefreshToken)

	// 需要 Bearer Token 的业务接口。
	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(cfg, db))
	authed.GET("/conversations", h.ListConversations)
	authed.GET("/chats/:peerID/messages", h.DirectHistory)
	authed.GET("/chats/:peerID/pinned", h.DirectPinned)
	authed.POST("/groups", h.CreateGroup)
	authed.POST("/groups/:id/members", h.AddGroupMember)
	authed.GET("/groups/:id/messages", h.GroupHistory)
	authed.GET("/groups/:id/pinned", h.GroupPinned)
	authed.GET("/notifications", h.ListNotifications)
	authed.POST("/notifications/:id/read", h.ReadNotification)

	r.GET("/ws", ws.Serve(engine, db, cfg))

	return r
}
