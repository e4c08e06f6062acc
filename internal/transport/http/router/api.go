package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fortirent-auth/internal/core/server"
	"fortirent-auth/internal/service"
	"fortirent-auth/internal/transport/http/handler"
	mdw "fortirent-auth/internal/transport/http/middleware"
)

func NewAPIEngine(l *zap.Logger, opts server.Options, svc *service.AuthService) *gin.Engine {
	r := server.NewRouter(l, opts)

	// 中间件
	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300, 2*time.Second),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(10*time.Second, l),
		mdw.Recovery(l),
		mdw.Metrics("/health", "/metrics"),
		mdw.AccessLog(l),
	)

	// 健康检查 / 指标
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"success": true}) })
	r.GET("/metrics", mdw.MetricsHandler())

	// 前缀；认证接口按 IP 再限一次，防撞库
	api := r.Group("/api/v1")
	api.Use(mdw.RateLimitPerIP(5, 20, 10*time.Minute))

	// 鉴权分组（/auth/me 等必须挂这里，才能拿到当前用户）
	authUser := api.Group("")
	authUser.Use(mdw.AuthSession(svc, ""))

	handler.MountAuthActions(api, authUser, svc, l)
	return r
}
