package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fortirent-auth/internal/core/server"
	"fortirent-auth/internal/domain"
	"fortirent-auth/internal/service"
	"fortirent-auth/internal/transport/http/handler"
	mdw "fortirent-auth/internal/transport/http/middleware"
)

func NewAdminEngine(l *zap.Logger, opts server.Options, authn mdw.Authenticator, dir *service.UserDirectory) *gin.Engine {
	r := server.NewRouter(l, opts)

	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(50, 100),
		mdw.ConcurrencyLimit(50, 2*time.Second),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(10*time.Second, l),
		mdw.Recovery(l),
		mdw.Metrics("/health", "/metrics"),
		mdw.AccessLog(l),
	)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"success": true}) })
	r.GET("/metrics", mdw.MetricsHandler())

	// 管理端 v1（统一要求 Admin 角色）
	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthSession(authn, domain.RoleAdmin))

	handler.MountAdminActions(admin, dir, l)
	return r
}
