package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	resp "fortirent-auth/internal/transport/http/response"
)

// Timeout 给下游（DB、邮件、redis）一个统一截止时间；handler 没写响应时回 504
func Timeout(d time.Duration, l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return
		}
		l.Warn("request deadline exceeded",
			zap.String("rid", c.GetString(KeyRequestID)),
			zap.String("path", c.FullPath()),
			zap.Duration("limit", d),
		)
		if !c.Writer.Written() {
			resp.Abort(c, http.StatusGatewayTimeout, resp.CodeTimeout, "")
		}
	}
}
