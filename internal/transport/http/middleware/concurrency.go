package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	resp "fortirent-auth/internal/transport/http/response"
)

// ConcurrencyLimit 同时在处理的请求不超过 max；排队最多 wait，超时回 503。
// bcrypt 哈希吃 CPU，排队过久不如让客户端稍后重试
func ConcurrencyLimit(max int64, wait time.Duration) gin.HandlerFunc {
	sem := semaphore.NewWeighted(max)
	return func(c *gin.Context) {
		if !sem.TryAcquire(1) {
			ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
			err := sem.Acquire(ctx, 1)
			cancel()
			if err != nil {
				c.Header("Retry-After", "1")
				resp.Abort(c, http.StatusServiceUnavailable, resp.CodeServerError, "Server busy.")
				return
			}
		}
		defer sem.Release(1)
		c.Next()
	}
}
