package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "fortirent-auth/internal/transport/http/response"
)

// MaxBodyBytes 声明了超长 Content-Length 的直接 413；
// 分块上传等未声明长度的由 MaxBytesReader 截断，读取方见到 *http.MaxBytesError
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			resp.Abort(c, http.StatusRequestEntityTooLarge, resp.CodeTooLarge, "")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
