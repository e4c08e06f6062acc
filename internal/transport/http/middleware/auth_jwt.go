package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fortirent-auth/internal/domain"
	"fortirent-auth/internal/service"
	resp "fortirent-auth/internal/transport/http/response"
)

// KeyUser 请求上下文里当前用户（*domain.PublicUser）的 key
const KeyUser = "user"

// Authenticator 由 *service.AuthService 实现
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.PublicUser, error)
}

// AuthSession 校验 Bearer 会话令牌并挂上当前用户；requireRole 为空表示不限角色
func AuthSession(a Authenticator, requireRole domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			resp.Abort(c, http.StatusUnauthorized, resp.CodeUnauthorized, "Not authorized, no token")
			return
		}
		u, err := a.Authenticate(c.Request.Context(), strings.TrimSpace(strings.TrimPrefix(ah, "Bearer ")))
		if err != nil {
			if service.KindOf(err) == service.KindInternal {
				resp.Abort(c, http.StatusInternalServerError, resp.CodeServerError, "")
				return
			}
			resp.Abort(c, http.StatusUnauthorized, resp.CodeUnauthorized, service.PublicMessage(err))
			return
		}
		if requireRole != "" && u.Role != requireRole {
			resp.Abort(c, http.StatusForbidden, resp.CodeForbidden, "Forbidden")
			return
		}
		c.Set(KeyUser, u)
		c.Next()
	}
}

// CurrentUser 未经过 AuthSession 时返回 nil
func CurrentUser(c *gin.Context) *domain.PublicUser {
	v, ok := c.Get(KeyUser)
	if !ok {
		return nil
	}
	u, _ := v.(*domain.PublicUser)
	return u
}
