package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fortirent-auth/internal/service"
	httpez "fortirent-auth/internal/transport/http/ez"
)

// MountAdminActions 管理端接口；分组已走 AuthSession(Admin)
func MountAdminActions(admin *gin.RouterGroup, dir *service.UserDirectory, l *zap.Logger) {
	ezAdmin := httpez.New(admin, l)

	// --- GET /admin/v1/users  用户列表 ---
	type listQ struct {
		Offset int    `form:"offset,default=0"`
		Limit  int    `form:"limit,default=20"`
		Q      string `form:"q"` // 按 email/fullName 模糊搜
	}
	httpez.RegisterAction(ezAdmin, httpez.Action[listQ]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: httpez.BindQuery,
		Handler: func(c *gin.Context, in *listQ) (httpez.Out, error) {
			page, err := dir.List(c.Request.Context(), in.Q, in.Offset, in.Limit)
			if err != nil {
				return httpez.Out{}, err
			}
			return httpez.Out{Data: gin.H{
				"total":  page.Total,
				"offset": page.Offset,
				"limit":  page.Limit,
				"items":  page.Items,
			}}, nil
		},
	})

	// --- GET /admin/v1/users/:id ---
	httpez.RegisterAction(ezAdmin, httpez.Action[struct{}]{
		Method: http.MethodGet,
		Path:   "/users/:id",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (httpez.Out, error) {
			u, err := dir.Get(c.Request.Context(), c.Param("id"))
			if err != nil {
				return httpez.Out{}, err
			}
			return httpez.Out{Data: gin.H{"user": u}}, nil
		},
	})
}
