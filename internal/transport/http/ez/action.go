package ez

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fortirent-auth/internal/service"
	mdw "fortirent-auth/internal/transport/http/middleware"
	resp "fortirent-auth/internal/transport/http/response"
)

// EZ 轻封装：在一个分组上注册动作接口，统一绑定、错误映射和日志
type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, l *zap.Logger) EZ { return EZ{g: g, log: l} }

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param 取
)

// Out 成功结果；Data 平铺进响应体
type Out struct {
	Status  int // 0 表示 200
	Message string
	Data    map[string]any
}

// Action I 为入参
type Action[I any] struct {
	Method  string // "GET" | "POST" | "PUT" | "DELETE"
	Path    string // 例："/auth/login"、"/auth/password-reset/:token"
	Binder  Binder
	Handler func(c *gin.Context, in *I) (Out, error)
}

// RegisterAction 在当前 EZ 下注册动作接口
func RegisterAction[I any](e EZ, a Action[I]) {
	h := func(c *gin.Context) {
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		}
		if bindErr != nil {
			// 入参形状错误在进入业务层之前就拦下
			var tooLarge *http.MaxBytesError
			if errors.As(bindErr, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, resp.Error(resp.CodeTooLarge, ""))
				return
			}
			c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, "Invalid request body."))
			return
		}

		out, err := a.Handler(c, &in)
		if err != nil {
			e.WriteError(c, err)
			return
		}
		status := out.Status
		if status == 0 {
			status = http.StatusOK
		}
		c.JSON(status, resp.OK(out.Message, out.Data))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}

// WriteError 业务错误 -> HTTP；内部错误只记日志，对外给通用文案
func (e EZ) WriteError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	status := StatusOf(kind)
	if status >= http.StatusInternalServerError {
		e.log.Error("request failed",
			zap.String("rid", c.GetString(mdw.KeyRequestID)),
			zap.String("path", c.FullPath()),
			zap.Stringer("kind", kind),
			zap.Error(err),
		)
	}
	c.JSON(status, resp.Error(kind.Code(), service.PublicMessage(err)))
}

// StatusOf 错误种类到 HTTP 状态码
func StatusOf(k service.Kind) int {
	switch k {
	case service.KindValidation, service.KindConflict, service.KindTokenExpired, service.KindTokenInvalid:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindPasswordExpired:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
