package response

import "github.com/gin-gonic/gin"

// Resp 统一响应体：{success, message?, code?, ...payload}
type Resp map[string]any

// New payload 的字段平铺到顶层；success/message 以参数为准
func New(success bool, msg string, payload map[string]any) Resp {
	r := make(Resp, len(payload)+2)
	for k, v := range payload {
		r[k] = v
	}
	r["success"] = success
	if msg != "" {
		r["message"] = msg
	}
	return r
}

// OK 成功响应
func OK(msg string, payload map[string]any) Resp { return New(true, msg, payload) }

// Error 失败响应（customMsg 为空时用默认文案）
func Error(code, customMsg string) Resp {
	msg := customMsg
	if msg == "" {
		msg = CodeMsgMap[code]
	}
	return New(false, msg, map[string]any{"code": code})
}

// Abort 中间件里中断请求用
func Abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, Error(code, msg))
}
