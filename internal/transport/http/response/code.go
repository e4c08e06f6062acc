package response

// 机器可读错误码，放在失败响应的 code 字段
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeValidation      = "VALIDATION_ERROR"
	CodeConflict        = "CONFLICT"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodePasswordExpired = "PASSWORD_EXPIRED"
	CodeTokenExpired    = "TOKEN_EXPIRED"
	CodeTokenInvalid    = "TOKEN_INVALID"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodeTooLarge        = "PAYLOAD_TOO_LARGE"
	CodeTimeout         = "TIMEOUT"
	CodeServerError     = "INTERNAL_ERROR"
)

// CodeMsgMap 调用方未给 message 时的默认文案
var CodeMsgMap = map[string]string{
	CodeBadRequest:      "Bad request.",
	CodeValidation:      "Invalid input.",
	CodeConflict:        "Conflict.",
	CodeUnauthorized:    "Not authorized.",
	CodeForbidden:       "Forbidden.",
	CodeNotFound:        "Not found.",
	CodePasswordExpired: "Your password has expired.",
	CodeTokenExpired:    "Token expired.",
	CodeTokenInvalid:    "Token invalid.",
	CodeTooManyRequests: "Too many requests.",
	CodeTooLarge:        "Request body too large.",
	CodeTimeout:         "Request timed out.",
	CodeServerError:     "Internal server error.",
}
