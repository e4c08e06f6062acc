package service

import (
	"errors"
	"strings"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindUnauthorized
	KindPasswordExpired
	KindTokenExpired
	KindTokenInvalid
	KindDelivery
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindPasswordExpired:
		return "password_expired"
	case KindTokenExpired:
		return "token_expired"
	case KindTokenInvalid:
		return "token_invalid"
	case KindDelivery:
		return "delivery"
	default:
		return "internal"
	}
}

// Code 对外的机器可读错误码；Delivery 与 Internal 对外不区分
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindConflict:
		return "CONFLICT"
	case KindNotFound:
		return "NOT_FOUND"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindPasswordExpired:
		return "PASSWORD_EXPIRED"
	case KindTokenExpired:
		return "TOKEN_EXPIRED"
	case KindTokenInvalid:
		return "TOKEN_INVALID"
	default:
		return "INTERNAL_ERROR"
	}
}

// Error 业务错误；Message 可直接返回给调用方，Err 只进日志
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(k Kind, msg string) error { return &Error{Kind: k, Message: msg} }

func Validation(msg string) error      { return newErr(KindValidation, msg) }
func Conflict(msg string) error        { return newErr(KindConflict, msg) }
func NotFound(msg string) error        { return newErr(KindNotFound, msg) }
func Unauthorized(msg string) error    { return newErr(KindUnauthorized, msg) }
func PasswordExpired(msg string) error { return newErr(KindPasswordExpired, msg) }
func TokenExpired(msg string) error    { return newErr(KindTokenExpired, msg) }
func TokenInvalid(msg string) error    { return newErr(KindTokenInvalid, msg) }

func Internal(msg string, err error) error { return &Error{Kind: KindInternal, Message: msg, Err: err} }
func Delivery(msg string, err error) error { return &Error{Kind: KindDelivery, Message: msg, Err: err} }

// Validations 多条校验信息合并成一条
func Validations(msgs []string) error {
	return Validation(strings.Join(msgs, ", "))
}

// KindOf 非 *Error 一律按 internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage 对外文案；未知错误不暴露细节
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Internal server error."
}
