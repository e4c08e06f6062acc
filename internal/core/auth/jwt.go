package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// 令牌用途，写在 typ 声明里；会话令牌与重置令牌互不通用
const (
	PurposeSession = "session"
	PurposeReset   = "reset"
)

const clockSkew = 30 * time.Second

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type SessionClaims struct {
	UID     string `json:"_id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Purpose string `json:"typ"`
	jwt.RegisteredClaims
}

type ResetClaims struct {
	UID     string `json:"userId"`
	Purpose string `json:"typ"`
	jwt.RegisteredClaims
}

type JWTer struct {
	Secret     []byte
	Issuer     string
	SessionTTL time.Duration
	ResetTTL   time.Duration
	// Now 为空时用 time.Now
	Now func() time.Time
}

func (j *JWTer) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

func (j *JWTer) registered(ttl time.Duration) jwt.RegisteredClaims {
	now := j.now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    j.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (j *JWTer) IssueSession(uid, email, role string) (string, error) {
	return j.sign(SessionClaims{
		UID:              uid,
		Email:            email,
		Role:             role,
		Purpose:          PurposeSession,
		RegisteredClaims: j.registered(j.SessionTTL),
	})
}

func (j *JWTer) IssueReset(uid string) (string, error) {
	return j.sign(ResetClaims{
		UID:              uid,
		Purpose:          PurposeReset,
		RegisteredClaims: j.registered(j.ResetTTL),
	})
}

func (j *JWTer) ParseSession(tokenStr string) (*SessionClaims, error) {
	c := &SessionClaims{}
	if err := j.parse(tokenStr, c); err != nil {
		return nil, err
	}
	if c.Purpose != PurposeSession || c.UID == "" {
		return nil, ErrTokenInvalid
	}
	return c, nil
}

func (j *JWTer) ParseReset(tokenStr string) (*ResetClaims, error) {
	c := &ResetClaims{}
	if err := j.parse(tokenStr, c); err != nil {
		return nil, err
	}
	if c.Purpose != PurposeReset || c.UID == "" {
		return nil, ErrTokenInvalid
	}
	return c, nil
}

func (j *JWTer) sign(c jwt.Claims) (string, error) {
	if len(j.Secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(j.Secret)
}

// parse 过期与其它失败分开返回
func (j *JWTer) parse(tokenStr string, c jwt.Claims) error {
	t, err := jwt.ParseWithClaims(tokenStr, c, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected alg %v", token.Header["alg"])
		}
		return j.Secret, nil
	},
		jwt.WithIssuer(j.Issuer),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case err != nil:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	case !t.Valid:
		return ErrTokenInvalid
	}
	return nil
}
