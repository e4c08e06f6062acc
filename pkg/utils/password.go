package utils

import (
	"errors"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// 支持的哈希方案
const (
	SchemeBcrypt   = "bcrypt"
	SchemeArgon2id = "argon2id"
)

// MinBcryptCost 低于该值的 cost 一律抬到该值
const MinBcryptCost = bcrypt.DefaultCost

// MaxPasswordBytes bcrypt 只接受 72 字节以内的输入
const MaxPasswordBytes = 72

var ErrUnknownScheme = errors.New("unknown password hash scheme")

// PasswordHasher 单向哈希 + 校验；Verify 不匹配时返回 false，不返回错误
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hashed string) bool
}

type BcryptHasher struct{ Cost int }

func (h BcryptHasher) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (BcryptHasher) Verify(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

type Argon2idHasher struct{ Params *argon2id.Params }

func (h Argon2idHasher) Hash(plain string) (string, error) {
	p := h.Params
	if p == nil {
		p = argon2id.DefaultParams
	}
	return argon2id.CreateHash(plain, p)
}

func (Argon2idHasher) Verify(plain, hashed string) bool {
	ok, err := argon2id.ComparePasswordAndHash(plain, hashed)
	return err == nil && ok
}

// SchemeHasher 用配置的方案生成新哈希；校验时按哈希前缀分派，
// 切换方案后旧哈希仍可登录
type SchemeHasher struct {
	primary  PasswordHasher
	bcrypt   BcryptHasher
	argon2id Argon2idHasher
}

func NewPasswordHasher(scheme string, bcryptCost int) (*SchemeHasher, error) {
	h := &SchemeHasher{bcrypt: BcryptHasher{Cost: bcryptCost}}
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "", SchemeBcrypt:
		h.primary = h.bcrypt
	case SchemeArgon2id:
		h.primary = h.argon2id
	default:
		return nil, ErrUnknownScheme
	}
	return h, nil
}

func (h *SchemeHasher) Hash(plain string) (string, error) { return h.primary.Hash(plain) }

func (h *SchemeHasher) Verify(plain, hashed string) bool {
	switch {
	case strings.HasPrefix(hashed, "$argon2id$"):
		return h.argon2id.Verify(plain, hashed)
	case strings.HasPrefix(hashed, "$2"):
		return h.bcrypt.Verify(plain, hashed)
	default:
		return false
	}
}
