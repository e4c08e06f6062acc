package service

import (
	"fmt"
	"time"

	"fortirent-auth/pkg/utils"
)

// Policy 密码与重置相关的规则参数
type Policy struct {
	MinPasswordLength int
	// MaxPasswordLength 按字节计；0 表示不限
	MaxPasswordLength int
	MaxPasswordAge    time.Duration
	// HistorySize 新密码不得与最近 N 个密码（含当前）相同
	HistorySize         int
	ResetBaseURL        string
	ResetThrottleLimit  int
	ResetThrottleWindow time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MinPasswordLength:   10,
		MaxPasswordLength:   utils.MaxPasswordBytes,
		MaxPasswordAge:      90 * 24 * time.Hour,
		HistorySize:         5,
		ResetThrottleLimit:  3,
		ResetThrottleWindow: 15 * time.Minute,
	}
}

// IsReused 哈希带盐，只能逐个用明文校验
func IsReused(h utils.PasswordHasher, plain string, hashes []string) bool {
	for _, hashed := range hashes {
		if hashed != "" && h.Verify(plain, hashed) {
			return true
		}
	}
	return false
}

func (p Policy) Expired(age time.Duration) bool {
	return p.MaxPasswordAge > 0 && age > p.MaxPasswordAge
}

// tooLong 超长密码在哈希前拒绝，不能落到 500
func (p Policy) tooLong(plain string) error {
	if p.MaxPasswordLength > 0 && len(plain) > p.MaxPasswordLength {
		return Validation(fmt.Sprintf("Password must be at most %d bytes.", p.MaxPasswordLength))
	}
	return nil
}

func (p Policy) reuseMessage() string {
	return fmt.Sprintf("Password cannot be the same as any of your last %d passwords.", max(1, p.HistorySize))
}

func (p Policy) maxAgeDays() int { return int(p.MaxPasswordAge / (24 * time.Hour)) }
