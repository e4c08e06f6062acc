package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

type Role string

const (
	RoleLandlord Role = "Landlord"
	RoleTenant   Role = "Tenant"
	RoleAdmin    Role = "Admin"
)

// SelfService 注册时只允许 Landlord / Tenant
func (r Role) SelfService() bool { return r == RoleLandlord || r == RoleTenant }

func (r Role) Valid() bool { return r.SelfService() || r == RoleAdmin }

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already in use")
)

type User struct {
	ID                string
	FullName          string
	Email             string
	PhoneNumber       string
	Role              Role
	ProfilePicture    *string
	PasswordHash      string
	PasswordChangedAt *time.Time
	// 最近的历史哈希（新的在前），仅在按凭据读取时填充
	PasswordHistory []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PasswordAge 以 passwordChangedAt 为准，旧数据回退到 createdAt
func (u *User) PasswordAge(now time.Time) time.Duration {
	since := u.CreatedAt
	if u.PasswordChangedAt != nil && !u.PasswordChangedAt.IsZero() {
		since = *u.PasswordChangedAt
	}
	return now.Sub(since)
}

// PublicUser 对外视图，不含任何密码相关字段
type PublicUser struct {
	ID                string     `json:"_id"`
	FullName          string     `json:"fullName"`
	Email             string     `json:"email"`
	PhoneNumber       string     `json:"phoneNumber"`
	Role              Role       `json:"role"`
	ProfilePicture    *string    `json:"profilePicture"`
	PasswordChangedAt *time.Time `json:"passwordChangedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:                u.ID,
		FullName:          u.FullName,
		Email:             u.Email,
		PhoneNumber:       u.PhoneNumber,
		Role:              u.Role,
		ProfilePicture:    u.ProfilePicture,
		PasswordChangedAt: u.PasswordChangedAt,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// ProfilePatch nil 表示不修改
type ProfilePatch struct {
	FullName    *string
	Email       *string
	PhoneNumber *string
}

func (p ProfilePatch) Empty() bool { return p.FullName == nil && p.Email == nil && p.PhoneNumber == nil }

// PasswordChange 写入新哈希，并把它追加到历史（保留 Keep 条）
type PasswordChange struct {
	Hash      string
	ChangedAt time.Time
	Keep      int
}

type ListFilter struct {
	Query  string
	Offset int
	Limit  int
}

type UserRepository interface {
	// Create 邮箱冲突返回 ErrEmailTaken
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// 以下三个会带出 PasswordHash；FindCredentialsByID 额外带出 history 条历史哈希
	FindCredentialsByEmail(ctx context.Context, email string) (*User, error)
	FindCredentialsByEmailAndRole(ctx context.Context, email string, role Role) (*User, error)
	FindCredentialsByID(ctx context.Context, id string, history int) (*User, error)
	UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (*User, error)
	UpdatePassword(ctx context.Context, id string, change PasswordChange) error
	List(ctx context.Context, f ListFilter) ([]User, int64, error)
}
