package user

import (
	"time"

	"fortirent-auth/internal/domain"
)

type UserModel struct {
	ID                string     `gorm:"primaryKey;type:varchar(32)"`
	FullName          string     `gorm:"size:128;not null"`
	Email             string     `gorm:"uniqueIndex;size:191;not null"`
	PhoneNumber       string     `gorm:"size:32;not null"`
	Role              string     `gorm:"size:16;not null;index"`
	ProfilePicture    *string    `gorm:"size:512"`
	PasswordHash      string     `gorm:"size:191;not null"`
	PasswordChangedAt *time.Time `gorm:"index"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string { return "users" }

// PasswordHistoryModel 每次设置密码追加一行
type PasswordHistoryModel struct {
	ID           uint      `gorm:"primaryKey"`
	UserID       string    `gorm:"type:varchar(32);not null;index:idx_pwd_hist_user,priority:1"`
	PasswordHash string    `gorm:"size:191;not null"`
	CreatedAt    time.Time `gorm:"not null;index:idx_pwd_hist_user,priority:2"`
}

func (PasswordHistoryModel) TableName() string { return "password_histories" }

// Models AutoMigrate 用
func Models() []any { return []any{&UserModel{}, &PasswordHistoryModel{}} }

func (m *UserModel) ToDomain() *domain.User {
	return &domain.User{
		ID:                m.ID,
		FullName:          m.FullName,
		Email:             m.Email,
		PhoneNumber:       m.PhoneNumber,
		Role:              domain.Role(m.Role),
		ProfilePicture:    m.ProfilePicture,
		PasswordHash:      m.PasswordHash,
		PasswordChangedAt: m.PasswordChangedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func FromDomain(u *domain.User) *UserModel {
	return &UserModel{
		ID:                u.ID,
		FullName:          u.FullName,
		Email:             u.Email,
		PhoneNumber:       u.PhoneNumber,
		Role:              string(u.Role),
		ProfilePicture:    u.ProfilePicture,
		PasswordHash:      u.PasswordHash,
		PasswordChangedAt: u.PasswordChangedAt,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}
