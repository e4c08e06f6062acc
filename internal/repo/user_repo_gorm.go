package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"fortirent-auth/internal/domain"
	"fortirent-auth/internal/feature/user"
)

// 默认读取不带出密码哈希
var publicOmit = []string{"password_hash"}

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	m := user.FromDomain(u)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		h := user.PasswordHistoryModel{UserID: m.ID, PasswordHash: m.PasswordHash, CreatedAt: changedAtOrNow(m)}
		return tx.Create(&h).Error
	})
	if err != nil {
		if isDupKey(err) {
			return domain.ErrEmailTaken
		}
		return err
	}
	u.CreatedAt, u.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(r.db.WithContext(ctx).Omit(publicOmit...), "id = ?", id)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(r.db.WithContext(ctx).Omit(publicOmit...), "email = ?", domain.NormalizeEmail(email))
}

func (r *UserRepo) FindCredentialsByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(r.db.WithContext(ctx), "email = ?", domain.NormalizeEmail(email))
}

func (r *UserRepo) FindCredentialsByEmailAndRole(ctx context.Context, email string, role domain.Role) (*domain.User, error) {
	return r.first(r.db.WithContext(ctx), "email = ? AND role = ?", domain.NormalizeEmail(email), string(role))
}

func (r *UserRepo) FindCredentialsByID(ctx context.Context, id string, history int) (*domain.User, error) {
	tx := r.db.WithContext(ctx)
	u, err := r.first(tx, "id = ?", id)
	if err != nil || history <= 0 {
		return u, err
	}
	var hashes []string
	if err := tx.Model(&user.PasswordHistoryModel{}).
		Where("user_id = ?", id).
		Order("created_at DESC").Order("id DESC").
		Limit(history).
		Pluck("password_hash", &hashes).Error; err != nil {
		return nil, err
	}
	u.PasswordHistory = hashes
	return u, nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id string, p domain.ProfilePatch) (*domain.User, error) {
	cols := map[string]any{}
	if p.FullName != nil {
		cols["full_name"] = strings.TrimSpace(*p.FullName)
	}
	if p.Email != nil {
		cols["email"] = domain.NormalizeEmail(*p.Email)
	}
	if p.PhoneNumber != nil {
		cols["phone_number"] = strings.TrimSpace(*p.PhoneNumber)
	}
	tx := r.db.WithContext(ctx)
	if len(cols) > 0 {
		res := tx.Model(&user.UserModel{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			if isDupKey(res.Error) {
				return nil, domain.ErrEmailTaken
			}
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, domain.ErrUserNotFound
		}
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id string, c domain.PasswordChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&user.UserModel{}).Where("id = ?", id).Updates(map[string]any{
			"password_hash":       c.Hash,
			"password_changed_at": c.ChangedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrUserNotFound
		}
		h := user.PasswordHistoryModel{UserID: id, PasswordHash: c.Hash, CreatedAt: c.ChangedAt}
		if err := tx.Create(&h).Error; err != nil {
			return err
		}
		if c.Keep <= 0 {
			return nil
		}
		// 超出窗口的历史删掉（先查 id，MySQL 不支持 IN 子查询里 LIMIT）
		var stale []uint
		if err := tx.Model(&user.PasswordHistoryModel{}).
			Where("user_id = ?", id).
			Order("created_at DESC").Order("id DESC").
			Offset(c.Keep).Limit(1000).
			Pluck("id", &stale).Error; err != nil {
			return err
		}
		if len(stale) == 0 {
			return nil
		}
		return tx.Where("id IN ?", stale).Delete(&user.PasswordHistoryModel{}).Error
	})
}

func (r *UserRepo) List(ctx context.Context, f domain.ListFilter) ([]domain.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&user.UserModel{}).Omit(publicOmit...)
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []user.UserModel
	if err := q.Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.User, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, total, nil
}

func (r *UserRepo) first(tx *gorm.DB, query string, args ...any) (*domain.User, error) {
	var m user.UserModel
	err := tx.Where(query, args...).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

func changedAtOrNow(m *user.UserModel) time.Time {
	if m.PasswordChangedAt != nil {
		return *m.PasswordChangedAt
	}
	return m.CreatedAt
}

func isDupKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// 驱动未开 TranslateError 时兜底
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}
