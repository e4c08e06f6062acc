package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"fortirent-auth/internal/domain"
)

// MemoryUserRepo 进程内实现：db.driver=memory 时使用，也用于测试。
// 与 gorm 实现保持相同的唯一邮箱与历史窗口语义
type MemoryUserRepo struct {
	mu      sync.RWMutex
	users   map[string]domain.User
	byEmail map[string]string
	history map[string][]string // 新的在前
	now     func() time.Time
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		users:   map[string]domain.User{},
		byEmail: map[string]string{},
		history: map[string][]string{},
		now:     time.Now,
	}
}

var _ domain.UserRepository = (*MemoryUserRepo)(nil)

func (r *MemoryUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := domain.NormalizeEmail(u.Email)
	if _, ok := r.byEmail[email]; ok {
		return domain.ErrEmailTaken
	}
	now := r.now()
	u.Email = email
	u.CreatedAt, u.UpdatedAt = now, now
	r.users[u.ID] = *u
	r.byEmail[email] = u.ID
	r.history[u.ID] = []string{u.PasswordHash}
	return nil
}

func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id, false)
}

func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.get(id, false)
}

func (r *MemoryUserRepo) FindCredentialsByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.get(id, true)
}

func (r *MemoryUserRepo) FindCredentialsByEmailAndRole(ctx context.Context, email string, role domain.Role) (*domain.User, error) {
	u, err := r.FindCredentialsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u.Role != role {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryUserRepo) FindCredentialsByID(_ context.Context, id string, history int) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, err := r.get(id, true)
	if err != nil || history <= 0 {
		return u, err
	}
	h := r.history[id]
	if len(h) > history {
		h = h[:history]
	}
	u.PasswordHistory = append([]string(nil), h...)
	return u, nil
}

func (r *MemoryUserRepo) UpdateProfile(_ context.Context, id string, p domain.ProfilePatch) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if p.Email != nil {
		email := domain.NormalizeEmail(*p.Email)
		if owner, taken := r.byEmail[email]; taken && owner != id {
			return nil, domain.ErrEmailTaken
		}
		delete(r.byEmail, u.Email)
		r.byEmail[email] = id
		u.Email = email
	}
	if p.FullName != nil {
		u.FullName = strings.TrimSpace(*p.FullName)
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = strings.TrimSpace(*p.PhoneNumber)
	}
	if !p.Empty() {
		u.UpdatedAt = r.now()
	}
	r.users[id] = u
	return r.get(id, false)
}

func (r *MemoryUserRepo) UpdatePassword(_ context.Context, id string, c domain.PasswordChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	at := c.ChangedAt
	u.PasswordHash = c.Hash
	u.PasswordChangedAt = &at
	u.UpdatedAt = r.now()
	r.users[id] = u
	h := append([]string{c.Hash}, r.history[id]...)
	if c.Keep > 0 && len(h) > c.Keep {
		h = h[:c.Keep]
	}
	r.history[id] = h
	return nil
}

func (r *MemoryUserRepo) List(_ context.Context, f domain.ListFilter) ([]domain.User, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(f.Query))
	var all []domain.User
	for id := range r.users {
		u, _ := r.get(id, false)
		if q != "" && !strings.Contains(u.Email, q) && !strings.Contains(strings.ToLower(u.FullName), q) {
			continue
		}
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := int64(len(all))
	if f.Offset >= len(all) {
		return []domain.User{}, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

// get 调用方持锁；返回副本
func (r *MemoryUserRepo) get(id string, withSecrets bool) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if !withSecrets {
		u.PasswordHash = ""
	}
	u.PasswordHistory = nil
	return &u, nil
}
