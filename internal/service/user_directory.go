package service

import (
	"context"
	"errors"

	"fortirent-auth/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type UserPage struct {
	Items  []*domain.PublicUser `json:"items"`
	Total  int64                `json:"total"`
	Offset int                  `json:"offset"`
	Limit  int                  `json:"limit"`
}

// UserDirectory 管理端只读查询
type UserDirectory struct {
	users domain.UserRepository
}

func NewUserDirectory(users domain.UserRepository) *UserDirectory {
	return &UserDirectory{users: users}
}

func (d *UserDirectory) List(ctx context.Context, q string, offset, limit int) (_ *UserPage, err error) {
	defer observe("list_users", &err)

	if offset < 0 {
		offset = 0
	}
	switch {
	case limit <= 0:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}
	rows, total, err := d.users.List(ctx, domain.ListFilter{Query: q, Offset: offset, Limit: limit})
	if err != nil {
		return nil, Internal("Failed to list users.", err)
	}
	items := make([]*domain.PublicUser, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].Public())
	}
	return &UserPage{Items: items, Total: total, Offset: offset, Limit: limit}, nil
}

func (d *UserDirectory) Get(ctx context.Context, id string) (*domain.PublicUser, error) {
	u, err := d.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, NotFound("User not found.")
		}
		return nil, Internal("Failed to load user.", err)
	}
	return u.Public(), nil
}
