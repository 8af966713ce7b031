package user

import (
	"context"

	"github.com/shopcore/orderpay/internal/types/user"
)

type UserRepository interface {
	CreateUser(ctx context.Context, u *user.User) error
	FindByLogin(ctx context.Context, login string) (*user.User, error)
}
