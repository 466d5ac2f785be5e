package profile

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fastygo/todo-backend/domain"
	"github.com/fastygo/todo-backend/repository"
)

const nameMaxLen = 100

type UseCase struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func New(users repository.UserRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:  users,
		logger: logger,
	}
}

func (uc *UseCase) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return uc.users.GetByID(ctx, userID)
}

// UpdateName changes the display name of the caller.
func (uc *UseCase) UpdateName(ctx context.Context, userID, name string) (*domain.User, error) {
	user, err := uc.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > nameMaxLen {
		return nil, domain.Invalid("name must be at most 100 characters")
	}
	user.Name = name
	if err := uc.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
