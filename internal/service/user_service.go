package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/draftwire/socialcast/internal/models"
	"github.com/draftwire/socialcast/internal/repository"
)

var ErrUserNotFound = errors.New("user not found")

type UserService interface {
	GetUserInfo(ctx context.Context, id int64) (*models.User, error)
}

type userService struct {
	u repository.UserRepository
}

func NewUserService(u repository.UserRepository) UserService {
	return &userService{
		u: u,
	}
}

func (s *userService) GetUserInfo(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.u.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		slog.Info(ErrUserNotFound.Error(), slog.Int64("user_id", id))
		return nil, ErrUserNotFound
	}
	return user, nil
}
