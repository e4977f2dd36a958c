package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"rentease/internal/domain"
	"rentease/internal/repository"
)

// UserService atiende las operaciones del usuario ya autenticado.
type UserService struct {
	logger *zap.Logger
	users  repository.UserRepository
}

func NewUserService(logger *zap.Logger, users repository.UserRepository) *UserService {
	return &UserService{logger: logger, users: users}
}

func (s *UserService) Me(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// CompleteOnboarding guarda el perfil inicial. Solo puede hacerse una vez.
func (s *UserService) CompleteOnboarding(ctx context.Context, userID string, fields domain.ProfileFields) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasSeenOnboarding {
		return ErrAlreadyOnboarded
	}

	seen := true
	upd := domain.UserUpdate{HasSeenOnboarding: &seen}
	fields.Apply(&upd)
	return s.update(ctx, userID, upd)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, fields domain.ProfileFields) error {
	var upd domain.UserUpdate
	fields.Apply(&upd)
	if upd.Empty() {
		return nil
	}
	return s.update(ctx, userID, upd)
}

func (s *UserService) update(ctx context.Context, userID string, upd domain.UserUpdate) error {
	if err := s.users.UpdateByID(ctx, userID, upd); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		s.logger.Error("update user profile failed", zap.Error(err), zap.String("user_id", userID))
		return err
	}
	return nil
}
