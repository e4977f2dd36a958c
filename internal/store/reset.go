package store

import (
	"context"
	"time"

	"rentease/internal/domain"
)

const resetPrefix = "reset_password:"

// ResetStore guarda registros reset_password:{token} de un solo uso.
type ResetStore struct {
	kv KV
}

func NewResetStore(kv KV) *ResetStore {
	return &ResetStore{kv: kv}
}

func resetKey(token string) string {
	return resetPrefix + token
}

func (s *ResetStore) Create(ctx context.Context, rec domain.PasswordReset, ttl time.Duration) error {
	return s.kv.SetFields(ctx, resetKey(rec.Token), map[string]any{"email": rec.Email}, ttl)
}

func (s *ResetStore) Get(ctx context.Context, token string) (domain.PasswordReset, error) {
	fields, err := s.kv.GetFields(ctx, resetKey(token))
	if err != nil {
		return domain.PasswordReset{}, err
	}
	return domain.PasswordReset{Token: token, Email: fields["email"]}, nil
}

func (s *ResetStore) Delete(ctx context.Context, token string) error {
	return s.kv.Delete(ctx, resetKey(token))
}
