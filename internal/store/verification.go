package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"rentease/internal/domain"
)

const verificationPrefix = "verify_email:"

var (
	ErrOTPMismatch  = errors.New("otp mismatch")
	ErrLocked       = errors.New("verification locked: too many attempts")
	ErrResendLimit  = errors.New("verification resend limit reached")
	errScriptResult = errors.New("unexpected script result")
)

// checkOTPScript compara el OTP e incrementa attempts en un solo paso.
// KEYS[1] = clave del registro
// ARGV[1] = otp enviado, ARGV[2] = máximo de intentos
var checkOTPScript = redis.NewScript(`
local data = redis.call('HMGET', KEYS[1], 'otp', 'attempts', 'email', 'context', 'resends')
if not data[1] then
  return {err='not_found'}
end
local attempts = tonumber(data[2]) or 0
if attempts >= tonumber(ARGV[2]) then
  return {err='locked'}
end
if data[1] ~= ARGV[1] then
  redis.call('HINCRBY', KEYS[1], 'attempts', 1)
  return {err='mismatch'}
end
return {data[3] or '', data[4] or '', tostring(attempts), data[5] or '0'}
`)

// resendScript reemplaza el OTP si quedan reenvíos y reinicia el TTL.
// ARGV[1] = nuevo otp, ARGV[2] = máximo de intentos,
// ARGV[3] = máximo de reenvíos, ARGV[4] = ttl en segundos
var resendScript = redis.NewScript(`
local data = redis.call('HMGET', KEYS[1], 'email', 'attempts', 'resends', 'context')
if not data[1] then
  return {err='not_found'}
end
if (tonumber(data[2]) or 0) >= tonumber(ARGV[2]) then
  return {err='locked'}
end
if (tonumber(data[3]) or 0) >= tonumber(ARGV[3]) then
  return {err='resend_limit'}
end
redis.call('HSET', KEYS[1], 'otp', ARGV[1])
local resends = redis.call('HINCRBY', KEYS[1], 'resends', 1)
redis.call('EXPIRE', KEYS[1], ARGV[4])
return {data[1], data[4] or '', data[2] or '0', tostring(resends)}
`)

// VerificationStore guarda registros verify_email:{token}.
type VerificationStore struct {
	kv KV
}

func NewVerificationStore(kv KV) *VerificationStore {
	return &VerificationStore{kv: kv}
}

func verificationKey(token string) string {
	return verificationPrefix + token
}

func (s *VerificationStore) Create(ctx context.Context, rec domain.EmailVerification, ttl time.Duration) error {
	return s.kv.SetFields(ctx, verificationKey(rec.Token), map[string]any{
		"email":    rec.Email,
		"otp":      rec.OTP,
		"attempts": rec.Attempts,
		"resends":  rec.Resends,
		"context":  string(rec.Context),
	}, ttl)
}

// CheckOTP valida el OTP de forma atómica. En caso de coincidencia el
// registro no se borra; lo hace el llamador tras confirmar al usuario.
func (s *VerificationStore) CheckOTP(ctx context.Context, token, otp string, maxAttempts int) (domain.EmailVerification, error) {
	res, err := s.kv.Run(ctx, checkOTPScript, []string{verificationKey(token)}, otp, maxAttempts).StringSlice()
	if err != nil {
		return domain.EmailVerification{}, mapScriptErr(err)
	}
	if len(res) != 4 {
		return domain.EmailVerification{}, errScriptResult
	}
	return domain.EmailVerification{
		Token:    token,
		Email:    res[0],
		OTP:      otp,
		Context:  domain.VerifyContext(res[1]),
		Attempts: atoi(res[2]),
		Resends:  atoi(res[3]),
	}, nil
}

// Resend sustituye el OTP en sitio, incrementa resends y reinicia el TTL.
func (s *VerificationStore) Resend(ctx context.Context, token, otp string, maxAttempts, maxResends int, ttl time.Duration) (domain.EmailVerification, error) {
	res, err := s.kv.Run(ctx, resendScript, []string{verificationKey(token)},
		otp, maxAttempts, maxResends, seconds(ttl)).StringSlice()
	if err != nil {
		return domain.EmailVerification{}, mapScriptErr(err)
	}
	if len(res) != 4 {
		return domain.EmailVerification{}, errScriptResult
	}
	return domain.EmailVerification{
		Token:    token,
		Email:    res[0],
		OTP:      otp,
		Context:  domain.VerifyContext(res[1]),
		Attempts: atoi(res[2]),
		Resends:  atoi(res[3]),
	}, nil
}

func (s *VerificationStore) Delete(ctx context.Context, token string) error {
	return s.kv.Delete(ctx, verificationKey(token))
}

// PurgeByEmail elimina los registros pendientes de un email y devuelve
// cuántos borró.
func (s *VerificationStore) PurgeByEmail(ctx context.Context, email string) (int, error) {
	keys, err := s.kv.KeysByPrefix(ctx, verificationPrefix)
	if err != nil {
		return 0, err
	}
	var stale []string
	for _, key := range keys {
		fields, err := s.kv.GetFields(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if fields["email"] == email {
			stale = append(stale, key)
		}
	}
	if err := s.kv.Delete(ctx, stale...); err != nil {
		return 0, err
	}
	return len(stale), nil
}

func mapScriptErr(err error) error {
	switch strings.TrimSpace(err.Error()) {
	case "not_found":
		return ErrNotFound
	case "mismatch":
		return ErrOTPMismatch
	case "locked":
		return ErrLocked
	case "resend_limit":
		return ErrResendLimit
	default:
		return fmt.Errorf("ephemeral store script: %w", err)
	}
}
