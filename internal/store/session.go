package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"rentease/internal/domain"
)

const sessionPrefix = "session:"

// deleteIfMatchScript borra la sesión solo si sigue con el mismo sid.
var deleteIfMatchScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'sid') == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// SessionStore guarda la sesión viva session:{userId}:{ip}. Hay como mucho
// un sid por par (usuario, IP); escribir uno nuevo invalida el anterior.
type SessionStore struct {
	kv KV
}

func NewSessionStore(kv KV) *SessionStore {
	return &SessionStore{kv: kv}
}

func sessionKey(userID, ip string) string {
	return sessionPrefix + userID + ":" + ip
}

func (s *SessionStore) Put(ctx context.Context, sess domain.LiveSession, ttl time.Duration) error {
	return s.kv.SetFields(ctx, sessionKey(sess.UserID, sess.ClientIP), map[string]any{"sid": sess.SessionID}, ttl)
}

// Get devuelve el sid vigente para el par (usuario, IP).
func (s *SessionStore) Get(ctx context.Context, userID, ip string) (string, error) {
	fields, err := s.kv.GetFields(ctx, sessionKey(userID, ip))
	if err != nil {
		return "", err
	}
	return fields["sid"], nil
}

// Matches reporta si el sid sigue siendo el vigente para (usuario, IP).
func (s *SessionStore) Matches(ctx context.Context, userID, ip, sid string) (bool, error) {
	current, err := s.Get(ctx, userID, ip)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return current == sid, nil
}

// Touch reinicia el TTL completo si el sid coincide. Devuelve false si la
// sesión expiró o fue reemplazada. Si un login la reemplaza entre la lectura
// y el EXPIRE, solo se reinicia el TTL de la sesión nueva, que es el mismo.
func (s *SessionStore) Touch(ctx context.Context, userID, ip, sid string, ttl time.Duration) (bool, error) {
	ok, err := s.Matches(ctx, userID, ip, sid)
	if err != nil || !ok {
		return false, err
	}
	return s.kv.Expire(ctx, sessionKey(userID, ip), ttl)
}

// DeleteIfMatch borra la sesión solo si todavía pertenece a sid.
func (s *SessionStore) DeleteIfMatch(ctx context.Context, userID, ip, sid string) (bool, error) {
	n, err := s.kv.Run(ctx, deleteIfMatchScript, []string{sessionKey(userID, ip)}, sid).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
