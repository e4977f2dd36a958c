package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rentease/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateByID(ctx context.Context, id string, upd domain.UserUpdate) error
	// ResetConnections descarta las conexiones abiertas del pool.
	ResetConnections()
}

var ErrDuplicateEmail = errors.New("email already registered")

const pgUniqueViolation = "23505"

const userColumns = `
	id, email, password_hash, role, is_verified, is_disabled, has_seen_onboarding,
	first_name, last_name, phone, avatar_url, last_login, last_password_change,
	created_at, updated_at
`

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, email, password_hash, role, is_verified, is_disabled,
			has_seen_onboarding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.IsVerified,
		user.IsDisabled,
		user.HasSeenOnboarding,
		user.CreatedAt,
		user.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// UpdateByID aplica solo los campos presentes en upd. Devuelve pgx.ErrNoRows
// si el usuario no existe.
func (r *PgUserRepository) UpdateByID(ctx context.Context, id string, upd domain.UserUpdate) error {
	if upd.Empty() {
		return nil
	}
	set, args := buildUserUpdate(upd, time.Now().UTC())
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, set, len(args))

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) ResetConnections() {
	r.pool.Reset()
}

func buildUserUpdate(upd domain.UserUpdate, now time.Time) (string, []any) {
	var (
		cols []string
		args []any
	)
	add := func(col string, val any) {
		args = append(args, val)
		cols = append(cols, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if upd.IsVerified != nil {
		add("is_verified", *upd.IsVerified)
	}
	if upd.HasSeenOnboarding != nil {
		add("has_seen_onboarding", *upd.HasSeenOnboarding)
	}
	if upd.FirstName != nil {
		add("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		add("last_name", *upd.LastName)
	}
	if upd.Phone != nil {
		add("phone", *upd.Phone)
	}
	if upd.AvatarURL != nil {
		add("avatar_url", *upd.AvatarURL)
	}
	if upd.LastLogin != nil {
		add("last_login", *upd.LastLogin)
	}
	if upd.LastPasswordChange != nil {
		add("last_password_change", *upd.LastPasswordChange)
	}
	add("updated_at", now)

	return strings.Join(cols, ", "), args
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.IsVerified,
		&u.IsDisabled,
		&u.HasSeenOnboarding,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&u.AvatarURL,
		&u.LastLogin,
		&u.LastPasswordChange,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	return u, nil
}
