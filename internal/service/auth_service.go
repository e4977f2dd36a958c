package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"rentease/internal/domain"
	"rentease/internal/email"
	"rentease/internal/metrics"
	"rentease/internal/repository"
	"rentease/internal/store"
)

// VerificationStore guarda los registros verify_email:{token}.
type VerificationStore interface {
	Create(ctx context.Context, rec domain.EmailVerification, ttl time.Duration) error
	CheckOTP(ctx context.Context, token, otp string, maxAttempts int) (domain.EmailVerification, error)
	Resend(ctx context.Context, token, otp string, maxAttempts, maxResends int, ttl time.Duration) (domain.EmailVerification, error)
	Delete(ctx context.Context, token string) error
	PurgeByEmail(ctx context.Context, email string) (int, error)
}

// ResetStore guarda los registros reset_password:{token}.
type ResetStore interface {
	Create(ctx context.Context, rec domain.PasswordReset, ttl time.Duration) error
	Get(ctx context.Context, token string) (domain.PasswordReset, error)
	Delete(ctx context.Context, token string) error
}

// SessionStore guarda la sesión viva por (usuario, IP).
type SessionStore interface {
	Put(ctx context.Context, sess domain.LiveSession, ttl time.Duration) error
	Matches(ctx context.Context, userID, ip, sid string) (bool, error)
	Touch(ctx context.Context, userID, ip, sid string, ttl time.Duration) (bool, error)
	DeleteIfMatch(ctx context.Context, userID, ip, sid string) (bool, error)
}

// Templates arma los correos transaccionales.
type Templates interface {
	Verification(to, otp string, ttl time.Duration) (email.Message, error)
	Welcome(to string) (email.Message, error)
	PasswordReset(to, token string, ttl time.Duration) (email.Message, error)
}

// Policy agrupa los límites y tiempos del ciclo de autenticación.
type Policy struct {
	VerificationTTL  time.Duration
	ResetTTL         time.Duration
	SessionTTL       time.Duration
	PasswordCooldown time.Duration
	MaxOTPAttempts   int
	MaxResends       int
	RetryAttempts    int
	RetryBaseDelay   time.Duration
	BcryptCost       int
}

func DefaultPolicy() Policy {
	return Policy{
		VerificationTTL:  600 * time.Second,
		ResetTTL:         600 * time.Second,
		SessionTTL:       18000 * time.Second,
		PasswordCooldown: 72 * time.Hour,
		MaxOTPAttempts:   8,
		MaxResends:       1,
		RetryAttempts:    3,
		RetryBaseDelay:   time.Second,
		BcryptCost:       bcrypt.DefaultCost,
	}
}

// AuthService coordina registro, verificación, login, refresh, logout y
// reset de contraseña.
type AuthService struct {
	logger        *zap.Logger
	users         repository.UserRepository
	verifications VerificationStore
	resets        ResetStore
	sessions      SessionStore
	tokens        *JWTService
	mailer        email.Sender
	templates     Templates
	metrics       metrics.Recorder
	policy        Policy
	now           func() time.Time
}

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	verifications VerificationStore,
	resets ResetStore,
	sessions SessionStore,
	tokens *JWTService,
	mailer email.Sender,
	templates Templates,
	recorder metrics.Recorder,
	policy Policy,
) *AuthService {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	// Un TTL cero borraría la sesión en el mismo EXPIRE que la crea.
	if policy.SessionTTL <= 0 {
		policy.SessionTTL = tokens.RefreshTTL()
	}
	return &AuthService{
		logger:        logger,
		users:         users,
		verifications: verifications,
		resets:        resets,
		sessions:      sessions,
		tokens:        tokens,
		mailer:        mailer,
		templates:     templates,
		metrics:       recorder,
		policy:        policy,
		now:           time.Now,
	}
}

type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	Role            string
}

// Register crea un usuario sin verificar y envía el OTP. Devuelve el token
// de verificación; el OTP nunca sale del servidor salvo por email.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (token string, err error) {
	defer func() { s.metrics.RecordAuthEvent("register", outcome(err)) }()

	emailAddr := strings.TrimSpace(in.Email)
	password := strings.TrimSpace(in.Password)
	confirm := strings.TrimSpace(in.ConfirmPassword)
	role := domain.ParseRole(in.Role)

	if emailAddr == "" || password == "" || confirm == "" || role == "" {
		return "", validationErr("All fields are required")
	}
	if err := validateEmail(emailAddr); err != nil {
		return "", err
	}
	if password != confirm {
		return "", validationErr("Passwords do not match")
	}
	if err := validatePassword(password); err != nil {
		return "", err
	}
	if !role.SelfRegistrable() {
		return "", validationErr("Invalid role")
	}

	_, err = s.users.GetByEmail(ctx, emailAddr)
	switch {
	case err == nil:
		return "", ErrEmailTaken
	case !errors.Is(err, pgx.ErrNoRows):
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.policy.BcryptCost)
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return "", ErrEmailTaken
		}
		return "", err
	}

	token, otp, err := s.startVerification(ctx, emailAddr, domain.VerifyContextRegister)
	if err != nil {
		return "", err
	}
	// Si el envío falla el usuario queda creado; puede pedir reenvío.
	if err := s.sendVerification(ctx, emailAddr, otp); err != nil {
		return "", err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return token, nil
}

// VerifyEmail valida el OTP y marca al usuario como verificado. Devuelve el
// contexto (register o login) para que el cliente retome su flujo.
func (s *AuthService) VerifyEmail(ctx context.Context, token, otp string) (vctx domain.VerifyContext, err error) {
	defer func() { s.metrics.RecordAuthEvent("verify_email", outcome(err)) }()

	token = strings.TrimSpace(token)
	otp = strings.TrimSpace(otp)
	if token == "" || otp == "" {
		return "", validationErr("Token and OTP are required")
	}

	rec, err := s.verifications.CheckOTP(ctx, token, otp, s.policy.MaxOTPAttempts)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "", ErrVerificationInvalid
	case errors.Is(err, store.ErrLocked):
		return "", ErrOTPLocked
	case errors.Is(err, store.ErrOTPMismatch):
		return "", ErrOTPInvalid
	case err != nil:
		return "", err
	}

	user, err := s.users.GetByEmail(ctx, rec.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrVerificationInvalid
		}
		return "", err
	}
	verified := true
	if err := s.users.UpdateByID(ctx, user.ID, domain.UserUpdate{IsVerified: &verified}); err != nil {
		return "", err
	}

	if msg, err := s.templates.Welcome(rec.Email); err != nil {
		s.logger.Warn("render welcome email failed", zap.Error(err))
	} else if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("send welcome email failed", zap.Error(err), zap.String("user_id", user.ID))
	}

	if err := s.verifications.Delete(ctx, token); err != nil {
		return "", err
	}
	return rec.Context, nil
}

// ResendVerification emite un OTP nuevo para el mismo token, una sola vez.
func (s *AuthService) ResendVerification(ctx context.Context, token string) (err error) {
	defer func() { s.metrics.RecordAuthEvent("resend_verification", outcome(err)) }()

	token = strings.TrimSpace(token)
	if token == "" {
		return validationErr("Token is required")
	}
	otp, err := generateOTP()
	if err != nil {
		return err
	}

	rec, err := s.verifications.Resend(ctx, token, otp, s.policy.MaxOTPAttempts, s.policy.MaxResends, s.policy.VerificationTTL)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrVerificationInvalid
	case errors.Is(err, store.ErrLocked):
		return ErrOTPLocked
	case errors.Is(err, store.ErrResendLimit):
		return ErrResendLimit
	case err != nil:
		return err
	}

	if err := s.sendVerification(ctx, rec.Email, otp); err != nil {
		s.logger.Warn("resend verification email failed", zap.Error(err))
	}
	return nil
}

type LoginInput struct {
	Email    string
	Password string
	ClientIP string
}

type LoginResult struct {
	Tokens   TokenPair
	Verified bool
	// VerificationToken solo se emite cuando Verified es false.
	VerificationToken string
}

// Login autentica, abre la sesión viva del par (usuario, IP) y emite los
// tokens. Un usuario sin verificar recibe igualmente la sesión junto con un
// OTP nuevo de contexto login.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (res LoginResult, err error) {
	defer func() { s.metrics.RecordAuthEvent("login", outcome(err)) }()

	emailAddr := strings.TrimSpace(in.Email)
	password := strings.TrimSpace(in.Password)
	if emailAddr == "" || password == "" {
		return LoginResult{}, validationErr("Email and password are required")
	}

	user, err := readWithRetry(ctx, s, "login", func(ctx context.Context) (domain.User, error) {
		return s.users.GetByEmail(ctx, emailAddr)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginResult{}, ErrUserNotFound
		}
		return LoginResult{}, err
	}
	if user.IsDisabled {
		return LoginResult{}, ErrAccountDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	sess := domain.LiveSession{UserID: user.ID, ClientIP: in.ClientIP, SessionID: uuid.NewString()}
	if err := s.sessions.Put(ctx, sess, s.policy.SessionTTL); err != nil {
		return LoginResult{}, err
	}
	tokens, err := s.tokens.IssuePair(SessionClaims{UserID: user.ID, SessionID: sess.SessionID, IP: in.ClientIP})
	if err != nil {
		return LoginResult{}, err
	}
	now := s.now().UTC()
	if err := s.users.UpdateByID(ctx, user.ID, domain.UserUpdate{LastLogin: &now}); err != nil {
		return LoginResult{}, err
	}

	res = LoginResult{Tokens: tokens, Verified: user.IsVerified}
	if user.IsVerified {
		return res, nil
	}

	if n, err := s.verifications.PurgeByEmail(ctx, user.Email); err != nil {
		s.logger.Warn("purge stale verification records failed", zap.Error(err), zap.String("user_id", user.ID))
	} else if n > 0 {
		s.logger.Debug("purged stale verification records", zap.Int("count", n), zap.String("user_id", user.ID))
	}
	token, otp, err := s.startVerification(ctx, user.Email, domain.VerifyContextLogin)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.sendVerification(ctx, user.Email, otp); err != nil {
		s.logger.Warn("send login verification email failed", zap.Error(err), zap.String("user_id", user.ID))
	}
	res.VerificationToken = token
	return res, nil
}

// Refresh rota el par de tokens sin cambiar el sid y reinicia el TTL de la
// sesión. La sesión se busca con la IP de la petición actual.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, clientIP string) (tokens TokenPair, err error) {
	defer func() { s.metrics.RecordAuthEvent("refresh", outcome(err)) }()

	if strings.TrimSpace(refreshToken) == "" {
		return TokenPair{}, ErrMissingToken
	}
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrTokenInvalid
	}

	ok, err := s.sessions.Touch(ctx, claims.UserID, clientIP, claims.SessionID, s.policy.SessionTTL)
	if err != nil {
		return TokenPair{}, err
	}
	if !ok {
		return TokenPair{}, ErrSessionInvalid
	}
	return s.tokens.IssuePair(claims.Session())
}

// Logout cierra la sesión viva si el access token es válido. Un token
// ausente o inválido no es un error.
func (s *AuthService) Logout(ctx context.Context, accessToken, clientIP string) (err error) {
	defer func() { s.metrics.RecordAuthEvent("logout", outcome(err)) }()

	if strings.TrimSpace(accessToken) == "" {
		return nil
	}
	claims, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return nil
	}
	if _, err := s.sessions.DeleteIfMatch(ctx, claims.UserID, clientIP, claims.SessionID); err != nil {
		return err
	}
	return nil
}

// Authenticate valida el access token y que su sid siga siendo la sesión
// viva de (usuario, IP).
func (s *AuthService) Authenticate(ctx context.Context, accessToken, clientIP string) (Claims, error) {
	if strings.TrimSpace(accessToken) == "" {
		return Claims{}, ErrMissingToken
	}
	claims, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return Claims{}, ErrTokenInvalid
	}
	ok, err := s.sessions.Matches(ctx, claims.UserID, clientIP, claims.SessionID)
	if err != nil {
		return Claims{}, err
	}
	if !ok {
		return Claims{}, ErrSessionInvalid
	}
	return claims, nil
}

// Status devuelve el rol del usuario autenticado.
func (s *AuthService) Status(ctx context.Context, accessToken, clientIP string) (domain.Role, error) {
	claims, err := s.Authenticate(ctx, accessToken, clientIP)
	if err != nil {
		return "", err
	}
	user, err := readWithRetry(ctx, s, "status", func(ctx context.Context) (domain.User, error) {
		return s.users.GetByID(ctx, claims.UserID)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return user.Role, nil
}

// ForgotPassword envía un enlace de reset salvo que la contraseña haya
// cambiado dentro del periodo de enfriamiento.
func (s *AuthService) ForgotPassword(ctx context.Context, emailAddr string) (err error) {
	defer func() { s.metrics.RecordAuthEvent("forgot_password", outcome(err)) }()

	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" {
		return validationErr("Email is required")
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if user.IsDisabled {
		return ErrAccountDisabled
	}
	if user.LastPasswordChange != nil && s.now().Sub(*user.LastPasswordChange) < s.policy.PasswordCooldown {
		return ErrPasswordCooldown
	}

	token, err := generateToken()
	if err != nil {
		return err
	}
	if err := s.resets.Create(ctx, domain.PasswordReset{Token: token, Email: user.Email}, s.policy.ResetTTL); err != nil {
		return err
	}
	msg, err := s.templates.PasswordReset(user.Email, token, s.policy.ResetTTL)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, msg)
}

type ResetPasswordInput struct {
	Token           string
	NewPassword     string
	ConfirmPassword string
}

// ResetPassword consume el token de reset (un solo uso) y cambia la
// contraseña.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) (err error) {
	defer func() { s.metrics.RecordAuthEvent("reset_password", outcome(err)) }()

	token := strings.TrimSpace(in.Token)
	password := strings.TrimSpace(in.NewPassword)
	confirm := strings.TrimSpace(in.ConfirmPassword)
	if token == "" || password == "" || confirm == "" {
		return validationErr("All fields are required")
	}
	if password != confirm {
		return validationErr("Passwords do not match")
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	rec, err := s.resets.Get(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}
	user, err := s.users.GetByEmail(ctx, rec.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.policy.BcryptCost)
	if err != nil {
		return err
	}
	hashStr := string(hash)
	now := s.now().UTC()
	if err := s.users.UpdateByID(ctx, user.ID, domain.UserUpdate{
		PasswordHash:       &hashStr,
		LastPasswordChange: &now,
	}); err != nil {
		return err
	}
	return s.resets.Delete(ctx, token)
}

func (s *AuthService) startVerification(ctx context.Context, emailAddr string, vctx domain.VerifyContext) (token, otp string, err error) {
	otp, err = generateOTP()
	if err != nil {
		return "", "", err
	}
	token, err = generateToken()
	if err != nil {
		return "", "", err
	}
	err = s.verifications.Create(ctx, domain.EmailVerification{
		Token:   token,
		Email:   emailAddr,
		OTP:     otp,
		Context: vctx,
	}, s.policy.VerificationTTL)
	if err != nil {
		return "", "", err
	}
	return token, otp, nil
}

func (s *AuthService) sendVerification(ctx context.Context, to, otp string) error {
	msg, err := s.templates.Verification(to, otp, s.policy.VerificationTTL)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, msg)
}
