package service

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrEmailTaken          = errors.New("email already registered")
	ErrUserNotFound        = errors.New("user not found")
	ErrAccountDisabled     = errors.New("account disabled")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrVerificationInvalid = errors.New("invalid or expired verification token")
	ErrOTPInvalid          = errors.New("invalid otp")
	ErrOTPLocked           = errors.New("too many invalid attempts")
	ErrResendLimit         = errors.New("resend limit reached")
	ErrPasswordCooldown    = errors.New("password changed recently")
	ErrResetTokenInvalid   = errors.New("invalid or expired reset token")
	ErrMissingToken        = errors.New("missing token")
	ErrTokenInvalid        = errors.New("invalid or expired token")
	ErrSessionInvalid      = errors.New("session invalid")
	ErrAlreadyOnboarded    = errors.New("onboarding already completed")
)

// ValidationError lleva un mensaje apto para mostrar al usuario.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func validationErr(msg string) error {
	return &ValidationError{Msg: msg}
}

// outcomeLabels traduce errores conocidos a etiquetas de métricas.
var outcomeLabels = []struct {
	err   error
	label string
}{
	{ErrValidation, "validation"},
	{ErrEmailTaken, "email_taken"},
	{ErrUserNotFound, "user_not_found"},
	{ErrAccountDisabled, "account_disabled"},
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrVerificationInvalid, "verification_invalid"},
	{ErrOTPInvalid, "otp_invalid"},
	{ErrOTPLocked, "otp_locked"},
	{ErrResendLimit, "resend_limit"},
	{ErrPasswordCooldown, "password_cooldown"},
	{ErrResetTokenInvalid, "reset_token_invalid"},
	{ErrMissingToken, "missing_token"},
	{ErrTokenInvalid, "token_invalid"},
	{ErrSessionInvalid, "session_invalid"},
	{ErrAlreadyOnboarded, "already_onboarded"},
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	for _, o := range outcomeLabels {
		if errors.Is(err, o.err) {
			return o.label
		}
	}
	return "error"
}
