package domain

// VerifyContext indica que flujo disparo la verificacion de email.
type VerifyContext string

const (
	VerifyContextRegister VerifyContext = "register"
	VerifyContextLogin    VerifyContext = "login"
)

// EmailVerification es el registro efimero verify_email:{token}.
type EmailVerification struct {
	Token    string
	Email    string
	OTP      string
	Attempts int
	Resends  int
	Context  VerifyContext
}

// PasswordReset es el registro efimero reset_password:{token}.
type PasswordReset struct {
	Token string
	Email string
}

// LiveSession vincula un usuario y una IP con el sid de los tokens vigentes.
type LiveSession struct {
	UserID    string
	ClientIP  string
	SessionID string
}
