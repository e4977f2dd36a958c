package email

import (
	"bytes"
	"embed"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/yuin/goldmark"
)

//go:embed templates/*.md
var templatesFS embed.FS

const (
	tmplVerification  = "verification.md"
	tmplWelcome       = "welcome.md"
	tmplResetPassword = "reset_password.md"
)

// Renderer arma los correos a partir de plantillas Markdown embebidas y
// las convierte a HTML. goldmark omite el HTML crudo, así que los valores
// interpolados no pueden inyectar marcado.
type Renderer struct {
	tmpls  *template.Template
	md     goldmark.Markdown
	appURL string
}

func NewRenderer(appURL string) (*Renderer, error) {
	tmpls, err := template.ParseFS(templatesFS, "templates/*.md")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Renderer{
		tmpls:  tmpls,
		md:     goldmark.New(),
		appURL: strings.TrimRight(appURL, "/"),
	}, nil
}

func (r *Renderer) Verification(to, otp string, ttl time.Duration) (Message, error) {
	return r.render(to, "Verify your RentEase email", tmplVerification, map[string]any{
		"OTP":              otp,
		"ExpiresInMinutes": int(ttl.Minutes()),
	})
}

func (r *Renderer) Welcome(to string) (Message, error) {
	return r.render(to, "Welcome to RentEase", tmplWelcome, map[string]any{
		"Email":  to,
		"AppURL": r.appURL,
	})
}

func (r *Renderer) PasswordReset(to, token string, ttl time.Duration) (Message, error) {
	return r.render(to, "Reset your RentEase password", tmplResetPassword, map[string]any{
		"Email":            to,
		"ResetURL":         r.ResetURL(token),
		"ExpiresInMinutes": int(ttl.Minutes()),
	})
}

// ResetURL construye el enlace del frontend que recibe el token de reset.
func (r *Renderer) ResetURL(token string) string {
	return r.appURL + "/reset-password?" + url.Values{"token": {token}}.Encode()
}

func (r *Renderer) render(to, subject, name string, data map[string]any) (Message, error) {
	var src bytes.Buffer
	if err := r.tmpls.ExecuteTemplate(&src, name, data); err != nil {
		return Message{}, fmt.Errorf("execute %s: %w", name, err)
	}
	var html bytes.Buffer
	if err := r.md.Convert(src.Bytes(), &html); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Message{To: to, Subject: subject, HTMLBody: html.String()}, nil
}
