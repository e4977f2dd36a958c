package domain

import (
	"strings"
	"time"
)

// Role identifica el tipo de cuenta en la plataforma.
type Role string

const (
	RoleLandlord Role = "LANDLORD"
	RoleTenant   Role = "TENANT"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole normaliza el rol recibido del cliente.
func ParseRole(raw string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(raw)))
}

// SelfRegistrable indica si el rol puede crearse via /register.
func (r Role) SelfRegistrable() bool {
	return r == RoleLandlord || r == RoleTenant
}

type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	Role               Role       `json:"role"`
	IsVerified         bool       `json:"isVerified"`
	IsDisabled         bool       `json:"isDisabled"`
	HasSeenOnboarding  bool       `json:"hasSeenOnboarding"`
	FirstName          string     `json:"firstName,omitempty"`
	LastName           string     `json:"lastName,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	AvatarURL          string     `json:"avatarUrl,omitempty"`
	LastLogin          *time.Time `json:"lastLogin,omitempty"`
	LastPasswordChange *time.Time `json:"lastPasswordChange,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// UserUpdate describe una actualizacion parcial; los campos nil no se tocan.
type UserUpdate struct {
	PasswordHash       *string
	IsVerified         *bool
	HasSeenOnboarding  *bool
	FirstName          *string
	LastName           *string
	Phone              *string
	AvatarURL          *string
	LastLogin          *time.Time
	LastPasswordChange *time.Time
}

// Empty reporta si la actualizacion no modifica ningun campo.
func (u UserUpdate) Empty() bool {
	return u.PasswordHash == nil &&
		u.IsVerified == nil &&
		u.HasSeenOnboarding == nil &&
		u.FirstName == nil &&
		u.LastName == nil &&
		u.Phone == nil &&
		u.AvatarURL == nil &&
		u.LastLogin == nil &&
		u.LastPasswordChange == nil
}

// ProfileFields son los datos de perfil editables por el propio usuario.
type ProfileFields struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Phone     *string `json:"phone"`
	AvatarURL *string `json:"avatarUrl"`
}

// Apply vuelca los campos presentes sobre una actualizacion parcial.
func (p ProfileFields) Apply(upd *UserUpdate) {
	upd.FirstName = trimmed(p.FirstName)
	upd.LastName = trimmed(p.LastName)
	upd.Phone = trimmed(p.Phone)
	upd.AvatarURL = trimmed(p.AvatarURL)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
