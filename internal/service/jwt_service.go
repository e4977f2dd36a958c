package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// JWTService emite y valida el par de tokens de sesión. Access y refresh
// se firman con secretos distintos.
type JWTService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// SessionClaims son los datos de identidad y vínculo de sesión.
type SessionClaims struct {
	UserID    string
	SessionID string
	IP        string
}

type Claims struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sid"`
	IP        string `json:"ip"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Session devuelve los claims de vínculo de sesión.
func (c Claims) Session() SessionClaims {
	return SessionClaims{UserID: c.UserID, SessionID: c.SessionID, IP: c.IP}
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

func NewJWTService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTService {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 5 * time.Hour
	}
	return &JWTService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        "rentease",
		now:           time.Now,
	}
}

// RefreshTTL es también la vida de la sesión viva en Redis.
func (s *JWTService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssuePair firma un access y un refresh token con los mismos claims.
func (s *JWTService) IssuePair(sc SessionClaims) (TokenPair, error) {
	if len(s.accessSecret) == 0 || len(s.refreshSecret) == 0 {
		return TokenPair{}, ErrJWTInvalid
	}
	now := s.now().UTC()
	access, err := s.sign(sc, now, s.accessTTL, tokenTypeAccess, s.accessSecret)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(sc, now, s.refreshTTL, tokenTypeRefresh, s.refreshSecret)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessTTL:    s.accessTTL,
		RefreshTTL:   s.refreshTTL,
	}, nil
}

func (s *JWTService) ParseAccessToken(token string) (Claims, error) {
	return s.parse(token, tokenTypeAccess, s.accessSecret)
}

func (s *JWTService) ParseRefreshToken(token string) (Claims, error) {
	return s.parse(token, tokenTypeRefresh, s.refreshSecret)
}

func (s *JWTService) sign(sc SessionClaims, now time.Time, ttl time.Duration, tokenType string, secret []byte) (string, error) {
	claims := Claims{
		UserID:    sc.UserID,
		SessionID: sc.SessionID,
		IP:        sc.IP,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   sc.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (s *JWTService) parse(tokenString, tokenType string, secret []byte) (Claims, error) {
	if len(secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrJWTInvalid
	}
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}
	if claims.TokenType != tokenType || !validClaims(claims) {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func validClaims(c Claims) bool {
	if strings.TrimSpace(c.UserID) == "" || strings.TrimSpace(c.SessionID) == "" {
		return false
	}
	return c.Subject == c.UserID
}
