package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rentease/internal/service"
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
)

// CookieConfig controla los atributos de las cookies de sesión.
type CookieConfig struct {
	Secure bool
	Domain string
}

func (cc CookieConfig) setTokens(c *gin.Context, pair service.TokenPair) {
	cc.set(c, accessCookie, pair.AccessToken, pair.AccessTTL)
	cc.set(c, refreshCookie, pair.RefreshToken, pair.RefreshTTL)
}

func (cc CookieConfig) clearTokens(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, "", -1, "/", cc.Domain, cc.Secure, true)
	c.SetCookie(refreshCookie, "", -1, "/", cc.Domain, cc.Secure, true)
}

func (cc CookieConfig) set(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl/time.Second), "/", cc.Domain, cc.Secure, true)
}

// cookieValue devuelve "" si la cookie no viene en la petición.
func cookieValue(c *gin.Context, name string) string {
	v, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return v
}
