package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/pribylovaa/club-auth/internal/models"
)

// setSession пишет access в заголовок Authorization, refresh — в cookie
// с Max-Age до истечения refresh.
func (h *Handlers) setSession(w http.ResponseWriter, pair *models.TokenPair, now time.Time) {
	w.Header().Set("Authorization", "Bearer "+pair.AccessToken)

	maxAge := int(pair.RefreshExpiresAt.Sub(now).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}

	http.SetCookie(w, h.newCookie(pair.RefreshToken, maxAge))
}

// clearSession удаляет refresh-cookie у клиента.
func (h *Handlers) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, h.newCookie("", -1))
}

// refreshFromCookie — значение refresh-cookie или "".
func (h *Handlers) refreshFromCookie(r *http.Request) string {
	c, err := r.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *Handlers) newCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !h.cookie.Insecure,
		SameSite: sameSite(h.cookie.SameSite),
	}
}

func sameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
