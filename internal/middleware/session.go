package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// SessionCookieName is the cookie carrying the browser session id.
const SessionCookieName = "ocap_session"

type sessionKey struct{}

// SessionCookie assigns every browser a session id and exposes it through
// the request context.
type SessionCookie struct {
	Secure bool
	MaxAge time.Duration
}

// Handler implements chi-compatible middleware.
func (s SessionCookie) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(SessionCookieName); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}

		if id == "" {
			id = uuid.NewString()
		}

		// 每次请求都刷新 cookie，使过期时间随活跃度滑动。
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieName,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.Secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(s.MaxAge.Seconds()),
		})

		next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
	})
}

// WithSessionID stores the browser session id in ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionID returns the browser session id of the request.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
