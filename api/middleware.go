package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/mharding/shopfront/audit"
	"github.com/mharding/shopfront/internal/util"
	"github.com/mharding/shopfront/session"
	"github.com/mharding/shopfront/shop"
)

type contextKey int

const (
	userKey contextKey = iota
	sessionTokenKey
)

const sessionCookieName = "shopfront_session"

// SessionMiddleware authenticates the request, either from the session
// cookie or, when configured, a JWT bearer token. Cookie sessions are
// validated against the IP binding and timeout policy on every request;
// any failed validation clears the session completely and forces
// re-authentication.
func (a *API) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.jwtSecret != nil {
			if user, ok := a.userFromBearerToken(r); ok {
				ctx := context.WithValue(r.Context(), userKey, user)
				ctx = audit.WithActor(ctx, user.ID, a.extractClientIP(r))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		token := cookie.Value

		sess, ok := a.sessions.Get(token)
		if !ok || !sess.Authenticated() {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ip := a.extractClientIP(r)
		status := a.monitor.Validate(sess.Security, ip)
		if !status.Valid() {
			a.logger.Info("session invalidated",
				"reason", status.String(),
				"user_id", sess.Security.UserID,
				"ip", ip)
			a.destroySession(w, r, token, &sess)
			writeError(w, http.StatusUnauthorized, "session "+status.String())
			return
		}
		// Persist the refreshed activity timestamp.
		a.sessions.Put(token, sess)

		user, err := a.store.GetUser(sess.Security.UserID)
		if err != nil || !user.IsActive {
			a.destroySession(w, r, token, &sess)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, sessionTokenKey, token)
		ctx = audit.WithActor(ctx, user.ID, ip)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates the back office. It must run after
// SessionMiddleware.
func (a *API) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		if user == nil || !user.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// destroySession clears the security record and removes the session and
// its cookies. The record is cleared completely, never merely flagged.
func (a *API) destroySession(w http.ResponseWriter, r *http.Request, token string, sess *session.Session) {
	sess.ClearSecurity()
	a.sessions.Delete(token)
	clearSessionCookie(w, r)
	clearCSRFCookie(w, r)
}

func userFromContext(ctx context.Context) *shop.User {
	user, _ := ctx.Value(userKey).(*shop.User)
	return user
}

func sessionTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(sessionTokenKey).(string)
	return token
}

func newSessionToken() (string, error) {
	b, err := util.RandomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func writeSessionCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	secure := requestIsSecure(r)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	secure := requestIsSecure(r)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
