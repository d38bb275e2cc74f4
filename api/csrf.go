package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mharding/shopfront/internal/uuid"
)

const (
	csrfCookieName = "shopfront_csrf"
	csrfHeaderName = "X-CSRF-Token"
)

// CSRFMiddleware enforces double-submit cookie CSRF protection for
// cookie-authenticated mutating requests. Safe methods (GET, HEAD,
// OPTIONS) and bearer-authenticated requests are exempt.
func (a *API) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		// Without a session cookie the request is either
		// bearer-authenticated or unauthenticated; both are immune to
		// CSRF because cross-origin requests cannot set custom headers.
		if _, err := r.Cookie(sessionCookieName); err != nil {
			next.ServeHTTP(w, r)
			return
		}
		// The login endpoints run before a CSRF cookie exists: a staged
		// MFA session cookie may already be present there. Match on the
		// routed path, which stays stable when the router is mounted
		// under a prefix.
		if p := routePath(r); p == "/auth/login" || p == "/auth/verify-2fa" {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusForbidden, "missing CSRF token")
			return
		}
		header := r.Header.Get(csrfHeaderName)
		if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
			writeError(w, http.StatusForbidden, "invalid CSRF token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// routePath returns the path as seen by this router: chi's Mount strips
// the mount prefix into the route context, so a router mounted under
// /api/v1 still sees /auth/login here. Standalone, the URL path is used.
func routePath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePath != "" {
		return rctx.RoutePath
	}
	return r.URL.Path
}

// writeCSRFCookie sets the CSRF double-submit cookie. Deliberately not
// HttpOnly: the browser client reads it and echoes it as a request
// header on mutating requests.
func writeCSRFCookie(w http.ResponseWriter, r *http.Request) {
	token := uuid.New()
	secure := requestIsSecure(r)
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearCSRFCookie removes the CSRF cookie on logout.
func clearCSRFCookie(w http.ResponseWriter, r *http.Request) {
	secure := requestIsSecure(r)
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}
