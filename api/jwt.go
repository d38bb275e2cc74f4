package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mharding/shopfront/shop"
)

// tokenClaims are the JWT claims carried by machine access tokens.
type tokenClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

const tokenIssuer = "shopfront"

// IssueToken handles POST /auth/token: exchanges email/password (plus a
// TOTP code when the account has MFA enabled) for a short-lived bearer
// token. Machine clients use this instead of cookie sessions; tokens
// are stateless, so IP binding and idle timeout do not apply to them,
// only the expiry.
func (a *API) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	ip := a.extractClientIP(r)

	if blocked, retryAfter := a.ipLimiter.check(ip); blocked {
		writeRateLimited(w, retryAfter)
		return
	}
	if blocked, retryAfter := a.limiter.check(email); blocked {
		writeRateLimited(w, retryAfter)
		return
	}

	user, err := a.store.Authenticate(email, req.Password)
	switch {
	case errors.Is(err, shop.ErrMFARequired):
		if _, verr := a.store.VerifyMFALogin(a.mfa, user.ID, req.Code); verr != nil {
			a.limiter.recordFailure(email)
			a.ipLimiter.recordFailure(ip)
			mapError(w, verr)
			return
		}
	case err != nil:
		a.limiter.recordFailure(email)
		a.ipLimiter.recordFailure(ip)
		mapError(w, err)
		return
	}

	a.limiter.recordSuccess(email)
	a.ipLimiter.recordSuccess(ip)

	signed, err := a.signToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(a.jwtTTL.Seconds()),
	})
}

func (a *API) signToken(user *shop.User) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UserID: user.ID,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.jwtTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// userFromBearerToken resolves a user from an Authorization: Bearer
// header. The account is re-checked on every request so deactivation
// takes effect before the token expires.
func (a *API) userFromBearerToken(r *http.Request) (*shop.User, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, false
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, false
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, false
	}

	user, err := a.store.GetUser(claims.UserID)
	if err != nil || !user.IsActive {
		return nil, false
	}
	return user, true
}
