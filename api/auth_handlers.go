package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mharding/shopfront/session"
	"github.com/mharding/shopfront/shop"
)

// Register handles POST /auth/register.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Username == "" || len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "email, username and a password of at least 8 characters are required")
		return
	}

	user, err := a.store.Register(r.Context(), shop.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login handles POST /auth/login. Accounts with MFA enabled get their
// user id staged on the session instead of a security record; the
// session only becomes authenticated after /auth/verify-2fa.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
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
		token, err := a.stageSession(session.Session{
			Pending:   session.PendingMFA{LoginUserID: user.ID},
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create session")
			return
		}
		writeSessionCookie(w, r, token, time.Now().Add(10*time.Minute))
		writeJSON(w, http.StatusOK, LoginResponse{MFARequired: true})
		return
	case err != nil:
		a.limiter.recordFailure(email)
		a.ipLimiter.recordFailure(ip)
		a.logger.Info("login failed", "email", email, "ip", ip, "reason", err.Error())
		mapError(w, err)
		return
	}

	a.limiter.recordSuccess(email)
	a.ipLimiter.recordSuccess(ip)
	if err := a.establishSession(w, r, user, ip); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{User: toUserResponse(user)})
}

// VerifyTwoFactorLogin handles POST /auth/verify-2fa, the second step of
// login for MFA-enabled accounts. A wrong code keeps the staged user id
// so the client may retry without re-entering the password.
func (a *API) VerifyTwoFactorLogin(w http.ResponseWriter, r *http.Request) {
	var req VerifyTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "no login in progress")
		return
	}
	sess, ok := a.sessions.Get(cookie.Value)
	if !ok || sess.Pending.LoginUserID == "" {
		writeError(w, http.StatusUnauthorized, "no login in progress")
		return
	}

	user, err := a.store.VerifyMFALogin(a.mfa, sess.Pending.LoginUserID, req.Code)
	if err != nil {
		mapError(w, err)
		return
	}

	// Replace the staged session with a fully authenticated one.
	a.sessions.Delete(cookie.Value)
	ip := a.extractClientIP(r)
	if err := a.establishSession(w, r, user, ip); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{User: toUserResponse(user)})
}

// Logout handles POST /auth/logout. Safe to call without a session.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if sess, ok := a.sessions.Get(cookie.Value); ok {
			a.destroySession(w, r, cookie.Value, &sess)
		} else {
			clearSessionCookie(w, r)
			clearCSRFCookie(w, r)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetProfile handles GET /account/profile.
func (a *API) GetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserResponse(userFromContext(r.Context())))
}

// UpdateProfile handles PUT /account/profile.
func (a *API) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user := userFromContext(r.Context())
	updated, err := a.store.UpdateProfile(r.Context(), user.ID, shop.ProfileInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// ChangePassword handles POST /account/password.
func (a *API) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.NewPassword) < 8 {
		writeError(w, http.StatusBadRequest, "new password must be at least 8 characters")
		return
	}
	user := userFromContext(r.Context())
	if err := a.store.ChangePassword(r.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetupTwoFactor handles POST /account/2fa/setup: generates a fresh
// secret, stages it on the session, and returns the provisioning
// material. The account is not modified until the code is confirmed.
func (a *API) SetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	token := sessionTokenFromContext(r.Context())
	if token == "" {
		writeError(w, http.StatusBadRequest, "2fa setup requires a cookie session")
		return
	}

	enrollment, err := a.store.BeginMFAEnrollment(a.mfa, user.ID)
	if err != nil {
		mapError(w, err)
		return
	}

	sess, ok := a.sessions.Get(token)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	sess.Pending.SetupSecret = enrollment.Secret
	a.sessions.Put(token, sess)

	writeJSON(w, http.StatusOK, TwoFactorSetupResponse{
		Secret: enrollment.Secret,
		URL:    enrollment.URL,
		QRPNG:  enrollment.QRPNG,
	})
}

// EnableTwoFactor handles POST /account/2fa/enable: confirms the staged
// secret with a current code. A wrong code preserves the staged secret
// for retry.
func (a *API) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req VerifyTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user := userFromContext(r.Context())
	token := sessionTokenFromContext(r.Context())
	if token == "" {
		writeError(w, http.StatusBadRequest, "2fa setup requires a cookie session")
		return
	}
	sess, ok := a.sessions.Get(token)
	if !ok || sess.Pending.SetupSecret == "" {
		writeError(w, http.StatusConflict, "no 2fa setup in progress")
		return
	}

	if err := a.store.ConfirmMFAEnrollment(r.Context(), a.mfa, user.ID, sess.Pending.SetupSecret, req.Code); err != nil {
		mapError(w, err)
		return
	}

	sess.Pending.SetupSecret = ""
	a.sessions.Put(token, sess)
	w.WriteHeader(http.StatusNoContent)
}

// DisableTwoFactor handles POST /account/2fa/disable.
func (a *API) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if err := a.store.DisableMFA(r.Context(), user.ID); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// establishSession creates an authenticated session after all login
// factors have passed, binding it to the login IP.
func (a *API) establishSession(w http.ResponseWriter, r *http.Request, user *shop.User, ip string) error {
	token, err := a.stageSession(session.Session{
		Security:  a.monitor.Init(user.ID, ip),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	writeSessionCookie(w, r, token, time.Now().Add(session.DefaultAbsoluteTimeout))
	writeCSRFCookie(w, r)
	a.logger.Info("login", "user_id", user.ID, "ip", ip)
	return nil
}

func (a *API) stageSession(sess session.Session) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	a.sessions.Put(token, sess)
	return token, nil
}
