// Package session holds server-side session state and the security
// monitor that validates it on every authenticated request.
package session

import "time"

// SecurityRecord is the per-session security state captured at login.
// It exists exactly while the session is authenticated and is cleared
// completely, never merely flagged, on logout or failed validation.
type SecurityRecord struct {
	UserID       string    `json:"user_id"`
	IP           string    `json:"ip"`
	LoginAt      time.Time `json:"login_at"`
	LastActivity time.Time `json:"last_activity"`
}

// PendingMFA is the ephemeral state used by the two MFA flows: a setup
// secret staged during enrollment, and the user waiting for a TOTP code
// between the password step and the verification step of login. It is
// deliberately a separate sub-structure from SecurityRecord so that
// clearing one can never leave the other behind by accident.
type PendingMFA struct {
	SetupSecret string `json:"setup_secret,omitempty"`
	LoginUserID string `json:"login_user_id,omitempty"`
}

// Empty reports whether no MFA flow is in progress.
func (p PendingMFA) Empty() bool {
	return p.SetupSecret == "" && p.LoginUserID == ""
}

// Session is the full server-side state bound to one session token.
type Session struct {
	Security  *SecurityRecord `json:"security,omitempty"`
	Pending   PendingMFA      `json:"pending"`
	CreatedAt time.Time       `json:"created_at"`
}

// Authenticated reports whether the session carries an authenticated
// principal.
func (s *Session) Authenticated() bool {
	return s.Security != nil
}

// ClearSecurity drops the security record and all pending MFA state.
// Used on logout and on any terminal validation outcome.
func (s *Session) ClearSecurity() {
	s.Security = nil
	s.Pending = PendingMFA{}
}
