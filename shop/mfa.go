package shop

import (
	"context"

	"github.com/mharding/shopfront/mfa"
)

// BeginMFAEnrollment starts two-factor setup for an account. The
// returned secret is staged on the caller's session, not persisted: the
// account only changes once the user proves possession of the secret.
func (s *Store) BeginMFAEnrollment(m *mfa.Manager, userID string) (*mfa.Enrollment, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if user.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}
	return m.NewEnrollment(user.Email)
}

// ConfirmMFAEnrollment completes setup: the code must be valid for the
// staged secret. On success the secret is persisted and the enabled flag
// set; on failure nothing changes, so the caller may keep the staged
// secret and let the user retry.
func (s *Store) ConfirmMFAEnrollment(ctx context.Context, m *mfa.Manager, userID, pendingSecret, code string) error {
	before, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	if before.MFAEnabled {
		return ErrMFAAlreadyEnabled
	}
	if !m.Verify(code, pendingSecret) {
		return ErrMFACodeInvalid
	}
	after := *before
	after.MFASecret = pendingSecret
	after.MFAEnabled = true
	after.UpdatedAt = s.now().UTC()
	if err := s.saveUserUpdate(ctx, *before, after); err != nil {
		return err
	}
	s.logger.Info("mfa enabled", "user_id", userID)
	return nil
}

// VerifyMFALogin checks a TOTP code against the account's persisted
// secret during the second step of login. A failed code leaves the
// staged login untouched so the user can retry without re-entering the
// password.
func (s *Store) VerifyMFALogin(m *mfa.Manager, userID, code string) (*User, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if !user.MFAEnabled || user.MFASecret == "" {
		return nil, ErrMFACodeInvalid
	}
	if !m.Verify(code, user.MFASecret) {
		return nil, ErrMFACodeInvalid
	}
	return user, nil
}

// DisableMFA clears the persisted secret and the enabled flag for the
// authenticated account. No code re-verification happens before the
// clear.
//
// TODO: require a current TOTP code (or the password) before disabling.
func (s *Store) DisableMFA(ctx context.Context, userID string) error {
	before, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	after := *before
	after.MFASecret = ""
	after.MFAEnabled = false
	after.UpdatedAt = s.now().UTC()
	if err := s.saveUserUpdate(ctx, *before, after); err != nil {
		return err
	}
	s.logger.Info("mfa disabled", "user_id", userID)
	return nil
}
