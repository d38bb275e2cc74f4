// Package mfa wraps TOTP enrollment and verification for two-factor
// login.
package mfa

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Manager issues and verifies time-based one-time passwords. Secrets are
// standard RFC 6238 (30 second period, 6 digits, SHA1) so any common
// authenticator app works.
type Manager struct {
	issuer string
}

// NewManager creates a Manager whose issuer name appears in
// authenticator apps.
func NewManager(issuer string) *Manager {
	if issuer == "" {
		issuer = "Shopfront"
	}
	return &Manager{issuer: issuer}
}

// Enrollment is the material a user needs to register the secret in an
// authenticator app. The secret stays staged on the session until the
// user proves possession with a valid code.
type Enrollment struct {
	// Secret is the base32-encoded shared secret.
	Secret string
	// URL is the otpauth:// provisioning URI.
	URL string
	// QRPNG is the provisioning URI rendered as a PNG QR code.
	QRPNG []byte
}

// NewEnrollment generates a fresh TOTP secret for the given account
// label (typically the user's email).
func (m *Manager) NewEnrollment(accountLabel string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: accountLabel,
	})
	if err != nil {
		return nil, fmt.Errorf("generating totp secret: %w", err)
	}
	img, err := key.Image(200, 200)
	if err != nil {
		return nil, fmt.Errorf("rendering provisioning qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding provisioning qr: %w", err)
	}
	return &Enrollment{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRPNG:  buf.Bytes(),
	}, nil
}

// ProvisioningURL rebuilds the otpauth:// URI for an existing secret,
// used when a user re-opens the setup page mid-enrollment.
func (m *Manager) ProvisioningURL(accountLabel, secret string) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s&algorithm=%s&digits=%d&period=%d",
		m.issuer, accountLabel, secret, m.issuer, otp.AlgorithmSHA1, otp.DigitsSix.Length(), 30)
}

// Verify reports whether the code is currently valid for the secret. The
// underlying validator accepts one period of clock skew in either
// direction.
func (m *Manager) Verify(code, secret string) bool {
	if code == "" || secret == "" {
		return false
	}
	return totp.Validate(code, secret)
}
