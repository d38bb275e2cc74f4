// Package crypto implements the at-rest encryption primitive for
// protected entity fields: AES-256-GCM over short UTF-8 strings, with a
// stable opaque token format suitable for storage in plain string columns.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	nonceSize = 12
	tagSize   = 16
)

// FieldCipher encrypts and decrypts individual field values. The key is
// read once at construction and held in a locked buffer; the cipher is
// immutable afterwards and safe for concurrent use.
type FieldCipher struct {
	key *memguard.LockedBuffer
}

// NewFieldCipher builds a cipher from a base64-encoded 256-bit key.
// Standard and URL-safe alphabets are accepted, with or without padding.
// Construction fails if the key is missing or does not decode to exactly
// 32 bytes. There is no key rotation: changing the key orphans every
// previously encrypted value.
func NewFieldCipher(encodedKey string) (*FieldCipher, error) {
	if encodedKey == "" {
		return nil, fmt.Errorf("encryption key is not configured")
	}
	raw, err := decodeKey(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	if len(raw) != KeySize {
		memguard.WipeBytes(raw)
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(raw))
	}
	// NewBufferFromBytes wipes raw after copying it into the locked buffer.
	return &FieldCipher{key: memguard.NewBufferFromBytes(raw)}, nil
}

// Destroy wipes the key material. The cipher is unusable afterwards.
func (c *FieldCipher) Destroy() {
	c.key.Destroy()
}

// Encrypt seals a plaintext field value into an opaque token:
// base64(nonce || tag || ciphertext) with a fresh 96-bit random nonce per
// call, so encrypting the same value twice never yields the same token.
// The empty string passes through unchanged, mirroring absent optional
// fields.
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	gcm, err := c.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	// Seal appends the tag to the ciphertext; the token layout wants it
	// between nonce and ciphertext.
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	token := make([]byte, 0, nonceSize+tagSize+len(ct))
	token = append(token, nonce...)
	token = append(token, tag...)
	token = append(token, ct...)

	return base64.StdEncoding.EncodeToString(token), nil
}

// Decrypt opens a token produced by Encrypt. It fails closed: malformed
// base64, a short token, or an authentication failure all report ok=false
// and never an error; callers fall back to treating the stored value as
// legacy plaintext (see FieldCodec).
func (c *FieldCipher) Decrypt(token string) (plaintext string, ok bool) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", false
	}
	if len(data) < nonceSize+tagSize {
		return "", false
	}

	nonce := data[:nonceSize]
	tag := data[nonceSize : nonceSize+tagSize]
	ct := data[nonceSize+tagSize:]

	gcm, err := c.aead()
	if err != nil {
		return "", false
	}

	// Reassemble ciphertext || tag for GCM Open.
	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", false
	}
	return string(plain), true
}

func (c *FieldCipher) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func decodeKey(encoded string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	var err error
	for _, enc := range encodings {
		var raw []byte
		if raw, err = enc.DecodeString(encoded); err == nil {
			return raw, nil
		}
	}
	return nil, err
}

// NewEncodedKey generates a fresh random key in the encoded form accepted
// by NewFieldCipher. Intended for provisioning tooling.
func NewEncodedKey() (string, error) {
	raw := make([]byte, KeySize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}
