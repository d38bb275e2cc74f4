package crypto

// FieldCodec applies a FieldCipher to individual string columns at the
// storage boundary: opaque at rest, plaintext in memory. It can be
// attached to any string-typed attribute without changing the entity's
// shape.
type FieldCodec struct {
	cipher *FieldCipher
}

func NewFieldCodec(cipher *FieldCipher) FieldCodec {
	return FieldCodec{cipher: cipher}
}

// Encode encrypts a value on its way to storage. Empty values pass
// through unchanged.
func (c FieldCodec) Encode(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	return c.cipher.Encrypt(value)
}

// Decode decrypts a stored value on its way into memory. If decryption
// fails the raw stored value is returned as-is: rows written before
// encryption was introduced (or by out-of-band tooling) remain readable.
// A consequence kept deliberately for compatibility: ciphertext corrupted
// in storage degrades to garbled plaintext instead of raising.
func (c FieldCodec) Decode(stored string) string {
	if stored == "" {
		return ""
	}
	if plain, ok := c.cipher.Decrypt(stored); ok {
		return plain
	}
	return stored
}
