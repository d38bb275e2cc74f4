package util

// CopyBytes returns an independent copy of src. Key material handed to a
// long-lived owner is copied first, so the caller stays free to wipe its
// own buffer.
func CopyBytes(src []byte) []byte {
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}

// WipeBytes best-effort zeroes b in place. Plaintext session state and
// key copies go through here as soon as they are no longer needed; the
// zeroing is not guaranteed against compiler copies or swap.
func WipeBytes(b []byte) {
	clear(b)
}
