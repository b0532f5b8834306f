// Package secure generates secret material in protected memory.
//
// Generated values (encryption keys, fallback passwords) are produced inside
// a memguard locked buffer, mapped onto a printable charset, and the raw
// random bytes are wiped before the function returns. The resulting string
// still crosses into normal memory — Go strings cannot be locked — but the
// window holding raw entropy is kept as small as possible.
package secure

import (
	"fmt"

	"github.com/awnumar/memguard"
)

// Charset is the alphabet used for generated secrets. Alphanumeric only so
// values survive shell quoting, URL embedding, and connection strings.
const Charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// charFor maps one random byte onto Charset. Bytes beyond the largest
// multiple of len(Charset) are rejected: 62 does not divide 256, so
// reducing them modulo 62 would skew output toward the low end of the
// charset. The caller draws fresh bytes for rejected ones.
func charFor(b byte) (byte, bool) {
	limit := len(Charset) * (256 / len(Charset))
	if int(b) >= limit {
		return 0, false
	}
	return Charset[int(b)%len(Charset)], true
}

// RandomString returns a cryptographically secure random string of n
// characters drawn uniformly from Charset.
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("random string length must be positive, got %d", n)
	}

	out := make([]byte, 0, n)
	for len(out) < n {
		// NewBufferRandom fills a locked, guarded buffer from crypto/rand.
		buf := memguard.NewBufferRandom(n - len(out))
		for _, b := range buf.Bytes() {
			c, ok := charFor(b)
			if !ok {
				continue
			}
			out = append(out, c)
		}
		buf.Destroy()
	}

	return string(out), nil
}
