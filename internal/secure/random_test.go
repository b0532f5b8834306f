package secure

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomStringLengthAndCharset(t *testing.T) {
	s, err := RandomString(32)
	require.NoError(t, err)
	assert.Len(t, s, 32)
	for _, r := range s {
		assert.True(t, strings.ContainsRune(Charset, r), "unexpected character %q", r)
	}
}

func TestRandomStringUnique(t *testing.T) {
	a, err := RandomString(32)
	require.NoError(t, err)
	b, err := RandomString(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

// Every accepted byte must map onto the charset uniformly; the truncated
// tail of the byte range (248..255) is rejected outright so no character
// is reachable from more byte values than any other.
func TestCharForUnbiased(t *testing.T) {
	counts := make(map[byte]int)
	rejected := 0
	for b := 0; b < 256; b++ {
		c, ok := charFor(byte(b))
		if !ok {
			rejected++
			continue
		}
		counts[c]++
	}

	assert.Equal(t, 256%len(Charset), rejected)
	require.Len(t, counts, len(Charset))
	for i := 0; i < len(Charset); i++ {
		assert.Equal(t, 256/len(Charset), counts[Charset[i]], "character %q", Charset[i])
	}
}

func TestRandomStringRejectsNonPositiveLength(t *testing.T) {
	_, err := RandomString(0)
	assert.Error(t, err)
	_, err = RandomString(-5)
	assert.Error(t, err)
}
