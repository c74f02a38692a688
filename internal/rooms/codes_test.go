package rooms

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomCodeShape(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9]{6}$`)
	for i := 0; i < 200; i++ {
		code, err := newRoomCode()
		require.NoError(t, err)
		assert.True(t, pattern.MatchString(code), "code %q", code)
	}
}

func TestRoomCodesVary(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := newRoomCode()
		require.NoError(t, err)
		seen[code] = true
	}
	// 36^6 values; 200 draws colliding down to a handful would mean the
	// generator is broken.
	assert.Greater(t, len(seen), 190)
}
