package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResourceKey(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		rk, err := NewResourceKey("card", "ace")
		require.NoError(t, err)
		assert.Equal(t, "card", rk.Type())
		assert.Equal(t, "ace", rk.Key())
		assert.Equal(t, "card/ace", rk.String())
	})

	t.Run("TrimsWhitespace", func(t *testing.T) {
		rk, err := NewResourceKey(" card ", " ace ")
		require.NoError(t, err)
		assert.Equal(t, "card/ace", rk.String())
	})

	t.Run("EmptyPartsRejected", func(t *testing.T) {
		_, err := NewResourceKey("", "ace")
		assert.Error(t, err)
		_, err = NewResourceKey("card", "")
		assert.Error(t, err)
	})

	t.Run("SlashInTypeRejected", func(t *testing.T) {
		_, err := NewResourceKey("card/art", "ace")
		assert.Error(t, err)
	})

	t.Run("SlashInKeyAllowed", func(t *testing.T) {
		// Keys may be hierarchical; only the type is a single segment.
		rk, err := NewResourceKey("card", "goblin/art")
		require.NoError(t, err)
		assert.Equal(t, "card/goblin/art", rk.String())
	})
}

func TestResourceKey_Equals(t *testing.T) {
	a := MustNewResourceKey("card", "ace")
	assert.True(t, a.Equals(MustNewResourceKey("card", "ace")))
	assert.False(t, a.Equals(MustNewResourceKey("card", "king")))
	assert.False(t, a.Equals(MustNewResourceKey("sound", "ace")))
}
