package values

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExtensionID(t *testing.T) {
	t.Run("ValidIDs", func(t *testing.T) {
		for _, s := range []string{"dice", "dice-roller", "dice_roller", "dice.v2", "x9", "  padded  "} {
			id, err := NewExtensionID(s)
			require.NoError(t, err, s)
			assert.Equal(t, strings.TrimSpace(s), id.String())
		}
	})

	t.Run("InvalidIDs", func(t *testing.T) {
		cases := []string{
			"",
			"   ",
			"Dice",
			"dice roller",
			"dice/roller",
			`dice\roller`,
			"../escape",
			"dice!",
			strings.Repeat("a", 65),
		}
		for _, s := range cases {
			_, err := NewExtensionID(s)
			assert.Error(t, err, "%q should be rejected", s)
		}
	})

	t.Run("MaxLengthBoundary", func(t *testing.T) {
		_, err := NewExtensionID(strings.Repeat("a", 64))
		assert.NoError(t, err)
	})
}

func TestExtensionID_Comparisons(t *testing.T) {
	a := MustNewExtensionID("alpha")
	b := MustNewExtensionID("beta")

	assert.True(t, a.Equals(MustNewExtensionID("alpha")))
	assert.False(t, a.Equals(b))
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.IsEmpty())
	assert.True(t, ExtensionID{}.IsEmpty())
}

func TestExtensionID_JSON(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		id := MustNewExtensionID("dice-roller")
		data, err := json.Marshal(id)
		require.NoError(t, err)
		assert.Equal(t, `"dice-roller"`, string(data))

		var decoded ExtensionID
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.True(t, id.Equals(decoded))
	})

	t.Run("UnmarshalValidates", func(t *testing.T) {
		var decoded ExtensionID
		assert.Error(t, json.Unmarshal([]byte(`"../escape"`), &decoded))
		assert.Error(t, json.Unmarshal([]byte(`42`), &decoded))
	})
}
