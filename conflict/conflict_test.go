package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

func claim(t *testing.T, id string, loadOrder int, seq uint64) Claim {
	t.Helper()
	extID, err := values.NewExtensionID(id)
	require.NoError(t, err)
	return Claim{ExtensionID: extID, LoadOrder: loadOrder, Seq: seq}
}

func TestResolver_Resolve(t *testing.T) {
	r := New()

	t.Run("LowestLoadOrderWins", func(t *testing.T) {
		winner, losers, err := r.Resolve(KindResourceOverride, []Claim{
			claim(t, "late", 5, 1),
			claim(t, "early", 1, 2),
		})
		require.NoError(t, err)
		assert.Equal(t, "early", winner.ExtensionID.String())
		require.Len(t, losers, 1)
		assert.Equal(t, "late", losers[0].ExtensionID.String())
	})

	t.Run("SeqBreaksLoadOrderTies", func(t *testing.T) {
		winner, _, err := r.Resolve(KindHookPriority, []Claim{
			claim(t, "second", 3, 9),
			claim(t, "first", 3, 4),
		})
		require.NoError(t, err)
		assert.Equal(t, "first", winner.ExtensionID.String())
	})

	t.Run("SingleClaimWinsOutright", func(t *testing.T) {
		winner, losers, err := r.Resolve(KindResourceOverride, []Claim{
			claim(t, "solo", 0, 1),
		})
		require.NoError(t, err)
		assert.Equal(t, "solo", winner.ExtensionID.String())
		assert.Empty(t, losers)
	})

	t.Run("UnknownKindEscalates", func(t *testing.T) {
		_, _, err := r.Resolve(Kind("theme_clash"), []Claim{claim(t, "a", 0, 1)})
		var conflictErr *entities.ConflictError
		require.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, "theme_clash", conflictErr.Kind)
	})

	t.Run("EmptyClaimsEscalate", func(t *testing.T) {
		_, _, err := r.Resolve(KindResourceOverride, nil)
		var conflictErr *entities.ConflictError
		require.ErrorAs(t, err, &conflictErr)
	})
}

func TestOrder(t *testing.T) {
	claims := []Claim{
		claim(t, "c", 2, 1),
		claim(t, "a", 1, 7),
		claim(t, "b", 1, 3),
	}

	ordered := Order(claims)

	var got []string
	for _, c := range ordered {
		got = append(got, c.ExtensionID.String())
	}
	assert.Equal(t, []string{"b", "a", "c"}, got)

	// Input slice is untouched.
	assert.Equal(t, "c", claims[0].ExtensionID.String())
}
