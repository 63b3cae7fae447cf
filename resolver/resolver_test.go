package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

func desc(t *testing.T, id string, loadOrder int, deps ...string) *entities.Descriptor {
	t.Helper()
	d, err := entities.NewDescriptor(&entities.Manifest{
		ID:           id,
		DisplayName:  "Extension " + id,
		Version:      "1.0.0",
		Author:       "tabletop",
		APIVersion:   "1.0.0",
		LoadOrder:    loadOrder,
		Dependencies: deps,
	})
	require.NoError(t, err)
	return d
}

func ids(list []values.ExtensionID) []string {
	out := make([]string, len(list))
	for i, id := range list {
		out[i] = id.String()
	}
	return out
}

func TestActivationOrder(t *testing.T) {
	t.Run("DependenciesPrecedeDependents", func(t *testing.T) {
		order, err := ActivationOrder([]*entities.Descriptor{
			desc(t, "ui", 2, "core"),
			desc(t, "core", 0),
			desc(t, "audio", 1, "core"),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"core", "audio", "ui"}, ids(order))
	})

	t.Run("DeterministicAcrossTies", func(t *testing.T) {
		descriptors := []*entities.Descriptor{
			desc(t, "beta", 1),
			desc(t, "alpha", 1),
			desc(t, "zeta", 0),
		}

		first, err := ActivationOrder(descriptors)
		require.NoError(t, err)
		assert.Equal(t, []string{"zeta", "alpha", "beta"}, ids(first))

		// Input order must not matter.
		second, err := ActivationOrder([]*entities.Descriptor{
			descriptors[2], descriptors[0], descriptors[1],
		})
		require.NoError(t, err)
		assert.Equal(t, ids(first), ids(second))
	})

	t.Run("DiamondDependency", func(t *testing.T) {
		order, err := ActivationOrder([]*entities.Descriptor{
			desc(t, "top", 3, "left", "right"),
			desc(t, "left", 1, "base"),
			desc(t, "right", 2, "base"),
			desc(t, "base", 0),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"base", "left", "right", "top"}, ids(order))
	})

	t.Run("ExternalDependenciesIgnored", func(t *testing.T) {
		// "engine" is not in the set; activation-time checks own it.
		order, err := ActivationOrder([]*entities.Descriptor{
			desc(t, "mod", 0, "engine"),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"mod"}, ids(order))
	})

	t.Run("CycleFailsWithParticipants", func(t *testing.T) {
		_, err := ActivationOrder([]*entities.Descriptor{
			desc(t, "a", 0, "b"),
			desc(t, "b", 1, "c"),
			desc(t, "c", 2, "a"),
		})

		var cycle *entities.CycleError
		require.ErrorAs(t, err, &cycle)
		assert.ElementsMatch(t, []string{"a", "b", "c"}, ids(cycle.Participants))
	})

	t.Run("SelfCycle", func(t *testing.T) {
		_, err := ActivationOrder([]*entities.Descriptor{
			desc(t, "narcissus", 0, "narcissus"),
		})

		var cycle *entities.CycleError
		require.ErrorAs(t, err, &cycle)
		assert.Equal(t, []string{"narcissus"}, ids(cycle.Participants))
	})

	t.Run("EmptySet", func(t *testing.T) {
		order, err := ActivationOrder(nil)
		require.NoError(t, err)
		assert.Empty(t, order)
	})
}

func TestDependencyCycle(t *testing.T) {
	lookupFor := func(set ...*entities.Descriptor) func(values.ExtensionID) (*entities.Descriptor, bool) {
		byID := make(map[values.ExtensionID]*entities.Descriptor, len(set))
		for _, d := range set {
			byID[d.ID()] = d
		}
		return func(id values.ExtensionID) (*entities.Descriptor, bool) {
			d, ok := byID[id]
			return d, ok
		}
	}

	t.Run("DirectCycle", func(t *testing.T) {
		a := desc(t, "a", 0, "b")
		b := desc(t, "b", 1, "a")

		err := DependencyCycle(a, lookupFor(a, b))
		var cycle *entities.CycleError
		require.ErrorAs(t, err, &cycle)
		assert.ElementsMatch(t, []string{"a", "b"}, ids(cycle.Participants))
	})

	t.Run("CycleDeeperInTheClosure", func(t *testing.T) {
		a := desc(t, "a", 0, "b")
		b := desc(t, "b", 1, "c")
		c := desc(t, "c", 2, "b")

		err := DependencyCycle(a, lookupFor(a, b, c))
		var cycle *entities.CycleError
		require.ErrorAs(t, err, &cycle)
		assert.ElementsMatch(t, []string{"b", "c"}, ids(cycle.Participants))
	})

	t.Run("AcyclicClosure", func(t *testing.T) {
		top := desc(t, "top", 3, "left", "right")
		left := desc(t, "left", 1, "base")
		right := desc(t, "right", 2, "base")
		base := desc(t, "base", 0)

		assert.NoError(t, DependencyCycle(top, lookupFor(top, left, right, base)))
	})

	t.Run("UnknownDependencyEndsTheBranch", func(t *testing.T) {
		mod := desc(t, "mod", 0, "engine")

		assert.NoError(t, DependencyCycle(mod, lookupFor(mod)))
	})

	t.Run("SelfCycle", func(t *testing.T) {
		n := desc(t, "narcissus", 0, "narcissus")

		err := DependencyCycle(n, lookupFor(n))
		var cycle *entities.CycleError
		require.ErrorAs(t, err, &cycle)
		assert.Equal(t, []string{"narcissus"}, ids(cycle.Participants))
	})
}

func TestMissingDependencies(t *testing.T) {
	d := desc(t, "mod", 0, "core", "audio")

	t.Run("AllSatisfied", func(t *testing.T) {
		missing := MissingDependencies(d, func(values.ExtensionID) bool { return true })
		assert.Empty(t, missing)
	})

	t.Run("ReportsInDeclarationOrder", func(t *testing.T) {
		missing := MissingDependencies(d, func(values.ExtensionID) bool { return false })
		assert.Equal(t, []string{"core", "audio"}, ids(missing))
	})
}
