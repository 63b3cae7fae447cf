package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/ports"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

func manifest(id string, loadOrder int, deps ...string) *entities.Manifest {
	return &entities.Manifest{
		ID:           id,
		DisplayName:  "Extension " + id,
		Version:      "1.0.0",
		Author:       "tabletop",
		APIVersion:   "1.0.0",
		LoadOrder:    loadOrder,
		Dependencies: deps,
	}
}

func mustID(t *testing.T, s string) values.ExtensionID {
	t.Helper()
	id, err := values.NewExtensionID(s)
	require.NoError(t, err)
	return id
}

type recordingSink struct {
	events []ports.Event
}

func (s *recordingSink) Emit(e ports.Event) {
	s.events = append(s.events, e)
}

func TestRegistry_Register(t *testing.T) {
	t.Run("AssignsMonotonicSequence", func(t *testing.T) {
		r := New()

		first, err := r.Register(manifest("alpha", 0))
		require.NoError(t, err)
		second, err := r.Register(manifest("beta", 0))
		require.NoError(t, err)

		assert.Equal(t, uint64(1), first.Seq())
		assert.Equal(t, uint64(2), second.Seq())
		assert.Equal(t, entities.StateRegistered, first.State())
	})

	t.Run("RejectsDuplicateID", func(t *testing.T) {
		r := New()
		_, err := r.Register(manifest("alpha", 0))
		require.NoError(t, err)

		_, err = r.Register(manifest("alpha", 0))
		var dup *entities.DuplicateIDError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, 1, r.Count())
	})

	t.Run("InvalidManifestLeavesNoTrace", func(t *testing.T) {
		r := New()
		bad := manifest("alpha", 0)
		bad.Version = "not-semver"

		_, err := r.Register(bad)
		require.Error(t, err)
		assert.Equal(t, 0, r.Count())

		// The failed attempt must not consume a sequence number.
		desc, err := r.Register(manifest("alpha", 0))
		require.NoError(t, err)
		assert.Equal(t, uint64(1), desc.Seq())
	})

	t.Run("EmitsRegisteredEvent", func(t *testing.T) {
		sink := &recordingSink{}
		r := New(WithEventSink(sink), WithClock(func() time.Time {
			return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
		}))

		_, err := r.Register(manifest("alpha", 0))
		require.NoError(t, err)

		require.Len(t, sink.events, 1)
		assert.Equal(t, ports.EventExtensionRegistered, sink.events[0].Type)
		assert.Equal(t, mustID(t, "alpha"), sink.events[0].ExtensionID)
	})
}

func TestRegistry_Unregister(t *testing.T) {
	t.Run("ReturnsRemovedDescriptor", func(t *testing.T) {
		r := New()
		_, err := r.Register(manifest("alpha", 0))
		require.NoError(t, err)

		desc, err := r.Unregister(mustID(t, "alpha"))
		require.NoError(t, err)
		assert.Equal(t, mustID(t, "alpha"), desc.ID())
		assert.False(t, r.Contains(mustID(t, "alpha")))
	})

	t.Run("UnknownIDFails", func(t *testing.T) {
		r := New()
		_, err := r.Unregister(mustID(t, "ghost"))
		var notFound *entities.NotFoundError
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("IDBecomesReusable", func(t *testing.T) {
		r := New()
		_, err := r.Register(manifest("alpha", 0))
		require.NoError(t, err)
		_, err = r.Unregister(mustID(t, "alpha"))
		require.NoError(t, err)

		_, err = r.Register(manifest("alpha", 0))
		require.NoError(t, err)
	})
}

func TestRegistry_List(t *testing.T) {
	r := New()
	for _, id := range []string{"charlie", "alpha", "beta"} {
		_, err := r.Register(manifest(id, 0))
		require.NoError(t, err)
	}

	t.Run("RegistrationOrder", func(t *testing.T) {
		var ids []string
		for _, desc := range r.List() {
			ids = append(ids, desc.ID().String())
		}
		assert.Equal(t, []string{"charlie", "alpha", "beta"}, ids)
	})

	t.Run("ByStateSortsLoadOrderThenID", func(t *testing.T) {
		r := New()
		_, err := r.Register(manifest("zeta", 1))
		require.NoError(t, err)
		_, err = r.Register(manifest("beta", 2))
		require.NoError(t, err)
		_, err = r.Register(manifest("alpha", 1))
		require.NoError(t, err)

		var ids []string
		for _, desc := range r.ListByState(entities.StateRegistered) {
			ids = append(ids, desc.ID().String())
		}
		assert.Equal(t, []string{"alpha", "zeta", "beta"}, ids)
	})
}

func TestRegistry_Transition(t *testing.T) {
	r := New()
	_, err := r.Register(manifest("alpha", 0))
	require.NoError(t, err)
	id := mustID(t, "alpha")

	t.Run("LegalTransition", func(t *testing.T) {
		desc, err := r.Transition(id, entities.StateActive)
		require.NoError(t, err)
		assert.Equal(t, entities.StateActive, desc.State())
	})

	t.Run("IllegalTransition", func(t *testing.T) {
		_, err := r.Transition(id, entities.StateRegistered)
		var invalid *entities.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
	})

	t.Run("QuarantineOnlyLeavesToDisabled", func(t *testing.T) {
		_, err := r.Transition(id, entities.StateQuarantined)
		require.NoError(t, err)

		_, err = r.Transition(id, entities.StateActive)
		require.Error(t, err)

		_, err = r.Transition(id, entities.StateDisabled)
		require.NoError(t, err)
	})
}

func TestRegistry_Dependents(t *testing.T) {
	r := New()
	_, err := r.Register(manifest("core", 0))
	require.NoError(t, err)
	_, err = r.Register(manifest("ui", 2, "core"))
	require.NoError(t, err)
	_, err = r.Register(manifest("audio", 1, "core"))
	require.NoError(t, err)
	_, err = r.Register(manifest("solo", 3))
	require.NoError(t, err)

	var ids []string
	for _, desc := range r.Dependents(mustID(t, "core")) {
		ids = append(ids, desc.ID().String())
	}
	assert.Equal(t, []string{"audio", "ui"}, ids)
	assert.Empty(t, r.Dependents(mustID(t, "solo")))
}

func TestRegistry_ConcurrentStateAccess(t *testing.T) {
	r := New()
	desc, err := r.Register(manifest("alpha", 0))
	require.NoError(t, err)
	id := desc.ID()
	_, err = r.Transition(id, entities.StateActive)
	require.NoError(t, err)

	// Writers flip Active/Disabled through the registry while readers
	// query state on the shared descriptor. Run with -race.
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = r.Transition(id, entities.StateDisabled)
				_, _ = r.Transition(id, entities.StateActive)
			}
		}()
	}
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				got, err := r.Get(id)
				if !assert.NoError(t, err) {
					return
				}
				state := got.State()
				assert.Contains(t,
					[]entities.LifecycleState{entities.StateActive, entities.StateDisabled},
					state)
				_ = r.ListByState(entities.StateActive)
			}
		}()
	}
	wg.Wait()
}
