package hook

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
	"github.com/tabletop-dev/tabletop-host-sdk/sandbox"
)

func mustID(t *testing.T, s string) values.ExtensionID {
	t.Helper()
	id, err := values.NewExtensionID(s)
	require.NoError(t, err)
	return id
}

func newDispatcher() *Dispatcher {
	return New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// marker returns an invoker that appends its tag to the payload's
// "trace" slice, exposing fire order.
func marker(tag string) sandbox.Invoker {
	return func(payload map[string]any) (map[string]any, error) {
		trace, _ := payload["trace"].([]string)
		return map[string]any{"trace": append(trace, tag)}, nil
	}
}

func trace(payload map[string]any) []string {
	out, _ := payload["trace"].([]string)
	return out
}

func TestDispatcher_FireOrder(t *testing.T) {
	t.Run("PriorityAscending", func(t *testing.T) {
		d := newDispatcher()
		d.Register(mustID(t, "late"), "on_turn", 10, marker("late"))
		d.Register(mustID(t, "early"), "on_turn", 1, marker("early"))
		d.Register(mustID(t, "mid"), "on_turn", 5, marker("mid"))

		result := d.Fire("on_turn", nil)
		assert.Equal(t, []string{"early", "mid", "late"}, trace(result))
	})

	t.Run("RegistrationOrderBreaksTies", func(t *testing.T) {
		d := newDispatcher()
		d.Register(mustID(t, "first"), "on_turn", 5, marker("first"))
		d.Register(mustID(t, "second"), "on_turn", 5, marker("second"))

		result := d.Fire("on_turn", nil)
		assert.Equal(t, []string{"first", "second"}, trace(result))
	})

	t.Run("UnknownHookReturnsPayloadCopy", func(t *testing.T) {
		d := newDispatcher()
		payload := map[string]any{"turn": 1}

		result := d.Fire("nobody_listens", payload)

		assert.Equal(t, payload, result)
		result["turn"] = 2
		assert.Equal(t, 1, payload["turn"], "caller payload must stay untouched")
	})
}

func TestDispatcher_FireMerge(t *testing.T) {
	id := mustID(t, "merger")

	t.Run("ResultsShallowMerge", func(t *testing.T) {
		d := newDispatcher()
		d.Register(id, "on_turn", 1, func(payload map[string]any) (map[string]any, error) {
			return map[string]any{"roll": 17}, nil
		})
		d.Register(mustID(t, "second"), "on_turn", 2, func(payload map[string]any) (map[string]any, error) {
			// The accumulated payload from the previous binding is visible.
			assert.Equal(t, 17, payload["roll"])
			return map[string]any{"bonus": 2}, nil
		})

		result := d.Fire("on_turn", map[string]any{"turn": 1})
		assert.Equal(t, map[string]any{"turn": 1, "roll": 17, "bonus": 2}, result)
	})

	t.Run("NilReturnChangesNothing", func(t *testing.T) {
		d := newDispatcher()
		d.Register(id, "on_turn", 1, func(map[string]any) (map[string]any, error) {
			return nil, nil
		})

		result := d.Fire("on_turn", map[string]any{"turn": 1})
		assert.Equal(t, map[string]any{"turn": 1}, result)
	})

	t.Run("BindingsGetTheirOwnCopy", func(t *testing.T) {
		d := newDispatcher()
		d.Register(id, "on_turn", 1, func(payload map[string]any) (map[string]any, error) {
			// A binding mutating its copy must not leak downstream.
			payload["turn"] = 99
			return nil, nil
		})
		d.Register(mustID(t, "second"), "on_turn", 2, func(payload map[string]any) (map[string]any, error) {
			assert.Equal(t, 1, payload["turn"])
			return nil, nil
		})

		result := d.Fire("on_turn", map[string]any{"turn": 1})
		assert.Equal(t, 1, result["turn"])
	})

	t.Run("FailedBindingSkipped", func(t *testing.T) {
		d := newDispatcher()
		d.Register(mustID(t, "a"), "on_turn", 1, marker("a"))
		d.Register(mustID(t, "broken"), "on_turn", 2, func(map[string]any) (map[string]any, error) {
			return map[string]any{"trace": []string{"poison"}}, errors.New("boom")
		})
		d.Register(mustID(t, "c"), "on_turn", 3, marker("c"))

		result := d.Fire("on_turn", nil)
		assert.Equal(t, []string{"a", "c"}, trace(result),
			"a failing binding's partial result must be discarded")
	})
}

func TestDispatcher_SetEnabledFor(t *testing.T) {
	d := newDispatcher()
	id := mustID(t, "toggler")
	d.Register(mustID(t, "a"), "on_turn", 1, marker("a"))
	d.Register(id, "on_turn", 2, marker("toggler"))

	d.SetEnabledFor(id, false)
	assert.Equal(t, []string{"a"}, trace(d.Fire("on_turn", nil)))

	// Re-enabling restores the original position without re-registration.
	d.SetEnabledFor(id, true)
	assert.Equal(t, []string{"a", "toggler"}, trace(d.Fire("on_turn", nil)))

	bindings := d.Bindings("on_turn")
	require.Len(t, bindings, 2)
	assert.Equal(t, 2, bindings[1].Priority)
}

func TestDispatcher_Removal(t *testing.T) {
	t.Run("UnbindRemovesOneHookPoint", func(t *testing.T) {
		d := newDispatcher()
		id := mustID(t, "multi")
		d.Register(id, "on_turn", 1, marker("turn"))
		d.Register(id, "on_draw", 1, marker("draw"))

		d.Unbind(id, "on_turn")

		assert.Empty(t, d.Bindings("on_turn"))
		assert.Len(t, d.Bindings("on_draw"), 1)
		assert.Equal(t, []string{"on_draw"}, d.Hooks())
	})

	t.Run("RemoveForClearsAllHookPoints", func(t *testing.T) {
		d := newDispatcher()
		id := mustID(t, "multi")
		other := mustID(t, "bystander")
		d.Register(id, "on_turn", 1, marker("turn"))
		d.Register(id, "on_draw", 1, marker("draw"))
		d.Register(other, "on_turn", 2, marker("bystander"))

		d.RemoveFor(id)

		assert.Empty(t, d.BindingsFor(id))
		assert.Len(t, d.Bindings("on_turn"), 1)
		assert.Equal(t, []string{"on_turn"}, d.Hooks())
	})
}

func TestDispatcher_BindingsFor(t *testing.T) {
	d := newDispatcher()
	id := mustID(t, "multi")
	d.Register(id, "on_turn", 5, marker("turn"))
	d.Register(id, "on_draw", 1, marker("draw"))
	d.Register(mustID(t, "other"), "on_turn", 1, marker("other"))

	bindings := d.BindingsFor(id)
	require.Len(t, bindings, 2)
	assert.Equal(t, "on_draw", bindings[0].HookName)
	assert.Equal(t, "on_turn", bindings[1].HookName)
}
