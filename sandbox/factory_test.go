package sandbox

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

type stubState struct {
	snapshot map[string]any
}

func (s *stubState) Snapshot() map[string]any {
	return s.snapshot
}

type faultReport struct {
	ID   values.ExtensionID
	Hook string
	Err  error
}

// stubFaultReporter is safe for concurrent use; timer callbacks report
// from their own goroutines.
type stubFaultReporter struct {
	mu      sync.Mutex
	reports []faultReport
}

func (r *stubFaultReporter) Report(id values.ExtensionID, hook string, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, faultReport{ID: id, Hook: hook, Err: err})
	return false
}

func (r *stubFaultReporter) Reports() []faultReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]faultReport(nil), r.reports...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func factoryID(t *testing.T, s string) values.ExtensionID {
	t.Helper()
	id, err := values.NewExtensionID(s)
	require.NoError(t, err)
	return id
}

func TestFactory_ContextFor(t *testing.T) {
	f := NewFactory(&stubState{snapshot: map[string]any{"turn": 1}}, nil,
		WithLogger(testLogger()))
	id := factoryID(t, "dice-roller")

	t.Run("ReusedAcrossCalls", func(t *testing.T) {
		first := f.ContextFor(id)
		second := f.ContextFor(id)
		assert.Same(t, first, second)
		assert.Equal(t, id, first.ExtensionID())
	})

	t.Run("DistinctPerExtension", func(t *testing.T) {
		other := f.ContextFor(factoryID(t, "scorekeeper"))
		assert.NotSame(t, f.ContextFor(id), other)
	})

	t.Run("StateObservesCurrentSnapshot", func(t *testing.T) {
		ctx := f.ContextFor(id)
		val, ok := ctx.State().Get("turn")
		require.True(t, ok)
		n, _ := val.Int()
		assert.Equal(t, int64(1), n)
	})

	t.Run("NilStateProviderYieldsEmptyView", func(t *testing.T) {
		bare := NewFactory(nil, nil, WithLogger(testLogger()))
		ctx := bare.ContextFor(id)
		assert.Zero(t, ctx.State().Len())
	})
}

func TestFactory_Wrap(t *testing.T) {
	id := factoryID(t, "dice-roller")

	t.Run("PassesContextAndPayload", func(t *testing.T) {
		f := NewFactory(nil, nil, WithLogger(testLogger()))
		invoke := f.Wrap(id, "on_turn", func(ctx *Context, payload map[string]any) (map[string]any, error) {
			assert.Equal(t, id, ctx.ExtensionID())
			return map[string]any{"roll": payload["sides"]}, nil
		})

		result, err := invoke(map[string]any{"sides": 20})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"roll": 20}, result)
	})

	t.Run("PanicBecomesExecutionError", func(t *testing.T) {
		faults := &stubFaultReporter{}
		f := NewFactory(nil, faults, WithLogger(testLogger()))
		invoke := f.Wrap(id, "on_turn", func(*Context, map[string]any) (map[string]any, error) {
			panic("dice exploded")
		})

		result, err := invoke(nil)
		assert.Nil(t, result)

		var execErr *entities.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, id, execErr.ID)
		assert.Equal(t, "on_turn", execErr.Hook)
		assert.Contains(t, execErr.Cause.Error(), "dice exploded")

		require.Len(t, faults.Reports(), 1)
		assert.Equal(t, "on_turn", faults.Reports()[0].Hook)
	})

	t.Run("PlainErrorIsWrappedAndReported", func(t *testing.T) {
		faults := &stubFaultReporter{}
		f := NewFactory(nil, faults, WithLogger(testLogger()))
		cause := errors.New("no dice left")
		invoke := f.Wrap(id, "on_turn", func(*Context, map[string]any) (map[string]any, error) {
			return nil, cause
		})

		_, err := invoke(nil)

		var execErr *entities.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, cause, execErr.Cause)
		assert.Len(t, faults.Reports(), 1)
	})

	t.Run("SuccessReportsNothing", func(t *testing.T) {
		faults := &stubFaultReporter{}
		f := NewFactory(nil, faults, WithLogger(testLogger()))
		invoke := f.Wrap(id, "on_turn", func(*Context, map[string]any) (map[string]any, error) {
			return nil, nil
		})

		_, err := invoke(nil)
		require.NoError(t, err)
		assert.Empty(t, faults.Reports())
	})
}

func TestFactory_TimerLifecycle(t *testing.T) {
	id := factoryID(t, "dice-roller")

	t.Run("StopTimersRejectsNewScheduling", func(t *testing.T) {
		f := NewFactory(nil, nil, WithLogger(testLogger()))
		ctx := f.ContextFor(id)

		ctx.After(time.Minute, func() {})
		require.Equal(t, 1, ctx.ActiveTimers())

		f.StopTimers(id)
		assert.Zero(t, ctx.ActiveTimers())

		ctx.After(time.Minute, func() {})
		assert.Zero(t, ctx.ActiveTimers())
	})

	t.Run("ResumeReenablesScheduling", func(t *testing.T) {
		f := NewFactory(nil, nil, WithLogger(testLogger()))
		ctx := f.ContextFor(id)

		f.StopTimers(id)
		f.Resume(id)

		ctx.After(time.Minute, func() {})
		assert.Equal(t, 1, ctx.ActiveTimers())
	})

	t.Run("RemoveDropsContext", func(t *testing.T) {
		f := NewFactory(nil, nil, WithLogger(testLogger()))
		ctx := f.ContextFor(id)
		ctx.After(time.Minute, func() {})

		f.Remove(id)

		assert.Zero(t, ctx.ActiveTimers())
		assert.NotSame(t, ctx, f.ContextFor(id))
	})

	t.Run("UnknownIDIsANoOp", func(t *testing.T) {
		f := NewFactory(nil, nil, WithLogger(testLogger()))
		f.StopTimers(factoryID(t, "ghost"))
		f.Resume(factoryID(t, "ghost"))
		f.Remove(factoryID(t, "ghost"))
	})

	t.Run("TimerPanicRoutedToFaultReporter", func(t *testing.T) {
		faults := &stubFaultReporter{}
		f := NewFactory(nil, faults, WithLogger(testLogger()))
		ctx := f.ContextFor(id)

		done := make(chan struct{})
		ctx.After(time.Millisecond, func() {
			defer close(done)
			panic("timer exploded")
		})

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timer never fired")
		}

		require.Eventually(t, func() bool { return len(faults.Reports()) == 1 },
			time.Second, 5*time.Millisecond)
		assert.Equal(t, "timer", faults.Reports()[0].Hook)
	})
}
