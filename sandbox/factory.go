package sandbox

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/ports"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// Callback is the signature extension code implements for hook points.
// The returned map is shallow-merged into the event payload; a nil
// return leaves the payload unchanged.
type Callback func(ctx *Context, payload map[string]any) (map[string]any, error)

// Invoker is a callback bound to its sandbox context, ready for the
// dispatcher to call with just the payload.
type Invoker func(payload map[string]any) (map[string]any, error)

// FaultReporter receives contained callback failures. *fault.Monitor
// satisfies it.
type FaultReporter interface {
	Report(id values.ExtensionID, hook string, err error) bool
}

// Factory creates and caches one sandbox context per extension and
// wraps callbacks with panic containment, timing and fault reporting.
type Factory struct {
	mu       sync.Mutex
	contexts map[values.ExtensionID]*Context

	state  ports.HostStateProvider
	faults FaultReporter
	logger *slog.Logger
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the base logger extension loggers derive from.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFactory creates a sandbox factory. state may be nil, in which case
// extensions see empty host state; faults may be nil to disable
// containment reporting.
func NewFactory(state ports.HostStateProvider, faults FaultReporter, opts ...Option) *Factory {
	f := &Factory{
		contexts: make(map[values.ExtensionID]*Context),
		state:    state,
		faults:   faults,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ContextFor returns the extension's sandbox context, creating it on
// first use.
func (f *Factory) ContextFor(id values.ExtensionID) *Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx, ok := f.contexts[id]; ok {
		return ctx
	}
	ctx := &Context{
		id:     id,
		logger: f.logger.With("extension_id", id.String()),
		state:  f.state,
	}
	ctx.timers = newTimerSet(func(fn func()) {
		f.contain(id, "timer", fn)
	})
	f.contexts[id] = ctx
	return ctx
}

// StopTimers cancels every timer the extension scheduled. Scheduling
// stays rejected until the context is resumed.
func (f *Factory) StopTimers(id values.ExtensionID) {
	if ctx := f.peek(id); ctx != nil {
		ctx.timers.StopAll()
	}
}

// Resume re-enables timer scheduling after StopTimers, for when a
// disabled extension is re-enabled.
func (f *Factory) Resume(id values.ExtensionID) {
	if ctx := f.peek(id); ctx != nil {
		ctx.timers.Reset()
	}
}

// Remove tears down the extension's context entirely. Called on
// unregister.
func (f *Factory) Remove(id values.ExtensionID) {
	f.mu.Lock()
	ctx, ok := f.contexts[id]
	delete(f.contexts, id)
	f.mu.Unlock()
	if ok {
		ctx.timers.StopAll()
	}
}

// Wrap binds a callback to its sandbox context and adds the containment
// layer: panics become ExecutionErrors, failures are timed, logged and
// reported to the fault monitor, and the error is returned to the
// dispatcher instead of escaping.
func (f *Factory) Wrap(id values.ExtensionID, hookName string, cb Callback) Invoker {
	ctx := f.ContextFor(id)
	return func(payload map[string]any) (result map[string]any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				err = &entities.ExecutionError{
					ID:    id,
					Hook:  hookName,
					Cause: fmt.Errorf("panic: %v\n%s", r, summarizeStack(debug.Stack())),
				}
				result = nil
			}
			elapsed := time.Since(start)
			if err != nil {
				if _, ok := err.(*entities.ExecutionError); !ok {
					err = &entities.ExecutionError{ID: id, Hook: hookName, Cause: err}
				}
				if f.faults != nil {
					f.faults.Report(id, hookName, err)
				}
				return
			}
			f.logger.Debug("callback completed",
				"extension_id", id.String(),
				"hook", hookName,
				"elapsed", elapsed)
		}()
		return cb(ctx, payload)
	}
}

// contain runs fn with panic recovery, routing failures to the fault
// monitor. Used for timer callbacks, which have no dispatcher above
// them to catch errors.
func (f *Factory) contain(id values.ExtensionID, origin string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := &entities.ExecutionError{
				ID:    id,
				Hook:  origin,
				Cause: fmt.Errorf("panic: %v\n%s", r, summarizeStack(debug.Stack())),
			}
			if f.faults != nil {
				f.faults.Report(id, origin, err)
			}
		}
	}()
	fn()
}

func (f *Factory) peek(id values.ExtensionID) *Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contexts[id]
}

// summarizeStack keeps the first few frames of a stack trace so fault
// records stay readable.
func summarizeStack(stack []byte) string {
	const maxLen = 1024
	if len(stack) > maxLen {
		return string(stack[:maxLen]) + "..."
	}
	return string(stack)
}
