package hostlib

import (
	"log/slog"
	"time"

	"github.com/tabletop-dev/tabletop-host-sdk/sandbox"
)

// Middleware wraps an invoker to add cross-cutting behavior around
// extension callbacks. Middleware executes in FIFO order (first in the
// chain wraps outermost, onion model).
//
// Example usage:
//
//	timing := func(next sandbox.Invoker) sandbox.Invoker {
//	    return func(payload map[string]any) (map[string]any, error) {
//	        start := time.Now()
//	        defer func() { log.Printf("took %v", time.Since(start)) }()
//	        return next(payload)
//	    }
//	}
type Middleware func(next sandbox.Invoker) sandbox.Invoker

// ChainMiddleware composes middlewares around an invoker.
func ChainMiddleware(invoker sandbox.Invoker, middlewares ...Middleware) sandbox.Invoker {
	for i := len(middlewares) - 1; i >= 0; i-- {
		invoker = middlewares[i](invoker)
	}
	return invoker
}

// LoggingMiddleware returns a middleware that logs each invocation with
// its outcome and duration.
func LoggingMiddleware(logger *slog.Logger, extensionID, hookName string) Middleware {
	return func(next sandbox.Invoker) sandbox.Invoker {
		return func(payload map[string]any) (map[string]any, error) {
			start := time.Now()
			result, err := next(payload)
			if err != nil {
				logger.Warn("callback failed",
					"extension_id", extensionID,
					"hook", hookName,
					"elapsed", time.Since(start),
					"error", err)
			} else {
				logger.Debug("callback invoked",
					"extension_id", extensionID,
					"hook", hookName,
					"elapsed", time.Since(start))
			}
			return result, err
		}
	}
}

// DeadlineMiddleware returns a middleware that fails slow callbacks
// once they exceed the budget. The callback itself is not interrupted;
// its result is discarded and the dispatcher moves on.
func DeadlineMiddleware(budget time.Duration) Middleware {
	return func(next sandbox.Invoker) sandbox.Invoker {
		return func(payload map[string]any) (map[string]any, error) {
			type outcome struct {
				result map[string]any
				err    error
			}
			done := make(chan outcome, 1)
			go func() {
				result, err := next(payload)
				done <- outcome{result, err}
			}()
			select {
			case out := <-done:
				return out.result, out.err
			case <-time.After(budget):
				return nil, &CallbackTimeoutError{Budget: budget}
			}
		}
	}
}

// CallbackTimeoutError reports a callback that exceeded its budget.
type CallbackTimeoutError struct {
	Budget time.Duration
}

func (e *CallbackTimeoutError) Error() string {
	return "callback exceeded time budget " + e.Budget.String()
}
