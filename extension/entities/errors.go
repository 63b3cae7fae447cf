package entities

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// Sentinel errors for the runtime's error taxonomy. Typed errors below
// carry detail and match these via Is(), so callers can use errors.Is()
// without losing structure.
var (
	// ErrMissingField is returned when a manifest omits a required field.
	ErrMissingField = errors.New("missing required field")

	// ErrDuplicateID is returned when a second descriptor claims an id
	// already held by the registry.
	ErrDuplicateID = errors.New("duplicate extension id")

	// ErrInvalidVersion is returned when a manifest version is not valid
	// semver.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrExtensionNotFound is returned when an id is not in the registry.
	ErrExtensionNotFound = errors.New("extension not found")

	// ErrDependencyUnsatisfied is returned when activation would leave a
	// declared dependency inactive.
	ErrDependencyUnsatisfied = errors.New("dependency unsatisfied")

	// ErrCycleDetected is returned when the dependency graph over the
	// requested set contains a cycle.
	ErrCycleDetected = errors.New("dependency cycle detected")

	// ErrNotActive is returned when an operation requires an Active
	// extension.
	ErrNotActive = errors.New("extension not active")

	// ErrInvalidTransition is returned for illegal lifecycle transitions.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrPermissionDenied is returned by the capability gate. The
	// attempted mutation must not have occurred.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrMutationDenied is returned by the sandbox's read-only state
	// view. Distinct from a value simply not being present.
	ErrMutationDenied = errors.New("mutation denied")

	// ErrExecutionFailed wraps any error escaping wrapped extension code.
	ErrExecutionFailed = errors.New("extension execution failed")

	// ErrManualResolutionRequired is returned for conflict kinds the
	// resolver has no policy for.
	ErrManualResolutionRequired = errors.New("manual resolution required")

	// ErrPackageNotFound is returned when a package cannot be located in
	// any source.
	ErrPackageNotFound = errors.New("package not found")

	// ErrIntegrityCheckFailed is returned when digest verification fails.
	ErrIntegrityCheckFailed = errors.New("integrity check failed")
)

// MissingFieldError reports which manifest field was absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// DuplicateIDError reports the id that was already registered.
type DuplicateIDError struct {
	ID values.ExtensionID
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate extension id: %s", e.ID)
}

func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateID
}

// InvalidVersionError reports a version string semver rejected.
type InvalidVersionError struct {
	ID      string
	Version string
	Cause   error
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("extension %s: invalid version %q: %v", e.ID, e.Version, e.Cause)
}

func (e *InvalidVersionError) Is(target error) bool {
	return target == ErrInvalidVersion
}

func (e *InvalidVersionError) Unwrap() error {
	return e.Cause
}

// NotFoundError reports a lookup for an unknown extension id.
type NotFoundError struct {
	ID values.ExtensionID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("extension not found: %s", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrExtensionNotFound
}

// DependencyError reports which declared dependencies block activation.
type DependencyError struct {
	ID      values.ExtensionID
	Missing []values.ExtensionID
}

func (e *DependencyError) Error() string {
	names := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		names[i] = id.String()
	}
	return fmt.Sprintf("extension %s: dependency unsatisfied: %s", e.ID, strings.Join(names, ", "))
}

func (e *DependencyError) Is(target error) bool {
	return target == ErrDependencyUnsatisfied
}

// CycleError reports the ids participating in a dependency cycle.
type CycleError struct {
	Participants []values.ExtensionID
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Participants))
	for i, id := range e.Participants {
		names[i] = id.String()
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(names, " -> "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// InvalidTransitionError reports an illegal lifecycle transition.
type InvalidTransitionError struct {
	ID   values.ExtensionID
	From LifecycleState
	To   LifecycleState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("extension %s: invalid lifecycle transition %s -> %s", e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// PermissionDeniedError reports a capability gate rejection.
type PermissionDeniedError struct {
	ID         values.ExtensionID
	Capability string
	Operation  string
}

func (e *PermissionDeniedError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("extension %s: permission denied for %s: requires capability %q", e.ID, e.Operation, e.Capability)
	}
	return fmt.Sprintf("extension %s: permission denied: requires capability %q", e.ID, e.Capability)
}

func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// MutationDeniedError reports a write attempted through the read-only
// state view, including the path that was targeted.
type MutationDeniedError struct {
	Path string
}

func (e *MutationDeniedError) Error() string {
	return fmt.Sprintf("mutation denied: host state is read-only (path %q)", e.Path)
}

func (e *MutationDeniedError) Is(target error) bool {
	return target == ErrMutationDenied
}

// ExecutionError attributes a callback failure to the extension that
// raised it. It never unwinds into host code; the dispatcher routes it
// to the fault monitor.
type ExecutionError struct {
	ID    values.ExtensionID
	Hook  string
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("extension %s: hook %q failed: %v", e.ID, e.Hook, e.Cause)
}

func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecutionFailed
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// ConflictError reports a conflict kind the resolver refuses to guess at.
type ConflictError struct {
	Kind string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unrecognized conflict kind %q: manual resolution required", e.Kind)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrManualResolutionRequired
}

// IntegrityError reports a digest mismatch on a fetched package.
type IntegrityError struct {
	Expected values.Digest
	Actual   values.Digest
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed: expected %s, got %s", e.Expected.String(), e.Actual.String())
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrityCheckFailed
}

// PackageNotFoundError reports a package that no source could supply.
type PackageNotFoundError struct {
	Reference values.PackageReference
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("package not found: %s", e.Reference.String())
}

func (e *PackageNotFoundError) Is(target error) bool {
	return target == ErrPackageNotFound
}
