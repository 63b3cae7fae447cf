// Package hostlib is an in-process extension runtime for tabletop game
// hosts. Extensions register with a validated manifest, activate in
// dependency order, attach callbacks to hook points, and override host
// resources, all behind a capability gate and a fault monitor that
// quarantines misbehaving extensions.
package hostlib

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/tabletop-dev/tabletop-host-sdk/capability"
	"github.com/tabletop-dev/tabletop-host-sdk/conflict"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/ports"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
	"github.com/tabletop-dev/tabletop-host-sdk/fault"
	"github.com/tabletop-dev/tabletop-host-sdk/hook"
	"github.com/tabletop-dev/tabletop-host-sdk/registry"
	"github.com/tabletop-dev/tabletop-host-sdk/resolver"
	"github.com/tabletop-dev/tabletop-host-sdk/resource"
	"github.com/tabletop-dev/tabletop-host-sdk/sandbox"
)

// Runtime is the extension host facade. It owns the registry, the hook
// dispatcher, the override table, the sandbox factory, the capability
// gate and the fault monitor, and keeps their views of lifecycle state
// consistent.
type Runtime struct {
	registry   *registry.Registry
	checker    *CapabilityChecker
	sandboxes  *sandbox.Factory
	dispatcher *hook.Dispatcher
	overrides  *resource.Table
	faults     *fault.Monitor
	conflicts  *conflict.Resolver

	loader      ports.Loader
	logger      *slog.Logger
	events      ports.EventSink
	middlewares []Middleware
	apiVersion  *semver.Version
}

type runtimeConfig struct {
	logger           *slog.Logger
	events           ports.EventSink
	hostState        ports.HostStateProvider
	originals        ports.OriginalResourceProvider
	loader           ports.Loader
	checker          *CapabilityChecker
	schemas          *resource.SchemaRegistry
	middlewares      []Middleware
	faultThreshold   int
	faultHistorySize int
	callbackBudget   time.Duration
	apiVersion       string
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*runtimeConfig)

// WithLogger sets the base logger for the runtime and every sandbox.
func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(c *runtimeConfig) { c.logger = logger }
}

// WithEventSink routes lifecycle events to the host.
func WithEventSink(sink ports.EventSink) RuntimeOption {
	return func(c *runtimeConfig) { c.events = sink }
}

// WithHostState supplies the snapshots sandbox state views are built
// from. Without it extensions see empty host state.
func WithHostState(provider ports.HostStateProvider) RuntimeOption {
	return func(c *runtimeConfig) { c.hostState = provider }
}

// WithOriginalResources supplies the host's own resources, the fallback
// beneath the override table.
func WithOriginalResources(provider ports.OriginalResourceProvider) RuntimeOption {
	return func(c *runtimeConfig) { c.originals = provider }
}

// WithLoader attaches the package loading pipeline, enabling
// RegisterDeclaration.
func WithLoader(loader ports.Loader) RuntimeOption {
	return func(c *runtimeConfig) { c.loader = loader }
}

// WithCapabilityChecker replaces the default capability gate, e.g. with
// one pre-seeded by the gatekeeper's interactive grants.
func WithCapabilityChecker(checker *CapabilityChecker) RuntimeOption {
	return func(c *runtimeConfig) { c.checker = checker }
}

// WithSchemaRegistry validates override payloads against per-type
// schemas.
func WithSchemaRegistry(schemas *resource.SchemaRegistry) RuntimeOption {
	return func(c *runtimeConfig) { c.schemas = schemas }
}

// WithMiddleware adds invoker middleware applied to every bound
// callback, outermost first.
func WithMiddleware(middlewares ...Middleware) RuntimeOption {
	return func(c *runtimeConfig) { c.middlewares = append(c.middlewares, middlewares...) }
}

// WithFaultThreshold overrides the quarantine threshold.
func WithFaultThreshold(n int) RuntimeOption {
	return func(c *runtimeConfig) { c.faultThreshold = n }
}

// WithCallbackBudget bounds every callback invocation. Zero disables
// the deadline.
func WithCallbackBudget(budget time.Duration) RuntimeOption {
	return func(c *runtimeConfig) { c.callbackBudget = budget }
}

// WithAPIVersion declares the host API version manifests are checked
// against. Empty skips the check.
func WithAPIVersion(version string) RuntimeOption {
	return func(c *runtimeConfig) { c.apiVersion = version }
}

// WithRuntimeConfig applies the environment-derived configuration.
func WithRuntimeConfig(cfg RuntimeConfig) RuntimeOption {
	return func(c *runtimeConfig) {
		c.faultThreshold = cfg.FaultThreshold
		c.faultHistorySize = cfg.FaultHistorySize
		c.callbackBudget = cfg.CallbackBudget
	}
}

// NewRuntime assembles a runtime.
func NewRuntime(opts ...RuntimeOption) (*Runtime, error) {
	cfg := runtimeConfig{
		logger: slog.Default(),
		events: ports.NopEventSink{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var apiVersion *semver.Version
	if cfg.apiVersion != "" {
		v, err := semver.StrictNewVersion(cfg.apiVersion)
		if err != nil {
			return nil, fmt.Errorf("host api version: %w", err)
		}
		apiVersion = v
	}

	checker := cfg.checker
	if checker == nil {
		checker = NewCapabilityChecker()
	}

	r := &Runtime{
		registry: registry.New(
			registry.WithEventSink(cfg.events),
			registry.WithLogger(cfg.logger),
		),
		checker:     checker,
		dispatcher:  hook.New(hook.WithLogger(cfg.logger)),
		conflicts:   conflict.New(conflict.WithLogger(cfg.logger)),
		loader:      cfg.loader,
		logger:      cfg.logger,
		events:      cfg.events,
		middlewares: cfg.middlewares,
		apiVersion:  apiVersion,
	}
	if cfg.callbackBudget > 0 {
		r.middlewares = append(r.middlewares, DeadlineMiddleware(cfg.callbackBudget))
	}

	faultOpts := []fault.Option{fault.WithLogger(cfg.logger)}
	if cfg.faultThreshold > 0 {
		faultOpts = append(faultOpts, fault.WithThreshold(cfg.faultThreshold))
	}
	if cfg.faultHistorySize > 0 {
		faultOpts = append(faultOpts, fault.WithHistorySize(cfg.faultHistorySize))
	}
	r.faults = fault.New(r.quarantine, faultOpts...)

	r.sandboxes = sandbox.NewFactory(cfg.hostState, r.faults, sandbox.WithLogger(cfg.logger))

	tableOpts := []resource.Option{
		resource.WithEventSink(cfg.events),
		resource.WithLogger(cfg.logger),
	}
	if cfg.schemas != nil {
		tableOpts = append(tableOpts, resource.WithSchemaRegistry(cfg.schemas))
	}
	r.overrides = resource.New(
		resource.ActivityCheckerFunc(r.IsActive),
		cfg.originals,
		r.conflicts,
		tableOpts...,
	)

	return r, nil
}

// Register validates a manifest and records the extension in the
// Registered state. The extension's declared permissions become its
// initial grants.
func (r *Runtime) Register(m *entities.Manifest) (*entities.Descriptor, error) {
	if err := r.checkAPICompatibility(m); err != nil {
		return nil, err
	}
	desc, err := r.registry.Register(m)
	if err != nil {
		return nil, err
	}
	r.checker.SetGrants(desc.ID(), desc.Permissions())
	return desc, nil
}

// RegisterDeclaration loads a package through the loader pipeline and
// registers its manifest. Requires WithLoader.
func (r *Runtime) RegisterDeclaration(ctx context.Context, decl *entities.Declaration) (*entities.Descriptor, error) {
	if r.loader == nil {
		return nil, errors.New("no loader configured")
	}
	pkg, err := r.loader.LoadPackage(ctx, decl)
	if err != nil {
		return nil, err
	}
	return r.Register(pkg.Manifest())
}

// SetGrants replaces an extension's capability grants, typically after
// the gatekeeper has narrowed the declared permissions to what the
// operator approved.
func (r *Runtime) SetGrants(id values.ExtensionID, caps capability.Set) {
	r.checker.SetGrants(id, caps)
}

// Unregister removes the extension and cascades: hook bindings,
// resource overrides, sandbox timers, fault history and grants all go
// with it. Active dependents are disabled first.
func (r *Runtime) Unregister(id values.ExtensionID) error {
	r.cascadeDisable(id, "dependency unregistered")

	if _, err := r.registry.Unregister(id); err != nil {
		return err
	}
	r.dispatcher.RemoveFor(id)
	r.overrides.RemoveFor(id)
	r.sandboxes.Remove(id)
	r.faults.Forget(id)
	r.checker.Forget(id)
	return nil
}

// Activate moves the extension to Active, from Registered or Disabled.
// Every declared dependency must already be Active. A dependency cycle
// anywhere in the extension's transitive closure is permanently
// unsatisfiable and surfaces as a CycleError instead of a missing
// dependency. The fault session window resets and timer scheduling is
// re-enabled.
func (r *Runtime) Activate(id values.ExtensionID) error {
	desc, err := r.registry.Get(id)
	if err != nil {
		return err
	}
	if missing := resolver.MissingDependencies(desc, r.IsActive); len(missing) > 0 {
		if err := resolver.DependencyCycle(desc, r.lookup); err != nil {
			return err
		}
		return &entities.DependencyError{ID: id, Missing: missing}
	}
	if _, err := r.registry.Transition(id, entities.StateActive); err != nil {
		return err
	}

	r.faults.ResetSession(id)
	r.sandboxes.Resume(id)
	r.dispatcher.SetEnabledFor(id, true)
	r.events.Emit(ports.Event{
		Type:        ports.EventExtensionEnabled,
		ExtensionID: id,
		Time:        time.Now(),
	})
	return nil
}

// ActivationOrder computes the order in which the registered set can be
// activated so dependencies come first. Fails with a CycleError when
// the dependency graph is cyclic.
func (r *Runtime) ActivationOrder() ([]values.ExtensionID, error) {
	return resolver.ActivationOrder(r.registry.List())
}

// ActivateAll activates every registered or disabled extension in
// dependency order. Individual activation failures are collected, not
// fatal to the rest.
func (r *Runtime) ActivateAll() error {
	order, err := r.ActivationOrder()
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range order {
		desc, err := r.registry.Get(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		switch desc.State() {
		case entities.StateRegistered, entities.StateDisabled:
			if err := r.Activate(id); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Disable moves an Active extension to Disabled. Its bindings stop
// firing but keep their order, its overrides stop serving but stay
// shadowed, and its timers stop. Active dependents are disabled too,
// so no extension ever runs with a missing dependency.
func (r *Runtime) Disable(id values.ExtensionID) error {
	return r.disable(id, "")
}

func (r *Runtime) disable(id values.ExtensionID, reason string) error {
	r.cascadeDisable(id, "dependency disabled")

	if _, err := r.registry.Transition(id, entities.StateDisabled); err != nil {
		return err
	}
	r.dispatcher.SetEnabledFor(id, false)
	r.sandboxes.StopTimers(id)
	r.events.Emit(ports.Event{
		Type:        ports.EventExtensionDisabled,
		ExtensionID: id,
		Time:        time.Now(),
		Reason:      reason,
	})
	return nil
}

// cascadeDisable disables every Active dependent of id, depth first.
func (r *Runtime) cascadeDisable(id values.ExtensionID, reason string) {
	for _, dep := range r.registry.Dependents(id) {
		if dep.State() != entities.StateActive {
			continue
		}
		if err := r.disable(dep.ID(), reason); err != nil {
			r.logger.Warn("cascade disable failed",
				"extension_id", dep.ID().String(),
				"error", err)
		}
	}
}

// ResetQuarantine moves a Quarantined extension to Disabled and clears
// its fault session window, so the host can choose to re-activate it.
func (r *Runtime) ResetQuarantine(id values.ExtensionID) error {
	if _, err := r.registry.Transition(id, entities.StateDisabled); err != nil {
		return err
	}
	r.faults.ResetSession(id)
	r.events.Emit(ports.Event{
		Type:        ports.EventExtensionDisabled,
		ExtensionID: id,
		Time:        time.Now(),
		Reason:      "quarantine reset",
	})
	return nil
}

// quarantine is the fault monitor's threshold callback.
func (r *Runtime) quarantine(id values.ExtensionID) {
	r.cascadeDisable(id, "dependency quarantined")

	if _, err := r.registry.Transition(id, entities.StateQuarantined); err != nil {
		r.logger.Error("quarantine transition failed",
			"extension_id", id.String(),
			"error", err)
		return
	}
	r.dispatcher.SetEnabledFor(id, false)
	r.sandboxes.StopTimers(id)
	r.logger.Warn("extension quarantined", "extension_id", id.String())
	r.events.Emit(ports.Event{
		Type:        ports.EventExtensionQuarantined,
		ExtensionID: id,
		Time:        time.Now(),
	})
}

// Bind attaches a callback to a hook point. The extension must be
// Active. The callback runs inside its sandbox: panics are contained,
// failures feed the fault monitor, and dispatch order is priority
// ascending with registration order breaking ties.
func (r *Runtime) Bind(id values.ExtensionID, hookName string, priority int, cb sandbox.Callback) error {
	desc, err := r.registry.Get(id)
	if err != nil {
		return err
	}
	if desc.State() != entities.StateActive {
		return fmt.Errorf("%w: %s is %s", entities.ErrNotActive, id, desc.State())
	}

	invoker := r.sandboxes.Wrap(id, hookName, cb)
	invoker = ChainMiddleware(invoker, r.middlewares...)
	r.dispatcher.Register(id, hookName, priority, r.reportOuterFaults(id, hookName, invoker))
	return nil
}

// reportOuterFaults catches failures raised above the sandbox
// containment layer, such as a blown callback budget from
// DeadlineMiddleware. Sandbox failures arrive as ExecutionErrors and
// are already counted; everything else is reported here so it still
// moves the extension toward quarantine.
func (r *Runtime) reportOuterFaults(id values.ExtensionID, hookName string, next sandbox.Invoker) sandbox.Invoker {
	return func(payload map[string]any) (map[string]any, error) {
		result, err := next(payload)
		if err != nil {
			var execErr *entities.ExecutionError
			if !errors.As(err, &execErr) {
				r.faults.Report(id, hookName, err)
			}
		}
		return result, err
	}
}

// Unbind removes the extension's bindings on one hook point.
func (r *Runtime) Unbind(id values.ExtensionID, hookName string) {
	r.dispatcher.Unbind(id, hookName)
}

// Fire dispatches a host-initiated hook point and returns the final
// payload after every binding's contribution.
func (r *Runtime) Fire(hookName string, payload map[string]any) map[string]any {
	return r.dispatcher.Fire(hookName, payload)
}

// DispatchEvent fires a hook point on behalf of an extension. Gated on
// the events.dispatch capability before anything runs.
func (r *Runtime) DispatchEvent(id values.ExtensionID, hookName string, payload map[string]any) (map[string]any, error) {
	if err := r.requireActive(id); err != nil {
		return nil, err
	}
	if err := r.checker.Authorize(id, capability.CapabilityDispatchEvents, "dispatch_event"); err != nil {
		return nil, err
	}
	return r.dispatcher.Fire(hookName, payload), nil
}

// SetResource records an extension's override for a resource key. The
// extension must be Active and hold resources.override for the key; the
// table is untouched when either check fails.
func (r *Runtime) SetResource(id values.ExtensionID, key values.ResourceKey, payload any) error {
	desc, err := r.registry.Get(id)
	if err != nil {
		return err
	}
	if desc.State() != entities.StateActive {
		return fmt.Errorf("%w: %s is %s", entities.ErrNotActive, id, desc.State())
	}
	if err := r.checker.AuthorizeTarget(id, capability.CapabilityOverrideResources, key.String(), "set_resource"); err != nil {
		return err
	}
	return r.overrides.Set(id, desc.LoadOrder(), desc.Seq(), key, payload)
}

// RemoveResource withdraws an extension's override on one key.
func (r *Runtime) RemoveResource(id values.ExtensionID, key values.ResourceKey) {
	r.overrides.Remove(id, key)
}

// GetResource returns the resource visible at key: the winning active
// override, or the host's original.
func (r *Runtime) GetResource(key values.ResourceKey) (any, bool) {
	return r.overrides.Get(key)
}

// OriginalResource bypasses all overrides.
func (r *Runtime) OriginalResource(key values.ResourceKey) (any, bool) {
	return r.overrides.Original(key)
}

// IsActive reports whether the extension is currently Active.
func (r *Runtime) IsActive(id values.ExtensionID) bool {
	desc, err := r.registry.Get(id)
	return err == nil && desc.State() == entities.StateActive
}

// Extension returns the descriptor for id.
func (r *Runtime) Extension(id values.ExtensionID) (*entities.Descriptor, error) {
	return r.registry.Get(id)
}

// Extensions returns every registered descriptor in registration order.
func (r *Runtime) Extensions() []*entities.Descriptor {
	return r.registry.List()
}

// Hooks returns the hook points that currently have bindings.
func (r *Runtime) Hooks() []string {
	return r.dispatcher.Hooks()
}

// Bindings returns the binding metadata for a hook point in fire order.
func (r *Runtime) Bindings(hookName string) []hook.Binding {
	return r.dispatcher.Bindings(hookName)
}

// ExtensionInfo is the introspection snapshot for one extension.
type ExtensionInfo struct {
	ID           values.ExtensionID
	DisplayName  string
	Version      string
	State        entities.LifecycleState
	LoadOrder    int
	Permissions  []string
	Dependencies []values.ExtensionID
	Bindings     []hook.Binding
	Overrides    []resource.Override
	Faults       []fault.Record
	FaultCount   int
	ActiveTimers int
}

// Inspect assembles the full debugging picture for one extension.
func (r *Runtime) Inspect(id values.ExtensionID) (*ExtensionInfo, error) {
	desc, err := r.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return &ExtensionInfo{
		ID:           desc.ID(),
		DisplayName:  desc.DisplayName(),
		Version:      desc.Version().String(),
		State:        desc.State(),
		LoadOrder:    desc.LoadOrder(),
		Permissions:  desc.Permissions().Strings(),
		Dependencies: desc.Dependencies(),
		Bindings:     r.dispatcher.BindingsFor(id),
		Overrides:    r.overrides.OverridesFor(id),
		Faults:       r.faults.Records(id),
		FaultCount:   r.faults.Count(id),
		ActiveTimers: r.sandboxes.ContextFor(id).ActiveTimers(),
	}, nil
}

// Sandbox returns the extension's sandbox context. Mostly useful in
// tests and host tooling; callbacks receive the same context as an
// argument.
func (r *Runtime) Sandbox(id values.ExtensionID) *sandbox.Context {
	return r.sandboxes.ContextFor(id)
}

func (r *Runtime) lookup(id values.ExtensionID) (*entities.Descriptor, bool) {
	desc, err := r.registry.Get(id)
	return desc, err == nil
}

func (r *Runtime) requireActive(id values.ExtensionID) error {
	desc, err := r.registry.Get(id)
	if err != nil {
		return err
	}
	if desc.State() != entities.StateActive {
		return fmt.Errorf("%w: %s is %s", entities.ErrNotActive, id, desc.State())
	}
	return nil
}

// checkAPICompatibility validates the manifest's apiVersion constraint
// against the host API version, when one is configured.
func (r *Runtime) checkAPICompatibility(m *entities.Manifest) error {
	if r.apiVersion == nil || m == nil || m.APIVersion == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(m.APIVersion)
	if err != nil {
		return &entities.InvalidVersionError{ID: m.ID, Version: m.APIVersion, Cause: err}
	}
	if !constraint.Check(r.apiVersion) {
		return fmt.Errorf("%w: extension %s requires host api %q, host is %s",
			entities.ErrInvalidVersion, m.ID, m.APIVersion, r.apiVersion)
	}
	return nil
}
