package host

import (
	"log/slog"

	hostlib "github.com/tabletop-dev/tabletop-host-sdk"
	"github.com/tabletop-dev/tabletop-host-sdk/capability/gatekeeper"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/ports"
	"github.com/tabletop-dev/tabletop-host-sdk/resource"
)

// Option defines a functional option for configuring the Host.
type Option func(*config)

type config struct {
	runtimeConfig *hostlib.RuntimeConfig
	logger        *slog.Logger
	events        ports.EventSink
	hostState     ports.HostStateProvider
	originals     ports.OriginalResourceProvider
	schemas       *resource.SchemaRegistry
	gatekeeper    *gatekeeper.Gatekeeper
	verifier      ports.IntegrityVerifier
	middlewares   []hostlib.Middleware
	apiVersion    string
}

// WithConfig supplies an explicit runtime configuration instead of
// reading the environment.
func WithConfig(cfg hostlib.RuntimeConfig) Option {
	return func(c *config) { c.runtimeConfig = &cfg }
}

// WithLogger sets the logger for the host and everything it assembles.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithEventSink wires lifecycle event observation.
func WithEventSink(sink ports.EventSink) Option {
	return func(c *config) { c.events = sink }
}

// WithHostState supplies the game state snapshot the sandboxes expose.
func WithHostState(provider ports.HostStateProvider) Option {
	return func(c *config) { c.hostState = provider }
}

// WithOriginalResources supplies the host's own resources beneath the
// override table.
func WithOriginalResources(provider ports.OriginalResourceProvider) Option {
	return func(c *config) { c.originals = provider }
}

// WithSchemaRegistry wires resource payload validation.
func WithSchemaRegistry(schemas *resource.SchemaRegistry) Option {
	return func(c *config) { c.schemas = schemas }
}

// WithGatekeeper replaces the default capability gatekeeper.
func WithGatekeeper(g *gatekeeper.Gatekeeper) Option {
	return func(c *config) { c.gatekeeper = g }
}

// WithSignatureVerifier replaces the default cosign verifier.
func WithSignatureVerifier(v ports.IntegrityVerifier) Option {
	return func(c *config) { c.verifier = v }
}

// WithMiddleware appends callback middlewares.
func WithMiddleware(middlewares ...hostlib.Middleware) Option {
	return func(c *config) { c.middlewares = append(c.middlewares, middlewares...) }
}

// WithAPIVersion sets the host API version extensions are checked
// against.
func WithAPIVersion(version string) Option {
	return func(c *config) { c.apiVersion = version }
}
