// Package gatekeeper handles capability granting: loads stored grants,
// diffs against the manifest's declared permissions, prompts for
// anything missing, and persists the operator's decisions.
package gatekeeper

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tabletop-dev/tabletop-host-sdk/capability"
	"github.com/tabletop-dev/tabletop-host-sdk/capability/grantstore"
)

// SecurityLevel controls the gatekeeper's prompting behavior.
type SecurityLevel string

const (
	SecurityStrict     SecurityLevel = "strict"
	SecurityStandard   SecurityLevel = "standard"
	SecurityPermissive SecurityLevel = "permissive"
)

// Gatekeeper decides which declared capabilities an extension actually
// receives before it is registered with the runtime.
type Gatekeeper struct {
	store         capability.GrantStore
	prompter      capability.Prompter
	securityLevel SecurityLevel
}

// Option configures a Gatekeeper.
type Option func(*Gatekeeper)

// WithStore sets the grant store.
func WithStore(s capability.GrantStore) Option {
	return func(g *Gatekeeper) { g.store = s }
}

// WithPrompter sets the prompter.
func WithPrompter(p capability.Prompter) Option {
	return func(g *Gatekeeper) { g.prompter = p }
}

// WithSecurityLevel sets the security policy level.
func WithSecurityLevel(level SecurityLevel) Option {
	return func(g *Gatekeeper) { g.securityLevel = level }
}

// NewGatekeeper creates a capability gatekeeper with pluggable store
// and prompter.
func NewGatekeeper(opts ...Option) *Gatekeeper {
	g := &Gatekeeper{
		securityLevel: SecurityStandard,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.store == nil {
		g.store = grantstore.NewFileStore()
	}
	if g.prompter == nil {
		g.prompter = NewTerminalPrompter()
	}
	return g
}

// GrantCapabilities determines which of the requested capabilities to
// grant to the extension, consulting saved grants first and prompting
// for the rest.
func (g *Gatekeeper) GrantCapabilities(
	extensionID string,
	required capability.Set,
	trustAll bool,
) (capability.Set, error) {
	if required.IsEmpty() {
		return capability.NewSet(), nil
	}

	if trustAll {
		slog.Warn("auto-granting all requested capabilities (trust-all enabled)",
			"extension_id", extensionID)
		return required.Clone(), nil
	}

	grants, err := g.store.Load()
	if err != nil {
		grants = map[string]capability.Set{}
	}
	existing := grants[extensionID]

	missing := required.Difference(existing)
	if missing.IsEmpty() {
		return existing.Clone(), nil
	}

	requests := g.buildRequests(extensionID, missing)

	if !g.prompter.IsInteractive() {
		if granted, ok := g.resolveNonInteractive(requests); ok {
			return existing.Union(granted), nil
		}
		return capability.NewSet(), g.prompter.FormatNonInteractiveError(requests)
	}

	granted := existing.Clone()
	shouldSave := false
	for _, req := range requests {
		ok, always, err := g.evaluate(req)
		if err != nil {
			return capability.NewSet(), err
		}
		if !ok {
			return capability.NewSet(), fmt.Errorf("capability denied by operator: %s", req.Capability)
		}
		granted = granted.Add(req.Capability)
		if always {
			shouldSave = true
		}
	}

	if shouldSave {
		grants[extensionID] = granted
		if err := g.store.Save(grants); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save grants: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Permissions saved to %s\n", g.store.ConfigPath())
		}
	}

	return granted, nil
}

// buildRequests turns a missing capability set into prompt requests,
// each annotated with its risk description.
func (g *Gatekeeper) buildRequests(extensionID string, missing capability.Set) []capability.Request {
	report := capability.AnalyzeRisk(missing)
	riskByCapability := make(map[capability.Capability]capability.RiskFactor, len(report.RiskFactors))
	for _, factor := range report.RiskFactors {
		riskByCapability[factor.Capability] = factor
	}

	requests := make([]capability.Request, 0, missing.Len())
	for _, c := range missing.List() {
		req := capability.Request{
			ExtensionID: extensionID,
			Capability:  c,
			Description: string(c),
			IsBroad:     c == capability.CapabilityAll,
		}
		if factor, ok := riskByCapability[c]; ok {
			req.Description = fmt.Sprintf("%s (%s risk: %s)", c, factor.Level, factor.Description)
		}
		requests = append(requests, req)
	}
	return requests
}

// resolveNonInteractive handles the permissive path without a
// terminal. Broad capabilities are never auto-granted.
func (g *Gatekeeper) resolveNonInteractive(requests []capability.Request) (capability.Set, bool) {
	if g.securityLevel != SecurityPermissive {
		return capability.NewSet(), false
	}
	granted := capability.NewSet()
	for _, req := range requests {
		if req.IsBroad {
			return capability.NewSet(), false
		}
		granted = granted.Add(req.Capability)
	}
	return granted, true
}

// evaluate applies the security level policy and prompts if needed.
func (g *Gatekeeper) evaluate(req capability.Request) (bool, bool, error) {
	if req.IsBroad {
		switch g.securityLevel {
		case SecurityStrict:
			slog.Error("broad capability denied by security policy",
				"level", "strict",
				"extension_id", req.ExtensionID,
				"capability", req.Capability)
			return false, false, fmt.Errorf("broad capability denied by strict security policy: %s", req.Capability)

		case SecurityPermissive:
			slog.Warn("auto-granting broad capability (permissive mode)",
				"extension_id", req.ExtensionID,
				"capability", req.Capability)
			return true, false, nil
		}
	}

	if g.securityLevel == SecurityPermissive {
		return true, false, nil
	}

	return g.prompter.PromptForCapability(req)
}
