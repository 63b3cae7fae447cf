package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tabletop-dev/tabletop-host-sdk/capability"
)

type recordingDenialHandler struct {
	denials []string
}

func (h *recordingDenialHandler) OnDenial(extensionID string, cap capability.Capability, target string, reason string) {
	h.denials = append(h.denials, reason)
}

func TestScopePolicy_Evaluate(t *testing.T) {
	p := New()

	tests := []struct {
		name   string
		scopes ScopeSet
		cap    capability.Capability
		target string
		want   bool
	}{
		{
			name:   "unscoped grant covers any target",
			scopes: ScopeSet{capability.CapabilityModifyState: nil},
			cap:    capability.CapabilityModifyState,
			target: "board/zones",
			want:   true,
		},
		{
			name:   "glob covers nested key",
			scopes: ScopeSet{capability.CapabilityOverrideResources: {"card/**"}},
			cap:    capability.CapabilityOverrideResources,
			target: "card/goblin/art",
			want:   true,
		},
		{
			name:   "single level glob stops at separator",
			scopes: ScopeSet{capability.CapabilityOverrideResources: {"*/config"}},
			cap:    capability.CapabilityOverrideResources,
			target: "card/deep/config",
			want:   false,
		},
		{
			name:   "target outside every pattern",
			scopes: ScopeSet{capability.CapabilityOverrideResources: {"card/**"}},
			cap:    capability.CapabilityOverrideResources,
			target: "rules/combat",
			want:   false,
		},
		{
			name:   "capability absent from set",
			scopes: ScopeSet{capability.CapabilityRegisterUI: nil},
			cap:    capability.CapabilityModifyState,
			target: "board",
			want:   false,
		},
		{
			name:   "wildcard grant covers other capabilities",
			scopes: ScopeSet{capability.CapabilityAll: nil},
			cap:    capability.CapabilityDispatchEvents,
			target: "turn_end",
			want:   true,
		},
		{
			name:   "wildcard grant keeps its own scope",
			scopes: ScopeSet{capability.CapabilityAll: {"card/**"}},
			cap:    capability.CapabilityModifyState,
			target: "rules/combat",
			want:   false,
		},
		{
			name:   "specific entry shadows wildcard",
			scopes: ScopeSet{capability.CapabilityAll: nil, capability.CapabilityModifyState: {"board/**"}},
			cap:    capability.CapabilityModifyState,
			target: "rules/combat",
			want:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.Evaluate(tc.scopes, tc.cap, tc.target))
		})
	}
}

func TestScopePolicy_Check(t *testing.T) {
	t.Run("DenialReasonDistinguishesGrantFromScope", func(t *testing.T) {
		handler := &recordingDenialHandler{}
		p := New(WithDenialHandler(handler))

		scopes := ScopeSet{capability.CapabilityOverrideResources: {"card/**"}}

		assert.False(t, p.Check("modster", scopes, capability.CapabilityModifyState, "board"))
		assert.False(t, p.Check("modster", scopes, capability.CapabilityOverrideResources, "rules/combat"))

		assert.Equal(t, []string{"capability not granted", "target outside granted scope"}, handler.denials)
	})

	t.Run("AllowedChecksAreSilent", func(t *testing.T) {
		handler := &recordingDenialHandler{}
		p := New(WithDenialHandler(handler))

		scopes := ScopeSet{capability.CapabilityOverrideResources: {"card/**"}}
		assert.True(t, p.Check("modster", scopes, capability.CapabilityOverrideResources, "card/goblin"))
		assert.Empty(t, handler.denials)
	})
}
