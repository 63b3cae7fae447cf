package policy

import (
	"log/slog"

	"github.com/tabletop-dev/tabletop-host-sdk/capability"
)

// Ensure implementations satisfy the interface.
var (
	_ DenialHandler = (*SlogDenialHandler)(nil)
	_ DenialHandler = (*NopDenialHandler)(nil)
)

// SlogDenialHandler logs denials through a structured logger.
type SlogDenialHandler struct {
	Logger *slog.Logger
}

func (h *SlogDenialHandler) OnDenial(extensionID string, cap capability.Capability, target string, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("permission denied",
		"extension_id", extensionID,
		"capability", cap.String(),
		"target", target,
		"reason", reason)
}

// NopDenialHandler does nothing.
type NopDenialHandler struct{}

func (h *NopDenialHandler) OnDenial(string, capability.Capability, string, string) {}
