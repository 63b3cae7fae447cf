package gatekeeper

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/tabletop-dev/tabletop-host-sdk/capability"
)

// TerminalPrompter provides interactive terminal prompting for
// capability grants.
type TerminalPrompter struct{}

// NewTerminalPrompter creates a new TerminalPrompter.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{}
}

// IsInteractive checks if we're running in an interactive terminal.
func (p *TerminalPrompter) IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// PromptForCapability asks the operator to grant a capability.
func (p *TerminalPrompter) PromptForCapability(req capability.Request) (granted bool, always bool, err error) {
	if req.IsBroad {
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "\033[1;33mSecurity Warning: Broad Permission Requested\033[0m\n\n")
		fmt.Fprintf(os.Stderr, "  %s\n", req.Description)
		fmt.Fprintf(os.Stderr, "  Recommendation: Review if this broad access is necessary.\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	const (
		OptionYes    = "Yes, grant for this session"
		OptionAlways = "Always grant (save to config)"
		OptionNo     = "No, deny"
	)

	var selection string

	err = huh.NewSelect[string]().
		Title(fmt.Sprintf("Extension %q Requesting Permission", req.ExtensionID)).
		Description(req.Description).
		Options(
			huh.NewOption(OptionYes, OptionYes),
			huh.NewOption(OptionAlways, OptionAlways),
			huh.NewOption(OptionNo, OptionNo),
		).
		Value(&selection).
		Run()
	if err != nil {
		return false, false, err
	}

	switch selection {
	case OptionYes:
		return true, false, nil
	case OptionAlways:
		return true, true, nil
	default:
		return false, false, nil
	}
}

// FormatNonInteractiveError creates a helpful error message for
// non-interactive mode.
func (p *TerminalPrompter) FormatNonInteractiveError(missing []capability.Request) error {
	var msg strings.Builder
	msg.WriteString("Extensions require additional permissions (running in non-interactive mode)\n\n")
	msg.WriteString("Required permissions:\n")

	for _, req := range missing {
		msg.WriteString(fmt.Sprintf("  - [%s] %s\n", req.ExtensionID, req.Description))
	}

	msg.WriteString("\nTo grant these permissions:\n")
	msg.WriteString("  1. Run interactively and approve when prompted\n")
	msg.WriteString("  2. Set TABLETOP_TRUST_ALL=true (grants all permissions)\n")
	msg.WriteString("  3. Manually edit: ~/.tabletop/grants.yaml\n")

	return fmt.Errorf("%s", msg.String())
}
