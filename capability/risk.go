package capability

// RiskLevel represents the security risk of granting a capability set.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

// String returns a string representation of the risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskNone:
		return "none"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// RiskReport contains the overall risk assessment for a capability set.
type RiskReport struct {
	RiskFactors []RiskFactor
	Level       RiskLevel
}

// RiskFactor describes a single risk element in a requested set.
type RiskFactor struct {
	Capability  Capability
	Description string
	Level       RiskLevel
}

var capabilityRisk = map[Capability]RiskFactor{
	CapabilityModifyState: {
		Capability:  CapabilityModifyState,
		Description: "Mutates shared game state visible to all players",
		Level:       RiskHigh,
	},
	CapabilityCreateEntities: {
		Capability:  CapabilityCreateEntities,
		Description: "Creates cards, tokens, and zones in the running game",
		Level:       RiskMedium,
	},
	CapabilityRegisterUI: {
		Capability:  CapabilityRegisterUI,
		Description: "Contributes panels and widgets to the host UI",
		Level:       RiskLow,
	},
	CapabilityDispatchEvents: {
		Capability:  CapabilityDispatchEvents,
		Description: "Dispatches global events observed by every extension",
		Level:       RiskMedium,
	},
	CapabilityOverrideResources: {
		Capability:  CapabilityOverrideResources,
		Description: "Shadows host-named resources such as card art and rules text",
		Level:       RiskMedium,
	},
	CapabilityAll: {
		Capability:  CapabilityAll,
		Description: "Wildcard grant: implies every capability, present and future",
		Level:       RiskCritical,
	},
}

// AnalyzeRisk evaluates the risk level of a capability set.
func AnalyzeRisk(requested Set) RiskReport {
	report := RiskReport{Level: RiskNone}

	for _, c := range requested.List() {
		factor, ok := capabilityRisk[c]
		if !ok {
			continue
		}
		report.RiskFactors = append(report.RiskFactors, factor)
		if factor.Level > report.Level {
			report.Level = factor.Level
		}
	}

	return report
}
