package task

import "strings"

const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusSkipped   = "SKIPPED"
)

const (
	ActionComplete = "COMPLETE"
	ActionSkip     = "SKIP"
)

const (
	FrequencyMonthly    = "MONTHLY"
	FrequencyQuarterly  = "QUARTERLY"
	FrequencyHalfYearly = "HALF_YEARLY"
	FrequencyAnnually   = "ANNUALLY"
	FrequencyOneTime    = "ONE_TIME"
)

const (
	ImpactHigh   = "HIGH"
	ImpactMedium = "MEDIUM"
	ImpactLow    = "LOW"
)

var frequencyAliases = map[string]string{
	"monthly":     FrequencyMonthly,
	"quarterly":   FrequencyQuarterly,
	"half yearly": FrequencyHalfYearly,
	"half-yearly": FrequencyHalfYearly,
	"halfyearly":  FrequencyHalfYearly,
	"semi-annual": FrequencyHalfYearly,
	"annually":    FrequencyAnnually,
	"annual":      FrequencyAnnually,
	"yearly":      FrequencyAnnually,
	"one time":    FrequencyOneTime,
	"one-time":    FrequencyOneTime,
	"onetime":     FrequencyOneTime,
}

var impactAliases = map[string]string{
	"high":   ImpactHigh,
	"medium": ImpactMedium,
	"low":    ImpactLow,
}

// MapFrequency maps a free-form CSV value to a frequency constant.
// Unrecognized values map to absent.
func MapFrequency(raw string) *string {
	if mapped, ok := frequencyAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return &mapped
	}
	return nil
}

// MapImpact maps a free-form CSV value to an impact constant. Unrecognized
// values map to absent.
func MapImpact(raw string) *string {
	if mapped, ok := impactAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return &mapped
	}
	return nil
}

// MapStatus maps a free-form CSV value to a status constant, defaulting to
// PENDING for anything it does not recognize.
func MapStatus(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case StatusCompleted, "COMPLETE", "DONE":
		return StatusCompleted
	case StatusSkipped, "SKIP":
		return StatusSkipped
	default:
		return StatusPending
	}
}
