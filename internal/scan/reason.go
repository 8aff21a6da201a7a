package scan

import (
	"fmt"
	"strings"
	"time"
)

// Primary reason labels, stored in the history database
const (
	ReasonAge      = "age"
	ReasonPressure = "pressure"
	ReasonCombined = "combined"
	ReasonManual   = "manual"
	ReasonUnknown  = "unknown"
)

// SelectionReason captures why a spool file was selected for shredding.
// Age and pressure can apply at the same time.
type SelectionReason struct {
	Age      *AgeReason
	Pressure *PressureReason

	SpoolPath   string    // Spool root the file was found under
	EvaluatedAt time.Time // When conditions were checked
}

// AgeReason indicates the file sat in the spool longer than allowed
type AgeReason struct {
	ConfiguredMinutes int // age_off_minutes from config
	ActualAgeMinutes  int
}

// PressureReason indicates the spool filesystem was over its usage threshold
type PressureReason struct {
	ConfiguredPercent float64 // max_used_percent from config
	ActualPercent     float64
}

// HasReason returns true if any selection reason applies.
func (r SelectionReason) HasReason() bool {
	return r.Age != nil || r.Pressure != nil
}

// ToLogString formats the reason for structured logging.
// Example: "pressure: 93.0% (max=90.0%) + age: 45m (max=30m)"
func (r SelectionReason) ToLogString() string {
	if !r.HasReason() {
		return ReasonUnknown
	}

	var parts []string

	if r.Pressure != nil {
		parts = append(parts, fmt.Sprintf(
			"pressure: %.1f%% (max=%.1f%%)",
			r.Pressure.ActualPercent,
			r.Pressure.ConfiguredPercent,
		))
	}

	if r.Age != nil {
		parts = append(parts, fmt.Sprintf(
			"age: %dm (max=%dm)",
			r.Age.ActualAgeMinutes,
			r.Age.ConfiguredMinutes,
		))
	}

	return strings.Join(parts, " + ")
}

// ToHumanReadable formats the reason for CLI output.
func (r SelectionReason) ToHumanReadable() string {
	if !r.HasReason() {
		return "Unknown reason"
	}

	var parts []string
	if r.Pressure != nil {
		parts = append(parts, fmt.Sprintf("Spool usage above %.1f%%", r.Pressure.ConfiguredPercent))
	}
	if r.Age != nil {
		parts = append(parts, fmt.Sprintf("File older than %d minutes", r.Age.ConfiguredMinutes))
	}
	return strings.Join(parts, ", ")
}

// GetPrimaryReason returns a short label for filtering and grouping.
func (r SelectionReason) GetPrimaryReason() string {
	switch {
	case r.Pressure != nil && r.Age != nil:
		return ReasonCombined
	case r.Pressure != nil:
		return ReasonPressure
	case r.Age != nil:
		return ReasonAge
	default:
		return ReasonUnknown
	}
}
