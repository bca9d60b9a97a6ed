package perfmon

import (
	"fmt"
	"strings"
)

// Tier is a coarse capability classification of the host.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

var tierNames = [...]string{
	TierLow:    "low",
	TierMedium: "medium",
	TierHigh:   "high",
}

// String returns the lowercase tier name.
func (t Tier) String() string {
	if t >= 0 && int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseTier converts "low", "medium" or "high" into a Tier.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return TierLow, nil
	case "medium":
		return TierMedium, nil
	case "high":
		return TierHigh, nil
	default:
		return TierMedium, fmt.Errorf("perfmon: unknown tier %q", s)
	}
}

// Unknown hardware hints are treated as these mid-range values.
const (
	assumedCores    = 4
	assumedMemoryGB = 4
)

// ClassifyTier derives the tier from static hardware hints. It is a
// capability classification and never changes with live frame rate.
func ClassifyTier(cores int, memoryGB float64) Tier {
	if cores <= 0 {
		cores = assumedCores
	}
	if memoryGB <= 0 {
		memoryGB = assumedMemoryGB
	}
	switch {
	case cores >= 8 && memoryGB >= 8:
		return TierHigh
	case cores >= 4 && memoryGB >= 4:
		return TierMedium
	default:
		return TierLow
	}
}

// Ceilings maps each tier to its maximum number of concurrent animations.
type Ceilings struct {
	Low    int
	Medium int
	High   int
}

// DefaultCeilings returns low:2, medium:5, high:10.
func DefaultCeilings() Ceilings {
	return Ceilings{Low: 2, Medium: 5, High: 10}
}

// For returns the ceiling of t (never below 1).
func (c Ceilings) For(t Tier) int {
	n := c.Medium
	switch t {
	case TierLow:
		n = c.Low
	case TierHigh:
		n = c.High
	}
	if n < 1 {
		n = 1
	}
	return n
}
