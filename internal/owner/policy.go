package owner

import (
	"fmt"
	"strings"
)

// SupplyMode selects whether an assignment uses up the tags that justified it.
type SupplyMode string

const (
	// SupplyConsume decrements one tag of the chosen owner at every well that
	// contributed to its score, so later routes through the same wells see
	// reduced evidence.
	SupplyConsume SupplyMode = "consume"
	// SupplyRead leaves supply untouched.
	SupplyRead SupplyMode = "read"
)

// ParseSupplyMode accepts "consume" or "read", case-insensitively.
func ParseSupplyMode(s string) (SupplyMode, error) {
	switch m := SupplyMode(strings.ToLower(strings.TrimSpace(s))); m {
	case SupplyConsume, SupplyRead:
		return m, nil
	default:
		return "", fmt.Errorf("unknown supply mode %q", s)
	}
}

// Tiers are the confidences for owners seen at two or more wells (High) and
// at a single well (Medium).
type Tiers struct {
	High   float64 `yaml:"high"`
	Medium float64 `yaml:"medium"`
}

// Policy tunes owner inference.
type Policy struct {
	// Tiers are indexed by variant; variants above the last entry reuse it.
	Tiers map[int]Tiers

	// FallbackFromVariant is the first variant allowed to fall back to
	// votes from existing duct cables.
	FallbackFromVariant int
	FallbackConfidence  float64
	UnknownConfidence   float64

	MaxCandidates int
	SupplyMode    SupplyMode
}

// DefaultPolicy returns the stock confidence levels.
func DefaultPolicy() Policy {
	return Policy{
		Tiers: map[int]Tiers{
			1: {High: 0.85, Medium: 0.60},
			2: {High: 0.80, Medium: 0.65},
			3: {High: 0.75, Medium: 0.55},
		},
		FallbackFromVariant: 3,
		FallbackConfidence:  0.35,
		UnknownConfidence:   0.15,
		MaxCandidates:       10,
		SupplyMode:          SupplyConsume,
	}
}

// Validate checks confidence bounds and tier ordering.
func (p Policy) Validate() error {
	if len(p.Tiers) == 0 {
		return fmt.Errorf("confidence tiers are empty")
	}
	for v, t := range p.Tiers {
		if !unit(t.High) || !unit(t.Medium) {
			return fmt.Errorf("variant %d confidence tiers must be within [0,1]", v)
		}
		if t.High < t.Medium {
			return fmt.Errorf("variant %d high confidence %v is below medium %v", v, t.High, t.Medium)
		}
	}
	if !unit(p.FallbackConfidence) || !unit(p.UnknownConfidence) {
		return fmt.Errorf("fallback and unknown confidence must be within [0,1]")
	}
	if p.MaxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be positive, got %d", p.MaxCandidates)
	}
	if _, err := ParseSupplyMode(string(p.SupplyMode)); err != nil {
		return err
	}
	return nil
}

func unit(v float64) bool { return v >= 0 && v <= 1 }

// tiersFor returns the tiers of a variant, falling back to the highest
// configured variant below it.
func (p Policy) tiersFor(variant int) Tiers {
	best, bestV := Tiers{}, 0
	for v, t := range p.Tiers {
		if v == variant {
			return t
		}
		if v < variant && v > bestV {
			best, bestV = t, v
		}
	}
	return best
}

// Params describes the policy for persistence next to a scenario.
func (p Policy) Params(variant int) map[string]any {
	t := p.tiersFor(variant)
	return map[string]any{
		"confidence_high":     t.High,
		"confidence_medium":   t.Medium,
		"fallback_confidence": p.FallbackConfidence,
		"unknown_confidence":  p.UnknownConfidence,
		"real_cable_fallback": variant >= p.FallbackFromVariant,
		"supply_mode":         string(p.SupplyMode),
	}
}
