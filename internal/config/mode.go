package config

import (
	"fmt"
	"strings"
)

// Mode is the learning operating mode. Each higher mode is a strict superset
// of capability: more services active and larger resource ceilings, never a
// different code path.
type Mode int

const (
	ModeDisabled Mode = iota
	ModeConservative
	ModeStandard
	ModeAdvanced
)

// ParseMode parses a mode name. Unknown names are an error so a typo in
// configuration cannot silently enable learning.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "":
		return ModeDisabled, nil
	case "conservative":
		return ModeConservative, nil
	case "standard":
		return ModeStandard, nil
	case "advanced":
		return ModeAdvanced, nil
	default:
		return ModeDisabled, fmt.Errorf("unknown learning mode %q", s)
	}
}

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeConservative:
		return "conservative"
	case ModeStandard:
		return "standard"
	case ModeAdvanced:
		return "advanced"
	default:
		return "disabled"
	}
}

// Enabled reports whether any learning happens at all.
func (m Mode) Enabled() bool {
	return m > ModeDisabled
}

// AtLeast reports whether the mode grants at least the capability of other.
func (m Mode) AtLeast(other Mode) bool {
	return m >= other
}

// scale adjusts a standard-mode ceiling for the current mode. Conservative
// halves it, advanced doubles it.
func (m Mode) scale(standard int) int {
	switch m {
	case ModeConservative:
		if standard/2 > 0 {
			return standard / 2
		}
		return 1
	case ModeAdvanced:
		return standard * 2
	default:
		return standard
	}
}
