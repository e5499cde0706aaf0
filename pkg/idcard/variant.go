// Package idcard composes student ID cards into positioned, z-ordered element trees.
//
// Composition is pure: the same content and options always yield the same tree, nothing is
// fetched and nothing fails. Missing images become placeholders of the same footprint.
package idcard

import (
	"fmt"
	"strings"
)

// Variant selects one of the two fixed card arrangements.
type Variant string

const (
	// Vertical renders the photo above the text block on a badge-shaped card.
	Vertical Variant = "vertical"
	// Horizontal renders the photo beside the text block on a landscape card.
	Horizontal Variant = "horizontal"
)

// ParseVariant converts user input into a Variant.
func ParseVariant(raw string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(raw))) {
	case Vertical:
		return Vertical, nil
	case Horizontal:
		return Horizontal, nil
	default:
		return "", fmt.Errorf("unknown card variant %q", raw)
	}
}

// Valid reports whether v is one of the known variants.
func (v Variant) Valid() bool {
	return v == Vertical || v == Horizontal
}

// DefaultSize returns the native pixel size of the variant.
func (v Variant) DefaultSize() (width, height float64) {
	m := metricsFor(v)
	return m.width, m.height
}

// Mode chooses between the flow and the coordinate based layout.
type Mode string

const (
	// ModeFlow stacks elements in reading order and ignores position overrides.
	ModeFlow Mode = "flow"
	// ModePositioned places elements from the default table plus overrides.
	ModePositioned Mode = "positioned"
)

// ParseMode converts user input into a Mode. Empty input yields an empty Mode.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return "", nil
	case ModeFlow:
		return ModeFlow, nil
	case ModePositioned:
		return ModePositioned, nil
	default:
		return "", fmt.Errorf("unknown layout mode %q", raw)
	}
}
