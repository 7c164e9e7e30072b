package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/brojonat/solxr/service/strategy"
)

const scaleDigits = 9

// parseAmount converts a decimal such as "1.5" to base units (1e9 per whole
// unit). Lamport amounts and premium ratios share the scale.
func parseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is required")
	}
	whole, frac, hasDot := strings.Cut(s, ".")
	if hasDot && frac == "" && whole == "" {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if len(frac) > scaleDigits {
		return 0, fmt.Errorf("invalid amount %q: more than %d decimal places", s, scaleDigits)
	}
	if whole == "" {
		whole = "0"
	}

	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	var f uint64
	if frac != "" {
		f, err = strconv.ParseUint(frac+strings.Repeat("0", scaleDigits-len(frac)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}
	if w > (math.MaxUint64-f)/strategy.Scale {
		return 0, fmt.Errorf("amount %q overflows", s)
	}
	return w*strategy.Scale + f, nil
}

// formatAmount renders base units as a decimal without trailing zeros.
func formatAmount(v uint64) string {
	whole, frac := v/strategy.Scale, v%strategy.Scale
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	digits := fmt.Sprintf("%09d", frac)
	return strconv.FormatUint(whole, 10) + "." + strings.TrimRight(digits, "0")
}
