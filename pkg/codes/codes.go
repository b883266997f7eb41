// Package codes derives human-readable sequential codes such as "001",
// "PRD-0042" or "001-0007" from the codes already in use.
package codes

import (
	"strconv"
	"strings"
)

const (
	MinWidth = 2
	MaxWidth = 6

	separator = "-"
)

// Prefix is the org-level code prefix configuration.
type Prefix struct {
	Enabled bool
	Text    string
	// Compact drops the separator between prefix and digits.
	Compact bool
}

// Suffix returns the trailing run of ASCII digits in code as a number.
// Codes without trailing digits, or with more digits than fit, parse to 0.
func Suffix(code string) int {
	code = strings.TrimSpace(code)
	end := len(code)
	start := end
	for start > 0 && code[start-1] >= '0' && code[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0
	}
	n, err := strconv.Atoi(code[start:end])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// NextNumber is one more than the largest suffix in existing.
func NextNumber(existing []string) int {
	max := 0
	for _, code := range existing {
		if n := Suffix(code); n > max {
			max = n
		}
	}
	return max + 1
}

// Pad zero-pads n to width digits. Wider numbers are never truncated.
func Pad(n, width int) string {
	digits := strconv.Itoa(n)
	if width = ClampWidth(width); len(digits) >= width {
		return digits
	}
	return strings.Repeat("0", width-len(digits)) + digits
}

// Format renders n with the configured width and optional prefix.
func Format(n, width int, p Prefix) string {
	digits := Pad(n, width)
	text := strings.TrimSpace(p.Text)
	if !p.Enabled || text == "" {
		return digits
	}
	if p.Compact {
		return text + digits
	}
	return text + separator + digits
}

// Next combines NextNumber and Format.
func Next(existing []string, width int, p Prefix) string {
	return Format(NextNumber(existing), width, p)
}

// ProductCode joins a category code and a per-category index, e.g. "003-0012".
func ProductCode(categoryCode string, index, width int) string {
	return strings.TrimSpace(categoryCode) + separator + Pad(index, width)
}

// NextProductCode picks the next code for a product inside categoryCode,
// considering only existing codes that belong to that category.
func NextProductCode(categoryCode string, existing []string, width int) string {
	base := strings.TrimSpace(categoryCode) + separator
	scoped := make([]string, 0, len(existing))
	for _, code := range existing {
		if rest, ok := strings.CutPrefix(code, base); ok {
			scoped = append(scoped, rest)
		}
	}
	return ProductCode(categoryCode, NextNumber(scoped), width)
}

// ClampWidth bounds width to the supported range.
func ClampWidth(width int) int {
	if width < MinWidth {
		return MinWidth
	}
	if width > MaxWidth {
		return MaxWidth
	}
	return width
}
