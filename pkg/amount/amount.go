// Package amount normalizes user-entered decimal strings.
package amount

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Parse reads a locale-formatted number. The first comma is treated as the
// decimal separator, so "12,5" and "12.5" are equal. Empty or invalid input
// yields zero.
func Parse(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero
	}
	s = strings.Replace(s, ",", ".", 1)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseOr behaves like Parse but returns fallback for blank input.
func ParseOr(raw string, fallback decimal.Decimal) decimal.Decimal {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	return Parse(raw)
}

// Input accepts both JSON numbers and strings such as "1,50".
type Input struct {
	raw string
	set bool
}

// NewInput wraps a raw value.
func NewInput(raw string) Input {
	return Input{raw: raw, set: true}
}

func (i *Input) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*i = Input{}
		return nil
	}
	s = strings.TrimPrefix(strings.TrimSuffix(s, `"`), `"`)
	*i = Input{raw: s, set: true}
	return nil
}

func (i Input) MarshalJSON() ([]byte, error) {
	if !i.set {
		return []byte("null"), nil
	}
	return []byte(`"` + i.Decimal().String() + `"`), nil
}

// IsSet reports whether a value was provided, even an invalid one.
func (i Input) IsSet() bool {
	return i.set && strings.TrimSpace(i.raw) != ""
}

// Decimal normalizes the raw value with Parse.
func (i Input) Decimal() decimal.Decimal {
	return Parse(i.raw)
}

// Or returns fallback when no value was provided.
func (i Input) Or(fallback decimal.Decimal) decimal.Decimal {
	if !i.set {
		return fallback
	}
	return ParseOr(i.raw, fallback)
}

// Ptr returns nil when no value was provided.
func (i Input) Ptr() *decimal.Decimal {
	if !i.IsSet() {
		return nil
	}
	d := i.Decimal()
	return &d
}
