// Package enums holds the closed string vocabularies stored in the database
// and exchanged over the API.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

// set is the full list of values of one string enum.
type set[T ~string] struct {
	label  string
	values []T
}

func newSet[T ~string](label string, values ...T) set[T] {
	return set[T]{label: label, values: values}
}

func (s set[T]) contains(v T) bool { return slices.Contains(s.values, v) }

// parse trims and lowercases raw before matching.
func (s set[T]) parse(raw string) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(raw)))
	if s.contains(v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", s.label, raw)
}

func (s set[T]) list() []T { return slices.Clone(s.values) }
