package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RangeNumber is the range tag accepting numeric values.
const RangeNumber = "number"

// Tagged is implemented by records that can be matched against predicate
// domain and range constraints.
type Tagged interface {
	TypeTags() []string
}

// DomainTypes splits the pipe-delimited domain constraint.
func (p Predicate) DomainTypes() []string { return splitTags(p.Constraints.Domain) }

// RangeTypes splits the pipe-delimited range constraint.
func (p Predicate) RangeTypes() []string { return splitTags(p.Constraints.Range) }

// AcceptsRange reports whether the range constraint lists tag. An empty range
// accepts anything.
func (p Predicate) AcceptsRange(tag string) bool {
	types := p.RangeTypes()
	return len(types) == 0 || containsTag(types, tag)
}

// ValidateDomain reports whether subject fits the predicate's domain. It is
// advisory; fact writes do not fail on a mismatch.
func (p Predicate) ValidateDomain(subject Tagged) bool {
	types := p.DomainTypes()
	if len(types) == 0 {
		return true
	}
	for _, tag := range subject.TypeTags() {
		if containsTag(types, tag) {
			return true
		}
	}
	return false
}

// ValidateRange reports whether a numeric value or a tagged record fits the
// predicate's range and numeric bounds. Any other value is rejected.
func (p Predicate) ValidateRange(value any) bool {
	types := p.RangeTypes()
	switch v := value.(type) {
	case decimal.Decimal:
		return p.numericInRange(types, v)
	case *decimal.Decimal:
		if v == nil {
			return false
		}
		return p.numericInRange(types, *v)
	case Tagged:
		if len(types) == 0 {
			return true
		}
		for _, tag := range v.TypeTags() {
			if containsTag(types, tag) {
				return true
			}
		}
		return false
	default:
		return len(types) == 0
	}
}

func (p Predicate) numericInRange(types []string, v decimal.Decimal) bool {
	if len(types) > 0 && !containsTag(types, RangeNumber) {
		return false
	}
	if p.Constraints.Min != nil && v.LessThan(*p.Constraints.Min) {
		return false
	}
	if p.Constraints.Max != nil && v.GreaterThan(*p.Constraints.Max) {
		return false
	}
	return true
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, "|")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
