package core

import (
	"errors"
	"fmt"
	"strings"

	"farmgraph/pkg/domain"

	"github.com/shopspring/decimal"
)

// OutputType is the closed set of asset types a harvest can produce.
type OutputType string

// Harvest output types.
const (
	OutputEgg     OutputType = "egg"
	OutputMilk    OutputType = "milk"
	OutputHarvest OutputType = "harvest"
	OutputProduct OutputType = "product"
)

// Valid reports whether t is a known output type.
func (t OutputType) Valid() bool {
	switch t {
	case OutputEgg, OutputMilk, OutputHarvest, OutputProduct:
		return true
	}
	return false
}

var outputTypeByUnit = map[string]OutputType{
	"egg":       OutputEgg,
	"eggs":      OutputEgg,
	"liter":     OutputMilk,
	"liters":    OutputMilk,
	"l":         OutputMilk,
	"gallon":    OutputMilk,
	"gallons":   OutputMilk,
	"lb":        OutputHarvest,
	"lbs":       OutputHarvest,
	"kg":        OutputHarvest,
	"pound":     OutputHarvest,
	"pounds":    OutputHarvest,
	"kilogram":  OutputHarvest,
	"kilograms": OutputHarvest,
}

// OutputTypeForUnit maps a quantity unit to the asset type of the harvest
// output. Unknown units yield OutputProduct.
func OutputTypeForUnit(unit string) OutputType {
	if t, ok := outputTypeByUnit[strings.ToLower(strings.TrimSpace(unit))]; ok {
		return t
	}
	return OutputProduct
}

// factShape carries the value-or-object part of an emitted fact.
type factShape struct {
	value  *decimal.Decimal
	unit   string
	object *FactObject
}

// emissionRule describes the fact a completed log of one type produces for
// each asset linked under role.
type emissionRule struct {
	logType   string
	predicate string
	role      Role
	kind      domain.PredicateKind
	rangeTag  string
	shape     func(Log) (factShape, bool)
}

var emissionRules = []emissionRule{
	{
		logType:   domain.LogTypeHarvest,
		predicate: "yield",
		role:      domain.RoleSource,
		kind:      domain.KindMeasurement,
		rangeTag:  domain.RangeNumber,
		shape: func(l Log) (factShape, bool) {
			q, ok := l.FirstQuantity()
			if !ok {
				return factShape{}, false
			}
			v := q.Value
			return factShape{value: &v, unit: q.Unit}, true
		},
	},
	{
		logType:   domain.LogTypeMovement,
		predicate: "grazes",
		role:      domain.RoleMoved,
		kind:      domain.KindRelation,
		rangeTag:  "Location",
		shape: func(l Log) (factShape, bool) {
			if l.ToLocationID == nil {
				return factShape{}, false
			}
			return factShape{object: &FactObject{Kind: domain.ObjectLocation, ID: *l.ToLocationID}}, true
		},
	},
	{
		logType:   domain.LogTypeObservation,
		predicate: "weight",
		role:      domain.RoleSubject,
		kind:      domain.KindMeasurement,
		rangeTag:  domain.RangeNumber,
		shape: func(l Log) (factShape, bool) {
			q, ok := l.QuantityOfType("weight")
			if !ok {
				return factShape{}, false
			}
			v := q.Value
			return factShape{value: &v, unit: q.Unit}, true
		},
	},
}

func emissionRuleFor(logType string) (emissionRule, bool) {
	for _, r := range emissionRules {
		if r.logType == logType {
			return r, true
		}
	}
	return emissionRule{}, false
}

// ValidateDispatch checks the completion dispatch tables against a set of
// predicates: every predicate the fact emitter references must exist with
// the expected kind and a range that accepts the emitted value, and every
// unit must map to a known output type.
func ValidateDispatch(predicates []Predicate) error {
	byName := make(map[string]Predicate, len(predicates))
	for _, p := range predicates {
		byName[p.Name] = p
	}
	var errs []error
	for _, rule := range emissionRules {
		p, ok := byName[rule.predicate]
		if !ok {
			errs = append(errs, fmt.Errorf("%s logs emit %q but no such predicate exists", rule.logType, rule.predicate))
			continue
		}
		if p.Kind != rule.kind {
			errs = append(errs, fmt.Errorf("predicate %q is %s, %s logs emit %s facts", p.Name, p.Kind, rule.logType, rule.kind))
		}
		if !p.AcceptsRange(rule.rangeTag) {
			errs = append(errs, fmt.Errorf("predicate %q range %q does not accept %s", p.Name, p.Constraints.Range, rule.rangeTag))
		}
	}
	for unit, t := range outputTypeByUnit {
		if !t.Valid() {
			errs = append(errs, fmt.Errorf("unit %q maps to unknown output type %q", unit, t))
		}
	}
	return errors.Join(errs...)
}
