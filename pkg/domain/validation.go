package domain

import (
	"strconv"
	"strings"
)

// Validate checks the structural invariants of an asset.
func (a Asset) Validate() error {
	errs := fieldErrors{entity: EntityAsset}
	if strings.TrimSpace(a.Name) == "" {
		errs.add("name", "is required")
	}
	switch a.Status {
	case AssetStatusActive:
	case AssetStatusArchived:
		if a.ArchivedAt == nil {
			errs.add("archived_at", "is required when status is archived")
		}
	default:
		errs.add("status", "%q is not a valid status", a.Status)
	}
	if a.Quantity.IsNegative() {
		errs.add("quantity", "must not be negative")
	}
	if a.ParentID != nil && *a.ParentID == a.ID && a.ID != "" {
		errs.add("parent_id", "cannot reference itself")
	}
	if a.Geometry != nil {
		errs.fields = append(errs.fields, validateCoordinates(a.Geometry)...)
	}
	return errs.err()
}

// Validate checks name, type and geometry shape of a location.
func (l Location) Validate() error {
	errs := fieldErrors{entity: EntityLocation}
	if strings.TrimSpace(l.Name) == "" {
		errs.add("name", "is required")
	}
	switch l.LocationType {
	case LocationPoint, LocationPolygon:
		errs.fields = append(errs.fields, ValidateGeometry(l.LocationType, l.Geometry)...)
	default:
		errs.add("location_type", "%s is not a valid location_type", l.LocationType)
	}
	if l.ParentID != nil && *l.ParentID == l.ID && l.ID != "" {
		errs.add("parent_id", "cannot reference itself")
	}
	return errs.err()
}

// ValidateGeometry checks that geometry matches the location type exactly.
// Empty geometry is accepted.
func ValidateGeometry(kind LocationType, g *Geometry) []FieldError {
	if g.IsEmpty() {
		return nil
	}
	errs := fieldErrors{}
	switch kind {
	case LocationPoint:
		if g.Point == nil {
			errs.add("geometry", "point must have latitude and longitude")
		}
		if len(g.Polygon) > 0 {
			errs.add("geometry", "point must not carry polygon vertices")
		}
	case LocationPolygon:
		if g.Point != nil {
			errs.add("geometry", "polygon must not carry a single point")
		}
		if len(g.Polygon) < 3 {
			errs.add("geometry", "polygon must have at least 3 points")
		}
	}
	errs.fields = append(errs.fields, validateCoordinates(g)...)
	return errs.fields
}

func validateCoordinates(g *Geometry) []FieldError {
	errs := fieldErrors{}
	check := func(label string, p LatLng) {
		if p.Latitude < -90 || p.Latitude > 90 {
			errs.add("geometry", "%s latitude %v out of range", label, p.Latitude)
		}
		if p.Longitude < -180 || p.Longitude > 180 {
			errs.add("geometry", "%s longitude %v out of range", label, p.Longitude)
		}
	}
	if g.Point != nil {
		check("point", *g.Point)
	}
	for i, p := range g.Polygon {
		check("point "+strconv.Itoa(i+1), p)
	}
	return errs.fields
}

// Validate checks required fields and the status enum of a log, including
// its quantity line items.
func (l Log) Validate() error {
	errs := fieldErrors{entity: EntityLog}
	if strings.TrimSpace(l.Name) == "" {
		errs.add("name", "is required")
	}
	if l.Status != LogStatusPending && l.Status != LogStatusDone {
		errs.add("status", "%q is not a valid status", l.Status)
	}
	if l.Timestamp.IsZero() {
		errs.add("timestamp", "is required")
	}
	for i, q := range l.Quantities {
		prefix := "quantities[" + strconv.Itoa(i) + "]."
		if strings.TrimSpace(q.Measure) == "" {
			errs.add(prefix+"measure", "is required")
		}
		if strings.TrimSpace(q.Unit) == "" {
			errs.add(prefix+"unit", "is required")
		}
	}
	return errs.err()
}

// Validate checks the role-link invariant.
func (r RoleLink) Validate() error {
	errs := fieldErrors{entity: EntityRoleLink}
	if r.LogID == "" {
		errs.add("log_id", "is required")
	}
	if r.AssetID == "" {
		errs.add("asset_id", "is required")
	}
	if !r.Role.Valid() {
		errs.add("role", "%q is not a valid role", r.Role)
	}
	return errs.err()
}

// Validate checks name and kind of a predicate.
func (p Predicate) Validate() error {
	errs := fieldErrors{entity: EntityPredicate}
	if strings.TrimSpace(p.Name) == "" {
		errs.add("name", "is required")
	}
	if !p.Kind.Valid() {
		errs.add("kind", "%q is not a valid kind", p.Kind)
	}
	c := p.Constraints
	if c.Min != nil && c.Max != nil && c.Min.GreaterThan(*c.Max) {
		errs.add("constraints", "min %s exceeds max %s", c.Min, c.Max)
	}
	return errs.err()
}

// ValidateFact checks the required attributes and the kind-consistency
// invariant of a fact against its predicate.
func ValidateFact(f Fact, predicate Predicate) error {
	errs := fieldErrors{entity: EntityFact}
	if f.SubjectID == "" {
		errs.add("subject_id", "is required")
	}
	if f.PredicateID == "" {
		errs.add("predicate_id", "is required")
	}
	if f.ObservedAt.IsZero() {
		errs.add("observed_at", "is required")
	}
	if f.Object != nil {
		if f.Object.ID == "" {
			errs.add("object", "id is required")
		}
		if f.Object.Kind != ObjectAsset && f.Object.Kind != ObjectLocation {
			errs.add("object", "%q is not a valid object kind", f.Object.Kind)
		}
	}
	switch predicate.Kind {
	case KindMeasurement:
		if f.ValueNumeric == nil {
			errs.add("value_numeric", "must be present for measurement predicates")
		}
		if f.Object != nil {
			errs.add("object", "must be absent for measurement predicates")
		}
	case KindRelation:
		if f.Object == nil {
			errs.add("object", "must be present for relation predicates")
		}
		if f.ValueNumeric != nil {
			errs.add("value_numeric", "must be absent for relation predicates")
		}
	case KindState:
	default:
		errs.add("predicate_id", "predicate has invalid kind %q", predicate.Kind)
	}
	return errs.err()
}
