// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by farmgraph.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityAsset identifies a physical or derived asset record.
	EntityAsset EntityType = "asset"
	// EntityLocation identifies a named place with point or polygon geometry.
	EntityLocation EntityType = "location"
	// EntityLog identifies a recorded activity.
	EntityLog EntityType = "log"
	// EntityRoleLink identifies a role-tagged association between a log and an asset.
	EntityRoleLink EntityType = "role_link"
	// EntityPredicate identifies a vocabulary entry.
	EntityPredicate EntityType = "predicate"
	// EntityFact identifies an immutable knowledge graph record.
	EntityFact EntityType = "fact"
)

// AssetStatus enumerates asset availability states.
type AssetStatus string

// Canonical asset statuses.
const (
	AssetStatusActive   AssetStatus = "active"
	AssetStatusArchived AssetStatus = "archived"
)

// LogStatus enumerates the log lifecycle states.
type LogStatus string

// Canonical log statuses. Done is terminal.
const (
	LogStatusPending LogStatus = "pending"
	LogStatusDone    LogStatus = "done"
)

// LocationType enumerates supported geometry shapes.
type LocationType string

// Canonical location types.
const (
	LocationPoint   LocationType = "point"
	LocationPolygon LocationType = "polygon"
)

// Well-known log types that drive completion side effects.
const (
	LogTypeHarvest     = "harvest"
	LogTypeMovement    = "movement"
	LogTypeObservation = "observation"
)

// Role tags the semantic of a log to asset association.
type Role string

// Closed set of roles accepted by the role-link registry.
const (
	RoleSource  Role = "source"
	RoleOutput  Role = "output"
	RoleMoved   Role = "moved"
	RoleSubject Role = "subject"
	RoleInput   Role = "input"
	RoleRelated Role = "related"
)

var validRoles = map[Role]struct{}{
	RoleSource:  {},
	RoleOutput:  {},
	RoleMoved:   {},
	RoleSubject: {},
	RoleInput:   {},
	RoleRelated: {},
}

// Roles returns the accepted roles in declaration order.
func Roles() []Role {
	return []Role{RoleSource, RoleOutput, RoleMoved, RoleSubject, RoleInput, RoleRelated}
}

// ParseRole converts a string into a Role, rejecting unknown values.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", NewValidationError(EntityRoleLink, FieldError{Field: "role", Message: "unknown role " + raw})
	}
	return role, nil
}

// Valid reports whether the role belongs to the closed role set.
func (r Role) Valid() bool {
	_, ok := validRoles[r]
	return ok
}

// PredicateKind classifies the facts a predicate describes.
type PredicateKind string

// Canonical predicate kinds.
const (
	KindMeasurement PredicateKind = "measurement"
	KindRelation    PredicateKind = "relation"
	KindState       PredicateKind = "state"
)

// Valid reports whether the kind is one of the canonical values.
func (k PredicateKind) Valid() bool {
	switch k {
	case KindMeasurement, KindRelation, KindState:
		return true
	default:
		return false
	}
}

// ObjectKind identifies what a relation fact points at.
type ObjectKind string

// Fact object kinds.
const (
	ObjectAsset    ObjectKind = "asset"
	ObjectLocation ObjectKind = "location"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LatLng is a single WGS84 coordinate.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geometry holds either a point or an ordered polygon ring.
type Geometry struct {
	Point   *LatLng  `json:"point,omitempty"`
	Polygon []LatLng `json:"polygon,omitempty"`
}

// IsEmpty reports whether neither shape is populated.
func (g *Geometry) IsEmpty() bool {
	return g == nil || (g.Point == nil && len(g.Polygon) == 0)
}

// Asset represents a tracked physical or derived thing.
type Asset struct {
	Base
	Name              string          `json:"name"`
	AssetType         string          `json:"asset_type"`
	Status            AssetStatus     `json:"status"`
	Quantity          decimal.Decimal `json:"quantity"`
	CurrentLocationID *string         `json:"current_location_id,omitempty"`
	ParentID          *string         `json:"parent_id,omitempty"`
	Geometry          *Geometry       `json:"geometry,omitempty"`
	ArchivedAt        *time.Time      `json:"archived_at,omitempty"`
	Notes             string          `json:"notes,omitempty"`
}

// NodeID satisfies HierarchyNode.
func (a Asset) NodeID() string { return a.ID }

// NodeParentID satisfies HierarchyNode.
func (a Asset) NodeParentID() *string { return a.ParentID }

// IsArchived reports whether the asset has been soft-deleted.
func (a Asset) IsArchived() bool { return a.Status == AssetStatusArchived }

// TypeTags returns the tags used when matching predicate domain and range
// constraints: the raw asset type and its class-style form ("animal" yields
// "AnimalAsset").
func (a Asset) TypeTags() []string {
	tags := []string{"Asset"}
	t := strings.TrimSpace(a.AssetType)
	if t == "" {
		return tags
	}
	return append(tags, t, Capitalize(t)+"Asset")
}

// Location represents a named place.
type Location struct {
	Base
	Name         string       `json:"name"`
	LocationType LocationType `json:"location_type"`
	Geometry     *Geometry    `json:"geometry,omitempty"`
	ParentID     *string      `json:"parent_id,omitempty"`
	ArchivedAt   *time.Time   `json:"archived_at,omitempty"`
	Notes        string       `json:"notes,omitempty"`
}

// NodeID satisfies HierarchyNode.
func (l Location) NodeID() string { return l.ID }

// NodeParentID satisfies HierarchyNode.
func (l Location) NodeParentID() *string { return l.ParentID }

// IsArchived reports whether the location carries an archive timestamp.
func (l Location) IsArchived() bool { return l.ArchivedAt != nil }

// TypeTags returns the tags matched against predicate constraints.
func (l Location) TypeTags() []string {
	return []string{"Location", string(l.LocationType)}
}

// CenterPoint returns the point itself or the vertex mean of a polygon.
func (l Location) CenterPoint() (LatLng, bool) {
	if l.Geometry.IsEmpty() {
		return LatLng{}, false
	}
	switch l.LocationType {
	case LocationPoint:
		if l.Geometry.Point == nil {
			return LatLng{}, false
		}
		return *l.Geometry.Point, true
	case LocationPolygon:
		if len(l.Geometry.Polygon) == 0 {
			return LatLng{}, false
		}
		var lat, lng float64
		for _, p := range l.Geometry.Polygon {
			lat += p.Latitude
			lng += p.Longitude
		}
		n := float64(len(l.Geometry.Polygon))
		return LatLng{Latitude: lat / n, Longitude: lng / n}, true
	default:
		return LatLng{}, false
	}
}

// Quantity is a measured line item owned by a log.
type Quantity struct {
	Measure      string          `json:"measure"`
	Value        decimal.Decimal `json:"value"`
	Unit         string          `json:"unit"`
	Label        string          `json:"label,omitempty"`
	QuantityType string          `json:"quantity_type,omitempty"`
}

// Log represents a recorded activity.
type Log struct {
	Base
	Name           string     `json:"name"`
	LogType        string     `json:"log_type"`
	Status         LogStatus  `json:"status"`
	Timestamp      time.Time  `json:"timestamp"`
	FromLocationID *string    `json:"from_location_id,omitempty"`
	ToLocationID   *string    `json:"to_location_id,omitempty"`
	MovedAt        *time.Time `json:"moved_at,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Quantities     []Quantity `json:"quantities,omitempty"`
}

// IsMovement reports whether completion should relocate moved assets.
func (l Log) IsMovement() bool {
	return l.LogType == LogTypeMovement || (l.FromLocationID != nil && l.ToLocationID != nil)
}

// IsHarvest reports whether completion should derive an output asset.
func (l Log) IsHarvest() bool { return l.LogType == LogTypeHarvest }

// IsDone reports whether the log reached its terminal state.
func (l Log) IsDone() bool { return l.Status == LogStatusDone }

// FirstQuantity returns the first line item, if any.
func (l Log) FirstQuantity() (Quantity, bool) {
	if len(l.Quantities) == 0 {
		return Quantity{}, false
	}
	return l.Quantities[0], true
}

// QuantityOfType returns the first line item with the given quantity type.
func (l Log) QuantityOfType(quantityType string) (Quantity, bool) {
	for _, q := range l.Quantities {
		if q.QuantityType == quantityType {
			return q, true
		}
	}
	return Quantity{}, false
}

// RoleLink is a role-tagged association between a log and an asset.
type RoleLink struct {
	Base
	LogID   string `json:"log_id"`
	AssetID string `json:"asset_id"`
	Role    Role   `json:"role"`
}

// PredicateConstraints declares the structural expectations of a predicate.
type PredicateConstraints struct {
	Domain string           `json:"domain,omitempty"`
	Range  string           `json:"range,omitempty"`
	Min    *decimal.Decimal `json:"min,omitempty"`
	Max    *decimal.Decimal `json:"max,omitempty"`
}

// Predicate is a named vocabulary entry describing a class of facts.
type Predicate struct {
	Base
	Name        string               `json:"name"`
	Kind        PredicateKind        `json:"kind"`
	Unit        string               `json:"unit,omitempty"`
	Description string               `json:"description,omitempty"`
	Constraints PredicateConstraints `json:"constraints"`
}

// FactObject is the tagged reference a relation fact points at.
type FactObject struct {
	Kind ObjectKind `json:"kind"`
	ID   string     `json:"id"`
}

// Fact is an immutable, timestamped observation in the knowledge graph.
type Fact struct {
	Base
	SubjectID    string           `json:"subject_id"`
	PredicateID  string           `json:"predicate_id"`
	Object       *FactObject      `json:"object,omitempty"`
	ValueNumeric *decimal.Decimal `json:"value_numeric,omitempty"`
	Unit         string           `json:"unit,omitempty"`
	ObservedAt   time.Time        `json:"observed_at"`
	LogID        *string          `json:"log_id,omitempty"`
}

// ObjectID returns the referenced object identifier or an empty string.
func (f Fact) ObjectID() string {
	if f.Object == nil {
		return ""
	}
	return f.Object.ID
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before ChangePayload
	After  ChangePayload
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Capitalize upper-cases the first byte of an ASCII tag.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
