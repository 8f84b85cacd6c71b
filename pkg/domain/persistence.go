package domain

import (
	"context"
	"time"
)

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	Now() time.Time

	CreateAsset(Asset) (Asset, error)
	UpdateAsset(id string, mutator func(*Asset) error) (Asset, error)
	// FindOrCreateAsset returns the first asset matching key or creates one
	// from init. The boolean reports whether a record was created.
	FindOrCreateAsset(key AssetKey, init func(*Asset)) (Asset, bool, error)
	FindAsset(id string) (Asset, bool)

	CreateLocation(Location) (Location, error)
	UpdateLocation(id string, mutator func(*Location) error) (Location, error)
	FindLocation(id string) (Location, bool)

	CreateLog(Log) (Log, error)
	UpdateLog(id string, mutator func(*Log) error) (Log, error)
	DeleteLog(id string) error
	FindLog(id string) (Log, bool)

	LinkAsset(logID, assetID string, role Role) (RoleLink, error)
	RoleLinks(logID string) []RoleLink

	CreatePredicate(Predicate) (Predicate, error)
	DeletePredicate(id string) error
	FindPredicate(id string) (Predicate, bool)
	FindPredicateByName(name string) (Predicate, bool)

	CreateFact(Fact) (Fact, error)
}

// AssetKey identifies a derived asset by type, parent and location.
type AssetKey struct {
	AssetType         string
	ParentID          *string
	CurrentLocationID *string
}

// Matches reports whether asset carries exactly the key's attributes.
func (k AssetKey) Matches(a Asset) bool {
	return a.AssetType == k.AssetType && sameRef(a.ParentID, k.ParentID) && sameRef(a.CurrentLocationID, k.CurrentLocationID)
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// TransactionView provides read-only access to snapshot data for rules and queries.
type TransactionView interface {
	ListAssets() []Asset
	ListLocations() []Location
	ListLogs() []Log
	ListPredicates() []Predicate
	ListFacts() []Fact
	FindAsset(id string) (Asset, bool)
	FindLocation(id string) (Location, bool)
	FindLog(id string) (Log, bool)
	FindPredicate(id string) (Predicate, bool)
	FindPredicateByName(name string) (Predicate, bool)
	FindFact(id string) (Fact, bool)
	RoleLinks(logID string) []RoleLink
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	RulesEngine() *RulesEngine
}
