// Package memory provides an in-memory implementation of the core persistence
// store used for tests, ephemeral environments and as the transactional
// engine behind the snapshotting sqlite and postgres backends.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"farmgraph/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Asset aliases domain.Asset for in-memory persistence operations.
	Asset = domain.Asset
	// Location aliases domain.Location.
	Location = domain.Location
	// Log aliases domain.Log.
	Log = domain.Log
	// RoleLink aliases domain.RoleLink.
	RoleLink = domain.RoleLink
	// Predicate aliases domain.Predicate.
	Predicate = domain.Predicate
	// Fact aliases domain.Fact.
	Fact = domain.Fact
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	assets     map[string]Asset
	locations  map[string]Location
	logs       map[string]Log
	links      []RoleLink
	predicates map[string]Predicate
	facts      map[string]Fact
}

// Snapshot captures a point-in-time clone of the store state. Links keep
// creation order so "first source asset" stays stable across reloads.
type Snapshot struct {
	Assets     map[string]Asset     `json:"assets"`
	Locations  map[string]Location  `json:"locations"`
	Logs       map[string]Log       `json:"logs"`
	Links      []RoleLink           `json:"links"`
	Predicates map[string]Predicate `json:"predicates"`
	Facts      map[string]Fact      `json:"facts"`
}

func newMemoryState() memoryState {
	return memoryState{
		assets:     make(map[string]Asset),
		locations:  make(map[string]Location),
		logs:       make(map[string]Log),
		predicates: make(map[string]Predicate),
		facts:      make(map[string]Fact),
	}
}

func cloneMap[T any](in map[string]T, cloneFn func(T) T) map[string]T {
	out := make(map[string]T, len(in))
	for k, v := range in {
		out[k] = cloneFn(v)
	}
	return out
}

func (s memoryState) clone() memoryState {
	return memoryState{
		assets:     cloneMap(s.assets, cloneAsset),
		locations:  cloneMap(s.locations, cloneLocation),
		logs:       cloneMap(s.logs, cloneLog),
		links:      append([]RoleLink(nil), s.links...),
		predicates: cloneMap(s.predicates, clonePredicate),
		facts:      cloneMap(s.facts, cloneFact),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	c := state.clone()
	return Snapshot{
		Assets:     c.assets,
		Locations:  c.locations,
		Logs:       c.logs,
		Links:      c.links,
		Predicates: c.predicates,
		Facts:      c.facts,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{
		assets:     s.Assets,
		locations:  s.Locations,
		logs:       s.Logs,
		links:      s.Links,
		predicates: s.Predicates,
		facts:      s.Facts,
	}
	if state.assets == nil {
		state.assets = map[string]Asset{}
	}
	if state.locations == nil {
		state.locations = map[string]Location{}
	}
	if state.logs == nil {
		state.logs = map[string]Log{}
	}
	if state.predicates == nil {
		state.predicates = map[string]Predicate{}
	}
	if state.facts == nil {
		state.facts = map[string]Fact{}
	}
	return state.clone()
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneGeometry(g *domain.Geometry) *domain.Geometry {
	if g == nil {
		return nil
	}
	out := &domain.Geometry{}
	if g.Point != nil {
		p := *g.Point
		out.Point = &p
	}
	if g.Polygon != nil {
		out.Polygon = append([]domain.LatLng(nil), g.Polygon...)
	}
	return out
}

func cloneAsset(a Asset) Asset {
	a.CurrentLocationID = cloneStringPtr(a.CurrentLocationID)
	a.ParentID = cloneStringPtr(a.ParentID)
	a.Geometry = cloneGeometry(a.Geometry)
	a.ArchivedAt = cloneTimePtr(a.ArchivedAt)
	return a
}

func cloneLocation(l Location) Location {
	l.Geometry = cloneGeometry(l.Geometry)
	l.ParentID = cloneStringPtr(l.ParentID)
	l.ArchivedAt = cloneTimePtr(l.ArchivedAt)
	return l
}

func cloneLog(l Log) Log {
	l.FromLocationID = cloneStringPtr(l.FromLocationID)
	l.ToLocationID = cloneStringPtr(l.ToLocationID)
	l.MovedAt = cloneTimePtr(l.MovedAt)
	if l.Quantities != nil {
		l.Quantities = append([]domain.Quantity(nil), l.Quantities...)
	}
	return l
}

func clonePredicate(p Predicate) Predicate {
	if p.Constraints.Min != nil {
		v := *p.Constraints.Min
		p.Constraints.Min = &v
	}
	if p.Constraints.Max != nil {
		v := *p.Constraints.Max
		p.Constraints.Max = &v
	}
	return p
}

func cloneFact(f Fact) Fact {
	if f.Object != nil {
		o := *f.Object
		f.Object = &o
	}
	if f.ValueNumeric != nil {
		v := *f.ValueNumeric
		f.ValueNumeric = &v
	}
	f.LogID = cloneStringPtr(f.LogID)
	return f
}

// sortedValues returns map values ordered by creation time, then id.
func sortedValues[T any](in map[string]T, base func(T) domain.Base, cloneFn func(T) T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		out = append(out, cloneFn(v))
	}
	sort.Slice(out, func(i, j int) bool {
		bi, bj := base(out[i]), base(out[j])
		if !bi.CreatedAt.Equal(bj.CreatedAt) {
			return bi.CreatedAt.Before(bj.CreatedAt)
		}
		return bi.ID < bj.ID
	})
	return out
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used for record timestamps.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the time provider used for record timestamps.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the committed state only when fn succeeds and no blocking
// rule violation is reported.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}
