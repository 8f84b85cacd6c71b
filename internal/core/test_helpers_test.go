package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"farmgraph/pkg/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)

// fixedClock advances one second per call so records get distinct timestamps.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock { return &fixedClock{now: testEpoch} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	return newTestServiceWithEngine(t, nil, opts...)
}

func newTestServiceWithEngine(t *testing.T, engine *RulesEngine, opts ...ServiceOption) *Service {
	t.Helper()
	opts = append([]ServiceOption{WithClock(newFixedClock())}, opts...)
	svc, err := NewInMemoryService(engine, opts...)
	require.NoError(t, err)
	_, err = svc.SeedVocabulary(context.Background())
	require.NoError(t, err)
	return svc
}

func mustAsset(t *testing.T, svc *Service, a Asset) Asset {
	t.Helper()
	created, _, err := svc.CreateAsset(context.Background(), a)
	require.NoError(t, err)
	return created
}

func mustLocation(t *testing.T, svc *Service, name string, parentID *string) Location {
	t.Helper()
	created, _, err := svc.CreateLocation(context.Background(), Location{
		Name:         name,
		LocationType: domain.LocationPoint,
		ParentID:     parentID,
	})
	require.NoError(t, err)
	return created
}

func mustLog(t *testing.T, svc *Service, l Log, roles map[Role][]string) Log {
	t.Helper()
	created, completion, err := svc.CreateLog(context.Background(), l, roles)
	require.NoError(t, err)
	require.Nil(t, completion)
	return created
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }

// farm is a small fixture: a pasture, a barn and a flock of hens in the barn.
type farm struct {
	pasture Location
	barn    Location
	hens    Asset
	cow     Asset
}

func newFarm(t *testing.T, svc *Service) farm {
	t.Helper()
	pasture := mustLocation(t, svc, "North Pasture", nil)
	barn := mustLocation(t, svc, "Barn", nil)
	hens := mustAsset(t, svc, Asset{Name: "Laying Hens", AssetType: "animal", CurrentLocationID: &barn.ID})
	cow := mustAsset(t, svc, Asset{Name: "Daisy", AssetType: "animal", CurrentLocationID: &barn.ID})
	return farm{pasture: pasture, barn: barn, hens: hens, cow: cow}
}

func eggHarvest(name, value string) Log {
	return Log{
		Name:       name,
		LogType:    domain.LogTypeHarvest,
		Quantities: []Quantity{{Measure: "count", Value: dec(value), Unit: "eggs"}},
	}
}

type recordingSink struct {
	mu      sync.Mutex
	batches []FactBatch
	err     error
}

func (s *recordingSink) Project(_ context.Context, batch FactBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
	return s.err
}

// blockRule rejects every change to one entity type.
type blockRule struct {
	entity domain.EntityType
	action domain.Action
}

func (r blockRule) Name() string { return "block_" + string(r.entity) }

func (r blockRule) Evaluate(_ context.Context, _ domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, c := range changes {
		if c.Entity == r.entity && c.Action == r.action {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  string(r.entity) + " writes are disabled",
				Entity:   r.entity,
			})
		}
	}
	return res, nil
}
