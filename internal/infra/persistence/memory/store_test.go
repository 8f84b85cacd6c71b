package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"farmgraph/pkg/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		created, err := tx.CreateAsset(domain.Asset{Name: "Flock", AssetType: "animal"})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, domain.AssetStatusActive, created.Status)
		assert.Len(t, tx.Snapshot().ListAssets(), 1)
		return nil
	})
	require.NoError(t, err)

	snapshot := store.ExportState()
	require.Len(t, snapshot.Assets, 1)

	store.ImportState(Snapshot{})
	require.NoError(t, store.View(ctx, func(v domain.TransactionView) error {
		assert.Empty(t, v.ListAssets())
		return nil
	}))

	store.ImportState(snapshot)
	require.NoError(t, store.View(ctx, func(v domain.TransactionView) error {
		assert.Len(t, v.ListAssets(), 1)
		return nil
	}))
	assert.NotNil(t, store.RulesEngine())
	assert.NotNil(t, store.NowFunc())
}

func TestStoreRollsBackOnError(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateAsset(domain.Asset{Name: "Cow", AssetType: "animal"})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, store.ExportState().Assets)
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.TransactionView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock, Message: "nope"}}}, nil
}

func TestStoreRuleViolation(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	res, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateAsset(domain.Asset{Name: "Blocked"})
		return e
	})
	var rv domain.RuleViolationError
	require.ErrorAs(t, err, &rv)
	assert.True(t, res.HasBlocking())
	assert.Empty(t, store.ExportState().Assets)
}

func TestStoreReferentialChecks(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateAsset(domain.Asset{Name: "Orphan", CurrentLocationID: strPtr("nowhere")})
		return err
	})
	assert.True(t, domain.IsNotFound(err))

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateLog(domain.Log{Name: "Move", ToLocationID: strPtr("nowhere")})
		return err
	})
	assert.True(t, domain.IsNotFound(err))

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateAsset("missing", func(*domain.Asset) error { return nil })
		return err
	})
	assert.True(t, domain.IsNotFound(err))
}

func TestStoreLogDefaultsAndLinks(t *testing.T) {
	store := NewStore(nil)
	fixed := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		hen, err := tx.CreateAsset(domain.Asset{Name: "Hen", AssetType: "animal"})
		require.NoError(t, err)
		log, err := tx.CreateLog(domain.Log{Name: "Collect eggs", LogType: domain.LogTypeHarvest})
		require.NoError(t, err)
		assert.Equal(t, domain.LogStatusPending, log.Status)
		assert.Equal(t, fixed, log.Timestamp)

		_, err = tx.LinkAsset(log.ID, hen.ID, domain.RoleSource)
		require.NoError(t, err)
		_, err = tx.LinkAsset(log.ID, hen.ID, domain.RoleSubject)
		require.NoError(t, err, "same pair may carry distinct roles")

		_, err = tx.LinkAsset(log.ID, hen.ID, domain.Role("owner"))
		assert.True(t, domain.IsValidation(err))

		links := tx.RoleLinks(log.ID)
		require.Len(t, links, 2)
		assert.Equal(t, domain.RoleSource, links[0].Role)
		assert.Equal(t, domain.RoleSubject, links[1].Role)
		return nil
	})
	require.NoError(t, err)
}

func TestStoreFindOrCreateAssetIsKeyed(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		hen, err := tx.CreateAsset(domain.Asset{Name: "Hen", AssetType: "animal"})
		require.NoError(t, err)
		key := domain.AssetKey{AssetType: "egg", ParentID: &hen.ID}

		first, created, err := tx.FindOrCreateAsset(key, func(a *domain.Asset) { a.Name = "Egg from Hen" })
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "egg", first.AssetType)

		again, created, err := tx.FindOrCreateAsset(key, func(a *domain.Asset) { a.Name = "ignored" })
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, again.ID)
		assert.Equal(t, "Egg from Hen", again.Name)
		return nil
	})
	require.NoError(t, err)
}

func TestStorePredicateUniquenessAndRestrictedDelete(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	var predicateID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		p, err := tx.CreatePredicate(domain.Predicate{Name: "yield", Kind: domain.KindMeasurement})
		require.NoError(t, err)
		predicateID = p.ID
		_, err = tx.CreatePredicate(domain.Predicate{Name: "yield", Kind: domain.KindMeasurement})
		assert.True(t, domain.IsValidation(err))

		hen, err := tx.CreateAsset(domain.Asset{Name: "Hen", AssetType: "animal"})
		require.NoError(t, err)
		_, err = tx.CreateFact(domain.Fact{SubjectID: hen.ID, PredicateID: p.ID, ValueNumeric: decPtr(12), ObservedAt: tx.Now()})
		return err
	})
	require.NoError(t, err)

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeletePredicate(predicateID)
	})
	var ri domain.ReferentialIntegrityError
	require.ErrorAs(t, err, &ri)
	assert.Equal(t, 1, ri.Count)
}

func TestStoreFactKindConsistency(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		field, err := tx.CreateLocation(domain.Location{Name: "North", LocationType: domain.LocationPoint,
			Geometry: &domain.Geometry{Point: &domain.LatLng{Latitude: 45, Longitude: -93}}})
		require.NoError(t, err)
		cow, err := tx.CreateAsset(domain.Asset{Name: "Cow", AssetType: "animal"})
		require.NoError(t, err)
		weight, err := tx.CreatePredicate(domain.Predicate{Name: "weight", Kind: domain.KindMeasurement})
		require.NoError(t, err)
		grazes, err := tx.CreatePredicate(domain.Predicate{Name: "grazes", Kind: domain.KindRelation})
		require.NoError(t, err)

		object := &domain.FactObject{Kind: domain.ObjectLocation, ID: field.ID}

		_, err = tx.CreateFact(domain.Fact{SubjectID: cow.ID, PredicateID: weight.ID, ObservedAt: tx.Now()})
		assert.True(t, domain.IsValidation(err), "measurement without value")
		_, err = tx.CreateFact(domain.Fact{SubjectID: cow.ID, PredicateID: weight.ID, ValueNumeric: decPtr(400), Object: object, ObservedAt: tx.Now()})
		assert.True(t, domain.IsValidation(err), "measurement with object")
		_, err = tx.CreateFact(domain.Fact{SubjectID: cow.ID, PredicateID: grazes.ID, ObservedAt: tx.Now()})
		assert.True(t, domain.IsValidation(err), "relation without object")
		_, err = tx.CreateFact(domain.Fact{SubjectID: cow.ID, PredicateID: grazes.ID, Object: object, ValueNumeric: decPtr(1), ObservedAt: tx.Now()})
		assert.True(t, domain.IsValidation(err), "relation with value")

		_, err = tx.CreateFact(domain.Fact{SubjectID: cow.ID, PredicateID: grazes.ID, Object: &domain.FactObject{Kind: domain.ObjectLocation, ID: "ghost"}, ObservedAt: tx.Now()})
		assert.True(t, domain.IsNotFound(err), "relation object must exist")

		_, err = tx.CreateFact(domain.Fact{SubjectID: cow.ID, PredicateID: grazes.ID, Object: object, ObservedAt: tx.Now()})
		return err
	})
	require.NoError(t, err)
}

func TestStoreDeleteLogCascadesLinksAndKeepsFacts(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	var logID, factID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		hen, err := tx.CreateAsset(domain.Asset{Name: "Hen", AssetType: "animal"})
		require.NoError(t, err)
		p, err := tx.CreatePredicate(domain.Predicate{Name: "yield", Kind: domain.KindMeasurement})
		require.NoError(t, err)
		log, err := tx.CreateLog(domain.Log{Name: "Harvest", LogType: domain.LogTypeHarvest})
		require.NoError(t, err)
		_, err = tx.LinkAsset(log.ID, hen.ID, domain.RoleSource)
		require.NoError(t, err)
		fact, err := tx.CreateFact(domain.Fact{SubjectID: hen.ID, PredicateID: p.ID, ValueNumeric: decPtr(6), ObservedAt: tx.Now(), LogID: &log.ID})
		require.NoError(t, err)
		logID, factID = log.ID, fact.ID
		return nil
	})
	require.NoError(t, err)

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteLog(logID)
	})
	require.NoError(t, err)

	require.NoError(t, store.View(ctx, func(v domain.TransactionView) error {
		assert.Empty(t, v.RoleLinks(logID))
		fact, ok := v.FindFact(factID)
		require.True(t, ok)
		assert.Nil(t, fact.LogID)
		return nil
	}))
}

func TestStoreUpdateValidatesLocationGeometry(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateLocation(domain.Location{Name: "Paddock", LocationType: domain.LocationPolygon,
			Geometry: &domain.Geometry{Polygon: []domain.LatLng{{Latitude: 1, Longitude: 1}, {Latitude: 2, Longitude: 2}}}})
		return err
	})
	var ve domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, domain.EntityLocation, ve.Entity)
	assert.Equal(t, "geometry", ve.Fields[0].Field)
}
