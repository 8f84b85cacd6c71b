package core

import (
	"context"
	"testing"

	"farmgraph/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVocabulary(t *testing.T) {
	v := DefaultVocabulary()
	got := names(v.Predicates, func(p Predicate) string { return p.Name })
	assert.Equal(t, []string{
		"yield", "grazes", "butterfat_pct", "weight", "milk_yield",
		"contains", "rainfall_mm", "health_status", "body_condition_score",
	}, got)

	for _, p := range v.Predicates {
		if p.Name == "body_condition_score" {
			require.NotNil(t, p.Constraints.Min)
			require.NotNil(t, p.Constraints.Max)
			assert.True(t, p.Constraints.Min.Equal(dec("1")))
			assert.True(t, p.Constraints.Max.Equal(dec("9")))
		}
	}
	require.NoError(t, ValidateDispatch(v.Predicates))
}

func TestSeedVocabulary_FindOrCreate(t *testing.T) {
	ctx := context.Background()
	svc, err := NewInMemoryService(nil)
	require.NoError(t, err)

	first, err := svc.SeedVocabulary(ctx)
	require.NoError(t, err)
	assert.Len(t, first.Created, 9)
	assert.Empty(t, first.Existing)

	second, err := svc.SeedVocabulary(ctx)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Len(t, second.Existing, 9)

	require.NoError(t, svc.ValidateStoredVocabulary(ctx))
}

func TestListPredicates_Filters(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	relations, err := svc.ListPredicates(ctx, PredicateFilter{Kind: domain.KindRelation})
	require.NoError(t, err)
	assert.Equal(t, []string{"contains", "grazes"}, names(relations, func(p Predicate) string { return p.Name }))

	yields, err := svc.ListPredicates(ctx, PredicateFilter{Name: "YIELD"})
	require.NoError(t, err)
	assert.Equal(t, []string{"milk_yield", "yield"}, names(yields, func(p Predicate) string { return p.Name }))

	states, err := svc.ListPredicates(ctx, PredicateFilter{Kind: domain.KindState, Name: "health"})
	require.NoError(t, err)
	require.Len(t, states, 1)

	_, err = svc.PredicateByName(ctx, "sheen")
	assert.True(t, domain.IsNotFound(err))
}

func TestCreatePredicate_UniqueName(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, _, err := svc.CreatePredicate(ctx, Predicate{Name: "yield", Kind: domain.KindMeasurement})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	created, _, err := svc.CreatePredicate(ctx, Predicate{Name: "egg_color", Kind: domain.KindState})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

func TestDeletePredicate_Restricted(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	f := newFarm(t, svc)
	log := mustLog(t, svc, eggHarvest("Eggs", "3"), map[Role][]string{domain.RoleSource: {f.hens.ID}})
	_, err := svc.CompleteLog(ctx, log.ID)
	require.NoError(t, err)

	yield, err := svc.PredicateByName(ctx, "yield")
	require.NoError(t, err)
	_, err = svc.DeletePredicate(ctx, yield.ID)
	require.Error(t, err)
	var ref domain.ReferentialIntegrityError
	require.ErrorAs(t, err, &ref)
	assert.Equal(t, 1, ref.Count)
	assert.Equal(t, domain.EntityFact, ref.Dependent)

	rainfall, err := svc.PredicateByName(ctx, "rainfall_mm")
	require.NoError(t, err)
	_, err = svc.DeletePredicate(ctx, rainfall.ID)
	require.NoError(t, err)

	_, err = svc.DeletePredicate(ctx, rainfall.ID)
	assert.True(t, domain.IsNotFound(err))
}

func TestLoadVocabulary_Errors(t *testing.T) {
	_, err := LoadVocabulary([]byte("predicates: [oops"))
	require.ErrorContains(t, err, "decode vocabulary")

	_, err = LoadVocabulary([]byte(`
predicates:
  - name: sheen
    kind: sparkle
`))
	require.ErrorContains(t, err, `vocabulary entry "sheen"`)

	_, err = LoadVocabulary([]byte(`
predicates:
  - name: yield
    kind: measurement
  - name: yield
    kind: measurement
`))
	require.ErrorContains(t, err, "declared twice")

	_, err = LoadVocabulary([]byte(`
predicates:
  - name: bcs
    kind: measurement
    constraints:
      min: 9
      max: 1
`))
	require.ErrorContains(t, err, "min 9 exceeds max 1")
}

func TestValidateDispatch_ReportsMismatches(t *testing.T) {
	v := DefaultVocabulary()
	var broken []Predicate
	for _, p := range v.Predicates {
		switch p.Name {
		case "yield":
			p.Kind = domain.KindState
		case "grazes":
			p.Constraints.Range = "PlantAsset"
		case "weight":
			continue
		}
		broken = append(broken, p)
	}

	err := ValidateDispatch(broken)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `predicate "yield" is state, harvest logs emit measurement facts`)
	assert.Contains(t, msg, `predicate "grazes" range "PlantAsset" does not accept Location`)
	assert.Contains(t, msg, `observation logs emit "weight" but no such predicate exists`)
}

func TestNewService_RejectsMismatchedVocabulary(t *testing.T) {
	_, err := NewInMemoryService(nil, WithVocabulary(Vocabulary{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate vocabulary")

	_, err = NewService(nil)
	require.Error(t, err)
}

func TestOutputTypeForUnit(t *testing.T) {
	cases := map[string]OutputType{
		"egg":       OutputEgg,
		" Eggs ":    OutputEgg,
		"l":         OutputMilk,
		"Gallons":   OutputMilk,
		"lbs":       OutputHarvest,
		"kilograms": OutputHarvest,
		"crate":     OutputProduct,
		"":          OutputProduct,
	}
	for unit, want := range cases {
		assert.Equal(t, want, OutputTypeForUnit(unit), "unit %q", unit)
	}
	assert.False(t, OutputType("pie").Valid())
}
