package export

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmgraph/internal/blob"
	"farmgraph/internal/core"
	"farmgraph/pkg/domain"
)

var exportEpoch = time.Date(2025, 6, 1, 6, 30, 0, 0, time.UTC)

// completedFarm harvests eggs from the hens and moves the cow to pasture,
// returning the batch of the two facts produced.
func completedFarm(t *testing.T, opts ...core.ServiceOption) (*core.Service, core.FactBatch) {
	t.Helper()
	ctx := context.Background()
	svc, err := core.NewInMemoryService(nil, opts...)
	require.NoError(t, err)
	_, err = svc.SeedVocabulary(ctx)
	require.NoError(t, err)

	pasture, _, err := svc.CreateLocation(ctx, core.Location{Name: "North Pasture", LocationType: domain.LocationPoint})
	require.NoError(t, err)
	hens, _, err := svc.CreateAsset(ctx, core.Asset{Name: "Laying Hens", AssetType: "animal"})
	require.NoError(t, err)
	cow, _, err := svc.CreateAsset(ctx, core.Asset{Name: "Daisy", AssetType: "animal"})
	require.NoError(t, err)

	_, harvest, err := svc.CreateLog(ctx, core.Log{
		Name:       "Morning eggs",
		LogType:    domain.LogTypeHarvest,
		Status:     domain.LogStatusDone,
		Timestamp:  exportEpoch,
		Quantities: []core.Quantity{{Measure: "count", Value: decimal.NewFromInt(25), Unit: "eggs"}},
	}, map[core.Role][]string{domain.RoleSource: {hens.ID}})
	require.NoError(t, err)
	require.NotNil(t, harvest)
	require.Len(t, harvest.Facts, 1)

	_, move, err := svc.CreateLog(ctx, core.Log{
		Name:         "To pasture",
		LogType:      domain.LogTypeMovement,
		Status:       domain.LogStatusDone,
		Timestamp:    exportEpoch.Add(time.Hour),
		ToLocationID: &pasture.ID,
	}, map[core.Role][]string{domain.RoleMoved: {cow.ID}})
	require.NoError(t, err)
	require.NotNil(t, move)
	require.Len(t, move.Facts, 1)

	facts, err := svc.ListFacts(ctx, core.FactFilter{})
	require.NoError(t, err)
	batch, err := svc.FactBatch(ctx, facts)
	require.NoError(t, err)
	return svc, batch
}

func TestRecordsResolveReferences(t *testing.T) {
	_, batch := completedFarm(t)
	records := Records(batch)
	require.Len(t, records, 2)

	grazes, yield := records[0], records[1]
	assert.Equal(t, "grazes", grazes.Predicate)
	assert.Equal(t, "relation", grazes.Kind)
	assert.Equal(t, "Daisy", grazes.Subject.Name)
	require.NotNil(t, grazes.Object)
	assert.Equal(t, "location", grazes.Object.Kind)
	assert.Equal(t, "North Pasture", grazes.Object.Name)
	assert.Nil(t, grazes.Value)
	assert.Equal(t, "Daisy grazes North Pasture @ 2025-06-01T07:30:00Z", grazes.Text)

	assert.Equal(t, "yield", yield.Predicate)
	assert.Equal(t, "measurement", yield.Kind)
	assert.Equal(t, "Laying Hens", yield.Subject.Name)
	assert.Nil(t, yield.Object)
	require.NotNil(t, yield.Value)
	assert.True(t, yield.Value.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, "eggs", yield.Unit)
	assert.NotEmpty(t, yield.LogID)
	assert.Equal(t, "Laying Hens yield 25 eggs @ 2025-06-01T06:30:00Z", yield.Text)
}

func TestWriteJSONLOneRecordPerLine(t *testing.T) {
	_, batch := completedFarm(t)
	var sb strings.Builder
	n, err := WriteJSONL(&sb, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "grazes", first["predicate"])
	assert.NotContains(t, first, "value")

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "25", second["value"])
}

func TestExportWritesObject(t *testing.T) {
	_, batch := completedFarm(t)
	store := blob.NewMemory()
	exp := New(store, WithClock(func() time.Time { return exportEpoch }))

	info, err := exp.Export(context.Background(), batch)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(info.Key, "exports/facts-20250601T063000Z-"), info.Key)
	assert.True(t, strings.HasSuffix(info.Key, ".jsonl"), info.Key)
	assert.Equal(t, "application/x-ndjson", info.ContentType)
	assert.Equal(t, "2", info.Metadata["facts"])

	_, rc, err := store.Get(context.Background(), info.Key)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	assert.Equal(t, 2, countLines(t, rc))

	listed, err := exp.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, info.Key, listed[0].Key)
}

func TestExportEmptyBatch(t *testing.T) {
	store := blob.NewMemory()
	info, err := New(store).Export(context.Background(), core.FactBatch{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size)
	assert.Equal(t, "0", info.Metadata["facts"])
}

func TestExporterAsFactSink(t *testing.T) {
	store := blob.NewMemory()
	exp := New(store)
	_, _ = completedFarm(t, core.WithFactSink(exp))

	listed, err := exp.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, listed, 2, "one export per completion with facts")

	require.NoError(t, exp.Project(context.Background(), core.FactBatch{}))
	listed, err = exp.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestKeyIsUnique(t *testing.T) {
	assert.NotEqual(t, Key(exportEpoch), Key(exportEpoch))
}

func countLines(t *testing.T, r io.Reader) int {
	t.Helper()
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
	}
	require.NoError(t, sc.Err())
	return n
}
