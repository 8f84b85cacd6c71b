package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"farmgraph/internal/core"
	"farmgraph/pkg/domain"
)

var schemaStatements = []string{
	`CREATE CONSTRAINT asset_id_unique IF NOT EXISTS FOR (a:Asset) REQUIRE a.id IS UNIQUE`,
	`CREATE CONSTRAINT location_id_unique IF NOT EXISTS FOR (l:Location) REQUIRE l.id IS UNIQUE`,
	`CREATE CONSTRAINT observation_id_unique IF NOT EXISTS FOR (o:Observation) REQUIRE o.id IS UNIQUE`,
}

const upsertAssets = `
UNWIND $rows AS r
MERGE (a:Asset {id: r.id})
SET a.name = r.name, a.asset_type = r.asset_type, a.status = r.status, a.synced_at = r.synced_at
WITH a, r
WHERE r.location_id <> ''
MERGE (l:Location {id: r.location_id})
MERGE (a)-[:LOCATED_IN]->(l)
`

const upsertLocations = `
UNWIND $rows AS r
MERGE (l:Location {id: r.id})
SET l.name = r.name, l.location_type = r.location_type, l.synced_at = r.synced_at
`

const upsertObservations = `
UNWIND $rows AS r
MATCH (a:Asset {id: r.subject_id})
MERGE (o:Observation {id: r.id})
SET o.predicate = r.predicate, o.kind = r.kind, o.value = r.value, o.unit = r.unit,
    o.observed_at = r.observed_at, o.log_id = r.log_id
MERGE (a)-[:OBSERVED]->(o)
`

// relationCypher links a subject to its object under a relationship type
// named after the predicate. Types cannot be parameters, so relType
// restricts the name to [A-Z0-9_].
func relationCypher(relType, objectLabel string) string {
	return "\nUNWIND $rows AS r\n" +
		"MATCH (a:Asset {id: r.subject_id})\n" +
		"MERGE (o:" + objectLabel + " {id: r.object_id})\n" +
		"MERGE (a)-[e:`" + relType + "` {fact_id: r.id}]->(o)\n" +
		"SET e.observed_at = r.observed_at, e.log_id = r.log_id\n"
}

// Projector writes fact batches through a Writer. It satisfies
// core.FactSink.
type Projector struct {
	writer Writer
	now    func() time.Time
}

var _ core.FactSink = (*Projector)(nil)

// NewProjector returns a Projector writing through w.
func NewProjector(w Writer) *Projector {
	return &Projector{writer: w, now: func() time.Time { return time.Now().UTC() }}
}

// Project upserts the batch's assets, locations and facts in one write.
func (p *Projector) Project(ctx context.Context, batch core.FactBatch) error {
	if len(batch.Facts) == 0 {
		return nil
	}
	if err := p.writer.Write(ctx, Statements(batch, p.now())); err != nil {
		return fmt.Errorf("project %d facts: %w", len(batch.Facts), err)
	}
	return nil
}

// Statements builds the Cypher for batch: node upserts first, then one
// statement for measurement and state facts and one per relation type.
func Statements(batch core.FactBatch, syncedAt time.Time) []Statement {
	stamp := syncedAt.UTC().Format(time.RFC3339Nano)
	var out []Statement

	if rows := locationRows(batch, stamp); len(rows) > 0 {
		out = append(out, Statement{Cypher: upsertLocations, Params: map[string]any{"rows": rows}})
	}
	if rows := assetRows(batch, stamp); len(rows) > 0 {
		out = append(out, Statement{Cypher: upsertAssets, Params: map[string]any{"rows": rows}})
	}

	var observations []map[string]any
	relations := make(map[string][]map[string]any)
	for _, f := range batch.Facts {
		pred, ok := batch.Predicates[f.PredicateID]
		if !ok {
			continue
		}
		row := map[string]any{
			"id":          f.ID,
			"subject_id":  f.SubjectID,
			"observed_at": f.ObservedAt.UTC().Format(time.RFC3339Nano),
			"log_id":      derefString(f.LogID),
		}
		if f.Object != nil {
			row["object_id"] = f.Object.ID
			key := relType(pred.Name) + "|" + objectLabel(f.Object.Kind)
			relations[key] = append(relations[key], row)
			continue
		}
		row["predicate"] = pred.Name
		row["kind"] = string(pred.Kind)
		row["unit"] = f.Unit
		row["value"] = ""
		if f.ValueNumeric != nil {
			row["value"] = f.ValueNumeric.String()
		}
		observations = append(observations, row)
	}
	if len(observations) > 0 {
		out = append(out, Statement{Cypher: upsertObservations, Params: map[string]any{"rows": observations}})
	}

	keys := make([]string, 0, len(relations))
	for k := range relations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		typ, label, _ := strings.Cut(k, "|")
		out = append(out, Statement{Cypher: relationCypher(typ, label), Params: map[string]any{"rows": relations[k]}})
	}
	return out
}

func assetRows(batch core.FactBatch, stamp string) []map[string]any {
	rows := make([]map[string]any, 0, len(batch.Assets))
	for _, a := range batch.Assets {
		rows = append(rows, map[string]any{
			"id":          a.ID,
			"name":        a.Name,
			"asset_type":  a.AssetType,
			"status":      string(a.Status),
			"location_id": derefString(a.CurrentLocationID),
			"synced_at":   stamp,
		})
	}
	sortRows(rows)
	return rows
}

func locationRows(batch core.FactBatch, stamp string) []map[string]any {
	rows := make([]map[string]any, 0, len(batch.Locations))
	for _, l := range batch.Locations {
		rows = append(rows, map[string]any{
			"id":            l.ID,
			"name":          l.Name,
			"location_type": string(l.LocationType),
			"synced_at":     stamp,
		})
	}
	sortRows(rows)
	return rows
}

func sortRows(rows []map[string]any) {
	sort.Slice(rows, func(i, j int) bool { return rows[i]["id"].(string) < rows[j]["id"].(string) })
}

func objectLabel(kind domain.ObjectKind) string {
	if kind == domain.ObjectLocation {
		return "Location"
	}
	return "Asset"
}

// relType turns a predicate name into a relationship type: upper case, with
// every character outside [A-Z0-9] replaced by an underscore.
func relType(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "RELATED_TO"
	}
	return b.String()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
