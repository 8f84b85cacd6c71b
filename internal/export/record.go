// Package export writes facts as JSON lines to a blob store.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"farmgraph/internal/core"
)

// Ref names an entity a fact points at.
type Ref struct {
	Kind string `json:"kind,omitempty"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Record is one exported line: a fact with its references resolved.
type Record struct {
	ID         string           `json:"id"`
	Subject    Ref              `json:"subject"`
	Predicate  string           `json:"predicate"`
	Kind       string           `json:"kind"`
	Object     *Ref             `json:"object,omitempty"`
	Value      *decimal.Decimal `json:"value,omitempty"`
	Unit       string           `json:"unit,omitempty"`
	ObservedAt time.Time        `json:"observed_at"`
	LogID      string           `json:"log_id,omitempty"`
	Text       string           `json:"text"`
}

// Records resolves every fact in batch, keeping batch order.
func Records(batch core.FactBatch) []Record {
	out := make([]Record, 0, len(batch.Facts))
	for _, f := range batch.Facts {
		p := batch.Predicates[f.PredicateID]
		rec := Record{
			ID:         f.ID,
			Subject:    Ref{ID: f.SubjectID, Name: batch.Assets[f.SubjectID].Name},
			Predicate:  p.Name,
			Kind:       string(p.Kind),
			Value:      f.ValueNumeric,
			Unit:       f.Unit,
			ObservedAt: f.ObservedAt.UTC(),
			Text:       core.FactString(batch, f),
		}
		if f.Object != nil {
			rec.Object = &Ref{Kind: string(f.Object.Kind), ID: f.Object.ID, Name: batch.ObjectName(f)}
		}
		if f.LogID != nil {
			rec.LogID = *f.LogID
		}
		out = append(out, rec)
	}
	return out
}

// WriteJSONL encodes one record per line and returns the number written.
func WriteJSONL(w io.Writer, batch core.FactBatch) (int, error) {
	enc := json.NewEncoder(w)
	records := Records(batch)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return i, fmt.Errorf("encode fact %s: %w", rec.ID, err)
		}
	}
	return len(records), nil
}
