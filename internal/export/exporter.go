package export

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"farmgraph/internal/blob"
	"farmgraph/internal/core"
)

const (
	// KeyPrefix is where exports are written in the blob store.
	KeyPrefix   = "exports/"
	contentType = "application/x-ndjson"
)

// Exporter writes fact batches to a blob store, one object per batch. It
// also satisfies core.FactSink so completions can be exported as they
// happen.
type Exporter struct {
	store blob.Store
	now   func() time.Time
}

var _ core.FactSink = (*Exporter)(nil)

// Option configures an Exporter.
type Option func(*Exporter)

// WithClock sets the clock used to stamp object keys.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// New returns an Exporter writing to store.
func New(store blob.Store, opts ...Option) *Exporter {
	e := &Exporter{store: store, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Key builds the object key for an export started at ts.
func Key(ts time.Time) string {
	return fmt.Sprintf("%sfacts-%s-%s.jsonl", KeyPrefix, ts.UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
}

// Export writes batch as a new JSON lines object. Empty batches are written
// too so a run always leaves a trace.
func (e *Exporter) Export(ctx context.Context, batch core.FactBatch) (blob.Info, error) {
	var buf bytes.Buffer
	n, err := WriteJSONL(&buf, batch)
	if err != nil {
		return blob.Info{}, err
	}
	info, err := e.store.Put(ctx, Key(e.now()), &buf, blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"facts": strconv.Itoa(n)},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("write export: %w", err)
	}
	return info, nil
}

// Project exports non-empty batches.
func (e *Exporter) Project(ctx context.Context, batch core.FactBatch) error {
	if len(batch.Facts) == 0 {
		return nil
	}
	_, err := e.Export(ctx, batch)
	return err
}

// List returns previous exports, oldest first.
func (e *Exporter) List(ctx context.Context) ([]blob.Info, error) {
	return e.store.List(ctx, KeyPrefix)
}
