package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"farmgraph/pkg/domain"
)

// FactFilter narrows ListFacts. PredicateName is resolved to an id; a name
// that matches no predicate leaves the predicate unfiltered.
type FactFilter struct {
	PredicateID   string
	PredicateName string
	SubjectID     string
	ObjectID      string
	LogID         string
	Since         *time.Time
	Until         *time.Time
	Limit         int
}

// ListFacts returns facts newest observation first, ties broken by id.
func (s *Service) ListFacts(ctx context.Context, filter FactFilter) ([]Fact, error) {
	var out []Fact
	err := s.view(ctx, func(v TransactionView) error {
		predicateID := filter.PredicateID
		if predicateID == "" && filter.PredicateName != "" {
			if p, ok := v.FindPredicateByName(filter.PredicateName); ok {
				predicateID = p.ID
			}
		}
		for _, f := range v.ListFacts() {
			if predicateID != "" && f.PredicateID != predicateID {
				continue
			}
			if filter.SubjectID != "" && f.SubjectID != filter.SubjectID {
				continue
			}
			if filter.ObjectID != "" && f.ObjectID() != filter.ObjectID {
				continue
			}
			if filter.LogID != "" && (f.LogID == nil || *f.LogID != filter.LogID) {
				continue
			}
			if filter.Since != nil && f.ObservedAt.Before(*filter.Since) {
				continue
			}
			if filter.Until != nil && f.ObservedAt.After(*filter.Until) {
				continue
			}
			out = append(out, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ObservedAt.Equal(out[j].ObservedAt) {
			return out[i].ObservedAt.After(out[j].ObservedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// GetFact returns a fact by id.
func (s *Service) GetFact(ctx context.Context, id string) (Fact, error) {
	var out Fact
	err := s.view(ctx, func(v TransactionView) error {
		f, ok := v.FindFact(id)
		if !ok {
			return domain.ErrNotFound{Entity: EntityFact, ID: id}
		}
		out = f
		return nil
	})
	return out, err
}

// RecordFact appends a fact outside of log completion, for example a manual
// observation.
func (s *Service) RecordFact(ctx context.Context, f Fact) (Fact, error) {
	var created Fact
	err := s.run(ctx, "record_fact", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateFact(f)
			return err
		})
		return created.ID, err
	})
	return created, err
}

// FactBatch resolves the records referenced by facts.
func (s *Service) FactBatch(ctx context.Context, facts []Fact) (FactBatch, error) {
	var batch FactBatch
	err := s.view(ctx, func(v TransactionView) error {
		batch = domain.NewFactBatch(v, facts)
		return nil
	})
	return batch, err
}

// FactString renders a fact as "subject predicate object @ time", or with the
// value and unit in place of the object for measurements.
func FactString(batch FactBatch, f Fact) string {
	subject := batch.Assets[f.SubjectID].Name
	predicate := batch.Predicates[f.PredicateID].Name
	var object string
	if f.Object != nil {
		object = batch.ObjectName(f)
	} else if f.ValueNumeric != nil {
		object = strings.TrimSpace(fmt.Sprintf("%s %s", f.ValueNumeric.String(), f.Unit))
	}
	parts := []string{subject, predicate}
	if object != "" {
		parts = append(parts, object)
	}
	return strings.Join(parts, " ") + " @ " + f.ObservedAt.Format(time.RFC3339)
}

// sortByKey orders items by key, keeping the input order for ties.
func sortByKey[T any](items []T, key func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return key(items[i]) < key(items[j])
	})
}
