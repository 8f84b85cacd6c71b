package domain

// FactBatch bundles facts with the records they reference so consumers
// outside a transaction (exporters, graph projections) can render them
// without further lookups.
type FactBatch struct {
	Facts      []Fact
	Predicates map[string]Predicate
	Assets     map[string]Asset
	Locations  map[string]Location
}

// NewFactBatch resolves every predicate, subject and object referenced by
// facts against view. Dangling references are left out of the maps.
func NewFactBatch(view TransactionView, facts []Fact) FactBatch {
	batch := FactBatch{
		Facts:      facts,
		Predicates: make(map[string]Predicate),
		Assets:     make(map[string]Asset),
		Locations:  make(map[string]Location),
	}
	for _, f := range facts {
		if _, ok := batch.Predicates[f.PredicateID]; !ok {
			if p, found := view.FindPredicate(f.PredicateID); found {
				batch.Predicates[p.ID] = p
			}
		}
		batch.addAsset(view, f.SubjectID)
		if f.Object == nil {
			continue
		}
		switch f.Object.Kind {
		case ObjectAsset:
			batch.addAsset(view, f.Object.ID)
		case ObjectLocation:
			if _, ok := batch.Locations[f.Object.ID]; !ok {
				if l, found := view.FindLocation(f.Object.ID); found {
					batch.Locations[l.ID] = l
				}
			}
		}
	}
	return batch
}

func (b FactBatch) addAsset(view TransactionView, id string) {
	if _, ok := b.Assets[id]; ok {
		return
	}
	if a, found := view.FindAsset(id); found {
		b.Assets[a.ID] = a
	}
}

// ObjectName returns the display name of a fact's object, if resolvable.
func (b FactBatch) ObjectName(f Fact) string {
	if f.Object == nil {
		return ""
	}
	switch f.Object.Kind {
	case ObjectAsset:
		return b.Assets[f.Object.ID].Name
	case ObjectLocation:
		return b.Locations[f.Object.ID].Name
	}
	return ""
}
