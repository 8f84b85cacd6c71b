package memory

import "farmgraph/pkg/domain"

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func assetBase(a Asset) domain.Base         { return a.Base }
func locationBase(l Location) domain.Base   { return l.Base }
func logBase(l Log) domain.Base             { return l.Base }
func predicateBase(p Predicate) domain.Base { return p.Base }
func factBase(f Fact) domain.Base           { return f.Base }

func (v transactionView) ListAssets() []Asset {
	return sortedValues(v.state.assets, assetBase, cloneAsset)
}

func (v transactionView) ListLocations() []Location {
	return sortedValues(v.state.locations, locationBase, cloneLocation)
}

func (v transactionView) ListLogs() []Log {
	return sortedValues(v.state.logs, logBase, cloneLog)
}

func (v transactionView) ListPredicates() []Predicate {
	return sortedValues(v.state.predicates, predicateBase, clonePredicate)
}

func (v transactionView) ListFacts() []Fact {
	return sortedValues(v.state.facts, factBase, cloneFact)
}

func (v transactionView) FindAsset(id string) (Asset, bool) {
	return findAsset(v.state, id)
}

func (v transactionView) FindLocation(id string) (Location, bool) {
	return findLocation(v.state, id)
}

func (v transactionView) FindLog(id string) (Log, bool) {
	return findLog(v.state, id)
}

func (v transactionView) FindPredicate(id string) (Predicate, bool) {
	return findPredicate(v.state, id)
}

func (v transactionView) FindPredicateByName(name string) (Predicate, bool) {
	return findPredicateByName(v.state, name)
}

func (v transactionView) FindFact(id string) (Fact, bool) {
	f, ok := v.state.facts[id]
	if !ok {
		return Fact{}, false
	}
	return cloneFact(f), true
}

func (v transactionView) RoleLinks(logID string) []RoleLink {
	return roleLinks(v.state, logID)
}

func findAsset(state *memoryState, id string) (Asset, bool) {
	a, ok := state.assets[id]
	if !ok {
		return Asset{}, false
	}
	return cloneAsset(a), true
}

func findLocation(state *memoryState, id string) (Location, bool) {
	l, ok := state.locations[id]
	if !ok {
		return Location{}, false
	}
	return cloneLocation(l), true
}

func findLog(state *memoryState, id string) (Log, bool) {
	l, ok := state.logs[id]
	if !ok {
		return Log{}, false
	}
	return cloneLog(l), true
}

func findPredicate(state *memoryState, id string) (Predicate, bool) {
	p, ok := state.predicates[id]
	if !ok {
		return Predicate{}, false
	}
	return clonePredicate(p), true
}

func findPredicateByName(state *memoryState, name string) (Predicate, bool) {
	for _, p := range state.predicates {
		if p.Name == name {
			return clonePredicate(p), true
		}
	}
	return Predicate{}, false
}

func roleLinks(state *memoryState, logID string) []RoleLink {
	var out []RoleLink
	for _, link := range state.links {
		if link.LogID == logID {
			out = append(out, link)
		}
	}
	return out
}
