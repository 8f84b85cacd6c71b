package memory

import (
	"fmt"
	"time"

	"farmgraph/pkg/domain"
)

// transaction represents a mutation set applied to a cloned store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(entity domain.EntityType, action domain.Action, before, after any) {
	change := Change{Entity: entity, Action: action}
	if before != nil {
		change.Before = domain.PayloadOf(before)
	}
	if after != nil {
		change.After = domain.PayloadOf(after)
	}
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// Now returns the timestamp shared by every write in the transaction.
func (tx *transaction) Now() time.Time { return tx.now }

func (tx *transaction) requireLocation(field string, id *string) error {
	if id == nil {
		return nil
	}
	if _, ok := tx.state.locations[*id]; !ok {
		return fmt.Errorf("%s: %w", field, domain.ErrNotFound{Entity: domain.EntityLocation, ID: *id})
	}
	return nil
}

func (tx *transaction) requireAsset(field string, id *string) error {
	if id == nil {
		return nil
	}
	if _, ok := tx.state.assets[*id]; !ok {
		return fmt.Errorf("%s: %w", field, domain.ErrNotFound{Entity: domain.EntityAsset, ID: *id})
	}
	return nil
}

// Assets ---------------------------------------------------------------------

// CreateAsset stores a new asset within the transaction.
func (tx *transaction) CreateAsset(a Asset) (Asset, error) {
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.assets[a.ID]; exists {
		return Asset{}, fmt.Errorf("asset %q already exists", a.ID)
	}
	if a.Status == "" {
		a.Status = domain.AssetStatusActive
	}
	if err := a.Validate(); err != nil {
		return Asset{}, err
	}
	if err := tx.requireLocation("current_location_id", a.CurrentLocationID); err != nil {
		return Asset{}, err
	}
	if err := tx.requireAsset("parent_id", a.ParentID); err != nil {
		return Asset{}, err
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.assets[a.ID] = cloneAsset(a)
	tx.recordChange(domain.EntityAsset, domain.ActionCreate, nil, cloneAsset(a))
	return cloneAsset(a), nil
}

// UpdateAsset mutates an asset using the provided mutator function.
func (tx *transaction) UpdateAsset(id string, mutator func(*Asset) error) (Asset, error) {
	current, ok := tx.state.assets[id]
	if !ok {
		return Asset{}, domain.ErrNotFound{Entity: domain.EntityAsset, ID: id}
	}
	before := cloneAsset(current)
	if err := mutator(&current); err != nil {
		return Asset{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	if err := current.Validate(); err != nil {
		return Asset{}, err
	}
	if err := tx.requireLocation("current_location_id", current.CurrentLocationID); err != nil {
		return Asset{}, err
	}
	if err := tx.requireAsset("parent_id", current.ParentID); err != nil {
		return Asset{}, err
	}
	current.UpdatedAt = tx.now
	tx.state.assets[id] = cloneAsset(current)
	tx.recordChange(domain.EntityAsset, domain.ActionUpdate, before, cloneAsset(current))
	return cloneAsset(current), nil
}

// FindOrCreateAsset returns the oldest asset matching key, creating one when
// none exists.
func (tx *transaction) FindOrCreateAsset(key domain.AssetKey, init func(*Asset)) (Asset, bool, error) {
	for _, a := range sortedValues(tx.state.assets, assetBase, cloneAsset) {
		if key.Matches(a) {
			return a, false, nil
		}
	}
	a := Asset{
		AssetType:         key.AssetType,
		ParentID:          cloneStringPtr(key.ParentID),
		CurrentLocationID: cloneStringPtr(key.CurrentLocationID),
	}
	if init != nil {
		init(&a)
	}
	a.AssetType = key.AssetType
	a.ParentID = cloneStringPtr(key.ParentID)
	a.CurrentLocationID = cloneStringPtr(key.CurrentLocationID)
	created, err := tx.CreateAsset(a)
	if err != nil {
		return Asset{}, false, err
	}
	return created, true, nil
}

// FindAsset exposes asset lookup within the transaction scope.
func (tx *transaction) FindAsset(id string) (Asset, bool) {
	return findAsset(&tx.state, id)
}

// Locations ------------------------------------------------------------------

// CreateLocation stores a new location.
func (tx *transaction) CreateLocation(l Location) (Location, error) {
	if l.ID == "" {
		l.ID = tx.store.newID()
	}
	if _, exists := tx.state.locations[l.ID]; exists {
		return Location{}, fmt.Errorf("location %q already exists", l.ID)
	}
	if err := l.Validate(); err != nil {
		return Location{}, err
	}
	if err := tx.requireLocation("parent_id", l.ParentID); err != nil {
		return Location{}, err
	}
	l.CreatedAt = tx.now
	l.UpdatedAt = tx.now
	tx.state.locations[l.ID] = cloneLocation(l)
	tx.recordChange(domain.EntityLocation, domain.ActionCreate, nil, cloneLocation(l))
	return cloneLocation(l), nil
}

// UpdateLocation mutates a location using the provided mutator function.
func (tx *transaction) UpdateLocation(id string, mutator func(*Location) error) (Location, error) {
	current, ok := tx.state.locations[id]
	if !ok {
		return Location{}, domain.ErrNotFound{Entity: domain.EntityLocation, ID: id}
	}
	before := cloneLocation(current)
	if err := mutator(&current); err != nil {
		return Location{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	if err := current.Validate(); err != nil {
		return Location{}, err
	}
	if err := tx.requireLocation("parent_id", current.ParentID); err != nil {
		return Location{}, err
	}
	current.UpdatedAt = tx.now
	tx.state.locations[id] = cloneLocation(current)
	tx.recordChange(domain.EntityLocation, domain.ActionUpdate, before, cloneLocation(current))
	return cloneLocation(current), nil
}

// FindLocation exposes location lookup within the transaction scope.
func (tx *transaction) FindLocation(id string) (Location, bool) {
	return findLocation(&tx.state, id)
}

// Logs -----------------------------------------------------------------------

// CreateLog stores a new log, defaulting status to pending and timestamp to
// the transaction time.
func (tx *transaction) CreateLog(l Log) (Log, error) {
	if l.ID == "" {
		l.ID = tx.store.newID()
	}
	if _, exists := tx.state.logs[l.ID]; exists {
		return Log{}, fmt.Errorf("log %q already exists", l.ID)
	}
	if l.Status == "" {
		l.Status = domain.LogStatusPending
	}
	if l.Timestamp.IsZero() {
		l.Timestamp = tx.now
	}
	if err := l.Validate(); err != nil {
		return Log{}, err
	}
	if err := tx.requireLocation("from_location_id", l.FromLocationID); err != nil {
		return Log{}, err
	}
	if err := tx.requireLocation("to_location_id", l.ToLocationID); err != nil {
		return Log{}, err
	}
	l.CreatedAt = tx.now
	l.UpdatedAt = tx.now
	tx.state.logs[l.ID] = cloneLog(l)
	tx.recordChange(domain.EntityLog, domain.ActionCreate, nil, cloneLog(l))
	return cloneLog(l), nil
}

// UpdateLog mutates a log using the provided mutator function.
func (tx *transaction) UpdateLog(id string, mutator func(*Log) error) (Log, error) {
	current, ok := tx.state.logs[id]
	if !ok {
		return Log{}, domain.ErrNotFound{Entity: domain.EntityLog, ID: id}
	}
	before := cloneLog(current)
	if err := mutator(&current); err != nil {
		return Log{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	if err := current.Validate(); err != nil {
		return Log{}, err
	}
	if err := tx.requireLocation("from_location_id", current.FromLocationID); err != nil {
		return Log{}, err
	}
	if err := tx.requireLocation("to_location_id", current.ToLocationID); err != nil {
		return Log{}, err
	}
	current.UpdatedAt = tx.now
	tx.state.logs[id] = cloneLog(current)
	tx.recordChange(domain.EntityLog, domain.ActionUpdate, before, cloneLog(current))
	return cloneLog(current), nil
}

// DeleteLog removes a log together with its role links. Facts derived from the
// log survive with their provenance cleared.
func (tx *transaction) DeleteLog(id string) error {
	current, ok := tx.state.logs[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityLog, ID: id}
	}
	kept := tx.state.links[:0:0]
	for _, link := range tx.state.links {
		if link.LogID == id {
			tx.recordChange(domain.EntityRoleLink, domain.ActionDelete, link, nil)
			continue
		}
		kept = append(kept, link)
	}
	tx.state.links = kept
	for fid, fact := range tx.state.facts {
		if fact.LogID != nil && *fact.LogID == id {
			fact.LogID = nil
			tx.state.facts[fid] = fact
		}
	}
	delete(tx.state.logs, id)
	tx.recordChange(domain.EntityLog, domain.ActionDelete, cloneLog(current), nil)
	return nil
}

// FindLog exposes log lookup within the transaction scope.
func (tx *transaction) FindLog(id string) (Log, bool) {
	return findLog(&tx.state, id)
}

// Role links -----------------------------------------------------------------

// LinkAsset associates an asset with a log under role.
func (tx *transaction) LinkAsset(logID, assetID string, role domain.Role) (RoleLink, error) {
	link := RoleLink{LogID: logID, AssetID: assetID, Role: role}
	if err := link.Validate(); err != nil {
		return RoleLink{}, err
	}
	if _, ok := tx.state.logs[logID]; !ok {
		return RoleLink{}, domain.ErrNotFound{Entity: domain.EntityLog, ID: logID}
	}
	if _, ok := tx.state.assets[assetID]; !ok {
		return RoleLink{}, domain.ErrNotFound{Entity: domain.EntityAsset, ID: assetID}
	}
	link.ID = tx.store.newID()
	link.CreatedAt = tx.now
	link.UpdatedAt = tx.now
	tx.state.links = append(tx.state.links, link)
	tx.recordChange(domain.EntityRoleLink, domain.ActionCreate, nil, link)
	return link, nil
}

// RoleLinks lists a log's links in creation order.
func (tx *transaction) RoleLinks(logID string) []RoleLink {
	return roleLinks(&tx.state, logID)
}

// Predicates -----------------------------------------------------------------

// CreatePredicate stores a vocabulary entry with a unique name.
func (tx *transaction) CreatePredicate(p Predicate) (Predicate, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.predicates[p.ID]; exists {
		return Predicate{}, fmt.Errorf("predicate %q already exists", p.ID)
	}
	if err := p.Validate(); err != nil {
		return Predicate{}, err
	}
	if _, taken := findPredicateByName(&tx.state, p.Name); taken {
		return Predicate{}, domain.NewValidationError(domain.EntityPredicate, domain.FieldError{Field: "name", Message: "has already been taken"})
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.predicates[p.ID] = clonePredicate(p)
	tx.recordChange(domain.EntityPredicate, domain.ActionCreate, nil, clonePredicate(p))
	return clonePredicate(p), nil
}

// DeletePredicate removes a predicate that no fact references.
func (tx *transaction) DeletePredicate(id string) error {
	current, ok := tx.state.predicates[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityPredicate, ID: id}
	}
	count := 0
	for _, f := range tx.state.facts {
		if f.PredicateID == id {
			count++
		}
	}
	if count > 0 {
		return domain.ReferentialIntegrityError{Entity: domain.EntityPredicate, ID: id, Dependent: domain.EntityFact, Count: count}
	}
	delete(tx.state.predicates, id)
	tx.recordChange(domain.EntityPredicate, domain.ActionDelete, clonePredicate(current), nil)
	return nil
}

// FindPredicate exposes predicate lookup within the transaction scope.
func (tx *transaction) FindPredicate(id string) (Predicate, bool) {
	return findPredicate(&tx.state, id)
}

// FindPredicateByName resolves a predicate by its unique name.
func (tx *transaction) FindPredicateByName(name string) (Predicate, bool) {
	return findPredicateByName(&tx.state, name)
}

// Facts ----------------------------------------------------------------------

// CreateFact appends a fact after checking its references and kind consistency.
func (tx *transaction) CreateFact(f Fact) (Fact, error) {
	if f.ID == "" {
		f.ID = tx.store.newID()
	}
	if _, exists := tx.state.facts[f.ID]; exists {
		return Fact{}, fmt.Errorf("fact %q already exists", f.ID)
	}
	predicate, ok := tx.state.predicates[f.PredicateID]
	if !ok {
		return Fact{}, domain.ErrNotFound{Entity: domain.EntityPredicate, ID: f.PredicateID}
	}
	if err := domain.ValidateFact(f, predicate); err != nil {
		return Fact{}, err
	}
	if err := tx.requireAsset("subject_id", &f.SubjectID); err != nil {
		return Fact{}, err
	}
	if f.LogID != nil {
		if _, ok := tx.state.logs[*f.LogID]; !ok {
			return Fact{}, fmt.Errorf("log_id: %w", domain.ErrNotFound{Entity: domain.EntityLog, ID: *f.LogID})
		}
	}
	if f.Object != nil {
		var err error
		switch f.Object.Kind {
		case domain.ObjectAsset:
			err = tx.requireAsset("object", &f.Object.ID)
		case domain.ObjectLocation:
			err = tx.requireLocation("object", &f.Object.ID)
		}
		if err != nil {
			return Fact{}, err
		}
	}
	f.CreatedAt = tx.now
	f.UpdatedAt = tx.now
	tx.state.facts[f.ID] = cloneFact(f)
	tx.recordChange(domain.EntityFact, domain.ActionCreate, nil, cloneFact(f))
	return cloneFact(f), nil
}
