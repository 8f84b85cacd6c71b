package core

import (
	"context"

	"farmgraph/pkg/domain"
)

// CreateLocation stores a new location.
func (s *Service) CreateLocation(ctx context.Context, l Location) (Location, Result, error) {
	var created Location
	var res Result
	err := s.run(ctx, "create_location", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateLocation(l)
			return err
		})
		return created.ID, err
	})
	return created, res, err
}

// UpdateLocation mutates an existing location. Reparenting that would make a
// location its own ancestor is blocked by the hierarchy rule.
func (s *Service) UpdateLocation(ctx context.Context, id string, mutator func(*Location) error) (Location, Result, error) {
	var updated Location
	var res Result
	err := s.run(ctx, "update_location", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateLocation(id, mutator)
			return err
		})
		return id, err
	})
	return updated, res, err
}

// GetLocation returns a location by id.
func (s *Service) GetLocation(ctx context.Context, id string) (Location, error) {
	var out Location
	err := s.view(ctx, func(v TransactionView) error {
		l, ok := v.FindLocation(id)
		if !ok {
			return domain.ErrNotFound{Entity: EntityLocation, ID: id}
		}
		out = l
		return nil
	})
	return out, err
}

// ArchiveLocation stamps ArchivedAt, keeping an existing stamp.
func (s *Service) ArchiveLocation(ctx context.Context, id string) (Location, error) {
	var out Location
	err := s.run(ctx, "archive_location", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			now := tx.Now()
			var err error
			out, err = tx.UpdateLocation(id, func(l *Location) error {
				if l.ArchivedAt == nil {
					l.ArchivedAt = &now
				}
				return nil
			})
			return err
		})
		return id, err
	})
	return out, err
}

// UnarchiveLocation clears ArchivedAt.
func (s *Service) UnarchiveLocation(ctx context.Context, id string) (Location, error) {
	var out Location
	err := s.run(ctx, "unarchive_location", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			out, err = tx.UpdateLocation(id, func(l *Location) error {
				l.ArchivedAt = nil
				return nil
			})
			return err
		})
		return id, err
	})
	return out, err
}

// LocationFilter narrows ListLocations. Archived locations are excluded
// unless IncludeArchived is set.
type LocationFilter struct {
	LocationType    domain.LocationType
	ParentID        string
	RootOnly        bool
	IncludeArchived bool
}

func (f LocationFilter) matches(l Location) bool {
	switch {
	case !f.IncludeArchived && l.IsArchived():
		return false
	case f.LocationType != "" && l.LocationType != f.LocationType:
		return false
	case f.RootOnly && l.ParentID != nil:
		return false
	case f.ParentID != "" && (l.ParentID == nil || *l.ParentID != f.ParentID):
		return false
	}
	return true
}

// ListLocations returns locations ordered by name.
func (s *Service) ListLocations(ctx context.Context, filter LocationFilter) ([]Location, error) {
	var out []Location
	err := s.view(ctx, func(v TransactionView) error {
		for _, l := range v.ListLocations() {
			if filter.matches(l) {
				out = append(out, l)
			}
		}
		return nil
	})
	sortByKey(out, func(l Location) string { return l.Name })
	return out, err
}

// LocationHierarchy indexes every location by parent for tree walks.
func (s *Service) LocationHierarchy(ctx context.Context) (*domain.Hierarchy[Location], error) {
	var h *domain.Hierarchy[Location]
	err := s.view(ctx, func(v TransactionView) error {
		h = domain.NewHierarchy(v.ListLocations())
		return nil
	})
	return h, err
}
