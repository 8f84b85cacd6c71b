package core

import (
	"context"

	"farmgraph/pkg/domain"
)

// CreateAsset stores a new asset.
func (s *Service) CreateAsset(ctx context.Context, a Asset) (Asset, Result, error) {
	var created Asset
	var res Result
	err := s.run(ctx, "create_asset", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateAsset(a)
			return err
		})
		return created.ID, err
	})
	return created, res, err
}

// UpdateAsset mutates an existing asset.
func (s *Service) UpdateAsset(ctx context.Context, id string, mutator func(*Asset) error) (Asset, Result, error) {
	var updated Asset
	var res Result
	err := s.run(ctx, "update_asset", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateAsset(id, mutator)
			return err
		})
		return id, err
	})
	return updated, res, err
}

// GetAsset returns an asset by id, archived or not.
func (s *Service) GetAsset(ctx context.Context, id string) (Asset, error) {
	var out Asset
	err := s.view(ctx, func(v TransactionView) error {
		a, ok := v.FindAsset(id)
		if !ok {
			return domain.ErrNotFound{Entity: EntityAsset, ID: id}
		}
		out = a
		return nil
	})
	return out, err
}

// ArchiveAsset soft-deletes an asset. Archiving twice keeps the first
// timestamp.
func (s *Service) ArchiveAsset(ctx context.Context, id string) (Asset, error) {
	var out Asset
	err := s.run(ctx, "archive_asset", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			now := tx.Now()
			var err error
			out, err = tx.UpdateAsset(id, func(a *Asset) error {
				a.Status = domain.AssetStatusArchived
				if a.ArchivedAt == nil {
					a.ArchivedAt = &now
				}
				return nil
			})
			return err
		})
		return id, err
	})
	return out, err
}

// UnarchiveAsset restores an archived asset.
func (s *Service) UnarchiveAsset(ctx context.Context, id string) (Asset, error) {
	var out Asset
	err := s.run(ctx, "unarchive_asset", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			out, err = tx.UpdateAsset(id, func(a *Asset) error {
				a.Status = domain.AssetStatusActive
				a.ArchivedAt = nil
				return nil
			})
			return err
		})
		return id, err
	})
	return out, err
}

// AssetFilter narrows ListAssets. Archived assets are excluded unless
// IncludeArchived is set or Status asks for them explicitly.
type AssetFilter struct {
	AssetType       string
	Status          domain.AssetStatus
	ParentID        string
	RootOnly        bool
	IncludeArchived bool
}

func (f AssetFilter) matches(a Asset) bool {
	switch {
	case f.Status != "" && a.Status != f.Status:
		return false
	case f.Status == "" && !f.IncludeArchived && a.IsArchived():
		return false
	case f.AssetType != "" && a.AssetType != f.AssetType:
		return false
	case f.RootOnly && a.ParentID != nil:
		return false
	case f.ParentID != "" && (a.ParentID == nil || *a.ParentID != f.ParentID):
		return false
	}
	return true
}

// ListAssets returns assets ordered by name.
func (s *Service) ListAssets(ctx context.Context, filter AssetFilter) ([]Asset, error) {
	var out []Asset
	err := s.view(ctx, func(v TransactionView) error {
		for _, a := range v.ListAssets() {
			if filter.matches(a) {
				out = append(out, a)
			}
		}
		return nil
	})
	sortByKey(out, func(a Asset) string { return a.Name })
	return out, err
}

// AssetHierarchy indexes every asset by parent for tree walks.
func (s *Service) AssetHierarchy(ctx context.Context) (*domain.Hierarchy[Asset], error) {
	var h *domain.Hierarchy[Asset]
	err := s.view(ctx, func(v TransactionView) error {
		h = domain.NewHierarchy(v.ListAssets())
		return nil
	})
	return h, err
}

// AssetsInLocationTree returns the assets currently placed in a location or
// any location below it.
func (s *Service) AssetsInLocationTree(ctx context.Context, locationID string) ([]Asset, error) {
	var out []Asset
	err := s.view(ctx, func(v TransactionView) error {
		if _, ok := v.FindLocation(locationID); !ok {
			return domain.ErrNotFound{Entity: EntityLocation, ID: locationID}
		}
		tree := map[string]struct{}{locationID: {}}
		for _, l := range domain.NewHierarchy(v.ListLocations()).Descendants(locationID) {
			tree[l.ID] = struct{}{}
		}
		for _, a := range v.ListAssets() {
			if a.CurrentLocationID == nil {
				continue
			}
			if _, ok := tree[*a.CurrentLocationID]; ok {
				out = append(out, a)
			}
		}
		return nil
	})
	sortByKey(out, func(a Asset) string { return a.Name })
	return out, err
}
