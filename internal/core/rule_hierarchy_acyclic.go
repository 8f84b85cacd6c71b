package core

import (
	"context"
	"fmt"

	"farmgraph/pkg/domain"
)

// HierarchyAcyclicRule blocks parent assignments that would make an asset or
// location its own ancestor.
func HierarchyAcyclicRule() domain.Rule {
	return hierarchyAcyclicRule{}
}

type hierarchyAcyclicRule struct{}

func (hierarchyAcyclicRule) Name() string { return "hierarchy_acyclic" }

func (hierarchyAcyclicRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	var assets *domain.Hierarchy[domain.Asset]
	var locations *domain.Hierarchy[domain.Location]
	for _, change := range changes {
		switch change.Entity {
		case domain.EntityAsset:
			a, ok := domain.DecodePayload[domain.Asset](change.After)
			if !ok || a.ParentID == nil {
				continue
			}
			if assets == nil {
				assets = domain.NewHierarchy(view.ListAssets())
			}
			if assets.HasCycle(a.ID) {
				res.Violations = append(res.Violations, hierarchyViolation(domain.EntityAsset, a.ID, *a.ParentID))
			}
		case domain.EntityLocation:
			l, ok := domain.DecodePayload[domain.Location](change.After)
			if !ok || l.ParentID == nil {
				continue
			}
			if locations == nil {
				locations = domain.NewHierarchy(view.ListLocations())
			}
			if locations.HasCycle(l.ID) {
				res.Violations = append(res.Violations, hierarchyViolation(domain.EntityLocation, l.ID, *l.ParentID))
			}
		}
	}
	return res, nil
}

func hierarchyViolation(entity domain.EntityType, id, parentID string) domain.Violation {
	return domain.Violation{
		Rule:     "hierarchy_acyclic",
		Severity: domain.SeverityBlock,
		Message:  fmt.Sprintf("%s %s cannot take %s as parent: the hierarchy would contain a cycle", entity, id, parentID),
		Entity:   entity,
		EntityID: id,
	}
}
