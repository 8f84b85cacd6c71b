package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"farmgraph/pkg/domain"
)

// CreateLog stores a log and links the supplied assets under their roles.
// Links are created in role declaration order, and within a role in the order
// given. A log created as done runs the completion pipeline once its links
// exist.
func (s *Service) CreateLog(ctx context.Context, log Log, roleAssetIDs map[Role][]string) (Log, *CompletionResult, error) {
	for role := range roleAssetIDs {
		if !role.Valid() {
			return Log{}, nil, domain.NewValidationError(EntityRoleLink, domain.FieldError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)})
		}
	}
	var created Log
	var movement *MovementResult
	err := s.run(ctx, "create_log", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateLog(log)
			if err != nil {
				return err
			}
			for _, role := range domain.Roles() {
				for _, assetID := range roleAssetIDs[role] {
					if _, err := tx.LinkAsset(created.ID, assetID, role); err != nil {
						return err
					}
				}
			}
			if created.IsDone() {
				created, movement, err = executeMovement(tx, created)
			}
			return err
		})
		return created.ID, err
	})
	if err != nil {
		return Log{}, nil, err
	}
	if !created.IsDone() {
		return created, nil, nil
	}
	result := s.finish(ctx, created, movement)
	return result.Log, result, nil
}

// UpdateLog applies mutator to a log. A pending to done transition executes
// movement in the same transaction and then runs the remaining completion
// stages; other updates return a nil completion result.
func (s *Service) UpdateLog(ctx context.Context, id string, mutator func(*Log) error) (Log, *CompletionResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var updated Log
	var movement *MovementResult
	var completed bool
	err := s.run(ctx, "update_log", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			before, ok := tx.FindLog(id)
			if !ok {
				return domain.ErrNotFound{Entity: EntityLog, ID: id}
			}
			var err error
			updated, err = tx.UpdateLog(id, mutator)
			if err != nil {
				return err
			}
			completed = !before.IsDone() && updated.IsDone()
			if completed {
				updated, movement, err = executeMovement(tx, updated)
			}
			return err
		})
		return id, err
	})
	if err != nil {
		return Log{}, nil, err
	}
	if !completed {
		return updated, nil, nil
	}
	result := s.finish(ctx, updated, movement)
	return result.Log, result, nil
}

// CompleteLog marks a log done and runs the completion pipeline. Calling it on
// a log that is already done runs every derivation stage again, so harvest
// quantities accumulate and facts are emitted anew. Only the status change
// and movement can fail the call; later stages report warnings.
func (s *Service) CompleteLog(ctx context.Context, id string) (CompletionResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var log Log
	var movement *MovementResult
	err := s.run(ctx, "complete_log", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			log, err = tx.UpdateLog(id, func(l *Log) error {
				l.Status = domain.LogStatusDone
				return nil
			})
			if err != nil {
				return err
			}
			log, movement, err = executeMovement(tx, log)
			return err
		})
		return id, err
	})
	if err != nil {
		return CompletionResult{}, err
	}
	result := s.finish(ctx, log, movement)
	return *result, nil
}

func (s *Service) finish(ctx context.Context, log Log, movement *MovementResult) *CompletionResult {
	result := &CompletionResult{Log: log, Movement: movement}
	s.finishCompletion(ctx, result)
	s.opts.logger.Info("log completed",
		"log_id", log.ID,
		"log_type", log.LogType,
		"facts", len(result.Facts),
		"warnings", len(result.Warnings),
	)
	return result
}

// ProcessHarvest runs the harvest stage on its own. Logs that are not harvest
// logs, or that lack a quantity or a source asset, yield nil.
func (s *Service) ProcessHarvest(ctx context.Context, logID string) (*Asset, error) {
	var output *Asset
	err := s.run(ctx, "process_harvest", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			log, ok := tx.FindLog(logID)
			if !ok {
				return domain.ErrNotFound{Entity: EntityLog, ID: logID}
			}
			if !log.IsHarvest() {
				return nil
			}
			var err error
			output, err = processHarvest(tx, log)
			return err
		})
		return logID, err
	})
	return output, err
}

// EmitFacts runs the fact emission stage on its own.
func (s *Service) EmitFacts(ctx context.Context, logID string) ([]Fact, error) {
	var facts []Fact
	err := s.run(ctx, "emit_facts", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			log, ok := tx.FindLog(logID)
			if !ok {
				return domain.ErrNotFound{Entity: EntityLog, ID: logID}
			}
			var err error
			facts, err = s.emitFacts(tx, log)
			return err
		})
		return logID, err
	})
	return facts, err
}

// GetLog returns a log by id.
func (s *Service) GetLog(ctx context.Context, id string) (Log, error) {
	var out Log
	err := s.view(ctx, func(v TransactionView) error {
		l, ok := v.FindLog(id)
		if !ok {
			return domain.ErrNotFound{Entity: EntityLog, ID: id}
		}
		out = l
		return nil
	})
	return out, err
}

// LogFilter narrows ListLogs. Zero fields match everything.
type LogFilter struct {
	LogType string
	Status  domain.LogStatus
}

// ListLogs returns logs newest first.
func (s *Service) ListLogs(ctx context.Context, filter LogFilter) ([]Log, error) {
	var out []Log
	err := s.view(ctx, func(v TransactionView) error {
		for _, l := range v.ListLogs() {
			if filter.LogType != "" && l.LogType != filter.LogType {
				continue
			}
			if filter.Status != "" && l.Status != filter.Status {
				continue
			}
			out = append(out, l)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

// DeleteLog removes a log and its role links. Facts it produced keep existing
// without provenance.
func (s *Service) DeleteLog(ctx context.Context, id string) (Result, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var res Result
	err := s.run(ctx, "delete_log", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteLog(id)
		})
		return id, err
	})
	return res, err
}

// LinkAsset adds a role link to an existing log.
func (s *Service) LinkAsset(ctx context.Context, logID, assetID string, role Role) (RoleLink, error) {
	var link RoleLink
	err := s.run(ctx, "link_asset", func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			link, err = tx.LinkAsset(logID, assetID, role)
			return err
		})
		return link.ID, err
	})
	return link, err
}

// AssetsByRole returns the assets linked to a log under role in link order.
func (s *Service) AssetsByRole(ctx context.Context, logID string, role Role) ([]Asset, error) {
	if !role.Valid() {
		return nil, domain.NewValidationError(EntityRoleLink, domain.FieldError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)})
	}
	var out []Asset
	err := s.view(ctx, func(v TransactionView) error {
		if _, ok := v.FindLog(logID); !ok {
			return domain.ErrNotFound{Entity: EntityLog, ID: logID}
		}
		out = assetsForRole(v, logID, role)
		return nil
	})
	return out, err
}

// SourceAssets returns the assets a log draws from.
func (s *Service) SourceAssets(ctx context.Context, logID string) ([]Asset, error) {
	return s.AssetsByRole(ctx, logID, domain.RoleSource)
}

// MovedAssets returns the assets a movement log relocates.
func (s *Service) MovedAssets(ctx context.Context, logID string) ([]Asset, error) {
	return s.AssetsByRole(ctx, logID, domain.RoleMoved)
}

// OutputAssets returns the assets a log produced.
func (s *Service) OutputAssets(ctx context.Context, logID string) ([]Asset, error) {
	return s.AssetsByRole(ctx, logID, domain.RoleOutput)
}

// SubjectAssets returns the assets a log observes.
func (s *Service) SubjectAssets(ctx context.Context, logID string) ([]Asset, error) {
	return s.AssetsByRole(ctx, logID, domain.RoleSubject)
}

// IsRuleViolation reports whether err was raised by a blocking rule.
func IsRuleViolation(err error) bool {
	var rv RuleViolationError
	return errors.As(err, &rv)
}
