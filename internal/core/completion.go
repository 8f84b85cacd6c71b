package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"farmgraph/pkg/domain"

	"github.com/shopspring/decimal"
)

// Stage names a best-effort step of log completion.
type Stage string

// Completion stages whose failures are reported as warnings.
const (
	StageHarvest      Stage = "harvest"
	StageFactEmission Stage = "fact_emission"
	StageProjection   Stage = "projection"
)

// StageWarning records a completion stage that failed after the log reached done.
type StageWarning struct {
	Stage Stage
	Err   error
}

func (w StageWarning) Error() string {
	return fmt.Sprintf("%s failed: %v", w.Stage, w.Err)
}

// Unwrap exposes the stage error.
func (w StageWarning) Unwrap() error { return w.Err }

// MarshalJSON renders the error as its message.
func (w StageWarning) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Stage Stage  `json:"stage"`
		Error string `json:"error"`
	}{Stage: w.Stage, Error: w.Err.Error()})
}

// MovementResult describes the relocation performed for a movement log.
type MovementResult struct {
	ToLocationID string    `json:"to_location_id"`
	AssetIDs     []string  `json:"asset_ids"`
	MovedAt      time.Time `json:"moved_at"`
}

// CompletionResult is the typed outcome of completing a log. Log always
// carries status done; Warnings lists derivation stages that failed.
type CompletionResult struct {
	Log      Log             `json:"log"`
	Movement *MovementResult `json:"movement,omitempty"`
	Harvest  *Asset          `json:"harvest,omitempty"`
	Facts    []Fact          `json:"facts"`
	Warnings []StageWarning  `json:"warnings,omitempty"`
}

// Degraded reports whether any derivation stage failed.
func (r CompletionResult) Degraded() bool { return len(r.Warnings) > 0 }

// Warning returns the warning recorded for stage, if any.
func (r CompletionResult) Warning(stage Stage) (StageWarning, bool) {
	for _, w := range r.Warnings {
		if w.Stage == stage {
			return w, true
		}
	}
	return StageWarning{}, false
}

func (s *Service) warn(ctx context.Context, result *CompletionResult, stage Stage, err error) {
	result.Warnings = append(result.Warnings, StageWarning{Stage: stage, Err: err})
	s.opts.logger.Warn("log completion stage failed", "log_id", result.Log.ID, "stage", string(stage), "error", err)
	if observer, ok := s.opts.metrics.(CompletionObserver); ok {
		observer.ObserveCompletionWarning(ctx, stage)
	}
}

// executeMovement relocates every moved asset to the log's destination and
// stamps MovedAt once. Logs without a destination are left alone.
func executeMovement(tx Transaction, log Log) (Log, *MovementResult, error) {
	if !log.IsMovement() || log.ToLocationID == nil {
		return log, nil, nil
	}
	to := *log.ToLocationID
	result := &MovementResult{ToLocationID: to}
	for _, link := range linksWithRole(tx.RoleLinks(log.ID), domain.RoleMoved) {
		if _, err := tx.UpdateAsset(link.AssetID, func(a *Asset) error {
			a.CurrentLocationID = &to
			return nil
		}); err != nil {
			return log, nil, fmt.Errorf("move asset %s: %w", link.AssetID, err)
		}
		result.AssetIDs = append(result.AssetIDs, link.AssetID)
	}
	if log.MovedAt == nil {
		now := tx.Now()
		updated, err := tx.UpdateLog(log.ID, func(l *Log) error {
			l.MovedAt = &now
			return nil
		})
		if err != nil {
			return log, nil, err
		}
		log = updated
	}
	result.MovedAt = *log.MovedAt
	return log, result, nil
}

// processHarvest derives or reuses the output asset of a harvest log and adds
// the harvested value to its stock. Each call adds again.
func processHarvest(tx Transaction, log Log) (*Asset, error) {
	q, ok := log.FirstQuantity()
	if !ok {
		return nil, nil
	}
	sources := assetsForRole(tx, log.ID, domain.RoleSource)
	if len(sources) == 0 {
		return nil, nil
	}
	source := sources[0]
	outputType := OutputTypeForUnit(q.Unit)
	location := source.CurrentLocationID
	if log.ToLocationID != nil {
		location = log.ToLocationID
	}
	key := domain.AssetKey{AssetType: string(outputType), ParentID: &source.ID, CurrentLocationID: location}
	output, _, err := tx.FindOrCreateAsset(key, func(a *Asset) {
		a.Name = fmt.Sprintf("%s from %s", domain.Capitalize(string(outputType)), source.Name)
		a.Quantity = decimal.Zero
		a.Status = domain.AssetStatusActive
	})
	if err != nil {
		return nil, fmt.Errorf("find or create output: %w", err)
	}
	output, err = tx.UpdateAsset(output.ID, func(a *Asset) error {
		a.Quantity = a.Quantity.Add(q.Value)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("increment output: %w", err)
	}
	if !hasLink(tx.RoleLinks(log.ID), output.ID, domain.RoleOutput) {
		if _, err := tx.LinkAsset(log.ID, output.ID, domain.RoleOutput); err != nil {
			return nil, fmt.Errorf("link output: %w", err)
		}
	}
	return &output, nil
}

// emitFacts writes the facts dictated by the emission table for log.
func (s *Service) emitFacts(tx Transaction, log Log) ([]Fact, error) {
	rule, ok := emissionRuleFor(log.LogType)
	if !ok {
		return nil, nil
	}
	predicate, ok := tx.FindPredicateByName(rule.predicate)
	if !ok {
		s.opts.logger.Debug("predicate missing, skipping emission", "log_id", log.ID, "predicate", rule.predicate)
		return nil, nil
	}
	shape, ok := rule.shape(log)
	if !ok {
		return nil, nil
	}
	var rangeValue any
	if shape.value != nil {
		rangeValue = *shape.value
	} else if shape.object != nil {
		if loc, found := tx.FindLocation(shape.object.ID); found {
			rangeValue = loc
		}
	}
	if rangeValue != nil && !predicate.ValidateRange(rangeValue) {
		s.opts.logger.Debug("fact value outside predicate range", "log_id", log.ID, "predicate", predicate.Name)
	}

	logID := log.ID
	var facts []Fact
	for _, subject := range assetsForRole(tx, log.ID, rule.role) {
		if !predicate.ValidateDomain(subject) {
			s.opts.logger.Debug("fact subject outside predicate domain", "log_id", log.ID, "predicate", predicate.Name, "subject_id", subject.ID)
		}
		fact, err := tx.CreateFact(Fact{
			SubjectID:    subject.ID,
			PredicateID:  predicate.ID,
			Object:       shape.object,
			ValueNumeric: shape.value,
			Unit:         shape.unit,
			ObservedAt:   log.Timestamp,
			LogID:        &logID,
		})
		if err != nil {
			return nil, fmt.Errorf("emit %s for %s: %w", predicate.Name, subject.ID, err)
		}
		facts = append(facts, fact)
	}
	return facts, nil
}

// finishCompletion runs the stages that follow the status change. Each runs
// in its own transaction and failures become warnings on result.
func (s *Service) finishCompletion(ctx context.Context, result *CompletionResult) {
	logID := result.Log.ID

	if result.Log.IsHarvest() {
		var output *Asset
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			log, ok := tx.FindLog(logID)
			if !ok {
				return domain.ErrNotFound{Entity: EntityLog, ID: logID}
			}
			var err error
			output, err = processHarvest(tx, log)
			return err
		})
		if err != nil {
			s.warn(ctx, result, StageHarvest, err)
		} else {
			result.Harvest = output
		}
	}

	var facts []Fact
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		log, ok := tx.FindLog(logID)
		if !ok {
			return domain.ErrNotFound{Entity: EntityLog, ID: logID}
		}
		var err error
		facts, err = s.emitFacts(tx, log)
		return err
	})
	if err != nil {
		s.warn(ctx, result, StageFactEmission, err)
		return
	}
	result.Facts = facts

	if len(facts) == 0 || len(s.opts.sinks) == 0 {
		return
	}
	batch, err := s.FactBatch(ctx, facts)
	if err != nil {
		s.warn(ctx, result, StageProjection, err)
		return
	}
	for _, sink := range s.opts.sinks {
		if err := sink.Project(ctx, batch); err != nil {
			s.warn(ctx, result, StageProjection, err)
		}
	}
}

func linksWithRole(links []RoleLink, role Role) []RoleLink {
	var out []RoleLink
	for _, l := range links {
		if l.Role == role {
			out = append(out, l)
		}
	}
	return out
}

func hasLink(links []RoleLink, assetID string, role Role) bool {
	for _, l := range links {
		if l.AssetID == assetID && l.Role == role {
			return true
		}
	}
	return false
}

type assetFinder interface {
	RoleLinks(logID string) []RoleLink
	FindAsset(id string) (Asset, bool)
}

// assetsForRole resolves the assets linked under role in link order.
func assetsForRole(src assetFinder, logID string, role Role) []Asset {
	var out []Asset
	for _, link := range linksWithRole(src.RoleLinks(logID), role) {
		if a, ok := src.FindAsset(link.AssetID); ok {
			out = append(out, a)
		}
	}
	return out
}
