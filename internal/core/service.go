package core

import (
	"context"
	"fmt"
	"time"

	"farmgraph/internal/infra/persistence/memory"
)

// Service exposes the transactional farm operations: log lifecycle and
// completion, asset and location management, and the fact vocabulary.
type Service struct {
	store PersistentStore
	opts  serviceOptions
	vocab Vocabulary
	locks *keyedMutex
}

type nowSetter interface {
	SetNowFunc(func() time.Time)
}

// NewService constructs a service backed by the supplied store. The predicate
// vocabulary is checked against the completion dispatch tables and a
// mismatch is returned as an error.
func NewService(store PersistentStore, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("core: store is required")
	}
	options := defaultServiceOptions()
	for _, opt := range opts {
		opt(&options)
	}
	vocab := DefaultVocabulary()
	if options.vocabulary != nil {
		vocab = *options.vocabulary
	}
	if err := ValidateDispatch(vocab.Predicates); err != nil {
		return nil, fmt.Errorf("validate vocabulary: %w", err)
	}
	if setter, ok := store.(nowSetter); ok {
		setter.SetNowFunc(options.clock.Now)
	}
	return &Service{
		store: store,
		opts:  options,
		vocab: vocab,
		locks: newKeyedMutex(),
	}, nil
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine selects NewDefaultRulesEngine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) (*Service, error) {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Vocabulary returns the predicate vocabulary the service seeds from.
func (s *Service) Vocabulary() Vocabulary {
	return s.vocab
}

func (s *Service) now() time.Time {
	return s.opts.clock.Now()
}

// run wraps an operation with tracing, metrics, audit and error logging. fn
// returns the id of the entity it acted on.
func (s *Service) run(ctx context.Context, operation string, fn func(context.Context) (string, error)) error {
	started := time.Now()
	ctx, span := s.opts.tracer.Start(ctx, operation)
	entityID, err := fn(ctx)
	span.End(err)
	s.opts.metrics.Observe(ctx, operation, err == nil, time.Since(started))

	entry := AuditEntry{Operation: operation, EntityID: entityID, Status: AuditStatusSuccess, At: s.now()}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Err = err.Error()
		s.opts.logger.Error("operation failed", "operation", operation, "entity_id", entityID, "error", err)
	} else {
		s.opts.logger.Debug("operation completed", "operation", operation, "entity_id", entityID)
	}
	s.opts.audit.Record(ctx, entry)
	return err
}

func (s *Service) view(ctx context.Context, fn func(TransactionView) error) error {
	return s.store.View(ctx, fn)
}
