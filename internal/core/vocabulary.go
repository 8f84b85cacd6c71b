package core

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"farmgraph/pkg/domain"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var embeddedVocabulary []byte

// Vocabulary is the reference set of predicates seeded into the store.
type Vocabulary struct {
	Predicates []Predicate
}

type vocabularyDocument struct {
	Predicates []struct {
		Name        string `yaml:"name"`
		Kind        string `yaml:"kind"`
		Unit        string `yaml:"unit"`
		Description string `yaml:"description"`
		Constraints struct {
			Domain string   `yaml:"domain"`
			Range  string   `yaml:"range"`
			Min    *float64 `yaml:"min"`
			Max    *float64 `yaml:"max"`
		} `yaml:"constraints"`
	} `yaml:"predicates"`
}

// LoadVocabulary parses a YAML vocabulary document and validates every entry.
func LoadVocabulary(data []byte) (Vocabulary, error) {
	var doc vocabularyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Vocabulary{}, fmt.Errorf("decode vocabulary: %w", err)
	}
	seen := make(map[string]struct{}, len(doc.Predicates))
	out := Vocabulary{Predicates: make([]Predicate, 0, len(doc.Predicates))}
	for _, entry := range doc.Predicates {
		p := Predicate{
			Name:        strings.TrimSpace(entry.Name),
			Kind:        domain.PredicateKind(entry.Kind),
			Unit:        entry.Unit,
			Description: entry.Description,
			Constraints: domain.PredicateConstraints{
				Domain: entry.Constraints.Domain,
				Range:  entry.Constraints.Range,
				Min:    floatToDecimal(entry.Constraints.Min),
				Max:    floatToDecimal(entry.Constraints.Max),
			},
		}
		if err := p.Validate(); err != nil {
			return Vocabulary{}, fmt.Errorf("vocabulary entry %q: %w", entry.Name, err)
		}
		if _, dup := seen[p.Name]; dup {
			return Vocabulary{}, fmt.Errorf("vocabulary entry %q is declared twice", p.Name)
		}
		seen[p.Name] = struct{}{}
		out.Predicates = append(out.Predicates, p)
	}
	return out, nil
}

func floatToDecimal(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}

// DefaultVocabulary returns the embedded predicate vocabulary.
func DefaultVocabulary() Vocabulary {
	v, err := LoadVocabulary(embeddedVocabulary)
	if err != nil {
		panic(fmt.Sprintf("embedded vocabulary: %v", err))
	}
	return v
}

// SeedReport lists the predicates touched by SeedVocabulary.
type SeedReport struct {
	Created  []string `json:"created"`
	Existing []string `json:"existing"`
}

// SeedVocabulary creates every vocabulary predicate that is not yet stored.
// Existing predicates are left untouched.
func (s *Service) SeedVocabulary(ctx context.Context) (SeedReport, error) {
	var report SeedReport
	err := s.run(ctx, "seed_vocabulary", func(ctx context.Context) (string, error) {
		report = SeedReport{}
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			for _, p := range s.vocab.Predicates {
				if _, ok := tx.FindPredicateByName(p.Name); ok {
					report.Existing = append(report.Existing, p.Name)
					continue
				}
				if _, err := tx.CreatePredicate(p); err != nil {
					return err
				}
				report.Created = append(report.Created, p.Name)
			}
			return nil
		})
		return "", err
	})
	if err == nil {
		s.opts.logger.Info("vocabulary seeded", "created", len(report.Created), "existing", len(report.Existing))
	}
	return report, err
}

// PredicateFilter narrows ListPredicates. Name matches case-insensitively as
// a substring.
type PredicateFilter struct {
	Kind domain.PredicateKind
	Name string
}

// ListPredicates returns stored predicates ordered by name.
func (s *Service) ListPredicates(ctx context.Context, filter PredicateFilter) ([]Predicate, error) {
	var out []Predicate
	err := s.view(ctx, func(v TransactionView) error {
		needle := strings.ToLower(strings.TrimSpace(filter.Name))
		for _, p := range v.ListPredicates() {
			if filter.Kind != "" && p.Kind != filter.Kind {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	sortByKey(out, func(p Predicate) string { return p.Name })
	return out, err
}

// PredicateByName looks up a stored predicate.
func (s *Service) PredicateByName(ctx context.Context, name string) (Predicate, error) {
	var out Predicate
	err := s.view(ctx, func(v TransactionView) error {
		p, ok := v.FindPredicateByName(name)
		if !ok {
			return domain.ErrNotFound{Entity: EntityPredicate, ID: name}
		}
		out = p
		return nil
	})
	return out, err
}

// CreatePredicate stores a reference predicate.
func (s *Service) CreatePredicate(ctx context.Context, p Predicate) (Predicate, Result, error) {
	var created Predicate
	var res Result
	err := s.run(ctx, "create_predicate", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreatePredicate(p)
			return err
		})
		return created.ID, err
	})
	return created, res, err
}

// DeletePredicate removes a predicate that no fact references.
func (s *Service) DeletePredicate(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.run(ctx, "delete_predicate", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeletePredicate(id)
		})
		return id, err
	})
	return res, err
}

// ValidateStoredVocabulary checks the stored predicates against the
// completion dispatch tables.
func (s *Service) ValidateStoredVocabulary(ctx context.Context) error {
	var predicates []Predicate
	if err := s.view(ctx, func(v TransactionView) error {
		predicates = v.ListPredicates()
		return nil
	}); err != nil {
		return err
	}
	return ValidateDispatch(predicates)
}
