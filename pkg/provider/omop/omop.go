// Package omop implements the OMOP vocabulary provider: SQL-backed
// domain/vocabulary/concept-class metadata, relationship links used
// for $translate, and domain-based filters and
// ValueSet construction. Iteration is intentionally unimplemented — the
// vocabulary is too large to enumerate and callers must filter instead.
//
// Built on pkg/sqlstore for SQL access; the domain-to-ValueSet
// helper mirrors loader/converter.go's resource-building style
// (building a concept.ValueSet literal from query results rather than
// parsing wire JSON).
package omop

import (
	"context"
	"fmt"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/lang"
	"github.com/gofhir/termserver/pkg/provider"
	"github.com/gofhir/termserver/pkg/sqlstore"
)

const System = "http://omop.org/concept" // placeholder canonical system; real deployments alias per vocabulary_id

type handle struct{ conceptID string }

func (h handle) Tag() string { return System }

type Provider struct {
	store   *sqlstore.Store
	version string
}

func New(store *sqlstore.Store, version string) *Provider {
	return &Provider{store: store, version: version}
}

func (p *Provider) System() string                         { return System }
func (p *Provider) Version() string                        { return p.version }
func (p *Provider) Description() string                    { return "OMOP Standardized Vocabularies" }
func (p *Provider) HasParents() bool                       { return false }
func (p *Provider) ContentMode() concept.CodeSystemContent { return concept.ContentComplete }
func (p *Provider) HasAnyDisplays(_ lang.Languages) bool   { return true }
func (p *Provider) ListSupplements() []string              { return nil }

// TotalCount reports ok=false: OMOP's concept table is large enough
// that counting it on every metadata request is not worthwhile, and
// since iteration is unsupported a precise total has no consumer.
func (p *Provider) TotalCount() (int, bool) { return 0, false }

func (p *Provider) Locate(ctx context.Context, conceptID string) (provider.LocateResult, error) {
	if conceptID == "" {
		return provider.LocateResult{Message: "Empty code"}, nil
	}
	var exists bool
	row := p.store.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM omop_concept WHERE concept_id = $1)`, conceptID)
	if err := row.Scan(&exists); err != nil {
		return provider.LocateResult{}, fmt.Errorf("omop: locate %q: %w", conceptID, err)
	}
	if !exists {
		return provider.LocateResult{Message: fmt.Sprintf("OMOP concept_id %q not found", conceptID)}, nil
	}
	return provider.LocateResult{Context: handle{conceptID: conceptID}}, nil
}

func (p *Provider) own(c provider.Context) (handle, error) {
	h, ok := c.(handle)
	if !ok {
		return handle{}, provider.ErrTypeMismatch
	}
	return h, nil
}

func (p *Provider) Code(_ context.Context, c provider.Context) (string, error) {
	h, err := p.own(c)
	return h.conceptID, err
}

func (p *Provider) Display(ctx context.Context, c provider.Context) (string, error) {
	h, err := p.own(c)
	if err != nil {
		return "", err
	}
	var name string
	row := p.store.QueryRow(ctx, `SELECT concept_name FROM omop_concept WHERE concept_id = $1`, h.conceptID)
	if err := row.Scan(&name); err != nil {
		return "", fmt.Errorf("omop: display %q: %w", h.conceptID, err)
	}
	return name, nil
}

func (p *Provider) Designations(context.Context, provider.Context, *[]concept.Designation) error {
	return nil
}

func (p *Provider) IsAbstract(provider.Context) bool { return false }

func (p *Provider) IsInactive(c provider.Context) bool {
	h, err := p.own(c)
	if err != nil {
		return false
	}
	var invalidReason string
	row := p.store.QueryRow(context.Background(), `SELECT coalesce(invalid_reason, '') FROM omop_concept WHERE concept_id = $1`, h.conceptID)
	_ = row.Scan(&invalidReason)
	return invalidReason != ""
}
func (p *Provider) IsDeprecated(c provider.Context) bool { return p.IsInactive(c) }
func (p *Provider) GetStatus(c provider.Context) string {
	if p.IsInactive(c) {
		return "invalid"
	}
	return "valid"
}

func (p *Provider) ItemWeight(provider.Context) (float64, bool)    { return 0, false }
func (p *Provider) Extensions(provider.Context) []concept.Property { return nil }

func (p *Provider) Properties(ctx context.Context, c provider.Context) ([]concept.Property, error) {
	h, err := p.own(c)
	if err != nil {
		return nil, err
	}
	var domain, vocabulary, class string
	row := p.store.QueryRow(ctx, `SELECT domain_id, vocabulary_id, concept_class_id FROM omop_concept WHERE concept_id = $1`, h.conceptID)
	if err := row.Scan(&domain, &vocabulary, &class); err != nil {
		return nil, fmt.Errorf("omop: properties %q: %w", h.conceptID, err)
	}
	return []concept.Property{
		{Code: "domain", Value: domain},
		{Code: "vocabulary", Value: vocabulary},
		{Code: "concept-class", Value: class},
	}, nil
}

// RelationshipTargets resolves OMOP's concept_relationship edges for a
// given relationship_id, used by $translate to walk "Maps to" and
// similar cross-vocabulary links.
func (p *Provider) RelationshipTargets(ctx context.Context, conceptID, relationshipID string) ([]string, error) {
	var out []string
	err := p.store.RowsFunc(ctx, `SELECT concept_id_2 FROM omop_concept_relationship WHERE concept_id_1 = $1 AND relationship_id = $2 ORDER BY concept_id_2`,
		[]any{conceptID, relationshipID}, func(row sqlstore.Scanner) error {
			var target string
			if err := row.Scan(&target); err != nil {
				return err
			}
			out = append(out, target)
			return nil
		})
	return out, err
}

// --- Filterable ---

func (p *Provider) DoesFilter(property string, op concept.FilterOp, value string) bool {
	switch property {
	case "domain", "vocabulary", "concept-class":
		return op == concept.OpEquals
	}
	return false
}

func (p *Provider) FilterByDomain(ctx context.Context, domainID string) ([]string, error) {
	return p.queryColumn(ctx, `SELECT concept_id FROM omop_concept WHERE domain_id = $1 ORDER BY concept_id`, domainID)
}

func (p *Provider) FilterByVocabulary(ctx context.Context, vocabularyID string) ([]string, error) {
	return p.queryColumn(ctx, `SELECT concept_id FROM omop_concept WHERE vocabulary_id = $1 ORDER BY concept_id`, vocabularyID)
}

func (p *Provider) FilterByConceptClass(ctx context.Context, conceptClassID string) ([]string, error) {
	return p.queryColumn(ctx, `SELECT concept_id FROM omop_concept WHERE concept_class_id = $1 ORDER BY concept_id`, conceptClassID)
}

func (p *Provider) queryColumn(ctx context.Context, query, arg string) ([]string, error) {
	var out []string
	err := p.store.RowsFunc(ctx, query, []any{arg}, func(row sqlstore.Scanner) error {
		var conceptID string
		if err := row.Scan(&conceptID); err != nil {
			return err
		}
		out = append(out, conceptID)
		return nil
	})
	return out, err
}

// BuildValueSetFromDomain constructs a ValueSet compose clause that
// selects every concept in domainID, the "ValueSet construction from a
// domain id" construction.
func (p *Provider) BuildValueSetFromDomain(domainID string) *concept.ValueSet {
	return &concept.ValueSet{
		URL:  fmt.Sprintf("http://omop.org/ValueSet/domain-%s", domainID),
		Name: fmt.Sprintf("OMOP-Domain-%s", domainID),
		Compose: concept.Compose{
			Include: []concept.ComposeInclude{{
				System: System,
				Filter: []concept.ComposeFilter{{Property: "domain", Op: concept.OpEquals, Value: domainID}},
			}},
		},
	}
}

var _ provider.Provider = (*Provider)(nil)
var _ provider.Filterable = (*Provider)(nil)
