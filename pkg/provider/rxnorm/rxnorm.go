// Package rxnorm implements the RxNorm provider:
// SQL-backed, with TTY/SAB/STY/REL/RELA filters, a stem-token text
// search, an archived-to-deprecated status mapping, and a filter
// closure that is always finite (no open/deferred filters).
//
// Built on pkg/sqlstore for SQL access and the LOINC provider's
// property-filter shape (pkg/provider/loinc), adapted to RxNorm's RxCUI
// key space and relationship vocabulary (REL/RELA) instead of a
// materialized ancestor closure.
package rxnorm

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/lang"
	"github.com/gofhir/termserver/pkg/provider"
	"github.com/gofhir/termserver/pkg/sqlstore"
)

const System = "http://www.nlm.nih.gov/research/umls/rxnorm"

type handle struct{ rxcui string }

func (h handle) Tag() string { return System }

// Provider is the SQL-backed RxNorm provider, keyed on RxCUI.
type Provider struct {
	store   *sqlstore.Store
	version string
}

func New(store *sqlstore.Store, version string) *Provider {
	return &Provider{store: store, version: version}
}

func (p *Provider) System() string                         { return System }
func (p *Provider) Version() string                        { return p.version }
func (p *Provider) Description() string                    { return "RxNorm" }
func (p *Provider) HasParents() bool                       { return false } // relationships are RELA-typed graphs, not single-parent trees
func (p *Provider) ContentMode() concept.CodeSystemContent { return concept.ContentComplete }
func (p *Provider) HasAnyDisplays(_ lang.Languages) bool   { return true }
func (p *Provider) ListSupplements() []string              { return nil }

func (p *Provider) TotalCount() (int, bool) {
	var count int
	row := p.store.QueryRow(context.Background(), `SELECT count(*) FROM rxnorm_concept`)
	if err := row.Scan(&count); err != nil {
		return 0, false
	}
	return count, true
}

func (p *Provider) Locate(ctx context.Context, code string) (provider.LocateResult, error) {
	if code == "" {
		return provider.LocateResult{Message: "Empty code"}, nil
	}
	var exists bool
	row := p.store.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rxnorm_concept WHERE rxcui = $1)`, code)
	if err := row.Scan(&exists); err != nil {
		return provider.LocateResult{}, fmt.Errorf("rxnorm: locate %q: %w", code, err)
	}
	if !exists {
		return provider.LocateResult{Message: fmt.Sprintf("RxCUI %q not found", code)}, nil
	}
	return provider.LocateResult{Context: handle{rxcui: code}}, nil
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
	return h.rxcui, err
}

func (p *Provider) Display(ctx context.Context, c provider.Context) (string, error) {
	h, err := p.own(c)
	if err != nil {
		return "", err
	}
	var str string
	row := p.store.QueryRow(ctx, `SELECT str FROM rxnorm_concept WHERE rxcui = $1`, h.rxcui)
	if err := row.Scan(&str); err != nil {
		return "", fmt.Errorf("rxnorm: display %q: %w", h.rxcui, err)
	}
	return str, nil
}

func (p *Provider) Designations(ctx context.Context, c provider.Context, out *[]concept.Designation) error {
	h, err := p.own(c)
	if err != nil {
		return err
	}
	return p.store.RowsFunc(ctx, `SELECT str, lat FROM rxnorm_synonym WHERE rxcui = $1`, []any{h.rxcui}, func(row sqlstore.Scanner) error {
		var str, lat string
		if err := row.Scan(&str, &lat); err != nil {
			return err
		}
		*out = append(*out, concept.Designation{Language: strings.ToLower(lat), Value: str})
		return nil
	})
}

func (p *Provider) IsAbstract(provider.Context) bool { return false }

// archived and quantified-archived RxNorm statuses surface as inactive;
// RxNorm has no separate "deprecated" marker of its own so both archived
// states map onto IsDeprecated.
func (p *Provider) IsInactive(c provider.Context) bool {
	status := p.GetStatus(c)
	return status == "Archived" || status == "Quantified"
}
func (p *Provider) IsDeprecated(c provider.Context) bool { return p.IsInactive(c) }

func (p *Provider) GetStatus(c provider.Context) string {
	h, err := p.own(c)
	if err != nil {
		return ""
	}
	var status string
	row := p.store.QueryRow(context.Background(), `SELECT suppress FROM rxnorm_concept WHERE rxcui = $1`, h.rxcui)
	_ = row.Scan(&status)
	return status
}

func (p *Provider) ItemWeight(provider.Context) (float64, bool)    { return 0, false }
func (p *Provider) Extensions(provider.Context) []concept.Property { return nil }

func (p *Provider) Properties(ctx context.Context, c provider.Context) ([]concept.Property, error) {
	h, err := p.own(c)
	if err != nil {
		return nil, err
	}
	var tty, sab string
	row := p.store.QueryRow(ctx, `SELECT tty, sab FROM rxnorm_concept WHERE rxcui = $1`, h.rxcui)
	if err := row.Scan(&tty, &sab); err != nil {
		return nil, fmt.Errorf("rxnorm: properties %q: %w", h.rxcui, err)
	}
	props := []concept.Property{{Code: "TTY", Value: tty}, {Code: "SAB", Value: sab}}
	err = p.store.RowsFunc(ctx, `SELECT sty FROM rxnorm_semantic_type WHERE rxcui = $1`, []any{h.rxcui}, func(row sqlstore.Scanner) error {
		var sty string
		if err := row.Scan(&sty); err != nil {
			return err
		}
		props = append(props, concept.Property{Code: "STY", Value: sty})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rxnorm: STY properties %q: %w", h.rxcui, err)
	}
	return props, nil
}

// --- Filterable ---

func (p *Provider) DoesFilter(property string, op concept.FilterOp, value string) bool {
	switch property {
	case "TTY", "SAB", "STY":
		return op == concept.OpEquals || op == concept.OpIn
	case "REL", "RELA":
		return op == concept.OpEquals
	}
	return false
}

// FilterByProperty resolves equality/membership filters over TTY, SAB
// or STY — every RxNorm filter closes over a finite SQL result set, so
// there is no fallback/open-filter path here.
func (p *Provider) FilterByProperty(ctx context.Context, property string, values []string) ([]string, error) {
	column := map[string]string{"TTY": "tty", "SAB": "sab", "STY": "sty"}[property]
	if column == "" {
		return nil, fmt.Errorf("rxnorm: unsupported property filter %q", property)
	}
	table := "rxnorm_concept"
	if property == "STY" {
		table = "rxnorm_semantic_type"
	}
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = v
	}
	query := fmt.Sprintf(`SELECT DISTINCT rxcui FROM %s WHERE %s IN (%s) ORDER BY rxcui`, table, column, strings.Join(placeholders, ","))
	var out []string
	err := p.store.RowsFunc(ctx, query, args, func(row sqlstore.Scanner) error {
		var rxcui string
		if err := row.Scan(&rxcui); err != nil {
			return err
		}
		out = append(out, rxcui)
		return nil
	})
	return out, err
}

// FilterByRelationship resolves a `REL = <value>` or `RELA = <value>`
// filter, returning the RxCUIs that participate in that relationship
// type with any other concept.
func (p *Provider) FilterByRelationship(ctx context.Context, column, value string) ([]string, error) {
	if column != "rel" && column != "rela" {
		return nil, fmt.Errorf("rxnorm: unsupported relationship column %q", column)
	}
	query := fmt.Sprintf(`SELECT DISTINCT rxcui1 FROM rxnorm_relationship WHERE %s = $1 ORDER BY rxcui1`, column)
	var out []string
	err := p.store.RowsFunc(ctx, query, []any{value}, func(row sqlstore.Scanner) error {
		var rxcui string
		if err := row.Scan(&rxcui); err != nil {
			return err
		}
		out = append(out, rxcui)
		return nil
	})
	return out, err
}

// SearchText implements the stem-token text search used by $expand's
// text filter for RxNorm: tokens are matched against a
// normalized stem column built at load time, not a raw substring scan.
func (p *Provider) SearchText(ctx context.Context, text string) ([]string, error) {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return nil, nil
	}
	var out []string
	err := p.store.RowsFunc(ctx, `SELECT rxcui FROM rxnorm_concept WHERE stem_tsv @@ plainto_tsquery($1) ORDER BY rxcui`, []any{strings.Join(tokens, " ")}, func(row sqlstore.Scanner) error {
		var rxcui string
		if err := row.Scan(&rxcui); err != nil {
			return err
		}
		out = append(out, rxcui)
		return nil
	})
	return out, err
}

var _ provider.Provider = (*Provider)(nil)
var _ provider.Filterable = (*Provider)(nil)
