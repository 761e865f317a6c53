// Package loinc implements the LOINC provider:
// SQL-backed, with LIST filters, relationship (part-linked) filters,
// property filters including the numeric CLASSTYPE property, a
// materialized ancestor/descendant closure, and status/copyright
// filters.
package loinc

import (
	"context"
	"fmt"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/lang"
	"github.com/gofhir/termserver/pkg/provider"
	"github.com/gofhir/termserver/pkg/sqlstore"
)

const System = "http://loinc.org"

type handle struct{ code string }

func (h handle) Tag() string { return System }

// Provider is the SQL-backed LOINC provider.
type Provider struct {
	store   *sqlstore.Store
	version string
}

// New wraps store as a LOINC provider for release version.
func New(store *sqlstore.Store, version string) *Provider {
	return &Provider{store: store, version: version}
}

func (p *Provider) System() string                         { return System }
func (p *Provider) Version() string                        { return p.version }
func (p *Provider) Description() string                    { return "LOINC" }
func (p *Provider) HasParents() bool                       { return true }
func (p *Provider) ContentMode() concept.CodeSystemContent { return concept.ContentComplete }
func (p *Provider) ListSupplements() []string              { return nil }

func (p *Provider) TotalCount() (int, bool) {
	var count int
	row := p.store.QueryRow(context.Background(), `SELECT count(*) FROM loinc_concept`)
	if err := row.Scan(&count); err != nil {
		return 0, false
	}
	return count, true
}

func (p *Provider) HasAnyDisplays(_ lang.Languages) bool { return true } // LOINC's LongCommonName is always English-only

func (p *Provider) Locate(ctx context.Context, code string) (provider.LocateResult, error) {
	if code == "" {
		return provider.LocateResult{Message: "Empty code"}, nil
	}
	var exists bool
	row := p.store.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM loinc_concept WHERE code = $1)`, code)
	if err := row.Scan(&exists); err != nil {
		return provider.LocateResult{}, fmt.Errorf("loinc: locate %q: %w", code, err)
	}
	if !exists {
		return provider.LocateResult{Message: fmt.Sprintf("LOINC code %q not found", code)}, nil
	}
	return provider.LocateResult{Context: handle{code: code}}, nil
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
	return h.code, err
}

func (p *Provider) Display(ctx context.Context, c provider.Context) (string, error) {
	h, err := p.own(c)
	if err != nil {
		return "", err
	}
	var name string
	row := p.store.QueryRow(ctx, `SELECT long_common_name FROM loinc_concept WHERE code = $1`, h.code)
	if err := row.Scan(&name); err != nil {
		return "", fmt.Errorf("loinc: display %q: %w", h.code, err)
	}
	return name, nil
}

func (p *Provider) Designations(ctx context.Context, c provider.Context, out *[]concept.Designation) error {
	display, err := p.Display(ctx, c)
	if err != nil {
		return err
	}
	*out = append(*out, concept.Designation{Language: "en", Value: display})
	return nil
}

func (p *Provider) IsAbstract(provider.Context) bool { return false }

func (p *Provider) IsInactive(c provider.Context) bool {
	return p.GetStatus(c) == "DEPRECATED" || p.GetStatus(c) == "DISCOURAGED"
}
func (p *Provider) IsDeprecated(c provider.Context) bool { return p.GetStatus(c) == "DEPRECATED" }

func (p *Provider) GetStatus(c provider.Context) string {
	h, err := p.own(c)
	if err != nil {
		return ""
	}
	var status string
	row := p.store.QueryRow(context.Background(), `SELECT status FROM loinc_concept WHERE code = $1`, h.code)
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
	var class string
	var classType int
	var copyright string
	row := p.store.QueryRow(ctx, `SELECT class, class_type, copyright FROM loinc_concept WHERE code = $1`, h.code)
	if err := row.Scan(&class, &classType, &copyright); err != nil {
		return nil, fmt.Errorf("loinc: properties %q: %w", h.code, err)
	}
	return []concept.Property{
		{Code: "CLASS", Value: class},
		{Code: "CLASSTYPE", Value: classType},
		{Code: "copyright", Value: copyright},
	}, nil
}

// --- Hierarchy (materialized ancestor/descendant closure) ---

func (p *Provider) Parent(ctx context.Context, code string) (string, bool) {
	var parent string
	row := p.store.QueryRow(ctx, `SELECT parent_code FROM loinc_closure WHERE code = $1 AND distance = 1`, code)
	if err := row.Scan(&parent); err != nil {
		return "", false
	}
	return parent, true
}

func (p *Provider) SameConcept(a, b provider.Context) bool {
	ha, okA := a.(handle)
	hb, okB := b.(handle)
	return okA && okB && ha.code == hb.code
}

func (p *Provider) LocateIsA(ctx context.Context, child, parentCode string, disallowSelf bool) (provider.LocateResult, error) {
	if child == parentCode && !disallowSelf {
		return provider.LocateResult{Context: handle{code: child}}, nil
	}
	var exists bool
	row := p.store.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM loinc_closure WHERE code = $1 AND ancestor_code = $2)`, child, parentCode)
	if err := row.Scan(&exists); err != nil {
		return provider.LocateResult{}, fmt.Errorf("loinc: locateIsA: %w", err)
	}
	if !exists {
		return provider.LocateResult{Message: fmt.Sprintf("%q is not a descendant of %q", child, parentCode)}, nil
	}
	return provider.LocateResult{Context: handle{code: child}}, nil
}

func (p *Provider) SubsumesTest(ctx context.Context, a, b string) (provider.Subsumption, error) {
	if a == b {
		return provider.Equivalent, nil
	}
	var aAncestorOfB, bAncestorOfA bool
	row := p.store.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM loinc_closure WHERE code = $1 AND ancestor_code = $2)`, b, a)
	if err := row.Scan(&aAncestorOfB); err != nil {
		return "", fmt.Errorf("loinc: subsumesTest: %w", err)
	}
	row = p.store.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM loinc_closure WHERE code = $1 AND ancestor_code = $2)`, a, b)
	if err := row.Scan(&bAncestorOfA); err != nil {
		return "", fmt.Errorf("loinc: subsumesTest: %w", err)
	}
	if aAncestorOfB {
		return provider.Subsumes, nil
	}
	if bAncestorOfA {
		return provider.SubsumedBy, nil
	}
	return provider.NotSubsumed, nil
}

// --- Filterable ---

func (p *Provider) DoesFilter(property string, op concept.FilterOp, value string) bool {
	switch property {
	case "LIST", "CLASSTYPE", "STATUS", "COPYRIGHT":
		return op == concept.OpEquals || op == concept.OpIn
	case "COMPONENT", "PROPERTY", "TIME", "SYSTEM", "SCALE", "METHOD":
		return op == concept.OpEquals
	}
	return false
}

// FilterByList resolves a `LIST = <id>` filter against the schema's
// list-membership table, in the list's declared sequence.
func (p *Provider) FilterByList(ctx context.Context, listID string) ([]string, error) {
	rows, err := p.queryColumn(ctx, `SELECT code FROM loinc_list_member WHERE list_id = $1 ORDER BY sequence, code`, listID)
	if err != nil {
		return nil, fmt.Errorf("loinc: FilterByList: %w", err)
	}
	return rows, nil
}

// FilterByClassType resolves a numeric CLASSTYPE filter.
func (p *Provider) FilterByClassType(ctx context.Context, classType int) ([]string, error) {
	rows, err := p.queryColumnInt(ctx, `SELECT code FROM loinc_concept WHERE class_type = $1 ORDER BY code`, classType)
	if err != nil {
		return nil, fmt.Errorf("loinc: FilterByClassType: %w", err)
	}
	return rows, nil
}

// FilterByPartLink resolves a part-linked property filter (COMPONENT,
// PROPERTY, TIME, SYSTEM, SCALE, METHOD): every code whose named part
// axis links to the given part, by part number or part name.
func (p *Provider) FilterByPartLink(ctx context.Context, axis, part string) ([]string, error) {
	rows, err := p.queryColumn(ctx, `SELECT code FROM loinc_part_link WHERE axis = $1 AND (part_number = $2 OR part_name = $2) ORDER BY code`, axis, part)
	if err != nil {
		return nil, fmt.Errorf("loinc: FilterByPartLink: %w", err)
	}
	return rows, nil
}

func (p *Provider) queryColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	var out []string
	err := p.store.RowsFunc(ctx, query, args, func(row sqlstore.Scanner) error {
		var code string
		if err := row.Scan(&code); err != nil {
			return err
		}
		out = append(out, code)
		return nil
	})
	return out, err
}

func (p *Provider) queryColumnInt(ctx context.Context, query string, arg int) ([]string, error) {
	return p.queryColumn(ctx, query, arg)
}

var _ provider.Provider = (*Provider)(nil)
var _ provider.Hierarchy = (*Provider)(nil)
var _ provider.Filterable = (*Provider)(nil)
