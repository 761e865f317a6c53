// Package ndc implements the National Drug Code provider: SQL-backed,
// dual-format codes (10-digit segmented in 4-4-2/5-3-2/5-4-1/6-3-2/
// 6-4-1 layouts, and 11-digit unsegmented),
// product-vs-package distinction, and a `code-type` filter.
//
// The segment-normalization logic follows the FDA's published NDC
// directory conversion rules: the 4-4-2/5-3-2/5-4-1 layouts pad to 11
// digits by inserting a leading zero into whichever segment is short;
// the 6-3-2/6-4-1 layouts already hold 11 digits and only lose their
// dashes.
package ndc

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/lang"
	"github.com/gofhir/termserver/pkg/provider"
	"github.com/gofhir/termserver/pkg/sqlstore"
)

const System = "http://hl7.org/fhir/sid/ndc"

var segmented10 = regexp.MustCompile(`^(\d{4})-(\d{4})-(\d{2})$|^(\d{5})-(\d{3})-(\d{2})$|^(\d{5})-(\d{4})-(\d{1})$|^(\d{6})-(\d{3})-(\d{2})$|^(\d{6})-(\d{4})-(\d{1})$`)
var unsegmented11 = regexp.MustCompile(`^\d{11}$`)

type codeType string

const (
	TypeProduct codeType = "product"
	Type10      codeType = "10-digit"
	Type11      codeType = "11-digit"
)

type handle struct {
	code11    string // normalized 11-digit key used for storage lookups
	codeType  codeType
	isProduct bool
}

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
func (p *Provider) Description() string                    { return "National Drug Code Directory" }
func (p *Provider) HasParents() bool                       { return false }
func (p *Provider) ContentMode() concept.CodeSystemContent { return concept.ContentComplete }
func (p *Provider) HasAnyDisplays(_ lang.Languages) bool   { return true }
func (p *Provider) ListSupplements() []string              { return nil }

func (p *Provider) TotalCount() (int, bool) {
	var count int
	row := p.store.QueryRow(context.Background(), `SELECT count(*) FROM ndc_package`)
	if err := row.Scan(&count); err != nil {
		return 0, false
	}
	return count, true
}

// Normalize converts a 10-digit segmented or 11-digit unsegmented NDC
// into its canonical 11-digit form. The 4-4-2/5-3-2/5-4-1 layouts sum
// to 10 digits and need a single leading zero inserted into whichever
// segment is short; the 6-3-2/6-4-1 layouts already sum to 11 and only
// need their dashes removed.
func Normalize(code string) (string, bool) {
	if unsegmented11.MatchString(code) {
		return code, true
	}
	m := segmented10.FindStringSubmatch(code)
	if m == nil {
		return "", false
	}
	switch {
	case m[1] != "":
		return pad(m[1], 5) + m[2] + m[3], true
	case m[4] != "":
		return m[4] + pad(m[5], 4) + m[6], true
	case m[7] != "":
		return m[7] + m[8] + pad(m[9], 2), true
	case m[10] != "":
		return m[10] + m[11] + m[12], true
	default:
		return m[13] + m[14] + m[15], true
	}
}

func pad(segment string, width int) string {
	if len(segment) >= width {
		return segment
	}
	return strings.Repeat("0", width-len(segment)) + segment
}

func (p *Provider) Locate(ctx context.Context, code string) (provider.LocateResult, error) {
	if code == "" {
		return provider.LocateResult{Message: "Empty code"}, nil
	}
	norm, ok := Normalize(code)
	if !ok {
		return provider.LocateResult{Message: fmt.Sprintf("%q is not a valid NDC layout", code)}, nil
	}
	var isProduct bool
	row := p.store.QueryRow(ctx, `SELECT is_product FROM ndc_package WHERE ndc11 = $1`, norm)
	if err := row.Scan(&isProduct); err != nil {
		return provider.LocateResult{Message: fmt.Sprintf("NDC %q not found", code)}, nil
	}
	ct := Type11
	if strings.Contains(code, "-") {
		ct = Type10
	}
	return provider.LocateResult{Context: handle{code11: norm, codeType: ct, isProduct: isProduct}}, nil
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
	return h.code11, err
}

func (p *Provider) Display(ctx context.Context, c provider.Context) (string, error) {
	h, err := p.own(c)
	if err != nil {
		return "", err
	}
	var name string
	row := p.store.QueryRow(ctx, `SELECT proprietary_name FROM ndc_package WHERE ndc11 = $1`, h.code11)
	if err := row.Scan(&name); err != nil {
		return "", fmt.Errorf("ndc: display %q: %w", h.code11, err)
	}
	return name, nil
}

func (p *Provider) Designations(context.Context, provider.Context, *[]concept.Designation) error {
	return nil
}

func (p *Provider) IsAbstract(provider.Context) bool   { return false }
func (p *Provider) IsInactive(provider.Context) bool   { return false }
func (p *Provider) IsDeprecated(provider.Context) bool { return false }
func (p *Provider) GetStatus(provider.Context) string  { return "" }

func (p *Provider) ItemWeight(provider.Context) (float64, bool)    { return 0, false }
func (p *Provider) Extensions(provider.Context) []concept.Property { return nil }

func (p *Provider) Properties(ctx context.Context, c provider.Context) ([]concept.Property, error) {
	h, err := p.own(c)
	if err != nil {
		return nil, err
	}
	props := []concept.Property{{Code: "code-type", Value: string(h.codeType)}}
	if h.isProduct {
		props = append(props, concept.Property{Code: "code-type", Value: string(TypeProduct)})
		return props, nil
	}
	var productNDC string
	row := p.store.QueryRow(ctx, `SELECT product_ndc11 FROM ndc_package WHERE ndc11 = $1`, h.code11)
	if err := row.Scan(&productNDC); err == nil && productNDC != "" {
		props = append(props, concept.Property{Code: "product", Value: productNDC})
	}
	return props, nil
}

// --- Filterable ---

func (p *Provider) DoesFilter(property string, op concept.FilterOp, value string) bool {
	return property == "code-type" && op == concept.OpEquals
}

// FilterByCodeType resolves `code-type = v` against the three legal
// values (product, 10-digit, 11-digit); the 10/11-digit distinction is
// purely about the input format used to locate a package code, so both
// resolve to every non-product (package) row.
func (p *Provider) FilterByCodeType(ctx context.Context, value string) ([]string, error) {
	switch codeType(value) {
	case TypeProduct:
		return p.queryColumn(ctx, `SELECT ndc11 FROM ndc_package WHERE is_product ORDER BY ndc11`)
	case Type10, Type11:
		return p.queryColumn(ctx, `SELECT ndc11 FROM ndc_package WHERE NOT is_product ORDER BY ndc11`)
	default:
		return nil, fmt.Errorf("ndc: unsupported code-type value %q", value)
	}
}

func (p *Provider) queryColumn(ctx context.Context, query string) ([]string, error) {
	var out []string
	err := p.store.RowsFunc(ctx, query, nil, func(row sqlstore.Scanner) error {
		var code string
		if err := row.Scan(&code); err != nil {
			return err
		}
		out = append(out, code)
		return nil
	})
	return out, err
}

var _ provider.Provider = (*Provider)(nil)
var _ provider.Filterable = (*Provider)(nil)
