// Package ucum implements the UCUM unit-expression provider: an
// expression validator backed by a UCUM essence table. Locate parses a
// unit expression; valid expressions yield a handle
// exposing canonical form and analysis. Filters by canonical dimension
// and a comparability test between two units are also provided.
//
// The essence table maps unit codes to a canonical dimension code and a
// shopspring/decimal conversion factor, so factor composition for
// compound expressions (e.g. "mg/dL") doesn't accumulate float64 error.
package ucum

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/lang"
	"github.com/gofhir/termserver/pkg/provider"
)

const System = "http://unitsofmeasure.org"

// essence entry: a recognized unit's canonical dimension code and the
// decimal factor that converts one of this unit into one canonical unit.
type essence struct {
	canonical string
	factor    decimal.Decimal
}

func d(f string) decimal.Decimal {
	v, err := decimal.NewFromString(f)
	if err != nil {
		panic(fmt.Sprintf("ucum: bad essence literal %q: %v", f, err))
	}
	return v
}

var essenceTable = map[string]essence{
	"kg": {"g", d("1000")}, "g": {"g", d("1")}, "mg": {"g", d("0.001")}, "ug": {"g", d("0.000001")},
	"lb": {"g", d("453.59237")}, "oz": {"g", d("28.349523125")},

	"km": {"m", d("1000")}, "m": {"m", d("1")}, "cm": {"m", d("0.01")}, "mm": {"m", d("0.001")},
	"in": {"m", d("0.0254")}, "ft": {"m", d("0.3048")},

	"L": {"L", d("1")}, "dL": {"L", d("0.1")}, "mL": {"L", d("0.001")}, "uL": {"L", d("0.000001")},

	"a": {"s", d("31557600")}, "d": {"s", d("86400")}, "h": {"s", d("3600")}, "min": {"s", d("60")},
	"s": {"s", d("1")}, "ms": {"s", d("0.001")},

	"Cel": {"K", d("1")}, "K": {"K", d("1")}, "[degF]": {"K", d("1")},

	"mol/L": {"mol/L", d("1")}, "mmol/L": {"mol/L", d("0.001")}, "umol/L": {"mol/L", d("0.000001")},

	"Pa": {"Pa", d("1")}, "kPa": {"Pa", d("1000")}, "mm[Hg]": {"Pa", d("133.322387415")},

	"%": {"%", d("1")},
}

// handle is the expression-kind result of a successful Locate: the
// original expression plus its parsed unit-power terms.
type handle struct {
	expr      string
	terms     []term
	canonical string
}

func (handle) Tag() string { return System }

// term is one `unit` segment of a `/`- and `.`-joined UCUM expression,
// with power -1 after a '/' and +1 otherwise (e.g. "mg/dL" parses to
// [{mg,1},{dL,-1}]); exponents written in the expression are not parsed.
type term struct {
	unit  string
	power int
}

type Provider struct {
	version string
}

func New(version string) *Provider { return &Provider{version: version} }

func (p *Provider) System() string                         { return System }
func (p *Provider) Version() string                        { return p.version }
func (p *Provider) Description() string                    { return "Unified Code for Units of Measure" }
func (p *Provider) HasParents() bool                       { return false }
func (p *Provider) ContentMode() concept.CodeSystemContent { return concept.ContentNotPresent }
func (p *Provider) HasAnyDisplays(_ lang.Languages) bool   { return false }
func (p *Provider) ListSupplements() []string              { return nil }
func (p *Provider) TotalCount() (int, bool)                { return 0, false } // an expression grammar, not an enumerable code list

// parseExpr splits a UCUM expression on '.' (multiply) and '/' (divide)
// into unit/power terms. This is a deliberately small subset of UCUM's
// full grammar -- annotations in {} and nested parentheses are not
// handled -- sufficient for the flat unit expressions seen in practice.
func parseExpr(expr string) ([]term, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty unit expression")
	}
	var terms []term
	sign := 1
	var buf strings.Builder
	flush := func() error {
		unit := buf.String()
		buf.Reset()
		if unit == "" {
			return nil
		}
		terms = append(terms, term{unit: unit, power: sign})
		return nil
	}
	for _, r := range expr {
		switch r {
		case '.':
			if err := flush(); err != nil {
				return nil, err
			}
			sign = 1
		case '/':
			if err := flush(); err != nil {
				return nil, err
			}
			sign = -1
		default:
			buf.WriteRune(r)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("no unit terms found in %q", expr)
	}
	return terms, nil
}

// resolve computes the canonical dimension code and composed factor for
// a parsed expression, failing if any term's base unit is unknown.
func resolve(terms []term) (string, decimal.Decimal, error) {
	var canonicalParts []string
	factor := decimal.NewFromInt(1)
	for _, t := range terms {
		e, ok := essenceTable[t.unit]
		if !ok {
			return "", decimal.Zero, fmt.Errorf("unknown UCUM unit %q", t.unit)
		}
		f := e.factor
		if t.power < 0 {
			f = decimal.NewFromInt(1).Div(f)
			canonicalParts = append(canonicalParts, e.canonical+"-1")
		} else {
			canonicalParts = append(canonicalParts, e.canonical)
		}
		factor = factor.Mul(f)
	}
	return strings.Join(canonicalParts, "."), factor, nil
}

func (p *Provider) Locate(_ context.Context, expr string) (provider.LocateResult, error) {
	if expr == "" {
		return provider.LocateResult{Message: "Empty code"}, nil
	}
	terms, err := parseExpr(expr)
	if err != nil {
		return provider.LocateResult{Message: err.Error()}, nil
	}
	canonical, _, err := resolve(terms)
	if err != nil {
		return provider.LocateResult{Message: err.Error()}, nil
	}
	return provider.LocateResult{Context: handle{expr: expr, terms: terms, canonical: canonical}}, nil
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
	return h.expr, err
}

func (p *Provider) Display(_ context.Context, c provider.Context) (string, error) {
	h, err := p.own(c)
	return h.expr, err
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

// Properties exposes the canonical form and composed conversion factor
// ("analysis") a valid expression's handle carries.
func (p *Provider) Properties(_ context.Context, c provider.Context) ([]concept.Property, error) {
	h, err := p.own(c)
	if err != nil {
		return nil, err
	}
	_, factor, err := resolve(h.terms)
	if err != nil {
		return nil, err
	}
	return []concept.Property{
		{Code: "canonical", Value: h.canonical},
		{Code: "factor", Value: factor.String()},
	}, nil
}

// --- Filterable ---

func (p *Provider) DoesFilter(property string, op concept.FilterOp, value string) bool {
	return property == "canonical" && op == concept.OpEquals
}

// FilterByCanonical resolves `canonical = g` style filters against the
// whole essence table, returning every base unit sharing that
// dimension.
func (p *Provider) FilterByCanonical(canonical string) []string {
	var out []string
	for unit, e := range essenceTable {
		if e.canonical == canonical {
			out = append(out, unit)
		}
	}
	return out
}

// Comparable reports whether two unit expressions share a canonical
// dimension and so can be meaningfully compared/converted.
func (p *Provider) Comparable(a, b string) (bool, error) {
	ta, err := parseExpr(a)
	if err != nil {
		return false, err
	}
	tb, err := parseExpr(b)
	if err != nil {
		return false, err
	}
	ca, _, err := resolve(ta)
	if err != nil {
		return false, err
	}
	cb, _, err := resolve(tb)
	if err != nil {
		return false, err
	}
	return ca == cb, nil
}

var _ provider.Provider = (*Provider)(nil)
var _ provider.Filterable = (*Provider)(nil)
