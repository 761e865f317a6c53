// Package cpt implements the CPT provider: a flat code set plus
// expression codes of the form `base:mod1[:mod2...]`. Locate parses and
// validates expressions (modifier existence, category rules,
// telemedicine gating) and produces diagnostics rather than throwing on
// a malformed expression.
package cpt

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/lang"
	"github.com/gofhir/termserver/pkg/provider"
)

const System = "http://www.ama-assn.org/go/cpt"

// ModifierKind classifies a CPT modifier for category-rule enforcement.
type ModifierKind string

const (
	KindCode           ModifierKind = "code" // plain (non-modifier) base code, per the kind= filter's enumeration
	KindCategory2      ModifierKind = "cat-2"
	KindGeneral        ModifierKind = "general"
	KindPhysicalStatus ModifierKind = "physical-status"
	KindHCPCS          ModifierKind = "hcpcs"
)

// Telemedicine is the one modifier with its own gating rule: it is
// permitted only on telemedicine-enabled base codes.
const Telemedicine = "95"

// Modifier describes one of the fixed modifier codes recognized by this
// provider; NewStandard seeds the standard five ("1P", "25", "95",
// "F1", "P1").
type Modifier struct {
	Code string
	Kind ModifierKind
}

// Code describes one base CPT code.
type Code struct {
	Code                string
	Display             string
	Kind                ModifierKind // general, cat-2, physical-status, or hcpcs -- the base code's own category
	TelemedicineEnabled bool
}

type baseHandle struct {
	code    Code
	display string
}

func (baseHandle) Tag() string { return System }

// exprHandle is the "expression-kind handle with empty display"
// produced by a successfully parsed and validated expression code
//.
type exprHandle struct {
	base      string
	modifiers []string
}

func (exprHandle) Tag() string { return System }

type Provider struct {
	version   string
	codes     map[string]Code
	modifiers map[string]Modifier
}

func New(version string) *Provider {
	return &Provider{version: version, codes: map[string]Code{}, modifiers: map[string]Modifier{}}
}

// RegisterCode adds a base code to the flat set.
func (p *Provider) RegisterCode(c Code) { p.codes[c.Code] = c }

// RegisterModifier adds a modifier definition.
func (p *Provider) RegisterModifier(m Modifier) { p.modifiers[m.Code] = m }

// NewStandard seeds the standard modifier set.
func NewStandard(version string) *Provider {
	p := New(version)
	p.RegisterModifier(Modifier{Code: "1P", Kind: KindCategory2})
	p.RegisterModifier(Modifier{Code: "25", Kind: KindGeneral})
	p.RegisterModifier(Modifier{Code: Telemedicine, Kind: KindGeneral})
	p.RegisterModifier(Modifier{Code: "F1", Kind: KindHCPCS})
	p.RegisterModifier(Modifier{Code: "P1", Kind: KindPhysicalStatus})
	return p
}

func (p *Provider) System() string                         { return System }
func (p *Provider) Version() string                        { return p.version }
func (p *Provider) Description() string                    { return "Current Procedural Terminology" }
func (p *Provider) HasParents() bool                       { return false }
func (p *Provider) ContentMode() concept.CodeSystemContent { return concept.ContentComplete }
func (p *Provider) HasAnyDisplays(_ lang.Languages) bool   { return true }
func (p *Provider) ListSupplements() []string              { return nil }
func (p *Provider) TotalCount() (int, bool)                { return len(p.codes), true }

// Locate parses code as either a bare base code or a `base:mod1[:mod2…]`
// expression. Expression codes always produce a handle with an empty
// display; parse/validation failures are returned as
// diagnostics, never as an error.
func (p *Provider) Locate(_ context.Context, code string) (provider.LocateResult, error) {
	if code == "" {
		return provider.LocateResult{Message: "Empty code"}, nil
	}
	parts := strings.Split(code, ":")
	base, ok := p.codes[parts[0]]
	if !ok {
		return provider.LocateResult{Message: fmt.Sprintf("CPT base code %q not found", parts[0])}, nil
	}
	if len(parts) == 1 {
		return provider.LocateResult{Context: baseHandle{code: base, display: base.Display}}, nil
	}
	mods := parts[1:]
	if msg := p.validateModifiers(base, mods); msg != "" {
		return provider.LocateResult{Message: msg}, nil
	}
	return provider.LocateResult{Context: exprHandle{base: base.Code, modifiers: mods}}, nil
}

func (p *Provider) validateModifiers(base Code, mods []string) string {
	for _, mc := range mods {
		mod, ok := p.modifiers[mc]
		if !ok {
			return fmt.Sprintf("modifier %q does not exist", mc)
		}
		if mod.Kind == KindCategory2 && base.Kind != KindCategory2 {
			return fmt.Sprintf("category-2 modifier %q cannot apply to non-category-2 base code %q", mc, base.Code)
		}
		if mc == Telemedicine && !base.TelemedicineEnabled {
			return fmt.Sprintf("telemedicine modifier %q is not permitted on %q", Telemedicine, base.Code)
		}
	}
	return ""
}

func (p *Provider) own(c provider.Context) (string, []string, error) {
	switch h := c.(type) {
	case baseHandle:
		return h.code.Code, nil, nil
	case exprHandle:
		return h.base, h.modifiers, nil
	default:
		return "", nil, provider.ErrTypeMismatch
	}
}

func (p *Provider) Code(_ context.Context, c provider.Context) (string, error) {
	base, mods, err := p.own(c)
	if err != nil {
		return "", err
	}
	if len(mods) == 0 {
		return base, nil
	}
	return base + ":" + strings.Join(mods, ":"), nil
}

// Display returns the base code's narrative for a plain code and an
// empty string for any expression handle.
func (p *Provider) Display(_ context.Context, c provider.Context) (string, error) {
	switch h := c.(type) {
	case baseHandle:
		return h.display, nil
	case exprHandle:
		return "", nil
	default:
		return "", provider.ErrTypeMismatch
	}
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

func (p *Provider) Properties(_ context.Context, c provider.Context) ([]concept.Property, error) {
	base, mods, err := p.own(c)
	if err != nil {
		return nil, err
	}
	bc, ok := p.codes[base]
	if !ok {
		return nil, provider.ErrNotFound
	}
	props := []concept.Property{{Code: "kind", Value: string(bc.Kind)}}
	if len(mods) > 0 {
		props = append(props, concept.Property{Code: "modifier", Value: strings.Join(mods, ",")})
	}
	return props, nil
}

// --- Filterable ---
//
// modifier = {true,false} is a closed, finite filter over the
// registered modifier codes. modified = {true,false} is intentionally
// open: whether a base code "has been modified" is a property of how
// it's used in context, not enumerable from the code system alone, so
// it always signals filtersNotClosed.
func (p *Provider) DoesFilter(property string, op concept.FilterOp, value string) bool {
	switch property {
	case "modifier", "modified":
		return op == concept.OpEquals && (value == "true" || value == "false")
	case "kind":
		return op == concept.OpEquals
	}
	return false
}

// FilterModifiers resolves `modifier = true/false`: true yields every
// registered modifier code, false yields every base (non-modifier) code.
func (p *Provider) FilterModifiers(value string) []string {
	if value == "true" {
		codes := make([]string, 0, len(p.modifiers))
		for code := range p.modifiers {
			codes = append(codes, code)
		}
		return codes
	}
	codes := make([]string, 0, len(p.codes))
	for code := range p.codes {
		codes = append(codes, code)
	}
	return codes
}

// ModifiedIsOpen reports that `modified = true/false` can never be
// closed — callers invoke this to drive filtersNotClosed.
func (p *Provider) ModifiedIsOpen() bool { return true }

// FilterByKind resolves `kind = v` over base codes.
func (p *Provider) FilterByKind(value string) []string {
	var out []string
	for code, c := range p.codes {
		if string(c.Kind) == value {
			out = append(out, code)
		}
	}
	return out
}

var _ provider.Provider = (*Provider)(nil)
var _ provider.Filterable = (*Provider)(nil)
