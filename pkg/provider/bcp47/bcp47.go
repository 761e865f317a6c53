// Package bcp47 implements the BCP-47 language tag provider: a
// structural validator for language tags. Locate accepts well-formed
// tags; designation generation emits the language name
// plus region/script-qualified variants. Filters on language/script/
// region existence are declared not-closed; iteration and expansion
// are unsupported.
package bcp47

import (
	"context"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/gofhir/termserver/pkg/concept"
	lng "github.com/gofhir/termserver/pkg/lang"
	"github.com/gofhir/termserver/pkg/provider"
)

const System = "urn:ietf:bcp:47"

type handle struct {
	raw string
	tag language.Tag
}

func (handle) Tag() string { return System }

type Provider struct {
	version string
}

func New(version string) *Provider { return &Provider{version: version} }

func (p *Provider) System() string                         { return System }
func (p *Provider) Version() string                        { return p.version }
func (p *Provider) Description() string                    { return "IETF BCP 47 Language Tags" }
func (p *Provider) HasParents() bool                       { return false }
func (p *Provider) ContentMode() concept.CodeSystemContent { return concept.ContentNotPresent }
func (p *Provider) HasAnyDisplays(_ lng.Languages) bool    { return true }
func (p *Provider) ListSupplements() []string              { return nil }
func (p *Provider) TotalCount() (int, bool)                { return 0, false }

// Locate accepts code iff it parses as a well-formed BCP-47 tag.
// language.Parse rejects malformed tags outright but also reports
// ValueError for tags that parse structurally yet use unknown
// subtags; this provider validates structural well-formedness so both
// the tag and the lenient ValueError case are accepted.
func (p *Provider) Locate(_ context.Context, code string) (provider.LocateResult, error) {
	if code == "" {
		return provider.LocateResult{Message: "Empty code"}, nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		if _, ok := err.(language.ValueError); !ok {
			return provider.LocateResult{Message: fmt.Sprintf("%q is not a well-formed BCP-47 tag: %v", code, err)}, nil
		}
	}
	return provider.LocateResult{Context: handle{raw: code, tag: tag}}, nil
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
	return h.raw, err
}

func (p *Provider) Display(_ context.Context, c provider.Context) (string, error) {
	h, err := p.own(c)
	if err != nil {
		return "", err
	}
	return display.English.Tags().Name(h.tag), nil
}

// Designations emits the language name plus region/script-qualified
// variants, e.g. for "en-US": "English", "English (United States)".
func (p *Provider) Designations(_ context.Context, c provider.Context, out *[]concept.Designation) error {
	h, err := p.own(c)
	if err != nil {
		return err
	}
	base, _ := h.tag.Base()
	baseName := display.English.Languages().Name(base)
	*out = append(*out, concept.Designation{Language: "en", Value: baseName})

	// A Region()/Script() confidence below Exact means the subtag was
	// inferred from the base language, not written in the tag.
	if region, conf := h.tag.Region(); conf == language.Exact {
		regionName := display.English.Regions().Name(region)
		*out = append(*out, concept.Designation{Language: "en", Value: fmt.Sprintf("%s (%s)", baseName, regionName)})
	}
	if script, conf := h.tag.Script(); conf == language.Exact {
		scriptName := display.English.Scripts().Name(script)
		*out = append(*out, concept.Designation{Language: "en", Value: fmt.Sprintf("%s (%s)", baseName, scriptName)})
	}
	return nil
}

func (p *Provider) IsAbstract(provider.Context) bool   { return false }
func (p *Provider) IsInactive(provider.Context) bool   { return false }
func (p *Provider) IsDeprecated(provider.Context) bool { return false }
func (p *Provider) GetStatus(provider.Context) string  { return "" }

func (p *Provider) ItemWeight(provider.Context) (float64, bool)    { return 0, false }
func (p *Provider) Extensions(provider.Context) []concept.Property { return nil }

func (p *Provider) Properties(_ context.Context, c provider.Context) ([]concept.Property, error) {
	h, err := p.own(c)
	if err != nil {
		return nil, err
	}
	base, _ := h.tag.Base()
	props := []concept.Property{{Code: "language", Value: base.String()}}
	if region, conf := h.tag.Region(); conf == language.Exact {
		props = append(props, concept.Property{Code: "region", Value: region.String()})
	}
	if script, conf := h.tag.Script(); conf == language.Exact {
		props = append(props, concept.Property{Code: "script", Value: script.String()})
	}
	return props, nil
}

// --- Filterable ---
//
// All three filters are declared "not closed":
// whether a subtag is present can be checked per-handle but the full
// set of tags having (or lacking) that subtag is unbounded, so these
// never expose size()/iteration, only check().
func (p *Provider) DoesFilter(property string, op concept.FilterOp, value string) bool {
	switch property {
	case "language", "script", "region":
		return op == concept.OpExists
	}
	return false
}

// Check implements the open filter's membership test for
// `language|script|region exists {true,false}`.
func (p *Provider) Check(c provider.Context, property string, want bool) (bool, error) {
	h, err := p.own(c)
	if err != nil {
		return false, err
	}
	var has bool
	switch property {
	case "language":
		base, _ := h.tag.Base()
		has = base.String() != "und"
	case "script":
		_, conf := h.tag.Script()
		has = conf == language.Exact
	case "region":
		_, conf := h.tag.Region()
		has = conf == language.Exact
	default:
		return false, fmt.Errorf("bcp47: unsupported filter property %q", property)
	}
	return has == want, nil
}

var _ provider.Provider = (*Provider)(nil)
var _ provider.Filterable = (*Provider)(nil)
