// Package hgvs implements the HGVS variant-nomenclature provider, an
// external-service-backed validator. Locate
// returns a handle iff the remote validator accepts the expression;
// validator rejection surfaces as a diagnostic, never as an error —
// only a transport failure (timeout, connection refused, non-2xx from
// the validator itself) is an error. No hierarchy, iteration or
// filters; subsumption testing always fails with "not supported".
package hgvs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/lang"
	"github.com/gofhir/termserver/pkg/provider"
)

const System = "http://varnomen.hgvs.org"

// DefaultTimeout bounds a single validation round trip.
const DefaultTimeout = 5 * time.Second

type handle struct {
	expr       string
	refSeq     string
	changeType string
}

func (handle) Tag() string { return System }

// ValidationResponse is the decoded shape of the remote validator's
// response body.
type ValidationResponse struct {
	Valid      bool   `json:"valid"`
	Reason     string `json:"reason"`
	RefSeq     string `json:"refSeq"`
	ChangeType string `json:"changeType"`
}

type Provider struct {
	httpClient  *http.Client
	validateURL string
	version     string
}

type Option func(*Provider)

func WithHTTPClient(c *http.Client) Option { return func(p *Provider) { p.httpClient = c } }
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// New targets validateURL (expected to accept a `?expr=` query and
// return a JSON ValidationResponse body).
func New(validateURL, version string, opts ...Option) *Provider {
	p := &Provider{
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		validateURL: validateURL,
		version:     version,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) System() string                         { return System }
func (p *Provider) Version() string                        { return p.version }
func (p *Provider) Description() string                    { return "HGVS Sequence Variant Nomenclature" }
func (p *Provider) HasParents() bool                       { return false }
func (p *Provider) ContentMode() concept.CodeSystemContent { return concept.ContentNotPresent }
func (p *Provider) HasAnyDisplays(_ lang.Languages) bool   { return false }
func (p *Provider) ListSupplements() []string              { return nil }
func (p *Provider) TotalCount() (int, bool)                { return 0, false }

// Locate submits expr to the remote validator. A validator-side
// rejection (Valid=false) returns a diagnostic message, not an error;
// only a transport-level failure returns an error.
func (p *Provider) Locate(ctx context.Context, expr string) (provider.LocateResult, error) {
	if expr == "" {
		return provider.LocateResult{Message: "Empty code"}, nil
	}
	reqURL := fmt.Sprintf("%s?expr=%s", p.validateURL, url.QueryEscape(expr))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return provider.LocateResult{}, fmt.Errorf("hgvs: build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return provider.LocateResult{}, fmt.Errorf("hgvs: validator unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return provider.LocateResult{}, fmt.Errorf("hgvs: validator returned status %d", resp.StatusCode)
	}
	var out ValidationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return provider.LocateResult{}, fmt.Errorf("hgvs: decode validator response: %w", err)
	}
	if !out.Valid {
		reason := out.Reason
		if reason == "" {
			reason = fmt.Sprintf("%q rejected by HGVS validator", expr)
		}
		return provider.LocateResult{Message: reason}, nil
	}
	return provider.LocateResult{Context: handle{expr: expr, refSeq: out.RefSeq, changeType: out.ChangeType}}, nil
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

func (p *Provider) Properties(_ context.Context, c provider.Context) ([]concept.Property, error) {
	h, err := p.own(c)
	if err != nil {
		return nil, err
	}
	return []concept.Property{
		{Code: "refSeq", Value: h.refSeq},
		{Code: "changeType", Value: h.changeType},
	}, nil
}

// SubsumesTest always fails with "not supported" -- HGVS variant
// expressions have no subsumption relation.
func (p *Provider) SubsumesTest(context.Context, string, string) (provider.Subsumption, error) {
	return "", fmt.Errorf("hgvs: subsumption testing: %w", provider.ErrNotSupported)
}

var _ provider.Provider = (*Provider)(nil)
