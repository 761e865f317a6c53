package registry

import (
	"context"
	"fmt"

	"github.com/gofhir/termserver/pkg/provider/bcp47"
	"github.com/gofhir/termserver/pkg/provider/cpt"
	"github.com/gofhir/termserver/pkg/provider/hgvs"
	"github.com/gofhir/termserver/pkg/provider/loinc"
	"github.com/gofhir/termserver/pkg/provider/ndc"
	"github.com/gofhir/termserver/pkg/provider/omop"
	"github.com/gofhir/termserver/pkg/provider/rxnorm"
	"github.com/gofhir/termserver/pkg/provider/snomed"
	"github.com/gofhir/termserver/pkg/provider/ucum"
	"github.com/gofhir/termserver/pkg/sqlstore"
)

// BuiltinConfig configures the fixed provider families beyond the
// in-memory fhircs provider (which is wired per loaded CodeSystem
// resource instead, see RegisterCodeSystem). Every
// field is optional: a family's backing store is an opaque handle
// supplied by this factory at startup, so a family with no
// configuration is simply skipped rather than failing startup.
type BuiltinConfig struct {
	SNOMEDVersion string
	// SNOMEDWildcardCap overrides the ECL wildcard result bound; 0 keeps
	// the evaluator's default.
	SNOMEDWildcardCap int

	LOINCDSN     string
	LOINCVersion string

	RxNormDSN     string
	RxNormVersion string

	NDCDSN     string
	NDCVersion string

	OMOPDSN     string
	OMOPVersion string

	CPTVersion string

	UCUMVersion string

	HGVSValidateURL string
	HGVSVersion     string

	BCP47Version string
}

// RegisterBuiltins wires every configured builtin provider family into
// p. It returns the first connection error encountered; providers
// already registered before the failing one stay registered, since a
// missing vocabulary backend shouldn't prevent the others from serving
// traffic.
func (p *Providers) RegisterBuiltins(ctx context.Context, cfg BuiltinConfig) error {
	if cfg.SNOMEDVersion != "" {
		// The concept graph itself is a precompiled cache; an empty map here stands in for a release
		// not yet loaded, matching fhircs's "provider exists, has no
		// concepts yet" startup shape rather than refusing to boot.
		prov := snomed.New(cfg.SNOMEDVersion, map[string]*snomed.RawConcept{})
		if cfg.SNOMEDWildcardCap > 0 {
			prov.SetWildcardCap(cfg.SNOMEDWildcardCap)
		}
		p.Register(prov.System(), prov)
	}

	if cfg.LOINCDSN != "" {
		store, err := sqlstore.Open(ctx, cfg.LOINCDSN)
		if err != nil {
			return fmt.Errorf("registry: opening loinc store: %w", err)
		}
		prov := loinc.New(store, cfg.LOINCVersion)
		p.Register(prov.System(), prov)
	}

	if cfg.RxNormDSN != "" {
		store, err := sqlstore.Open(ctx, cfg.RxNormDSN)
		if err != nil {
			return fmt.Errorf("registry: opening rxnorm store: %w", err)
		}
		prov := rxnorm.New(store, cfg.RxNormVersion)
		p.Register(prov.System(), prov)
	}

	if cfg.NDCDSN != "" {
		store, err := sqlstore.Open(ctx, cfg.NDCDSN)
		if err != nil {
			return fmt.Errorf("registry: opening ndc store: %w", err)
		}
		prov := ndc.New(store, cfg.NDCVersion)
		p.Register(prov.System(), prov)
	}

	if cfg.OMOPDSN != "" {
		store, err := sqlstore.Open(ctx, cfg.OMOPDSN)
		if err != nil {
			return fmt.Errorf("registry: opening omop store: %w", err)
		}
		prov := omop.New(store, cfg.OMOPVersion)
		p.Register(prov.System(), prov)
	}

	if cfg.CPTVersion != "" {
		prov := cpt.NewStandard(cfg.CPTVersion)
		p.Register(prov.System(), prov)
	}

	if cfg.UCUMVersion != "" {
		prov := ucum.New(cfg.UCUMVersion)
		p.Register(prov.System(), prov)
	}

	if cfg.HGVSValidateURL != "" {
		prov := hgvs.New(cfg.HGVSValidateURL, cfg.HGVSVersion)
		p.Register(prov.System(), prov)
	}

	if cfg.BCP47Version != "" {
		prov := bcp47.New(cfg.BCP47Version)
		p.Register(prov.System(), prov)
	}

	return nil
}
