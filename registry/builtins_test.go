package registry

import (
	"context"
	"testing"

	"github.com/gofhir/termserver/pkg/provider/bcp47"
	"github.com/gofhir/termserver/pkg/provider/cpt"
	"github.com/gofhir/termserver/pkg/provider/ucum"
)

func TestRegisterBuiltins_Empty(t *testing.T) {
	p := NewProviders()
	if err := p.RegisterBuiltins(context.Background(), BuiltinConfig{}); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	if _, ok := p.ProviderFor(cpt.System); ok {
		t.Error("cpt should not be registered without CPTVersion configured")
	}
}

func TestRegisterBuiltins_NoDSNFamilies(t *testing.T) {
	p := NewProviders()
	err := p.RegisterBuiltins(context.Background(), BuiltinConfig{
		CPTVersion:   "2024",
		UCUMVersion:  "2024-01",
		BCP47Version: "2024",
	})
	if err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}

	if _, ok := p.ProviderFor(cpt.System); !ok {
		t.Error("expected cpt provider registered")
	}
	if _, ok := p.ProviderFor(ucum.System); !ok {
		t.Error("expected ucum provider registered")
	}
	if _, ok := p.ProviderFor(bcp47.System); !ok {
		t.Error("expected bcp47 provider registered")
	}
}

func TestRegisterBuiltins_BadDSN(t *testing.T) {
	p := NewProviders()
	err := p.RegisterBuiltins(context.Background(), BuiltinConfig{
		LOINCDSN: "not a valid connection string",
	})
	if err == nil {
		t.Fatal("expected an error for a malformed loinc DSN")
	}
}
