package loader

import (
	"testing"

	"github.com/gofhir/fhir/r4"

	"github.com/gofhir/termserver/pkg/concept"
)

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }
func intp(i int32) *int32   { return &i }

func TestR4Converter_ConvertCodeSystem(t *testing.T) {
	converter := NewR4Converter()

	t.Run("nil input", func(t *testing.T) {
		if result := converter.ConvertCodeSystem(nil); result != nil {
			t.Error("expected nil result for nil input")
		}
	})

	t.Run("basic conversion with nested concepts", func(t *testing.T) {
		status := r4.PublicationStatusActive
		content := r4.CodeSystemContentModeComplete
		hierarchy := r4.CodeSystemHierarchyMeaningIsA

		cs := &r4.CodeSystem{
			Url:              strp("http://example.org/CodeSystem/test"),
			Version:          strp("1.0.0"),
			Name:             strp("Test"),
			Status:           &status,
			Content:          &content,
			CaseSensitive:    boolp(true),
			HierarchyMeaning: &hierarchy,
			Concept: []r4.CodeSystemConcept{
				{
					Code:    strp("root"),
					Display: strp("Root"),
					Concept: []r4.CodeSystemConcept{
						{Code: strp("child"), Display: strp("Child")},
					},
				},
			},
		}

		result := converter.ConvertCodeSystem(cs)

		if result.URL != "http://example.org/CodeSystem/test" {
			t.Errorf("URL = %q", result.URL)
		}
		if result.Content != concept.ContentComplete {
			t.Errorf("Content = %q; want %q", result.Content, concept.ContentComplete)
		}
		if !result.CaseSensitive {
			t.Error("CaseSensitive = false; want true")
		}
		if len(result.Concept) != 1 || result.Concept[0].Code != "root" {
			t.Fatalf("Concept = %+v", result.Concept)
		}
		if len(result.Concept[0].Concept) != 1 || result.Concept[0].Concept[0].Code != "child" {
			t.Fatalf("nested Concept = %+v", result.Concept[0].Concept)
		}
	})

	t.Run("properties and filters", func(t *testing.T) {
		propType := r4.PropertyTypeCode
		cs := &r4.CodeSystem{
			Url: strp("http://example.org/CodeSystem/test"),
			Property: []r4.CodeSystemProperty{
				{Code: strp("status"), Type: &propType},
			},
			Filter: []r4.CodeSystemFilter{
				{Code: strp("concept"), Operator: []r4.FilterOperator{r4.FilterOperatorIsA}},
			},
		}

		result := converter.ConvertCodeSystem(cs)

		if len(result.Property) != 1 || result.Property[0].Code != "status" {
			t.Fatalf("Property = %+v", result.Property)
		}
		if len(result.FilterDef) != 1 || result.FilterDef[0].Operator[0] != "is-a" {
			t.Fatalf("FilterDef = %+v", result.FilterDef)
		}
	})
}

func TestR4Converter_ConvertValueSet(t *testing.T) {
	converter := NewR4Converter()

	t.Run("nil input", func(t *testing.T) {
		if result := converter.ConvertValueSet(nil); result != nil {
			t.Error("expected nil result for nil input")
		}
	})

	t.Run("compose include and exclude", func(t *testing.T) {
		op := r4.FilterOperatorIsA
		vs := &r4.ValueSet{
			Url: strp("http://example.org/ValueSet/test"),
			Compose: &r4.ValueSetCompose{
				Include: []r4.ValueSetComposeInclude{
					{
						System: strp("http://example.org/CodeSystem/test"),
						Filter: []r4.ValueSetComposeIncludeFilter{
							{Property: strp("concept"), Op: &op, Value: strp("root")},
						},
					},
				},
				Exclude: []r4.ValueSetComposeInclude{
					{
						System:  strp("http://example.org/CodeSystem/test"),
						Concept: []r4.ValueSetComposeIncludeConcept{{Code: strp("deprecated")}},
					},
				},
			},
		}

		result := converter.ConvertValueSet(vs)

		if len(result.Compose.Include) != 1 {
			t.Fatalf("Include = %+v", result.Compose.Include)
		}
		if result.Compose.Include[0].Filter[0].Op != concept.OpIsA {
			t.Errorf("Filter.Op = %q; want %q", result.Compose.Include[0].Filter[0].Op, concept.OpIsA)
		}
		if len(result.Compose.Exclude) != 1 || result.Compose.Exclude[0].Concept[0].Code != "deprecated" {
			t.Fatalf("Exclude = %+v", result.Compose.Exclude)
		}
	})
}

func TestR4Converter_ConvertConceptMap(t *testing.T) {
	converter := NewR4Converter()

	t.Run("nil input", func(t *testing.T) {
		if result := converter.ConvertConceptMap(nil); result != nil {
			t.Error("expected nil result for nil input")
		}
	})

	t.Run("group element target", func(t *testing.T) {
		equivalence := r4.ConceptMapEquivalenceEquivalent
		cm := &r4.ConceptMap{
			Url:             strp("http://example.org/ConceptMap/test"),
			SourceCanonical: strp("http://example.org/ValueSet/source"),
			TargetCanonical: strp("http://example.org/ValueSet/target"),
			Group: []r4.ConceptMapGroup{
				{
					Source: strp("http://example.org/CodeSystem/source"),
					Target: strp("http://example.org/CodeSystem/target"),
					Element: []r4.ConceptMapGroupElement{
						{
							Code: strp("A"),
							Target: []r4.ConceptMapGroupElementTarget{
								{Code: strp("B"), Equivalence: &equivalence},
							},
						},
					},
				},
			},
		}

		result := converter.ConvertConceptMap(cm)

		if len(result.Group) != 1 {
			t.Fatalf("Group = %+v", result.Group)
		}
		g := result.Group[0]
		if g.Source != "http://example.org/CodeSystem/source" {
			t.Errorf("Group.Source = %q", g.Source)
		}
		if len(g.Element) != 1 || g.Element[0].Code != "A" {
			t.Fatalf("Element = %+v", g.Element)
		}
		target := g.Element[0].Target[0]
		if target.Code != "B" {
			t.Errorf("Target.Code = %q; want %q", target.Code, "B")
		}
		if target.Equivalence != concept.Equivalent {
			t.Errorf("Target.Equivalence = %q; want %q", target.Equivalence, concept.Equivalent)
		}
	})
}

func TestDerefString(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if result := derefString(nil); result != "" {
			t.Errorf("derefString(nil) = %q; want \"\"", result)
		}
	})

	t.Run("non-nil", func(t *testing.T) {
		s := "test"
		if result := derefString(&s); result != "test" {
			t.Errorf("derefString(&\"test\") = %q; want \"test\"", result)
		}
	})
}

func TestDerefBool(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if result := derefBool(nil); result != false {
			t.Errorf("derefBool(nil) = %v; want false", result)
		}
	})

	t.Run("true", func(t *testing.T) {
		b := true
		if result := derefBool(&b); result != true {
			t.Errorf("derefBool(&true) = %v; want true", result)
		}
	})

	t.Run("false", func(t *testing.T) {
		b := false
		if result := derefBool(&b); result != false {
			t.Errorf("derefBool(&false) = %v; want false", result)
		}
	})
}
