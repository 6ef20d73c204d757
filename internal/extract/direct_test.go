package extract

import (
	"testing"

	"github.com/hurttlocker/docfill/internal/patterns"
)

func TestExtractDirect_StructuredInput(t *testing.T) {
	text := "Contact : jean.dupont@example.fr\n" +
		"Tél : 01 23 45 67 89\n" +
		"Date : 22/03/2025\n" +
		"Montant : 150,50 €\n"

	set := ExtractDirect(text)

	tests := []struct {
		name  string
		value string
		typ   patterns.VarType
	}{
		{"email", "jean.dupont@example.fr", patterns.TypeEmail},
		{"telephone", "01 23 45 67 89", patterns.TypePhone},
		{"date", "22/03/2025", patterns.TypeDate},
		{"montant", "150,50 €", patterns.TypeAmount},
	}
	for _, tt := range tests {
		v, ok := set.Get(tt.name)
		if !ok {
			t.Errorf("expected variable %q, got %v", tt.name, set.Names())
			continue
		}
		if v.CurrentValue != tt.value {
			t.Errorf("%s: expected value %q, got %q", tt.name, tt.value, v.CurrentValue)
		}
		if v.Type != tt.typ {
			t.Errorf("%s: expected type %s, got %s", tt.name, tt.typ, v.Type)
		}
		if v.Source != SourcePattern {
			t.Errorf("%s: expected source pattern, got %s", tt.name, v.Source)
		}
		if !v.Required {
			t.Errorf("%s: expected required", tt.name)
		}
	}
}

func TestExtractDirect_FirstMatchWins(t *testing.T) {
	set := ExtractDirect("Écrire à premier@example.fr ou second@example.fr")
	v, ok := set.Get("email")
	if !ok {
		t.Fatal("email not found")
	}
	if v.CurrentValue != "premier@example.fr" {
		t.Errorf("expected first email, got %q", v.CurrentValue)
	}
}

func TestExtractDirect_HarvestsPlaceholders(t *testing.T) {
	set := ExtractDirect("Bonjour {{nom}}, votre facture [reference] du <<date_facture>>.")

	if set.Len() != 3 {
		t.Fatalf("expected 3 variables, got %d: %v", set.Len(), set.Names())
	}
	for _, name := range []string{"nom", "reference", "date_facture"} {
		v, ok := set.Get(name)
		if !ok {
			t.Errorf("missing %q", name)
			continue
		}
		if v.Source != SourcePlaceholder || v.Confidence != 1.0 || v.CurrentValue != "" {
			t.Errorf("%s: unexpected descriptor %+v", name, v)
		}
	}
	if v, _ := set.Get("date_facture"); v.Type != patterns.TypeDate {
		t.Errorf("date_facture: expected date type, got %s", v.Type)
	}
}

func TestExtractDirect_PlaceholderOutranksPattern(t *testing.T) {
	set := ExtractDirect("Email : {email} (exemple : contact@example.fr)")
	v, ok := set.Get("email")
	if !ok {
		t.Fatal("email not found")
	}
	if v.Source != SourcePlaceholder {
		t.Errorf("expected declared placeholder to win, got source %s value %q", v.Source, v.CurrentValue)
	}
}

func TestExtractDirect_Empty(t *testing.T) {
	if set := ExtractDirect("   \n\t"); set.Len() != 0 {
		t.Errorf("expected no variables, got %v", set.Names())
	}
}

func TestExtractDirect_NameStaysOnOneLine(t *testing.T) {
	set := ExtractDirect("Monsieur Jean Dupont\nTotal TTC : 1 250,50 €")
	v, ok := set.Get("nom")
	if !ok {
		t.Fatal("nom not found")
	}
	if v.CurrentValue != "Jean Dupont" {
		t.Errorf("expected 'Jean Dupont', got %q", v.CurrentValue)
	}
}

func TestExtractDirect_InternationalPhoneKeepsPlus(t *testing.T) {
	set := ExtractDirect("Contact : Jean Dupont, Tél : +33 6 12 34 56 78, merci.")
	v, ok := set.Get("telephone")
	if !ok {
		t.Fatal("telephone not found")
	}
	if v.CurrentValue != "+33 6 12 34 56 78" {
		t.Errorf("expected the leading + to be kept, got %q", v.CurrentValue)
	}
}

func TestCleanValue(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  -- Jean   Dupont ;", "Jean Dupont"},
		{"(75011)", "75011"},
		{"150,50 €", "150,50 €"},
		{"1 250,50 €", "1 250,50 €"},
		{"...", ""},
		{"+33 6 12 34 56 78", "+33 6 12 34 56 78"},
		{"(+33 6 12 34 56 78).", "+33 6 12 34 56 78"},
		{"+ Jean", "Jean"},
		{"Dupont +", "Dupont"},
	}
	for _, tt := range tests {
		if got := cleanValue(tt.in); got != tt.want {
			t.Errorf("cleanValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVariableSet_CollisionRule(t *testing.T) {
	s := NewVariableSet()
	s.Put(VariableDescriptor{Name: "nom", CurrentValue: "a", Confidence: 0.5})
	s.Put(VariableDescriptor{Name: "NOM", CurrentValue: "b", Confidence: 0.7})
	if v, _ := s.Get("nom"); v.CurrentValue != "b" {
		t.Errorf("higher confidence should replace, got %q", v.CurrentValue)
	}

	if s.Put(VariableDescriptor{Name: "nom", CurrentValue: "c", Confidence: 0.6}) {
		t.Error("lower confidence candidate should be rejected")
	}
	if v, _ := s.Get("nom"); v.CurrentValue != "b" {
		t.Errorf("lower confidence replaced value: %q", v.CurrentValue)
	}

	s.Put(VariableDescriptor{Name: "Nom", CurrentValue: "d", Confidence: 0.7})
	if v, _ := s.Get("nom"); v.CurrentValue != "d" {
		t.Errorf("equal confidence: last found should win, got %q", v.CurrentValue)
	}
	if s.Len() != 1 {
		t.Errorf("names must stay unique, got %v", s.Names())
	}
}

func TestVariableSet_MergeFirstWins(t *testing.T) {
	first := NewVariableSet()
	first.Put(VariableDescriptor{Name: "nom", CurrentValue: "Dupont", Confidence: 0.1})
	second := NewVariableSet()
	second.Put(VariableDescriptor{Name: "nom", CurrentValue: "Martin", Confidence: 0.9})
	second.Put(VariableDescriptor{Name: "ville", CurrentValue: "Lyon"})

	added := first.MergeFirstWins(second)
	if added != 1 {
		t.Errorf("expected 1 added, got %d", added)
	}
	if v, _ := first.Get("nom"); v.CurrentValue != "Dupont" {
		t.Errorf("earlier variable overwritten: %q", v.CurrentValue)
	}
	names := first.Names()
	if len(names) != 2 || names[0] != "nom" || names[1] != "ville" {
		t.Errorf("unexpected order %v", names)
	}
}

func TestAnalysisResult_CloneIsIndependent(t *testing.T) {
	set := NewVariableSet()
	set.Put(VariableDescriptor{Name: "nom", CurrentValue: "Dupont"})
	r := newResult(set, MethodDirectRegex)
	c := r.Clone()
	c.Variables["nom"] = VariableDescriptor{Name: "nom", CurrentValue: "changed"}
	c.Order[0] = "x"
	if r.Variables["nom"].CurrentValue != "Dupont" || r.Order[0] != "nom" {
		t.Error("clone shares state with original")
	}
}
