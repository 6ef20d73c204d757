package extract

import (
	"testing"

	"github.com/hurttlocker/docfill/internal/patterns"
)

func candidatesFor(cands []Candidate, key string) []Candidate {
	var out []Candidate
	for _, c := range cands {
		if c.Key == key {
			out = append(out, c)
		}
	}
	return out
}

func TestScoreCandidates_CivilityWithContext(t *testing.T) {
	text := "Entre les soussignés : Monsieur Jean Dupont, demeurant à Lyon"
	noms := candidatesFor(ScoreCandidates(text), "nom")
	if len(noms) == 0 {
		t.Fatal("expected nom candidates")
	}
	best := noms[0]
	if best.Value != "Jean Dupont" {
		t.Errorf("expected 'Jean Dupont', got %q", best.Value)
	}
	if best.Confidence < 0.99 {
		t.Errorf("expected clamped confidence 1.0, got %f", best.Confidence)
	}
}

func TestScoreCandidates_StopwordPenalty(t *testing.T) {
	noms := candidatesFor(ScoreCandidates("Article Premier des conditions"), "nom")
	if len(noms) != 1 {
		t.Fatalf("expected one generic candidate, got %+v", noms)
	}
	if noms[0].Confidence >= 0.4 {
		t.Errorf("stopword-led name should score below base 0.4, got %f", noms[0].Confidence)
	}
}

func TestScoreCandidates_AmountRules(t *testing.T) {
	montants := candidatesFor(ScoreCandidates("Total TTC : 1 250,50 €"), "montant")
	if len(montants) == 0 {
		t.Fatal("expected montant candidates")
	}
	if montants[0].Value != "1 250,50" {
		t.Errorf("expected '1 250,50', got %q", montants[0].Value)
	}
	if montants[0].Confidence < 0.99 {
		t.Errorf("labelled amount with cents should reach 1.0, got %f", montants[0].Confidence)
	}
	for _, c := range montants {
		if c.Confidence < 0 || c.Confidence > 1 {
			t.Errorf("confidence out of range: %f", c.Confidence)
		}
	}
}

func TestExtractWithScoring_ReplacesWeakerDirectMatch(t *testing.T) {
	text := "Client : Monsieur Jean Dupont\nTotal TTC : 1 250,50 €"
	set := ExtractWithScoring(text)

	nom, ok := set.Get("nom")
	if !ok {
		t.Fatal("nom not found")
	}
	if nom.Source != SourceScoring || nom.CurrentValue != "Jean Dupont" {
		t.Errorf("unexpected nom %+v", nom)
	}

	montant, ok := set.Get("montant")
	if !ok {
		t.Fatal("montant not found")
	}
	if montant.Type != patterns.TypeAmount {
		t.Errorf("expected amount type, got %s", montant.Type)
	}
	if montant.Source != SourceScoring {
		t.Errorf("expected scoring source, got %s", montant.Source)
	}
}

func TestExtractWithScoring_KeepsPlaceholders(t *testing.T) {
	set := ExtractWithScoring("Nom : {nom}\nMonsieur Jean Dupont")
	v, _ := set.Get("nom")
	if v.Source != SourcePlaceholder {
		t.Errorf("declared placeholder replaced by %s", v.Source)
	}
}
