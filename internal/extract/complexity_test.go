package extract

import (
	"strings"
	"testing"
)

func TestEstimateComplexity_Simple(t *testing.T) {
	r := EstimateComplexity("Bonjour Jean, merci pour votre message")
	if r.Level != Simple {
		t.Errorf("expected simple, got %s (score %d)", r.Level, r.Score)
	}
	if r.DistinctWords != 6 {
		t.Errorf("expected 6 distinct words, got %d", r.DistinctWords)
	}
}

func TestEstimateComplexity_TableHeavy(t *testing.T) {
	text := strings.Repeat("| 12 | 34,5 | ref-99 |\n", 600)
	r := EstimateComplexity(text)
	if r.Level != Complex {
		t.Errorf("expected complex, got %s (score %d)", r.Level, r.Score)
	}
	if r.SeparatorDensity <= separatorHigh {
		t.Errorf("separator density too low: %f", r.SeparatorDensity)
	}
	if r.NumericDensity <= numericHigh {
		t.Errorf("numeric density too low: %f", r.NumericDensity)
	}
}

func TestEstimateComplexity_Empty(t *testing.T) {
	if got := Estimate(""); got != Simple {
		t.Errorf("empty text should be simple, got %s", got)
	}
}

func TestProfiles(t *testing.T) {
	for _, c := range []Complexity{Simple, Medium, Complex} {
		p := ProfileFor(c)
		if p.Timeout <= 0 || p.Timeout > MaxCallTimeout {
			t.Errorf("%s: timeout %v outside (0, %v]", c, p.Timeout, MaxCallTimeout)
		}
		if p.MaxSections < 1 || p.MaxSections > 2 {
			t.Errorf("%s: section budget %d outside [1,2]", c, p.MaxSections)
		}
	}
	if ProfileFor(Simple).Timeout >= ProfileFor(Complex).Timeout {
		t.Error("simple documents should get a shorter timeout than complex ones")
	}
	if ProfileFor(Complex).MaxSections >= ProfileFor(Simple).MaxSections {
		t.Error("complex documents should analyze fewer sections")
	}
}
