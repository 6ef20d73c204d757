package substitute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hurttlocker/docfill/internal/extract"
	"github.com/hurttlocker/docfill/internal/patterns"
)

func TestSubstitute_AllDelimiters(t *testing.T) {
	e := NewEngine(nil)
	template := "{name} {{name}} [name] <name> ${name} $name$ %name% «name» [[name]] <<name>>"

	res := e.Substitute(template, map[string]any{"name": "X"})

	assert.Equal(t, "X X X X X X X X X X", res.Text)
	assert.Empty(t, res.Unresolved)
	assert.Equal(t, 10, res.Replacements)
	assert.False(t, res.UsedFallback)
}

func TestSubstitute_EndToEnd(t *testing.T) {
	e := NewEngine(nil)
	template := "Nom: {nom}\nEmail: {email}\nDate: {date}"

	res := e.Substitute(template, map[string]any{
		"nom":   "Dupont",
		"email": "dupont@example.com",
		"date":  "22/03/2025",
	})

	assert.Equal(t, "Nom: Dupont\nEmail: dupont@example.com\nDate: 22/03/2025", res.Text)
	assert.Empty(t, res.Unresolved)
}

func TestSubstitute_PartialFill(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e := NewEngine(zap.New(core))
	template := "Nom: {nom}\nEmail: {email}\nDate: {date}"

	res := e.Substitute(template, map[string]any{
		"nom":  "Dupont",
		"date": "22/03/2025",
	})

	assert.Equal(t, "Nom: Dupont\nEmail: {email}\nDate: 22/03/2025", res.Text)
	assert.Equal(t, []string{"{email}"}, res.Unresolved)
	assert.Equal(t, 1, logs.FilterMessage("unresolved placeholders after substitution").Len())
}

func TestSubstitute_CaseVariants(t *testing.T) {
	e := NewEngine(nil)
	values := map[string]any{"nom": "Dupont"}

	assert.Equal(t, "Dupont", e.Substitute("{NOM}", values).Text)
	assert.Equal(t, "Dupont", e.Substitute("{Nom}", values).Text)
	assert.Equal(t, "Dupont", e.Substitute("[[nom]]", values).Text)
	assert.Equal(t, "Dupont", e.Substitute("{nom}", map[string]any{"NOM": "Dupont"}).Text)
}

func TestSubstitute_Idempotent(t *testing.T) {
	e := NewEngine(nil)
	template := "Nom: {nom}, Ville: [ville], Email: {email}, Total: %montant%"
	values := map[string]any{"nom": "Dupont", "ville": "Lyon", "montant": "150,50 €"}

	once := e.Substitute(template, values)
	twice := e.Substitute(once.Text, values)

	assert.Equal(t, once.Text, twice.Text)
	assert.Equal(t, []string{"{email}"}, twice.Unresolved)
}

func TestSubstitute_PreservesStructure(t *testing.T) {
	e := NewEngine(nil)
	template := "  Madame {nom},\n\n\tMerci.\r\n{nom}  "
	res := e.Substitute(template, map[string]any{"nom": "Curie"})
	assert.Equal(t, "  Madame Curie,\n\n\tMerci.\r\nCurie  ", res.Text)
}

func TestSubstitute_ValueConversion(t *testing.T) {
	e := NewEngine(nil)
	res := e.Substitute("[{vide}] {n} {f} {ok}", map[string]any{
		"vide": nil,
		"n":    42,
		"f":    1250.5,
		"ok":   true,
	})
	assert.Equal(t, "[] 42 1250.5 true", res.Text)
}

func TestSubstitute_FallbackUsesValues(t *testing.T) {
	e := NewEngine(nil)
	res := e.Substitute("Aucun marqueur ici, Dupont.", map[string]any{"nom": "Dupont"})
	assert.Equal(t, "Aucun marqueur ici, Dupont.", res.Text)
	assert.True(t, res.UsedFallback)
}

func TestFill_ReplacesSamples(t *testing.T) {
	e := NewEngine(nil)
	template := "Cher Jean Dupont, votre facture du 22/03/2025 à Pau."

	res := e.Fill(template,
		map[string]any{"nom": "Marie Curie", "date": "01/04/2025", "ville": "Metz"},
		map[string]string{"nom": "Jean Dupont", "date": "22/03/2025", "ville": "Pau"},
	)

	assert.Equal(t, "Cher Marie Curie, votre facture du 01/04/2025 à Pau.", res.Text)
	assert.True(t, res.UsedFallback)
	assert.Equal(t, 2, res.Replacements)
}

func TestFill_MarkersPreventChaining(t *testing.T) {
	e := NewEngine(nil)
	res := e.Fill("Jean Dupont et Bob Smith",
		map[string]any{"a": "Bob Smith", "b": "Jean Dupont"},
		map[string]string{"a": "Jean Dupont", "b": "Bob Smith"},
	)
	assert.Equal(t, "Bob Smith et Jean Dupont", res.Text)
}

func TestFill_PlaceholdersTakePrecedence(t *testing.T) {
	e := NewEngine(nil)
	res := e.Fill("Jean Dupont / {nom}",
		map[string]any{"nom": "Marie Curie"},
		map[string]string{"nom": "Jean Dupont"},
	)
	assert.Equal(t, "Jean Dupont / Marie Curie", res.Text)
	assert.False(t, res.UsedFallback)
}

func TestFillTyped(t *testing.T) {
	e := NewEngine(nil)
	vars := map[string]extract.VariableDescriptor{
		"date":    {Name: "date", Type: patterns.TypeDate},
		"montant": {Name: "montant", Type: patterns.TypeAmount},
		"ville":   {Name: "ville", Type: patterns.TypeCity},
	}
	res := e.FillTyped("Le {date} à {ville}, montant {montant} ({note})", map[string]any{
		"date":    "2025-03-22",
		"montant": "1250.5",
		"ville":   "saint-étienne",
		"note":    "brut",
	}, nil, vars)
	assert.Equal(t, "Le 22/03/2025 à Saint-Étienne, montant 1 250,50 (brut)", res.Text)
}

func TestFillTyped_FormatsFallbackValues(t *testing.T) {
	e := NewEngine(nil)
	vars := map[string]extract.VariableDescriptor{
		"date": {Name: "date", Type: patterns.TypeDate},
	}
	res := e.FillTyped("Facture du 12/05/2025", map[string]any{"date": "2025-06-01"},
		map[string]string{"date": "12/05/2025"}, vars)
	assert.True(t, res.UsedFallback)
	assert.Equal(t, "Facture du 01/06/2025", res.Text)
}

func TestSubstitute_SpacedNames(t *testing.T) {
	res := NewEngine(nil).Substitute("Cher {Nom du client}, échéance {{date de fin}}.", map[string]any{
		"nom du client": "Marie Curie",
		"date de fin":   "30/06/2025",
	})
	assert.Equal(t, "Cher Marie Curie, échéance 30/06/2025.", res.Text)
	assert.Empty(t, res.Unresolved)
	assert.Equal(t, 2, res.Replacements)
}

func TestUnresolved_Distinct(t *testing.T) {
	assert.Equal(t, []string{"{a}", "[b]"}, Unresolved("{a} {a} [b] texte"))
	assert.Empty(t, Unresolved("rien à signaler"))
}

func TestPlaceholders_SharedScanner(t *testing.T) {
	got := Placeholders("Bonjour {{prenom}} {nom}")
	require.Len(t, got, 2)
	assert.Equal(t, "prenom", got[0].Name)
	assert.Equal(t, "{{", got[0].Delimiter.Open)
	assert.Equal(t, "{nom}", got[1].Token)
}

func TestFill_InternationalPhoneSample(t *testing.T) {
	e := NewEngine(nil)
	template := "Contact : Jean Dupont, Tél : +33 6 12 34 56 78, merci."
	samples := extract.ExtractDirect(template)
	tel, ok := samples.Get("telephone")
	require.True(t, ok)

	res := e.Fill(template,
		map[string]any{"telephone": "+33 7 00 00 00 00"},
		map[string]string{"telephone": tel.CurrentValue},
	)

	assert.Equal(t, "Contact : Jean Dupont, Tél : +33 7 00 00 00 00, merci.", res.Text)
	assert.NotContains(t, res.Text, "++")
	assert.True(t, res.UsedFallback)
}
