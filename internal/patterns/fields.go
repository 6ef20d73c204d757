package patterns

import "regexp"

// FieldPattern is one direct-extraction rule: a regex whose first non-empty
// capture group is the value of variable Key.
type FieldPattern struct {
	Key        string
	Type       VarType
	Regex      *regexp.Regexp
	Confidence float64
}

// Patterns are compiled case-insensitive. Parts that rely on capitalisation
// opt out locally with (?-i:...).
func field(key string, t VarType, pattern string, confidence float64) FieldPattern {
	return FieldPattern{
		Key:        key,
		Type:       t,
		Regex:      regexp.MustCompile(`(?i)` + pattern),
		Confidence: confidence,
	}
}

const frenchMonths = `janvier|f[ée]vrier|mars|avril|mai|juin|juillet|ao[uû]t|septembre|octobre|novembre|d[ée]cembre`

var fieldPatterns = []FieldPattern{
	field("email", TypeEmail,
		`\b([a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,})\b`, 0.95),
	field("telephone", TypePhone,
		`((?:\+33\s?|\b0)[1-9](?:[ .\-]?\d{2}){4})\b`, 0.9),
	field("date", TypeDate,
		`\b(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{4}|\d{4}-\d{2}-\d{2})\b`, 0.85),
	field("date_lettres", TypeDate,
		`\b(\d{1,2}(?:er)?\s+(?:`+frenchMonths+`)\s+\d{4})\b`, 0.8),
	field("date_echeance", TypeDate,
		`[ée]ch[ée]ance\s*(?:le|du|:)?\s*:?\s*(\d{1,2}/\d{1,2}/\d{4})`, 0.85),
	field("montant", TypeAmount,
		`\b(\d{1,3}(?:[ .\x{00A0}\x{202F}]\d{3})*(?:,\d{1,2})?[ \x{00A0}]?(?:€|eur(?:os?)?\b))`, 0.85),
	field("montant_total", TypeAmount,
		`total\s*(?:ttc|ht)?\s*:?\s*(\d[\d .\x{00A0}]*(?:,\d{1,2})?)[ \x{00A0}]?(?:€|eur)`, 0.8),
	field("reference", TypeReference,
		`(?:r[ée]f[ée]rence|r[ée]f\.?|n°|num[ée]ro)\s*:?\s*((?-i:[A-Z0-9])[A-Za-z0-9\-/_]{2,})`, 0.8),
	field("numero_facture", TypeReference,
		`facture\s*(?:n°|no\.?|num[ée]ro)\s*:?\s*([A-Za-z0-9\-/_]{3,})`, 0.85),
	field("siret", TypeID,
		`\b(\d{3}\s?\d{3}\s?\d{3}\s?\d{5})\b`, 0.85),
	field("numero_tva", TypeID,
		`\b(FR\s?\d{2}\s?\d{3}\s?\d{3}\s?\d{3})\b`, 0.85),
	field("iban", TypeID,
		`\b((?-i:[A-Z]{2})\d{2}(?:\s?[A-Z0-9]{4}){3,7}(?:\s?[A-Z0-9]{1,3})?)\b`, 0.8),
	field("adresse", TypeAddress,
		`(\d{1,4}(?:\s?(?:bis|ter))?,?\s+(?:rue|avenue|av\.|boulevard|bd|place|chemin|all[ée]e|impasse|route|quai|cours)\s+[^\n,]+)`, 0.8),
	field("code_postal", TypePostalCode,
		`\b(\d{5})\s+(?-i:[A-Z])`, 0.7),
	field("ville", TypeCity,
		`\b\d{5}\s+((?-i:[A-Z])[\p{L}'\-]+(?:[ \-](?-i:[A-Z])[\p{L}'\-]+){0,2})`, 0.65),
	field("pays", TypeCountry,
		`\b(France|Belgique|Suisse|Luxembourg|Canada|Allemagne|Espagne|Italie)\b`, 0.6),
	field("nom", TypeText,
		`\b(?:M\.|Mme\.?|Mlle\.?|Monsieur|Madame|Ma[iî]tre)[ \t]+((?-i:[A-Z])[\p{L}'\-]+(?:[ \t]+(?-i:[A-Z])[\p{L}'\-]+){0,3})`, 0.8),
	field("societe", TypeText,
		`(?:soci[ée]t[ée]|entreprise|raison sociale)\s*:?\s*((?-i:[A-Z])[\p{L}\p{N}&'\-]+(?:[ \t]+(?-i:[A-Z])[\p{L}\p{N}&'\-]+){0,3})`, 0.7),
	field("quantite", TypeNumber,
		`(?:quantit[ée]|qt[ée]|nombre)\s*:?\s*(\d+(?:[.,]\d+)?)`, 0.7),
}

// FieldPatterns returns the direct-extraction rules in evaluation order.
func FieldPatterns() []FieldPattern {
	out := make([]FieldPattern, len(fieldPatterns))
	copy(out, fieldPatterns)
	return out
}

// Value shapes used when a variable's type cannot be derived from its name.
var (
	DateShape   = regexp.MustCompile(`^(?:\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}|\d{4}-\d{2}-\d{2}|\d{1,2}(?:er)?\s+(?i:` + frenchMonths + `)\s+\d{4})$`)
	AmountShape = regexp.MustCompile(`^-?\d{1,3}(?:[\s.\x{00A0}]?\d{3})*(?:[.,]\d{1,2})?\s?(?:€|EUR|euros?|\$)?$`)
	EmailShape  = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	PhoneShape  = regexp.MustCompile(`^(?:\+\d{1,3}[\s.\-]?)?\(?\d{1,4}\)?(?:[\s.\-]?\d{2,4}){2,5}$`)
	NumberShape = regexp.MustCompile(`^-?\d+$`)
)
