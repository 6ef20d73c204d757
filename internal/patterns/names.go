package patterns

import (
	"strings"
)

// nameTypes maps well-known variable names to their type. Lookup is on the
// normalized (lower-case, underscore) form of the name.
var nameTypes = map[string]VarType{
	"email":          TypeEmail,
	"e_mail":         TypeEmail,
	"mail":           TypeEmail,
	"courriel":       TypeEmail,
	"telephone":      TypePhone,
	"téléphone":      TypePhone,
	"tel":            TypePhone,
	"tél":            TypePhone,
	"phone":          TypePhone,
	"portable":       TypePhone,
	"mobile":         TypePhone,
	"fax":            TypePhone,
	"date":           TypeDate,
	"date_lettres":   TypeDate,
	"date_echeance":  TypeDate,
	"date_naissance": TypeDate,
	"date_signature": TypeDate,
	"echeance":       TypeDate,
	"montant":        TypeAmount,
	"montant_total":  TypeAmount,
	"montant_ht":     TypeAmount,
	"montant_ttc":    TypeAmount,
	"prix":           TypeAmount,
	"total":          TypeAmount,
	"somme":          TypeAmount,
	"tarif":          TypeAmount,
	"salaire":        TypeAmount,
	"loyer":          TypeAmount,
	"quantite":       TypeNumber,
	"quantité":       TypeNumber,
	"nombre":         TypeNumber,
	"age":            TypeNumber,
	"âge":            TypeNumber,
	"duree":          TypeNumber,
	"adresse":        TypeAddress,
	"address":        TypeAddress,
	"rue":            TypeAddress,
	"code_postal":    TypePostalCode,
	"cp":             TypePostalCode,
	"zip":            TypePostalCode,
	"postal_code":    TypePostalCode,
	"ville":          TypeCity,
	"city":           TypeCity,
	"commune":        TypeCity,
	"pays":           TypeCountry,
	"country":        TypeCountry,
	"siret":          TypeID,
	"siren":          TypeID,
	"numero_tva":     TypeID,
	"tva":            TypeID,
	"iban":           TypeID,
	"id":             TypeID,
	"identifiant":    TypeID,
	"reference":      TypeReference,
	"référence":      TypeReference,
	"ref":            TypeReference,
	"numero_facture": TypeReference,
	"numero_contrat": TypeReference,
	"numero_dossier": TypeReference,
}

// nameHints are fragments checked, in order, when a name is not in nameTypes.
// "date_livraison" → date, "prix_unitaire" → amount.
var nameHints = []struct {
	fragment string
	typ      VarType
}{
	{"email", TypeEmail},
	{"mail", TypeEmail},
	{"telephone", TypePhone},
	{"phone", TypePhone},
	{"tel_", TypePhone},
	{"date", TypeDate},
	{"montant", TypeAmount},
	{"prix", TypeAmount},
	{"total", TypeAmount},
	{"amount", TypeAmount},
	{"code_postal", TypePostalCode},
	{"adresse", TypeAddress},
	{"address", TypeAddress},
	{"ville", TypeCity},
	{"pays", TypeCountry},
	{"reference", TypeReference},
	{"numero", TypeReference},
	{"siret", TypeID},
	{"iban", TypeID},
	{"quantite", TypeNumber},
	{"nombre", TypeNumber},
}

var descriptions = map[string]string{
	"nom":              "Nom complet",
	"prenom":           "Prénom",
	"email":            "Adresse email",
	"telephone":        "Numéro de téléphone",
	"date":             "Date",
	"date_lettres":     "Date (en toutes lettres)",
	"date_echeance":    "Date d'échéance",
	"montant":          "Montant",
	"montant_total":    "Montant total",
	"reference":        "Référence",
	"numero_facture":   "Numéro de facture",
	"siret":            "Numéro SIRET",
	"numero_tva":       "Numéro de TVA intracommunautaire",
	"iban":             "IBAN",
	"adresse":          "Adresse postale",
	"code_postal":      "Code postal",
	"ville":            "Ville",
	"pays":             "Pays",
	"societe":          "Raison sociale",
	"quantite":         "Quantité",
	"contenu_document": "Contenu du document",
}

// NormalizeName lower-cases a variable name and folds spaces and dashes into
// underscores, the form used for table lookups.
func NormalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(n)
}

// TypeForName returns the type implied by a variable name. The boolean is
// false when the name carries no type signal.
func TypeForName(name string) (VarType, bool) {
	n := NormalizeName(name)
	if t, ok := nameTypes[n]; ok {
		return t, true
	}
	for _, h := range nameHints {
		if strings.Contains(n, h.fragment) {
			return h.typ, true
		}
	}
	return TypeText, false
}

// TypeForValue infers a type from the shape of a discovered value.
func TypeForValue(value string) (VarType, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return TypeText, false
	}
	switch {
	case DateShape.MatchString(v):
		return TypeDate, true
	case EmailShape.MatchString(v):
		return TypeEmail, true
	case PhoneShape.MatchString(v) && digitCount(v) >= 9:
		return TypePhone, true
	case NumberShape.MatchString(v):
		return TypeNumber, true
	case AmountShape.MatchString(v):
		return TypeAmount, true
	}
	return TypeText, false
}

// GuessType applies the name table first, then the value shape, then falls
// back to text.
func GuessType(name, value string) VarType {
	if t, ok := TypeForName(name); ok {
		return t
	}
	if t, ok := TypeForValue(value); ok {
		return t
	}
	return TypeText
}

// Describe returns the human-readable label for a variable name.
func Describe(name string) string {
	if d, ok := descriptions[NormalizeName(name)]; ok {
		return d
	}
	return "Value of " + name
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
