package substitute

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/hurttlocker/docfill/internal/patterns"
)

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"2006-01-02",
	"02/01/06",
	time.RFC3339,
}

// Format renders value for a variable of type t. Values that cannot be
// parsed for their type are returned unchanged.
func Format(t patterns.VarType, value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return value
	}
	switch t {
	case patterns.TypeDate:
		return formatDate(v)
	case patterns.TypeAmount:
		return formatAmount(v)
	case patterns.TypePhone:
		return formatPhone(v)
	case patterns.TypePostalCode:
		return formatPostalCode(v)
	case patterns.TypeCity, patterns.TypeCountry:
		return titleCase(v)
	case patterns.TypeEmail:
		return strings.ToLower(v)
	case patterns.TypeNumber:
		return strings.Join(strings.Fields(v), "")
	case patterns.TypeText, patterns.TypeAddress, patterns.TypeID, patterns.TypeReference:
		return v
	}
	return value
}

func formatDate(v string) string {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, v); err == nil {
			return d.Format("02/01/2006")
		}
	}
	return v
}

// formatAmount renders a money value as "1 234,56", keeping a trailing euro
// sign when the input had one.
func formatAmount(v string) string {
	f, euro, ok := parseAmount(v)
	if !ok {
		return v
	}
	out := groupThousands(f)
	if euro {
		out += " €"
	}
	return out
}

func parseAmount(v string) (float64, bool, bool) {
	s := strings.ToLower(v)
	euro := false
	for _, suffix := range []string{"€", "euros", "euro", "eur"} {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSuffix(s, suffix)
			euro = true
			break
		}
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\'' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, false, false
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		// The later separator is the decimal one.
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case dot >= 0:
		// "1.234" and "1.234.567" group thousands; "12.5" is a decimal.
		if strings.Count(s, ".") > 1 || len(s)-dot-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	if strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9') && r != '.' && r != '-'
	}) >= 0 {
		return 0, false, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, false
	}
	return f, euro, true
}

func groupThousands(f float64) string {
	neg := f < 0
	if neg {
		f = -f
	}
	s := strconv.FormatFloat(f, 'f', 2, 64)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

// formatPhone groups French numbers by pairs: "06 12 34 56 78" or
// "+33 6 12 34 56 78".
func formatPhone(v string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, v)

	switch {
	case strings.HasPrefix(strings.TrimSpace(v), "+33") && len(digits) == 11:
		return "+33 " + digits[2:3] + " " + pairs(digits[3:])
	case len(digits) == 10 && digits[0] == '0':
		return pairs(digits)
	}
	return v
}

func pairs(digits string) string {
	parts := make([]string, 0, len(digits)/2+1)
	for i := 0; i < len(digits); i += 2 {
		end := i + 2
		if end > len(digits) {
			end = len(digits)
		}
		parts = append(parts, digits[i:end])
	}
	return strings.Join(parts, " ")
}

func formatPostalCode(v string) string {
	compact := strings.Join(strings.Fields(v), "")
	for _, r := range compact {
		if r < '0' || r > '9' {
			return v
		}
	}
	return compact
}
