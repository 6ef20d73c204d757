// Package patterns holds the static tables shared by variable detection and
// substitution: placeholder delimiter syntaxes, field regexes for common
// real-world data shapes, and the name → type / name → description lookups.
//
// Nothing in this package is mutable after init. Extraction and substitution
// both read Delimiters(), so a variable detected under one syntax is always
// substitutable under the same syntax.
package patterns

import (
	"fmt"
	"strings"
)

// VarType is the closed set of semantic variable types.
type VarType int

const (
	TypeText VarType = iota
	TypeDate
	TypeNumber
	TypeAmount
	TypeEmail
	TypePhone
	TypeAddress
	TypePostalCode
	TypeCity
	TypeCountry
	TypeID
	TypeReference
)

var varTypeNames = [...]string{
	TypeText:       "text",
	TypeDate:       "date",
	TypeNumber:     "number",
	TypeAmount:     "amount",
	TypeEmail:      "email",
	TypePhone:      "phone",
	TypeAddress:    "address",
	TypePostalCode: "postal_code",
	TypeCity:       "city",
	TypeCountry:    "country",
	TypeID:         "id",
	TypeReference:  "reference",
}

// AllVarTypes returns every VarType in declaration order.
func AllVarTypes() []VarType {
	out := make([]VarType, len(varTypeNames))
	for i := range varTypeNames {
		out[i] = VarType(i)
	}
	return out
}

func (t VarType) String() string {
	if t < 0 || int(t) >= len(varTypeNames) {
		return fmt.Sprintf("VarType(%d)", int(t))
	}
	return varTypeNames[t]
}

// ParseVarType maps a type tag back to its VarType. Matching ignores case and
// surrounding whitespace.
func ParseVarType(s string) (VarType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range varTypeNames {
		if name == s {
			return VarType(i), nil
		}
	}
	return TypeText, fmt.Errorf("unknown variable type %q", s)
}

// MarshalText encodes the type as its tag so JSON and YAML carry "date",
// "amount", ... rather than integers.
func (t VarType) MarshalText() ([]byte, error) {
	if t < 0 || int(t) >= len(varTypeNames) {
		return nil, fmt.Errorf("invalid variable type %d", int(t))
	}
	return []byte(varTypeNames[t]), nil
}

// UnmarshalText decodes a type tag. Unknown tags decode to TypeText so that
// loosely-typed input never fails a whole document.
func (t *VarType) UnmarshalText(b []byte) error {
	parsed, err := ParseVarType(string(b))
	if err != nil {
		*t = TypeText
		return nil
	}
	*t = parsed
	return nil
}
