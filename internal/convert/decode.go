package convert

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Encoding names reported by DecodeText.
const (
	EncodingUTF8      = "utf-8"
	EncodingLatin1    = "latin-1"
	EncodingCP1252    = "cp1252"
	EncodingISO88591  = "iso-8859-1"
	EncodingLossyUTF8 = "utf-8-lossy"
)

type candidate struct {
	name   string
	enc    encoding.Encoding
	reject func(string) bool
}

// The strict latin-1 pass rejects C1 controls: bytes 0x80-0x9F in a text
// file almost always mean cp1252 punctuation. The final iso-8859-1 pass
// accepts every byte.
var candidates = []candidate{
	{EncodingLatin1, charmap.ISO8859_1, hasC1},
	{EncodingCP1252, charmap.Windows1252, func(s string) bool {
		return strings.ContainsRune(s, utf8.RuneError) || hasC1(s)
	}},
	{EncodingISO88591, charmap.ISO8859_1, nil},
}

// DecodeText converts raw bytes to UTF-8, trying utf-8, latin-1, cp1252 and
// iso-8859-1 in that order. A leading UTF-8 byte order mark is dropped.
func DecodeText(data []byte) (string, string) {
	data = trimBOM(data)
	if utf8.Valid(data) {
		return string(data), EncodingUTF8
	}
	for _, c := range candidates {
		out, err := c.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		s := string(out)
		if c.reject != nil && c.reject(s) {
			continue
		}
		return s, c.name
	}
	return strings.ToValidUTF8(string(data), "�"), EncodingLossyUTF8
}

func trimBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func hasC1(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r >= 0x80 && r <= 0x9F }) >= 0
}
