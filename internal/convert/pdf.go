package convert

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"
)

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var (
	rtfPar     = regexp.MustCompile(`\\(?:par|line)\b ?`)
	rtfHex     = regexp.MustCompile(`\\'([0-9a-fA-F]{2})`)
	rtfControl = regexp.MustCompile(`\\[a-zA-Z]+-?\d* ?|\\[^a-zA-Z]`)
	rtfGroups  = regexp.MustCompile(`[{}]`)
)

// stripRTF drops control words and group braces, keeping the visible text.
// Hex escapes are read as cp1252. Destinations such as font tables are not
// interpreted.
func stripRTF(s string) string {
	s = rtfPar.ReplaceAllString(s, "\n")
	s = rtfHex.ReplaceAllStringFunc(s, func(m string) string {
		b, err := strconv.ParseUint(m[2:], 16, 8)
		if err != nil {
			return ""
		}
		return string(charmap.Windows1252.DecodeByte(byte(b)))
	})
	s = rtfControl.ReplaceAllString(s, "")
	s = rtfGroups.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
