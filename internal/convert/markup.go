package convert

import (
	"encoding/xml"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var extraBlankLines = regexp.MustCompile(`\n[ \t]*(?:\n[ \t]*){2,}`)

// htmlBlocks end a line of text.
var htmlBlocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Title: true, atom.Table: true, atom.Ul: true, atom.Ol: true, atom.Section: true,
	atom.Article: true, atom.Header: true, atom.Footer: true, atom.Blockquote: true, atom.Pre: true,
	atom.Hr: true, atom.Address: true,
}

// htmlInline are the other elements removed from the text. Names outside
// both sets are not markup.
var htmlInline = map[atom.Atom]bool{
	atom.Html: true, atom.Head: true, atom.Body: true, atom.Meta: true, atom.Link: true,
	atom.Base: true, atom.Script: true, atom.Style: true, atom.Noscript: true,
	atom.Span: true, atom.A: true, atom.B: true, atom.I: true, atom.U: true, atom.S: true,
	atom.Em: true, atom.Strong: true, atom.Small: true, atom.Big: true, atom.Sup: true, atom.Sub: true,
	atom.Font: true, atom.Center: true, atom.Img: true, atom.Code: true, atom.Mark: true, atom.Abbr: true,
	atom.Strike: true, atom.Tt: true, atom.Td: true, atom.Th: true, atom.Thead: true, atom.Tbody: true,
	atom.Tfoot: true, atom.Caption: true, atom.Colgroup: true, atom.Col: true, atom.Label: true,
	atom.Form: true, atom.Input: true, atom.Nav: true, atom.Main: true, atom.Aside: true,
	atom.Figure: true, atom.Figcaption: true, atom.Dl: true, atom.Dt: true, atom.Dd: true,
}

// stripHTML returns the visible text of an HTML document. Table cells are
// separated by tabs and block elements end a line. Tags that are not HTML
// elements, such as a <nom> placeholder, are kept as written.
func stripHTML(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var out strings.Builder
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return tidyMarkupText(out.String())
		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := collapseSpaces(string(z.Text()))
			if text == " " && atLineStart(&out) {
				continue
			}
			out.WriteString(text)
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			switch {
			case !htmlBlocks[a] && !htmlInline[a]:
				if skip == 0 {
					out.Write(z.Raw())
				}
			case a == atom.Script || a == atom.Style:
				if tt == html.StartTagToken {
					skip++
				} else if tt == html.EndTagToken && skip > 0 {
					skip--
				}
			case a == atom.Td || a == atom.Th:
				if tt == html.EndTagToken {
					out.WriteByte('\t')
				}
			case htmlBlocks[a]:
				if a == atom.Br || a == atom.Hr || tt == html.EndTagToken {
					endLine(&out)
				}
			}
		}
	}
}

// stripXML returns the character data of an XML document, one line per
// element that holds text.
func stripXML(s string) string {
	dec := xml.NewDecoder(strings.NewReader(s))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	var out strings.Builder
	hasText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF || err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.CharData:
			if text := strings.TrimSpace(string(t)); text != "" {
				if hasText {
					out.WriteByte(' ')
				}
				out.WriteString(collapseSpaces(text))
				hasText = true
			}
		case xml.EndElement:
			if hasText {
				endLine(&out)
				hasText = false
			}
		}
	}
	return tidyMarkupText(out.String())
}

func atLineStart(b *strings.Builder) bool {
	s := b.String()
	return s == "" || strings.HasSuffix(s, "\n") || strings.HasSuffix(s, "\t")
}

func endLine(b *strings.Builder) {
	if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
		b.WriteByte('\n')
	}
}

func collapseSpaces(s string) string {
	if strings.TrimSpace(s) == "" {
		if s == "" {
			return ""
		}
		return " "
	}
	lead := s[0] == ' ' || s[0] == '\n' || s[0] == '\t' || s[0] == '\r'
	last := s[len(s)-1]
	trail := last == ' ' || last == '\n' || last == '\t' || last == '\r'
	out := strings.Join(strings.Fields(s), " ")
	if lead {
		out = " " + out
	}
	if trail {
		out += " "
	}
	return out
}

// tidyMarkupText trims every line and keeps at most one blank line in a row.
func tidyMarkupText(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.Trim(l, " \t")
	}
	s = strings.Join(lines, "\n")
	s = extraBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s) + "\n"
}
