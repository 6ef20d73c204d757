package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// MinSplitLength is the size below which a document is one section.
	MinSplitLength = 500
	// SectionTarget is the approximate size of packed and fixed sections.
	SectionTarget = 500
	// longDocument triggers fixed windows when structure yields too few sections.
	longDocument       = 2000
	minLongDocSections = 3
)

// sectionMarker is one structural split rule. When group > 0 the split point
// is the start of that capture group instead of the whole match.
type sectionMarker struct {
	re    *regexp.Regexp
	group int
}

var sectionMarkers = []sectionMarker{
	// Numbered headings: "1. Objet", "2.3) Durée"
	{re: regexp.MustCompile(`(?m)^[ \t]*\d+(?:\.\d+)*[.)]?[ \t]+\p{Lu}`)},
	// ALL-CAPS heading lines: "CONDITIONS GÉNÉRALES"
	{re: regexp.MustCompile(`(?m)^[ \t]*\p{Lu}[\p{Lu}\d \t'’:\-]{4,}\r?$`)},
	// Decorated separators: "=====", "*** Titre ***"
	{re: regexp.MustCompile(`(?m)^[ \t]*[=*#~]{3,}.*$`)},
	// Horizontal rules
	{re: regexp.MustCompile(`(?m)^[ \t]*[-_]{3,}[ \t]*\r?$`)},
	// Markdown headings
	{re: regexp.MustCompile(`(?m)^#{1,6}[ \t]+\S`)},
	// Paragraph starting with a capital after a blank line
	{re: regexp.MustCompile(`\r?\n[ \t]*\r?\n[ \t]*(\p{Lu})`), group: 1},
	// Literal structural keywords
	{re: regexp.MustCompile(`(?m)^[ \t]*(?:ARTICLE|ANNEXE|SECTION|CHAPITRE|PARTIE)\b`)},
	{re: regexp.MustCompile(`(?m)^[ \t]*(?:Article|Annexe|Section|Chapitre|Partie)[ \t]+[\dIVXLC]+`)},
}

// Line endings may be \n or \r\n; converted text keeps them as found.
var blankLineRE = regexp.MustCompile(`\r?\n[ \t]*\r?\n`)

// SplitSections breaks text into ordered, non-empty sections whose
// concatenation is text. Structural markers are tried first, then paragraph
// packing, then fixed windows for long documents.
func SplitSections(text string) []string {
	if len(text) < MinSplitLength {
		return []string{text}
	}

	sections := splitAtMarkers(text)
	if len(sections) <= 1 {
		sections = packParagraphs(text, SectionTarget)
	}
	if len(text) > longDocument && len(sections) < minLongDocSections {
		sections = fixedWindows(text, SectionTarget)
	}
	if len(sections) == 0 {
		return []string{text}
	}
	return sections
}

func splitAtMarkers(text string) []string {
	points := map[int]struct{}{0: {}, len(text): {}}
	for _, m := range sectionMarkers {
		for _, loc := range m.re.FindAllStringSubmatchIndex(text, -1) {
			at := loc[0]
			if m.group > 0 && len(loc) > 2*m.group+1 && loc[2*m.group] >= 0 {
				at = loc[2*m.group]
			}
			points[at] = struct{}{}
		}
	}

	bounds := make([]int, 0, len(points))
	for p := range points {
		bounds = append(bounds, p)
	}
	sort.Ints(bounds)

	pieces := make([]string, 0, len(bounds))
	for i := 0; i+1 < len(bounds); i++ {
		if bounds[i] == bounds[i+1] {
			continue
		}
		pieces = append(pieces, text[bounds[i]:bounds[i+1]])
	}
	return mergeBlank(pieces)
}

// packParagraphs splits on blank lines, keeping each separator with the
// paragraph before it, and greedily packs paragraphs into buckets of about
// target bytes.
func packParagraphs(text string, target int) []string {
	var paragraphs []string
	prev := 0
	for _, loc := range blankLineRE.FindAllStringIndex(text, -1) {
		paragraphs = append(paragraphs, text[prev:loc[1]])
		prev = loc[1]
	}
	if prev < len(text) {
		paragraphs = append(paragraphs, text[prev:])
	}

	var out []string
	var cur strings.Builder
	for _, p := range paragraphs {
		if cur.Len() > 0 && cur.Len()+len(p) > target {
			out = append(out, cur.String())
			cur.Reset()
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return mergeBlank(out)
}

// fixedWindows cuts text into size-byte windows, moving each cut forward to
// the next rune boundary.
func fixedWindows(text string, size int) []string {
	var out []string
	for start := 0; start < len(text); {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			for end < len(text) && !utf8.RuneStart(text[end]) {
				end++
			}
		}
		out = append(out, text[start:end])
		start = end
	}
	return mergeBlank(out)
}

// mergeBlank folds whitespace-only pieces into their neighbour so every
// returned section has content and coverage is preserved.
func mergeBlank(pieces []string) []string {
	out := make([]string, 0, len(pieces))
	pending := ""
	for _, p := range pieces {
		if strings.TrimSpace(p) == "" {
			if len(out) > 0 {
				out[len(out)-1] += p
			} else {
				pending += p
			}
			continue
		}
		out = append(out, pending+p)
		pending = ""
	}
	if pending != "" {
		// Only whitespace in total: keep it as a single section.
		out = append(out, pending)
	}
	return out
}
