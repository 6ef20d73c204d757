package convert

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

const docxBody = "word/document.xml"

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") != docxBody {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return docxText(rc)
	}
	return "", errors.New("document.xml file not found")
}

// docxText walks WordprocessingML. Paragraphs end with a newline; inside a
// table, the paragraphs of a cell are joined by spaces, cells by tabs and
// rows by newlines.
func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var out strings.Builder
	var cell strings.Builder
	var row []string
	inText := false
	cellDepth := 0

	// para is where run text currently goes.
	para := func() *strings.Builder {
		if cellDepth > 0 {
			return &cell
		}
		return &out
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para().WriteByte('\t')
			case "br", "cr":
				para().WriteByte('\n')
			case "tc":
				cellDepth++
				if cellDepth == 1 {
					cell.Reset()
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if cellDepth > 0 {
					if cell.Len() > 0 && !strings.HasSuffix(cell.String(), " ") {
						cell.WriteByte(' ')
					}
				} else {
					out.WriteByte('\n')
				}
			case "tc":
				cellDepth--
				if cellDepth == 0 {
					row = append(row, strings.TrimSpace(cell.String()))
				}
			case "tr":
				if cellDepth == 0 {
					out.WriteString(strings.Join(row, "\t"))
					out.WriteByte('\n')
					row = row[:0]
				}
			}
		case xml.CharData:
			if inText {
				para().Write(t)
			}
		}
	}
	return strings.TrimSpace(out.String()), nil
}
