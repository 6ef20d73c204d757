// Package convert turns input documents into plain text for analysis.
//
// Plain-text formats are decoded with DecodeText, .docx files are read from
// word/document.xml and PDFs through ledongthuc/pdf. Images are recognized
// but rejected: OCR happens outside docfill.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// DefaultMaxSize is the largest file ToText accepts.
const DefaultMaxSize = 20 << 20

// Format is a supported input family.
type Format string

const (
	FormatText  Format = "text"
	FormatDOCX  Format = "docx"
	FormatPDF   Format = "pdf"
	FormatImage Format = "image"
)

var formats = map[string]Format{
	".txt":  FormatText,
	".md":   FormatText,
	".csv":  FormatText,
	".json": FormatText,
	".xml":  FormatText,
	".html": FormatText,
	".htm":  FormatText,
	".rtf":  FormatText,
	".docx": FormatDOCX,
	".pdf":  FormatPDF,
	".png":  FormatImage,
	".jpg":  FormatImage,
	".jpeg": FormatImage,
	".tif":  FormatImage,
	".tiff": FormatImage,
	".bmp":  FormatImage,
}

// Document is the text of one converted file.
type Document struct {
	Path     string `json:"path"`
	Text     string `json:"text"`
	Format   Format `json:"format"`
	Encoding string `json:"encoding,omitempty"`
	MIME     string `json:"mime"`
	Size     int64  `json:"size"`
}

// Converter reads documents from disk.
type Converter struct {
	MaxSize int64
	logger  *zap.Logger
}

// NewConverter creates a converter. A nil logger disables logging.
func NewConverter(logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{MaxSize: DefaultMaxSize, logger: logger.Named("convert")}
}

// FormatOf returns the format for path's extension.
func FormatOf(path string) (Format, bool) {
	f, ok := formats[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// Validate checks that path exists, is a non-empty regular file within the
// size limit, and has a supported extension.
func (c *Converter) Validate(path string) (Format, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, inputError(ErrNotFound, path, "le fichier n'existe pas")
		}
		return "", nil, inputError(ErrUnreadable, path, "%v", err)
	}
	if info.IsDir() {
		return "", nil, inputError(ErrUnsupported, path, "un dossier n'est pas un document")
	}
	if info.Size() == 0 {
		return "", nil, inputError(ErrEmpty, path, "le fichier est vide")
	}
	if limit := c.maxSize(); info.Size() > limit {
		return "", nil, inputError(ErrTooLarge, path, "%d octets (maximum %d)", info.Size(), limit)
	}
	format, ok := FormatOf(path)
	if !ok {
		return "", nil, inputError(ErrUnsupported, path, "extension %q non prise en charge", filepath.Ext(path))
	}
	if format == FormatImage {
		return "", nil, inputError(ErrUnsupported, path, "les images nécessitent une reconnaissance de caractères externe")
	}
	return format, info, nil
}

// ToText validates and converts the file at path.
func (c *Converter) ToText(ctx context.Context, path string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	format, info, err := c.Validate(path)
	if err != nil {
		return Document{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, inputError(ErrUnreadable, path, "%v", err)
	}
	mime := mimetype.Detect(data)
	doc := Document{Path: path, Format: format, MIME: mime.String(), Size: info.Size()}

	switch format {
	case FormatText:
		if !isText(mime) {
			return Document{}, inputError(ErrUnsupported, path, "contenu binaire (%s)", mime.String())
		}
		doc.Text, doc.Encoding = DecodeText(data)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".rtf":
			doc.Text = stripRTF(doc.Text)
		case ".html", ".htm":
			doc.Text = stripHTML(doc.Text)
		case ".xml":
			doc.Text = stripXML(doc.Text)
		}
	case FormatDOCX:
		if !inFamily(mime, "application/zip") {
			return Document{}, inputError(ErrUnsupported, path, "document Word invalide (%s)", mime.String())
		}
		doc.Text, err = extractDOCX(data)
	case FormatPDF:
		if !inFamily(mime, "application/pdf") {
			return Document{}, inputError(ErrUnsupported, path, "PDF invalide (%s)", mime.String())
		}
		doc.Text, err = extractPDF(data)
	}
	if err != nil {
		return Document{}, fmt.Errorf("convert %s (%s): %w", path, format, err)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return Document{}, inputError(ErrEmpty, path, "aucun texte extractible")
	}

	c.logger.Debug("document converted",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.String("mime", doc.MIME),
		zap.String("encoding", doc.Encoding),
		zap.Int("chars", len(doc.Text)))
	return doc, nil
}

func (c *Converter) maxSize() int64 {
	if c.MaxSize <= 0 {
		return DefaultMaxSize
	}
	return c.MaxSize
}

// isText accepts any MIME whose ancestry includes text/plain, plus JSON.
func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") || m.Is("application/json") || strings.HasPrefix(m.String(), "text/") {
			return true
		}
	}
	return false
}

// inFamily reports whether m or one of its parents is want.
func inFamily(m *mimetype.MIME, want string) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(want) {
			return true
		}
	}
	return false
}
