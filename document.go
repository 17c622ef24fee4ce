package formreport

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/porticus-lab/go-form-report/internal/pdf"
)

// Format is the file format of a rendered document.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat parses "pdf" or "xlsx" (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// Extension returns the file extension of the format, with the dot.
func (f Format) Extension() string { return "." + string(f) }

// RenderedDocument holds a generated file and provides helpers for common
// output forms such as raw bytes, base64 encoding, and streaming readers.
//
// A RenderedDocument is produced once per render call and never modified.
type RenderedDocument struct {
	format Format
	kind   string
	data   []byte
}

// NewDocument wraps data as a document of the given format for a report
// kind. The caller must not modify data afterwards.
func NewDocument(format Format, kind string, data []byte) *RenderedDocument {
	return &RenderedDocument{format: format, kind: kind, data: data}
}

// Bytes returns the raw file content.
func (d *RenderedDocument) Bytes() []byte {
	return d.data
}

// Base64 returns the content encoded as a standard base64 string (RFC 4648).
func (d *RenderedDocument) Base64() string {
	return base64.StdEncoding.EncodeToString(d.data)
}

// Reader returns a [*bytes.Reader] over the content.
func (d *RenderedDocument) Reader() *bytes.Reader {
	return bytes.NewReader(d.data)
}

// WriteTo writes the full content to w. It implements [io.WriterTo].
func (d *RenderedDocument) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(d.data)
	return int64(n), err
}

// WriteToFile writes the content to the file at path, creating it if needed.
func (d *RenderedDocument) WriteToFile(path string, perm os.FileMode) error {
	return os.WriteFile(path, d.data, perm)
}

// Len returns the size of the content in bytes.
func (d *RenderedDocument) Len() int {
	return len(d.data)
}

// Format returns the file format.
func (d *RenderedDocument) Format() Format { return d.format }

// Kind returns the report kind the document was rendered for.
func (d *RenderedDocument) Kind() string { return d.kind }

// ContentType returns the MIME type of the document.
func (d *RenderedDocument) ContentType() string { return d.format.ContentType() }

// Filename returns a download name such as "order-report.pdf".
func (d *RenderedDocument) Filename() string {
	return d.kind + "-report" + d.format.Extension()
}

// Digest returns the hex SHA-256 of the content.
func (d *RenderedDocument) Digest() string {
	sum := sha256.Sum256(d.data)
	return hex.EncodeToString(sum[:])
}

// Text extracts the plain text of a PDF document, pages separated by a form
// feed. Other formats return [ErrUnsupportedFormat].
func (d *RenderedDocument) Text() (string, error) {
	if d.format != FormatPDF {
		return "", fmt.Errorf("%w: text of %s", ErrUnsupportedFormat, d.format)
	}
	doc, err := pdf.Load(d.data)
	if err != nil {
		return "", err
	}
	pages, err := pdf.NewExtractor(doc).ExtractAll()
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\f"), nil
}
