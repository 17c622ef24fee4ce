package formreport

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/text/encoding/charmap"
)

// PDFRenderer lays out reports as PDF pages in pure Go. Output depends only
// on the input, the template and its assets.
type PDFRenderer struct {
	cfg config
}

// NewPDFRenderer returns a PDFRenderer. It honours [WithTemplates],
// [WithTemplate], [WithAssetDir] and [WithLogger].
func NewPDFRenderer(opts ...Option) *PDFRenderer {
	return &PDFRenderer{cfg: newConfig(opts)}
}

// Format returns [FormatPDF].
func (r *PDFRenderer) Format() Format { return FormatPDF }

// Render implements [Renderer].
func (r *PDFRenderer) Render(ctx context.Context, in *FormInput) (*RenderedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tpl, err := r.cfg.templateFor(in)
	if err != nil {
		return nil, err
	}
	lay, err := tpl.resolve(in, r.cfg.assetDir)
	if err != nil {
		return nil, err
	}

	page := tpl.Page.resolved()
	width, height := page.portraitMillimetres()
	orientation := "P"
	if page.Orientation == Landscape {
		orientation = "L"
	}
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: width, Ht: height},
	})
	doc.SetCreationDate(documentEpoch)
	doc.SetModificationDate(documentEpoch)
	doc.SetCatalogSort(true)
	doc.SetCreator("formreport", true)
	doc.SetTitle(lay.title, true)

	m := page.Margin
	doc.SetMargins(m.Left*10, m.Top*10, m.Right*10)
	doc.SetAutoPageBreak(true, m.Bottom*10)
	doc.AliasNbPages("{nb}")

	font, err := r.font(doc, tpl.Font)
	if err != nil {
		return nil, err
	}
	if err := font.check(lay); err != nil {
		return nil, err
	}
	family, tr := font.family, font.tr
	size := tpl.Font.Size
	if size <= 0 {
		size = 11
	}

	if lay.footer != "" {
		footer := tr(lay.footer)
		doc.SetFooterFunc(func() {
			doc.SetY(-m.Bottom * 10)
			doc.SetFont(family, "", size-2)
			doc.CellFormat(0, 5, footer, "", 0, "C", false, 0, "")
		})
	}

	doc.AddPage()
	pageW, _ := doc.GetPageSize()
	left, top, right, _ := doc.GetMargins()
	textW := pageW - left - right

	if lay.image != nil {
		const name = "report-image"
		opts := fpdf.ImageOptions{ImageType: strings.ToUpper(lay.image.Format)}
		doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(lay.image.Data))
		doc.ImageOptions(name, pageW-right-lay.width, top, lay.width, 0, false, opts, 0, "")
		doc.SetXY(left, top)
		textW -= lay.width + 4
	}

	if lay.title != "" {
		doc.SetFont(family, "B", size+5)
		doc.MultiCell(textW, lineHeight(size+5), tr(lay.title), "", "L", false)
		doc.Ln(3)
	}
	for _, l := range lay.lines {
		fs := l.size
		if fs <= 0 {
			fs = size
		}
		style := ""
		if l.bold {
			style = "B"
		}
		lh := lineHeight(fs)
		if l.label == "" {
			doc.SetFont(family, style, fs)
			doc.MultiCell(textW, lh, tr(l.value), "", "L", false)
			continue
		}
		label := tr(l.label + ": ")
		doc.SetFont(family, "B", fs)
		labelW := doc.GetStringWidth(label) + 1
		doc.CellFormat(labelW, lh, label, "", 0, "L", false, 0, "")
		doc.SetFont(family, style, fs)
		doc.MultiCell(textW-labelW, lh, tr(l.value), "", "L", false)
	}

	if doc.Err() {
		return nil, &FormatError{Err: doc.Error()}
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, &FormatError{Err: err}
	}
	r.cfg.logger.Debug("rendered pdf", "report", in.Kind(), "bytes", buf.Len())
	return NewDocument(FormatPDF, in.Kind(), buf.Bytes()), nil
}

// goFamily names the embedded Go fonts.
const goFamily = "Go"

// coreFonts are the standard PDF fonts usable without embedding.
var coreFonts = map[string]bool{"helvetica": true, "arial": true, "times": true, "courier": true}

// pdfFont is a font registered with a document.
type pdfFont struct {
	family string
	asset  string
	// tr converts UTF-8 text to the font's encoding.
	tr func(string) string
	// covers reports whether the font can show r.
	covers func(r rune) bool
}

// check fails with a *FormatError when some text of lay has a character
// the font cannot show.
func (f *pdfFont) check(lay *layout) error {
	texts := []string{lay.title, lay.footer}
	for _, l := range lay.lines {
		texts = append(texts, l.label, l.value)
	}
	for _, text := range texts {
		for _, c := range text {
			if unicode.IsControl(c) || f.covers(c) {
				continue
			}
			return &FormatError{Asset: f.asset, Err: fmt.Errorf("font %s cannot show %q (U+%04X); configure a font that covers it", f.family, c, c)}
		}
	}
	return nil
}

// font registers the template font. A core family without a Path uses the
// standard PDF font, limited to Windows-1252. A Path embeds that TrueType
// file; otherwise the Go fonts are embedded.
func (r *PDFRenderer) font(doc *fpdf.Fpdf, f Font) (*pdfFont, error) {
	if f.Path == "" && coreFonts[strings.ToLower(f.Family)] {
		return &pdfFont{
			family: f.Family,
			asset:  "font " + f.Family,
			tr:     doc.UnicodeTranslatorFromDescriptor(""),
			covers: func(c rune) bool {
				_, ok := charmap.Windows1252.EncodeRune(c)
				return ok
			},
		}, nil
	}

	family, asset := goFamily, "font "+goFamily
	regular, bold := goregular.TTF, gobold.TTF
	if f.Path != "" {
		path := assetPath(r.cfg.assetDir, f.Path)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &FormatError{Asset: path, Err: err}
		}
		if !isTrueType(data) {
			return nil, &FormatError{Asset: path, Err: fmt.Errorf("not a TrueType font")}
		}
		family, asset = f.Family, path
		if family == "" {
			family = "report"
		}
		regular, bold = data, data
	}

	parsed, err := sfnt.Parse(regular)
	if err != nil {
		return nil, &FormatError{Asset: asset, Err: fmt.Errorf("parsing font: %w", err)}
	}
	doc.AddUTF8FontFromBytes(family, "", regular)
	doc.AddUTF8FontFromBytes(family, "B", bold)
	if doc.Err() {
		return nil, &FormatError{Asset: asset, Err: fmt.Errorf("loading font: %w", doc.Error())}
	}
	var buf sfnt.Buffer
	return &pdfFont{
		family: family,
		asset:  asset,
		tr:     func(s string) string { return s },
		covers: func(c rune) bool {
			gi, err := parsed.GlyphIndex(&buf, c)
			return err == nil && gi != 0
		},
	}, nil
}

func isTrueType(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	switch string(data[:4]) {
	case "\x00\x01\x00\x00", "true":
		return true
	}
	return false
}

// lineHeight returns a comfortable line height in mm for a font size in
// points.
func lineHeight(pt float64) float64 {
	return pt * 0.5
}
