package formreport

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"
)

// SpreadsheetRenderer writes a report as a worksheet with a header row of
// field labels and one row of values. Image fields are embedded as
// pictures anchored in their cell.
type SpreadsheetRenderer struct {
	cfg config
}

// NewSpreadsheetRenderer returns a SpreadsheetRenderer. It honours
// [WithTemplates], [WithTemplate] and [WithLogger]; only the template's
// sheet name and title are used.
func NewSpreadsheetRenderer(opts ...Option) *SpreadsheetRenderer {
	return &SpreadsheetRenderer{cfg: newConfig(opts)}
}

// Format returns [FormatXLSX].
func (r *SpreadsheetRenderer) Format() Format { return FormatXLSX }

// Render implements [Renderer].
func (r *SpreadsheetRenderer) Render(ctx context.Context, in *FormInput) (*RenderedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tpl, err := r.cfg.templateFor(in)
	if err != nil {
		return nil, err
	}
	sheet := tpl.Sheet
	if sheet == "" {
		sheet = in.Kind()
	}
	title, err := expand(tpl.Title, in.Context())
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, &FormatError{Asset: "sheet " + sheet, Err: err}
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:          title,
		Creator:        "formreport",
		LastModifiedBy: "formreport",
		Created:        documentEpoch.Format("2006-01-02T15:04:05Z"),
		Modified:       documentEpoch.Format("2006-01-02T15:04:05Z"),
	}); err != nil {
		return nil, &FormatError{Err: err}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, &FormatError{Err: err}
	}

	for i, v := range in.Values() {
		spec, _ := in.Schema().Field(v.Field)
		head, _ := excelize.CoordinatesToCellName(i+1, 1)
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(sheet, head, spec.Label); err != nil {
			return nil, &FormatError{Err: err}
		}
		if err := f.SetCellStyle(sheet, head, head, bold); err != nil {
			return nil, &FormatError{Err: err}
		}
		if !v.Set {
			continue
		}
		switch v.Kind {
		case FieldNumber:
			err = f.SetCellValue(sheet, cell, v.Number)
		case FieldImage:
			err = f.AddPictureFromBytes(sheet, cell, &excelize.Picture{
				Extension: "." + v.Image.Format,
				File:      v.Image.Data,
				Format:    &excelize.GraphicOptions{AutoFit: true, AltText: v.Image.Name},
			})
		default:
			err = f.SetCellValue(sheet, cell, v.Text)
		}
		if err != nil {
			return nil, &FormatError{Asset: v.Field, Err: err}
		}
	}
	if n := len(in.Schema().Fields); n > 0 {
		last, _ := excelize.ColumnNumberToName(n)
		if err := f.SetColWidth(sheet, "A", last, 20); err != nil {
			return nil, &FormatError{Err: err}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, &FormatError{Err: err}
	}
	data, err := canonicalZip(buf.Bytes())
	if err != nil {
		return nil, &FormatError{Err: err}
	}
	r.cfg.logger.Debug("rendered spreadsheet", "report", in.Kind(), "bytes", len(data))
	return NewDocument(FormatXLSX, in.Kind(), data), nil
}

// canonicalZip rewrites a zip archive with its entries in name order and a
// fixed modification time, so equal content gives equal bytes.
func canonicalZip(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	files := append([]*zip.File(nil), zr.File...)
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, file := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     file.Name,
			Method:   zip.Deflate,
			Modified: documentEpoch,
		})
		if err != nil {
			return nil, err
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		_, err = io.Copy(w, rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
