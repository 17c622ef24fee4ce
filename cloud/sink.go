// Package cloud exports rendered documents to Google Sheets and Google
// Drive.
//
// Each export makes exactly one upload attempt with a client obtained from
// [Credentials] for that call. Failures are returned as
// *formreport.UploadError classified as network, auth, quota or rejected;
// nothing is retried.
package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	formreport "github.com/porticus-lab/go-form-report"
)

type options struct {
	endpoint string
	logger   *slog.Logger
	header   bool
}

// Option configures a sink.
type Option func(*options)

// WithEndpoint overrides the API endpoint, for example to point at a test
// server.
func WithEndpoint(url string) Option {
	return func(o *options) { o.endpoint = url }
}

// WithLogger sets the structured logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHeader makes [SheetsSink] append the label row along with the values.
func WithHeader() Option {
	return func(o *options) { o.header = true }
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

func (o options) clientOptions(ctx context.Context, creds Credentials, scopes ...string) ([]option.ClientOption, func(), error) {
	hc, release, err := creds.Client(ctx, scopes...)
	if err != nil {
		return nil, nil, err
	}
	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if o.endpoint != "" {
		opts = append(opts, option.WithEndpoint(o.endpoint))
	}
	return opts, release, nil
}

// Register adds sheets and drive sinks sharing creds to r.
func Register(r *formreport.Router, creds Credentials, opts ...Option) {
	r.Handle(formreport.TargetSheets, NewSheetsSink(creds, opts...))
	r.Handle(formreport.TargetDrive, NewDriveSink(creds, opts...))
}

// SheetsSink appends the rows of a spreadsheet document to a Google Sheets
// worksheet.
type SheetsSink struct {
	creds Credentials
	opts  options
}

// NewSheetsSink returns a SheetsSink authenticating with creds.
func NewSheetsSink(creds Credentials, opts ...Option) *SheetsSink {
	return &SheetsSink{creds: creds, opts: newOptions(opts)}
}

// Export implements [formreport.Sink]. Only xlsx documents are accepted.
// The receipt location is the updated range.
func (s *SheetsSink) Export(ctx context.Context, doc *formreport.RenderedDocument, target formreport.ExportTarget) (*formreport.Receipt, error) {
	if target.Kind != formreport.TargetSheets {
		return nil, fmt.Errorf("%w: %s", formreport.ErrUnsupportedTarget, target)
	}
	if doc.Format() != formreport.FormatXLSX {
		return nil, fmt.Errorf("%w: sheets target needs an xlsx document, got %s", formreport.ErrUnsupportedTarget, doc.Format())
	}
	rows, err := s.rows(doc)
	if err != nil {
		return nil, err
	}

	copts, release, err := s.opts.clientOptions(ctx, s.creds, ScopeSheets)
	if err != nil {
		return nil, authError(target, err)
	}
	defer release()
	srv, err := sheets.NewService(ctx, copts...)
	if err != nil {
		return nil, authError(target, err)
	}

	sheet := target.SheetName
	if sheet == "" {
		sheet = "Sheet1"
	}
	rng := "'" + strings.ReplaceAll(sheet, "'", "''") + "'!A1"
	// RAW stores text as typed: no formulas, dates or dropped zeros.
	resp, err := srv.Spreadsheets.Values.Append(target.SpreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		s.opts.logger.Warn("sheets append failed", "target", target.String(), "error", err)
		return nil, uploadError(target, err)
	}

	location := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		location = resp.Updates.UpdatedRange
	}
	s.opts.logger.Info("rows appended", "target", target.String(), "range", location, "rows", len(rows))
	return &formreport.Receipt{Target: target, Location: location, Document: doc}, nil
}

// rows reads the first worksheet of doc. The label row is dropped unless
// [WithHeader] is set. Numeric cells become float64; every other cell is
// sent as its text.
func (s *SheetsSink) rows(doc *formreport.RenderedDocument) ([][]any, error) {
	f, err := excelize.OpenReader(doc.Reader())
	if err != nil {
		return nil, fmt.Errorf("cloud: reading spreadsheet: %w", err)
	}
	defer f.Close()

	sheetsList := f.GetSheetList()
	if len(sheetsList) == 0 {
		return nil, fmt.Errorf("cloud: spreadsheet has no worksheet")
	}
	sheet := sheetsList[0]
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("cloud: reading rows: %w", err)
	}

	first := 0
	if !s.opts.header {
		first = 1
	}
	var rows [][]any
	for i := first; i < len(raw); i++ {
		row := make([]any, len(raw[i]))
		for j, text := range raw[i] {
			if row[j], err = cellValue(f, sheet, j+1, i+1, text); err != nil {
				return nil, err
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cellValue(f *excelize.File, sheet string, col, row int, text string) (any, error) {
	if text == "" {
		return text, nil
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, fmt.Errorf("cloud: reading rows: %w", err)
	}
	typ, err := f.GetCellType(sheet, name)
	if err != nil {
		return nil, fmt.Errorf("cloud: reading cell %s: %w", name, err)
	}
	// Numbers written without a type attribute report CellTypeUnset.
	if typ == excelize.CellTypeNumber || typ == excelize.CellTypeUnset {
		if n, err := strconv.ParseFloat(text, 64); err == nil {
			return n, nil
		}
	}
	return text, nil
}

// DriveSink uploads documents into a Google Drive folder.
type DriveSink struct {
	creds Credentials
	opts  options
}

// NewDriveSink returns a DriveSink authenticating with creds.
func NewDriveSink(creds Credentials, opts ...Option) *DriveSink {
	return &DriveSink{creds: creds, opts: newOptions(opts)}
}

// Export implements [formreport.Sink]. The receipt location is the ID of
// the created file.
func (s *DriveSink) Export(ctx context.Context, doc *formreport.RenderedDocument, target formreport.ExportTarget) (*formreport.Receipt, error) {
	if target.Kind != formreport.TargetDrive {
		return nil, fmt.Errorf("%w: %s", formreport.ErrUnsupportedTarget, target)
	}

	copts, release, err := s.opts.clientOptions(ctx, s.creds, ScopeDrive)
	if err != nil {
		return nil, authError(target, err)
	}
	defer release()
	srv, err := drive.NewService(ctx, copts...)
	if err != nil {
		return nil, authError(target, err)
	}

	meta := &drive.File{Name: doc.Filename(), MimeType: doc.ContentType()}
	if target.FolderID != "" {
		meta.Parents = []string{target.FolderID}
	}
	file, err := srv.Files.Create(meta).
		Media(doc.Reader(), googleapi.ContentType(doc.ContentType())).
		SupportsAllDrives(true).
		Fields("id", "name").
		Context(ctx).
		Do()
	if err != nil {
		s.opts.logger.Warn("drive upload failed", "target", target.String(), "error", err)
		return nil, uploadError(target, err)
	}
	s.opts.logger.Info("file uploaded", "target", target.String(), "file", file.Id, "bytes", doc.Len())
	return &formreport.Receipt{Target: target, Location: file.Id, Document: doc}, nil
}
