package formreport

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/flosch/pongo2/v6"
)

//go:embed templates/report.html
var defaultReportHTML string

// HTMLRenderer renders reports as HTML pages and prints them to PDF with
// headless Chrome.
//
// An HTMLRenderer manages a browser instance that is reused across renders.
// It is safe for concurrent use. Call [HTMLRenderer.Close] to release the
// browser.
type HTMLRenderer struct {
	cfg           config
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewHTMLRenderer starts a headless browser and returns a renderer using
// it. It honours [WithChromePath], [WithAutoDownload], [WithNoSandbox],
// [WithTimeout], [WithTemplates], [WithTemplate], [WithAssetDir] and
// [WithLogger].
func NewHTMLRenderer(opts ...Option) (*HTMLRenderer, error) {
	cfg := newConfig(opts)
	chromePath, err := resolveBrowser(&cfg)
	if err != nil {
		return nil, err
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("headless", cfg.headless),
	)
	if chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromePath))
	}
	if cfg.noSandbox {
		allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so errors surface at creation time.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("formreport: starting browser: %w", err)
	}
	cfg.logger.Debug("browser started", "path", chromePath)

	return &HTMLRenderer{
		cfg:           cfg,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close releases the browser process. Close is idempotent.
func (r *HTMLRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.browserCancel()
	r.allocCancel()
	return nil
}

// Format returns [FormatPDF].
func (r *HTMLRenderer) Format() Format { return FormatPDF }

// Render implements [Renderer]. The template's HTML (or the built-in page)
// is rendered with pongo2 with autoescaping on, then printed.
func (r *HTMLRenderer) Render(ctx context.Context, in *FormInput) (*RenderedDocument, error) {
	if err := r.checkClosed(); err != nil {
		return nil, err
	}
	tpl, err := r.cfg.templateFor(in)
	if err != nil {
		return nil, err
	}
	html, err := r.html(tpl, in)
	if err != nil {
		return nil, err
	}
	data, err := r.ConvertHTML(ctx, html, &tpl.Page)
	if err != nil {
		return nil, err
	}
	return NewDocument(FormatPDF, in.Kind(), data), nil
}

func (r *HTMLRenderer) html(tpl *Template, in *FormInput) (string, error) {
	lay, err := tpl.resolve(in, r.cfg.assetDir)
	if err != nil {
		return "", err
	}
	src := tpl.HTML
	if src == "" {
		src = defaultReportHTML
	}
	doc, err := pongo2.FromString(src)
	if err != nil {
		return "", &FormatError{Asset: "html template", Err: err}
	}

	lines := make([]map[string]any, len(lay.lines))
	for i, l := range lay.lines {
		lines[i] = map[string]any{"label": l.label, "value": l.value, "bold": l.bold, "multiline": l.multiline}
	}
	ctx := pongo2.Context{
		"title":  lay.title,
		"footer": lay.footer,
		"lines":  lines,
		"fields": in.Context(),
		"font":   tpl.Font,
	}
	if lay.image != nil {
		ctx["image"] = "data:image/" + lay.image.Format + ";base64," + base64.StdEncoding.EncodeToString(lay.image.Data)
		ctx["image_width"] = lay.width
	}
	out, err := doc.Execute(ctx)
	if err != nil {
		return "", &FormatError{Asset: "html template", Err: err}
	}
	return out, nil
}

// ConvertHTML prints an HTML string to PDF.
// If pg is nil, [DefaultPageConfig] values are used.
func (r *HTMLRenderer) ConvertHTML(ctx context.Context, html string, pg *PageConfig) ([]byte, error) {
	if err := r.checkClosed(); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "formreport-*.html")
	if err != nil {
		return nil, fmt.Errorf("formreport: creating temp file: %w", err)
	}
	name := f.Name()
	defer os.Remove(name)

	if _, err := f.WriteString(html); err != nil {
		f.Close()
		return nil, fmt.Errorf("formreport: writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("formreport: closing temp file: %w", err)
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, fmt.Errorf("formreport: resolving path: %w", err)
	}
	return r.print(ctx, "file://"+abs, pg)
}

// print performs the navigation and PDF generation.
func (r *HTMLRenderer) print(ctx context.Context, targetURL string, pg *PageConfig) ([]byte, error) {
	resolved := pg.resolved()

	if r.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.timeout)
		defer cancel()
	}

	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)
	defer tabCancel()
	// Stop the tab when the caller's context ends.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	width, height := resolved.paperDimensions()
	marginTop, marginRight, marginBottom, marginLeft := resolved.marginInches()

	var buf []byte
	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			params := page.PrintToPDF().
				WithPaperWidth(width).
				WithPaperHeight(height).
				WithMarginTop(marginTop).
				WithMarginRight(marginRight).
				WithMarginBottom(marginBottom).
				WithMarginLeft(marginLeft).
				WithScale(resolved.Scale).
				WithPrintBackground(resolved.PrintBackground).
				WithLandscape(resolved.Orientation == Landscape).
				WithPreferCSSPageSize(resolved.PreferCSSPageSize).
				WithDisplayHeaderFooter(resolved.DisplayHeaderFooter)

			if resolved.HeaderTemplate != "" {
				params = params.WithHeaderTemplate(resolved.HeaderTemplate)
			}
			if resolved.FooterTemplate != "" {
				params = params.WithFooterTemplate(resolved.FooterTemplate)
			}

			var err error
			buf, _, err = params.Do(ctx)
			return err
		}),
	); err != nil {
		return nil, fmt.Errorf("formreport: printing page: %w", err)
	}
	return normalizeTimestamps(buf), nil
}

func (r *HTMLRenderer) checkClosed() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	return nil
}

var pdfDate = regexp.MustCompile(`/(CreationDate|ModDate)\s*\(D:([0-9]+)`)

// normalizeTimestamps overwrites the digits of the creation and modification
// dates in a PDF with a fixed date. Lengths are kept so the cross-reference
// offsets stay valid.
func normalizeTimestamps(data []byte) []byte {
	const epoch = "20000101000000"
	out := bytes.Clone(data)
	for _, m := range pdfDate.FindAllSubmatchIndex(out, -1) {
		start, end := m[4], m[5]
		for i := start; i < end; i++ {
			if k := i - start; k < len(epoch) {
				out[i] = epoch[k]
			} else {
				out[i] = '0'
			}
		}
	}
	return out
}
