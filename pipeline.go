package formreport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JournalEntry records the outcome of one export.
type JournalEntry struct {
	Session  string
	Report   string
	Format   Format
	Target   string
	Location string
	Bytes    int
	Digest   string
	// Failure is empty on success, otherwise the upload failure class or
	// "error".
	Failure string
	Error   string
	At      time.Time
}

// Journal keeps a record of exports.
type Journal interface {
	Record(ctx context.Context, e JournalEntry) error
}

// PipelineConfig wires the stages of a [Pipeline]. Zero fields get
// defaults: a plain [Collector], the PDF and spreadsheet renderers, a
// [Router] serving local targets, no journal and [slog.Default].
type PipelineConfig struct {
	Collector *Collector
	Renderers []Renderer
	Sink      Sink
	Journal   Journal
	Logger    *slog.Logger
	Now       func() time.Time
}

// Pipeline runs the collect, render and export stages for report sessions.
// A Pipeline is shared; each user interaction gets its own [Session].
type Pipeline struct {
	collector *Collector
	renderers map[Format]Renderer
	sink      Sink
	journal   Journal
	logger    *slog.Logger
	now       func() time.Time
}

// NewPipeline returns a Pipeline built from cfg.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		collector: cfg.Collector,
		renderers: make(map[Format]Renderer),
		sink:      cfg.Sink,
		journal:   cfg.Journal,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.collector == nil {
		p.collector = NewCollector(WithLogger(p.logger))
	}
	renderers := cfg.Renderers
	if len(renderers) == 0 {
		renderers = []Renderer{NewPDFRenderer(WithLogger(p.logger)), NewSpreadsheetRenderer(WithLogger(p.logger))}
	}
	for _, r := range renderers {
		p.renderers[r.Format()] = r
	}
	if p.sink == nil {
		p.sink = NewRouter()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Formats returns the formats the pipeline can render, sorted.
func (p *Pipeline) Formats() []Format {
	out := make([]Format, 0, len(p.renderers))
	for f := range p.renderers {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewSession starts a session for one user interaction.
func (p *Pipeline) NewSession() *Session {
	id := uuid.NewString()
	return &Session{
		ID:  id,
		p:   p,
		log: p.logger.With("session", id),
	}
}

// Session carries the state of one user interaction through the pipeline:
// the collected input, the rendered document and the export receipt.
//
// The stages run in order and the export is attempted at most once; after
// it the session only answers accessors. A failed collection may be
// repeated with corrected input.
type Session struct {
	ID string

	p   *Pipeline
	log *slog.Logger

	mu       sync.Mutex
	input    *FormInput
	doc      *RenderedDocument
	receipt  *Receipt
	exported bool
}

// Collect validates sub into report. On a *[ValidationError] the session
// keeps no input and the user may correct the form and collect again.
func (s *Session) Collect(sub Submission, report Report) (*FormInput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exported {
		return nil, ErrSessionDone
	}
	s.input, s.doc = nil, nil

	in, err := s.p.collector.Collect(sub, report)
	if err != nil {
		s.log.Info("submission rejected", "error", err)
		return nil, err
	}
	s.input = in
	s.log.Debug("input collected", "report", in.Kind())
	return in, nil
}

// Render renders the collected input in the given format.
func (s *Session) Render(ctx context.Context, format Format) (*RenderedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exported {
		return nil, ErrSessionDone
	}
	if s.input == nil {
		return nil, fmt.Errorf("%w: no input collected", ErrNoInput)
	}
	r, ok := s.p.renderers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	start := time.Now()
	doc, err := r.Render(ctx, s.input)
	if err != nil {
		s.log.Error("render failed", "report", s.input.Kind(), "format", format, "error", err)
		return nil, err
	}
	s.doc = doc
	s.log.Info("document rendered", "report", doc.Kind(), "format", format,
		"bytes", doc.Len(), "duration", time.Since(start))
	return doc, nil
}

// Export delivers the rendered document to target. It may be called once;
// later calls return [ErrSessionDone] whether or not the first succeeded.
func (s *Session) Export(ctx context.Context, target ExportTarget) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exported {
		return nil, ErrSessionDone
	}
	if s.doc == nil {
		return nil, fmt.Errorf("%w: no document rendered", ErrNoInput)
	}
	s.exported = true

	receipt, err := s.p.sink.Export(ctx, s.doc, target)
	s.record(ctx, target, receipt, err)
	if err != nil {
		s.log.Error("export failed", "report", s.doc.Kind(), "target", target.String(), "error", err)
		return nil, err
	}
	s.receipt = receipt
	s.log.Info("document exported", "report", s.doc.Kind(), "target", target.String(), "location", receipt.Location)
	return receipt, nil
}

// Submit runs collect, render and export in one pass.
func (s *Session) Submit(ctx context.Context, sub Submission, report Report, format Format, target ExportTarget) (*Receipt, error) {
	if _, err := s.Collect(sub, report); err != nil {
		return nil, err
	}
	if _, err := s.Render(ctx, format); err != nil {
		return nil, err
	}
	return s.Export(ctx, target)
}

// Input returns the collected input, or nil.
func (s *Session) Input() *FormInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Document returns the rendered document, or nil.
func (s *Session) Document() *RenderedDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Receipt returns the export receipt, or nil.
func (s *Session) Receipt() *Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receipt
}

func (s *Session) record(ctx context.Context, target ExportTarget, receipt *Receipt, exportErr error) {
	if s.p.journal == nil {
		return
	}
	e := JournalEntry{
		Session: s.ID,
		Report:  s.doc.Kind(),
		Format:  s.doc.Format(),
		Target:  target.String(),
		Bytes:   s.doc.Len(),
		Digest:  s.doc.Digest(),
		At:      s.p.now().UTC(),
	}
	if receipt != nil {
		e.Location = receipt.Location
	}
	if exportErr != nil {
		e.Failure = "error"
		var ue *UploadError
		if errors.As(exportErr, &ue) {
			e.Failure = ue.Failure.String()
		}
		e.Error = exportErr.Error()
	}
	if err := s.p.journal.Record(ctx, e); err != nil {
		s.log.Warn("journal write failed", "error", err)
	}
}
