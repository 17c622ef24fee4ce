package formreport

import (
	"context"
	"fmt"
	"sync"
)

// TargetKind names the kind of an export destination.
type TargetKind string

const (
	// TargetLocal hands the document back for download.
	TargetLocal TargetKind = "local"
	// TargetSheets appends spreadsheet rows to a cloud spreadsheet.
	TargetSheets TargetKind = "sheets"
	// TargetDrive uploads the document into a cloud drive folder.
	TargetDrive TargetKind = "drive"
)

// ExportTarget is a configured destination for rendered documents.
// Targets come from configuration, never from form input.
type ExportTarget struct {
	Name string     `toml:"name"`
	Kind TargetKind `toml:"kind"`

	// Sheets
	SpreadsheetID string `toml:"spreadsheet_id"`
	SheetName     string `toml:"sheet_name"`

	// Drive
	FolderID string `toml:"folder_id"`
}

// LocalTarget returns the local download target.
func LocalTarget() ExportTarget {
	return ExportTarget{Name: "download", Kind: TargetLocal}
}

// Remote reports whether exporting to t involves a network call.
func (t ExportTarget) Remote() bool { return t.Kind != TargetLocal }

func (t ExportTarget) String() string {
	switch t.Kind {
	case TargetSheets:
		return fmt.Sprintf("sheets:%s!%s", t.SpreadsheetID, t.SheetName)
	case TargetDrive:
		return "drive:" + t.FolderID
	}
	if t.Name != "" {
		return string(t.Kind) + ":" + t.Name
	}
	return string(t.Kind)
}

// Receipt confirms a completed export.
type Receipt struct {
	Target ExportTarget
	// Location identifies the exported content: a file name for local
	// exports, the updated range or file ID for remote ones.
	Location string
	Document *RenderedDocument
	// Bytes is the document content for local exports, nil otherwise.
	Bytes []byte
}

// Sink delivers rendered documents to an export target. Remote sinks make
// at most one upload attempt per call and report failures as
// *[UploadError].
type Sink interface {
	Export(ctx context.Context, doc *RenderedDocument, target ExportTarget) (*Receipt, error)
}

// LocalSink returns documents to the caller for download. It performs no
// I/O.
type LocalSink struct{}

// Export implements [Sink].
func (LocalSink) Export(ctx context.Context, doc *RenderedDocument, target ExportTarget) (*Receipt, error) {
	if target.Kind != TargetLocal {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTarget, target)
	}
	return &Receipt{
		Target:   target,
		Location: doc.Filename(),
		Document: doc,
		Bytes:    doc.Bytes(),
	}, nil
}

// Router dispatches exports to the sink registered for the target kind.
type Router struct {
	mu    sync.RWMutex
	sinks map[TargetKind]Sink
}

// NewRouter returns a Router with [LocalSink] registered for local targets.
func NewRouter() *Router {
	return &Router{sinks: map[TargetKind]Sink{TargetLocal: LocalSink{}}}
}

// Handle registers s for targets of the given kind.
func (r *Router) Handle(kind TargetKind, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[kind] = s
}

// Export implements [Sink].
func (r *Router) Export(ctx context.Context, doc *RenderedDocument, target ExportTarget) (*Receipt, error) {
	r.mu.RLock()
	s, ok := r.sinks[target.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no sink for %q", ErrUnsupportedTarget, target.Kind)
	}
	return s.Export(ctx, doc, target)
}
