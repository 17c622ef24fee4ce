package formreport

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
)

// failTransport fails the test on any outgoing request.
type failTransport struct{ t *testing.T }

func (f failTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	f.t.Errorf("unexpected network call to %s", r.URL)
	return nil, errors.New("network disabled")
}

func TestLocalSink_NoNetwork(t *testing.T) {
	orig := http.DefaultTransport
	http.DefaultTransport = failTransport{t}
	t.Cleanup(func() { http.DefaultTransport = orig })

	doc := NewDocument(FormatPDF, "order", []byte("%PDF-1.4 local"))
	receipt, err := LocalSink{}.Export(context.Background(), doc, LocalTarget())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.Equal(receipt.Bytes, doc.Bytes()) {
		t.Error("receipt does not carry the document bytes")
	}
	if receipt.Location != "order-report.pdf" || receipt.Document != doc {
		t.Errorf("receipt = %+v", receipt)
	}
}

func TestLocalSink_RejectsRemote(t *testing.T) {
	doc := NewDocument(FormatPDF, "order", []byte("%PDF-"))
	_, err := LocalSink{}.Export(context.Background(), doc, ExportTarget{Kind: TargetDrive, FolderID: "f"})
	if !errors.Is(err, ErrUnsupportedTarget) {
		t.Errorf("expected ErrUnsupportedTarget, got %v", err)
	}
}

type recordingSink struct {
	targets []ExportTarget
	err     error
}

func (s *recordingSink) Export(_ context.Context, doc *RenderedDocument, target ExportTarget) (*Receipt, error) {
	s.targets = append(s.targets, target)
	if s.err != nil {
		return nil, s.err
	}
	return &Receipt{Target: target, Location: "remote/" + doc.Filename(), Document: doc}, nil
}

func TestRouter(t *testing.T) {
	drive := &recordingSink{}
	r := NewRouter()
	r.Handle(TargetDrive, drive)
	doc := NewDocument(FormatPDF, "order", []byte("%PDF-"))

	if rc, err := r.Export(context.Background(), doc, LocalTarget()); err != nil || rc.Bytes == nil {
		t.Errorf("local: %+v, %v", rc, err)
	}
	target := ExportTarget{Name: "archive", Kind: TargetDrive, FolderID: "folder-1"}
	if rc, err := r.Export(context.Background(), doc, target); err != nil || rc.Location != "remote/order-report.pdf" {
		t.Errorf("drive: %+v, %v", rc, err)
	}
	if len(drive.targets) != 1 || drive.targets[0] != target {
		t.Errorf("drive sink saw %+v", drive.targets)
	}
	if _, err := r.Export(context.Background(), doc, ExportTarget{Kind: TargetSheets}); !errors.Is(err, ErrUnsupportedTarget) {
		t.Errorf("sheets without sink: got %v", err)
	}
}

func TestExportTargetString(t *testing.T) {
	tests := map[string]ExportTarget{
		"local:download":    LocalTarget(),
		"sheets:abc!Orders": {Kind: TargetSheets, SpreadsheetID: "abc", SheetName: "Orders"},
		"drive:folder-1":    {Kind: TargetDrive, FolderID: "folder-1"},
	}
	for want, target := range tests {
		if got := target.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
	if LocalTarget().Remote() {
		t.Error("local target reported as remote")
	}
}
