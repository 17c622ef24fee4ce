package formreport

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isPDF checks whether data starts with the PDF magic number.
func isPDF(data []byte) bool {
	return len(data) > 4 && string(data[:5]) == "%PDF-"
}

func oneLine(text string) *Template {
	return &Template{Lines: []Line{{Text: text}}}
}

func TestPDFRenderer_Basic(t *testing.T) {
	in := collectOrder(t, "Alice", "42")
	doc, err := NewPDFRenderer().Render(context.Background(), in)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !isPDF(doc.Bytes()) {
		t.Fatal("output is not a valid PDF")
	}
	if doc.Format() != FormatPDF || doc.Filename() != "order-report.pdf" {
		t.Errorf("format/filename = %s/%s", doc.Format(), doc.Filename())
	}

	text, err := doc.Text()
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	for _, want := range []string{"Order details", "Customer: Alice", "Amount: 42"} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
}

func TestPDFRenderer_OneLineTemplate(t *testing.T) {
	in := collectOrder(t, "Alice", "42")
	doc, err := NewPDFRenderer(WithTemplate(oneLine("{{ name }} {{ amount }}"))).Render(context.Background(), in)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	text, err := doc.Text()
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !strings.Contains(text, "Alice") || !strings.Contains(text, "42") {
		t.Errorf("expected Alice and 42 in %q", text)
	}
}

func TestPDFRenderer_Deterministic(t *testing.T) {
	sub := orderSubmission("Alice", "42")
	sub.Set("notes", "Deliver to the back door.\nRing twice.")
	sub.Attach("logo", "logo.png", testPNG(t, 16, 16))
	in, err := NewCollector().Collect(sub, new(OrderReport))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	r := NewPDFRenderer()
	first, err := r.Render(context.Background(), in)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	second, err := r.Render(context.Background(), in)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("rendering the same input twice gave different bytes")
	}
	if first.Digest() != second.Digest() {
		t.Error("digests differ")
	}
}

func TestPDFRenderer_MissingFont(t *testing.T) {
	in := collectOrder(t, "Alice", "42")
	tpl := oneLine("{{ name }}")
	tpl.Font = Font{Family: "Body", Path: "fonts/missing.ttf"}

	dir := t.TempDir()
	_, err := NewPDFRenderer(WithTemplate(tpl), WithAssetDir(dir)).Render(context.Background(), in)
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FormatError, got %v", err)
	}
	if fe.Asset != filepath.Join(dir, "fonts/missing.ttf") {
		t.Errorf("asset = %q", fe.Asset)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped not-exist error, got %v", fe.Err)
	}
}

func TestPDFRenderer_CorruptFont(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.ttf"), []byte("not a font"), 0o644); err != nil {
		t.Fatal(err)
	}
	tpl := oneLine("{{ name }}")
	tpl.Font = Font{Path: "bad.ttf"}

	_, err := NewPDFRenderer(WithTemplate(tpl), WithAssetDir(dir)).Render(context.Background(), collectOrder(t, "Alice", "42"))
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FormatError, got %v", err)
	}
}

func TestPDFRenderer_NonLatinText(t *testing.T) {
	for _, name := range []string{"Łukasz Żółć", "Дмитрий Ёлкин", "Σωκράτης"} {
		doc, err := NewPDFRenderer().Render(context.Background(), collectOrder(t, name, "42"))
		if err != nil {
			t.Fatalf("%s: Render: %v", name, err)
		}
		text, err := doc.Text()
		if err != nil {
			t.Fatalf("%s: Text: %v", name, err)
		}
		if !strings.Contains(text, "Customer: "+name) {
			t.Errorf("text lacks %q:\n%s", name, text)
		}
	}
}

func TestPDFRenderer_UnshowableText(t *testing.T) {
	tests := []struct {
		name string
		font Font
		text string
	}{
		{"go font", Font{}, "张伟"},
		{"core font", Font{Family: "Helvetica"}, "Łukasz"},
	}
	for _, tt := range tests {
		tpl := oneLine("{{ name }}")
		tpl.Font = tt.font
		_, err := NewPDFRenderer(WithTemplate(tpl)).Render(context.Background(), collectOrder(t, tt.text, "42"))
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Errorf("%s: expected *FormatError, got %v", tt.name, err)
		}
	}

	// Windows-1252 text still renders with a core font.
	tpl := oneLine("{{ name }}")
	tpl.Font = Font{Family: "Helvetica"}
	doc, err := NewPDFRenderer(WithTemplate(tpl)).Render(context.Background(), collectOrder(t, "José Müller", "42"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if text, _ := doc.Text(); !strings.Contains(text, "José Müller") {
		t.Errorf("text = %q", text)
	}
}

func TestPDFRenderer_StaticImage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "stamp.png"), testPNG(t, 10, 10), 0o644); err != nil {
		t.Fatal(err)
	}
	tpl := oneLine("{{ name }}")
	tpl.Image = &ImageSlot{Field: "logo", Path: "stamp.png", Width: 20}

	doc, err := NewPDFRenderer(WithTemplate(tpl), WithAssetDir(dir)).Render(context.Background(), collectOrder(t, "Alice", "42"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Contains(doc.Bytes(), []byte("/Subtype /Image")) {
		t.Error("image not embedded")
	}

	tpl.Image.Path = "gone.png"
	_, err = NewPDFRenderer(WithTemplate(tpl), WithAssetDir(dir)).Render(context.Background(), collectOrder(t, "Alice", "42"))
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Errorf("missing image asset: expected *FormatError, got %v", err)
	}
}

func TestPDFRenderer_Landscape(t *testing.T) {
	tpl := oneLine("wide")
	tpl.Page = PageConfig{Size: A4, Orientation: Landscape}
	doc, err := NewPDFRenderer(WithTemplate(tpl)).Render(context.Background(), collectOrder(t, "Alice", "42"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Contains(doc.Bytes(), []byte("/MediaBox [0 0 841.89 595.28]")) {
		t.Error("expected a landscape A4 media box")
	}
}

func TestPDFRenderer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewPDFRenderer().Render(ctx, collectOrder(t, "Alice", "42")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
