package formreport

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// testPNG returns a small encoded PNG.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestSchemaOf_OrderReport(t *testing.T) {
	s, err := SchemaOf(new(OrderReport))
	if err != nil {
		t.Fatalf("SchemaOf: %v", err)
	}
	want := &Schema{
		Kind:  "order",
		Title: "Order details",
		Fields: []FieldSpec{
			{Name: "name", Label: "Customer", Kind: FieldText, Required: true},
			{Name: "amount", Label: "Amount", Kind: FieldNumber, Required: true},
			{Name: "reference", Label: "Reference", Kind: FieldText},
			{Name: "notes", Label: "Notes", Kind: FieldText, Multiline: true},
			{Name: "logo", Label: "Logo", Kind: FieldImage},
		},
	}
	if diff := cmp.Diff(want, s, cmpopts.IgnoreUnexported(FieldSpec{})); diff != "" {
		t.Errorf("schema mismatch (-want +got):\n%s", diff)
	}

	again, _ := SchemaOf(&OrderReport{Customer: "x"})
	if again != s {
		t.Error("schema not cached")
	}
}

type badReport struct {
	When []string `form:"when"`
}

func (*badReport) ReportKind() string  { return "bad" }
func (*badReport) ReportTitle() string { return "Bad" }

type dupReport struct {
	A string `form:"x"`
	B string `form:"x"`
}

func (*dupReport) ReportKind() string  { return "dup" }
func (*dupReport) ReportTitle() string { return "Dup" }

func TestSchemaOf_Invalid(t *testing.T) {
	if _, err := SchemaOf(new(badReport)); err == nil {
		t.Error("unsupported field type: expected error")
	}
	if _, err := SchemaOf(new(dupReport)); err == nil {
		t.Error("duplicate field: expected error")
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Value{Kind: FieldNumber, Number: 42, Set: true}, "42"},
		{Value{Kind: FieldNumber, Number: 3.25, Set: true}, "3.25"},
		{Value{Kind: FieldText, Text: "Alice", Set: true}, "Alice"},
		{Value{Kind: FieldImage, Image: &Image{Name: "logo.png"}, Set: true}, "logo.png"},
		{Value{Kind: FieldNumber}, ""},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("%+v: got %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestFormInputIsImmutable(t *testing.T) {
	var sub Submission
	sub.Set("name", "Alice")
	sub.Set("amount", "42")
	sub.Attach("logo", "logo.png", testPNG(t, 4, 4))

	in, err := NewCollector().Collect(sub, new(OrderReport))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	rep := in.Report().(*OrderReport)
	rep.Customer = "Mallory"
	rep.Logo.Data[0] ^= 0xFF

	vals := in.Values()
	vals[0].Text = "Mallory"

	if got := in.Report().(*OrderReport); got.Customer != "Alice" {
		t.Errorf("report changed through copy: %q", got.Customer)
	}
	v, _ := in.Value("logo")
	if v.Image.Data[0] != testPNG(t, 4, 4)[0] {
		t.Error("image data changed through copy")
	}
	if v, _ := in.Value("name"); v.Text != "Alice" {
		t.Errorf("value changed through copy: %q", v.Text)
	}
}

func TestFormInputContext(t *testing.T) {
	var sub Submission
	sub.Set("name", "Alice")
	sub.Set("amount", "42")
	in, err := NewCollector().Collect(sub, new(OrderReport))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	want := map[string]any{
		"name":         "Alice",
		"amount":       "42",
		"reference":    "",
		"notes":        "",
		"logo":         "",
		"report_kind":  "order",
		"report_title": "Order details",
	}
	if diff := cmp.Diff(want, in.Context()); diff != "" {
		t.Errorf("context mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	if diff := cmp.Diff([]string{"measurement", "order"}, r.Kinds()); diff != "" {
		t.Errorf("kinds (-want +got):\n%s", diff)
	}
	rep, err := r.New("measurement")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := rep.(*MeasurementReport); !ok {
		t.Errorf("New returned %T", rep)
	}
	if _, err := r.New("invoice"); !errors.Is(err, ErrUnknownReport) {
		t.Errorf("unknown kind: got %v", err)
	}
	if err := r.Register(func() Report { return new(OrderReport) }); err == nil {
		t.Error("duplicate registration: expected error")
	}
	if err := r.Register(func() Report { return new(badReport) }); err == nil {
		t.Error("invalid schema: expected error")
	}
}
