package formreport

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const orderYAML = `
title: "Order for {{ name }}"
page:
  size: A5
  orientation: landscape
  margin: 1.5
font:
  family: Courier
  size: 10
lines:
  - field: name
    bold: true
  - field: amount
    label: Total
  - text: "{{ name }} owes {{ amount }}"
footer: "{{ report_title }}"
sheet: Orders
`

func TestParseTemplate(t *testing.T) {
	tpl, err := ParseTemplate([]byte(orderYAML))
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}
	want := &Template{
		Title: "Order for {{ name }}",
		Page:  PageConfig{Size: A5, Orientation: Landscape, Margin: UniformMargin(1.5)},
		Font:  Font{Family: "Courier", Size: 10},
		Lines: []Line{
			{Field: "name", Bold: true},
			{Field: "amount", Label: "Total"},
			{Text: "{{ name }} owes {{ amount }}"},
		},
		Footer: "{{ report_title }}",
		Sheet:  "Orders",
	}
	if diff := cmp.Diff(want, tpl); diff != "" {
		t.Errorf("template (-want +got):\n%s", diff)
	}
}

func TestParseTemplate_Invalid(t *testing.T) {
	for _, src := range []string{
		"lines: [{field: a, text: b}]",
		"lines: [{label: nothing}]",
		"page: {size: B9}",
		"title: [unclosed",
	} {
		_, err := ParseTemplate([]byte(src))
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Errorf("%q: expected *FormatError, got %v", src, err)
		}
	}
}

func TestTemplateResolve(t *testing.T) {
	tpl, err := ParseTemplate([]byte(orderYAML))
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}
	in := collectOrder(t, "Alice", "42")
	lay, err := tpl.resolve(in, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if lay.title != "Order for Alice" || lay.footer != "Order details" {
		t.Errorf("title/footer = %q/%q", lay.title, lay.footer)
	}
	got := make([][2]string, len(lay.lines))
	for i, l := range lay.lines {
		got[i] = [2]string{l.label, l.value}
	}
	want := [][2]string{{"Customer", "Alice"}, {"Total", "42"}, {"", "Alice owes 42"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines (-want +got):\n%s", diff)
	}
}

func TestTemplateResolve_SkipsUnsetOptional(t *testing.T) {
	in := collectOrder(t, "Alice", "42")
	lay, err := DefaultTemplate(in.Schema()).resolve(in, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(lay.lines) != 2 {
		t.Errorf("expected name and amount only, got %+v", lay.lines)
	}
	if lay.image != nil {
		t.Error("unexpected image")
	}
}

func TestTemplateResolve_Errors(t *testing.T) {
	in := collectOrder(t, "Alice", "42")
	tests := map[string]*Template{
		"unknown field":   {Lines: []Line{{Field: "total"}}},
		"bad expression":  {Lines: []Line{{Text: "{{ name "}}},
		"text image slot": {Image: &ImageSlot{Field: "name"}},
		"missing asset":   {Image: &ImageSlot{Path: "does-not-exist.png"}},
		"asset not image": {Image: &ImageSlot{Path: "template_test.go"}},
	}
	for name, tpl := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tpl.resolve(in, "")
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Errorf("expected *FormatError, got %v", err)
			}
		})
	}
}

func TestDefaultTemplate(t *testing.T) {
	s, _ := SchemaOf(new(MeasurementReport))
	tpl := DefaultTemplate(s)
	if tpl.Image == nil || tpl.Image.Field != "photo" {
		t.Errorf("image slot = %+v", tpl.Image)
	}
	var fields []string
	for _, l := range tpl.Lines {
		fields = append(fields, l.Field)
	}
	want := []string{"operator", "site", "quantity", "reading", "unit", "samples", "remarks"}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("lines (-want +got):\n%s", diff)
	}
}

func TestTemplateDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "order.yml"), []byte(orderYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "measurement.yaml"), []byte("lines: [{}]"), 0o644); err != nil {
		t.Fatal(err)
	}
	d := TemplateDir(dir)

	tpl, err := d.Template("order")
	if err != nil || tpl == nil || tpl.Sheet != "Orders" {
		t.Errorf("order: %+v, %v", tpl, err)
	}
	if tpl, err := d.Template("inspection"); tpl != nil || err != nil {
		t.Errorf("missing kind: %+v, %v", tpl, err)
	}
	_, err = d.Template("measurement")
	var fe *FormatError
	if !errors.As(err, &fe) || fe.Asset != filepath.Join(dir, "measurement.yaml") {
		t.Errorf("invalid template: %v", err)
	}
}

func collectOrder(t *testing.T, name, amount string) *FormInput {
	t.Helper()
	in, err := NewCollector().Collect(orderSubmission(name, amount), new(OrderReport))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return in
}
