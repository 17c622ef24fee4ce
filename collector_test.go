package formreport

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func orderSubmission(name, amount string) Submission {
	var sub Submission
	if name != "" {
		sub.Set("name", name)
	}
	if amount != "" {
		sub.Set("amount", amount)
	}
	return sub
}

func TestCollect_Complete(t *testing.T) {
	sub := orderSubmission("  Alice  ", "42")
	sub.Set("reference", "PO-<b>7</b>")
	sub.Set("notes", "first line\r\nsecond line")

	var rep OrderReport
	in, err := NewCollector().Collect(sub, &rep)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	want := OrderReport{Customer: "Alice", Amount: 42, Reference: "PO-7", Notes: "first line\nsecond line"}
	if diff := cmp.Diff(want, rep); diff != "" {
		t.Errorf("decoded report (-want +got):\n%s", diff)
	}
	if in.Kind() != "order" || in.Title() != "Order details" {
		t.Errorf("kind/title = %q/%q", in.Kind(), in.Title())
	}
	if v, _ := in.Value("amount"); v.String() != "42" {
		t.Errorf("amount = %q", v.String())
	}
}

func TestCollect_MissingRequired(t *testing.T) {
	rep := OrderReport{Customer: "unchanged"}
	in, err := NewCollector().Collect(orderSubmission("", "42"), &rep)
	if in != nil {
		t.Error("FormInput returned for incomplete submission")
	}
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if diff := cmp.Diff([]FieldError{{Field: "name", Message: "is required", Missing: true}}, ve.Fields); diff != "" {
		t.Errorf("field errors (-want +got):\n%s", diff)
	}
	if rep.Customer != "unchanged" || rep.Amount != 0 {
		t.Errorf("destination modified on error: %+v", rep)
	}
}

func TestCollect_MarkupOnlyIsMissing(t *testing.T) {
	_, err := NewCollector().Collect(orderSubmission("<script>x</script>", "1"), new(OrderReport))
	if !errors.Is(err, ErrIncomplete) {
		t.Errorf("expected ErrIncomplete, got %v", err)
	}
}

func TestCollect_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		amount string
	}{
		{"word", "forty-two"},
		{"nan", "NaN"},
		{"inf", "+Inf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCollector().Collect(orderSubmission("Alice", tt.amount), new(OrderReport))
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if errors.Is(err, ErrIncomplete) {
				t.Error("malformed value reported as incomplete")
			}
			if msg := ve.Messages()["amount"]; msg != "must be a number" {
				t.Errorf("message = %q", msg)
			}
		})
	}
}

func TestCollect_IntegerField(t *testing.T) {
	sub := Submission{}
	for k, v := range map[string]string{
		"operator": "Bo", "site": "North", "quantity": "pH", "reading": "7.1", "samples": "2.5",
	} {
		sub.Set(k, v)
	}
	_, err := NewCollector().Collect(sub, new(MeasurementReport))
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Messages()["samples"] != "must be a whole number" {
		t.Fatalf("got %v", err)
	}

	sub.Set("samples", "3")
	var rep MeasurementReport
	if _, err := NewCollector().Collect(sub, &rep); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if rep.Samples != 3 || rep.Reading != 7.1 {
		t.Errorf("decoded %+v", rep)
	}
}

type gaugeReport struct {
	Level int8    `form:"level"`
	Ratio float32 `form:"ratio"`
}

func (gaugeReport) ReportKind() string  { return "gauge" }
func (gaugeReport) ReportTitle() string { return "Gauge" }

func TestCollect_NumberOutOfRange(t *testing.T) {
	sub := Submission{}
	for k, v := range map[string]string{
		"operator": "Bo", "site": "North", "quantity": "pH", "reading": "7.1", "samples": "1e30",
	} {
		sub.Set(k, v)
	}
	rep := MeasurementReport{Samples: 5}
	in, err := NewCollector().Collect(sub, &rep)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Messages()["samples"] != "is out of range" {
		t.Fatalf("samples=1e30: got %v", err)
	}
	if in != nil || rep.Samples != 5 {
		t.Errorf("out of range value stored: %+v", rep)
	}

	tests := []struct {
		level, ratio string
		bad          string
	}{
		{"127", "1.5", ""},
		{"-128", "", ""},
		{"128", "", "level"},
		{"9223372036854775808", "", "level"},
		{"1", "1e39", "ratio"},
	}
	for _, tt := range tests {
		var sub Submission
		sub.Set("level", tt.level)
		if tt.ratio != "" {
			sub.Set("ratio", tt.ratio)
		}
		var g gaugeReport
		_, err := NewCollector().Collect(sub, &g)
		if tt.bad == "" {
			if err != nil {
				t.Errorf("level=%s ratio=%s: %v", tt.level, tt.ratio, err)
			}
			continue
		}
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Messages()[tt.bad] != "is out of range" {
			t.Errorf("level=%s ratio=%s: got %v", tt.level, tt.ratio, err)
		}
	}
}

func TestCollect_Images(t *testing.T) {
	sub := orderSubmission("Alice", "42")
	sub.Attach("logo", "logo.png", testPNG(t, 8, 6))

	var rep OrderReport
	if _, err := NewCollector().Collect(sub, &rep); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if rep.Logo == nil || rep.Logo.Format != "png" || rep.Logo.Width != 8 || rep.Logo.Height != 6 {
		t.Errorf("logo = %+v", rep.Logo)
	}

	sub.Attach("logo", "logo.gif", []byte("GIF89a not really"))
	_, err := NewCollector().Collect(sub, new(OrderReport))
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Messages()["logo"] != "must be a PNG or JPEG image" {
		t.Errorf("bad image: got %v", err)
	}

	sub.Attach("logo", "logo.png", testPNG(t, 64, 64))
	_, err = NewCollector(WithMaxImageSize(16)).Collect(sub, new(OrderReport))
	if !errors.As(err, &ve) || ve.Messages()["logo"] == "" {
		t.Errorf("oversized image: got %v", err)
	}
}

func TestCollect_NotPointer(t *testing.T) {
	if _, err := NewCollector().Collect(orderSubmission("A", "1"), (*OrderReport)(nil)); err == nil {
		t.Error("expected error for nil pointer")
	}
}
