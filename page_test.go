package formreport

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gopkg.in/yaml.v3"
)

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestPageConfigResolved(t *testing.T) {
	explicit := PageConfig{
		Size:        Letter,
		Orientation: Landscape,
		Scale:       0.5,
		Margin:      Margin{Top: 2, Right: 3, Bottom: 2, Left: 3},
	}
	tests := []struct {
		name string
		in   *PageConfig
		want PageConfig
	}{
		{"nil", nil, DefaultPageConfig()},
		{"zero", &PageConfig{}, PageConfig{Size: A4, Scale: 1, Margin: UniformMargin(1)}},
		{"explicit", &explicit, explicit},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, tt.in.resolved()); diff != "" {
			t.Errorf("%s (-want +got):\n%s", tt.name, diff)
		}
	}

	d := DefaultPageConfig()
	if d.Size != A4 || d.Orientation != Portrait || !d.PrintBackground || d.Margin != UniformMargin(1) {
		t.Errorf("DefaultPageConfig() = %+v", d)
	}
}

func TestPageGeometryInches(t *testing.T) {
	if got := cmToInches(2.54); !almostEqual(got, 1, 0.001) {
		t.Errorf("cmToInches(2.54) = %v", got)
	}

	// A4 is 21.0 x 29.7 cm, 8.267 x 11.693 in.
	tests := []struct {
		orientation Orientation
		w, h        float64
	}{
		{Portrait, 8.267, 11.693},
		{Landscape, 11.693, 8.267},
	}
	for _, tt := range tests {
		pc := &PageConfig{Size: A4, Orientation: tt.orientation}
		w, h := pc.paperDimensions()
		if !almostEqual(w, tt.w, 0.01) || !almostEqual(h, tt.h, 0.01) {
			t.Errorf("%s: %v x %v, want %v x %v", tt.orientation, w, h, tt.w, tt.h)
		}
	}

	pc := &PageConfig{Margin: Margin{Top: 2.54, Right: 5.08, Bottom: 2.54, Left: 5.08}}
	top, right, bottom, left := pc.marginInches()
	got := []float64{top, right, bottom, left}
	want := []float64{1, 2, 1, 2}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 0.001)); diff != "" {
		t.Errorf("margins (-want +got):\n%s", diff)
	}
}

func TestPageConfigYAML(t *testing.T) {
	var pc PageConfig
	src := "size: letter\norientation: landscape\nmargin: 2\nscale: 0.8\n"
	if err := yaml.Unmarshal([]byte(src), &pc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := PageConfig{Size: Letter, Orientation: Landscape, Margin: UniformMargin(2), Scale: 0.8}
	if pc != want {
		t.Errorf("got %+v, want %+v", pc, want)
	}

	src = "size: {width: 10, height: 15}\nmargin: {top: 1, left: 2}\n"
	pc = PageConfig{}
	if err := yaml.Unmarshal([]byte(src), &pc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if pc.Size != (PageSize{Width: 10, Height: 15}) {
		t.Errorf("size = %+v", pc.Size)
	}
	if pc.Margin != (Margin{Top: 1, Left: 2}) {
		t.Errorf("margin = %+v", pc.Margin)
	}
}

func TestPageConfigYAML_Invalid(t *testing.T) {
	for _, src := range []string{"size: B7\n", "orientation: sideways\n"} {
		var pc PageConfig
		if err := yaml.Unmarshal([]byte(src), &pc); err == nil {
			t.Errorf("%q: expected error", src)
		}
	}
}

func TestPortraitMillimetres(t *testing.T) {
	pc := &PageConfig{Size: A4, Orientation: Landscape}
	w, h := pc.portraitMillimetres()
	if !almostEqual(w, 210, 0.001) || !almostEqual(h, 297, 0.001) {
		t.Errorf("got %vx%v, want 210x297", w, h)
	}
}
