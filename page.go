package formreport

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// PageSize represents paper dimensions in centimeters.
type PageSize struct {
	Width  float64 `yaml:"width"`  // Width in centimeters.
	Height float64 `yaml:"height"` // Height in centimeters.
}

// Standard paper sizes.
var (
	A3      = PageSize{Width: 29.7, Height: 42.0}
	A4      = PageSize{Width: 21.0, Height: 29.7}
	A5      = PageSize{Width: 14.8, Height: 21.0}
	Letter  = PageSize{Width: 21.59, Height: 27.94}
	Legal   = PageSize{Width: 21.59, Height: 35.56}
	Tabloid = PageSize{Width: 27.94, Height: 43.18}
)

var namedSizes = map[string]PageSize{
	"a3":      A3,
	"a4":      A4,
	"a5":      A5,
	"letter":  Letter,
	"legal":   Legal,
	"tabloid": Tabloid,
}

// UnmarshalYAML accepts either a size name ("A4", "letter") or a mapping
// with width and height in centimeters.
func (s *PageSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		size, ok := namedSizes[strings.ToLower(node.Value)]
		if !ok {
			return fmt.Errorf("unknown page size %q", node.Value)
		}
		*s = size
		return nil
	}
	type plain PageSize
	return node.Decode((*plain)(s))
}

// Orientation represents the page orientation.
type Orientation int

const (
	// Portrait is the default vertical orientation.
	Portrait Orientation = iota
	// Landscape rotates the page to horizontal orientation.
	Landscape
)

func (o Orientation) String() string {
	if o == Landscape {
		return "landscape"
	}
	return "portrait"
}

// UnmarshalYAML reads "portrait" or "landscape".
func (o *Orientation) UnmarshalYAML(node *yaml.Node) error {
	switch strings.ToLower(node.Value) {
	case "", "portrait", "p":
		*o = Portrait
	case "landscape", "l":
		*o = Landscape
	default:
		return fmt.Errorf("unknown orientation %q", node.Value)
	}
	return nil
}

// Margin represents page margins in centimeters.
type Margin struct {
	Top    float64 `yaml:"top"`
	Right  float64 `yaml:"right"`
	Bottom float64 `yaml:"bottom"`
	Left   float64 `yaml:"left"`
}

// UniformMargin returns a Margin with the same value on all sides.
func UniformMargin(cm float64) Margin {
	return Margin{Top: cm, Right: cm, Bottom: cm, Left: cm}
}

// UnmarshalYAML accepts a single number for a uniform margin or a mapping
// of sides.
func (m *Margin) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var cm float64
		if err := node.Decode(&cm); err != nil {
			return err
		}
		*m = UniformMargin(cm)
		return nil
	}
	type plain Margin
	return node.Decode((*plain)(m))
}

// PageConfig controls the page geometry of a rendered report.
//
// Zero-value fields use defaults: A4 paper, portrait orientation, 1 cm
// margins, scale 1.0. The header and footer fields apply to the HTML
// renderer only.
type PageConfig struct {
	// Size specifies the paper size. Defaults to A4.
	Size PageSize `yaml:"size"`

	// Orientation specifies portrait or landscape. Defaults to Portrait.
	Orientation Orientation `yaml:"orientation"`

	// Margin specifies page margins in centimeters. Defaults to 1 cm on all sides.
	Margin Margin `yaml:"margin"`

	// Scale of the webpage rendering. Must be between 0.1 and 2.0. Defaults to 1.0.
	Scale float64 `yaml:"scale"`

	// PrintBackground enables printing of background colors and images.
	PrintBackground bool `yaml:"print_background"`

	// DisplayHeaderFooter enables the header and footer templates.
	DisplayHeaderFooter bool `yaml:"display_header_footer"`

	// HeaderTemplate is an HTML template for the print header, in Chrome's
	// print template format (classes date, title, url, pageNumber, totalPages).
	HeaderTemplate string `yaml:"header_template"`

	// FooterTemplate is an HTML template for the print footer.
	FooterTemplate string `yaml:"footer_template"`

	// PreferCSSPageSize gives precedence to any CSS @page size declared
	// in the document over the Size field.
	PreferCSSPageSize bool `yaml:"prefer_css_page_size"`
}

// DefaultPageConfig returns a PageConfig with sensible defaults.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		Size:            A4,
		Orientation:     Portrait,
		Margin:          UniformMargin(1.0),
		Scale:           1.0,
		PrintBackground: true,
	}
}

// resolved returns a PageConfig with all zero values replaced by defaults.
func (p *PageConfig) resolved() PageConfig {
	d := DefaultPageConfig()
	if p == nil {
		return d
	}
	r := *p
	if r.Size == (PageSize{}) {
		r.Size = d.Size
	}
	if r.Scale <= 0 {
		r.Scale = d.Scale
	}
	if r.Margin == (Margin{}) {
		r.Margin = d.Margin
	}
	return r
}

func cmToInches(cm float64) float64 {
	return cm / 2.54
}

// paperDimensions returns the paper width and height in inches,
// accounting for orientation.
func (p *PageConfig) paperDimensions() (width, height float64) {
	r := p.resolved()
	w := cmToInches(r.Size.Width)
	h := cmToInches(r.Size.Height)
	if r.Orientation == Landscape {
		return h, w
	}
	return w, h
}

// marginInches returns margins converted to inches.
func (p *PageConfig) marginInches() (top, right, bottom, left float64) {
	r := p.resolved()
	return cmToInches(r.Margin.Top),
		cmToInches(r.Margin.Right),
		cmToInches(r.Margin.Bottom),
		cmToInches(r.Margin.Left)
}

// portraitMillimetres returns the unrotated paper size in millimetres.
func (p *PageConfig) portraitMillimetres() (width, height float64) {
	r := p.resolved()
	return r.Size.Width * 10, r.Size.Height * 10
}
