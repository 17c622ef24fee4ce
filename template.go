package formreport

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/flosch/pongo2/v6"
	"gopkg.in/yaml.v3"
)

// Template is the fixed layout a report is rendered with. Templates are
// usually loaded from YAML:
//
//	title: "Order for {{ name }}"
//	page:
//	  size: A4
//	  margin: 2
//	font:
//	  family: Helvetica
//	  size: 11
//	image:
//	  field: logo
//	  width: 30
//	lines:
//	  - field: name
//	  - field: amount
//	    label: Total
//	  - text: "Reference {{ reference }}"
//	footer: "Generated by formreport"
//
// Title, footer and line text are pongo2 expressions over the field values
// of the report.
type Template struct {
	Title  string     `yaml:"title"`
	Page   PageConfig `yaml:"page"`
	Font   Font       `yaml:"font"`
	Image  *ImageSlot `yaml:"image"`
	Lines  []Line     `yaml:"lines"`
	Footer string     `yaml:"footer"`

	// Sheet names the worksheet of spreadsheet output.
	Sheet string `yaml:"sheet"`

	// HTML is the pongo2 page template used by [HTMLRenderer]. When empty
	// a built-in page showing the title and lines is used.
	HTML string `yaml:"html"`
}

// Font selects the typeface of PDF output. With a Path the TrueType file is
// embedded. Without one, a core PDF family (Helvetica, Arial, Times,
// Courier) is used as is and limited to the Windows-1252 character set;
// any other family gets the embedded Go fonts. Text a font cannot show
// fails the render with a *FormatError.
type Font struct {
	Family string  `yaml:"family"`
	Path   string  `yaml:"path"`
	Size   float64 `yaml:"size"`
}

// ImageSlot places a picture in the top right corner of the first page. The
// picture comes from an image field of the report or, when that field is
// empty or unset, from a static file.
type ImageSlot struct {
	Field string  `yaml:"field"`
	Path  string  `yaml:"path"`
	Width float64 `yaml:"width"` // millimetres
}

// Line is one row of the report body: either a field shown as
// "label: value" or a text expression.
type Line struct {
	Field string  `yaml:"field"`
	Label string  `yaml:"label"`
	Text  string  `yaml:"text"`
	Size  float64 `yaml:"size"`
	Bold  bool    `yaml:"bold"`
}

// DefaultTemplate returns a template showing every field of schema in
// order, with the first image field in the image slot.
func DefaultTemplate(schema *Schema) *Template {
	t := &Template{
		Title:  schema.Title,
		Page:   DefaultPageConfig(),
		Font:   Font{Family: goFamily, Size: 11},
		Sheet:  schema.Kind,
		Footer: "{{ report_title }}",
	}
	for _, f := range schema.Fields {
		if f.Kind == FieldImage {
			if t.Image == nil {
				t.Image = &ImageSlot{Field: f.Name, Width: 40}
			}
			continue
		}
		t.Lines = append(t.Lines, Line{Field: f.Name})
	}
	return t
}

// ParseTemplate reads a YAML template.
func ParseTemplate(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, &FormatError{Asset: "template", Err: err}
	}
	for i, l := range t.Lines {
		if (l.Field == "") == (l.Text == "") {
			return nil, &FormatError{Asset: "template", Err: fmt.Errorf("line %d needs exactly one of field or text", i+1)}
		}
	}
	return &t, nil
}

// LoadTemplate reads a YAML template file.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FormatError{Asset: path, Err: err}
	}
	t, err := ParseTemplate(data)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Asset = path
		}
		return nil, err
	}
	return t, nil
}

// Templates looks up the template of a report kind. A nil template with a
// nil error means the kind has no template of its own.
type Templates interface {
	Template(kind string) (*Template, error)
}

// TemplateDir loads "<kind>.yaml" (or ".yml") templates from a directory.
type TemplateDir string

// Template implements [Templates].
func (d TemplateDir) Template(kind string) (*Template, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(string(d), kind+ext)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return LoadTemplate(path)
	}
	return nil, nil
}

type fixedTemplate struct{ t *Template }

func (f fixedTemplate) Template(string) (*Template, error) { return f.t, nil }

// templateFor resolves the template of a report.
func (c *config) templateFor(in *FormInput) (*Template, error) {
	if c.templates != nil {
		t, err := c.templates.Template(in.Kind())
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	return DefaultTemplate(in.Schema()), nil
}

// layout is a template resolved against one report.
type layout struct {
	title  string
	footer string
	lines  []layoutLine
	image  *Image
	width  float64 // image width in mm
}

type layoutLine struct {
	label     string
	value     string
	size      float64
	bold      bool
	multiline bool
}

func (t *Template) resolve(in *FormInput, assetDir string) (*layout, error) {
	ctx := pongo2.Context(in.Context())
	var (
		out layout
		err error
	)
	if out.title, err = expand(t.Title, ctx); err != nil {
		return nil, err
	}
	if out.footer, err = expand(t.Footer, ctx); err != nil {
		return nil, err
	}
	for _, l := range t.Lines {
		line := layoutLine{label: l.Label, size: l.Size, bold: l.Bold}
		if l.Field != "" {
			spec, ok := in.Schema().Field(l.Field)
			if !ok {
				return nil, &FormatError{Asset: "template", Err: fmt.Errorf("unknown field %q", l.Field)}
			}
			v, _ := in.Value(l.Field)
			if !v.Set || spec.Kind == FieldImage {
				continue
			}
			if line.label == "" {
				line.label = spec.Label
			}
			line.value = v.String()
			line.multiline = spec.Multiline
		} else if line.value, err = expand(l.Text, ctx); err != nil {
			return nil, err
		}
		out.lines = append(out.lines, line)
	}
	if t.Image != nil {
		if out.image, err = t.Image.resolve(in, assetDir); err != nil {
			return nil, err
		}
		out.width = t.Image.Width
		if out.width <= 0 {
			out.width = 40
		}
	}
	return &out, nil
}

func (s *ImageSlot) resolve(in *FormInput, assetDir string) (*Image, error) {
	if s.Field != "" {
		spec, ok := in.Schema().Field(s.Field)
		if !ok || spec.Kind != FieldImage {
			return nil, &FormatError{Asset: "template", Err: fmt.Errorf("%q is not an image field", s.Field)}
		}
		if v, _ := in.Value(s.Field); v.Set {
			return v.Image, nil
		}
	}
	if s.Path == "" {
		return nil, nil
	}
	path := assetPath(assetDir, s.Path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FormatError{Asset: path, Err: err}
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || (format != "png" && format != "jpeg") {
		return nil, &FormatError{Asset: path, Err: fmt.Errorf("not a PNG or JPEG image")}
	}
	return &Image{Name: filepath.Base(path), Format: format, Data: data, Width: cfg.Width, Height: cfg.Height}, nil
}

func assetPath(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

var expressions sync.Map // source -> *pongo2.Template

// expand evaluates a pongo2 text expression. Values are inserted verbatim;
// escaping is left to the output format.
func expand(src string, ctx pongo2.Context) (string, error) {
	if src == "" {
		return "", nil
	}
	var tpl *pongo2.Template
	if cached, ok := expressions.Load(src); ok {
		tpl = cached.(*pongo2.Template)
	} else {
		var err error
		tpl, err = pongo2.FromString("{% autoescape off %}" + src + "{% endautoescape %}")
		if err != nil {
			return "", &FormatError{Asset: "template", Err: err}
		}
		expressions.Store(src, tpl)
	}
	s, err := tpl.Execute(ctx)
	if err != nil {
		return "", &FormatError{Asset: "template", Err: err}
	}
	return s, nil
}
