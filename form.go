package formreport

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// FieldKind is the type of value a form field holds.
type FieldKind int

const (
	// FieldText holds free text.
	FieldText FieldKind = iota
	// FieldNumber holds a number.
	FieldNumber
	// FieldImage holds a PNG or JPEG image.
	FieldImage
)

func (k FieldKind) String() string {
	switch k {
	case FieldNumber:
		return "number"
	case FieldImage:
		return "image"
	default:
		return "text"
	}
}

// Report is implemented by the struct types that describe one kind of
// report. The struct fields tagged with `form` make up the report's form:
//
//	type OrderReport struct {
//	    Customer string  `form:"name,required" label:"Customer"`
//	    Amount   float64 `form:"amount,required" label:"Amount"`
//	    Notes    string  `form:"notes" widget:"textarea"`
//	    Logo     *Image  `form:"logo"`
//	}
//
// Supported field types are string, the integer and float types, and
// *Image.
type Report interface {
	ReportKind() string
	ReportTitle() string
}

// FieldSpec describes one field of a report form.
type FieldSpec struct {
	Name      string
	Label     string
	Kind      FieldKind
	Required  bool
	Multiline bool

	index   int
	integer bool
	typ     reflect.Type
}

// Schema is the ordered list of fields of a report kind. It is derived from
// the report struct and must not be modified.
type Schema struct {
	Kind   string
	Title  string
	Fields []FieldSpec
}

// Field returns the field named name.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

var (
	schemaCache sync.Map // reflect.Type -> *Schema
	imageType   = reflect.TypeOf((*Image)(nil))
)

// SchemaOf derives the form schema of r from its struct tags.
func SchemaOf(r Report) (*Schema, error) {
	t := reflect.TypeOf(r)
	if t == nil {
		return nil, fmt.Errorf("formreport: nil report")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("formreport: report %s is not a struct", t)
	}
	if s, ok := schemaCache.Load(t); ok {
		return s.(*Schema), nil
	}

	s := &Schema{Kind: r.ReportKind(), Title: r.ReportTitle()}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup("form")
		if !ok || !sf.IsExported() || tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = strings.ToLower(sf.Name)
		}
		f := FieldSpec{
			Name:      name,
			Label:     sf.Tag.Get("label"),
			Required:  opts == "required",
			Multiline: sf.Tag.Get("widget") == "textarea",
			index:     i,
			typ:       sf.Type,
		}
		if f.Label == "" {
			f.Label = sf.Name
		}
		switch k := sf.Type.Kind(); {
		case sf.Type == imageType:
			f.Kind = FieldImage
		case k == reflect.String:
			f.Kind = FieldText
		case k >= reflect.Int && k <= reflect.Int64:
			f.Kind, f.integer = FieldNumber, true
		case k == reflect.Float32 || k == reflect.Float64:
			f.Kind = FieldNumber
		default:
			return nil, fmt.Errorf("formreport: field %s.%s has unsupported type %s", t.Name(), sf.Name, sf.Type)
		}
		if _, dup := s.Field(name); dup {
			return nil, fmt.Errorf("formreport: duplicate field %q in %s", name, t.Name())
		}
		s.Fields = append(s.Fields, f)
	}
	actual, _ := schemaCache.LoadOrStore(t, s)
	return actual.(*Schema), nil
}

// Image is an uploaded picture.
type Image struct {
	Name   string // original file name
	Format string // "png" or "jpeg"
	Data   []byte
	Width  int
	Height int
}

func (img *Image) clone() *Image {
	if img == nil {
		return nil
	}
	c := *img
	c.Data = bytes.Clone(img.Data)
	return &c
}

// Value is the collected value of one field.
type Value struct {
	Field  string
	Kind   FieldKind
	Text   string
	Number float64
	Image  *Image
	// Set is false for optional fields left empty.
	Set bool
}

// String formats the value for display. Numbers use the shortest
// representation ("42", "3.5"); images show their file name.
func (v Value) String() string {
	if !v.Set {
		return ""
	}
	switch v.Kind {
	case FieldNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case FieldImage:
		return v.Image.Name
	default:
		return v.Text
	}
}

// FormInput is the validated, immutable input of one report. It is created
// by [Collector.Collect]; accessors return copies.
type FormInput struct {
	schema *Schema
	report reflect.Value // struct value snapshot
	values []Value
}

// Kind returns the report kind.
func (in *FormInput) Kind() string { return in.schema.Kind }

// Title returns the report title.
func (in *FormInput) Title() string { return in.schema.Title }

// Schema returns the report schema.
func (in *FormInput) Schema() *Schema { return in.schema }

// Report returns a fresh copy of the collected report struct as a pointer,
// e.g. *OrderReport.
func (in *FormInput) Report() Report {
	p := reflect.New(in.report.Type())
	p.Elem().Set(in.report)
	for _, f := range in.schema.Fields {
		if f.Kind == FieldImage {
			fv := p.Elem().Field(f.index)
			if img, _ := fv.Interface().(*Image); img != nil {
				fv.Set(reflect.ValueOf(img.clone()))
			}
		}
	}
	return p.Interface().(Report)
}

// Values returns the field values in schema order.
func (in *FormInput) Values() []Value {
	out := make([]Value, len(in.values))
	for i, v := range in.values {
		v.Image = v.Image.clone()
		out[i] = v
	}
	return out
}

// Value returns the value of the named field.
func (in *FormInput) Value(name string) (Value, bool) {
	for _, v := range in.values {
		if v.Field == name {
			v.Image = v.Image.clone()
			return v, true
		}
	}
	return Value{}, false
}

// Context returns the field values formatted for templates, keyed by field
// name, plus report_kind and report_title.
func (in *FormInput) Context() map[string]any {
	ctx := make(map[string]any, len(in.values)+2)
	for _, v := range in.values {
		ctx[v.Field] = v.String()
	}
	ctx["report_kind"] = in.schema.Kind
	ctx["report_title"] = in.schema.Title
	return ctx
}

func newFormInput(schema *Schema, dst reflect.Value, values []Value) *FormInput {
	snapshot := reflect.New(dst.Type()).Elem()
	snapshot.Set(dst)
	for _, f := range schema.Fields {
		if f.Kind == FieldImage {
			fv := snapshot.Field(f.index)
			if img, _ := fv.Interface().(*Image); img != nil {
				fv.Set(reflect.ValueOf(img.clone()))
			}
		}
	}
	for i := range values {
		values[i].Image = values[i].Image.clone()
	}
	return &FormInput{schema: schema, report: snapshot, values: values}
}
