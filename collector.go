package formreport

import (
	"bytes"
	"fmt"
	"html"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Upload is a file attached to a form field.
type Upload struct {
	Filename string
	Data     []byte
}

// Submission is the raw content of a submitted form, as produced by the web
// form or the terminal prompts.
type Submission struct {
	Values url.Values
	Files  map[string]Upload
}

// Set sets the text of a field.
func (s *Submission) Set(field, value string) {
	if s.Values == nil {
		s.Values = make(url.Values)
	}
	s.Values.Set(field, value)
}

// Attach attaches a file to a field.
func (s *Submission) Attach(field, filename string, data []byte) {
	if s.Files == nil {
		s.Files = make(map[string]Upload)
	}
	s.Files[field] = Upload{Filename: filename, Data: data}
}

// Collector validates submissions against report schemas.
type Collector struct {
	cfg    config
	policy *bluemonday.Policy
}

// NewCollector returns a Collector. It honours [WithMaxImageSize] and
// [WithLogger].
func NewCollector(opts ...Option) *Collector {
	return &Collector{
		cfg:    newConfig(opts),
		policy: bluemonday.StrictPolicy(),
	}
}

// Collect decodes sub into dst, which must be a pointer to a report struct,
// and returns the resulting [FormInput].
//
// Text is trimmed and stripped of markup. Numbers must be finite, and whole
// for integer fields. Images must be PNG or JPEG within the size limit. When
// any field fails, Collect returns a *[ValidationError] listing every
// problem, dst is left untouched and no FormInput is produced. The error
// matches [ErrIncomplete] when a required field is empty.
func (c *Collector) Collect(sub Submission, dst Report) (*FormInput, error) {
	schema, err := SchemaOf(dst)
	if err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, fmt.Errorf("formreport: Collect needs a non-nil pointer, got %T", dst)
	}
	target := rv.Elem()

	values := make([]Value, 0, len(schema.Fields))
	var problems []FieldError
	for _, f := range schema.Fields {
		v, problem := c.field(f, sub)
		if problem != "" {
			problems = append(problems, FieldError{Field: f.Name, Message: problem})
			continue
		}
		if !v.Set && f.Required {
			problems = append(problems, FieldError{Field: f.Name, Message: "is required", Missing: true})
			continue
		}
		values = append(values, v)
	}
	if len(problems) > 0 {
		c.cfg.logger.Debug("submission rejected", "report", schema.Kind, "problems", len(problems))
		return nil, &ValidationError{Report: schema.Kind, Fields: problems}
	}

	// Assign only once every field is valid.
	staged := reflect.New(target.Type()).Elem()
	staged.Set(target)
	for i, f := range schema.Fields {
		fv := staged.Field(f.index)
		v := values[i]
		switch f.Kind {
		case FieldText:
			fv.SetString(v.Text)
		case FieldNumber:
			if f.integer {
				fv.SetInt(int64(v.Number))
			} else {
				fv.SetFloat(v.Number)
			}
		case FieldImage:
			fv.Set(reflect.ValueOf(v.Image))
		}
	}
	target.Set(staged)
	return newFormInput(schema, target, values), nil
}

// field decodes one field. It returns a non-empty problem for malformed
// input; an empty field yields a Value with Set false.
func (c *Collector) field(f FieldSpec, sub Submission) (Value, string) {
	v := Value{Field: f.Name, Kind: f.Kind}
	switch f.Kind {
	case FieldText:
		v.Text = c.text(sub.Values.Get(f.Name), f.Multiline)
		v.Set = v.Text != ""

	case FieldNumber:
		raw := strings.TrimSpace(sub.Values.Get(f.Name))
		if raw == "" {
			return v, ""
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return v, "must be a number"
		}
		if f.integer && n != math.Trunc(n) {
			return v, "must be a whole number"
		}
		if !fits(f, n) {
			return v, "is out of range"
		}
		v.Number, v.Set = n, true

	case FieldImage:
		up, ok := sub.Files[f.Name]
		if !ok || len(up.Data) == 0 {
			return v, ""
		}
		if int64(len(up.Data)) > c.cfg.maxImageSize {
			return v, fmt.Sprintf("image larger than %d KiB", c.cfg.maxImageSize>>10)
		}
		cfg, format, err := image.DecodeConfig(bytes.NewReader(up.Data))
		if err != nil || (format != "png" && format != "jpeg") {
			return v, "must be a PNG or JPEG image"
		}
		v.Image = &Image{
			Name:   up.Filename,
			Format: format,
			Data:   bytes.Clone(up.Data),
			Width:  cfg.Width,
			Height: cfg.Height,
		}
		v.Set = true
	}
	return v, ""
}

// fits reports whether n can be stored in the field's Go type.
func fits(f FieldSpec, n float64) bool {
	if f.typ == nil {
		return true
	}
	zero := reflect.Zero(f.typ)
	if f.integer {
		// float64(math.MaxInt64) rounds up to 2^63.
		if n < math.MinInt64 || n >= math.MaxInt64 {
			return false
		}
		return !zero.OverflowInt(int64(n))
	}
	return !zero.OverflowFloat(n)
}

func (c *Collector) text(raw string, multiline bool) string {
	s := html.UnescapeString(c.policy.Sanitize(raw))
	if !multiline {
		s = strings.Join(strings.Fields(s), " ")
	} else {
		s = strings.ReplaceAll(s, "\r\n", "\n")
	}
	return strings.TrimSpace(s)
}
