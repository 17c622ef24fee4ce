// Package prompt fills report forms interactively on a terminal.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	formreport "github.com/porticus-lab/go-form-report"
)

// Filler asks for the fields of a report form one by one.
type Filler struct {
	driver   Driver
	readFile func(string) ([]byte, error)
}

// Option configures a Filler.
type Option func(*Filler)

// WithDriver replaces the terminal driver.
func WithDriver(d Driver) Option {
	return func(f *Filler) { f.driver = d }
}

// WithReadFile replaces the function used to read image files.
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(f *Filler) { f.readFile = fn }
}

// New returns a Filler prompting through survey unless [WithDriver] is
// given.
func New(opts ...Option) *Filler {
	f := &Filler{}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.driver == nil {
		f.driver = SurveyDriver()
	}
	if f.readFile == nil {
		f.readFile = os.ReadFile
	}
	return f
}

// Fill prompts for every field of schema. Answers from prev are offered as
// defaults and problems (keyed by field name) are shown as help, so a
// rejected form can be corrected. Image fields ask for a file path; an
// empty answer keeps the previous upload.
func (f *Filler) Fill(ctx context.Context, schema *formreport.Schema, prev formreport.Submission, problems map[string]string) (formreport.Submission, error) {
	var sub formreport.Submission
	for _, field := range schema.Fields {
		message := field.Label
		if field.Required {
			message += " *"
		}
		help := problems[field.Name]
		def := prev.Values.Get(field.Name)

		switch {
		case field.Kind == formreport.FieldImage:
			kept, hasPrev := prev.Files[field.Name]
			if hasPrev && help == "" {
				help = "leave empty to keep " + kept.Filename
			}
			path, err := f.driver.Input(ctx, InputConfig{
				Message:   message + " (PNG or JPEG file)",
				Help:      help,
				Validator: fileExists,
			})
			if err != nil {
				return sub, err
			}
			path = strings.TrimSpace(path)
			if path == "" {
				if hasPrev {
					sub.Attach(field.Name, kept.Filename, kept.Data)
				}
				continue
			}
			data, err := f.readFile(path)
			if err != nil {
				return sub, fmt.Errorf("prompt: reading %s: %w", path, err)
			}
			sub.Attach(field.Name, filepath.Base(path), data)

		case field.Multiline:
			text, err := f.driver.TextArea(ctx, TextAreaConfig{Message: message, Default: def, Help: help})
			if err != nil {
				return sub, err
			}
			sub.Set(field.Name, text)

		default:
			cfg := InputConfig{Message: message, Default: def, Help: help}
			if field.Kind == formreport.FieldNumber {
				cfg.Validator = number
			}
			text, err := f.driver.Input(ctx, cfg)
			if err != nil {
				return sub, err
			}
			sub.Set(field.Name, text)
		}
	}
	return sub, nil
}

// Collect fills the form of report and collects it into s, prompting again
// with the problems shown until the submission is valid or the user aborts.
func (f *Filler) Collect(ctx context.Context, s *formreport.Session, report formreport.Report) (*formreport.FormInput, error) {
	schema, err := formreport.SchemaOf(report)
	if err != nil {
		return nil, err
	}
	if err := f.driver.Info(ctx, schema.Title); err != nil {
		return nil, err
	}

	var (
		sub      formreport.Submission
		problems map[string]string
	)
	for {
		if sub, err = f.Fill(ctx, schema, sub, problems); err != nil {
			return nil, err
		}
		in, err := s.Collect(sub, report)
		var verr *formreport.ValidationError
		if !errors.As(err, &verr) {
			return in, err
		}
		problems = verr.Messages()
		for _, fe := range verr.Fields {
			label := fe.Field
			if spec, ok := schema.Field(fe.Field); ok {
				label = spec.Label
			}
			if err := f.driver.Info(ctx, fmt.Sprintf("%s %s", label, fe.Message)); err != nil {
				return nil, err
			}
		}
	}
}

// ChooseFormat asks for one of formats.
func (f *Filler) ChooseFormat(ctx context.Context, formats []formreport.Format) (formreport.Format, error) {
	options := make([]string, len(formats))
	for i, fm := range formats {
		options[i] = string(fm)
	}
	i, err := f.choose(ctx, "Document format", options)
	if err != nil {
		return "", err
	}
	return formats[i], nil
}

// ChooseTarget asks for one of targets.
func (f *Filler) ChooseTarget(ctx context.Context, targets []formreport.ExportTarget) (formreport.ExportTarget, error) {
	options := make([]string, len(targets))
	for i, t := range targets {
		options[i] = t.Name + " (" + t.String() + ")"
	}
	i, err := f.choose(ctx, "Export to", options)
	if err != nil {
		return formreport.ExportTarget{}, err
	}
	return targets[i], nil
}

func (f *Filler) choose(ctx context.Context, message string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, fmt.Errorf("prompt: nothing to choose for %q", message)
	}
	if len(options) == 1 {
		return 0, nil
	}
	i, err := f.driver.Select(ctx, SelectConfig{Message: message, Options: options})
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= len(options) {
		return 0, fmt.Errorf("prompt: invalid choice for %q", message)
	}
	return i, nil
}

// Info prints a message.
func (f *Filler) Info(ctx context.Context, msg string) error {
	return f.driver.Info(ctx, msg)
}

func number(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return errors.New("enter a number")
	}
	return nil
}

func fileExists(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := os.Stat(s); err != nil {
		return errors.New("file not found")
	}
	return nil
}
