package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	formreport "github.com/porticus-lab/go-form-report"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		valuesFile string
		sets       []string
		format     string
		target     string
		output     string
	)
	cmd := &cobra.Command{
		Use:   "render <kind>",
		Short: "Render a report from a YAML file of values",
		Long: `Render a report without prompting. Values come from a YAML mapping of field
names to values and from --set flags, which win. Image fields take a file
path, relative to the values file.

Examples:
  formreport render order -v order.yaml -o order.pdf
  formreport render order --set name=Alice --set amount=42 -f xlsx
  formreport render measurement -v reading.yaml -t archive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.report(args[0])
			if err != nil {
				return err
			}
			schema, err := formreport.SchemaOf(report)
			if err != nil {
				return err
			}
			values, baseDir, err := readValues(valuesFile)
			if err != nil {
				return err
			}
			for _, s := range sets {
				name, value, ok := strings.Cut(s, "=")
				if !ok {
					return fmt.Errorf("--set %q: want name=value", s)
				}
				values[name] = value
			}
			sub, err := submission(schema, values, baseDir)
			if err != nil {
				return err
			}

			f, err := formreport.ParseFormat(format)
			if err != nil {
				return err
			}
			t, err := a.cfg.Target(target)
			if err != nil {
				return err
			}

			p, cleanup, err := a.pipeline()
			if err != nil {
				return err
			}
			defer cleanup()
			receipt, err := p.NewSession().Submit(cmd.Context(), sub, report, f, t)
			if err != nil {
				return err
			}
			return saveReceipt(cmd, receipt, output)
		},
	}
	cmd.Flags().StringVarP(&valuesFile, "values", "v", "", "YAML file of field values")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field value as name=value (repeatable)")
	cmd.Flags().StringVarP(&format, "format", "f", "pdf", "Document format: pdf or xlsx")
	cmd.Flags().StringVarP(&target, "target", "t", "download", "Export target name")
	cmd.Flags().StringVarP(&output, "output", "o", "", `Output file for downloads, "-" for stdout`)
	return cmd
}

// readValues reads a YAML mapping of field values. An empty path yields an
// empty mapping relative to the working directory.
func readValues(path string) (map[string]any, string, error) {
	values := make(map[string]any)
	if path == "" {
		return values, ".", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading values: %w", err)
	}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, "", fmt.Errorf("parsing values %s: %w", path, err)
	}
	if values == nil {
		values = make(map[string]any)
	}
	return values, filepath.Dir(path), nil
}

// submission turns field values into a form submission. Unknown names are
// rejected so that typos do not pass silently.
func submission(schema *formreport.Schema, values map[string]any, baseDir string) (formreport.Submission, error) {
	var sub formreport.Submission
	for name, v := range values {
		field, ok := schema.Field(name)
		if !ok {
			return sub, fmt.Errorf("report %s has no field %q", schema.Kind, name)
		}
		if v == nil {
			continue
		}
		text := fmt.Sprint(v)
		if field.Kind != formreport.FieldImage {
			sub.Set(name, text)
			continue
		}
		path := text
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return sub, fmt.Errorf("field %s: %w", name, err)
		}
		sub.Attach(name, filepath.Base(path), data)
	}
	return sub, nil
}
