package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/porticus-lab/go-form-report/internal/pdf"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Extract text and page information from a PDF",
		Long: `Inspect rendered PDF reports.

Commands:
  extract  Extract plain text from a PDF file.
  info     Display the PDF version and page dimensions.

Examples:
  formreport inspect extract order-report.pdf
  formreport inspect extract -p 1-2 -f json order-report.pdf > out.json
  formreport inspect info order-report.pdf`,
		// Inspecting a file needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}
	cmd.AddCommand(newExtractCmd(), newInfoCmd())
	return cmd
}

type pageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

func newExtractCmd() *cobra.Command {
	var (
		outputFile string
		pageRange  string
		format     string
	)
	cmd := &cobra.Command{
		Use:   "extract <file.pdf>",
		Short: "Extract plain text from a PDF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := pdf.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			pages, err := doc.Pages()
			if err != nil {
				return fmt.Errorf("reading pages: %w", err)
			}
			indices, err := parsePageRange(pageRange, len(pages))
			if err != nil {
				return fmt.Errorf("invalid page range %q: %w", pageRange, err)
			}

			ext := pdf.NewExtractor(doc)
			var results []pageText
			for _, idx := range indices {
				text, err := ext.ExtractPage(idx)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: page %d: %v\n", idx+1, err)
					continue
				}
				results = append(results, pageText{Page: idx + 1, Text: text})
			}

			out := cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			return writePages(out, results, format)
		},
	}
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write output to file (default: stdout)")
	cmd.Flags().StringVarP(&pageRange, "pages", "p", "", `Page range, e.g. "1", "1-5", "1,3,5" (default: all)`)
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, markdown")
	return cmd
}

func writePages(out io.Writer, results []pageText, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
	case "markdown":
		for _, r := range results {
			fmt.Fprintf(out, "## Page %d\n\n%s\n\n", r.Page, r.Text)
		}
	case "text":
		for i, r := range results {
			if i > 0 {
				fmt.Fprintln(out, "\f")
			}
			fmt.Fprintln(out, r.Text)
		}
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	return nil
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.pdf>",
		Short: "Display the PDF version and page dimensions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := pdf.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			pages, err := doc.Pages()
			if err != nil {
				return fmt.Errorf("reading pages: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:    %s\n", args[0])
			fmt.Fprintf(out, "Version: PDF-%s\n", doc.Version())
			fmt.Fprintf(out, "Pages:   %d\n", len(pages))
			if len(pages) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Page dimensions:")
			for i, page := range pages {
				info := doc.Info(page)
				fmt.Fprintf(out, "  Page %d: %.0f x %.0f pt", i+1, info.Width, info.Height)
				if info.Rotation != 0 {
					fmt.Fprintf(out, " (rotated %d°)", info.Rotation)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

// parsePageRange converts a page range to 0-based page indices.
// Supported forms: "" (all), "3", "1-5" and "1,3,5".
func parsePageRange(spec string, total int) ([]int, error) {
	if spec == "" {
		indices := make([]int, total)
		for i := range indices {
			indices[i] = i
		}
		return indices, nil
	}

	var indices []int
	seen := make(map[int]bool)
	add := func(p int) {
		if !seen[p] {
			indices = append(indices, p-1)
			seen[p] = true
		}
	}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("invalid page number: %s", lo)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("invalid page number: %s", hi)
			}
			if start < 1 || end > total || start > end {
				return nil, fmt.Errorf("page range %d-%d out of bounds (1-%d)", start, end, total)
			}
			for p := start; p <= end; p++ {
				add(p)
			}
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid page number: %s", part)
		}
		if p < 1 || p > total {
			return nil, fmt.Errorf("page %d out of bounds (1-%d)", p, total)
		}
		add(p)
	}
	return indices, nil
}
