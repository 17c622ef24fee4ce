package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	formreport "github.com/porticus-lab/go-form-report"
	"github.com/porticus-lab/go-form-report/cloud"
	"github.com/porticus-lab/go-form-report/internal/config"
	"github.com/porticus-lab/go-form-report/internal/journal"
)

// app carries the state shared by the subcommands.
type app struct {
	configPath string
	verbose    bool

	cfg      *config.Config
	logger   *slog.Logger
	registry *formreport.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{registry: formreport.DefaultRegistry()}
	root := &cobra.Command{
		Use:   "formreport",
		Short: "Create reports from filled-in forms",
		Long: `Collect report data from a web or terminal form, render it as a PDF or
spreadsheet document and export it for download or to Google Sheets and
Google Drive.

Commands:
  serve    Serve the report forms over HTTP.
  fill     Fill a report form on the terminal.
  render   Render a report from a YAML file of values.
  inspect  Extract text and page information from a PDF.
  history  List recent exports.
  init     Write a configuration file with the defaults.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "formreport.toml", "Configuration file")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "Log debug messages")

	root.AddCommand(
		newServeCmd(a),
		newFillCmd(a),
		newRenderCmd(a),
		newInspectCmd(),
		newHistoryCmd(a),
		newInitCmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// pipeline builds the report pipeline described by the configuration. The
// returned function releases the browser and the journal.
func (a *app) pipeline() (*formreport.Pipeline, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	opts := a.cfg.Options(a.logger)
	var pdfRenderer formreport.Renderer = formreport.NewPDFRenderer(opts...)
	if a.cfg.Render.Engine == "html" {
		h, err := formreport.NewHTMLRenderer(opts...)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { h.Close() })
		pdfRenderer = h
	}

	router := formreport.NewRouter()
	if a.cfg.RemoteTargets() {
		copts := []cloud.Option{cloud.WithLogger(a.logger)}
		if a.cfg.Google.Endpoint != "" {
			copts = append(copts, cloud.WithEndpoint(a.cfg.Google.Endpoint))
		}
		if a.cfg.Google.AppendHeader {
			copts = append(copts, cloud.WithHeader())
		}
		cloud.Register(router, cloud.ServiceAccount{Path: a.cfg.Google.Credentials}, copts...)
	}

	var j formreport.Journal
	if a.cfg.Journal.Enabled {
		store, err := journal.Open(a.cfg.Journal.Path)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { store.Close() })
		j = store
	}

	p := formreport.NewPipeline(formreport.PipelineConfig{
		Collector: formreport.NewCollector(opts...),
		Renderers: []formreport.Renderer{pdfRenderer, formreport.NewSpreadsheetRenderer(opts...)},
		Sink:      router,
		Journal:   j,
		Logger:    a.logger,
	})
	return p, cleanup, nil
}

// report returns an empty report of the given kind.
func (a *app) report(kind string) (formreport.Report, error) {
	r, err := a.registry.New(kind)
	if err != nil {
		return nil, fmt.Errorf("%w (known kinds: %v)", err, a.registry.Kinds())
	}
	return r, nil
}

// saveReceipt writes a local export to path, or to the document's file name
// when path is empty. Remote receipts are only reported.
func saveReceipt(cmd *cobra.Command, receipt *formreport.Receipt, path string) error {
	if receipt.Target.Remote() {
		fmt.Fprintf(cmd.OutOrStdout(), "exported to %s: %s\n", receipt.Target, receipt.Location)
		return nil
	}
	if path == "" {
		path = receipt.Location
	}
	if path == "-" {
		_, err := receipt.Document.WriteTo(cmd.OutOrStdout())
		return err
	}
	if err := os.WriteFile(path, receipt.Bytes, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(receipt.Bytes))
	return nil
}
