// Package server serves report forms over HTTP.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/gin-gonic/gin"

	formreport "github.com/porticus-lab/go-form-report"
)

//go:embed pages/*.html
var pagesFS embed.FS

// Config wires a Server.
type Config struct {
	Pipeline *formreport.Pipeline
	Registry *formreport.Registry
	// Targets lists the export targets offered on the form. The local
	// download target is always offered first.
	Targets []formreport.ExportTarget
	Logger  *slog.Logger
	// Mode is the gin mode. Defaults to release.
	Mode string
	// MaxUpload limits the size of a form post. Defaults to 32 MiB.
	MaxUpload int64
}

// Server is the web front end of the report pipeline.
type Server struct {
	router    *gin.Engine
	pipeline  *formreport.Pipeline
	registry  *formreport.Registry
	targets   []formreport.ExportTarget
	logger    *slog.Logger
	maxUpload int64
	pages     *pongo2.TemplateSet
}

// New creates a Server.
func New(cfg Config) *Server {
	mode := cfg.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	s := &Server{
		router:    gin.New(),
		pipeline:  cfg.Pipeline,
		registry:  cfg.Registry,
		logger:    cfg.Logger,
		maxUpload: cfg.MaxUpload,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.pipeline == nil {
		s.pipeline = formreport.NewPipeline(formreport.PipelineConfig{Logger: s.logger})
	}
	if s.registry == nil {
		s.registry = formreport.DefaultRegistry()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 32 << 20
	}
	s.targets = append([]formreport.ExportTarget{formreport.LocalTarget()}, cfg.Targets...)

	sub, _ := fs.Sub(pagesFS, "pages")
	s.pages = pongo2.NewSet("formreport-pages", pongo2.NewFSLoader(sub))

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery(), s.requestLog())

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/", s.index)
	s.router.GET("/reports/:kind", s.form)
	s.router.POST("/reports/:kind", s.submit)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request", "method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "duration", time.Since(start))
	}
}

func (s *Server) index(c *gin.Context) {
	var reports []map[string]string
	for _, kind := range s.registry.Kinds() {
		schema, err := s.registry.Schema(kind)
		if err != nil {
			continue
		}
		reports = append(reports, map[string]string{"kind": kind, "title": schema.Title})
	}
	s.page(c, http.StatusOK, "index.html", pongo2.Context{"reports": reports})
}

func (s *Server) form(c *gin.Context) {
	schema, err := s.registry.Schema(c.Param("kind"))
	if err != nil {
		s.fail(c, http.StatusNotFound, err)
		return
	}
	s.page(c, http.StatusOK, "form.html", s.formContext(schema, nil, nil, "", ""))
}

func (s *Server) submit(c *gin.Context) {
	kind := c.Param("kind")
	report, err := s.registry.New(kind)
	if err != nil {
		s.fail(c, http.StatusNotFound, err)
		return
	}
	schema, err := formreport.SchemaOf(report)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	sub, err := s.submission(c)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	formatName := c.Request.PostForm.Get("_format")
	targetName := c.Request.PostForm.Get("_target")
	format, err := formreport.ParseFormat(formatName)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	target, err := s.target(targetName)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	session := s.pipeline.NewSession()
	receipt, err := session.Submit(c.Request.Context(), sub, report, format, target)

	var (
		verr *formreport.ValidationError
		ferr *formreport.FormatError
		uerr *formreport.UploadError
	)
	switch {
	case err == nil:
	case errors.As(err, &verr):
		s.page(c, http.StatusUnprocessableEntity, "form.html",
			s.formContext(schema, sub.Values, verr.Messages(), string(format), target.Name))
		return
	case errors.As(err, &ferr):
		s.fail(c, http.StatusInternalServerError, err)
		return
	case errors.As(err, &uerr):
		s.page(c, http.StatusBadGateway, "result.html", pongo2.Context{
			"title": schema.Title,
			"kind":  kind,
			"error": uploadMessage(uerr),
			"retry": true,
		})
		return
	case errors.Is(err, formreport.ErrUnsupportedFormat), errors.Is(err, formreport.ErrUnsupportedTarget):
		s.fail(c, http.StatusBadRequest, err)
		return
	default:
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	if !target.Remote() {
		doc := receipt.Document
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename()))
		c.Header("X-Session-ID", session.ID)
		c.Data(http.StatusOK, doc.ContentType(), receipt.Bytes)
		return
	}
	s.page(c, http.StatusOK, "result.html", pongo2.Context{
		"title":    schema.Title,
		"kind":     kind,
		"target":   target.Name,
		"location": receipt.Location,
	})
}

// submission reads a urlencoded or multipart form. Names starting with an
// underscore are controls, not report fields.
func (s *Server) submission(c *gin.Context) (formreport.Submission, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	if err := c.Request.ParseMultipartForm(s.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return formreport.Submission{}, fmt.Errorf("reading form: %w", err)
	}

	sub := formreport.Submission{Values: make(url.Values)}
	for name, values := range c.Request.PostForm {
		if !strings.HasPrefix(name, "_") {
			sub.Values[name] = values
		}
	}
	if mf := c.Request.MultipartForm; mf != nil {
		for name, headers := range mf.File {
			if len(headers) == 0 || headers[0].Size == 0 {
				continue
			}
			f, err := headers[0].Open()
			if err != nil {
				return sub, fmt.Errorf("reading upload %s: %w", name, err)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return sub, fmt.Errorf("reading upload %s: %w", name, err)
			}
			sub.Attach(name, headers[0].Filename, data)
		}
	}
	return sub, nil
}

func (s *Server) target(name string) (formreport.ExportTarget, error) {
	if name == "" {
		return formreport.LocalTarget(), nil
	}
	for _, t := range s.targets {
		if t.Name == name {
			return t, nil
		}
	}
	return formreport.ExportTarget{}, fmt.Errorf("%w: no target named %q", formreport.ErrUnsupportedTarget, name)
}

func (s *Server) formContext(schema *formreport.Schema, values url.Values, problems map[string]string, format, target string) pongo2.Context {
	fields := make([]map[string]any, len(schema.Fields))
	for i, f := range schema.Fields {
		fields[i] = map[string]any{
			"name":      f.Name,
			"label":     f.Label,
			"kind":      f.Kind.String(),
			"required":  f.Required,
			"multiline": f.Multiline,
			"value":     values.Get(f.Name),
			"error":     problems[f.Name],
		}
	}
	formats := s.pipeline.Formats()
	formatNames := make([]string, len(formats))
	for i, f := range formats {
		formatNames[i] = string(f)
	}
	targets := make([]map[string]string, len(s.targets))
	for i, t := range s.targets {
		targets[i] = map[string]string{"name": t.Name, "label": targetLabel(t)}
	}
	return pongo2.Context{
		"title":    schema.Title,
		"kind":     schema.Kind,
		"fields":   fields,
		"problems": len(problems) > 0,
		"formats":  formatNames,
		"format":   format,
		"targets":  targets,
		"target":   target,
	}
}

func targetLabel(t formreport.ExportTarget) string {
	switch t.Kind {
	case formreport.TargetSheets:
		return t.Name + " (Google Sheets)"
	case formreport.TargetDrive:
		return t.Name + " (Google Drive)"
	}
	return "Download"
}

func uploadMessage(err *formreport.UploadError) string {
	switch err.Failure {
	case formreport.FailureAuth:
		return "The upload was refused because the service credentials are invalid."
	case formreport.FailureQuota:
		return "The service is over its usage quota. Try again later."
	case formreport.FailureNetwork:
		return "The service could not be reached."
	}
	return "The service rejected the upload: " + err.Err.Error()
}

func (s *Server) page(c *gin.Context, status int, name string, ctx pongo2.Context) {
	tpl, err := s.pages.FromCache(name)
	if err != nil {
		s.logger.Error("loading page", "page", name, "error", err)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	out, err := tpl.ExecuteBytes(ctx)
	if err != nil {
		s.logger.Error("rendering page", "page", name, "error", err)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", out)
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	s.logger.Warn("request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	s.page(c, status, "result.html", pongo2.Context{
		"title": strconv.Itoa(status) + " " + http.StatusText(status),
		"kind":  c.Param("kind"),
		"error": err.Error(),
	})
}
