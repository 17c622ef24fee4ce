package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	formreport "github.com/porticus-lab/go-form-report"
)

type stubSink struct {
	err   error
	calls int
}

func (s *stubSink) Export(_ context.Context, doc *formreport.RenderedDocument, target formreport.ExportTarget) (*formreport.Receipt, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &formreport.Receipt{Target: target, Location: "file-42", Document: doc}, nil
}

var archive = formreport.ExportTarget{Name: "archive", Kind: formreport.TargetDrive, FolderID: "f"}

func newTestServer(t *testing.T, drive formreport.Sink) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := formreport.NewRouter()
	if drive != nil {
		router.Handle(formreport.TargetDrive, drive)
	}
	return New(Config{
		Pipeline: formreport.NewPipeline(formreport.PipelineConfig{Sink: router, Logger: logger}),
		Targets:  []formreport.ExportTarget{archive},
		Logger:   logger,
		Mode:     gin.TestMode,
	})
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHealthz(t *testing.T) {
	w := do(newTestServer(t, nil), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %s", w.Code, w.Body)
	}
}

func TestIndexAndForm(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `href="/reports/order"`) {
		t.Errorf("index = %d\n%s", w.Code, w.Body)
	}

	w = do(s, httptest.NewRequest(http.MethodGet, "/reports/measurement", nil))
	body := w.Body.String()
	if w.Code != http.StatusOK {
		t.Fatalf("form status = %d", w.Code)
	}
	for _, want := range []string{"Measurement record", `name="reading"`, `<textarea id="remarks"`, `type="file" id="photo"`, `value="archive"`} {
		if !strings.Contains(body, want) {
			t.Errorf("form lacks %q", want)
		}
	}

	w = do(s, httptest.NewRequest(http.MethodGet, "/reports/unknown", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown kind = %d", w.Code)
	}
}

func TestSubmit_Download(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(s, postForm("/reports/order", url.Values{
		"name": {"Alice"}, "amount": {"42"}, "_format": {"pdf"},
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="order-report.pdf"` {
		t.Errorf("disposition = %q", cd)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")) {
		t.Error("body is not a PDF")
	}
}

func TestSubmit_Invalid(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(s, postForm("/reports/order", url.Values{
		"amount": {"lots"}, "reference": {"PO-7"}, "_format": {"pdf"}, "_target": {"archive"},
	}))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"is required", "must be a number", `value="PO-7"`, `value="archive" selected`} {
		if !strings.Contains(body, want) {
			t.Errorf("re-rendered form lacks %q", want)
		}
	}
}

func TestSubmit_BadControls(t *testing.T) {
	s := newTestServer(t, nil)
	for name, values := range map[string]url.Values{
		"format": {"name": {"Alice"}, "amount": {"1"}, "_format": {"docx"}},
		"target": {"name": {"Alice"}, "amount": {"1"}, "_format": {"pdf"}, "_target": {"ftp"}},
	} {
		if w := do(s, postForm("/reports/order", values)); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", name, w.Code)
		}
	}
}

func TestSubmit_Remote(t *testing.T) {
	sink := &stubSink{}
	s := newTestServer(t, sink)
	w := do(s, postForm("/reports/order", url.Values{
		"name": {"Alice"}, "amount": {"42"}, "_format": {"xlsx"}, "_target": {"archive"},
	}))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "file-42") {
		t.Errorf("status = %d\n%s", w.Code, w.Body)
	}
	if sink.calls != 1 {
		t.Errorf("sink called %d times", sink.calls)
	}
}

func TestSubmit_UploadFailure(t *testing.T) {
	sink := &stubSink{err: &formreport.UploadError{Target: "drive:f", Failure: formreport.FailureQuota, Err: errors.New("slow down")}}
	s := newTestServer(t, sink)
	w := do(s, postForm("/reports/order", url.Values{
		"name": {"Alice"}, "amount": {"42"}, "_format": {"pdf"}, "_target": {"archive"},
	}))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, "quota") || !strings.Contains(body, "Submit the report again") {
		t.Errorf("body:\n%s", body)
	}
}

func TestSubmit_Multipart(t *testing.T) {
	var img bytes.Buffer
	png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 8, 8)))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("operator", "J. Smith")
	mw.WriteField("site", "North yard")
	mw.WriteField("quantity", "Flow")
	mw.WriteField("reading", "12.5")
	mw.WriteField("_format", "xlsx")
	fw, _ := mw.CreateFormFile("photo", "photo.png")
	fw.Write(img.Bytes())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/reports/measurement", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := do(newTestServer(t, nil), req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", w.Code, w.Body)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "measurement-report.xlsx") {
		t.Errorf("disposition = %q", cd)
	}
}
