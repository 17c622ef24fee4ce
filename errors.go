package formreport

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the library.
var (
	// ErrClosed is returned when attempting to use a closed [HTMLRenderer].
	ErrClosed = errors.New("formreport: renderer is closed")

	// ErrIncomplete is reported (via errors.Is) by a [ValidationError] when
	// at least one required field was left empty.
	ErrIncomplete = errors.New("formreport: submission incomplete")

	// ErrUnknownReport is returned when a report kind is not registered.
	ErrUnknownReport = errors.New("formreport: unknown report kind")

	// ErrUnsupportedFormat is returned when no renderer handles a format.
	ErrUnsupportedFormat = errors.New("formreport: unsupported document format")

	// ErrUnsupportedTarget is returned when a sink cannot serve a target, or
	// a target cannot accept the given document format.
	ErrUnsupportedTarget = errors.New("formreport: unsupported export target")

	// ErrSessionDone is returned when a [Session] is used after its export
	// was attempted.
	ErrSessionDone = errors.New("formreport: session already exported")

	// ErrNoInput is returned when a [Session] renders or exports before the
	// step it depends on has succeeded.
	ErrNoInput = errors.New("formreport: nothing to render or export")
)

// FieldError describes one invalid field of a submission.
type FieldError struct {
	Field   string
	Message string
	Missing bool
}

// ValidationError is returned by [Collector.Collect] when the submission is
// missing required fields or holds malformed values. The user is expected to
// correct the form and submit again.
type ValidationError struct {
	Report string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("formreport: invalid %s submission: %s", e.Report, strings.Join(parts, "; "))
}

// Is reports ErrIncomplete when any required field is missing.
func (e *ValidationError) Is(target error) bool {
	return target == ErrIncomplete && e.Incomplete()
}

// Incomplete reports whether any required field is missing.
func (e *ValidationError) Incomplete() bool {
	for _, f := range e.Fields {
		if f.Missing {
			return true
		}
	}
	return false
}

// Messages returns the field messages keyed by field name.
func (e *ValidationError) Messages() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		out[f.Field] = f.Message
	}
	return out
}

// FormatError is returned by a [Renderer] when a template asset (font file,
// static image, template file) cannot be loaded or the layout engine rejects
// the document.
type FormatError struct {
	Asset string
	Err   error
}

func (e *FormatError) Error() string {
	if e.Asset == "" {
		return fmt.Sprintf("formreport: formatting document: %v", e.Err)
	}
	return fmt.Sprintf("formreport: loading asset %s: %v", e.Asset, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// UploadFailure classifies why a remote export failed.
type UploadFailure int

const (
	// FailureNetwork covers transport errors and unreachable services.
	FailureNetwork UploadFailure = iota
	// FailureAuth covers missing, malformed or rejected credentials.
	FailureAuth
	// FailureQuota covers rate limiting and exhausted quotas.
	FailureQuota
	// FailureRejected covers any other refusal by the remote service.
	FailureRejected
)

func (f UploadFailure) String() string {
	switch f {
	case FailureNetwork:
		return "network"
	case FailureAuth:
		return "auth"
	case FailureQuota:
		return "quota"
	default:
		return "rejected"
	}
}

// UploadError is returned by remote sinks. Uploads are never retried
// automatically; the user may resubmit.
type UploadError struct {
	Target  string
	Failure UploadFailure
	Err     error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("formreport: upload to %s failed (%s): %v", e.Target, e.Failure, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
