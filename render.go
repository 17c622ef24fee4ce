package formreport

import (
	"context"
	"time"
)

// Renderer turns a [FormInput] into exactly one [RenderedDocument] using a
// fixed template. [PDFRenderer] and [SpreadsheetRenderer] yield
// byte-identical output for the same input, template and assets.
//
// Missing template assets are reported as *[FormatError] and are not
// retried.
type Renderer interface {
	Render(ctx context.Context, in *FormInput) (*RenderedDocument, error)
	Format() Format
}

// documentEpoch is written wherever a file format wants a creation or
// modification time.
var documentEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
