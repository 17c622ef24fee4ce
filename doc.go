// Package formreport turns filled-in forms into report documents and
// delivers them, in one linear pass:
//
//	Collector -> Renderer -> Sink
//
// # Reports and forms
//
// A report kind is a struct whose tagged fields make up its form
// ([OrderReport], [MeasurementReport], or your own):
//
//	type InspectionReport struct {
//	    Inspector string  `form:"inspector,required" label:"Inspector"`
//	    Score     float64 `form:"score,required"`
//	    Photo     *Image  `form:"photo"`
//	}
//
// A [Collector] validates a [Submission] against the struct and returns an
// immutable [FormInput]:
//
//	var sub formreport.Submission
//	sub.Set("name", "Alice")
//	sub.Set("amount", "42")
//	in, err := formreport.NewCollector().Collect(sub, new(formreport.OrderReport))
//	if errors.Is(err, formreport.ErrIncomplete) {
//	    // ask again
//	}
//
// # Rendering
//
// A [Renderer] applies a fixed [Template] and produces one
// [RenderedDocument]:
//
//	r := formreport.NewPDFRenderer(formreport.WithTemplates(formreport.TemplateDir("templates")))
//	doc, err := r.Render(ctx, in)
//	doc.WriteToFile("order.pdf", 0o644)
//
// [PDFRenderer] lays pages out in pure Go, [SpreadsheetRenderer] writes
// xlsx files and [HTMLRenderer] prints an HTML page with headless Chrome.
// PDFRenderer and SpreadsheetRenderer produce the same bytes for the same
// input. HTMLRenderer fixes the dates Chrome writes, but other parts of
// Chrome's output may still differ between runs.
//
// # Export
//
// A [Sink] delivers the document to an [ExportTarget]. [LocalSink] hands
// the bytes back; the cloud package uploads to Google Sheets and Drive.
// [Pipeline] and [Session] tie the three stages together for one user
// interaction.
package formreport
