package formreport_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	formreport "github.com/porticus-lab/go-form-report"
)

func Example() {
	var sub formreport.Submission
	sub.Set("name", "Alice")
	sub.Set("amount", "42")

	// Validate the form into a typed report.
	var order formreport.OrderReport
	in, err := formreport.NewCollector().Collect(sub, &order)
	if err != nil {
		log.Fatal(err)
	}

	doc, err := formreport.NewPDFRenderer().Render(context.Background(), in)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(order.Customer, order.Amount, doc.Filename())
	// Output: Alice 42 order-report.pdf
}

func ExampleCollector_Collect_incomplete() {
	var sub formreport.Submission
	sub.Set("amount", "forty-two")

	_, err := formreport.NewCollector().Collect(sub, new(formreport.OrderReport))
	var verr *formreport.ValidationError
	if errors.As(err, &verr) {
		fmt.Println(errors.Is(err, formreport.ErrIncomplete))
		for _, f := range verr.Fields {
			fmt.Printf("%s: %s\n", f.Field, f.Message)
		}
	}
	// Output:
	// true
	// name: is required
	// amount: must be a number
}

func ExampleSession_Submit() {
	p := formreport.NewPipeline(formreport.PipelineConfig{})
	s := p.NewSession()

	var sub formreport.Submission
	sub.Set("operator", "J. Smith")
	sub.Set("site", "North yard")
	sub.Set("quantity", "Flow")
	sub.Set("reading", "12.5")
	sub.Set("unit", "l/s")

	receipt, err := s.Submit(context.Background(), sub, new(formreport.MeasurementReport),
		formreport.FormatXLSX, formreport.LocalTarget())
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile("/tmp/"+receipt.Location, receipt.Bytes, 0o644); err != nil {
		log.Fatal(err)
	}
	fmt.Println("saved", receipt.Location)
}

func ExampleHTMLRenderer() {
	r, err := formreport.NewHTMLRenderer(formreport.WithNoSandbox())
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()

	page := &formreport.PageConfig{
		Size:            formreport.Letter,
		Orientation:     formreport.Landscape,
		Margin:          formreport.Margin{Top: 2, Right: 2.5, Bottom: 2, Left: 2.5},
		Scale:           1.0,
		PrintBackground: true,
	}
	pdf, err := r.ConvertHTML(context.Background(), "<h1>Landscape report</h1>", page)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Generated PDF: %d bytes\n", len(pdf))
}
