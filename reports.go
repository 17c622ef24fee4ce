package formreport

import (
	"fmt"
	"sort"
	"sync"
)

// OrderReport records the details of a customer order.
type OrderReport struct {
	Customer  string  `form:"name,required" label:"Customer"`
	Amount    float64 `form:"amount,required" label:"Amount"`
	Reference string  `form:"reference" label:"Reference"`
	Notes     string  `form:"notes" label:"Notes" widget:"textarea"`
	Logo      *Image  `form:"logo" label:"Logo"`
}

func (*OrderReport) ReportKind() string  { return "order" }
func (*OrderReport) ReportTitle() string { return "Order details" }

// MeasurementReport records one field measurement.
type MeasurementReport struct {
	Operator string  `form:"operator,required" label:"Operator"`
	Site     string  `form:"site,required" label:"Site"`
	Quantity string  `form:"quantity,required" label:"Measured quantity"`
	Reading  float64 `form:"reading,required" label:"Reading"`
	Unit     string  `form:"unit" label:"Unit"`
	Samples  int     `form:"samples" label:"Samples"`
	Remarks  string  `form:"remarks" label:"Remarks" widget:"textarea"`
	Photo    *Image  `form:"photo" label:"Photo"`
}

func (*MeasurementReport) ReportKind() string  { return "measurement" }
func (*MeasurementReport) ReportTitle() string { return "Measurement record" }

// Registry maps report kinds to constructors of their empty structs.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]func() Report
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() Report)}
}

// DefaultRegistry returns a Registry holding the built-in report kinds.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(func() Report { return new(OrderReport) })
	r.MustRegister(func() Report { return new(MeasurementReport) })
	return r
}

// Register adds a report kind. The factory must return a pointer to a
// struct with a valid schema.
func (r *Registry) Register(factory func() Report) error {
	sample := factory()
	if _, err := SchemaOf(sample); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[sample.ReportKind()]; ok {
		return fmt.Errorf("formreport: report kind %q already registered", sample.ReportKind())
	}
	r.factories[sample.ReportKind()] = factory
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(factory func() Report) {
	if err := r.Register(factory); err != nil {
		panic(err)
	}
}

// New returns an empty report of the given kind.
func (r *Registry) New(kind string) (Report, error) {
	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReport, kind)
	}
	return factory(), nil
}

// Schema returns the schema of the given kind.
func (r *Registry) Schema(kind string) (*Schema, error) {
	rep, err := r.New(kind)
	if err != nil {
		return nil, err
	}
	return SchemaOf(rep)
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
