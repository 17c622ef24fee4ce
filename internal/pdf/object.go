// Package pdf reads PDF files far enough to recover their text. It covers
// the subset of the format produced by the report renderers and by Chrome:
// classic and stream cross-reference sections, Flate/ASCII85/ASCIIHex
// filters, simple fonts and Type0 fonts with ToUnicode maps.
package pdf

// Kind identifies the kind of a PDF object.
type Kind int

const (
	Null Kind = iota
	Bool
	Int
	Real
	String
	Name
	Array
	Dictionary
	Stream
	Ref
)

// Object holds any PDF object value.
type Object struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Real   float64
	Str    []byte
	Name   string
	Array  []*Object
	Dict   Dict
	Stream []byte // raw, still encoded
	Ref    Reference
}

var null = &Object{Kind: Null}

// Reference is an indirect object reference (N G R).
type Reference struct {
	Number int
	Gen    int
}

// Dict is a PDF dictionary keyed by name without the leading slash.
type Dict map[string]*Object

// Int returns the integer value stored under key. Reals are truncated.
func (d Dict) Int(key string) (int64, bool) {
	switch obj := d[key]; {
	case obj == nil:
		return 0, false
	case obj.Kind == Int:
		return obj.Int, true
	case obj.Kind == Real:
		return int64(obj.Real), true
	}
	return 0, false
}

// Name returns the name (or string) stored under key.
func (d Dict) Name(key string) (string, bool) {
	switch obj := d[key]; {
	case obj == nil:
		return "", false
	case obj.Kind == Name:
		return obj.Name, true
	case obj.Kind == String:
		return string(obj.Str), true
	}
	return "", false
}

// Array returns the array stored under key. A single object is returned as
// a one-element array, which is how filters and contents are often written.
func (d Dict) Array(key string) ([]*Object, bool) {
	obj, ok := d[key]
	if !ok {
		return nil, false
	}
	if obj.Kind == Array {
		return obj.Array, true
	}
	return []*Object{obj}, true
}

// Number returns the numeric value of obj, or 0.
func Number(obj *Object) float64 {
	if obj == nil {
		return 0
	}
	switch obj.Kind {
	case Real:
		return obj.Real
	case Int:
		return float64(obj.Int)
	}
	return 0
}
