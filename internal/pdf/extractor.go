package pdf

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Extractor recovers plain text from the pages of a document.
type Extractor struct {
	doc *Document
}

// NewExtractor returns an Extractor for doc.
func NewExtractor(doc *Document) *Extractor {
	return &Extractor{doc: doc}
}

// ExtractPage returns the text of the page at index (0-based). An index out
// of range yields an empty string.
func (e *Extractor) ExtractPage(index int) (string, error) {
	pages, err := e.doc.Pages()
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(pages) {
		return "", nil
	}
	return e.extract(pages[index]), nil
}

// ExtractAll returns the text of every page, one element per page.
func (e *Extractor) ExtractAll() ([]string, error) {
	pages, err := e.doc.Pages()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = e.extract(p)
	}
	return out, nil
}

func (e *Extractor) extract(page Dict) string {
	decoders := make(map[string]*fontDecoder)
	for name, font := range e.doc.Fonts(page) {
		decoders[name] = newFontDecoder(e.doc, font)
	}
	content := e.doc.Contents(page)
	if len(content) == 0 {
		return ""
	}
	in := interpreter{fonts: decoders, size: 12}
	in.run(content)
	return layout(in.spans)
}

// span is a run of text shown at one position.
type span struct {
	x, y float64
	size float64
	text string
}

// interpreter tracks the text state of a content stream.
type interpreter struct {
	fonts   map[string]*fontDecoder
	font    string
	size    float64
	leading float64
	// line start and current position in text space
	lx, ly float64
	x, y   float64
	spans  []span
}

func (in *interpreter) run(data []byte) {
	l := newLexer(data, 0)
	var args []*Object
	for {
		l.skipSpace()
		if l.eof() {
			return
		}
		c := l.data[l.pos]
		switch {
		case c == '(' || c == '<' || c == '/' || c == '[' || c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
			obj, err := l.object()
			if err != nil {
				return
			}
			args = append(args, obj)
		case isOperator(c):
			in.apply(l.operator(), args)
			args = args[:0]
		default:
			l.pos++
		}
	}
}

func isOperator(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '\'' || c == '"' || c == '*'
}

func (l *lexer) operator() string {
	start := l.pos
	for l.pos < len(l.data) && isOperator(l.data[l.pos]) {
		l.pos++
	}
	op := string(l.data[start:l.pos])
	if op == "BI" {
		// Skip inline image data up to EI.
		for l.pos+2 <= len(l.data) && !(l.data[l.pos] == 'E' && l.data[l.pos+1] == 'I' &&
			(l.pos+2 == len(l.data) || isSpace(l.data[l.pos+2]))) {
			l.pos++
		}
		l.pos += 2
	}
	return op
}

func (in *interpreter) apply(op string, args []*Object) {
	switch op {
	case "BT":
		in.lx, in.ly, in.x, in.y = 0, 0, 0, 0
	case "Tf":
		if len(args) >= 2 {
			in.font = args[0].Name
			in.size = math.Abs(Number(args[1]))
		}
	case "TL":
		if len(args) >= 1 {
			in.leading = Number(args[0])
		}
	case "Td", "TD":
		if len(args) >= 2 {
			if op == "TD" {
				in.leading = -Number(args[1])
			}
			in.moveTo(in.lx+Number(args[0]), in.ly+Number(args[1]))
		}
	case "Tm":
		if len(args) >= 6 {
			if scale := math.Abs(Number(args[3])); scale > 0 && in.size <= 1 {
				in.size = scale
			}
			in.moveTo(Number(args[4]), Number(args[5]))
		}
	case "T*":
		in.moveTo(in.lx, in.ly-in.leading)
	case "Tj":
		if len(args) >= 1 {
			in.show(in.text(args[0]))
		}
	case "'":
		in.moveTo(in.lx, in.ly-in.leading)
		if len(args) >= 1 {
			in.show(in.text(args[0]))
		}
	case `"`:
		in.moveTo(in.lx, in.ly-in.leading)
		if len(args) >= 3 {
			in.show(in.text(args[2]))
		}
	case "TJ":
		if len(args) >= 1 && args[0].Kind == Array {
			var sb strings.Builder
			for _, el := range args[0].Array {
				switch el.Kind {
				case String:
					sb.WriteString(in.text(el))
				case Int, Real:
					// Large negative adjustments stand in for spaces.
					if Number(el) < -200 {
						sb.WriteByte(' ')
					}
				}
			}
			in.show(sb.String())
		}
	}
}

func (in *interpreter) moveTo(x, y float64) {
	in.lx, in.ly = x, y
	in.x, in.y = x, y
}

func (in *interpreter) text(obj *Object) string {
	if obj.Kind != String {
		return ""
	}
	if dec, ok := in.fonts[in.font]; ok {
		return dec.decode(obj.Str)
	}
	return latin(obj.Str)
}

func (in *interpreter) show(s string) {
	if s == "" {
		return
	}
	in.spans = append(in.spans, span{x: in.x, y: in.y, size: in.size, text: s})
	in.x += float64(len([]rune(s))) * in.size * 0.5
}

// latin reads s as Latin-1 when the font is unknown.
func latin(s []byte) string {
	var sb strings.Builder
	for _, b := range s {
		if b >= 32 {
			sb.WriteRune(rune(b))
		}
	}
	return sb.String()
}

// layout groups spans into lines by baseline (top to bottom) and orders the
// spans of a line left to right.
func layout(spans []span) string {
	if len(spans) == 0 {
		return ""
	}
	type line struct {
		y     float64
		spans []span
	}
	var lines []*line
	for _, s := range spans {
		tol := math.Max(s.size*0.5, 2)
		var hit *line
		for _, ln := range lines {
			if math.Abs(ln.y-s.y) < tol {
				hit = ln
				break
			}
		}
		if hit == nil {
			hit = &line{y: s.y}
			lines = append(lines, hit)
		}
		hit.spans = append(hit.spans, s)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	var sb strings.Builder
	for i, ln := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sort.SliceStable(ln.spans, func(a, b int) bool { return ln.spans[a].x < ln.spans[b].x })
		for j, s := range ln.spans {
			if j > 0 {
				prev := ln.spans[j-1]
				gap := s.x - (prev.x + float64(len([]rune(prev.text)))*prev.size*0.5)
				if gap > math.Max(s.size, 1)*0.2 && !strings.HasSuffix(prev.text, " ") {
					sb.WriteByte(' ')
				}
			}
			sb.WriteString(clean(s.text))
		}
	}
	return strings.TrimSpace(sb.String())
}

// clean collapses whitespace runs and drops control characters.
func clean(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !space {
				sb.WriteByte(' ')
			}
			space = true
		case unicode.IsControl(r):
		default:
			space = false
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
