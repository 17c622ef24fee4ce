package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type xrefEntry struct {
	offset int64
	inUse  bool
	// objects stored inside an object stream (PDF 1.5+)
	container int
	index     int
	packed    bool
}

// Document is a parsed PDF file held in memory.
type Document struct {
	data    []byte
	xref    map[int]xrefEntry
	trailer Dict
	cache   map[int]*Object
}

// Open reads and parses the PDF file at path.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}
	return Load(data)
}

// Load parses a PDF held in memory.
func Load(data []byte) (*Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("pdf: missing %%PDF- header")
	}
	doc := &Document{
		data:  data,
		xref:  make(map[int]xrefEntry),
		cache: make(map[int]*Object),
	}
	off, err := doc.startXRef()
	if err != nil {
		return nil, err
	}
	if err := doc.readXRef(off, 0); err != nil {
		return nil, err
	}
	return doc, nil
}

// Version returns the header version, e.g. "1.4".
func (doc *Document) Version() string {
	line := doc.data[5:]
	if i := bytes.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(string(line))
}

func (doc *Document) startXRef() (int64, error) {
	tail := doc.data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	i := bytes.LastIndex(tail, []byte("startxref"))
	if i < 0 {
		return 0, fmt.Errorf("pdf: startxref not found")
	}
	l := newLexer(tail, i+len("startxref"))
	l.skipSpace()
	off, err := strconv.ParseInt(l.token(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("pdf: bad startxref: %w", err)
	}
	return off, nil
}

// readXRef loads the cross-reference section at off and follows /Prev.
// Entries already present win, since newer sections are read first.
func (doc *Document) readXRef(off int64, hops int) error {
	if hops > 32 {
		return fmt.Errorf("pdf: cross-reference chain too long")
	}
	if off < 0 || off >= int64(len(doc.data)) {
		return fmt.Errorf("pdf: xref offset %d out of range", off)
	}
	l := newLexer(doc.data, int(off))
	l.skipSpace()

	var trailer Dict
	var err error
	if l.accept("xref") {
		trailer, err = doc.readXRefTable(l)
	} else {
		trailer, err = doc.readXRefStream(l)
	}
	if err != nil {
		return err
	}
	if doc.trailer == nil {
		doc.trailer = trailer
	}
	if prev, ok := trailer.Int("Prev"); ok {
		return doc.readXRef(prev, hops+1)
	}
	return nil
}

func (doc *Document) readXRefTable(l *lexer) (Dict, error) {
	for {
		l.skipSpace()
		if l.eof() {
			return nil, fmt.Errorf("pdf: trailer not found")
		}
		if l.accept("trailer") {
			break
		}
		first, err1 := strconv.Atoi(l.token())
		l.skipSpace()
		count, err2 := strconv.Atoi(l.token())
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("pdf: malformed xref subsection")
		}
		for i := 0; i < count; i++ {
			l.skipSpace()
			offTok := l.token()
			l.skipSpace()
			l.token() // generation
			l.skipSpace()
			flag := l.token()
			id := first + i
			if _, seen := doc.xref[id]; seen {
				continue
			}
			off, _ := strconv.ParseInt(offTok, 10, 64)
			doc.xref[id] = xrefEntry{offset: off, inUse: flag == "n"}
		}
	}
	obj, err := l.object()
	if err != nil {
		return nil, err
	}
	if obj.Kind != Dictionary {
		return nil, fmt.Errorf("pdf: trailer is not a dictionary")
	}
	return obj.Dict, nil
}

func (doc *Document) readXRefStream(l *lexer) (Dict, error) {
	obj, err := doc.indirectAt(l)
	if err != nil {
		return nil, err
	}
	if obj.Kind != Stream {
		return nil, fmt.Errorf("pdf: xref section is neither table nor stream")
	}
	data, err := decode(obj.Dict, obj.Stream)
	if err != nil {
		return nil, err
	}
	w, _ := obj.Dict.Array("W")
	if len(w) < 3 {
		return nil, fmt.Errorf("pdf: xref stream without /W")
	}
	w1, w2, w3 := int(w[0].Int), int(w[1].Int), int(w[2].Int)
	size := w1 + w2 + w3
	if size == 0 {
		return nil, fmt.Errorf("pdf: xref stream with empty entries")
	}

	var sections [][2]int
	if idx, ok := obj.Dict.Array("Index"); ok {
		for i := 0; i+1 < len(idx); i += 2 {
			sections = append(sections, [2]int{int(idx[i].Int), int(idx[i+1].Int)})
		}
	} else {
		n, _ := obj.Dict.Int("Size")
		sections = [][2]int{{0, int(n)}}
	}

	pos := 0
	for _, s := range sections {
		for i := 0; i < s[1] && pos+size <= len(data); i++ {
			typ := 1
			if w1 > 0 {
				typ = bigEndian(data[pos:], w1)
			}
			f2 := bigEndian(data[pos+w1:], w2)
			f3 := bigEndian(data[pos+w1+w2:], w3)
			pos += size

			id := s[0] + i
			if _, seen := doc.xref[id]; seen {
				continue
			}
			switch typ {
			case 1:
				doc.xref[id] = xrefEntry{offset: int64(f2), inUse: true}
			case 2:
				doc.xref[id] = xrefEntry{inUse: true, packed: true, container: f2, index: f3}
			default:
				doc.xref[id] = xrefEntry{}
			}
		}
	}
	return obj.Dict, nil
}

func bigEndian(b []byte, n int) int {
	v := 0
	for i := 0; i < n && i < len(b); i++ {
		v = v<<8 | int(b[i])
	}
	return v
}

// indirectAt parses "N G obj <object>" at the lexer position.
func (doc *Document) indirectAt(l *lexer) (*Object, error) {
	start := l.pos
	l.token()
	l.skipSpace()
	l.token()
	l.skipSpace()
	if !l.accept("obj") {
		return nil, fmt.Errorf("pdf: expected object at offset %d", start)
	}
	return l.object()
}

// Resolve follows indirect references; other objects are returned as is.
// Unresolvable references read as null.
func (doc *Document) Resolve(obj *Object) *Object {
	for hops := 0; obj != nil && obj.Kind == Ref && hops < 16; hops++ {
		obj = doc.lookup(obj.Ref.Number)
	}
	if obj == nil {
		return null
	}
	return obj
}

func (doc *Document) lookup(num int) *Object {
	if obj, ok := doc.cache[num]; ok {
		return obj
	}
	doc.cache[num] = null // guards against reference cycles

	entry, ok := doc.xref[num]
	if !ok || !entry.inUse {
		return null
	}
	var obj *Object
	var err error
	if entry.packed {
		obj, err = doc.unpack(entry)
	} else {
		obj, err = doc.objectAt(entry.offset)
	}
	if err != nil || obj == nil {
		return null
	}
	doc.cache[num] = obj
	return obj
}

func (doc *Document) objectAt(off int64) (*Object, error) {
	if off < 0 || off >= int64(len(doc.data)) {
		return nil, fmt.Errorf("pdf: object offset %d out of range", off)
	}
	obj, err := doc.indirectAt(newLexer(doc.data, int(off)))
	if err != nil {
		return nil, err
	}
	// A /Length held in another object reads as unknown while lexing, so the
	// stream was cut at "endstream"; trim it to the declared size.
	if obj.Kind == Stream {
		if ref := obj.Dict["Length"]; ref != nil && ref.Kind == Ref {
			if n := doc.Resolve(ref); n.Kind == Int && n.Int >= 0 && int(n.Int) <= len(obj.Stream) {
				obj.Stream = obj.Stream[:n.Int]
			}
		}
	}
	return obj, nil
}

func (doc *Document) unpack(entry xrefEntry) (*Object, error) {
	container := doc.lookup(entry.container)
	if container.Kind != Stream {
		return nil, fmt.Errorf("pdf: object stream %d missing", entry.container)
	}
	data, err := decode(container.Dict, container.Stream)
	if err != nil {
		return nil, err
	}
	n, _ := container.Dict.Int("N")
	first, _ := container.Dict.Int("First")

	l := newLexer(data, 0)
	offsets := make([]int, 0, n)
	for i := 0; i < int(n); i++ {
		l.skipSpace()
		l.token() // object number
		l.skipSpace()
		off, _ := strconv.Atoi(l.token())
		offsets = append(offsets, off)
	}
	if entry.index < 0 || entry.index >= len(offsets) {
		return nil, fmt.Errorf("pdf: object index %d outside stream", entry.index)
	}
	return newLexer(data, int(first)+offsets[entry.index]).object()
}

// Pages returns the page dictionaries in document order.
func (doc *Document) Pages() ([]Dict, error) {
	root := doc.Resolve(doc.trailer["Root"])
	if root.Kind != Dictionary {
		return nil, fmt.Errorf("pdf: document catalog missing")
	}
	tree := doc.Resolve(root.Dict["Pages"])
	if tree.Kind != Dictionary {
		return nil, fmt.Errorf("pdf: page tree missing")
	}
	var pages []Dict
	doc.walkPages(tree.Dict, inherited{}, &pages, 0)
	return pages, nil
}

// inherited carries the page attributes a page may take from its ancestors.
type inherited struct {
	mediaBox  *Object
	resources *Object
	rotate    *Object
}

func (doc *Document) walkPages(node Dict, attrs inherited, pages *[]Dict, depth int) {
	if depth > maxDepth {
		return
	}
	if v := node["MediaBox"]; v != nil {
		attrs.mediaBox = v
	}
	if v := node["Resources"]; v != nil {
		attrs.resources = v
	}
	if v := node["Rotate"]; v != nil {
		attrs.rotate = v
	}
	if typ, _ := node.Name("Type"); typ == "Page" {
		page := make(Dict, len(node)+3)
		for k, v := range node {
			page[k] = v
		}
		for k, v := range map[string]*Object{"MediaBox": attrs.mediaBox, "Resources": attrs.resources, "Rotate": attrs.rotate} {
			if page[k] == nil && v != nil {
				page[k] = v
			}
		}
		*pages = append(*pages, page)
		return
	}
	kids := doc.Resolve(node["Kids"])
	if kids.Kind != Array {
		return
	}
	for _, k := range kids.Array {
		if kid := doc.Resolve(k); kid.Kind == Dictionary {
			doc.walkPages(kid.Dict, attrs, pages, depth+1)
		}
	}
}

// Contents returns the decoded, concatenated content streams of a page.
func (doc *Document) Contents(page Dict) []byte {
	contents := doc.Resolve(page["Contents"])
	parts := []*Object{contents}
	if contents.Kind == Array {
		parts = contents.Array
	}
	var out []byte
	for _, p := range parts {
		s := doc.Resolve(p)
		if s.Kind != Stream {
			continue
		}
		data, err := decode(s.Dict, s.Stream)
		if err != nil {
			continue
		}
		out = append(out, data...)
		out = append(out, '\n')
	}
	return out
}

// Fonts returns the font dictionaries of a page keyed by resource name.
func (doc *Document) Fonts(page Dict) map[string]Dict {
	res := doc.Resolve(page["Resources"])
	if res.Kind != Dictionary {
		return nil
	}
	fonts := doc.Resolve(res.Dict["Font"])
	if fonts.Kind != Dictionary {
		return nil
	}
	out := make(map[string]Dict, len(fonts.Dict))
	for name, ref := range fonts.Dict {
		if f := doc.Resolve(ref); f.Kind == Dictionary {
			out[name] = f.Dict
		}
	}
	return out
}

// PageInfo holds the size and rotation of a page in points.
type PageInfo struct {
	Width    float64
	Height   float64
	Rotation int
}

// Info returns the media box size and rotation of a page.
func (doc *Document) Info(page Dict) PageInfo {
	var info PageInfo
	if box := doc.Resolve(page["MediaBox"]); box.Kind == Array && len(box.Array) >= 4 {
		info.Width = Number(box.Array[2]) - Number(box.Array[0])
		info.Height = Number(box.Array[3]) - Number(box.Array[1])
	}
	if rot := doc.Resolve(page["Rotate"]); rot.Kind == Int {
		info.Rotation = int(rot.Int)
	}
	return info
}
