package pdf

import (
	"bytes"
	"fmt"
	"strconv"
)

const maxDepth = 100

// lexer is a recursive-descent reader for PDF objects. It is shared by the
// file-level reader and the content stream interpreter.
type lexer struct {
	data  []byte
	pos   int
	depth int
}

func newLexer(data []byte, pos int) *lexer {
	return &lexer{data: data, pos: pos}
}

func (l *lexer) eof() bool { return l.pos >= len(l.data) }

// skipSpace skips whitespace and comments.
func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		case isSpace(c):
			l.pos++
		default:
			return
		}
	}
}

// accept advances past s when the input continues with it.
func (l *lexer) accept(s string) bool {
	if bytes.HasPrefix(l.data[l.pos:], []byte(s)) {
		l.pos += len(s)
		return true
	}
	return false
}

func isDelim(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

// token reads a run of regular characters.
func (l *lexer) token() string {
	start := l.pos
	for l.pos < len(l.data) && !isSpace(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// object parses one object at the current position. Unknown tokens read as
// null so a damaged file degrades instead of failing outright.
func (l *lexer) object() (*Object, error) {
	if l.depth > maxDepth {
		return nil, fmt.Errorf("pdf: nesting deeper than %d", maxDepth)
	}
	l.depth++
	defer func() { l.depth-- }()

	l.skipSpace()
	if l.eof() {
		return null, nil
	}

	switch c := l.data[l.pos]; {
	case c == '(':
		return l.literal(), nil
	case c == '<' && l.pos+1 < len(l.data) && l.data[l.pos+1] == '<':
		return l.dict()
	case c == '<':
		return l.hex(), nil
	case c == '/':
		return &Object{Kind: Name, Name: l.name()}, nil
	case c == '[':
		return l.array()
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return l.numberOrRef(), nil
	case l.accept("true"):
		return &Object{Kind: Bool, Bool: true}, nil
	case l.accept("false"):
		return &Object{Kind: Bool}, nil
	case l.accept("null"):
		return null, nil
	}
	return null, nil
}

// literal parses a (string), honouring nesting and escapes.
func (l *lexer) literal() *Object {
	l.pos++
	var buf bytes.Buffer
	for depth := 1; l.pos < len(l.data); {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return &Object{Kind: String, Str: buf.Bytes()}
			}
		case '\\':
			l.escape(&buf)
			continue
		}
		buf.WriteByte(c)
	}
	return &Object{Kind: String, Str: buf.Bytes()}
}

func (l *lexer) escape(buf *bytes.Buffer) {
	if l.eof() {
		return
	}
	c := l.data[l.pos]
	l.pos++
	switch c {
	case 'n':
		buf.WriteByte('\n')
	case 'r':
		buf.WriteByte('\r')
	case 't':
		buf.WriteByte('\t')
	case 'b':
		buf.WriteByte('\b')
	case 'f':
		buf.WriteByte('\f')
	case '\r':
		if !l.eof() && l.data[l.pos] == '\n' {
			l.pos++
		}
	case '\n':
	default:
		if c < '0' || c > '7' {
			buf.WriteByte(c)
			return
		}
		v := int(c - '0')
		for i := 0; i < 2 && !l.eof(); i++ {
			d := l.data[l.pos]
			if d < '0' || d > '7' {
				break
			}
			v = v*8 + int(d-'0')
			l.pos++
		}
		buf.WriteByte(byte(v))
	}
}

// hex parses a <hex string>. An odd final digit is padded with zero.
func (l *lexer) hex() *Object {
	l.pos++
	var buf bytes.Buffer
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		if c := l.data[l.pos]; !isSpace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	for i := 0; i < len(digits); i += 2 {
		buf.WriteByte(unhex(digits[i])<<4 | unhex(digits[i+1]))
	}
	return &Object{Kind: String, Str: buf.Bytes()}
}

func unhex(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	}
	return 0
}

// name parses /Name, decoding #XX escapes.
func (l *lexer) name() string {
	l.pos++
	raw := l.token()
	if !bytes.ContainsRune([]byte(raw), '#') {
		return raw
	}
	var buf bytes.Buffer
	for i := 0; i < len(raw); i++ {
		if raw[i] == '#' && i+2 < len(raw) {
			buf.WriteByte(unhex(raw[i+1])<<4 | unhex(raw[i+2]))
			i += 2
			continue
		}
		buf.WriteByte(raw[i])
	}
	return buf.String()
}

func (l *lexer) array() (*Object, error) {
	l.pos++
	arr := &Object{Kind: Array}
	for {
		l.skipSpace()
		if l.eof() {
			return arr, nil
		}
		if l.data[l.pos] == ']' {
			l.pos++
			return arr, nil
		}
		obj, err := l.object()
		if err != nil {
			return nil, err
		}
		arr.Array = append(arr.Array, obj)
	}
}

// dict parses <<...>> and, when the keyword follows, the attached stream.
func (l *lexer) dict() (*Object, error) {
	l.pos += 2
	d := make(Dict)
	for {
		l.skipSpace()
		if l.eof() {
			break
		}
		if l.accept(">>") {
			break
		}
		if l.data[l.pos] != '/' {
			l.pos++
			continue
		}
		key := l.name()
		val, err := l.object()
		if err != nil {
			return nil, err
		}
		d[key] = val
	}

	l.skipSpace()
	if !l.accept("stream") {
		return &Object{Kind: Dictionary, Dict: d}, nil
	}
	l.accept("\r")
	l.accept("\n")

	start := l.pos
	var end int
	if n, ok := d.Int("Length"); ok && d["Length"].Kind == Int && start+int(n) <= len(l.data) {
		end = start + int(n)
	} else if i := bytes.Index(l.data[start:], []byte("endstream")); i >= 0 {
		end = start + i
	} else {
		end = len(l.data)
	}
	l.pos = end
	l.skipSpace()
	l.accept("endstream")
	return &Object{Kind: Stream, Dict: d, Stream: l.data[start:end]}, nil
}

// numberOrRef parses a number, or an indirect reference when the number is
// followed by a generation and R.
func (l *lexer) numberOrRef() *Object {
	tok := l.token()
	n, intErr := strconv.ParseInt(tok, 10, 64)
	if intErr == nil {
		after := l.pos
		l.skipSpace()
		gen, err := strconv.ParseInt(l.token(), 10, 64)
		if err == nil {
			l.skipSpace()
			if l.pos < len(l.data) && l.data[l.pos] == 'R' &&
				(l.pos+1 == len(l.data) || isSpace(l.data[l.pos+1]) || isDelim(l.data[l.pos+1])) {
				l.pos++
				return &Object{Kind: Ref, Ref: Reference{Number: int(n), Gen: int(gen)}}
			}
		}
		l.pos = after
		return &Object{Kind: Int, Int: n}
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return &Object{Kind: Real, Real: f}
	}
	return null
}
