package pdf

import (
	"bytes"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
)

// fontDecoder maps the bytes of a shown string to Unicode.
// A ToUnicode map takes precedence over the font's base encoding.
type fontDecoder struct {
	table     *charmap.Charmap
	composite bool // Type0: two-byte codes
	toUnicode *cmap
}

func newFontDecoder(doc *Document, font Dict) *fontDecoder {
	dec := &fontDecoder{table: charmap.Windows1252}
	if font == nil {
		return dec
	}
	subtype, _ := font.Name("Subtype")
	dec.composite = subtype == "Type0"

	enc := doc.Resolve(font["Encoding"])
	name := enc.Name
	if enc.Kind == Dictionary {
		name, _ = enc.Dict.Name("BaseEncoding")
	}
	if name == "MacRomanEncoding" {
		dec.table = charmap.Macintosh
	}

	if cmap := doc.Resolve(font["ToUnicode"]); cmap.Kind == Stream {
		if data, err := decode(cmap.Dict, cmap.Stream); err == nil {
			dec.toUnicode = parseToUnicode(data)
		}
	}
	return dec
}

func (d *fontDecoder) decode(s []byte) string {
	var sb strings.Builder
	if d.composite {
		for i := 0; i+1 < len(s); i += 2 {
			code := uint32(s[i])<<8 | uint32(s[i+1])
			if u, ok := d.toUnicode.lookup(code); ok {
				sb.WriteString(u)
			}
		}
		return sb.String()
	}
	for _, b := range s {
		if u, ok := d.toUnicode.lookup(uint32(b)); ok {
			sb.WriteString(u)
			continue
		}
		sb.WriteRune(d.table.DecodeByte(b))
	}
	return sb.String()
}

// cmap is a parsed ToUnicode map. Ranges with a single destination are
// kept unexpanded.
type cmap struct {
	chars  map[uint32]string
	ranges []cmapRange
}

type cmapRange struct {
	low, high uint32
	base      []rune
}

func (m *cmap) lookup(c uint32) (string, bool) {
	if m == nil {
		return "", false
	}
	if u, ok := m.chars[c]; ok {
		return u, true
	}
	for _, r := range m.ranges {
		if c >= r.low && c <= r.high {
			out := append([]rune(nil), r.base...)
			out[len(out)-1] += rune(c - r.low)
			return string(out), true
		}
	}
	return "", false
}

// parseToUnicode reads the bfchar and bfrange sections of a ToUnicode CMap.
func parseToUnicode(data []byte) *cmap {
	out := &cmap{chars: make(map[uint32]string)}
	l := newLexer(data, 0)
	var operands []*Object
	section := ""
	for {
		l.skipSpace()
		if l.eof() {
			return out
		}
		c := l.data[l.pos]
		if c == '<' || c == '[' || c == '/' || c == '(' || (c >= '0' && c <= '9') {
			obj, err := l.object()
			if err != nil {
				return out
			}
			operands = append(operands, obj)
			continue
		}
		if isDelim(c) {
			l.pos++
			continue
		}
		switch op := l.token(); op {
		case "beginbfchar", "beginbfrange":
			section = op
			operands = operands[:0]
		case "endbfchar":
			for i := 0; i+1 < len(operands); i += 2 {
				out.chars[code(operands[i].Str)] = utf16BE(operands[i+1].Str)
			}
			section, operands = "", operands[:0]
		case "endbfrange":
			for i := 0; i+2 < len(operands); i += 3 {
				out.addRange(operands[i], operands[i+1], operands[i+2])
			}
			section, operands = "", operands[:0]
		default:
			if section == "" {
				operands = operands[:0]
			}
		}
	}
}

func (m *cmap) addRange(lo, hi, dst *Object) {
	low, high := code(lo.Str), code(hi.Str)
	if high < low {
		return
	}
	if dst.Kind == Array {
		for i, o := range dst.Array {
			c := uint64(low) + uint64(i)
			if c > uint64(high) {
				break
			}
			m.chars[uint32(c)] = utf16BE(o.Str)
		}
		return
	}
	base := []rune(utf16BE(dst.Str))
	if len(base) == 0 {
		return
	}
	m.ranges = append(m.ranges, cmapRange{low: low, high: high, base: base})
}

func code(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

func utf16BE(b []byte) string {
	if len(b)%2 == 1 {
		b = append(bytes.Clone(b), 0)
	}
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return string(utf16.Decode(units))
}
