package pdf

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"fmt"
	"io"
)

// maxDecoded bounds the size of a single decoded stream (64 MB).
const maxDecoded = 64 << 20

// decode applies the filter chain declared in a stream dictionary.
func decode(d Dict, data []byte) ([]byte, error) {
	filters, ok := d.Array("Filter")
	if !ok {
		return data, nil
	}
	params, _ := d.Array("DecodeParms")

	out := data
	for i, f := range filters {
		if f.Kind != Name {
			continue
		}
		var parms Dict
		if i < len(params) && params[i] != nil && params[i].Kind == Dictionary {
			parms = params[i].Dict
		}
		var err error
		if out, err = applyFilter(f.Name, parms, out); err != nil {
			return nil, fmt.Errorf("pdf: %s: %w", f.Name, err)
		}
	}
	return out, nil
}

func applyFilter(name string, parms Dict, data []byte) ([]byte, error) {
	switch name {
	case "FlateDecode", "Fl":
		return inflate(parms, data)
	case "ASCII85Decode", "A85":
		data = bytes.TrimSuffix(bytes.TrimSpace(data), []byte("~>"))
		return io.ReadAll(io.LimitReader(ascii85.NewDecoder(bytes.NewReader(data)), maxDecoded))
	case "ASCIIHexDecode", "AHx":
		data = bytes.TrimSuffix(bytes.TrimSpace(data), []byte(">"))
		data = bytes.Join(bytes.Fields(data), nil)
		if len(data)%2 == 1 {
			data = append(data, '0')
		}
		out := make([]byte, hex.DecodedLen(len(data)))
		_, err := hex.Decode(out, data)
		return out, err
	case "DCTDecode", "DCT", "JPXDecode", "CCITTFaxDecode", "CCF", "JBIG2Decode", "Crypt":
		// Image payloads and identity crypt carry no text.
		return data, nil
	}
	return nil, fmt.Errorf("unsupported filter")
}

func inflate(parms Dict, data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxDecoded+1))
	if err != nil && len(out) == 0 {
		return nil, err
	}
	if len(out) > maxDecoded {
		return nil, fmt.Errorf("decoded stream exceeds %d bytes", maxDecoded)
	}
	if pred, ok := parms.Int("Predictor"); ok && pred >= 10 {
		return unpredictPNG(parms, out)
	}
	return out, nil
}

// unpredictPNG reverses the PNG row predictors used by cross-reference and
// object streams.
func unpredictPNG(parms Dict, data []byte) ([]byte, error) {
	columns, ok := parms.Int("Columns")
	if !ok || columns < 1 {
		columns = 1
	}
	colors, ok := parms.Int("Colors")
	if !ok || colors < 1 {
		colors = 1
	}
	bpc, ok := parms.Int("BitsPerComponent")
	if !ok || bpc < 1 {
		bpc = 8
	}
	bpp := int((colors*bpc + 7) / 8)
	rowLen := int((columns*colors*bpc + 7) / 8)

	var out []byte
	prev := make([]byte, rowLen)
	for off := 0; off+rowLen+1 <= len(data); off += rowLen + 1 {
		kind := data[off]
		row := append([]byte(nil), data[off+1:off+1+rowLen]...)
		for i := range row {
			var left, up, upLeft byte
			if i >= bpp {
				left = row[i-bpp]
				upLeft = prev[i-bpp]
			}
			up = prev[i]
			switch kind {
			case 1:
				row[i] += left
			case 2:
				row[i] += up
			case 3:
				row[i] += byte((int(left) + int(up)) / 2)
			case 4:
				row[i] += paeth(left, up, upLeft)
			}
		}
		out = append(out, row...)
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
