package pdf

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/hhrutter/lzw"
	"golang.org/x/image/ccitt"
)

// DecodeStream returns a reader for the decoded payload of a stream: the
// raw content is decrypted (for encrypted documents) and then passed
// through the stream's filter chain.  The Getter is used to resolve
// indirect filter parameters; it may be nil if the stream dictionary
// contains only direct objects.
//
// Repeated calls return independent readers, each starting at the
// beginning of the payload.
func DecodeStream(r Getter, x *Stream) (io.Reader, error) {
	out := x.payload()
	if x.decrypt != nil {
		var err error
		out, err = x.decrypt(out)
		if err != nil {
			return nil, err
		}
	}

	filters, err := getFilters(r, x.Dict)
	if err != nil {
		return nil, err
	}
	for _, fi := range filters {
		out = applyFilter(out, fi.name, fi.parms)
	}
	return out, nil
}

type filterInfo struct {
	name  Name
	parms Dict
}

// getFilters reads the /Filter and /DecodeParms entries of a stream
// dictionary.  Both single values and arrays are allowed.
func getFilters(r Getter, dict Dict) ([]filterInfo, error) {
	filter, err := resolveShallow(r, dict["Filter"])
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return nil, nil
	}
	parms, err := resolveShallow(r, dict["DecodeParms"])
	if err != nil {
		return nil, err
	}

	var names []Object
	var parmList []Object
	switch f := filter.(type) {
	case Name:
		names = []Object{f}
		parmList = []Object{parms}
	case Array:
		names = f
		if pa, ok := parms.(Array); ok {
			parmList = pa
		}
	default:
		return nil, &Error{Kind: MalformedStructure,
			Err: fmt.Errorf("invalid /Filter entry %s", Format(filter))}
	}

	res := make([]filterInfo, len(names))
	for i, obj := range names {
		obj, err = resolveShallow(r, obj)
		if err != nil {
			return nil, err
		}
		name, ok := obj.(Name)
		if !ok {
			return nil, &Error{Kind: MalformedStructure,
				Err: fmt.Errorf("invalid filter name %s", Format(obj))}
		}
		var pDict Dict
		if i < len(parmList) {
			p, err := resolveShallow(r, parmList[i])
			if err != nil {
				return nil, err
			}
			pDict, _ = p.(Dict)
		}
		res[i] = filterInfo{name: name, parms: pDict}
	}
	return res, nil
}

// resolveShallow follows an indirect reference when a Getter is available.
// Cross-reference streams are decoded before any objects can be resolved,
// so their dictionaries must consist of direct objects only.
func resolveShallow(r Getter, obj Object) (Object, error) {
	ref, ok := obj.(Reference)
	if !ok {
		return obj, nil
	}
	if r == nil {
		return nil, &Error{Kind: MalformedStructure,
			Err: errors.New("unexpected indirect filter parameter")}
	}
	return r.Get(ref)
}

func applyFilter(r io.Reader, name Name, parms Dict) io.Reader {
	switch name {
	case "FlateDecode":
		zr, err := zlib.NewReader(r)
		if err != nil {
			return &errorReader{&Error{Kind: MalformedStructure, Err: err}}
		}
		return withPredictor(zr, parms)
	case "LZWDecode":
		earlyChange := true
		if val, ok := parms.Int("EarlyChange"); ok && val == 0 {
			earlyChange = false
		}
		return withPredictor(lzw.NewReader(r, earlyChange), parms)
	case "ASCII85Decode":
		return ascii85.NewDecoder(&eodReader{r: r, eod: '~'})
	case "ASCIIHexDecode":
		return &slurpReader{fill: func() ([]byte, error) {
			return decodeASCIIHex(&eodReader{r: r, eod: '>'})
		}}
	case "RunLengthDecode":
		return &slurpReader{fill: func() ([]byte, error) {
			return decodeRunLength(r)
		}}
	case "CCITTFaxDecode":
		return decodeCCITT(r, parms)
	default:
		return &errorReader{&Error{Kind: MalformedStructure,
			Err: fmt.Errorf("unsupported filter %q", name)}}
	}
}

// withPredictor undoes the optional predictor step of the Flate and LZW
// filters.
func withPredictor(r io.Reader, parms Dict) io.Reader {
	predictor := 1
	colors := 1
	bits := 8
	columns := 1
	if parms != nil {
		if val, ok := parms.Int("Predictor"); ok {
			predictor = int(val)
		}
		if val, ok := parms.Int("Colors"); ok {
			colors = int(val)
		}
		if val, ok := parms.Int("BitsPerComponent"); ok {
			bits = int(val)
		}
		if val, ok := parms.Int("Columns"); ok {
			columns = int(val)
		}
	}
	if predictor == 1 {
		return r
	}

	if colors < 1 || bits < 1 || bits > 16 || columns < 1 || columns > 1<<20 {
		return &errorReader{&Error{Kind: MalformedStructure,
			Err: fmt.Errorf("invalid predictor parameters %d/%d/%d",
				colors, bits, columns)}}
	}
	bpp := (colors*bits + 7) / 8
	rowLen := (columns*colors*bits + 7) / 8

	switch {
	case predictor == 2:
		if bits != 8 {
			return &errorReader{&Error{Kind: MalformedStructure,
				Err: fmt.Errorf("TIFF predictor with %d bits per component", bits)}}
		}
		return &tiffPredReader{r: r, rowLen: rowLen, bpp: bpp}
	case predictor >= 10 && predictor <= 15:
		return &pngPredReader{
			r:    r,
			bpp:  bpp,
			prev: make([]byte, rowLen),
			row:  make([]byte, 1+rowLen),
		}
	default:
		return &errorReader{&Error{Kind: MalformedStructure,
			Err: fmt.Errorf("unsupported predictor %d", predictor)}}
	}
}

// pngPredReader undoes the PNG row filters (predictors 10 to 15).  Each
// row is prefixed with a filter type byte, so all five PNG filters may
// occur regardless of the declared predictor value.
type pngPredReader struct {
	r    io.Reader
	bpp  int
	prev []byte
	row  []byte
	pend []byte
}

func (p *pngPredReader) Read(b []byte) (int, error) {
	n := 0
	for len(b) > 0 {
		if len(p.pend) > 0 {
			m := copy(b, p.pend)
			n += m
			b = b[m:]
			p.pend = p.pend[m:]
			continue
		}
		_, err := io.ReadFull(p.r, p.row)
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil {
			return n, err
		}

		ft := p.row[0]
		cur := p.row[1:]
		switch ft {
		case 0: // None
		case 1: // Sub
			for i := p.bpp; i < len(cur); i++ {
				cur[i] += cur[i-p.bpp]
			}
		case 2: // Up
			for i := range cur {
				cur[i] += p.prev[i]
			}
		case 3: // Average
			for i := range cur {
				var left byte
				if i >= p.bpp {
					left = cur[i-p.bpp]
				}
				cur[i] += byte((int(left) + int(p.prev[i])) / 2)
			}
		case 4: // Paeth
			for i := range cur {
				var left, upLeft byte
				if i >= p.bpp {
					left = cur[i-p.bpp]
					upLeft = p.prev[i-p.bpp]
				}
				cur[i] += paeth(left, p.prev[i], upLeft)
			}
		default:
			return n, &Error{Kind: MalformedStructure,
				Err: fmt.Errorf("invalid PNG filter type %d", ft)}
		}

		copy(p.prev, cur)
		p.pend = cur
	}
	return n, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
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

// tiffPredReader undoes TIFF predictor 2 for 8-bit components.
type tiffPredReader struct {
	r      io.Reader
	rowLen int
	bpp    int
	buf    []byte
	pend   []byte
}

func (p *tiffPredReader) Read(b []byte) (int, error) {
	n := 0
	for len(b) > 0 {
		if len(p.pend) > 0 {
			m := copy(b, p.pend)
			n += m
			b = b[m:]
			p.pend = p.pend[m:]
			continue
		}
		if p.buf == nil {
			p.buf = make([]byte, p.rowLen)
		}
		_, err := io.ReadFull(p.r, p.buf)
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil {
			return n, err
		}
		for i := p.bpp; i < len(p.buf); i++ {
			p.buf[i] += p.buf[i-p.bpp]
		}
		p.pend = p.buf
	}
	return n, nil
}

func decodeCCITT(r io.Reader, parms Dict) io.Reader {
	k := int64(0)
	columns := 1728
	rows := ccitt.AutoDetectHeight
	blackIs1 := false
	byteAlign := false
	if parms != nil {
		if val, ok := parms.Int("K"); ok {
			k = int64(val)
		}
		if val, ok := parms.Int("Columns"); ok {
			columns = int(val)
		}
		if val, ok := parms.Int("Rows"); ok && val > 0 {
			rows = int(val)
		}
		if val, ok := parms.Bool("BlackIs1"); ok {
			blackIs1 = bool(val)
		}
		if val, ok := parms.Bool("EncodedByteAlign"); ok {
			byteAlign = bool(val)
		}
	}

	var sf ccitt.SubFormat
	switch {
	case k < 0:
		sf = ccitt.Group4
	case k == 0:
		sf = ccitt.Group3
	default:
		return &errorReader{&Error{Kind: MalformedStructure,
			Err: errors.New("mixed 1D/2D CCITT encoding is not supported")}}
	}

	return ccitt.NewReader(r, ccitt.MSB, sf, columns, rows,
		&ccitt.Options{Invert: blackIs1, Align: byteAlign})
}

// decodeASCIIHex reads hexadecimal data up to the EOD marker. Whitespace
// is ignored, and an odd number of digits is padded with a trailing zero.
func decodeASCIIHex(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	digits := make([]byte, 0, len(raw))
	for _, c := range raw {
		if isSpace[c] {
			continue
		}
		digits = append(digits, c)
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	_, err = hex.Decode(out, digits)
	if err != nil {
		return nil, &Error{Kind: MalformedStructure, Err: err}
	}
	return out, nil
}

func decodeRunLength(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var out []byte
	for pos := 0; pos < len(raw); {
		length := int(raw[pos])
		pos++
		switch {
		case length < 128:
			if pos+length+1 > len(raw) {
				return nil, &Error{Kind: MalformedStructure,
					Err: errors.New("truncated run length data")}
			}
			out = append(out, raw[pos:pos+length+1]...)
			pos += length + 1
		case length > 128:
			if pos >= len(raw) {
				return nil, &Error{Kind: MalformedStructure,
					Err: errors.New("truncated run length data")}
			}
			for i := 0; i < 257-length; i++ {
				out = append(out, raw[pos])
			}
			pos++
		default: // 128 is the EOD marker
			return out, nil
		}
	}
	return out, nil
}

// eodReader passes bytes through until the end-of-data marker is seen.
type eodReader struct {
	r    io.Reader
	eod  byte
	done bool
}

func (e *eodReader) Read(b []byte) (int, error) {
	if e.done {
		return 0, io.EOF
	}
	n, err := e.r.Read(b)
	for i := 0; i < n; i++ {
		if b[i] == e.eod {
			e.done = true
			return i, io.EOF
		}
	}
	return n, err
}

// slurpReader defers a whole-buffer decode until the first Read.
type slurpReader struct {
	fill func() ([]byte, error)
	r    io.Reader
}

func (s *slurpReader) Read(b []byte) (int, error) {
	if s.r == nil {
		data, err := s.fill()
		if err != nil {
			return 0, err
		}
		s.r = bytes.NewReader(data)
	}
	return s.r.Read(b)
}

type errorReader struct {
	err error
}

func (e *errorReader) Read([]byte) (int, error) {
	return 0, e.err
}
