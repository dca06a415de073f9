package pdf

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"io"
	"testing"

	"github.com/hhrutter/lzw"
)

// decode runs the filter chain of a stream built from the given raw bytes.
func decode(t *testing.T, dict Dict, raw []byte) []byte {
	t.Helper()
	stm := &Stream{Dict: dict, R: bytes.NewReader(raw)}
	r, err := DecodeStream(nil, stm)
	if err != nil {
		t.Fatal(err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w := zlib.NewWriter(buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFlateDecode(t *testing.T) {
	msg := []byte("Lorem ipsum dolor sit amet, consectetur adipisci elit.")
	out := decode(t, Dict{"Filter": Name("FlateDecode")}, deflate(t, msg))
	if !bytes.Equal(out, msg) {
		t.Errorf("got %q", out)
	}
}

func TestFlatePNGPredictor(t *testing.T) {
	// two rows of four samples, both using the Up filter
	rows := []byte{
		2, 1, 2, 3, 4,
		2, 4, 4, 4, 4,
	}
	dict := Dict{
		"Filter": Name("FlateDecode"),
		"DecodeParms": Dict{
			"Predictor": Integer(12),
			"Columns":   Integer(4),
		},
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if out := decode(t, dict, deflate(t, rows)); !bytes.Equal(out, want) {
		t.Errorf("got %v", out)
	}
}

func TestFlateTIFFPredictor(t *testing.T) {
	diffs := []byte{1, 2, 3, 4}
	dict := Dict{
		"Filter": Name("FlateDecode"),
		"DecodeParms": Dict{
			"Predictor": Integer(2),
			"Columns":   Integer(4),
		},
	}
	want := []byte{1, 3, 6, 10}
	if out := decode(t, dict, deflate(t, diffs)); !bytes.Equal(out, want) {
		t.Errorf("got %v", out)
	}
}

func TestLZWDecode(t *testing.T) {
	msg := []byte("TOBEORNOTTOBEORTOBEORNOT")

	buf := &bytes.Buffer{}
	w := lzw.NewWriter(buf, true)
	if _, err := w.Write(msg); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	out := decode(t, Dict{"Filter": Name("LZWDecode")}, buf.Bytes())
	if !bytes.Equal(out, msg) {
		t.Errorf("got %q", out)
	}
}

func TestASCIIHexDecode(t *testing.T) {
	dict := Dict{"Filter": Name("ASCIIHexDecode")}

	out := decode(t, dict, []byte("48 65 6C6C 6F>"))
	if string(out) != "Hello" {
		t.Errorf("got %q", out)
	}

	// an odd number of digits is padded with a zero
	out = decode(t, dict, []byte("48657>"))
	if string(out) != "Hep" {
		t.Errorf("odd digits: got %q", out)
	}
}

func TestASCII85Decode(t *testing.T) {
	msg := []byte("Man is distinguished, not only by his reason")

	buf := &bytes.Buffer{}
	w := ascii85.NewEncoder(buf)
	if _, err := w.Write(msg); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	buf.WriteString("~>")

	out := decode(t, Dict{"Filter": Name("ASCII85Decode")}, buf.Bytes())
	if !bytes.Equal(out, msg) {
		t.Errorf("got %q", out)
	}
}

func TestRunLengthDecode(t *testing.T) {
	raw := []byte{2, 'a', 'b', 'c', 254, 'x', 128}
	out := decode(t, Dict{"Filter": Name("RunLengthDecode")}, raw)
	if string(out) != "abcxxx" {
		t.Errorf("got %q", out)
	}
}

func TestCCITTDecode(t *testing.T) {
	// two all-white rows of eight pixels in Group 4 encoding: each row is
	// a single V(0) code bit, followed by the end-of-block pattern
	raw := []byte{0xC0, 0x04, 0x00, 0x40}

	dict := Dict{
		"Filter": Name("CCITTFaxDecode"),
		"DecodeParms": Dict{
			"K":       Integer(-1),
			"Columns": Integer(8),
			"Rows":    Integer(2),
		},
	}
	want := []byte{0xFF, 0xFF}
	if out := decode(t, dict, raw); !bytes.Equal(out, want) {
		t.Errorf("got %v", out)
	}

	// with BlackIs1 the output is inverted
	dict["DecodeParms"].(Dict)["BlackIs1"] = Bool(true)
	want = []byte{0x00, 0x00}
	if out := decode(t, dict, raw); !bytes.Equal(out, want) {
		t.Errorf("BlackIs1: got %v", out)
	}
}

func TestFilterChain(t *testing.T) {
	// filters are applied in array order
	msg := []byte("chained filters")
	raw := []byte(hex.EncodeToString(deflate(t, msg)))
	raw = append(raw, '>')

	dict := Dict{
		"Filter": Array{Name("ASCIIHexDecode"), Name("FlateDecode")},
	}
	if out := decode(t, dict, raw); !bytes.Equal(out, msg) {
		t.Errorf("got %q", out)
	}
}

func TestIndirectFilterName(t *testing.T) {
	// indirect filter entries resolve through the Getter
	g := dictGetter{
		NewReference(8, 0): Name("ASCIIHexDecode"),
	}
	stm := &Stream{
		Dict: Dict{"Filter": NewReference(8, 0)},
		R:    bytes.NewReader([]byte("4869>")),
	}
	r, err := DecodeStream(g, stm)
	if err != nil {
		t.Fatal(err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "Hi" {
		t.Errorf("got %q", out)
	}

	// without a Getter the same stream must be rejected
	stm.R = bytes.NewReader([]byte("4869>"))
	_, err = DecodeStream(nil, stm)
	if !IsKind(err, MalformedStructure) {
		t.Errorf("got error %v", err)
	}
}

func TestUnsupportedFilter(t *testing.T) {
	stm := &Stream{
		Dict: Dict{"Filter": Name("JPXDecode")},
		R:    bytes.NewReader([]byte("data")),
	}
	r, err := DecodeStream(nil, stm)
	if err != nil {
		t.Fatal(err)
	}
	_, err = io.ReadAll(r)
	if !IsKind(err, MalformedStructure) {
		t.Errorf("got error %v", err)
	}
}
