package pdf

import (
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func scanFrom(in string) *scanner {
	return newScanner(strings.NewReader(in), 0, nil)
}

func TestReadObject(t *testing.T) {
	cases := []struct {
		in   string
		want Object
	}{
		{"null", nil},
		{"true", Bool(true)},
		{"false", Bool(false)},
		{"123", Integer(123)},
		{"-4", Integer(-4)},
		{"+17", Integer(17)},
		{".5", Real(0.5)},
		{"-3.25", Real(-3.25)},
		{"/Name", Name("Name")},
		{"/A#20B", Name("A B")},
		{"(hello)", String("hello")},
		{"(a(b)c)", String("a(b)c")},
		{`(a\(b)`, String("a(b)")},
		{`(a\101)`, String("aA")},
		{"<68656C6C6F>", String("hello")},
		{"<68656C6C6F7>", String("hellop")},
		{"[1 2.5 /X]", Array{Integer(1), Real(2.5), Name("X")}},
		{"[1 0 R 2]", Array{NewReference(1, 0), Integer(2)}},
		{"<</A 1/B(two)>>", Dict{"A": Integer(1), "B": String("two")}},
		{"<</Next 3 0 R>>", Dict{"Next": NewReference(3, 0)}},
	}
	for _, test := range cases {
		obj, err := scanFrom(test.in).ReadObject()
		if err != nil {
			t.Errorf("%q: unexpected error %v", test.in, err)
			continue
		}
		if d := cmp.Diff(test.want, obj); d != "" {
			t.Errorf("%q: object mismatch (-want +got):\n%s", test.in, d)
		}
	}
}

func TestReadObjectErrors(t *testing.T) {
	cases := []string{
		"",
		"nul",
		"<<",
		"[1 2",
		"}",
	}
	for _, in := range cases {
		_, err := scanFrom(in).ReadObject()
		if err == nil {
			t.Errorf("%q: missing error", in)
		}
	}
}

func TestReadIndirectObject(t *testing.T) {
	in := "12 0 obj\n<</Linearized true>>\nendobj\n"
	obj, ref, err := scanFrom(in).ReadIndirectObject()
	if err != nil {
		t.Fatal(err)
	}
	if ref != NewReference(12, 0) {
		t.Errorf("wrong reference %s", ref)
	}
	want := Dict{"Linearized": Bool(true)}
	if d := cmp.Diff(want, obj); d != "" {
		t.Errorf("object mismatch (-want +got):\n%s", d)
	}
}

func TestReadIndirectReference(t *testing.T) {
	// an indirect object whose value is itself a reference
	in := "5 0 obj 7 0 R endobj"
	obj, ref, err := scanFrom(in).ReadIndirectObject()
	if err != nil {
		t.Fatal(err)
	}
	if ref != NewReference(5, 0) {
		t.Errorf("wrong reference %s", ref)
	}
	if obj != NewReference(7, 0) {
		t.Errorf("got %s, want 7 0 R", Format(obj))
	}
}

func TestReadStream(t *testing.T) {
	in := "1 0 obj\n<</Length 5>>\nstream\nhello\nendstream\nendobj\n"
	obj, _, err := scanFrom(in).ReadIndirectObject()
	if err != nil {
		t.Fatal(err)
	}
	stream, ok := obj.(*Stream)
	if !ok {
		t.Fatalf("got %T, want *Stream", obj)
	}

	// payloads can be read repeatedly
	for i := 0; i < 2; i++ {
		body, err := io.ReadAll(stream.payload())
		if err != nil {
			t.Fatal(err)
		}
		if string(body) != "hello" {
			t.Errorf("wrong stream data %q", body)
		}
	}
}

func TestStringDecryptHook(t *testing.T) {
	s := scanFrom("2 0 obj (secret) endobj")
	var gotRef Reference
	s.decryptString = func(ref Reference, buf []byte) ([]byte, error) {
		gotRef = ref
		return []byte(strings.ToUpper(string(buf))), nil
	}

	obj, _, err := s.ReadIndirectObject()
	if err != nil {
		t.Fatal(err)
	}
	if gotRef != NewReference(2, 0) {
		t.Errorf("hook keyed by %s", gotRef)
	}
	if d := cmp.Diff(String("SECRET"), obj); d != "" {
		t.Errorf("string mismatch (-want +got):\n%s", d)
	}
}

func TestReadHeaderVersion(t *testing.T) {
	version, err := scanFrom("%PDF-1.7\n").readHeaderVersion()
	if err != nil {
		t.Fatal(err)
	}
	if version != V1_7 {
		t.Errorf("got version %s", version)
	}

	for _, in := range []string{"", "%PEF-1.7\n", "%PDF-0.1\n", "%PDF-1.50\n"} {
		_, err := scanFrom(in).readHeaderVersion()
		if err == nil {
			t.Errorf("%q: missing error", in)
		}
	}
}

func TestSkipWhiteSpace(t *testing.T) {
	s := scanFrom("  % comment\n\t 42")
	err := s.SkipWhiteSpace()
	if err != nil {
		t.Fatal(err)
	}
	x, err := s.ReadInteger()
	if err != nil {
		t.Fatal(err)
	}
	if x != 42 {
		t.Errorf("got %d", x)
	}
}
