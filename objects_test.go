package pdf

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		in  Object
		out string
	}{
		{nil, "null"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Integer(-12), "-12"},
		{Real(1.5), "1.5"},
		{String("hello"), "(hello)"},
		{String("he(llo"), `(he\(llo)`},
		{Name("X"), "/X"},
		{Name("a b"), "/a#20b"},
		{Array{Integer(1), Name("two"), nil}, "[1 /two null]"},
		{Dict{"A": Integer(1)}, "<<\n/A 1\n>>"},
		{NewReference(12, 3), "12 3 R"},
	}
	for _, test := range cases {
		if got := Format(test.in); got != test.out {
			t.Errorf("Format(%v): got %q, want %q", test.in, got, test.out)
		}
	}
}

func TestReferencePacking(t *testing.T) {
	cases := []struct {
		number     uint32
		generation uint16
	}{
		{0, 0},
		{1, 0},
		{12, 3},
		{0xFFFF_FFFF, 0xFFFF},
	}
	for _, test := range cases {
		ref := NewReference(test.number, test.generation)
		if ref.Number() != test.number || ref.Generation() != test.generation {
			t.Errorf("NewReference(%d, %d) round trip: got (%d, %d)",
				test.number, test.generation, ref.Number(), ref.Generation())
		}
	}
}

func TestTextString(t *testing.T) {
	cases := []string{
		"",
		"hello world",
		"Größenwahn",
		"こんにちは",
	}
	for _, text := range cases {
		s := TextString(text)
		if got := s.AsTextString(); got != text {
			t.Errorf("text string round trip: got %q, want %q", got, text)
		}
	}

	// a UTF-16BE string with byte order mark
	s := String{0xFE, 0xFF, 0x00, 'H', 0x00, 'i'}
	if got := s.AsTextString(); got != "Hi" {
		t.Errorf("UTF-16 decoding: got %q", got)
	}
}

func TestDate(t *testing.T) {
	loc := time.FixedZone("", 2*60*60)
	cases := []time.Time{
		time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		time.Date(1999, 12, 31, 23, 59, 59, 0, loc),
	}
	for _, want := range cases {
		got, err := Date(want).AsDate()
		if err != nil {
			t.Fatal(err)
		}
		if !got.Equal(want) {
			t.Errorf("date round trip: got %s, want %s", got, want)
		}
	}

	_, err := String("D:not a date").AsDate()
	if err == nil {
		t.Error("malformed date: missing error")
	}
}

func TestDictAccessors(t *testing.T) {
	dict := Dict{
		"Int":  Integer(7),
		"Name": Name("N"),
		"Arr":  Array{Integer(1)},
		"Ref":  NewReference(5, 0),
	}

	if val, ok := dict.Int("Int"); !ok || val != 7 {
		t.Errorf("Int accessor: got (%d, %t)", val, ok)
	}
	if _, ok := dict.Int("Name"); ok {
		t.Error("Int accessor must not convert names")
	}
	if _, ok := dict.Int("Missing"); ok {
		t.Error("Int accessor on missing key")
	}
	if val, ok := dict.Reference("Ref"); !ok || val != NewReference(5, 0) {
		t.Errorf("Reference accessor: got (%s, %t)", val, ok)
	}
	// accessors never resolve references
	if _, ok := dict.Int("Ref"); ok {
		t.Error("Int accessor must not resolve references")
	}
}

type dictGetter map[Reference]Object

func (g dictGetter) GetMeta() *MetaInfo { return &MetaInfo{} }

func (g dictGetter) Get(ref Reference) (Object, error) {
	obj, ok := g[ref]
	if !ok {
		return nil, &Error{Kind: ObjectNotFound}
	}
	return obj, nil
}

func TestResolveSingleHop(t *testing.T) {
	g := dictGetter{
		NewReference(1, 0): NewReference(2, 0),
		NewReference(2, 0): Integer(42),
	}

	obj, err := Resolve(g, NewReference(1, 0))
	if err != nil {
		t.Fatal(err)
	}
	// only one level of indirection is followed
	if obj != NewReference(2, 0) {
		t.Errorf("got %s, want 2 0 R", Format(obj))
	}

	obj, err = Resolve(g, Integer(7))
	if err != nil || obj != Integer(7) {
		t.Errorf("non-references must pass through: got %s, %v", Format(obj), err)
	}
}

func TestGetRectangle(t *testing.T) {
	g := dictGetter{
		NewReference(1, 0): Integer(612),
	}

	rect, err := GetRectangle(g, Array{
		Integer(0), Real(792), NewReference(1, 0), Integer(0),
	})
	if err != nil {
		t.Fatal(err)
	}
	// corners are normalized to lower-left and upper-right
	want := &Rectangle{LLx: 0, LLy: 0, URx: 612, URy: 792}
	if d := cmp.Diff(want, rect); d != "" {
		t.Errorf("rectangle mismatch (-want +got):\n%s", d)
	}

	if _, err := GetRectangle(g, Array{Integer(1)}); ErrorKind(err) != MalformedStructure {
		t.Errorf("short array: got error %v", err)
	}

	rect, err = GetRectangle(g, nil)
	if err != nil || rect != nil {
		t.Errorf("null rectangle: got %v, %v", rect, err)
	}
}
