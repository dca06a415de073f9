package pdf_test

import (
	"bytes"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pagegraph/pdf"
	"github.com/pagegraph/pdf/internal/testfile"
	"github.com/pagegraph/pdf/pagetree"
)

func openBytes(t *testing.T, data []byte) *pdf.Reader {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestXRefTable(t *testing.T) {
	r := openBytes(t, testfile.Simple())

	catalog, err := r.GetCatalog()
	if err != nil {
		t.Fatal(err)
	}
	if catalog.Pages != pdf.NewReference(2, 0) {
		t.Errorf("wrong page tree root %s", catalog.Pages)
	}

	obj, err := r.GetObject(3, 0)
	if err != nil {
		t.Fatal(err)
	}
	page, ok := obj.(pdf.Dict)
	if !ok {
		t.Fatalf("got %T, want Dict", obj)
	}
	if page["Type"] != pdf.Name("Page") {
		t.Errorf("wrong object %s", pdf.Format(page))
	}
}

func TestXRefIncrementalUpdate(t *testing.T) {
	b := testfile.SimpleBuilder()
	b.WriteXRef(simpleTestTrailer())

	// second revision replaces the information dictionary
	b.Put(pdf.NewReference(5, 0), pdf.Dict{"Title": pdf.String("Revised")})
	b.WriteXRef(pdf.Dict{"Root": pdf.NewReference(1, 0)})

	r := openBytes(t, b.Bytes())

	// the newest section wins for object 5 ...
	info, err := r.GetInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Title != "Revised" {
		t.Errorf("got title %q", info.Title)
	}

	// ... while /Info comes from the older trailer
	if ref, _ := r.GetMeta().Trailer.Reference("Info"); ref != pdf.NewReference(5, 0) {
		t.Errorf("trailer /Info is %s", ref)
	}

	// objects from the first revision are still reachable
	obj, err := r.GetObject(3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(pdf.Name("Page"), obj.(pdf.Dict)["Type"]); d != "" {
		t.Errorf("page mismatch (-want +got):\n%s", d)
	}

	// both sections contribute to the merged object index
	nums := r.Objects()
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	if d := cmp.Diff([]uint32{1, 2, 3, 4, 5}, nums); d != "" {
		t.Errorf("object numbers mismatch (-want +got):\n%s", d)
	}
}

func TestXRefUpdatedPageTree(t *testing.T) {
	b := testfile.SimpleBuilder()
	b.WriteXRef(simpleTestTrailer())

	// second revision appends a page by replacing the page tree root
	b.Put(pdf.NewReference(2, 0), pdf.Dict{
		"Type":  pdf.Name("Pages"),
		"Kids":  pdf.Array{pdf.NewReference(3, 0), pdf.NewReference(6, 0)},
		"Count": pdf.Integer(2),
	})
	b.Put(pdf.NewReference(6, 0), pdf.Dict{
		"Type":      pdf.Name("Page"),
		"Parent":    pdf.NewReference(2, 0),
		"MediaBox":  pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(297), pdf.Integer(420)},
		"Resources": pdf.Dict{},
	})
	b.WriteXRef(pdf.Dict{"Root": pdf.NewReference(1, 0)})

	r := openBytes(t, b.Bytes())
	pages, err := pagetree.NewReader(r)
	if err != nil {
		t.Fatal(err)
	}
	if n := pages.NumPages(); n != 2 {
		t.Fatalf("got %d pages", n)
	}
	page, err := pages.Page(1)
	if err != nil {
		t.Fatal(err)
	}
	if page.Ref != pdf.NewReference(6, 0) {
		t.Errorf("got page %s", page.Ref)
	}
	if page.MediaBox.Dx() != 297 || page.MediaBox.Dy() != 420 {
		t.Errorf("got page size %g x %g", page.MediaBox.Dx(), page.MediaBox.Dy())
	}
}

func simpleTestTrailer() pdf.Dict {
	return pdf.Dict{
		"Root": pdf.NewReference(1, 0),
		"Info": pdf.NewReference(5, 0),
		"ID":   pdf.Array{pdf.String(testfile.FileID), pdf.String(testfile.FileID)},
	}
}

func TestXRefBrokenPrev(t *testing.T) {
	b := testfile.SimpleBuilder()
	trailer := simpleTestTrailer()
	trailer["Prev"] = pdf.Integer(5) // points into the header
	b.WriteXRef(trailer)

	// errors in older sections are absorbed
	r := openBytes(t, b.Bytes())
	obj, err := r.GetObject(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if obj.(pdf.Dict)["Type"] != pdf.Name("Catalog") {
		t.Errorf("wrong object %s", pdf.Format(obj))
	}
}

func TestXRefStream(t *testing.T) {
	r := openBytes(t, testfile.SimpleXRefStream())

	// object 1 is stored in an object stream
	catalog, err := r.GetCatalog()
	if err != nil {
		t.Fatal(err)
	}
	if catalog.Pages != pdf.NewReference(2, 0) {
		t.Errorf("wrong page tree root %s", catalog.Pages)
	}

	// object 3 has a regular entry in the same cross-reference stream
	obj, err := r.GetObject(3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if obj.(pdf.Dict)["Type"] != pdf.Name("Page") {
		t.Errorf("wrong object %s", pdf.Format(obj))
	}

	info, err := r.GetInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Title != testfile.Title {
		t.Errorf("got title %q", info.Title)
	}
}

func TestXRefHybrid(t *testing.T) {
	b := testfile.New()

	// compressed objects, covered by a cross-reference stream
	b.ObjStm(6, []testfile.Member{
		{Num: 5, Obj: pdf.Dict{"Title": pdf.String(testfile.Title)}},
	})
	stmPos := b.Pos()
	b.WriteXRefStream(7, pdf.Dict{})

	// regular objects, covered by a classic table which bridges to the
	// stream via /XRefStm
	b.Put(pdf.NewReference(1, 0), pdf.Dict{
		"Type":  pdf.Name("Catalog"),
		"Pages": pdf.NewReference(2, 0),
	})
	b.Put(pdf.NewReference(2, 0), pdf.Dict{
		"Type":  pdf.Name("Pages"),
		"Kids":  pdf.Array{},
		"Count": pdf.Integer(0),
	})
	trailer := simpleTestTrailer()
	trailer["XRefStm"] = pdf.Integer(stmPos)
	trailer["Prev"] = nil // no back-pointer
	b.WriteXRef(trailer)

	r := openBytes(t, b.Bytes())

	catalog, err := r.GetCatalog()
	if err != nil {
		t.Fatal(err)
	}
	if catalog.Pages != pdf.NewReference(2, 0) {
		t.Errorf("wrong page tree root %s", catalog.Pages)
	}

	// object 5 is only reachable through the bridged stream
	info, err := r.GetInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Title != testfile.Title {
		t.Errorf("got title %q", info.Title)
	}
}

func TestTrailerMissingKeys(t *testing.T) {
	cases := []struct {
		name    string
		trailer pdf.Dict
	}{
		{"Root", pdf.Dict{"Info": pdf.NewReference(5, 0)}},
		{"Size", pdf.Dict{"Root": pdf.NewReference(1, 0), "Size": nil}},
	}
	for _, test := range cases {
		b := testfile.SimpleBuilder()
		b.WriteXRef(test.trailer)
		data := b.Bytes()
		_, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)), nil)
		if !pdf.IsKind(err, pdf.MissingRequiredKey) {
			t.Errorf("%s: got error %v", test.name, err)
		}
	}
}
