package pdf_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pagegraph/pdf"
	"github.com/pagegraph/pdf/internal/testfile"
)

// countingReaderAt counts ReadAt calls, so tests can check that cached
// objects are served without touching the byte source.
type countingReaderAt struct {
	r     *bytes.Reader
	calls int
}

func (c *countingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	c.calls++
	return c.r.ReadAt(p, off)
}

func TestOpenSimple(t *testing.T) {
	r := openBytes(t, testfile.Simple())

	meta := r.GetMeta()
	if meta.Version != pdf.V1_7 {
		t.Errorf("got version %s", meta.Version)
	}
	wantID := [][]byte{testfile.FileID, testfile.FileID}
	if d := cmp.Diff(wantID, meta.ID); d != "" {
		t.Errorf("ID mismatch (-want +got):\n%s", d)
	}

	if r.Encrypted() {
		t.Error("document reported as encrypted")
	}
	if !r.Unlocked() {
		t.Error("document reported as locked")
	}
	if perms := r.Permissions(); perms != pdf.PermAll {
		t.Errorf("got permissions %b", perms)
	}
}

func TestGetCached(t *testing.T) {
	data := testfile.Simple()
	src := &countingReaderAt{r: bytes.NewReader(data)}
	r, err := pdf.NewReader(src, int64(len(data)), nil)
	if err != nil {
		t.Fatal(err)
	}

	first, err := r.GetObject(3, 0)
	if err != nil {
		t.Fatal(err)
	}

	before := src.calls
	second, err := r.GetObject(3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if src.calls != before {
		t.Errorf("cache hit caused %d reads", src.calls-before)
	}
	if d := cmp.Diff(first, second); d != "" {
		t.Errorf("objects differ (-first +second):\n%s", d)
	}
}

func TestGetMissing(t *testing.T) {
	r := openBytes(t, testfile.Simple())

	// unknown object number
	_, err := r.GetObject(99, 0)
	if !pdf.IsKind(err, pdf.ObjectNotFound) {
		t.Errorf("got error %v", err)
	}

	// known number, wrong generation
	_, err = r.GetObject(3, 1)
	if !pdf.IsKind(err, pdf.ObjectNotFound) {
		t.Errorf("got error %v", err)
	}
}

func TestGetInfoMemoized(t *testing.T) {
	r := openBytes(t, testfile.Simple())

	first, err := r.GetInfo()
	if err != nil {
		t.Fatal(err)
	}
	if first.Title != testfile.Title {
		t.Errorf("got title %q", first.Title)
	}

	second, err := r.GetInfo()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("GetInfo did not memoize the result")
	}
	if r.GetMeta().Info != first {
		t.Error("meta info not filled in")
	}
}
