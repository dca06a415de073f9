package document

import (
	"bytes"
	"testing"

	"github.com/pagegraph/pdf"
	"github.com/pagegraph/pdf/internal/testfile"
)

func open(t *testing.T, data []byte, opt *pdf.ReaderOptions) *Document {
	t.Helper()
	doc, err := New(bytes.NewReader(data), int64(len(data)), opt)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestDocument(t *testing.T) {
	doc := open(t, testfile.Simple(), nil)

	n, err := doc.PageCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("got %d pages", n)
	}

	page, err := doc.Page(0)
	if err != nil {
		t.Fatal(err)
	}
	if page.MediaBox.Dx() != 612 || page.MediaBox.Dy() != 792 {
		t.Errorf("got page size %g x %g", page.MediaBox.Dx(), page.MediaBox.Dy())
	}

	chunks, err := doc.ContentStreams(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || string(chunks[0]) != testfile.PageText {
		t.Errorf("got content %q", chunks)
	}

	if perms := doc.Permissions(); perms != pdf.PermAll {
		t.Errorf("got permissions %b", perms)
	}
}

func TestDocumentMetadata(t *testing.T) {
	doc := open(t, testfile.Simple(), nil)

	meta, err := doc.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if meta.Version != pdf.V1_7 {
		t.Errorf("got version %s", meta.Version)
	}
	if meta.Info == nil || meta.Info.Title != testfile.Title {
		t.Errorf("got info %v", meta.Info)
	}
	if len(meta.ID) != 2 || !bytes.Equal(meta.ID[0], testfile.FileID) {
		t.Errorf("got ID %q", meta.ID)
	}
	if _, ok := meta.Trailer["Root"]; !ok {
		t.Error("trailer /Root missing")
	}

	again, err := doc.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if meta != again {
		t.Error("metadata not cached")
	}
}

func TestDocumentResolve(t *testing.T) {
	doc := open(t, testfile.Simple(), nil)

	obj, err := doc.GetObject(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	catalog := obj.(pdf.Dict)

	obj, err = doc.Resolve(catalog["Pages"])
	if err != nil {
		t.Fatal(err)
	}
	pages, ok := obj.(pdf.Dict)
	if !ok {
		t.Fatalf("got %T", obj)
	}
	if pages["Type"] != pdf.Name("Pages") {
		t.Errorf("got %s", pdf.Format(pages))
	}
}

func TestDocumentEncryptedCatalog(t *testing.T) {
	// the catalog contains an encrypted /Lang string, so even page tree
	// access requires a password
	doc := open(t, testfile.EncryptedRC4Lang("secret", "en-US"), nil)

	_, err := doc.PageCount()
	if !pdf.IsKind(err, pdf.EncryptionLocked) {
		t.Errorf("PageCount while locked: got error %v", err)
	}

	ok, err := doc.TryPassword("secret", false)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("password rejected")
	}

	n, err := doc.PageCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("got %d pages", n)
	}
}

func TestDocumentEncrypted(t *testing.T) {
	doc := open(t, testfile.EncryptedRC4("secret"), nil)

	// the page tree contains no protected strings and works while locked
	n, err := doc.PageCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("got %d pages", n)
	}

	// content streams and metadata stay locked
	_, err = doc.ContentStreams(0)
	if !pdf.IsKind(err, pdf.EncryptionLocked) {
		t.Errorf("ContentStreams: got error %v", err)
	}
	_, err = doc.Metadata()
	if !pdf.IsKind(err, pdf.EncryptionLocked) {
		t.Errorf("Metadata: got error %v", err)
	}

	ok, err := doc.TryPassword("secret", false)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("password rejected")
	}

	chunks, err := doc.ContentStreams(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || string(chunks[0]) != testfile.PageText {
		t.Errorf("got content %q", chunks)
	}
	meta, err := doc.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if meta.Info == nil || meta.Info.Title != testfile.Title {
		t.Errorf("got info %v", meta.Info)
	}
}
