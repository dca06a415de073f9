// Package document provides a high-level view of a PDF file, combining
// object resolution with page tree navigation.
package document

import (
	"io"
	"sync"

	"github.com/pagegraph/pdf"
	"github.com/pagegraph/pdf/pagetree"
)

// Document gives access to the pages, objects and metadata of a PDF file.
type Document struct {
	R *pdf.Reader

	mu    sync.Mutex
	pages *pagetree.Reader
	meta  *Metadata
}

// Metadata collects the document-level information of a PDF file.  It is
// parsed once per document; repeated calls to [Document.Metadata] return
// the same value.
type Metadata struct {
	// Version is the PDF version of the document, taking a catalog
	// /Version override into account.
	Version pdf.Version

	// ID holds the two file identifiers from the trailer, or nil.
	ID [][]byte

	// Info is the document information dictionary, or nil.
	Info *pdf.Info

	// Trailer gives the raw values of the combined trailer dictionary.
	Trailer pdf.Dict
}

// Open opens the named PDF file.  Close must be called when the document
// is no longer needed.
func Open(fname string, opt *pdf.ReaderOptions) (*Document, error) {
	r, err := pdf.Open(fname, opt)
	if err != nil {
		return nil, err
	}
	return &Document{R: r}, nil
}

// New creates a Document from a PDF file stored in memory or any other
// random-access byte source.
func New(data io.ReaderAt, size int64, opt *pdf.ReaderOptions) (*Document, error) {
	r, err := pdf.NewReader(data, size, opt)
	if err != nil {
		return nil, err
	}
	return &Document{R: r}, nil
}

// Close releases the file underlying the document, if any.
func (d *Document) Close() error {
	return d.R.Close()
}

// pageTree returns the page tree navigator, creating it on first use.
// For encrypted documents this requires an accepted password.
func (d *Document) pageTree() (*pagetree.Reader, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pages != nil {
		return d.pages, nil
	}
	pages, err := pagetree.NewReader(d.R)
	if err != nil {
		return nil, err
	}
	d.pages = pages
	return pages, nil
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() (int, error) {
	pages, err := d.pageTree()
	if err != nil {
		return 0, err
	}
	return pages.NumPages(), nil
}

// Page returns the page with the given zero-based index, with its
// inherited attributes resolved.
func (d *Document) Page(pageNo int) (*pagetree.Page, error) {
	pages, err := d.pageTree()
	if err != nil {
		return nil, err
	}
	return pages.Page(pageNo)
}

// ContentStreams returns the decoded content streams of the page with the
// given zero-based index.  Each content stream is returned as a separate
// chunk; an empty page yields no chunks.
func (d *Document) ContentStreams(pageNo int) ([][]byte, error) {
	page, err := d.Page(pageNo)
	if err != nil {
		return nil, err
	}
	return pagetree.Contents(d.R, page)
}

// GetObject reads the indirect object with the given object and
// generation numbers.
func (d *Document) GetObject(number uint32, generation uint16) (pdf.Object, error) {
	return d.R.GetObject(number, generation)
}

// Resolve follows obj if it is an indirect reference.  Other objects are
// returned unchanged.
func (d *Document) Resolve(obj pdf.Object) (pdf.Object, error) {
	return pdf.Resolve(d.R, obj)
}

// Metadata returns the document metadata.  The result is cached, so all
// calls return the same value.
func (d *Document) Metadata() (*Metadata, error) {
	d.mu.Lock()
	meta := d.meta
	d.mu.Unlock()
	if meta != nil {
		return meta, nil
	}

	info, err := d.R.GetInfo()
	if err != nil {
		return nil, err
	}
	fileMeta := d.R.GetMeta()
	meta = &Metadata{
		Version: fileMeta.Version,
		ID:      fileMeta.ID,
		Info:    info,
		Trailer: fileMeta.Trailer,
	}

	d.mu.Lock()
	if d.meta == nil {
		d.meta = meta
	}
	meta = d.meta
	d.mu.Unlock()
	return meta, nil
}

// TryPassword attempts to unlock an encrypted document.  A wrong password
// returns false without error.
func (d *Document) TryPassword(passwd string, owner bool) (bool, error) {
	return d.R.TryPassword(passwd, owner)
}

// Permissions reports the user permission flags of the document.
func (d *Document) Permissions() pdf.Perm {
	return d.R.Permissions()
}
