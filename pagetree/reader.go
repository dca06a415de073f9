// Package pagetree navigates the page tree of a PDF document.
//
// Pages are addressed by zero-based index.  The navigator descends the
// tree using the node counts, so looking up a page touches only the nodes
// on the path from the root to that page.
package pagetree

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pagegraph/pdf"
)

// Page holds a page dictionary together with its resolved inheritable
// attributes.  Pages are immutable once returned.
type Page struct {
	// Ref is the reference of the page object, or 0 if the page
	// dictionary was included inline in its parent node.
	Ref pdf.Reference

	// Dict is the page dictionary as stored in the file.
	Dict pdf.Dict

	// Resources is the page's resource dictionary, own or inherited.
	Resources pdf.Dict

	// MediaBox is the page boundary, own or inherited.
	MediaBox *pdf.Rectangle

	// CropBox is the visible region, if any.
	CropBox *pdf.Rectangle

	// Rotate is the display rotation in degrees, one of 0, 90, 180, 270.
	Rotate int
}

// Reader provides access to the pages of a document.
type Reader struct {
	r       pdf.Getter
	root    pdf.Dict
	rootRef pdf.Reference

	numPages int

	mu    sync.Mutex
	pages map[int]*Page
}

// NewReader creates a page tree navigator for the given document.
func NewReader(r pdf.Getter) (*Reader, error) {
	catalog := r.GetMeta().Catalog
	if catalog == nil {
		// the catalog parse may have been deferred, for example while an
		// encrypted document is locked
		if cg, ok := r.(interface{ GetCatalog() (*pdf.Catalog, error) }); ok {
			cat, err := cg.GetCatalog()
			if err != nil {
				return nil, err
			}
			catalog = cat
		}
	}
	if catalog == nil || catalog.Pages == 0 {
		return nil, &pdf.Error{Kind: pdf.MissingRequiredKey,
			Err: errors.New("catalog /Pages")}
	}
	root, err := pdf.GetDict(r, catalog.Pages)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, &pdf.Error{Kind: pdf.ObjectNotFound,
			Err: errors.New("page tree root")}
	}
	if _, ok := root["Count"]; !ok {
		return nil, &pdf.Error{Kind: pdf.MissingRequiredKey,
			Err: errors.New("page tree /Count")}
	}
	count, err := pdf.GetInt(r, root["Count"])
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, &pdf.Error{Kind: pdf.MalformedStructure,
			Err: fmt.Errorf("invalid page count %d", count)}
	}

	return &Reader{
		r:        r,
		root:     root,
		rootRef:  catalog.Pages,
		numPages: int(count),
		pages:    map[int]*Page{},
	}, nil
}

// NumPages returns the number of pages in the document.
func (r *Reader) NumPages() int {
	return r.numPages
}

// Page returns the page with the given zero-based index.  Results are
// cached, so repeated lookups of the same index are cheap.
func (r *Reader) Page(pageNo int) (*Page, error) {
	if pageNo < 0 || pageNo >= r.numPages {
		return nil, &pdf.Error{Kind: pdf.ObjectNotFound,
			Err: fmt.Errorf("page %d (document has %d pages)", pageNo, r.numPages)}
	}

	r.mu.Lock()
	page := r.pages[pageNo]
	r.mu.Unlock()
	if page != nil {
		return page, nil
	}

	page, err := r.findPage(pageNo)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.pages[pageNo] = page
	r.mu.Unlock()
	return page, nil
}

// inheritable collects the attribute values seen on the path from the
// root to a page.  Values declared closer to the page win.
type inheritable struct {
	resources pdf.Object
	mediaBox  pdf.Object
	cropBox   pdf.Object
	rotate    pdf.Object
}

func (a *inheritable) collect(node pdf.Dict) {
	if val, ok := node["Resources"]; ok {
		a.resources = val
	}
	if val, ok := node["MediaBox"]; ok {
		a.mediaBox = val
	}
	if val, ok := node["CropBox"]; ok {
		a.cropBox = val
	}
	if val, ok := node["Rotate"]; ok {
		a.rotate = val
	}
}

func (r *Reader) findPage(pageNo int) (*Page, error) {
	dict := r.root
	ref := r.rootRef
	seen := map[pdf.Reference]bool{r.rootRef: true}

	var attrs inheritable
	attrs.collect(dict)

	pos := 0
treeLoop:
	for {
		if tp, _ := dict.Name("Type"); tp == "Page" {
			break
		}

		kids, err := pdf.GetArray(r.r, dict["Kids"])
		if err != nil {
			return nil, err
		}
		if kids == nil {
			return nil, &pdf.Error{Kind: pdf.MissingRequiredKey,
				Err: errors.New("page tree /Kids")}
		}

		for _, kid := range kids {
			kidRef, _ := kid.(pdf.Reference)
			childDict, err := pdf.GetDict(r.r, kid)
			if err != nil {
				return nil, err
			}

			var count int
			tp, _ := childDict.Name("Type")
			switch tp {
			case "Pages":
				c, err := pdf.GetInt(r.r, childDict["Count"])
				if err != nil {
					return nil, err
				}
				if c < 0 {
					return nil, &pdf.Error{Kind: pdf.MalformedStructure,
						Err: fmt.Errorf("invalid page count %d", c)}
				}
				count = int(c)
			case "Page":
				count = 1
			default:
				return nil, &pdf.Error{Kind: pdf.MalformedStructure,
					Err: fmt.Errorf("unexpected page tree node type %q", tp)}
			}

			if pageNo < pos+count {
				if kidRef != 0 {
					if seen[kidRef] {
						return nil, &pdf.Error{Kind: pdf.MalformedStructure,
							Err: errors.New("loop in page tree")}
					}
					seen[kidRef] = true
				}
				dict = childDict
				ref = kidRef
				attrs.collect(dict)
				continue treeLoop
			}
			pos += count
		}

		// the counts promised more pages than the kids deliver
		return nil, &pdf.Error{Kind: pdf.MalformedStructure,
			Err: fmt.Errorf("page %d missing from page tree", pageNo)}
	}
	if pageNo != pos {
		return nil, &pdf.Error{Kind: pdf.MalformedStructure,
			Err: fmt.Errorf("page %d missing from page tree", pageNo)}
	}

	return r.makePage(ref, dict, &attrs)
}

func (r *Reader) makePage(ref pdf.Reference, dict pdf.Dict, attrs *inheritable) (*Page, error) {
	resources, err := pdf.GetDict(r.r, attrs.resources)
	if err != nil {
		return nil, err
	}

	if attrs.mediaBox == nil {
		return nil, &pdf.Error{Kind: pdf.MissingRequiredKey,
			Err: errors.New("page /MediaBox")}
	}
	mediaBox, err := pdf.GetRectangle(r.r, attrs.mediaBox)
	if err != nil {
		return nil, err
	}
	if mediaBox == nil {
		return nil, &pdf.Error{Kind: pdf.MissingRequiredKey,
			Err: errors.New("page /MediaBox")}
	}

	cropBox, err := pdf.GetRectangle(r.r, attrs.cropBox)
	if err != nil {
		return nil, err
	}

	rotate := 0
	if attrs.rotate != nil {
		rot, err := pdf.GetInt(r.r, attrs.rotate)
		if err != nil {
			return nil, err
		}
		if rot%90 != 0 {
			return nil, &pdf.Error{Kind: pdf.MalformedStructure,
				Err: fmt.Errorf("invalid page rotation %d", rot)}
		}
		rotate = int(((rot % 360) + 360) % 360)
	}

	return &Page{
		Ref:       ref,
		Dict:      dict,
		Resources: resources,
		MediaBox:  mediaBox,
		CropBox:   cropBox,
		Rotate:    rotate,
	}, nil
}
