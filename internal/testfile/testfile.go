// Package testfile assembles small PDF files in memory for use in tests.
//
// The Builder tracks byte offsets as objects are written, so tests can
// emit classic cross-reference tables, cross-reference streams and
// incremental updates without hard-coding file positions.
package testfile

import (
	"bytes"
	"crypto/md5"
	"crypto/rc4"
	"fmt"
	"sort"

	"github.com/pagegraph/pdf"
)

type entry struct {
	pos   int64
	gen   uint16
	inStm uint32
}

// Builder accumulates the bytes of a PDF file.
type Builder struct {
	buf     bytes.Buffer
	entries map[uint32]*entry
	dirty   map[uint32]bool
	maxObj  uint32

	lastXRef int64
}

// New creates a Builder and writes the PDF header.
func New() *Builder {
	return NewVersion("1.7")
}

// NewVersion creates a Builder with the given header version.
func NewVersion(version string) *Builder {
	b := &Builder{
		entries: map[uint32]*entry{},
		dirty:   map[uint32]bool{},
	}
	fmt.Fprintf(&b.buf, "%%PDF-%s\n%%\x80\x81\x82\x83\n", version)
	return b
}

// Pos returns the current length of the file.
func (b *Builder) Pos() int64 {
	return int64(b.buf.Len())
}

// Raw appends bytes verbatim, without recording an object offset.
func (b *Builder) Raw(s string) {
	b.buf.WriteString(s)
}

// Bytes returns the file assembled so far.
func (b *Builder) Bytes() []byte {
	return b.buf.Bytes()
}

func (b *Builder) record(num uint32, e *entry) {
	b.entries[num] = e
	b.dirty[num] = true
	if num > b.maxObj {
		b.maxObj = num
	}
}

// Put writes an indirect object and records its offset for the next
// cross-reference section.
func (b *Builder) Put(ref pdf.Reference, obj pdf.Object) {
	b.record(ref.Number(), &entry{pos: b.Pos(), gen: ref.Generation()})
	fmt.Fprintf(&b.buf, "%d %d obj\n", ref.Number(), ref.Generation())
	if obj == nil {
		b.buf.WriteString("null")
	} else if err := obj.PDF(&b.buf); err != nil {
		panic(err)
	}
	b.buf.WriteString("\nendobj\n")
}

// PutStream writes a stream object.  The /Length entry is filled in
// automatically.
func (b *Builder) PutStream(ref pdf.Reference, dict pdf.Dict, payload []byte) {
	d := pdf.Dict{}
	for key, val := range dict {
		d[key] = val
	}
	d["Length"] = pdf.Integer(len(payload))
	b.Put(ref, &pdf.Stream{Dict: d, R: bytes.NewReader(payload)})
}

// Member is one object stored inside an object stream.
type Member struct {
	Num uint32
	Obj pdf.Object
}

// ObjStm writes an object stream holding the given members and records
// them as compressed entries for the next cross-reference stream.
func (b *Builder) ObjStm(num uint32, members []Member) {
	var head, body bytes.Buffer
	for _, m := range members {
		fmt.Fprintf(&head, "%d %d ", m.Num, body.Len())
		if m.Obj == nil {
			body.WriteString("null")
		} else if err := m.Obj.PDF(&body); err != nil {
			panic(err)
		}
		body.WriteString(" ")
	}

	for i, m := range members {
		b.record(m.Num, &entry{pos: int64(i), inStm: num})
	}

	payload := append(head.Bytes(), body.Bytes()...)
	b.PutStream(pdf.NewReference(num, 0), pdf.Dict{
		"Type":  pdf.Name("ObjStm"),
		"N":     pdf.Integer(len(members)),
		"First": pdf.Integer(head.Len()),
	}, payload)
}

// subsections groups the given sorted object numbers into runs of
// consecutive numbers.
func subsections(nums []uint32) [][]uint32 {
	var res [][]uint32
	for i := 0; i < len(nums); {
		j := i + 1
		for j < len(nums) && nums[j] == nums[j-1]+1 {
			j++
		}
		res = append(res, nums[i:j])
		i = j
	}
	return res
}

func (b *Builder) dirtySorted() []uint32 {
	nums := make([]uint32, 0, len(b.dirty))
	for num := range b.dirty {
		nums = append(nums, num)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums
}

func (b *Builder) finishTrailer(trailer pdf.Dict) pdf.Dict {
	d := pdf.Dict{}
	for key, val := range trailer {
		d[key] = val
	}
	if _, ok := d["Size"]; !ok {
		d["Size"] = pdf.Integer(b.maxObj + 1)
	}
	if b.lastXRef > 0 {
		if _, ok := d["Prev"]; !ok {
			d["Prev"] = pdf.Integer(b.lastXRef)
		}
	}
	return d
}

// WriteXRef emits a classic cross-reference table covering all objects
// written since the previous cross-reference section, followed by the
// trailer and the startxref footer.  Size and Prev are filled in unless
// the caller supplies them.
func (b *Builder) WriteXRef(trailer pdf.Dict) {
	nums := b.dirtySorted()
	first := b.lastXRef == 0
	xrefPos := b.Pos()

	b.buf.WriteString("xref\n")
	if first {
		b.buf.WriteString("0 1\n0000000000 65535 f\r\n")
	}
	for _, sub := range subsections(nums) {
		fmt.Fprintf(&b.buf, "%d %d\n", sub[0], len(sub))
		for _, num := range sub {
			e := b.entries[num]
			if e.inStm != 0 {
				panic("compressed object in classic xref table")
			}
			fmt.Fprintf(&b.buf, "%010d %05d n\r\n", e.pos, e.gen)
		}
	}

	b.buf.WriteString("trailer\n")
	if err := b.finishTrailer(trailer).PDF(&b.buf); err != nil {
		panic(err)
	}
	fmt.Fprintf(&b.buf, "\nstartxref\n%d\n%%%%EOF\n", xrefPos)

	b.lastXRef = xrefPos
	b.dirty = map[uint32]bool{}
}

// WriteXRefStream emits a cross-reference stream holding the entries for
// all objects written since the previous cross-reference section.  The
// stream itself is written as object num and covers its own entry.
func (b *Builder) WriteXRefStream(num uint32, trailer pdf.Dict) {
	xrefPos := b.Pos()
	b.record(num, &entry{pos: xrefPos})

	nums := b.dirtySorted()
	first := b.lastXRef == 0

	var index pdf.Array
	var data bytes.Buffer
	writeRow := func(tp byte, f2 int64, f3 uint16) {
		data.WriteByte(tp)
		data.WriteByte(byte(f2 >> 24))
		data.WriteByte(byte(f2 >> 16))
		data.WriteByte(byte(f2 >> 8))
		data.WriteByte(byte(f2))
		data.WriteByte(byte(f3 >> 8))
		data.WriteByte(byte(f3))
	}

	if first {
		index = append(index, pdf.Integer(0), pdf.Integer(1))
		writeRow(0, 0, 0xFFFF)
	}
	for _, sub := range subsections(nums) {
		index = append(index, pdf.Integer(sub[0]), pdf.Integer(len(sub)))
		for _, n := range sub {
			e := b.entries[n]
			if e.inStm != 0 {
				writeRow(2, int64(e.inStm), uint16(e.pos))
			} else {
				writeRow(1, e.pos, e.gen)
			}
		}
	}

	dict := b.finishTrailer(trailer)
	dict["Type"] = pdf.Name("XRef")
	dict["W"] = pdf.Array{pdf.Integer(1), pdf.Integer(4), pdf.Integer(2)}
	dict["Index"] = index
	dict["Length"] = pdf.Integer(data.Len())

	fmt.Fprintf(&b.buf, "%d 0 obj\n", num)
	stm := &pdf.Stream{Dict: dict, R: bytes.NewReader(data.Bytes())}
	if err := stm.PDF(&b.buf); err != nil {
		panic(err)
	}
	b.buf.WriteString("\nendobj\n")
	fmt.Fprintf(&b.buf, "startxref\n%d\n%%%%EOF\n", xrefPos)

	b.lastXRef = xrefPos
	b.dirty = map[uint32]bool{}
}

// PageText is the content stream payload used by the canned documents.
const PageText = "BT /F1 12 Tf 72 720 Td (Hello, world!) Tj ET"

// Title is the /Title value used by the canned documents.
const Title = "Sample Document"

// FileID is the document identifier used by the canned documents.
var FileID = []byte("0123456789abcdef")

func addBody(b *Builder) {
	b.Put(pdf.NewReference(1, 0), pdf.Dict{
		"Type":  pdf.Name("Catalog"),
		"Pages": pdf.NewReference(2, 0),
	})
	b.Put(pdf.NewReference(2, 0), pdf.Dict{
		"Type":  pdf.Name("Pages"),
		"Kids":  pdf.Array{pdf.NewReference(3, 0)},
		"Count": pdf.Integer(1),
	})
	b.Put(pdf.NewReference(3, 0), pdf.Dict{
		"Type":      pdf.Name("Page"),
		"Parent":    pdf.NewReference(2, 0),
		"MediaBox":  pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(612), pdf.Integer(792)},
		"Resources": pdf.Dict{},
		"Contents":  pdf.NewReference(4, 0),
	})
	b.PutStream(pdf.NewReference(4, 0), pdf.Dict{}, []byte(PageText))
	b.Put(pdf.NewReference(5, 0), pdf.Dict{
		"Title": pdf.String(Title),
	})
}

func simpleTrailer() pdf.Dict {
	return pdf.Dict{
		"Root": pdf.NewReference(1, 0),
		"Info": pdf.NewReference(5, 0),
		"ID":   pdf.Array{pdf.String(FileID), pdf.String(FileID)},
	}
}

// Simple returns a one-page document with a classic cross-reference
// table: a catalog, a page tree with a single page, one content stream
// and an information dictionary.
func Simple() []byte {
	b := New()
	addBody(b)
	b.WriteXRef(simpleTrailer())
	return b.Bytes()
}

// SimpleBuilder returns a Builder holding the body of [Simple] with no
// cross-reference section written yet, so tests can append their own.
func SimpleBuilder() *Builder {
	b := New()
	addBody(b)
	return b
}

// SimpleXRefStream returns the [Simple] document with the catalog, page
// tree and information dictionary packed into an object stream and a
// cross-reference stream instead of a classic table.
func SimpleXRefStream() []byte {
	b := New()
	b.ObjStm(6, []Member{
		{Num: 1, Obj: pdf.Dict{
			"Type":  pdf.Name("Catalog"),
			"Pages": pdf.NewReference(2, 0),
		}},
		{Num: 2, Obj: pdf.Dict{
			"Type":  pdf.Name("Pages"),
			"Kids":  pdf.Array{pdf.NewReference(3, 0)},
			"Count": pdf.Integer(1),
		}},
		{Num: 5, Obj: pdf.Dict{
			"Title": pdf.String(Title),
		}},
	})
	b.Put(pdf.NewReference(3, 0), pdf.Dict{
		"Type":      pdf.Name("Page"),
		"Parent":    pdf.NewReference(2, 0),
		"MediaBox":  pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(612), pdf.Integer(792)},
		"Resources": pdf.Dict{},
		"Contents":  pdf.NewReference(4, 0),
	})
	b.PutStream(pdf.NewReference(4, 0), pdf.Dict{}, []byte(PageText))
	b.WriteXRefStream(7, simpleTrailer())
	return b.Bytes()
}

// rc4P is the permission value used by the encrypted documents: all
// operations allowed.
var rc4P int32 = -4

// EncryptedRC4 returns the [Simple] document encrypted with the standard
// security handler, revision 2 (RC4, 40-bit key), using the given user
// password and an identical owner password.
func EncryptedRC4(userPwd string) []byte {
	return encryptedRC4(userPwd, "")
}

// EncryptedRC4Lang is like [EncryptedRC4], but the catalog carries the
// given language identifier as an encrypted string.
func EncryptedRC4Lang(userPwd, lang string) []byte {
	return encryptedRC4(userPwd, lang)
}

func encryptedRC4(userPwd, lang string) []byte {
	key, O, U := rc4Keys(userPwd)

	b := New()
	catalog := pdf.Dict{
		"Type":  pdf.Name("Catalog"),
		"Pages": pdf.NewReference(2, 0),
	}
	if lang != "" {
		catalog["Lang"] = pdf.String(rc4Apply(objectKey(key, 1, 0), []byte(lang)))
	}
	b.Put(pdf.NewReference(1, 0), catalog)
	b.Put(pdf.NewReference(2, 0), pdf.Dict{
		"Type":  pdf.Name("Pages"),
		"Kids":  pdf.Array{pdf.NewReference(3, 0)},
		"Count": pdf.Integer(1),
	})
	b.Put(pdf.NewReference(3, 0), pdf.Dict{
		"Type":      pdf.Name("Page"),
		"Parent":    pdf.NewReference(2, 0),
		"MediaBox":  pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(612), pdf.Integer(792)},
		"Resources": pdf.Dict{},
		"Contents":  pdf.NewReference(4, 0),
	})
	b.PutStream(pdf.NewReference(4, 0), pdf.Dict{},
		rc4Apply(objectKey(key, 4, 0), []byte(PageText)))
	b.Put(pdf.NewReference(5, 0), pdf.Dict{
		"Title": pdf.String(rc4Apply(objectKey(key, 5, 0), []byte(Title))),
	})

	trailer := simpleTrailer()
	trailer["Encrypt"] = pdf.Dict{
		"Filter": pdf.Name("Standard"),
		"V":      pdf.Integer(1),
		"R":      pdf.Integer(2),
		"O":      pdf.String(O),
		"U":      pdf.String(U),
		"P":      pdf.Integer(rc4P),
	}
	b.WriteXRef(trailer)
	return b.Bytes()
}

var passwdPad = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

func padPasswd(passwd string) []byte {
	padded := make([]byte, 32)
	n := copy(padded, passwd)
	copy(padded[n:], passwdPad)
	return padded
}

// rc4Keys computes the revision 2 file encryption key together with the
// O and U entries of the encryption dictionary.  The owner password
// equals the user password.
func rc4Keys(userPwd string) (key, O, U []byte) {
	padded := padPasswd(userPwd)

	// Algorithm 3 with R=2
	sum := md5.Sum(padded)
	O = rc4Apply(sum[:5], padded)

	// Algorithm 2
	h := md5.New()
	h.Write(padded)
	h.Write(O)
	p := uint32(rc4P)
	h.Write([]byte{byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24)})
	h.Write(FileID)
	key = h.Sum(nil)[:5]

	// Algorithm 4
	U = rc4Apply(key, passwdPad)
	return key, O, U
}

// objectKey derives the per-object RC4 key (Algorithm 1).
func objectKey(key []byte, num uint32, gen uint16) []byte {
	h := md5.New()
	h.Write(key)
	h.Write([]byte{
		byte(num), byte(num >> 8), byte(num >> 16),
		byte(gen), byte(gen >> 8)})
	return h.Sum(nil)[:10]
}

func rc4Apply(key, data []byte) []byte {
	c, err := rc4.NewCipher(key)
	if err != nil {
		panic(err)
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}
