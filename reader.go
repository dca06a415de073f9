package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Reader represents a PDF file opened for reading.  Use [Open] or
// [NewReader] to create a Reader.
//
// A Reader resolves indirect references lazily: objects are parsed on
// first use and memoized, so shared objects are read from the byte source
// only once.  All methods are safe for sequential re-entrant use; the
// object cache is guarded by a mutex and no I/O happens while it is held.
type Reader struct {
	meta MetaInfo

	r    io.ReaderAt
	size int64

	xref     map[uint32]*xrefEntry
	trailers []Dict

	enc    *encryptInfo
	encRef Reference

	mu    sync.Mutex
	cache *lruCache

	infoMu   sync.Mutex
	infoDone bool

	catMu sync.Mutex

	level int

	closer io.Closer
}

// ReaderOptions holds optional arguments for [NewReader] and [Open].
type ReaderOptions struct {
	// Password, if non-empty, is tried as the user and then as the owner
	// password when the document is encrypted.  A failed attempt is not an
	// error; the document simply stays locked and protected content is
	// unavailable until TryPassword succeeds.
	Password string

	// CacheSize overrides the capacity of the object cache.
	// Zero means the default capacity.
	CacheSize int
}

const defaultCacheSize = 1000

// Open opens the named PDF file for reading.  After use, [Reader.Close]
// must be called to release the underlying file.
func Open(fname string, opt *ReaderOptions) (*Reader, error) {
	fd, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	fi, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, err
	}
	r, err := NewReader(fd, fi.Size(), opt)
	if err != nil {
		fd.Close()
		return nil, err
	}
	r.closer = fd
	return r, nil
}

// NewReader creates a new Reader for a document stored in data.
func NewReader(data io.ReaderAt, size int64, opt *ReaderOptions) (*Reader, error) {
	if opt == nil {
		opt = &ReaderOptions{}
	}
	cacheSize := opt.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}

	r := &Reader{
		r:     data,
		size:  size,
		cache: newCache(cacheSize),
	}

	version, err := r.scannerAt(0).readHeaderVersion()
	if err != nil {
		return nil, err
	}
	r.meta.Version = version

	xref, trailers, err := r.readXRef()
	if err != nil {
		return nil, err
	}
	r.xref = xref
	r.trailers = trailers

	trailer := Dict{}
	for _, key := range []Name{"Size", "Root", "Info", "Encrypt", "ID"} {
		if val := r.trailerKey(key); val != nil {
			trailer[key] = val
		}
	}
	r.meta.Trailer = trailer

	// The head trailer must name the document root and the object count.
	if _, ok := trailer.Int("Size"); !ok {
		return nil, &Error{Kind: MissingRequiredKey, Err: errors.New("trailer /Size")}
	}
	if _, ok := trailer["Root"]; !ok {
		return nil, &Error{Kind: MissingRequiredKey, Err: errors.New("trailer /Root")}
	}

	if id, ok := trailer.Array("ID"); ok && len(id) >= 2 {
		for i := 0; i < 2; i++ {
			s, ok := id[i].(String)
			if !ok {
				break
			}
			r.meta.ID = append(r.meta.ID, []byte(s))
		}
		if len(r.meta.ID) != 2 {
			r.meta.ID = nil
		}
	}

	if encObj, ok := trailer["Encrypt"]; ok {
		if ref, ok := encObj.(Reference); ok {
			r.encRef = ref
		}
		enc, err := r.parseEncryptDict(encObj)
		if err != nil {
			return nil, err
		}
		r.enc = enc

		if opt.Password != "" {
			ok, err := r.TryPassword(opt.Password, false)
			if err != nil {
				return nil, err
			}
			if !ok {
				_, err = r.TryPassword(opt.Password, true)
				if err != nil {
					return nil, err
				}
			}
		}
	}

	// For locked documents the catalog may contain encrypted strings; its
	// parse is retried after a password has been accepted.
	_, err = r.GetCatalog()
	if err != nil && !IsKind(err, EncryptionLocked) {
		return nil, err
	}

	return r, nil
}

// Close closes the file underlying the Reader.  This call only has an
// effect if the Reader was created using [Open].
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// GetMeta returns the file-level metadata.  This implements part of the
// [Getter] interface.
func (r *Reader) GetMeta() *MetaInfo {
	return &r.meta
}

// GetCatalog returns the document catalog, parsing it on first use.
// While an encrypted document is locked this fails with an error of kind
// EncryptionLocked if the catalog contains protected strings.
func (r *Reader) GetCatalog() (*Catalog, error) {
	r.catMu.Lock()
	cat := r.meta.Catalog
	r.catMu.Unlock()
	if cat != nil {
		return cat, nil
	}

	catalogDict, err := GetDict(r, r.meta.Trailer["Root"])
	if err != nil {
		return nil, err
	}
	if catalogDict == nil {
		return nil, &Error{Kind: ObjectNotFound, Err: errors.New("document catalog")}
	}
	cat, err = decodeCatalog(catalogDict)
	if err != nil {
		return nil, err
	}

	r.catMu.Lock()
	if r.meta.Catalog == nil {
		r.meta.Catalog = cat
		// the catalog may override the header version
		if cat.Version > r.meta.Version {
			r.meta.Version = cat.Version
		}
	}
	cat = r.meta.Catalog
	r.catMu.Unlock()
	return cat, nil
}

// GetInfo returns the document information dictionary.  The result is
// parsed once and memoized; repeated calls return the same value.
func (r *Reader) GetInfo() (*Info, error) {
	r.infoMu.Lock()
	defer r.infoMu.Unlock()
	if r.infoDone {
		return r.meta.Info, nil
	}

	infoObj := r.meta.Trailer["Info"]
	if infoObj == nil {
		r.infoDone = true
		return nil, nil
	}
	infoDict, err := GetDict(r, infoObj)
	if err != nil {
		return nil, err
	}
	info, err := decodeInfo(r, infoDict)
	if err != nil {
		return nil, err
	}
	r.meta.Info = info
	r.infoDone = true
	return info, nil
}

// GetObject reads the indirect object with the given object and generation
// numbers.
func (r *Reader) GetObject(number uint32, generation uint16) (Object, error) {
	return r.Get(NewReference(number, generation))
}

// Get reads the indirect object for the given reference.  The result is
// cached: a second call for the same reference returns the memoized value
// without touching the byte source.
func (r *Reader) Get(ref Reference) (Object, error) {
	return r.doGet(ref, true)
}

func (r *Reader) doGet(ref Reference, canStream bool) (Object, error) {
	r.mu.Lock()
	obj, hit := r.cache.Get(ref)
	r.mu.Unlock()
	if hit {
		return obj, nil
	}

	obj, err := r.load(ref, canStream)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache.Put(ref, obj)
	r.mu.Unlock()
	return obj, nil
}

// load parses one indirect object from the byte source.  The caller must
// not hold the cache mutex: resolving a compressed object re-enters Get
// for the container.
func (r *Reader) load(ref Reference, canStream bool) (Object, error) {
	if r.xref == nil {
		return nil, &Error{Kind: MalformedStructure,
			Err: errors.New("cannot use references while reading the xref table")}
	}

	entry := r.xref[ref.Number()]
	if entry.IsFree() || entry.Generation != ref.Generation() {
		return nil, &Error{Kind: ObjectNotFound,
			Err: fmt.Errorf("object %s is not defined", ref)}
	}

	if entry.InStream != 0 {
		if !canStream {
			return nil, &Error{Kind: MalformedStructure,
				Err: errors.New("object streams inside object streams are not allowed")}
		}
		return r.getFromObjectStream(ref, entry)
	}

	if entry.Pos >= r.size {
		return nil, &Error{Kind: IoFailure, Pos: entry.Pos,
			Err: fmt.Errorf("offset of object %s is past the end of file", ref)}
	}

	s := r.scannerAt(entry.Pos)
	if r.enc != nil && ref != r.encRef {
		s.decryptString = r.enc.decryptStringKeyed
	}
	obj, fileRef, err := s.ReadIndirectObject()
	if err != nil {
		return nil, err
	}
	if ref != fileRef {
		return nil, &Error{Kind: MalformedStructure, Pos: entry.Pos,
			Err: fmt.Errorf("expected object %s but found %s", ref, fileRef)}
	}

	if stm, isStream := obj.(*Stream); isStream && r.enc != nil && ref != r.encRef {
		enc := r.enc
		stm.decrypt = func(raw io.Reader) (io.Reader, error) {
			return enc.decryptStream(ref, raw)
		}
	}

	return obj, nil
}

// objectStreamIndex describes one entry of a compressed object container.
type objectStreamIndex struct {
	number uint32
	offs   int64
}

// getFromObjectStream unpacks one slot of a compressed object container.
// The container itself is fetched through the cache.
func (r *Reader) getFromObjectStream(ref Reference, entry *xrefEntry) (Object, error) {
	container, err := r.doGet(entry.InStream, false)
	if err != nil {
		return nil, err
	}
	stream, ok := container.(*Stream)
	if !ok {
		return nil, &Error{Kind: MalformedStructure,
			Err: fmt.Errorf("object stream %s has wrong type", entry.InStream)}
	}

	idx, data, err := r.objectStreamContents(stream)
	if err != nil {
		return nil, err
	}

	k := entry.Pos
	if k < 0 || k >= int64(len(idx)) {
		return nil, &Error{Kind: MalformedStructure,
			Err: fmt.Errorf("index %d outside object stream %s", k, entry.InStream)}
	}
	if idx[k].number != ref.Number() {
		return nil, &Error{Kind: MalformedStructure,
			Err: fmt.Errorf("object stream %s does not contain %s", entry.InStream, ref)}
	}

	// the limit guard also hides ReadAt, so nested streams are rejected
	s := newScanner(io.LimitReader(bytes.NewReader(data), int64(len(data))), 0, nil)
	err = s.Discard(idx[k].offs)
	if err != nil {
		return nil, &Error{Kind: MalformedStructure, Err: err}
	}
	s.ref = ref
	return s.ReadObject()
}

// objectStreamContents decodes a compressed object container and reads its
// index: N pairs of object number and offset, offsets relative to First.
func (r *Reader) objectStreamContents(stream *Stream) ([]objectStreamIndex, []byte, error) {
	if tp, _ := stream.Dict.Name("Type"); tp != "ObjStm" {
		return nil, nil, &Error{Kind: MalformedStructure,
			Err: errors.New("not an object stream")}
	}
	N, ok := stream.Dict.Int("N")
	if !ok || N < 0 || N > 10_000 {
		return nil, nil, &Error{Kind: MalformedStructure,
			Err: errors.New("no valid /N for object stream")}
	}
	first, ok := stream.Dict.Int("First")
	if !ok || first < 0 {
		return nil, nil, &Error{Kind: MalformedStructure,
			Err: errors.New("no valid /First for object stream")}
	}

	decoded, err := DecodeStream(r, stream)
	if err != nil {
		return nil, nil, err
	}
	data, err := io.ReadAll(decoded)
	if err != nil {
		return nil, nil, &Error{Kind: MalformedStructure, Err: err}
	}

	s := newScanner(bytes.NewReader(data), 0, nil)
	idx := make([]objectStreamIndex, N)
	for i := range idx {
		err := s.SkipWhiteSpace()
		if err != nil {
			return nil, nil, &Error{Kind: MalformedStructure, Err: err}
		}
		no, err := s.ReadInteger()
		if err != nil {
			return nil, nil, err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, nil, &Error{Kind: MalformedStructure, Err: err}
		}
		offs, err := s.ReadInteger()
		if err != nil {
			return nil, nil, err
		}
		if no < 0 || offs < 0 {
			return nil, nil, &Error{Kind: MalformedStructure,
				Err: errors.New("invalid object stream index")}
		}
		idx[i] = objectStreamIndex{
			number: uint32(no),
			offs:   int64(offs) + int64(first),
		}
	}

	return idx, data, nil
}

// TryPassword attempts to unlock an encrypted document.  The returned
// boolean reports whether the password was accepted; a wrong password is
// not an error.  For an unencrypted or already unlocked document the call
// returns true without further checks.
func (r *Reader) TryPassword(passwd string, owner bool) (bool, error) {
	if r.enc == nil {
		return true, nil
	}
	ok, err := r.enc.sec.TryPassword(passwd, owner)
	if err != nil || !ok {
		return ok, err
	}

	// with the key available, the deferred catalog parse can be retried
	_, err = r.GetCatalog()
	if err != nil {
		return true, err
	}
	return true, nil
}

// Encrypted reports whether the document carries an encryption dictionary.
func (r *Reader) Encrypted() bool {
	return r.enc != nil
}

// Unlocked reports whether protected content is currently readable:
// either the document is unencrypted, or a password has been accepted.
func (r *Reader) Unlocked() bool {
	return r.enc == nil || r.enc.sec.unlocked()
}

// Permissions returns the user permission flags of an encrypted document.
// Unencrypted documents report PermAll.
func (r *Reader) Permissions() Perm {
	if r.enc == nil {
		return PermAll
	}
	return r.enc.UserPermissions
}

// scannerAt returns a scanner positioned at the given offset of the byte
// source.
func (r *Reader) scannerAt(pos int64) *scanner {
	return newScanner(io.NewSectionReader(r.r, pos, r.size-pos), pos, r.safeGetInt)
}

// safeGetInt resolves the integers used in stream dictionaries, which may
// be indirect.  A depth guard prevents unbounded recursion through
// /Length entries which point at further indirect objects.
func (r *Reader) safeGetInt(obj Object) (Integer, error) {
	if x, ok := obj.(Integer); ok {
		return x, nil
	}
	if _, ok := obj.(Reference); !ok {
		return 0, &Error{Kind: MalformedStructure,
			Err: fmt.Errorf("expected Integer but got %T", obj)}
	}

	if r.level > 2 {
		return 0, &Error{Kind: MalformedStructure,
			Err: errors.New("length indirection chain too deep")}
	}
	r.level++
	val, err := GetInt(r, obj)
	r.level--
	return val, err
}
