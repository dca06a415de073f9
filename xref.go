package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/exp/maps"
)

// xrefEntry is one locator in the cross-reference index.  The three entry
// kinds are encoded as follows:
//
//   - free:       Pos < 0, InStream == 0
//   - in use:     Pos >= 0 (byte offset), InStream == 0
//   - compressed: InStream != 0 (the container), Pos is the index within
//     the container's object list
type xrefEntry struct {
	InStream   Reference
	Pos        int64
	Generation uint16
}

func (entry *xrefEntry) IsFree() bool {
	return entry == nil || (entry.InStream == 0 && entry.Pos < 0)
}

// findXRef locates the byte offset of the newest cross-reference section,
// using the startxref keyword in the file footer.
func (r *Reader) findXRef() (int64, error) {
	pos, err := r.lastOccurrence("startxref")
	if err != nil {
		return 0, err
	}
	s := r.scannerAt(pos + 9)

	err = s.SkipWhiteSpace()
	if err != nil {
		return 0, err
	}
	xRefPos, err := s.ReadInteger()
	if err != nil {
		return 0, err
	}

	if xRefPos <= 0 || int64(xRefPos) >= r.size {
		return 0, &Error{Kind: MalformedStructure, Pos: s.currentPos(),
			Err: errors.New("invalid xref position")}
	}

	return int64(xRefPos), nil
}

// lastOccurrence scans the file backwards in chunks for the last occurrence
// of pat.
func (r *Reader) lastOccurrence(pat string) (int64, error) {
	const chunkSize = 1024

	buf := make([]byte, chunkSize)
	k := int64(len(pat))
	pos := r.size
	for pos >= k {
		start := pos - chunkSize
		if start < 0 {
			start = 0
		}
		n, err := r.r.ReadAt(buf[:pos-start], start)
		if err != nil && err != io.EOF {
			return 0, &Error{Kind: IoFailure, Pos: start, Err: err}
		}

		idx := bytes.LastIndex(buf[:n], []byte(pat))
		if idx >= 0 {
			return start + int64(idx), nil
		}

		pos = start + k - 1
	}
	return 0, &Error{Kind: MalformedStructure,
		Err: errors.New("startxref not found")}
}

// readXRef reads all cross-reference sections, following Prev pointers from
// the newest section backwards.  Entries from newer sections shadow older
// definitions of the same object number.  The returned trailer list is
// ordered newest first.
//
// A failure while reading a non-head section is absorbed: the chain walk
// stops there and the sections already collected remain usable.  Dangling
// Prev pointers from malformed incremental saves occur in practice.
func (r *Reader) readXRef() (map[uint32]*xrefEntry, []Dict, error) {
	start, err := r.findXRef()
	if err != nil {
		return nil, nil, err
	}

	xref := make(map[uint32]*xrefEntry)
	var trailers []Dict
	seen := make(map[int64]bool)
	for {
		// avoid xref loops
		if seen[start] {
			break
		}
		seen[start] = true

		dict, err := r.readXRefSection(xref, start)
		if err != nil {
			if len(trailers) == 0 {
				return nil, nil, err
			}
			break
		}
		trailers = append(trailers, dict)

		prev := dict["Prev"]
		if prev == nil {
			break
		}
		prevStart, ok := prev.(Integer)
		if !ok || prevStart <= 0 || int64(prevStart) >= r.size {
			// dangling back-pointer; keep what we have
			break
		}
		start = int64(prevStart)
	}

	return xref, trailers, nil
}

// readXRefSection reads a single section, either a classic table or a
// cross-reference stream, and returns its trailer dictionary.
func (r *Reader) readXRefSection(xref map[uint32]*xrefEntry, start int64) (Dict, error) {
	s := r.scannerAt(start)

	buf, err := s.Peek(4)
	if err != nil {
		return nil, err
	}

	var dict Dict
	if bytes.Equal(buf, []byte("xref")) {
		dict, err = readXRefTable(xref, s)
		if err != nil {
			return nil, err
		}

		// hybrid-reference file: the classic trailer bridges to a
		// cross-reference stream holding the compressed objects
		if xRefStm, ok := dict.Int("XRefStm"); ok {
			s = r.scannerAt(int64(xRefStm))
			_, err = readXRefStream(xref, s)
			if err != nil {
				return nil, err
			}
		}
	} else {
		dict, err = readXRefStream(xref, s)
		if err != nil {
			return nil, err
		}
	}
	return dict, nil
}

// readXRefTable decodes a classic fixed-width cross-reference table,
// leaving the scanner after the trailer dictionary.
func readXRefTable(xref map[uint32]*xrefEntry, s *scanner) (Dict, error) {
	err := s.SkipString("xref")
	if err != nil {
		return nil, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}

	for {
		buf, err := s.Peek(1)
		if err != nil {
			return nil, err
		}
		if len(buf) == 0 || buf[0] < '0' || buf[0] > '9' {
			break
		}

		start, err := s.ReadInteger()
		if err != nil {
			return nil, err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		length, err := s.ReadInteger()
		if err != nil {
			return nil, err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}

		if start < 0 || length < 0 || start+length > 0xFFFF_FFFF {
			return nil, &Error{Kind: MalformedStructure, Pos: s.currentPos(),
				Err: errors.New("invalid xref subsection header")}
		}

		err = decodeXRefSubsection(xref, s, uint32(start), uint32(start+length))
		if err != nil {
			return nil, err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
	}

	err = s.SkipString("trailer")
	if err != nil {
		return nil, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}
	return s.ReadDict()
}

// decodeXRefSubsection reads the 20-byte rows of one subsection.  Rows for
// object numbers already present in xref belong to an older section and are
// skipped, so that the newest definition wins.
func decodeXRefSubsection(xref map[uint32]*xrefEntry, s *scanner, start, end uint32) error {
	for i := start; i < end; i++ {
		if xref[i] != nil {
			err := s.Discard(20)
			if err != nil {
				return err
			}
			continue
		}

		buf, err := s.Peek(20)
		if err != nil {
			return err
		}
		if len(buf) < 20 {
			return &Error{Kind: MalformedStructure, Pos: s.currentPos(),
				Err: io.ErrUnexpectedEOF}
		}

		a, err := strconv.ParseInt(string(buf[:10]), 10, 64)
		if err != nil {
			return &Error{Kind: MalformedStructure, Pos: s.currentPos(), Err: err}
		}
		b, err := strconv.ParseUint(string(bytes.TrimSpace(buf[11:16])), 10, 16)
		if err != nil {
			// fix a common error in some PDF files
			if bytes.HasPrefix(buf, []byte("0000000000 65536 ")) {
				b = 65535
				buf[17] = 'f'
			} else {
				return &Error{Kind: MalformedStructure, Pos: s.currentPos(), Err: err}
			}
		}
		switch buf[17] {
		case 'f':
			xref[i] = &xrefEntry{
				Pos:        -1,
				Generation: uint16(b),
			}
		case 'n':
			xref[i] = &xrefEntry{
				Pos:        a,
				Generation: uint16(b),
			}
		default:
			return &Error{Kind: MalformedStructure, Pos: s.currentPos(),
				Err: errors.New("malformed xref table row")}
		}

		s.pos += 20
	}
	return nil
}

// readXRefStream decodes a cross-reference stream.  The row layout is
// declared by the W array; the Index array lists the subsections.
func readXRefStream(xref map[uint32]*xrefEntry, s *scanner) (Dict, error) {
	obj, _, err := s.ReadIndirectObject()
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*Stream)
	if !ok {
		return nil, &Error{Kind: MalformedStructure, Pos: s.currentPos(),
			Err: errors.New("invalid xref stream")}
	}
	dict := stream.Dict

	w, ss, err := checkXRefStreamDict(dict)
	if err != nil {
		return nil, err
	}

	decoded, err := DecodeStream(nil, stream)
	if err != nil {
		return nil, err
	}
	err = decodeXRefStream(xref, decoded, w, ss)
	if err != nil {
		return nil, err
	}

	return dict, nil
}

type xrefSubSection struct {
	Start, Size uint32
}

func checkXRefStreamDict(dict Dict) ([]int, []*xrefSubSection, error) {
	size, ok := dict.Int("Size")
	if !ok {
		return nil, nil, &Error{Kind: MissingRequiredKey,
			Err: errors.New("xref stream /Size")}
	}
	W, ok := dict.Array("W")
	if !ok || len(W) < 3 {
		return nil, nil, &Error{Kind: MalformedStructure,
			Err: errors.New("invalid /W array")}
	}
	var w []int
	for i, Wi := range W {
		wi, ok := Wi.(Integer)
		if !ok || i < 3 && (wi < 0 || wi > 8) {
			return nil, nil, &Error{Kind: MalformedStructure,
				Err: fmt.Errorf("invalid /W entry %s", Format(Wi))}
		}
		w = append(w, int(wi))
	}

	var ss []*xrefSubSection
	if index, ok := dict.Array("Index"); ok {
		if len(index)%2 != 0 {
			return nil, nil, &Error{Kind: MalformedStructure,
				Err: errors.New("invalid /Index array")}
		}
		for i := 0; i < len(index); i += 2 {
			first, ok1 := index[i].(Integer)
			count, ok2 := index[i+1].(Integer)
			if !ok1 || !ok2 || first < 0 || count < 0 {
				return nil, nil, &Error{Kind: MalformedStructure,
					Err: errors.New("invalid /Index array")}
			}
			ss = append(ss, &xrefSubSection{uint32(first), uint32(count)})
		}
	} else if dict["Index"] != nil {
		return nil, nil, &Error{Kind: MalformedStructure,
			Err: errors.New("invalid /Index array")}
	} else {
		ss = append(ss, &xrefSubSection{0, uint32(size)})
	}
	return w, ss, nil
}

func decodeXRefStream(xref map[uint32]*xrefEntry, r io.Reader, w []int, ss []*xrefSubSection) error {
	wTotal := 0
	for _, wi := range w {
		wTotal += wi
	}
	buf := make([]byte, wTotal)

	w0 := w[0]
	w1 := w[1]
	w2 := w[2]
	for _, sec := range ss {
		for i := sec.Start; i < sec.Start+sec.Size; i++ {
			_, err := io.ReadFull(r, buf)
			if err != nil {
				return &Error{Kind: MalformedStructure,
					Err: fmt.Errorf("truncated xref stream: %w", err)}
			}

			if xref[i] != nil {
				continue
			}

			tp := decodeInt(buf[:w0])
			if w0 == 0 {
				tp = 1
			}
			a := decodeInt(buf[w0 : w0+w1])
			b := decodeInt(buf[w0+w1 : w0+w1+w2])
			switch tp {
			case 0:
				// free object: a = next free number,
				// b = generation if the slot is reused
				xref[i] = &xrefEntry{
					Pos:        -1,
					Generation: uint16(b),
				}
			case 1:
				// in use: a = byte offset, b = generation
				xref[i] = &xrefEntry{
					Pos:        a,
					Generation: uint16(b),
				}
			case 2:
				// compressed: a = container object number,
				// b = index within the container
				xref[i] = &xrefEntry{
					Pos:      b,
					InStream: NewReference(uint32(a), 0),
				}
			default:
				return &Error{Kind: MalformedStructure,
					Err: fmt.Errorf("invalid xref entry type %d", tp)}
			}
		}
	}
	return nil
}

func decodeInt(buf []byte) (res int64) {
	for _, x := range buf {
		res = res<<8 | int64(x)
	}
	return res
}

// trailerKey returns the value for key from the newest trailer which
// defines it.  The head trailer is authoritative for Size, Root and Info;
// older sections are consulted only when the head omits the key.
func (r *Reader) trailerKey(key Name) Object {
	for _, dict := range r.trailers {
		if val, ok := dict[key]; ok {
			return val
		}
	}
	return nil
}

// Objects returns the numbers of all objects which are defined (in use or
// compressed) in the cross-reference index, in no particular order.
func (r *Reader) Objects() []uint32 {
	numbers := maps.Keys(r.xref)
	res := numbers[:0]
	for _, n := range numbers {
		if !r.xref[n].IsFree() {
			res = append(res, n)
		}
	}
	return res
}
