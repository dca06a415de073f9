package pdf

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// Object represents an object in a PDF file.  There are nine native types
// of PDF objects, which implement this interface: [Array], [Bool], [Dict],
// [Integer], [Name], [Real], [Reference], [*Stream], and [String].
// A nil Object represents the PDF null object.
type Object interface {
	// PDF writes the PDF file representation of the object to w.
	PDF(w io.Writer) error
}

// Bool represents a boolean value in a PDF file.
type Bool bool

// PDF implements the [Object] interface.
func (x Bool) PDF(w io.Writer) error {
	var s string
	if x {
		s = "true"
	} else {
		s = "false"
	}
	_, err := w.Write([]byte(s))
	return err
}

// Integer represents an integer constant in a PDF file.
type Integer int64

// PDF implements the [Object] interface.
func (x Integer) PDF(w io.Writer) error {
	s := strconv.FormatInt(int64(x), 10)
	_, err := w.Write([]byte(s))
	return err
}

// Real represents a real number in a PDF file.
type Real float64

// PDF implements the [Object] interface.
func (x Real) PDF(w io.Writer) error {
	s := strconv.FormatFloat(float64(x), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s = s + "."
	}
	_, err := w.Write([]byte(s))
	return err
}

// String represents a raw string in a PDF file.  The character set
// encoding, if any, is determined by the context.
type String []byte

// PDF implements the [Object] interface.
func (x String) PDF(w io.Writer) error {
	l := []byte(x)

	var funny []int
	for i, c := range l {
		if c < 32 || c >= 127 || c == '(' || c == ')' || c == '\\' {
			funny = append(funny, i)
		}
	}
	n := len(l)

	buf := &bytes.Buffer{}
	if 3*len(funny) <= n {
		buf.WriteString("(")
		pos := 0
		for _, i := range funny {
			if pos < i {
				buf.Write(l[pos:i])
			}
			c := l[i]
			switch c {
			case '\r':
				buf.WriteString(`\r`)
			case '\n':
				buf.WriteString(`\n`)
			case '\t':
				buf.WriteString(`\t`)
			case '(':
				buf.WriteString(`\(`)
			case ')':
				buf.WriteString(`\)`)
			case '\\':
				buf.WriteString(`\\`)
			default:
				fmt.Fprintf(buf, `\%03o`, c)
			}
			pos = i + 1
		}
		if pos < n {
			buf.Write(l[pos:n])
		}
		buf.WriteString(")")
	} else {
		fmt.Fprintf(buf, "<%x>", l)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

var (
	utf16Decoder = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	utf16Encoder = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
)

// AsTextString interprets x as a PDF "text string" and returns the
// corresponding utf-8 encoded string.
func (x String) AsTextString() string {
	if len(x) >= 2 && x[0] == 0xFE && x[1] == 0xFF {
		s, err := utf16Decoder.NewDecoder().Bytes(x[2:])
		if err != nil {
			return string(x[2:])
		}
		return string(s)
	}
	return pdfDocDecode(x)
}

// TextString creates a String object using the "text string" encoding,
// i.e. using either PDFDocEncoding or UTF-16BE with a byte order mark.
func TextString(s string) String {
	buf, ok := pdfDocEncode(s)
	if ok {
		return buf
	}
	enc, err := utf16Encoder.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return String(s)
	}
	return String(enc)
}

// AsDate converts a PDF date string to a time.Time value.
// If the string does not have the correct format, an error is returned.
func (x String) AsDate() (time.Time, error) {
	s := x.AsTextString()
	if s == "D:" || s == "" {
		return time.Time{}, nil
	}
	s = strings.ReplaceAll(s, "'", "")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "19") || strings.HasPrefix(s, "20") {
		s = "D:" + s
	}

	formats := []string{
		"D:20060102150405-0700",
		"D:20060102150405-07",
		"D:20060102150405Z0000",
		"D:20060102150405Z00",
		"D:20060102150405Z",
		"D:20060102150405",
		"D:200601021504",
		"D:2006010215",
		"D:20060102",
		"D:200601",
		"D:2006",
		time.ANSIC,
	}
	for _, format := range formats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, &Error{Kind: MalformedStructure, Err: errNoDate}
}

// Date creates a PDF String object encoding the given date and time.
func Date(t time.Time) String {
	s := t.Format("D:20060102150405-0700")
	k := len(s) - 2
	s = s[:k] + "'" + s[k:]
	return String(s)
}

// Name represents a name object in a PDF file.
type Name string

// PDF implements the [Object] interface.
func (x Name) PDF(w io.Writer) error {
	l := []byte(x)

	var funny []int
	for i, c := range l {
		if isSpace[c] || isDelimiter[c] || c < 0x21 || c > 0x7e || c == '#' {
			funny = append(funny, i)
		}
	}
	n := len(l)

	buf := &bytes.Buffer{}
	buf.WriteString("/")
	pos := 0
	for _, i := range funny {
		if pos < i {
			buf.Write(l[pos:i])
		}
		fmt.Fprintf(buf, "#%02x", l[i])
		pos = i + 1
	}
	if pos < n {
		buf.Write(l[pos:n])
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// Array represents an array of objects in a PDF file.
type Array []Object

func (x Array) String() string {
	return "<Array, " + strconv.Itoa(len(x)) + " elements>"
}

// PDF implements the [Object] interface.
func (x Array) PDF(w io.Writer) error {
	_, err := w.Write([]byte("["))
	if err != nil {
		return err
	}
	for i, val := range x {
		if i > 0 {
			_, err = w.Write([]byte(" "))
			if err != nil {
				return err
			}
		}
		if val == nil {
			_, err = w.Write([]byte("null"))
		} else {
			err = val.PDF(w)
		}
		if err != nil {
			return err
		}
	}
	_, err = w.Write([]byte("]"))
	return err
}

// Dict represents a dictionary object in a PDF file.  Dictionary keys are
// always names; a [Reference] can never be a key.
type Dict map[Name]Object

func (x Dict) String() string {
	res := "Dict"
	if tp, ok := x["Type"].(Name); ok {
		res = string(tp) + " " + res
	}
	return "<" + res + ", " + strconv.Itoa(len(x)) + " entries>"
}

// PDF implements the [Object] interface.
func (x Dict) PDF(w io.Writer) error {
	if x == nil {
		_, err := w.Write([]byte("null"))
		return err
	}

	keys := make([]Name, 0, len(x))
	for key, val := range x {
		if val == nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})

	_, err := w.Write([]byte("<<"))
	if err != nil {
		return err
	}
	for _, name := range keys {
		_, err = w.Write([]byte("\n"))
		if err != nil {
			return err
		}
		err = name.PDF(w)
		if err != nil {
			return err
		}
		_, err = w.Write([]byte(" "))
		if err != nil {
			return err
		}
		err = x[name].PDF(w)
		if err != nil {
			return err
		}
	}
	_, err = w.Write([]byte("\n>>"))
	return err
}

// The typed accessors below look up a key and return the value only if it
// has the requested type.  A missing key and a value of the wrong type both
// report ok == false; the accessors never fail.  References are not
// resolved; use the package-level Get functions for that.

// Int returns the integer stored under the given key.
func (x Dict) Int(key Name) (Integer, bool) {
	val, ok := x[key].(Integer)
	return val, ok
}

// Name returns the name stored under the given key.
func (x Dict) Name(key Name) (Name, bool) {
	val, ok := x[key].(Name)
	return val, ok
}

// Array returns the array stored under the given key.
func (x Dict) Array(key Name) (Array, bool) {
	val, ok := x[key].(Array)
	return val, ok
}

// Dict returns the dictionary stored under the given key.
func (x Dict) Dict(key Name) (Dict, bool) {
	val, ok := x[key].(Dict)
	return val, ok
}

// Str returns the string stored under the given key.
func (x Dict) Str(key Name) (String, bool) {
	val, ok := x[key].(String)
	return val, ok
}

// Bool returns the boolean stored under the given key.
func (x Dict) Bool(key Name) (Bool, bool) {
	val, ok := x[key].(Bool)
	return val, ok
}

// Reference returns the reference stored under the given key.
func (x Dict) Reference(key Name) (Reference, bool) {
	val, ok := x[key].(Reference)
	return val, ok
}

// Stream represents a stream object in a PDF file.  The payload behind R is
// the raw, still-encoded stream content; use [DecodeStream] to apply the
// decryption and filter chain.
type Stream struct {
	Dict
	R io.Reader

	// decrypt transforms the raw payload before filters are applied.
	// It is set by the Reader for streams of encrypted documents.
	decrypt func(io.Reader) (io.Reader, error)
}

func (x *Stream) String() string {
	res := "Stream"
	if tp, ok := x.Dict["Type"].(Name); ok {
		res = string(tp) + " " + res
	}
	if length, ok := x.Dict["Length"].(Integer); ok {
		res += ", " + strconv.FormatInt(int64(length), 10) + " bytes"
	}
	return "<" + res + ">"
}

// PDF implements the [Object] interface.
func (x *Stream) PDF(w io.Writer) error {
	err := x.Dict.PDF(w)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte("\nstream\n"))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, x.payload())
	if err != nil {
		return err
	}
	_, err = w.Write([]byte("\nendstream"))
	return err
}

// payload returns a fresh reader over the raw stream content.  Payloads
// backed by a SectionReader can be read any number of times; other readers
// are single-shot.
func (x *Stream) payload() io.Reader {
	if sr, ok := x.R.(*io.SectionReader); ok {
		return io.NewSectionReader(sr, 0, sr.Size())
	}
	return x.R
}

// Reference represents a reference to an indirect object in a PDF file.
// The lower 32 bits hold the object number, the next 16 bits the
// generation number.  The zero value does not refer to any object.
type Reference uint64

// NewReference creates a reference with the given object and generation
// numbers.
func NewReference(number uint32, generation uint16) Reference {
	return Reference(uint64(number) | uint64(generation)<<32)
}

// Number returns the object number of the reference.
func (x Reference) Number() uint32 {
	return uint32(x)
}

// Generation returns the generation number of the reference.
func (x Reference) Generation() uint16 {
	return uint16(x >> 32)
}

func (x Reference) String() string {
	res := "obj_" + strconv.FormatUint(uint64(x.Number()), 10)
	if gen := x.Generation(); gen > 0 {
		res += "@" + strconv.FormatUint(uint64(gen), 10)
	}
	return res
}

// PDF implements the [Object] interface.
func (x Reference) PDF(w io.Writer) error {
	if x>>48 != 0 {
		return fmt.Errorf("invalid reference: 0x%016x", uint64(x))
	}
	_, err := fmt.Fprintf(w, "%d %d R", x.Number(), x.Generation())
	return err
}

// Format formats a PDF object as a string, in the same way as it would be
// written to a PDF file.
func Format(obj Object) string {
	if obj == nil {
		return "null"
	}
	buf := &bytes.Buffer{}
	err := obj.PDF(buf)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return buf.String()
}
