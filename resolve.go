package pdf

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// Getter is the interface used to read indirect objects from a document.
// *Reader implements this interface.
type Getter interface {
	// GetMeta returns the file-level metadata.
	GetMeta() *MetaInfo

	// Get reads the indirect object with the given reference.
	Get(ref Reference) (Object, error)
}

// Resolve resolves a reference to an indirect object.
//
// If obj is a [Reference], the corresponding object is read from the file
// and returned.  Otherwise, obj is returned unchanged.  Resolve follows at
// most one level of indirection; if the stored object is itself a
// reference, the caller must resolve again.
func Resolve(r Getter, obj Object) (Object, error) {
	ref, isReference := obj.(Reference)
	if !isReference {
		return obj, nil
	}
	return r.Get(ref)
}

func resolveAndCast[T Object](r Getter, obj Object) (x T, err error) {
	obj, err = Resolve(r, obj)
	if err != nil {
		return x, err
	}

	if obj == nil {
		return x, nil
	}

	var ok bool
	x, ok = obj.(T)
	if ok {
		return x, nil
	}

	return x, &Error{
		Kind: MalformedStructure,
		Err:  fmt.Errorf("expected %T but got %T", x, obj),
	}
}

// Helper functions for reading objects of a specific type.  Each of these
// resolves the object before attempting the conversion.  A null object
// yields the zero value without error; an object of the wrong type yields
// an error of kind MalformedStructure.
var (
	GetArray  = resolveAndCast[Array]
	GetBool   = resolveAndCast[Bool]
	GetDict   = resolveAndCast[Dict]
	GetInt    = resolveAndCast[Integer]
	GetName   = resolveAndCast[Name]
	GetReal   = resolveAndCast[Real]
	GetStream = resolveAndCast[*Stream]
	GetString = resolveAndCast[String]
)

// A Number is either an Integer or a Real.
type Number float64

// PDF implements the [Object] interface.
func (x Number) PDF(w io.Writer) error {
	var obj Object
	if i := Integer(x); Number(i) == x {
		obj = i
	} else {
		obj = Real(x)
	}
	return obj.PDF(w)
}

// GetNumber resolves the object and makes sure the result is an Integer or
// a Real.
func GetNumber(r Getter, obj Object) (Number, error) {
	obj, err := Resolve(r, obj)
	if err != nil {
		return 0, err
	}
	switch x := obj.(type) {
	case Integer:
		return Number(x), nil
	case Real:
		return Number(x), nil
	default:
		return 0, &Error{
			Kind: MalformedStructure,
			Err:  fmt.Errorf("expected number but got %T", obj),
		}
	}
}

// Rectangle represents a PDF rectangle, given by the coordinates of two
// diagonally opposite corners.
type Rectangle struct {
	LLx, LLy, URx, URy float64
}

func (rect *Rectangle) String() string {
	return fmt.Sprintf("[%.2f %.2f %.2f %.2f]", rect.LLx, rect.LLy, rect.URx, rect.URy)
}

// PDF implements the [Object] interface.
func (rect *Rectangle) PDF(w io.Writer) error {
	res := Array{}
	for _, x := range []float64{rect.LLx, rect.LLy, rect.URx, rect.URy} {
		x = math.Round(100*x) / 100
		res = append(res, Number(x))
	}
	return res.PDF(w)
}

// IsZero reports whether the rectangle is the zero rectangle.
func (rect Rectangle) IsZero() bool {
	return rect.LLx == 0 && rect.LLy == 0 && rect.URx == 0 && rect.URy == 0
}

// Dx returns the width of the rectangle.
func (rect *Rectangle) Dx() float64 {
	return rect.URx - rect.LLx
}

// Dy returns the height of the rectangle.
func (rect *Rectangle) Dy() float64 {
	return rect.URy - rect.LLy
}

// GetRectangle resolves the object and converts it to a [Rectangle].
// If the object is null, nil is returned.
func GetRectangle(r Getter, obj Object) (*Rectangle, error) {
	a, err := GetArray(r, obj)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}

	if len(a) != 4 {
		return nil, &Error{Kind: MalformedStructure, Err: errNoRectangle}
	}
	values := [4]float64{}
	for i, elem := range a {
		xi, err := GetNumber(r, elem)
		if err != nil {
			return nil, err
		}
		values[i] = float64(xi)
	}
	rect := &Rectangle{
		LLx: math.Min(values[0], values[2]),
		LLy: math.Min(values[1], values[3]),
		URx: math.Max(values[0], values[2]),
		URy: math.Max(values[1], values[3]),
	}
	return rect, nil
}

var (
	errNoRectangle = errors.New("expected array of 4 numbers")
	errNoDate      = errors.New("malformed date string")
)
