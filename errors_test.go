package pdf

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKind(t *testing.T) {
	err := &Error{Kind: ObjectNotFound, Err: errors.New("object 7 0")}
	if ErrorKind(err) != ObjectNotFound {
		t.Errorf("got kind %s", ErrorKind(err))
	}
	if !IsKind(err, ObjectNotFound) {
		t.Error("IsKind failed on direct error")
	}

	// the kind survives wrapping
	wrapped := fmt.Errorf("reading page: %w", err)
	if !IsKind(wrapped, ObjectNotFound) {
		t.Error("IsKind failed on wrapped error")
	}

	if ErrorKind(errors.New("plain")) != KindUnknown {
		t.Error("foreign errors must report KindUnknown")
	}
	if ErrorKind(nil) != KindUnknown {
		t.Error("nil must report KindUnknown")
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: MalformedStructure, Pos: 17, Err: errors.New("bad dict")}
	want := "malformed structure: bad dict (at byte 17)"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
