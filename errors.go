package pdf

import (
	"strconv"
)

// Kind classifies the errors reported by this library.  Callers can branch
// on the kind of an error using [ErrorKind] or [IsKind], without depending
// on error message text.
type Kind int

const (
	// KindUnknown is the zero Kind.  It is never used by errors created in
	// this library.
	KindUnknown Kind = iota

	// MissingRequiredKey indicates that a mandatory dictionary entry is
	// absent, for example the trailer Size or Root entries, or the Filter,
	// R, O, U and P entries of an encryption dictionary.
	MissingRequiredKey

	// MalformedStructure indicates that data in the file has the wrong
	// shape or type, for example an array of the wrong length or an invalid
	// cross-reference table row.
	MalformedStructure

	// UnsupportedEncryptionRevision indicates that the document declares a
	// security handler revision outside the supported range 2-6.
	UnsupportedEncryptionRevision

	// EncryptionLocked indicates that decryption was attempted before a
	// password was accepted.  This is distinct from a wrong password, which
	// is reported as a normal false return from TryPassword.
	EncryptionLocked

	// ObjectNotFound indicates an object number which cannot be resolved,
	// or a page index which is out of bounds.
	ObjectNotFound

	// IoFailure indicates that the byte source could not be read at a
	// required offset.
	IoFailure
)

func (k Kind) String() string {
	switch k {
	case MissingRequiredKey:
		return "missing required key"
	case MalformedStructure:
		return "malformed structure"
	case UnsupportedEncryptionRevision:
		return "unsupported encryption revision"
	case EncryptionLocked:
		return "encryption locked"
	case ObjectNotFound:
		return "object not found"
	case IoFailure:
		return "i/o failure"
	default:
		return "pdf.Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Error is the error type used for all PDF-level failures.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Pos is the byte position in the file where the problem was detected,
	// or 0 if the position is not known.
	Pos int64

	// Err gives additional detail.  May be nil.
	Err error
}

func (err *Error) Error() string {
	msg := err.Kind.String()
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	if err.Pos > 0 {
		msg += " (at byte " + strconv.FormatInt(err.Pos, 10) + ")"
	}
	return msg
}

func (err *Error) Unwrap() error {
	return err.Err
}

// ErrorKind returns the Kind of err, or KindUnknown if err is not an
// *Error from this library.
func ErrorKind(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindUnknown
}

// IsKind reports whether err has the given Kind.
func IsKind(err error, k Kind) bool {
	return ErrorKind(err) == k
}
