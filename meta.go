package pdf

import (
	"errors"
	"strconv"
	"time"

	"golang.org/x/text/language"
)

var errVersion = errors.New("unsupported PDF version")

// Version represents a version of the PDF standard.
type Version int

// PDF versions supported by this library.
const (
	_ Version = iota
	V1_0
	V1_1
	V1_2
	V1_3
	V1_4
	V1_5
	V1_6
	V1_7
	V2_0
)

// ParseVersion parses a PDF version string.
func ParseVersion(verString string) (Version, error) {
	switch verString {
	case "1.0":
		return V1_0, nil
	case "1.1":
		return V1_1, nil
	case "1.2":
		return V1_2, nil
	case "1.3":
		return V1_3, nil
	case "1.4":
		return V1_4, nil
	case "1.5":
		return V1_5, nil
	case "1.6":
		return V1_6, nil
	case "1.7":
		return V1_7, nil
	case "2.0":
		return V2_0, nil
	}
	return 0, errVersion
}

// ToString returns the string representation of ver, e.g. "1.7".
// If ver does not correspond to a supported PDF version, an error is
// returned.
func (ver Version) ToString() (string, error) {
	if ver >= V1_0 && ver <= V1_7 {
		return "1." + string([]byte{byte(ver-V1_0) + '0'}), nil
	}
	if ver == V2_0 {
		return "2.0", nil
	}
	return "", errVersion
}

func (ver Version) String() string {
	versionString, err := ver.ToString()
	if err != nil {
		versionString = "pdf.Version(" + strconv.Itoa(int(ver)) + ")"
	}
	return versionString
}

// MetaInfo represents the meta information of a PDF file.
type MetaInfo struct {
	// Version is the PDF version used in this file.
	Version Version

	// ID is the file identifier: a slice of two byte slices (the
	// original ID of the file, and the ID of the current version), or nil
	// if the file does not specify an ID.
	ID [][]byte

	// Catalog is the document catalog.  For encrypted documents this is
	// only available once a password has been accepted.
	Catalog *Catalog

	// Info is the document information dictionary, parsed on first use via
	// [Reader.GetInfo].  Nil if the file has none or it was not yet read.
	Info *Info

	// Trailer is the trailer dictionary of the newest cross-reference
	// section, with Size, Root, Info, Encrypt and ID filled in from the
	// newest section which defines each key.
	Trailer Dict
}

// Catalog represents a PDF document catalog.  The only required entry is
// Pages, the root of the page tree.
//
// The document catalog is documented in section 7.7.2 of PDF 32000-1:2008.
type Catalog struct {
	Version    Version
	Pages      Reference
	PageLayout Name
	PageMode   Name
	Outlines   Reference
	Lang       language.Tag
}

// decodeCatalog extracts the catalog fields this library uses from the
// resolved catalog dictionary.
func decodeCatalog(dict Dict) (*Catalog, error) {
	cat := &Catalog{}

	pages, ok := dict.Reference("Pages")
	if !ok {
		return nil, &Error{Kind: MissingRequiredKey,
			Err: errors.New("catalog /Pages")}
	}
	cat.Pages = pages

	if v, ok := dict.Name("Version"); ok {
		if ver, err := ParseVersion(string(v)); err == nil {
			cat.Version = ver
		}
	}
	cat.PageLayout, _ = dict.Name("PageLayout")
	cat.PageMode, _ = dict.Name("PageMode")
	cat.Outlines, _ = dict.Reference("Outlines")
	if lang, ok := dict.Str("Lang"); ok {
		if tag, err := language.Parse(lang.AsTextString()); err == nil {
			cat.Lang = tag
		}
	}

	return cat, nil
}

// Info represents a PDF document information dictionary.
// All fields are optional.
//
// The document information dictionary is documented in section 14.3.3 of
// PDF 32000-1:2008.
type Info struct {
	Title    string
	Author   string
	Subject  string
	Keywords string

	// Creator names the application that created the original document.
	Creator string

	// Producer names the application that converted the document to PDF.
	Producer string

	// CreationDate gives the date and time the document was created.
	CreationDate time.Time

	// ModDate gives the date and time the document was last modified.
	ModDate time.Time

	// Trapped is one of "True", "False" or "Unknown" (the default).
	Trapped Name

	// Custom contains all non-standard entries of the Info dictionary.
	Custom map[string]string
}

// decodeInfo converts a resolved Info dictionary.  Entries of unexpected
// type are skipped rather than reported, since Info dictionaries found in
// the wild are frequently sloppy.
func decodeInfo(r Getter, dict Dict) (*Info, error) {
	info := &Info{Trapped: "Unknown"}
	for key, val := range dict {
		val, err := Resolve(r, val)
		if err != nil {
			return nil, err
		}

		switch key {
		case "Title", "Author", "Subject", "Keywords", "Creator", "Producer":
			s, ok := val.(String)
			if !ok {
				continue
			}
			text := s.AsTextString()
			switch key {
			case "Title":
				info.Title = text
			case "Author":
				info.Author = text
			case "Subject":
				info.Subject = text
			case "Keywords":
				info.Keywords = text
			case "Creator":
				info.Creator = text
			case "Producer":
				info.Producer = text
			}
		case "CreationDate", "ModDate":
			s, ok := val.(String)
			if !ok {
				continue
			}
			t, err := s.AsDate()
			if err != nil {
				continue
			}
			if key == "CreationDate" {
				info.CreationDate = t
			} else {
				info.ModDate = t
			}
		case "Trapped":
			if name, ok := val.(Name); ok {
				info.Trapped = name
			}
		default:
			if s, ok := val.(String); ok {
				if info.Custom == nil {
					info.Custom = make(map[string]string)
				}
				info.Custom[string(key)] = s.AsTextString()
			}
		}
	}
	return info, nil
}
