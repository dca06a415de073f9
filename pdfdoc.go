package pdf

// PDFDocEncoding agrees with Latin-1 except for two ranges of code points.
// The tables below list only the differences; a zero entry marks a byte
// with no assigned character.

var pdfDocLow = [8]rune{ // bytes 0x18 - 0x1f
	0x02D8, 0x02C7, 0x02C6, 0x02D9, 0x02DD, 0x02DB, 0x02DA, 0x02DC,
}

var pdfDocHigh = [33]rune{ // bytes 0x80 - 0xa0
	0x2022, 0x2020, 0x2021, 0x2026, 0x2014, 0x2013, 0x0192, 0x2044,
	0x2039, 0x203A, 0x2212, 0x2030, 0x201E, 0x201C, 0x201D, 0x2018,
	0x2019, 0x201A, 0x2122, 0xFB01, 0xFB02, 0x0141, 0x0152, 0x0160,
	0x0178, 0x017D, 0x0131, 0x0142, 0x0153, 0x0161, 0x017E, 0,
	0x20AC,
}

func pdfDocByteToRune(c byte) (rune, bool) {
	switch {
	case c >= 0x18 && c <= 0x1F:
		return pdfDocLow[c-0x18], true
	case c == 0x7F:
		return 0, false
	case c >= 0x80 && c <= 0xA0:
		r := pdfDocHigh[c-0x80]
		return r, r != 0
	case c == 0xAD:
		return 0, false
	default:
		return rune(c), true
	}
}

// pdfDocDecode interprets buf using PDFDocEncoding.  Bytes with no assigned
// character are mapped to the Unicode replacement character.
func pdfDocDecode(buf []byte) string {
	rr := make([]rune, len(buf))
	for i, c := range buf {
		r, ok := pdfDocByteToRune(c)
		if !ok {
			r = 0xFFFD
		}
		rr[i] = r
	}
	return string(rr)
}

// pdfDocEncode converts s to PDFDocEncoding.  The second return value is
// false if s contains characters which cannot be represented.
func pdfDocEncode(s string) (String, bool) {
	rr := []rune(s)
	buf := make([]byte, len(rr))
encodeLoop:
	for i, r := range rr {
		switch {
		case r >= 0x18 && r <= 0x1F, r == 0x7F, r >= 0x80 && r <= 0xA0, r == 0xAD:
			// these bytes have non-Latin-1 meanings
			return nil, false
		case r < 0x100:
			buf[i] = byte(r)
		default:
			for j, q := range pdfDocLow {
				if q == r {
					buf[i] = byte(0x18 + j)
					continue encodeLoop
				}
			}
			for j, q := range pdfDocHigh {
				if q == r && q != 0 {
					buf[i] = byte(0x80 + j)
					continue encodeLoop
				}
			}
			return nil, false
		}
	}
	return String(buf), true
}
