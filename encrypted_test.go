package pdf_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/pagegraph/pdf"
	"github.com/pagegraph/pdf/internal/testfile"
)

func TestEncryptedEmptyPassword(t *testing.T) {
	// RC4 encryption with an empty user password opens without interaction
	r := openBytes(t, testfile.EncryptedRC4(""))

	if !r.Encrypted() {
		t.Fatal("document not reported as encrypted")
	}
	ok, err := r.TryPassword("", false)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("empty password rejected")
	}

	info, err := r.GetInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Title != testfile.Title {
		t.Errorf("got title %q", info.Title)
	}

	obj, err := r.GetObject(4, 0)
	if err != nil {
		t.Fatal(err)
	}
	stm, err := pdf.DecodeStream(r, obj.(*pdf.Stream))
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(stm)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != testfile.PageText {
		t.Errorf("wrong content stream %q", body)
	}
}

func TestEncryptedLocked(t *testing.T) {
	r := openBytes(t, testfile.EncryptedRC4("secret"))

	if r.Unlocked() {
		t.Fatal("document not reported as locked")
	}

	// protected strings are unavailable while locked
	_, err := r.GetInfo()
	if !pdf.IsKind(err, pdf.EncryptionLocked) {
		t.Errorf("GetInfo: got error %v", err)
	}

	// stream payloads are unavailable while locked
	obj, err := r.GetObject(4, 0)
	if err != nil {
		t.Fatal(err)
	}
	_, err = pdf.DecodeStream(r, obj.(*pdf.Stream))
	if !pdf.IsKind(err, pdf.EncryptionLocked) {
		t.Errorf("DecodeStream: got error %v", err)
	}

	ok, err := r.TryPassword("wrong", false)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("wrong password accepted")
	}

	ok, err = r.TryPassword("secret", false)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("correct password rejected")
	}
	if !r.Unlocked() {
		t.Error("document still reported as locked")
	}

	info, err := r.GetInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Title != testfile.Title {
		t.Errorf("got title %q", info.Title)
	}
	stm, err := pdf.DecodeStream(r, obj.(*pdf.Stream))
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(stm)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != testfile.PageText {
		t.Errorf("wrong content stream %q", body)
	}
}

func TestEncryptedOwnerPassword(t *testing.T) {
	// the canned file uses the same string for both passwords
	r := openBytes(t, testfile.EncryptedRC4("secret"))

	ok, err := r.TryPassword("secret", true)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("owner password rejected")
	}
	if !r.Unlocked() {
		t.Error("document still reported as locked")
	}
}

func TestEncryptedReaderOption(t *testing.T) {
	data := testfile.EncryptedRC4("secret")
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)),
		&pdf.ReaderOptions{Password: "secret"})
	if err != nil {
		t.Fatal(err)
	}
	if !r.Unlocked() {
		t.Fatal("password from the options not applied")
	}
	info, err := r.GetInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Title != testfile.Title {
		t.Errorf("got title %q", info.Title)
	}
}

func TestUnsupportedRevision(t *testing.T) {
	for _, R := range []int{1, 7} {
		b := testfile.SimpleBuilder()
		trailer := simpleTestTrailer()
		trailer["Encrypt"] = pdf.Dict{
			"Filter": pdf.Name("Standard"),
			"V":      pdf.Integer(1),
			"R":      pdf.Integer(R),
			"O":      pdf.String(make([]byte, 32)),
			"U":      pdf.String(make([]byte, 32)),
			"P":      pdf.Integer(-4),
		}
		b.WriteXRef(trailer)

		data := b.Bytes()
		_, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)), nil)
		if !pdf.IsKind(err, pdf.UnsupportedEncryptionRevision) {
			t.Errorf("R=%d: got error %v", R, err)
		}
	}
}
