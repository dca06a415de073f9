// Pdfinfo prints document metadata and page geometry for a PDF file.
//
// Usage:
//
//	pdfinfo [-p password] file.pdf
//
// For an encrypted file the password is taken from the -p flag; if the
// flag is missing or rejected, the password is read from the terminal.
package main

import (
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/pagegraph/pdf"
	"github.com/pagegraph/pdf/document"
)

func main() {
	passwdArg := flag.String("p", "", "PDF password")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: pdfinfo [-p password] file.pdf")
		os.Exit(2)
	}

	doc, err := document.Open(flag.Arg(0), &pdf.ReaderOptions{Password: *passwdArg})
	check(err)
	defer doc.Close()

	err = unlock(doc)
	check(err)

	err = show(doc)
	check(err)
}

// unlock prompts for passwords until the document can be read.
func unlock(doc *document.Document) error {
	for !doc.R.Unlocked() {
		fmt.Print("password: ")
		passwd, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		ok, err := doc.TryPassword(string(passwd), false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "password rejected")
		}
	}
	return nil
}

func show(doc *document.Document) error {
	meta, err := doc.Metadata()
	if err != nil {
		return err
	}

	fmt.Println("version:", meta.Version)
	if info := meta.Info; info != nil {
		if info.Title != "" {
			fmt.Println("title:", info.Title)
		}
		if info.Author != "" {
			fmt.Println("author:", info.Author)
		}
		if info.Producer != "" {
			fmt.Println("producer:", info.Producer)
		}
		if !info.CreationDate.IsZero() {
			fmt.Println("created:", info.CreationDate.Format("2006-01-02 15:04:05"))
		}
	}
	if len(meta.ID) == 2 {
		fmt.Printf("id: %x %x\n", meta.ID[0], meta.ID[1])
	}
	fmt.Println("objects:", len(doc.R.Objects()))

	n, err := doc.PageCount()
	if err != nil {
		return err
	}
	fmt.Println("pages:", n)

	for i := 0; i < n; i++ {
		page, err := doc.Page(i)
		if err != nil {
			return err
		}
		box := page.MediaBox
		fmt.Printf("page %d: %g x %g pt", i+1, box.Dx(), box.Dy())
		if page.Rotate != 0 {
			fmt.Printf(", rotated %d", page.Rotate)
		}
		fmt.Println()
	}

	return nil
}

func check(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
