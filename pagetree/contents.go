package pagetree

import (
	"errors"
	"io"

	"github.com/pagegraph/pdf"
)

// Contents returns the decoded content streams of a page.  The /Contents
// entry may be a single stream or an array of streams; each stream is
// decrypted and decoded on its own and returned as a separate chunk, in
// file order.  An empty or absent /Contents entry yields no chunks.
func Contents(r pdf.Getter, page *Page) ([][]byte, error) {
	contents, err := pdf.Resolve(r, page.Dict["Contents"])
	if err != nil {
		return nil, err
	}
	if contents == nil {
		return nil, nil
	}

	var parts pdf.Array
	switch obj := contents.(type) {
	case pdf.Array:
		parts = obj
	default:
		parts = pdf.Array{obj}
	}

	var chunks [][]byte
	for _, part := range parts {
		obj, err := pdf.Resolve(r, part)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			continue
		}
		stream, ok := obj.(*pdf.Stream)
		if !ok {
			return nil, &pdf.Error{Kind: pdf.MalformedStructure,
				Err: errors.New("page /Contents entry is not a stream")}
		}
		decoded, err := pdf.DecodeStream(r, stream)
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(decoded)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, data)
	}
	return chunks, nil
}
