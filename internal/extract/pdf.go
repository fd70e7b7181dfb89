package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// FileError marks an extraction failure for a single file. Per-file failures
// are non-fatal: the caller skips the file and continues with the rest.
type FileError struct {
	Filename string
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("extract %q: %v", e.Filename, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// PDF extracts plain text from PDF bytes, page by page.
type PDF struct{}

func NewPDF() *PDF {
	return &PDF{}
}

func (p *PDF) Text(filename string, data []byte) (text string, err error) {
	// The pdf parser panics on some malformed files; treat those the same
	// as a parse error.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &FileError{Filename: filename, Err: fmt.Errorf("pdf parser panic: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &FileError{Filename: filename, Err: err}
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}

	return sb.String(), nil
}
