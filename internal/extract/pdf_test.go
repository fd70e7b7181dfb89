package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextRejectsNonPDFBytes(t *testing.T) {
	p := NewPDF()

	_, err := p.Text("notes.txt", []byte("plain text, not a pdf"))
	require.Error(t, err)

	var fileErr *FileError
	require.True(t, errors.As(err, &fileErr))
	assert.Equal(t, "notes.txt", fileErr.Filename)
}

func TestTextRejectsTruncatedPDF(t *testing.T) {
	p := NewPDF()

	_, err := p.Text("broken.pdf", []byte("%PDF-1.4\n"))
	require.Error(t, err)

	var fileErr *FileError
	assert.True(t, errors.As(err, &fileErr))
}

func TestFileErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := &FileError{Filename: "a.pdf", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "a.pdf")
}
