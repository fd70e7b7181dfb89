package ingestion

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docchat/backend/internal/chunker"
	"github.com/docchat/backend/internal/extract"
	"github.com/docchat/backend/internal/index"
	"github.com/docchat/backend/internal/session"
	"github.com/docchat/backend/internal/storage/sqlite"
)

// fakeExtractor returns file contents as text verbatim, or a FileError for
// names listed in broken.
type fakeExtractor struct {
	broken map[string]bool
}

func (f *fakeExtractor) Text(filename string, data []byte) (string, error) {
	if f.broken[filename] {
		return "", &extract.FileError{Filename: filename, Err: errors.New("corrupt file")}
	}
	return string(data), nil
}

// fakeEmbedder produces a fixed-dimension vector per text, or fails wholesale.
type fakeEmbedder struct {
	calls int
	fail  bool
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("embedding backend unavailable")
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 1, 0}
	}
	return vectors, nil
}

func newTestProcessor(t *testing.T, extractor Extractor) (*Processor, *sqlite.Client, *index.Store) {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())
	require.NoError(t, db.AddUser("alice"))

	indexes := index.NewStore(t.TempDir())
	splitter := chunker.NewSplitter(50, 10)

	return NewProcessor(db, indexes, splitter, extractor), db, indexes
}

func TestProcessUploadsStoresAndIndexes(t *testing.T) {
	p, db, indexes := newTestProcessor(t, &fakeExtractor{})
	sess := session.Session{User: "alice", APIKey: "sk-1"}

	files := []UploadedFile{
		{Name: "a.pdf", Data: []byte("alpha document body with enough words to chunk")},
		{Name: "b.pdf", Data: []byte("beta document body")},
	}

	report, err := p.ProcessUploads(context.Background(), sess, files, &fakeEmbedder{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a.pdf", "b.pdf"}, report.Added)
	assert.Empty(t, report.Existing)
	assert.Empty(t, report.Failed)

	require.NotNil(t, report.Build)
	assert.Equal(t, 2, report.Build.Documents)
	assert.Positive(t, report.Build.Passages)

	count, err := db.CountDocuments("alice")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.True(t, indexes.Exists("alice"))
	ix, err := indexes.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, report.Build.Passages, ix.Len())
}

func TestProcessUploadsRejectsDuplicateFilename(t *testing.T) {
	p, db, _ := newTestProcessor(t, &fakeExtractor{})
	sess := session.Session{User: "alice", APIKey: "sk-1"}

	files := []UploadedFile{{Name: "a.pdf", Data: []byte("original body")}}

	_, err := p.ProcessUploads(context.Background(), sess, files, &fakeEmbedder{})
	require.NoError(t, err)

	files[0].Data = []byte("replacement body")
	report, err := p.ProcessUploads(context.Background(), sess, files, &fakeEmbedder{})
	require.NoError(t, err)

	assert.Empty(t, report.Added)
	assert.Equal(t, []string{"a.pdf"}, report.Existing)

	docs, err := db.ListDocuments("alice")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "original body", docs[0].Text)
}

func TestProcessUploadsCollectsPerFileFailures(t *testing.T) {
	p, _, indexes := newTestProcessor(t, &fakeExtractor{broken: map[string]bool{"bad.pdf": true}})
	sess := session.Session{User: "alice", APIKey: "sk-1"}

	files := []UploadedFile{
		{Name: "bad.pdf", Data: []byte("ignored")},
		{Name: "blank.pdf", Data: []byte("   \n ")},
		{Name: "good.pdf", Data: []byte("usable document body")},
	}

	report, err := p.ProcessUploads(context.Background(), sess, files, &fakeEmbedder{})
	require.NoError(t, err)

	assert.Equal(t, []string{"good.pdf"}, report.Added)
	assert.Contains(t, report.Failed, "bad.pdf")
	assert.Equal(t, "no extractable text", report.Failed["blank.pdf"])
	assert.True(t, indexes.Exists("alice"))
}

func TestProcessUploadsEmptyCorpus(t *testing.T) {
	p, _, indexes := newTestProcessor(t, &fakeExtractor{broken: map[string]bool{"bad.pdf": true}})
	sess := session.Session{User: "alice", APIKey: "sk-1"}

	files := []UploadedFile{{Name: "bad.pdf", Data: []byte("ignored")}}

	report, err := p.ProcessUploads(context.Background(), sess, files, &fakeEmbedder{})
	assert.ErrorIs(t, err, ErrEmptyCorpus)
	assert.Contains(t, report.Failed, "bad.pdf")
	assert.False(t, indexes.Exists("alice"))
}

func TestBuildIndexSkipsEmptyDocuments(t *testing.T) {
	p, db, _ := newTestProcessor(t, &fakeExtractor{})
	sess := session.Session{User: "alice", APIKey: "sk-1"}

	_, err := db.AddDocument("alice", "empty.pdf", "   ")
	require.NoError(t, err)
	_, err = db.AddDocument("alice", "full.pdf", "document body")
	require.NoError(t, err)

	report, err := p.BuildIndex(context.Background(), sess, &fakeEmbedder{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, []string{"empty.pdf"}, report.Skipped)
	assert.Positive(t, report.Passages)
}

func TestBuildIndexReportsStages(t *testing.T) {
	p, db, _ := newTestProcessor(t, &fakeExtractor{})
	sess := session.Session{User: "alice", APIKey: "sk-1"}

	_, err := db.AddDocument("alice", "a.pdf", "document body")
	require.NoError(t, err)

	report, err := p.BuildIndex(context.Background(), sess, &fakeEmbedder{})
	require.NoError(t, err)

	names := make([]string, len(report.Stages))
	for i, stage := range report.Stages {
		names[i] = stage.Name
	}
	assert.Equal(t, []string{"splitting", "embedding", "saving"}, names)
}

func TestBuildIndexFailureKeepsPreviousIndex(t *testing.T) {
	p, db, indexes := newTestProcessor(t, &fakeExtractor{})
	sess := session.Session{User: "alice", APIKey: "sk-1"}

	_, err := db.AddDocument("alice", "a.pdf", "first document body")
	require.NoError(t, err)
	_, err = p.BuildIndex(context.Background(), sess, &fakeEmbedder{})
	require.NoError(t, err)

	before, err := indexes.Load("alice")
	require.NoError(t, err)

	_, err = db.AddDocument("alice", "b.pdf", "second document body")
	require.NoError(t, err)
	_, err = p.BuildIndex(context.Background(), sess, &fakeEmbedder{fail: true})
	require.Error(t, err)

	after, err := indexes.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, before.Passages(), after.Passages())
}

func TestBuildIndexRebuildsFromFullSet(t *testing.T) {
	p, db, indexes := newTestProcessor(t, &fakeExtractor{})
	sess := session.Session{User: "alice", APIKey: "sk-1"}

	_, err := db.AddDocument("alice", "a.pdf", "first document body")
	require.NoError(t, err)
	_, err = p.BuildIndex(context.Background(), sess, &fakeEmbedder{})
	require.NoError(t, err)

	_, err = db.AddDocument("alice", "b.pdf", "second document body")
	require.NoError(t, err)
	_, err = p.BuildIndex(context.Background(), sess, &fakeEmbedder{})
	require.NoError(t, err)

	ix, err := indexes.Load("alice")
	require.NoError(t, err)

	sources := map[string]bool{}
	for _, passage := range ix.Passages() {
		sources[passage.SourceFile] = true
	}
	assert.True(t, sources["a.pdf"])
	assert.True(t, sources["b.pdf"])
}
