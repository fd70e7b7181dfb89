package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docchat/backend/internal/chunker"
	"github.com/docchat/backend/internal/extract"
	"github.com/docchat/backend/internal/index"
	"github.com/docchat/backend/internal/metrics"
	"github.com/docchat/backend/internal/session"
	"github.com/docchat/backend/internal/storage/sqlite"
	"github.com/docchat/backend/pkg/logger"
)

// ErrEmptyCorpus means no passage could be produced from any of the user's
// documents. No index is built or persisted in that case.
var ErrEmptyCorpus = errors.New("no indexable content in any document")

// Embedder turns passage texts into vectors, one per text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Extractor turns raw file bytes into plain text.
type Extractor interface {
	Text(filename string, data []byte) (string, error)
}

// UploadedFile is one file received from the user.
type UploadedFile struct {
	Name string
	Data []byte
}

// Stage is one entry of the structured build trace. The trace is returned
// to the caller as data, not written to a log sink.
type Stage struct {
	Name   string    `json:"name"`
	Detail string    `json:"detail,omitempty"`
	Count  int       `json:"count"`
	At     time.Time `json:"at"`
}

// BuildReport describes one full index build.
type BuildReport struct {
	Documents int      `json:"documents"`
	Passages  int      `json:"passages"`
	Skipped   []string `json:"skipped,omitempty"`
	Stages    []Stage  `json:"stages"`
}

// UploadReport describes one upload action: which files were stored, which
// were rejected as duplicates, which failed extraction, and the index build
// that followed.
type UploadReport struct {
	Added    []string          `json:"added"`
	Existing []string          `json:"existing"`
	Failed   map[string]string `json:"failed,omitempty"`
	Build    *BuildReport      `json:"build,omitempty"`
}

// Processor stores uploaded documents and rebuilds the owner's semantic
// index from the complete stored set.
type Processor struct {
	db        *sqlite.Client
	indexes   *index.Store
	splitter  *chunker.Splitter
	extractor Extractor
}

func NewProcessor(db *sqlite.Client, indexes *index.Store, splitter *chunker.Splitter, extractor Extractor) *Processor {
	return &Processor{
		db:        db,
		indexes:   indexes,
		splitter:  splitter,
		extractor: extractor,
	}
}

// ProcessUploads extracts and stores the given files, then rebuilds the
// owner's index from every stored document. Per-file extraction failures are
// collected in the report and do not abort the remaining files.
func (p *Processor) ProcessUploads(ctx context.Context, sess session.Session, files []UploadedFile, embedder Embedder) (*UploadReport, error) {
	report := &UploadReport{
		Added:    []string{},
		Existing: []string{},
		Failed:   map[string]string{},
	}

	for _, file := range files {
		text, err := p.extractor.Text(file.Name, file.Data)
		if err != nil {
			var fileErr *extract.FileError
			if errors.As(err, &fileErr) {
				report.Failed[file.Name] = fileErr.Err.Error()
			} else {
				report.Failed[file.Name] = err.Error()
			}
			logger.Warn("Extraction failed, skipping file",
				zap.String("username", sess.User),
				zap.String("filename", file.Name),
				zap.Error(err),
			)
			continue
		}
		if strings.TrimSpace(text) == "" {
			report.Failed[file.Name] = "no extractable text"
			logger.Warn("No text extracted, skipping file",
				zap.String("username", sess.User),
				zap.String("filename", file.Name),
			)
			continue
		}

		inserted, err := p.db.AddDocument(sess.User, file.Name, text)
		if err != nil {
			return report, fmt.Errorf("failed to store document %q: %w", file.Name, err)
		}
		if inserted {
			report.Added = append(report.Added, file.Name)
			metrics.DocumentsProcessed.Inc()
		} else {
			report.Existing = append(report.Existing, file.Name)
		}
	}

	build, err := p.BuildIndex(ctx, sess, embedder)
	report.Build = build
	if err != nil {
		return report, err
	}
	return report, nil
}

// BuildIndex rebuilds the owner's index from the complete current document
// set. The build happens fully in memory and is persisted atomically; any
// failure leaves a previously persisted index untouched.
func (p *Processor) BuildIndex(ctx context.Context, sess session.Session, embedder Embedder) (*BuildReport, error) {
	start := time.Now()

	docs, err := p.db.ListDocuments(sess.User)
	if err != nil {
		return nil, err
	}

	report := &BuildReport{Documents: len(docs)}

	var passages []index.Passage
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			report.Skipped = append(report.Skipped, doc.Filename)
			logger.Info("Skipping empty document",
				zap.String("username", sess.User),
				zap.String("filename", doc.Filename),
			)
			continue
		}
		chunks := p.splitter.Split(doc.Text)
		for i, chunk := range chunks {
			passages = append(passages, index.Passage{
				Text:       chunk,
				SourceFile: doc.Filename,
				ChunkIndex: i,
			})
		}
	}
	report.stage("splitting", fmt.Sprintf("%d documents", len(docs)), len(passages))

	if len(passages) == 0 {
		metrics.IndexBuildTotal.WithLabelValues("empty_corpus").Inc()
		return report, ErrEmptyCorpus
	}

	texts := make([]string, len(passages))
	for i, passage := range passages {
		texts[i] = passage.Text
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		metrics.IndexBuildTotal.WithLabelValues("embedding_error").Inc()
		return report, err
	}
	if len(vectors) != len(passages) {
		metrics.IndexBuildTotal.WithLabelValues("embedding_error").Inc()
		return report, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vectors), len(passages))
	}
	report.stage("embedding", "", len(vectors))

	ix, err := index.New(len(vectors[0]))
	if err != nil {
		return report, err
	}
	for i, vector := range vectors {
		if err := ix.Add(vector, passages[i]); err != nil {
			return report, err
		}
	}

	if err := p.indexes.Save(sess.User, ix); err != nil {
		metrics.IndexBuildTotal.WithLabelValues("persistence_error").Inc()
		return report, err
	}
	report.stage("saving", "", ix.Len())
	report.Passages = ix.Len()

	metrics.IndexBuildTotal.WithLabelValues("success").Inc()
	metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())
	metrics.PassagesIndexed.Observe(float64(ix.Len()))

	logger.Info("Index built",
		zap.String("username", sess.User),
		zap.Int("documents", len(docs)),
		zap.Int("passages", ix.Len()),
	)
	return report, nil
}

func (r *BuildReport) stage(name, detail string, count int) {
	r.Stages = append(r.Stages, Stage{
		Name:   name,
		Detail: detail,
		Count:  count,
		At:     time.Now(),
	})
}
