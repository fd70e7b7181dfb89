package index

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/docchat/backend/pkg/logger"
	"github.com/docchat/backend/pkg/utils"
)

// ErrNotFound is returned when no persisted index exists for an owner.
// Callers must trigger indexing first; the store never builds on demand.
var ErrNotFound = errors.New("no persisted index for owner")

// PersistenceError marks a storage failure (disk, permission). The previous
// persisted index is untouched when one is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("index %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

const indexFileName = "index.gob"

// snapshot is the on-disk form of an index.
type snapshot struct {
	Dimension int
	Vectors   [][]float32
	Passages  []Passage
}

// Store persists one index per owner, each under its own directory beneath
// baseDir. Replacement is all-or-nothing: the snapshot is written to a
// temporary file and renamed over the previous one.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) ownerDir(owner string) string {
	return filepath.Join(s.baseDir, utils.SafeName(owner))
}

func (s *Store) Save(owner string, ix *Index) error {
	dir := s.ownerDir(owner)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	tmp := filepath.Join(dir, indexFileName+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	snap := snapshot{
		Dimension: ix.dimension,
		Vectors:   ix.vectors,
		Passages:  ix.passages,
	}
	if err := gob.NewEncoder(f).Encode(&snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return &PersistenceError{Op: "save", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &PersistenceError{Op: "save", Err: err}
	}

	if err := os.Rename(tmp, filepath.Join(dir, indexFileName)); err != nil {
		os.Remove(tmp)
		return &PersistenceError{Op: "save", Err: err}
	}

	logger.Info("Index persisted",
		zap.String("owner", owner),
		zap.Int("passages", ix.Len()),
		zap.Int("dimension", ix.dimension),
	)
	return nil
}

func (s *Store) Load(owner string) (*Index, error) {
	f, err := os.Open(filepath.Join(s.ownerDir(owner), indexFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	if snap.Dimension <= 0 || len(snap.Vectors) != len(snap.Passages) {
		return nil, &PersistenceError{Op: "load", Err: errors.New("corrupt index snapshot")}
	}

	return &Index{
		dimension: snap.Dimension,
		vectors:   snap.Vectors,
		passages:  snap.Passages,
	}, nil
}

func (s *Store) Exists(owner string) bool {
	_, err := os.Stat(filepath.Join(s.ownerDir(owner), indexFileName))
	return err == nil
}
