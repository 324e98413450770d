package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/irs990-cli/internal/model"
)

// FileStore keeps one pretty-printed <ein>.json file per organization.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed. Failure to create it is fatal for the run.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, eris.New("file store: empty cache directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "file store: create %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the cache directory.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the snapshot path for ein.
func (s *FileStore) Path(ein string) string {
	return filepath.Join(s.dir, ein+".json")
}

// checkName refuses EINs that would resolve outside the cache directory.
func checkName(ein string) error {
	if ein == "" || ein == "." || strings.Contains(ein, "..") || strings.ContainsAny(ein, `/\`) {
		return eris.Errorf("file store: invalid EIN %q", ein)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context, ein string) (*model.Record, error) {
	if err := checkName(ein); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(ein))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, miss("file store", ein)
		}
		return nil, eris.Wrapf(err, "file store: read %s", ein)
	}
	rec, err := model.DecodeRecord(data)
	if err != nil {
		return nil, eris.Wrapf(err, "file store: decode %s", ein)
	}
	return rec, nil
}

// Store writes to a temp file and renames it over the snapshot so readers
// never observe a partial document.
func (s *FileStore) Store(_ context.Context, ein string, rec *model.Record) error {
	if err := checkName(ein); err != nil {
		return err
	}
	data, err := model.EncodeRecord(rec)
	if err != nil {
		return eris.Wrapf(err, "file store: encode %s", ein)
	}

	tmp, err := os.CreateTemp(s.dir, ein+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "file store: create temp for %s", ein)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "file store: write %s", ein)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "file store: close %s", ein)
	}
	if err := os.Rename(tmpName, s.Path(ein)); err != nil {
		return eris.Wrapf(err, "file store: rename %s", ein)
	}
	return nil
}

func (s *FileStore) Exists(_ context.Context, ein string) (bool, error) {
	if err := checkName(ein); err != nil {
		return false, err
	}
	_, err := os.Stat(s.Path(ein))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, eris.Wrapf(err, "file store: stat %s", ein)
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, eris.Wrap(err, "file store: list")
	}
	var eins []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		eins = append(eins, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(eins)
	return eins, nil
}

func (s *FileStore) Close() error { return nil }
