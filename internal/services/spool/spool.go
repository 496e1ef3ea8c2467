package spool

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"roomdrop/internal/domain"
)

// Store spools uploaded transfer payloads on disk under a single directory,
// one file per transfer id.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("spool dir is required")
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// path resolves the payload file for an id, rejecting anything that would
// escape the spool directory.
func (s *Store) path(id domain.TransferID) (string, error) {
	name := strings.TrimSpace(string(id))
	if name == "" {
		return "", errors.New("transfer id is required")
	}
	joined := filepath.Clean(filepath.Join(s.dir, name+".bin"))
	if !strings.HasPrefix(joined, s.dir+string(filepath.Separator)) {
		return "", errors.New("path escapes spool dir")
	}
	return joined, nil
}

func (s *Store) Save(id domain.TransferID, src io.Reader) (int64, error) {
	path, err := s.path(id)
	if err != nil {
		return 0, err
	}
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}

func (s *Store) Open(id domain.TransferID) (io.ReadCloser, int64, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, domain.ErrNotFound
		}
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func (s *Store) Remove(id domain.TransferID) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
