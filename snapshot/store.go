package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/harvest/core"
)

// FileName is the snapshot file inside each job directory.
const FileName = "scraped_data.json"

// Store keeps one snapshot per job under root/<jobID>/scraped_data.json.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrRootRequired
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot root: %w", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the directory holding all job directories.
func (s *Store) Root() string {
	return s.root
}

// Path returns the snapshot file path for jobID.
func (s *Store) Path(jobID string) (string, error) {
	if err := checkJobID(jobID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, jobID, FileName), nil
}

// Write persists env for jobID atomically (temp file + rename).
func (s *Store) Write(jobID string, env *Envelope) error {
	path, err := s.Path(jobID)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "tmp-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename temp snapshot: %w", err)
	}
	return nil
}

// Read returns the envelope stored for jobID, whether or not the run succeeded.
func (s *Store) Read(jobID string) (*Envelope, error) {
	path, err := s.Path(jobID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return decode(data)
}

// Load returns the records of a successful snapshot. A snapshot recording a
// failed run yields ErrUnsuccessful.
func (s *Store) Load(jobID string) ([]core.RawContentRecord, error) {
	env, err := s.Read(jobID)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		if env.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrUnsuccessful, env.Error)
		}
		return nil, ErrUnsuccessful
	}
	return env.Results, nil
}

// Exists reports whether a snapshot file exists for jobID.
func (s *Store) Exists(jobID string) (bool, error) {
	path, err := s.Path(jobID)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat snapshot: %w", err)
	}
	return true, nil
}

// Delete removes the job directory. Deleting a missing snapshot is not an error.
func (s *Store) Delete(jobID string) error {
	if err := checkJobID(jobID); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.root, jobID)); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func checkJobID(jobID string) error {
	if jobID == "" || jobID == "." || jobID == ".." ||
		strings.ContainsAny(jobID, `/\`) || strings.ContainsRune(jobID, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	return nil
}
