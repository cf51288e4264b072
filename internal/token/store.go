package token

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/stravasync/stravasync/internal/errors"
	"github.com/stravasync/stravasync/internal/models"
)

// Store is the durable, file-backed holder of the current OAuth2
// credential set. It performs no network calls. Writes replace the file
// wholesale and go through a temp-file rename so a crash mid-write can
// never leave a truncated credential behind.
type Store struct {
	path string
}

// NewStore creates a store over the given token file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the token file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a credential is on record.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the current credential from disk.
func (s *Store) Load() (*models.Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.AuthError{Reason: "no credential on record", Err: err}
		}
		return nil, &errors.ErrFileRead{Path: s.path, Err: err}
	}

	var cred models.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, &errors.AuthError{Reason: "token file is not valid JSON", Err: err}
	}
	return &cred, nil
}

// Save atomically replaces the stored credential.
func (s *Store) Save(cred *models.Credential) error {
	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return &errors.ErrFileWrite{Path: s.path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.json")
	if err != nil {
		return &errors.ErrFileWrite{Path: s.path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &errors.ErrFileWrite{Path: s.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &errors.ErrFileWrite{Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &errors.ErrFileWrite{Path: s.path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return &errors.ErrFileWrite{Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &errors.ErrFileWrite{Path: s.path, Err: err}
	}
	return nil
}
