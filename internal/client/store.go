package client

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SessionStore keeps the session cookie value between runs.
type SessionStore interface {
	Load() (string, error)
	// Save persists sid; an empty sid forgets the session.
	Save(sid string) error
}

// FileStore keeps the session in a single file readable only by the user.
type FileStore struct {
	Path string
}

func (f FileStore) Load() (string, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (f FileStore) Save(sid string) error {
	if sid == "" {
		err := os.Remove(f.Path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.Path, []byte(sid+"\n"), 0o600)
}
