// Package client is the device side of OTP login: it talks to the API,
// keeps the signed-in session on disk and decides which screen to show.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SessionKey names the single storage slot holding the cached session.
const SessionKey = "userSession"

// User is the profile returned by the API.
type User struct {
	ID           string `json:"id"`
	Mobile       string `json:"mobile"`
	Name         string `json:"name"`
	BusinessName string `json:"business_name"`
}

// Session is what the device remembers between launches.
type Session struct {
	Token       string    `json:"token"`
	AccessToken string    `json:"access_token,omitempty"`
	User        User      `json:"user"`
	SavedAt     time.Time `json:"saved_at"`
}

func (s *Session) valid() bool {
	return s != nil && s.Token != "" && s.User.ID != ""
}

// SessionStore persists at most one Session.
type SessionStore interface {
	Save(s Session) error
	// Load returns nil when nothing usable is stored. It never fails.
	Load() *Session
	// Clear removes the stored session. Clearing an empty store is not an error.
	Clear() error
}

// FileStore keeps the session as JSON in <dir>/userSession.json.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir. The directory is created on first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the file backing the store.
func (f *FileStore) Path() string {
	return filepath.Join(f.dir, SessionKey+".json")
}

// Save writes s atomically: a temp file in the same directory is renamed over the old one.
func (f *FileStore) Save(s Session) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, "."+SessionKey+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.Path()); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// Load reads the stored session. Missing, unreadable or malformed data yields nil.
func (f *FileStore) Load() *Session {
	raw, err := os.ReadFile(f.Path())
	if err != nil {
		return nil
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	if !s.valid() {
		return nil
	}
	return &s
}

// Clear deletes the session file.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// MemoryStore is a SessionStore that lives in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &s
	return nil
}

func (m *MemoryStore) Load() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.session.valid() {
		return nil
	}
	s := *m.session
	return &s
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
