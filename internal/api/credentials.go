package api

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is the persisted session credential. The format is owned by
// this package; nothing else reads the file.
type Credential struct {
	Token   string    `json:"token"`
	UserID  string    `json:"user_id,omitempty"`
	SavedAt time.Time `json:"saved_at"`
}

// Valid reports whether the credential is present and its JWT has not
// expired at the given time. The token is decoded without signature
// verification: the client holds no key material, and the backend
// re-verifies every request anyway. A token without an exp claim is
// treated as usable; an undecodable token is not.
func (c Credential) Valid(now time.Time) bool {
	if c.Token == "" {
		return false
	}
	token, _, err := jwt.NewParser().ParseUnverified(c.Token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil {
		return false
	}
	if exp == nil {
		return true
	}
	return now.Before(exp.Time)
}

// CredentialStore persists the session credential between processes.
type CredentialStore interface {
	Load() (Credential, bool, error)
	Save(Credential) error
	Clear() error
}

// FileStore keeps the credential in a mode-0600 JSON file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore builds a store at the given path. Parent directories are
// created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credential{}, false, nil
		}
		return Credential{}, false, err
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, false, err
	}
	if cred.Token == "" {
		return Credential{}, false, nil
	}
	return cred, true, nil
}

func (s *FileStore) Save(cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MemoryStore holds the credential for the process lifetime only.
type MemoryStore struct {
	mu   sync.Mutex
	cred Credential
	set  bool
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load() (Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred, s.set, nil
}

func (s *MemoryStore) Save(cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	s.set = true
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = Credential{}
	s.set = false
	return nil
}
