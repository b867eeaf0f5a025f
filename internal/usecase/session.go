package usecase

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"cricsight/internal/domain"
)

// Session represents an active conversation session.
type Session struct {
	mu        sync.RWMutex
	ID        string           `json:"id"` // ULID (internal, globally unique)
	Key       string           `json:"key"`
	Msgs      []domain.Message `json:"messages"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewSession creates a new empty session with a generated ULID.
// The key is the caller-scoped lookup key (e.g. "cli:default").
func NewSession(key string) *Session {
	now := time.Now()
	return &Session{
		ID:        generateULID(now),
		Key:       key,
		Msgs:      make([]domain.Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func generateULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// AddMessage appends a message and updates the timestamp (thread-safe).
func (s *Session) AddMessage(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.Msgs = append(s.Msgs, msg)
	s.UpdatedAt = time.Now()
}

// Messages returns a copy of the message history (thread-safe).
func (s *Session) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]domain.Message, len(s.Msgs))
	copy(cp, s.Msgs)
	return cp
}

// SessionManager manages multiple sessions with JSON persistence.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	dataDir  string
}

// NewSessionManager creates a session manager with a data directory for persistence.
func NewSessionManager(dataDir string) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		dataDir:  dataDir,
	}
}

// validateSessionKey checks if a session key is safe for filesystem use.
func (sm *SessionManager) validateSessionKey(key string) error {
	if key == "" {
		return fmt.Errorf("session key cannot be empty")
	}
	if strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("session key contains path separators: %q", key)
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("session key contains parent directory reference: %q", key)
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("session key contains null byte: %q", key)
	}
	if clean := filepath.Clean(key); clean != key {
		return fmt.Errorf("session key not clean path: %q vs %q", key, clean)
	}
	return nil
}

// GetOrCreate returns an existing session or creates a new one, loading
// from disk when a persisted copy exists.
func (sm *SessionManager) GetOrCreate(key string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if s, ok := sm.sessions[key]; ok {
		return s
	}

	s := NewSession(key)
	if loaded, err := sm.loadFromDisk(key); err == nil {
		s = loaded
	}
	sm.sessions[key] = s
	return s
}

// Get returns an existing session or ErrSessionNotFound.
func (sm *SessionManager) Get(key string) (*Session, error) {
	sm.mu.RLock()
	s, ok := sm.sessions[key]
	sm.mu.RUnlock()
	if !ok {
		return nil, domain.NewDomainError("SessionManager.Get", domain.ErrSessionNotFound, key)
	}
	return s, nil
}

// Save persists a session to disk as JSON.
func (sm *SessionManager) Save(key string) error {
	if err := sm.validateSessionKey(key); err != nil {
		return domain.NewDomainError("SessionManager.Save", err, key)
	}

	sm.mu.RLock()
	s, ok := sm.sessions[key]
	sm.mu.RUnlock()

	if !ok {
		return domain.NewDomainError("SessionManager.Save", domain.ErrSessionNotFound, key)
	}

	if err := os.MkdirAll(sm.dataDir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	s.mu.RLock()
	data, err := json.MarshalIndent(s, "", "  ")
	s.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	path := filepath.Join(sm.dataDir, key+".json")
	return os.WriteFile(path, data, 0600)
}

// Delete removes a session from memory and disk.
func (sm *SessionManager) Delete(key string) error {
	if err := sm.validateSessionKey(key); err != nil {
		return domain.NewDomainError("SessionManager.Delete", err, key)
	}

	sm.mu.Lock()
	_, ok := sm.sessions[key]
	if ok {
		delete(sm.sessions, key)
	}
	sm.mu.Unlock()

	if !ok {
		return domain.NewDomainError("SessionManager.Delete", domain.ErrSessionNotFound, key)
	}

	path := filepath.Join(sm.dataDir, key+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// ListSessions returns all active session keys.
func (sm *SessionManager) ListSessions() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	keys := make([]string, 0, len(sm.sessions))
	for key := range sm.sessions {
		keys = append(keys, key)
	}
	return keys
}

func (sm *SessionManager) loadFromDisk(key string) (*Session, error) {
	if err := sm.validateSessionKey(key); err != nil {
		return nil, err
	}

	path := filepath.Join(sm.dataDir, key+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}
