package usecase

import (
	"errors"
	"testing"
	"time"

	"cricsight/internal/domain"
)

func TestNewSessionGeneratesULID(t *testing.T) {
	s := NewSession("cli:default")
	if len(s.ID) != 26 {
		t.Errorf("ID = %q, want 26-char ULID", s.ID)
	}
	if s.Key != "cli:default" {
		t.Errorf("Key = %q", s.Key)
	}
	if len(s.Messages()) != 0 {
		t.Errorf("new session has %d messages", len(s.Messages()))
	}
}

func TestAddMessageSetsTimestamp(t *testing.T) {
	s := NewSession("k")
	s.AddMessage(domain.Message{Role: domain.RoleUser, Content: "hi"})

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d", len(msgs))
	}
	if msgs[0].Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := NewSession("k")
	s.AddMessage(domain.Message{Role: domain.RoleUser, Content: "original"})

	msgs := s.Messages()
	msgs[0].Content = "mutated"

	if s.Messages()[0].Content != "original" {
		t.Error("Messages exposed internal slice")
	}
}

func TestSessionManagerSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	sm := NewSessionManager(dir)

	s := sm.GetOrCreate("alice")
	s.AddMessage(domain.Message{
		Role:      domain.RoleUser,
		Content:   "who won the 2023 World Cup?",
		Timestamp: time.Now(),
	})
	if err := sm.Save("alice"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Fresh manager simulates a restart.
	sm2 := NewSessionManager(dir)
	loaded := sm2.GetOrCreate("alice")

	if loaded.ID != s.ID {
		t.Errorf("loaded ID = %q, want %q", loaded.ID, s.ID)
	}
	msgs := loaded.Messages()
	if len(msgs) != 1 || msgs[0].Content != "who won the 2023 World Cup?" {
		t.Errorf("loaded messages = %+v", msgs)
	}
}

func TestSessionManagerGetUnknown(t *testing.T) {
	sm := NewSessionManager(t.TempDir())
	_, err := sm.Get("missing")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionManagerDelete(t *testing.T) {
	dir := t.TempDir()
	sm := NewSessionManager(dir)
	sm.GetOrCreate("bob")
	if err := sm.Save("bob"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := sm.Delete("bob"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := sm.Get("bob"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("session survived deletion: %v", err)
	}
	if err := sm.Delete("bob"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestValidateSessionKey(t *testing.T) {
	sm := NewSessionManager(t.TempDir())

	for _, key := range []string{"cli:default", "alice", "user-42"} {
		if err := sm.validateSessionKey(key); err != nil {
			t.Errorf("validateSessionKey(%q) = %v, want nil", key, err)
		}
	}
	for _, key := range []string{"", "../etc/passwd", "a/b", `a\b`, "a\x00b", "./a"} {
		if err := sm.validateSessionKey(key); err == nil {
			t.Errorf("validateSessionKey(%q) = nil, want error", key)
		}
	}
}

func TestListSessions(t *testing.T) {
	sm := NewSessionManager(t.TempDir())
	sm.GetOrCreate("a")
	sm.GetOrCreate("b")

	keys := sm.ListSessions()
	if len(keys) != 2 {
		t.Errorf("keys = %v", keys)
	}
}
