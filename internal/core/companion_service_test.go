package core

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"solace.app/companion/internal/store"
)

type fakeCompleter struct {
	reply      string
	err        error
	lastPrompt string
	calls      int
}

func (f *fakeCompleter) Complete(_ context.Context, _, systemPrompt, _ string) (string, error) {
	f.calls++
	f.lastPrompt = systemPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestUser(t *testing.T, s *store.SQLiteStore) *store.User {
	t.Helper()
	user := &store.User{
		Username:     "ada",
		Email:        "ada@example.com",
		PasswordHash: "irrelevant",
		PersonalityProfile: map[string]string{
			"communication": "Direct and concise",
		},
	}
	if err := s.CreateUser(user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func TestChatMintsSessionAndPersistsBothTurns(t *testing.T) {
	dbStore := newTestStore(t)
	user := newTestUser(t, dbStore)
	completer := &fakeCompleter{reply: "Hello Ada!"}
	svc := NewCompanionService(dbStore, completer, zap.NewNop())

	result, err := svc.Chat(context.Background(), user, "Hi there", "")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result.SessionID == "" {
		t.Error("expected a freshly minted session id")
	}
	if result.Message != "Hello Ada!" {
		t.Errorf("got reply %q", result.Message)
	}

	history, err := svc.History(user, result.SessionID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d messages, want 2", len(history))
	}
	if history[0].IsAI || history[0].Content != "Hi there" {
		t.Errorf("first record should be the user turn, got %+v", history[0])
	}
	if !history[1].IsAI || history[1].Content != "Hello Ada!" {
		t.Errorf("second record should be the AI turn, got %+v", history[1])
	}
}

func TestChatReusesCallerSessionID(t *testing.T) {
	dbStore := newTestStore(t)
	user := newTestUser(t, dbStore)
	svc := NewCompanionService(dbStore, &fakeCompleter{reply: "ok"}, zap.NewNop())

	result, err := svc.Chat(context.Background(), user, "hello", "session-abc")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result.SessionID != "session-abc" {
		t.Errorf("got session %q, want caller-supplied value verbatim", result.SessionID)
	}
}

func TestChatSystemPromptCarriesProfileAndContext(t *testing.T) {
	dbStore := newTestStore(t)
	user := newTestUser(t, dbStore)
	completer := &fakeCompleter{reply: "ok"}
	svc := NewCompanionService(dbStore, completer, zap.NewNop())

	if _, err := svc.Chat(context.Background(), user, "first message", "s1"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !strings.Contains(completer.lastPrompt, "- communication: Direct and concise") {
		t.Error("system prompt missing personality bullet")
	}

	// Second turn should carry the first exchange as context.
	if _, err := svc.Chat(context.Background(), user, "second message", "s1"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !strings.Contains(completer.lastPrompt, "User: first message") {
		t.Error("system prompt missing transcript of prior user turn")
	}
	if !strings.Contains(completer.lastPrompt, "Assistant: ok") {
		t.Error("system prompt missing transcript of prior AI turn")
	}
}

func TestChatSuggestedTasksHeuristic(t *testing.T) {
	dbStore := newTestStore(t)
	user := newTestUser(t, dbStore)
	svc := NewCompanionService(dbStore, &fakeCompleter{reply: "ok"}, zap.NewNop())

	result, err := svc.Chat(context.Background(), user, "I need to call the dentist tomorrow", "")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(result.SuggestedTasks) == 0 {
		t.Error("expected suggested tasks for a keyword-bearing message")
	}

	result, err = svc.Chat(context.Background(), user, "What's the weather like?", "")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(result.SuggestedTasks) != 0 {
		t.Errorf("expected no suggested tasks, got %v", result.SuggestedTasks)
	}
}

func TestChatFallbackOnCompletionFailure(t *testing.T) {
	dbStore := newTestStore(t)
	user := newTestUser(t, dbStore)
	svc := NewCompanionService(dbStore, &fakeCompleter{err: errors.New("upstream down")}, zap.NewNop())

	result, err := svc.Chat(context.Background(), user, "I need to do something", "s1")
	if err != nil {
		t.Fatalf("Chat should degrade, not fail: %v", err)
	}
	if result.Message != fallbackReply {
		t.Errorf("got %q, want the fixed fallback reply", result.Message)
	}
	if len(result.SuggestedTasks) != 0 {
		t.Error("fallback responses must not carry suggested tasks")
	}

	// The user turn and the fallback AI turn are both persisted.
	history, err := svc.History(user, "s1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d messages, want 2", len(history))
	}
	if !history[1].IsAI || history[1].Content != fallbackReply {
		t.Errorf("fallback reply should be persisted as the AI turn, got %+v", history[1])
	}
}

func TestTwoTurnsYieldFourHistoryRecords(t *testing.T) {
	dbStore := newTestStore(t)
	user := newTestUser(t, dbStore)
	svc := NewCompanionService(dbStore, &fakeCompleter{reply: "reply"}, zap.NewNop())

	for _, msg := range []string{"turn one", "turn two"} {
		if _, err := svc.Chat(context.Background(), user, msg, "shared"); err != nil {
			t.Fatalf("Chat(%q): %v", msg, err)
		}
	}

	history, err := svc.History(user, "shared")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("got %d messages, want 4", len(history))
	}
	for i, wantAI := range []bool{false, true, false, true} {
		if history[i].IsAI != wantAI {
			t.Errorf("record %d: is_ai = %v, want %v", i, history[i].IsAI, wantAI)
		}
	}
	for i := 1; i < len(history); i++ {
		if history[i].Timestamp.Before(history[i-1].Timestamp) {
			t.Errorf("history not in chronological order at record %d", i)
		}
	}
}
