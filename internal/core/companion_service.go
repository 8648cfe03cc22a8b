package core

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"solace.app/companion/internal/store"
)

const (
	// recentContextDepth bounds the transcript fragment woven into the
	// system prompt.
	recentContextDepth = 10
	// historyCap bounds a single history fetch.
	historyCap = 100

	// fallbackReply is persisted as the AI turn whenever the completion
	// service fails. Chat callers never see a raw upstream failure.
	fallbackReply = "I'm having trouble connecting right now, but I'm here to help! Could you please try again in a moment?"
)

// ChatResult is the outcome of one conversation turn.
type ChatResult struct {
	Message        string
	SessionID      string
	SuggestedTasks []string
}

// CompanionService runs the conversational pipeline: prompt assembly,
// completion call, persistence of both turns, and the suggested-task
// heuristic.
type CompanionService struct {
	dbStore   *store.SQLiteStore
	completer Completer
	logger    *zap.Logger
}

func NewCompanionService(db *store.SQLiteStore, completer Completer, logger *zap.Logger) *CompanionService {
	return &CompanionService{
		dbStore:   db,
		completer: completer,
		logger:    logger,
	}
}

// Chat runs one web-channel turn for the user. An empty sessionID mints a
// fresh session.
func (s *CompanionService) Chat(ctx context.Context, user *store.User, message, sessionID string) (*ChatResult, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	recent, err := s.dbStore.GetRecentSessionMessages(user.ID, sessionID, recentContextDepth)
	if err != nil {
		s.logger.Warn("Failed to load recent messages, proceeding without context",
			zap.String("session_id", sessionID), zap.Error(err))
		recent = nil
	}

	systemPrompt := BuildPersonalityPrompt(user.PersonalityProfile, RenderTranscript(recent))

	reply, ok, err := s.turn(ctx, user, message, sessionID, systemPrompt)
	if err != nil {
		return nil, err
	}

	var suggested []string
	if ok && ContainsTaskKeyword(message) {
		suggested = suggestedTaskPlaceholders
	}

	return &ChatResult{
		Message:        reply,
		SessionID:      sessionID,
		SuggestedTasks: suggested,
	}, nil
}

// turn persists the inbound user message, invokes the completion service and
// persists the reply. The user turn is stored before the completion call so
// a downstream failure does not lose it. ok reports whether the reply came
// from the completion service rather than the scripted fallback.
func (s *CompanionService) turn(ctx context.Context, user *store.User, message, sessionID, systemPrompt string) (reply string, ok bool, err error) {
	userMsg := store.ChatMessage{
		UserID:    user.ID,
		SessionID: sessionID,
		Content:   message,
		IsAI:      false,
	}
	if err := s.dbStore.CreateMessage(&userMsg); err != nil {
		return "", false, err
	}

	ok = true
	reply, completeErr := s.completer.Complete(ctx, sessionID, systemPrompt, message)
	if completeErr != nil {
		s.logger.Error("Completion service failed, using fallback reply",
			zap.String("session_id", sessionID), zap.Error(completeErr))
		reply, ok = fallbackReply, false
	}

	aiMsg := store.ChatMessage{
		UserID:    user.ID,
		SessionID: sessionID,
		Content:   reply,
		IsAI:      true,
	}
	if err := s.dbStore.CreateMessage(&aiMsg); err != nil {
		// The reply was already generated; losing the record is better
		// than losing the turn.
		s.logger.Error("Failed to store AI message", zap.String("session_id", sessionID), zap.Error(err))
	}

	return reply, ok, nil
}

// History returns the transcript for (user, session), oldest first, capped
// at 100 records. Individual malformed records are skipped by the store.
func (s *CompanionService) History(user *store.User, sessionID string) ([]store.ChatMessage, error) {
	return s.dbStore.GetSessionHistory(user.ID, sessionID, historyCap)
}
