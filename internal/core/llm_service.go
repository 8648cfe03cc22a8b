package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const defaultChatModelName = "gemini-1.5-flash-latest"

// Completer is the text-completion collaborator. The provider keeps its own
// per-session continuity state keyed by session id; callers do not resend
// the transcript as structured turns.
type Completer interface {
	Complete(ctx context.Context, sessionID, systemPrompt, message string) (string, error)
}

type LLMService struct {
	client *genai.Client
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string][]*genai.Content // per-session provider-side history
}

func NewLLMService(ctx context.Context, apiKey string, logger *zap.Logger) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &LLMService{
		client:   client,
		logger:   logger,
		sessions: make(map[string][]*genai.Content),
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("Error closing GenAI client", zap.Error(err))
		}
	}
}

// Complete sends one message scoped to a session. Prior turns of the session
// are replayed as provider history so continuity survives across calls; the
// system prompt is applied fresh every turn.
func (s *LLMService) Complete(ctx context.Context, sessionID, systemPrompt, message string) (string, error) {
	model := s.client.GenerativeModel(defaultChatModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	chatSession := model.StartChat()
	s.mu.Lock()
	chatSession.History = s.sessions[sessionID]
	s.mu.Unlock()

	resp, err := chatSession.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		s.logger.Warn("Gemini response was empty or had no valid candidates", zap.String("session_id", sessionID))
		return "I'm sorry, I couldn't generate a response at this time. Please try again.", nil
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			s.logger.Warn("Gemini response part was not text", zap.String("session_id", sessionID))
		}
	}

	if responseText.Len() == 0 {
		return "I received an empty or non-text response, please try rephrasing your question.", nil
	}

	s.mu.Lock()
	s.sessions[sessionID] = chatSession.History
	s.mu.Unlock()

	return responseText.String(), nil
}
