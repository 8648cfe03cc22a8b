package core

import (
	"sort"
	"strings"

	"solace.app/companion/internal/store"
)

const chatSystemPreamble = `You are an AI companion and life assistant. You adapt your personality and communication style based on the user's profile.
You help with:
- Friendly conversations and emotional support
- Task management and reminders
- Life advice and guidance
- Problem-solving and decision making

Always be:
- Supportive and empathetic
- Helpful but not pushy
- Genuine and warm in your responses
- Proactive in suggesting tasks when relevant`

const chatSystemClosing = `Important: If you notice the user mentioning tasks they need to do, or if they seem overwhelmed,
subtly suggest they add these as tasks to their to-do list. Be natural about it - don't force it.

End your responses with encouragement when appropriate.`

const whatsAppSystemPreamble = `You are an AI companion chatting with your user over WhatsApp. Keep your replies short and mobile friendly, use emoji sparingly, and stay warm, genuine and supportive. Gently encourage the user when it feels natural.`

// taskKeywords drives the suggested-task heuristic. It is a deliberate
// placeholder, not NLP: any hit attaches the same fixed suggestion pair.
var taskKeywords = []string{"need to", "have to", "should", "must", "remind me", "don't forget"}

var suggestedTaskPlaceholders = []string{"Follow up on this conversation", "Review mentioned items"}

// renderProfile renders every personality answer as a bullet line, sorted by
// question id for stable output.
func renderProfile(profile map[string]string) string {
	if len(profile) == 0 {
		return ""
	}
	keys := make([]string, 0, len(profile))
	for k := range profile {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("\n\nUser's Personality Profile:\n")
	for _, k := range keys {
		b.WriteString("- ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(profile[k])
		b.WriteString("\n")
	}
	return b.String()
}

// BuildPersonalityPrompt assembles the system prompt for a web chat turn:
// fixed persona preamble, personality bullets (omitted when the profile is
// empty), recent-conversation context, and the closing instruction.
func BuildPersonalityPrompt(profile map[string]string, context string) string {
	var b strings.Builder
	b.WriteString(chatSystemPreamble)
	b.WriteString(renderProfile(profile))
	if context != "" {
		b.WriteString("\n\nContext: ")
		b.WriteString(context)
	}
	b.WriteString("\n\n")
	b.WriteString(chatSystemClosing)
	return b.String()
}

// BuildWhatsAppPrompt assembles the shorter, mobile-appropriate system
// prompt used on the messaging channel. Same personality substitution, no
// transcript section.
func BuildWhatsAppPrompt(profile map[string]string) string {
	var b strings.Builder
	b.WriteString(whatsAppSystemPreamble)
	b.WriteString(renderProfile(profile))
	return b.String()
}

// RenderTranscript turns the newest-first recent messages into a
// chronological transcript fragment labeled by turn. Returns "" when there
// is no history.
func RenderTranscript(recent []store.ChatMessage) string {
	if len(recent) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for i := len(recent) - 1; i >= 0; i-- { // reverse to chronological order
		if recent[i].IsAI {
			b.WriteString("Assistant: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(recent[i].Content)
		b.WriteString("\n")
	}
	return b.String()
}

// ContainsTaskKeyword reports whether the inbound message trips the
// suggested-task heuristic. Matching is case-insensitive.
func ContainsTaskKeyword(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range taskKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
