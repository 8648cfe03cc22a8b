package core

import (
	"strings"
	"testing"
	"time"

	"solace.app/companion/internal/store"
)

func TestBuildPersonalityPromptWithProfile(t *testing.T) {
	profile := map[string]string{
		"communication": "Direct and concise",
		"motivation":    "Learning and growth",
	}

	prompt := BuildPersonalityPrompt(profile, "")

	if !strings.Contains(prompt, "User's Personality Profile:") {
		t.Error("prompt missing profile section")
	}
	if !strings.Contains(prompt, "- communication: Direct and concise") {
		t.Error("prompt missing communication bullet")
	}
	if !strings.Contains(prompt, "- motivation: Learning and growth") {
		t.Error("prompt missing motivation bullet")
	}
	if !strings.Contains(prompt, "End your responses with encouragement") {
		t.Error("prompt missing closing instruction")
	}
}

func TestBuildPersonalityPromptEmptyProfile(t *testing.T) {
	prompt := BuildPersonalityPrompt(nil, "")
	if strings.Contains(prompt, "User's Personality Profile:") {
		t.Error("profile section should be omitted when profile is empty")
	}
	if strings.Contains(prompt, "Context:") {
		t.Error("context section should be omitted when context is empty")
	}
}

func TestBuildPersonalityPromptWithContext(t *testing.T) {
	prompt := BuildPersonalityPrompt(nil, "Recent conversation:\nUser: hi\n")
	if !strings.Contains(prompt, "Context: Recent conversation:\nUser: hi") {
		t.Error("prompt missing context section")
	}
}

func TestBuildWhatsAppPromptIsShorter(t *testing.T) {
	profile := map[string]string{"communication": "Casual and fun"}

	long := BuildPersonalityPrompt(profile, "")
	short := BuildWhatsAppPrompt(profile)

	if len(short) >= len(long) {
		t.Error("whatsapp prompt should be shorter than the web prompt")
	}
	if !strings.Contains(short, "- communication: Casual and fun") {
		t.Error("whatsapp prompt missing personality bullet")
	}
	if !strings.Contains(short, "mobile friendly") {
		t.Error("whatsapp prompt missing brevity instruction")
	}
}

func TestRenderTranscript(t *testing.T) {
	now := time.Now()
	// Newest first, as returned by the store.
	recent := []store.ChatMessage{
		{Content: "Doing well!", IsAI: true, Timestamp: now},
		{Content: "How are you?", IsAI: false, Timestamp: now.Add(-time.Minute)},
	}

	got := RenderTranscript(recent)
	want := "Recent conversation:\nUser: How are you?\nAssistant: Doing well!\n"
	if got != want {
		t.Errorf("transcript mismatch:\ngot:  %q\nwant: %q", got, want)
	}

	if RenderTranscript(nil) != "" {
		t.Error("empty history should render an empty transcript")
	}
}

func TestContainsTaskKeyword(t *testing.T) {
	cases := []struct {
		message string
		want    bool
	}{
		{"I need to call the dentist tomorrow", true},
		{"What's the weather like?", false},
		{"Don't Forget the milk", true},
		{"I MUST finish this tonight", true},
		{"remind me about the meeting", true},
		{"just saying hello", false},
	}
	for _, tc := range cases {
		if got := ContainsTaskKeyword(tc.message); got != tc.want {
			t.Errorf("ContainsTaskKeyword(%q) = %v, want %v", tc.message, got, tc.want)
		}
	}
}
