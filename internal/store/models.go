package store

import "time"

type User struct {
	ID                 string            `json:"id"` // UUID
	Username           string            `json:"username"`
	Email              string            `json:"email"`
	PasswordHash       string            `json:"-"` // Do not expose this in JSON responses
	PhoneNumber        string            `json:"phone_number,omitempty"`
	PersonalityProfile map[string]string `json:"personality_profile"`
	Preferences        map[string]string `json:"preferences"`
	CreatedAt          time.Time         `json:"created_at"`
}

type Task struct {
	ID           string     `json:"id"` // UUID
	UserID       string     `json:"user_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	DueDate      *time.Time `json:"due_date"` // Nullable
	Priority     string     `json:"priority"` // "low", "medium" or "high"
	Completed    bool       `json:"completed"`
	ReminderSent bool       `json:"reminder_sent"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TaskUpdate carries a partial update; nil fields are left untouched.
type TaskUpdate struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Priority    *string    `json:"priority"`
	Completed   *bool      `json:"completed"`
}

type ChatMessage struct {
	ID        string    `json:"id"` // UUID
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Content   string    `json:"content"`
	IsAI      bool      `json:"is_ai"`
	Timestamp time.Time `json:"timestamp"`
}

type WelfareSettings struct {
	ID                   string     `json:"id"` // UUID
	UserID               string     `json:"user_id"`
	PhoneNumber          string     `json:"phone_number"`
	Enabled              bool       `json:"enabled"`
	DailyMorningMessage  bool       `json:"daily_morning_message"`
	MorningTime          string     `json:"morning_time"` // "HH:MM"
	WelfareCheckDays     int        `json:"welfare_check_days"`
	CustomMorningMessage *string    `json:"custom_morning_message"`
	LastActivity         time.Time  `json:"last_activity"`
	LastWelfareCheck     *time.Time `json:"last_welfare_check"`
}
