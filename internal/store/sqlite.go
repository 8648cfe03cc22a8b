package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

// ErrNotFound is returned when a record does not exist or is not owned by
// the requesting user.
var ErrNotFound = errors.New("record not found")

// timestampLayout is fixed width with a constant UTC suffix, so stored text
// compares in time order. Variable-width fractions (RFC3339Nano trims
// trailing zeros) would break ORDER BY on the text column.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(dataSourceName string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        username TEXT UNIQUE NOT NULL,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        phone_number TEXT DEFAULT '',
        personality_profile TEXT DEFAULT '{}', -- JSON object of quiz answers
        preferences TEXT DEFAULT '{}',         -- JSON object
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS tasks (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        title TEXT NOT NULL,
        description TEXT DEFAULT '',
        due_date DATETIME,
        priority TEXT DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
        completed BOOLEAN DEFAULT FALSE,
        reminder_sent BOOLEAN DEFAULT FALSE,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS chat_messages (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        session_id TEXT NOT NULL,
        content TEXT NOT NULL,
        is_ai BOOLEAN DEFAULT FALSE,
        timestamp TEXT NOT NULL, -- fixed-width UTC string, text order == time order
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages (user_id, session_id, timestamp);

    CREATE TABLE IF NOT EXISTS welfare_settings (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        phone_number TEXT UNIQUE NOT NULL,
        enabled BOOLEAN DEFAULT TRUE,
        daily_morning_message BOOLEAN DEFAULT TRUE,
        morning_time TEXT DEFAULT '09:00',
        welfare_check_days INTEGER DEFAULT 3,
        custom_morning_message TEXT,
        last_activity DATETIME NOT NULL,
        last_welfare_check DATETIME,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) CreateUser(user *User) error {
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	if user.PersonalityProfile == nil {
		user.PersonalityProfile = map[string]string{}
	}
	if user.Preferences == nil {
		user.Preferences = map[string]string{}
	}

	profileJSON, err := json.Marshal(user.PersonalityProfile)
	if err != nil {
		return fmt.Errorf("failed to marshal personality profile: %w", err)
	}
	prefsJSON, err := json.Marshal(user.Preferences)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT INTO users (id, username, email, password_hash, phone_number, personality_profile, preferences, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		user.ID, user.Username, user.Email, user.PasswordHash, user.PhoneNumber, string(profileJSON), string(prefsJSON), formatTimestamp(user.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

const userColumns = "id, username, email, password_hash, phone_number, personality_profile, preferences, created_at"

// scanUser is the translation boundary between raw stored fields and the
// typed User record. Malformed JSON columns are logged and replaced with an
// empty mapping instead of failing the whole read.
func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var profileJSON, prefsJSON string
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.PhoneNumber, &profileJSON, &prefsJSON, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.PersonalityProfile = map[string]string{}
	if profileJSON != "" {
		if err := json.Unmarshal([]byte(profileJSON), &user.PersonalityProfile); err != nil {
			s.logger.Warn("Malformed personality profile, using empty profile",
				zap.String("user_id", user.ID), zap.Error(err))
			user.PersonalityProfile = map[string]string{}
		}
	}
	user.Preferences = map[string]string{}
	if prefsJSON != "" {
		if err := json.Unmarshal([]byte(prefsJSON), &user.Preferences); err != nil {
			s.logger.Warn("Malformed preferences, using empty preferences",
				zap.String("user_id", user.ID), zap.Error(err))
			user.Preferences = map[string]string{}
		}
	}
	return &user, nil
}

func (s *SQLiteStore) GetUserByID(id string) (*User, error) {
	return s.scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func (s *SQLiteStore) GetUserByUsername(username string) (*User, error) {
	return s.scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE username = ?", username))
}

func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	return s.scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE email = ?", email))
}

func (s *SQLiteStore) GetUserByPhoneNumber(phone string) (*User, error) {
	return s.scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE phone_number = ?", phone))
}

func (s *SQLiteStore) UpdatePersonalityProfile(userID string, profile map[string]string) error {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal personality profile: %w", err)
	}
	res, err := s.db.Exec("UPDATE users SET personality_profile = ? WHERE id = ?", string(profileJSON), userID)
	if err != nil {
		return fmt.Errorf("failed to update personality profile: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SetUserPhoneNumber(userID, phone string) error {
	res, err := s.db.Exec("UPDATE users SET phone_number = ? WHERE id = ?", phone, userID)
	if err != nil {
		return fmt.Errorf("failed to update phone number: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Task methods

func (s *SQLiteStore) CreateTask(task *Task) error {
	task.ID = uuid.NewString()
	task.CreatedAt = time.Now().UTC()
	if task.Priority == "" {
		task.Priority = "medium"
	}

	var dueDate any
	if task.DueDate != nil {
		dueDate = formatTimestamp(*task.DueDate)
	}

	_, err := s.db.Exec(
		"INSERT INTO tasks (id, user_id, title, description, due_date, priority, completed, reminder_sent, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		task.ID, task.UserID, task.Title, task.Description, dueDate, task.Priority, task.Completed, task.ReminderSent, formatTimestamp(task.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

const taskColumns = "id, user_id, title, description, due_date, priority, completed, reminder_sent, created_at"

func scanTask(scanner interface{ Scan(...any) error }) (*Task, error) {
	var task Task
	var dueDate sql.NullTime
	err := scanner.Scan(&task.ID, &task.UserID, &task.Title, &task.Description, &dueDate, &task.Priority, &task.Completed, &task.ReminderSent, &task.CreatedAt)
	if err != nil {
		return nil, err
	}
	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	return &task, nil
}

func (s *SQLiteStore) GetTasksByUserID(userID string, limit int) ([]Task, error) {
	rows, err := s.db.Query(
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = ? ORDER BY created_at DESC LIMIT ?",
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (s *SQLiteStore) GetTaskByID(taskID, userID string) (*Task, error) {
	task, err := scanTask(s.db.QueryRow(
		"SELECT "+taskColumns+" FROM tasks WHERE id = ? AND user_id = ?",
		taskID, userID,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// UpdateTask applies only the non-nil fields of upd to the task, scoped by
// owner. Returns the updated task, or ErrNotFound when the task does not
// exist or belongs to another user.
func (s *SQLiteStore) UpdateTask(taskID, userID string, upd TaskUpdate) (*Task, error) {
	var sets []string
	var args []any
	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, formatTimestamp(*upd.DueDate))
	}
	if upd.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *upd.Priority)
	}
	if upd.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *upd.Completed)
	}

	if len(sets) > 0 {
		args = append(args, taskID, userID)
		res, err := s.db.Exec(
			"UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ? AND user_id = ?",
			args...,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to execute task update: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return nil, ErrNotFound
		}
	}

	return s.GetTaskByID(taskID, userID)
}

func (s *SQLiteStore) DeleteTask(taskID, userID string) error {
	res, err := s.db.Exec("DELETE FROM tasks WHERE id = ? AND user_id = ?", taskID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Chat message methods

func (s *SQLiteStore) CreateMessage(msg *ChatMessage) error {
	msg.ID = uuid.NewString() // Ensure ID is set
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	_, err := s.db.Exec(
		"INSERT INTO chat_messages (id, user_id, session_id, content, is_ai, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		msg.ID, msg.UserID, msg.SessionID, msg.Content, msg.IsAI, formatTimestamp(msg.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	return nil
}

// scanMessages maps raw rows to ChatMessage records. A single malformed row
// (bad timestamp, scan failure) is logged and skipped so the rest of the
// conversation still loads.
func (s *SQLiteStore) scanMessages(rows *sql.Rows) ([]ChatMessage, error) {
	var messages []ChatMessage
	for rows.Next() {
		var msg ChatMessage
		var rawTimestamp string
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.SessionID, &msg.Content, &msg.IsAI, &rawTimestamp); err != nil {
			s.logger.Warn("Skipping unreadable chat message row", zap.Error(err))
			continue
		}
		ts, err := time.Parse(timestampLayout, rawTimestamp)
		if err != nil {
			s.logger.Warn("Skipping chat message with malformed timestamp",
				zap.String("message_id", msg.ID), zap.String("timestamp", rawTimestamp), zap.Error(err))
			continue
		}
		msg.Timestamp = ts
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetRecentSessionMessages returns up to n messages for (user, session),
// newest first.
func (s *SQLiteStore) GetRecentSessionMessages(userID, sessionID string, n int) ([]ChatMessage, error) {
	rows, err := s.db.Query(
		"SELECT id, user_id, session_id, content, is_ai, timestamp FROM chat_messages WHERE user_id = ? AND session_id = ? ORDER BY timestamp DESC LIMIT ?",
		userID, sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()
	return s.scanMessages(rows)
}

// GetSessionHistory returns up to limit messages for (user, session), oldest
// first.
func (s *SQLiteStore) GetSessionHistory(userID, sessionID string, limit int) ([]ChatMessage, error) {
	rows, err := s.db.Query(
		"SELECT id, user_id, session_id, content, is_ai, timestamp FROM chat_messages WHERE user_id = ? AND session_id = ? ORDER BY timestamp ASC LIMIT ?",
		userID, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query session history: %w", err)
	}
	defer rows.Close()
	return s.scanMessages(rows)
}

// Welfare settings methods

// UpsertWelfareSettings inserts or updates the settings row keyed by phone
// number. Last-writer-wins; there is no conflict detection.
func (s *SQLiteStore) UpsertWelfareSettings(ws *WelfareSettings) error {
	if ws.ID == "" {
		ws.ID = uuid.NewString()
	}
	if ws.LastActivity.IsZero() {
		ws.LastActivity = time.Now().UTC()
	}
	var lastCheck any
	if ws.LastWelfareCheck != nil {
		lastCheck = formatTimestamp(*ws.LastWelfareCheck)
	}

	_, err := s.db.Exec(`
        INSERT INTO welfare_settings (id, user_id, phone_number, enabled, daily_morning_message, morning_time, welfare_check_days, custom_morning_message, last_activity, last_welfare_check)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(phone_number) DO UPDATE SET
            user_id = excluded.user_id,
            enabled = excluded.enabled,
            daily_morning_message = excluded.daily_morning_message,
            morning_time = excluded.morning_time,
            welfare_check_days = excluded.welfare_check_days,
            custom_morning_message = excluded.custom_morning_message,
            last_activity = excluded.last_activity`,
		ws.ID, ws.UserID, ws.PhoneNumber, ws.Enabled, ws.DailyMorningMessage, ws.MorningTime, ws.WelfareCheckDays, ws.CustomMorningMessage, formatTimestamp(ws.LastActivity), lastCheck,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert welfare settings: %w", err)
	}
	return nil
}

const welfareColumns = "id, user_id, phone_number, enabled, daily_morning_message, morning_time, welfare_check_days, custom_morning_message, last_activity, last_welfare_check"

func scanWelfare(row *sql.Row) (*WelfareSettings, error) {
	var ws WelfareSettings
	var customMessage sql.NullString
	var lastCheck sql.NullTime
	err := row.Scan(&ws.ID, &ws.UserID, &ws.PhoneNumber, &ws.Enabled, &ws.DailyMorningMessage, &ws.MorningTime, &ws.WelfareCheckDays, &customMessage, &ws.LastActivity, &lastCheck)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to scan welfare settings: %w", err)
	}
	if customMessage.Valid {
		ws.CustomMorningMessage = &customMessage.String
	}
	if lastCheck.Valid {
		ws.LastWelfareCheck = &lastCheck.Time
	}
	return &ws, nil
}

func (s *SQLiteStore) GetWelfareSettingsByPhone(phone string) (*WelfareSettings, error) {
	return scanWelfare(s.db.QueryRow("SELECT "+welfareColumns+" FROM welfare_settings WHERE phone_number = ?", phone))
}

func (s *SQLiteStore) GetWelfareSettingsByUserID(userID string) (*WelfareSettings, error) {
	return scanWelfare(s.db.QueryRow("SELECT "+welfareColumns+" FROM welfare_settings WHERE user_id = ?", userID))
}

// TouchWelfareActivity refreshes last_activity for the settings row keyed by
// phone number. Called on every inbound WhatsApp message.
func (s *SQLiteStore) TouchWelfareActivity(phone string, at time.Time) error {
	_, err := s.db.Exec("UPDATE welfare_settings SET last_activity = ? WHERE phone_number = ?", formatTimestamp(at), phone)
	if err != nil {
		return fmt.Errorf("failed to touch welfare activity: %w", err)
	}
	return nil
}

// RecordWelfareCheck stamps last_welfare_check. Only called after the
// gateway reports a successful delivery.
func (s *SQLiteStore) RecordWelfareCheck(userID string, at time.Time) error {
	_, err := s.db.Exec("UPDATE welfare_settings SET last_welfare_check = ? WHERE user_id = ?", formatTimestamp(at), userID)
	if err != nil {
		return fmt.Errorf("failed to record welfare check: %w", err)
	}
	return nil
}
