package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"solace.app/companion/internal/auth"
	"solace.app/companion/internal/core"
	"solace.app/companion/internal/gateway"
	"solace.app/companion/internal/store"
)

type APIHandler struct {
	dbStore     *store.SQLiteStore
	authManager *auth.Manager
	companion   *core.CompanionService
	welfare     *core.WelfareService
	bridge      *gateway.Client
	logger      *zap.Logger
}

func NewAPIHandler(db *store.SQLiteStore, am *auth.Manager, companion *core.CompanionService, welfare *core.WelfareService, bridge *gateway.Client, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		dbStore:     db,
		authManager: am,
		companion:   companion,
		welfare:     welfare,
		bridge:      bridge,
		logger:      logger,
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// AuthMiddleware verifies the bearer token and resolves the user once per
// request. The owner identity used by every downstream operation comes from
// here, never from the request payload.
func (h *APIHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		userID, err := h.authManager.VerifyToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.dbStore.GetUserByID(userID)
		if err != nil {
			h.logger.Error("Failed to resolve user identity", zap.String("user_id", userID), zap.Error(err))
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}
		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "user", user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestUser(r *http.Request) *store.User {
	return r.Context().Value("user").(*store.User)
}

// Authentication

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        *store.User `json:"user"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		http.Error(w, "Username, email and password are required", http.StatusBadRequest)
		return
	}

	existing, err := h.dbStore.GetUserByUsername(req.Username)
	if err != nil {
		h.logger.Error("Failed to check username", zap.Error(err))
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "Username already exists", http.StatusBadRequest)
		return
	}

	existing, err = h.dbStore.GetUserByEmail(req.Email)
	if err != nil {
		h.logger.Error("Failed to check email", zap.Error(err))
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "Email already exists", http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("Failed to hash password", zap.Error(err))
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user := &store.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashedPassword,
	}
	if err := h.dbStore.CreateUser(user); err != nil {
		h.logger.Error("Failed to create user", zap.String("username", req.Username), zap.Error(err))
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	token, err := h.authManager.GenerateToken(user.ID)
	if err != nil {
		h.logger.Error("Failed to generate token", zap.String("user_id", user.ID), zap.Error(err))
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer", User: user})
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.dbStore.GetUserByUsername(req.Username)
	if err != nil {
		h.logger.Error("Failed to look up user", zap.String("username", req.Username), zap.Error(err))
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.authManager.GenerateToken(user.ID)
	if err != nil {
		h.logger.Error("Failed to generate token", zap.String("user_id", user.ID), zap.Error(err))
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer", User: user})
}

// Personality

type QuizAnswer struct {
	QuestionID string  `json:"question_id"`
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Weight     float64 `json:"weight"`
}

type PersonalityUpdateRequest struct {
	Answers []QuizAnswer `json:"answers"`
}

func (h *APIHandler) QuizHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"questions": core.PersonalityQuiz()})
}

func (h *APIHandler) PersonalityUpdateHandler(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	var req PersonalityUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	profile := make(map[string]string, len(req.Answers))
	for _, answer := range req.Answers {
		profile[answer.QuestionID] = answer.Answer
	}

	if err := h.dbStore.UpdatePersonalityProfile(user.ID, profile); err != nil {
		h.logger.Error("Failed to update personality profile", zap.String("user_id", user.ID), zap.Error(err))
		http.Error(w, "Failed to update personality profile", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Personality profile updated successfully"})
}

// Chat

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type ChatResponse struct {
	Message        string   `json:"message"`
	SessionID      string   `json:"session_id"`
	SuggestedTasks []string `json:"suggested_tasks"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "Message cannot be empty", http.StatusBadRequest)
		return
	}

	result, err := h.companion.Chat(r.Context(), user, req.Message, req.SessionID)
	if err != nil {
		h.logger.Error("Chat turn failed", zap.String("user_id", user.ID), zap.Error(err))
		http.Error(w, "Failed to process chat message", http.StatusInternalServerError)
		return
	}

	suggested := result.SuggestedTasks
	if suggested == nil {
		suggested = []string{}
	}
	respondJSON(w, http.StatusOK, ChatResponse{
		Message:        result.Message,
		SessionID:      result.SessionID,
		SuggestedTasks: suggested,
	})
}

func (h *APIHandler) ChatHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.companion.History(user, sessionID)
	if err != nil {
		h.logger.Error("Failed to fetch chat history", zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "Failed to fetch chat history", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []store.ChatMessage{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// Tasks

type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Priority    string     `json:"priority"`
}

// validPriority accepts the three priority levels the store allows. Empty is
// fine on create, where the store defaults it to "medium".
func validPriority(p string) bool {
	return p == "" || p == "low" || p == "medium" || p == "high"
}

func (h *APIHandler) ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	tasks, err := h.dbStore.GetTasksByUserID(user.ID, 100)
	if err != nil {
		h.logger.Error("Failed to list tasks", zap.String("user_id", user.ID), zap.Error(err))
		http.Error(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []store.Task{}
	}
	respondJSON(w, http.StatusOK, tasks)
}

func (h *APIHandler) CreateTaskHandler(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}
	if !validPriority(req.Priority) {
		http.Error(w, "Priority must be low, medium or high", http.StatusBadRequest)
		return
	}

	task := &store.Task{
		UserID:      user.ID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
	}
	if err := h.dbStore.CreateTask(task); err != nil {
		h.logger.Error("Failed to create task", zap.String("user_id", user.ID), zap.Error(err))
		http.Error(w, "Failed to create task", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (h *APIHandler) UpdateTaskHandler(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	taskID := chi.URLParam(r, "taskID")

	var upd store.TaskUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if upd.Priority != nil && (*upd.Priority == "" || !validPriority(*upd.Priority)) {
		http.Error(w, "Priority must be low, medium or high", http.StatusBadRequest)
		return
	}

	task, err := h.dbStore.UpdateTask(taskID, user.ID, upd)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Task not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to update task", zap.String("task_id", taskID), zap.Error(err))
		http.Error(w, "Failed to update task", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (h *APIHandler) DeleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	taskID := chi.URLParam(r, "taskID")

	if err := h.dbStore.DeleteTask(taskID, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Task not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to delete task", zap.String("task_id", taskID), zap.Error(err))
		http.Error(w, "Failed to delete task", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}

// Profile

func (h *APIHandler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, requestUser(r))
}

// WhatsApp channel

type WhatsAppProcessRequest struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
	MessageID   string `json:"message_id"`
	Timestamp   int64  `json:"timestamp"`
}

type WhatsAppProcessResponse struct {
	Reply   string `json:"reply,omitempty"`
	Success bool   `json:"success"`
}

// WhatsAppProcessHandler receives inbound messages from the bridge. This is
// a service-to-service endpoint; a failure is reported as success=false,
// never a 5xx back to the bridge.
func (h *APIHandler) WhatsAppProcessHandler(w http.ResponseWriter, r *http.Request) {
	var req WhatsAppProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusOK, WhatsAppProcessResponse{Success: false})
		return
	}

	reply, err := h.welfare.ProcessIncoming(r.Context(), req.PhoneNumber, req.Message)
	if err != nil {
		h.logger.Error("Failed to process WhatsApp message",
			zap.String("message_id", req.MessageID), zap.Error(err))
		respondJSON(w, http.StatusOK, WhatsAppProcessResponse{Success: false})
		return
	}
	respondJSON(w, http.StatusOK, WhatsAppProcessResponse{Reply: reply, Success: true})
}

type WhatsAppSetupRequest struct {
	PhoneNumber          string  `json:"phone_number"`
	DailyMorningMessage  bool    `json:"daily_morning_message"`
	MorningTime          string  `json:"morning_time"`
	WelfareCheckDays     int     `json:"welfare_check_days"`
	CustomMorningMessage *string `json:"custom_morning_message"`
}

func (h *APIHandler) WhatsAppSetupHandler(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	// Defaults mirror the settings record; absent fields keep them.
	req := WhatsAppSetupRequest{
		DailyMorningMessage: true,
		MorningTime:         "09:00",
		WelfareCheckDays:    3,
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.PhoneNumber == "" {
		http.Error(w, "Phone number is required", http.StatusBadRequest)
		return
	}

	settings, err := h.welfare.Setup(user, core.WelfareSetup{
		PhoneNumber:          req.PhoneNumber,
		DailyMorningMessage:  req.DailyMorningMessage,
		MorningTime:          req.MorningTime,
		WelfareCheckDays:     req.WelfareCheckDays,
		CustomMorningMessage: req.CustomMorningMessage,
	})
	if err != nil {
		h.logger.Error("Failed to set up welfare settings", zap.String("user_id", user.ID), zap.Error(err))
		http.Error(w, "Failed to set up WhatsApp integration", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

func (h *APIHandler) WhatsAppStatusHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.bridge.Status(r.Context()))
}

func (h *APIHandler) WhatsAppQRHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.bridge.QR(r.Context()))
}

func (h *APIHandler) SendWelfareCheckHandler(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	delivered, err := h.welfare.SendWelfareCheck(r.Context(), user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Welfare settings not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to send welfare check", zap.String("user_id", user.ID), zap.Error(err))
		http.Error(w, "Failed to send welfare check", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": delivered})
}

// Health

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
