package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes live under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", apiHandler.RegisterHandler)
		r.Post("/auth/login", apiHandler.LoginHandler)
		r.Get("/personality/quiz", apiHandler.QuizHandler)
		r.Get("/health", apiHandler.HealthHandler)

		// Service-to-service routes used by the WhatsApp bridge
		r.Post("/whatsapp/process", apiHandler.WhatsAppProcessHandler)
		r.Get("/whatsapp/status", apiHandler.WhatsAppStatusHandler)
		r.Get("/whatsapp/qr", apiHandler.WhatsAppQRHandler)

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.AuthMiddleware)

			r.Post("/personality/update", apiHandler.PersonalityUpdateHandler)

			r.Post("/chat", apiHandler.ChatHandler)
			r.Get("/chat/history/{sessionID}", apiHandler.ChatHistoryHandler)

			r.Get("/tasks", apiHandler.ListTasksHandler)
			r.Post("/tasks", apiHandler.CreateTaskHandler)
			r.Put("/tasks/{taskID}", apiHandler.UpdateTaskHandler)
			r.Delete("/tasks/{taskID}", apiHandler.DeleteTaskHandler)

			r.Get("/profile", apiHandler.ProfileHandler)

			r.Post("/whatsapp/setup", apiHandler.WhatsAppSetupHandler)
			r.Post("/whatsapp/send-welfare-check", apiHandler.SendWelfareCheckHandler)
		})
	})

	return r
}
