package routes

import (
	"net/http"

	"github.com/BradenHooton/keypass/internal/handlers"
	"github.com/BradenHooton/keypass/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Guard authenticates the bearer token and stores the user in the request context
type Guard interface {
	Middleware(next http.Handler) http.Handler
}

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth     *handlers.AuthHandler
	Records  *handlers.RecordHandler
	Users    *handlers.UserHandler
	Feedback *handlers.FeedbackHandler
	Health   http.HandlerFunc
}

// Limits sets the per-minute request budgets
type Limits struct {
	PerIP   middleware.RateLimitConfig
	PerUser middleware.RateLimitConfig
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, guard Guard, limits Limits) {
	router.Get("/health", h.Health)

	// Public routes - no authentication required
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(limits.PerIP))

		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
		r.Post("/verify-email", h.Auth.VerifyEmail)
		r.Post("/send-email-code", h.Auth.SendEmailCode)
		r.Post("/reset-pin", h.Auth.ResetPin)
	})

	// Protected routes - a live session token is required
	router.Group(func(r chi.Router) {
		r.Use(guard.Middleware)
		r.Use(middleware.RateLimitByUser(limits.PerUser))

		r.Post("/verify-pin", h.Auth.VerifyPin)
		r.Post("/verify-phrase", h.Auth.VerifyPhrase)
		r.Post("/verify-answer", h.Auth.VerifyAnswer)
		r.Get("/authenticate-user", h.Auth.AuthenticateUser)

		r.Post("/data/create", h.Records.Create)
		r.Get("/datas/user", h.Records.List)
		r.Post("/data/edit", h.Records.Edit)
		r.Post("/data/change-status", h.Records.ChangeStatus)
		r.Post("/data/change-multiple-status", h.Records.ChangeMultipleStatus)
		r.Post("/data/delete", h.Records.Delete)
		r.Post("/data/delete-multiple", h.Records.DeleteMultiple)

		r.Post("/user/subscribe", h.Users.Subscribe)
		r.Post("/user/delete", h.Users.DeleteAccount)
		r.Post("/phrase-set", h.Users.SetPhrase)
		r.Post("/change-detail", h.Users.ChangeDetail)

		r.Post("/send-feedback", h.Feedback.Send)
		r.Post("/generate-password", handlers.GeneratePassword)
	})
}
