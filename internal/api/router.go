package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/reminder-be/internal/api/handlers"
	"github.com/isdelr/reminder-be/internal/auth"
	"github.com/isdelr/reminder-be/internal/services"
	"github.com/isdelr/reminder-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// Deps is everything the router wires into handlers.
type Deps struct {
	Users          services.UserServiceProvider
	Reminders      services.ReminderServiceProvider
	Events         services.EventServiceProvider
	Tokens         *auth.TokenIssuer
	Mailer         handlers.Mailer
	Hub            *websocket.Hub
	DB             handlers.Pinger
	Ticks          handlers.TickReporter
	Channel        string
	EmailEnabled   bool
	AllowedOrigins []string
	SecureCookies  bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(d.Users, d.Tokens, d.Mailer, d.SecureCookies)
	reminderHandler := handlers.NewReminderHandler(d.Reminders)
	eventHandler := handlers.NewEventHandler(d.Events)
	notificationHandler := handlers.NewNotificationHandler(d.Users, d.Mailer)
	healthHandler := handlers.NewHealthHandler(d.DB, d.Ticks, d.Channel, d.EmailEnabled)
	wsHandler := handlers.NewWebSocketHandler(d.Hub, d.AllowedOrigins)

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Get)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", userHandler.Signup)
			r.Post("/login", userHandler.Login)
			r.Post("/logout", userHandler.Logout)
			r.With(d.Tokens.Middleware()).Get("/me", userHandler.GetMe)
		})

		// Everything below acts on behalf of the authenticated user.
		r.Group(func(r chi.Router) {
			r.Use(d.Tokens.Middleware())

			r.Get("/ws", wsHandler.Serve)

			r.Route("/reminders", func(r chi.Router) {
				r.Get("/", reminderHandler.GetAll)
				r.Post("/", reminderHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", reminderHandler.Get)
					r.Put("/", reminderHandler.Update)
					r.Patch("/complete", reminderHandler.Complete)
					r.Delete("/", reminderHandler.Delete)
				})
			})

			r.Get("/events", eventHandler.GetRecent)
			r.Post("/notifications/test", notificationHandler.SendTest)
		})
	})

	return r
}

// requestLogger logs each request through zerolog once it has been served.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("HTTP request")
		}()
		next.ServeHTTP(ww, r)
	})
}
