package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/academy-platform/dashboard-messaging/internal/middleware"
	natsclient "github.com/academy-platform/dashboard-messaging/internal/nats"
	"github.com/academy-platform/dashboard-messaging/internal/service"
	"github.com/academy-platform/dashboard-messaging/pkg/logger"
)

// RouterConfig holds the settings the router needs.
type RouterConfig struct {
	JWTSecret         string
	TokenTTL          time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	AllowedOrigins    []string
	DevTokens         bool
}

// Deps are the services the handlers serve.
type Deps struct {
	Messages   *service.MessageService
	Directory  *service.Directory
	Hub        *service.Hub
	NATSClient *natsclient.Client
	Logger     *logger.Logger
}

// NewRouter builds the messaging API router.
func NewRouter(cfg RouterConfig, deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = logger.Global()
	}
	hub := deps.Hub
	if hub == nil {
		hub = service.NewHub()
	}

	healthHandler := NewHealthHandler(deps.NATSClient)
	messageHandler := NewMessageHandler(deps.Messages, deps.Directory, log)
	conversationHandler := NewConversationHandler(deps.Messages, deps.Directory, log)
	notificationHandler := NewNotificationHandler(deps.Messages, deps.Directory, log)
	directoryHandler := NewDirectoryHandler(deps.Directory, log)
	streamHandler := NewStreamHandler(deps.Messages, deps.Directory, hub, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Handle("/metrics", promhttp.Handler())

	if cfg.DevTokens {
		devHandler := NewDevHandler(deps.Directory, cfg.JWTSecret, cfg.TokenTTL, log)
		r.Get("/dev/tokens", devHandler.Tokens)
	}

	r.Route("/api/messages", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Post("/send", messageHandler.Send)
		r.Get("/conversations", conversationHandler.List)
		r.Get("/thread/{threadID}/messages", messageHandler.Thread)
		r.Get("/stats", messageHandler.Stats)

		r.Route("/message/{messageID}", func(r chi.Router) {
			r.Patch("/", messageHandler.Update)
			r.Delete("/", messageHandler.Delete)
			r.Post("/mark-read", messageHandler.MarkRead)
			r.Post("/archive", messageHandler.Archive)
		})

		r.Get("/recipients", directoryHandler.Recipients)
		r.Get("/students", directoryHandler.Students)
		r.Get("/coaches", directoryHandler.Coaches)
		r.Get("/branch-managers", directoryHandler.BranchManagers)
		r.Get("/superadmins", directoryHandler.Superadmins)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.List)
			r.Get("/stream", streamHandler.Stream)
			r.Put("/{notificationID}/read", notificationHandler.MarkRead)
		})
	})

	return r
}
