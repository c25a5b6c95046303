package handlers

import (
	"net/http"
	"time"

	"love-sync-backend/internal/metrics"
	"love-sync-backend/internal/middleware"
	"love-sync-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// RouterDeps is everything the HTTP surface is built from
type RouterDeps struct {
	Users    *services.UserService
	Pairs    *services.PairService
	Sessions *services.SessionService
	Calendar *services.CalendarService
	Payments *services.PaymentService
	Photos   *services.PhotoService
	Memories *services.MemoryGameService
	Hub      *services.WSHub

	// Limiter guards the write endpoints that anyone can call; nil disables it
	Limiter *middleware.RateLimiter
	// Gatherer backs /metrics; nil leaves the route out
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// NewRouter builds the API routes
func NewRouter(deps RouterDeps) http.Handler {
	userHandler := NewUserHandler(deps.Users, deps.Pairs)
	pairHandler := NewPairHandler(deps.Pairs, deps.Hub)
	sessionHandler := NewSessionHandler(deps.Sessions)
	calendarHandler := NewCalendarHandler(deps.Calendar)
	paymentHandler := NewPaymentHandler(deps.Payments, deps.Pairs, deps.Hub)
	photoHandler := NewPhotoHandler(deps.Photos, deps.Pairs, deps.Hub)
	memoryHandler := NewMemoryGameHandler(deps.Memories)
	wsHandler := NewWebSocketHandler(deps.Hub, deps.Users, deps.Pairs, deps.Sessions, deps.AllowedOrigins)

	limited := func(h http.HandlerFunc) http.Handler {
		if deps.Limiter == nil {
			return h
		}
		return deps.Limiter.Middleware(h)
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(hlog.NewHandler(deps.Logger))
	r.Use(accessLog)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.CreateUser)
		r.Get("/sessions/{id}", sessionHandler.GetSession)
		r.Put("/sessions/{id}", sessionHandler.Respond)
		r.Post("/sessions/{id}/start", sessionHandler.Start)
		r.Post("/sessions/{id}/snap", sessionHandler.Snap)
		r.Post("/sessions/{id}/reveal", sessionHandler.Reveal)
		r.Get("/memory-games/{id}", memoryHandler.GetGame)
		r.Method(http.MethodPost, "/memory-games/{id}/guess", limited(memoryHandler.Guess))

		// Guests allowed, signed-in callers get their role applied
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(deps.Users))
			r.Get("/calendar", calendarHandler.ListDays)
			r.Get("/calendar/{day}", calendarHandler.GetDay)
			r.Method(http.MethodPost, "/sessions", limited(sessionHandler.CreateSession))
			r.Method(http.MethodPost, "/payment/orders", limited(paymentHandler.CreateOrder))
			r.Method(http.MethodPost, "/payment/verify", limited(paymentHandler.Verify))
			r.Method(http.MethodPost, "/memory-games", limited(memoryHandler.CreateGame))
			r.Method(http.MethodPost, "/memory-games/upload", limited(memoryHandler.UploadImage))
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(deps.Users))
			r.Get("/me", userHandler.Me)
			r.Put("/me/push-token", userHandler.UpdatePushToken)
			r.Post("/pairs", pairHandler.CreatePair)
			r.Delete("/pairs/{pair_id}", pairHandler.DeletePair)
			r.Get("/photos", photoHandler.GetPhotos)
			r.Post("/photos/upload", photoHandler.UploadPhoto)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedOrigins: deps.AllowedOrigins,
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

// accessLog writes one line per request with the chi request id attached
var accessLog = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("request_id", chiMiddleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
})
