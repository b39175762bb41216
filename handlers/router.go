package handlers

import (
	"net/http"

	"friendsAPI/middleware"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Auth           *AuthHandler
	Users          *UserHandler
	FriendRequests *FriendRequestHandler
	Notifications  *NotificationHandler
	Health         *HealthHandler
	Events         *EventsHandler

	Verifier  middleware.TokenVerifier
	IPLimiter *middleware.IPRateLimiter
	Logger    *zap.Logger

	// Metrics is mounted at /metrics behind basic auth when set.
	Metrics     http.Handler
	MetricsUser string
	MetricsPass string
}

func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	// Registered ahead of the middleware stack: the upgrade needs the raw
	// ResponseWriter.
	if cfg.Events != nil {
		r.HandleFunc("/api/v1/ws/events", cfg.Events.Stream).Methods("GET")
	}

	standardRouter := r.PathPrefix("/").Subrouter()
	if cfg.IPLimiter != nil {
		standardRouter.Use(cfg.IPLimiter.Middleware)
	}
	standardRouter.Use(middleware.MonitorMiddleware)

	if cfg.Metrics != nil {
		standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(cfg.Metrics)).Methods("GET")
	}
	standardRouter.HandleFunc("/health", cfg.Health.Health).Methods("GET")

	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	// -------------------------------------------------------------------------
	// PUBLIC ROUTES
	// -------------------------------------------------------------------------
	api.HandleFunc("/signup", cfg.Auth.Signup).Methods("POST")
	api.HandleFunc("/login", cfg.Auth.Login).Methods("POST")
	api.HandleFunc("/token/refresh", cfg.Auth.Refresh).Methods("POST")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.JWTAuthMiddleware(cfg.Verifier, cfg.Logger))

	protected.HandleFunc("/users/search", cfg.Users.SearchUsers).Methods("GET")
	protected.HandleFunc("/users/me/qr", cfg.Users.InviteCode).Methods("GET")

	protected.HandleFunc("/friend-request/send", cfg.FriendRequests.Send).Methods("POST")
	protected.HandleFunc("/friend-request/accept", cfg.FriendRequests.Accept).Methods("POST")
	protected.HandleFunc("/friend-request/reject", cfg.FriendRequests.Reject).Methods("POST")
	protected.HandleFunc("/friends", cfg.FriendRequests.ListFriends).Methods("GET")
	protected.HandleFunc("/friend-requests/pending", cfg.FriendRequests.ListPending).Methods("GET")

	protected.HandleFunc("/notifications/register-device", cfg.Notifications.RegisterDevice).Methods("POST")

	return r
}
