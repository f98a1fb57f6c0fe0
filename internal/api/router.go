package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/battleship/internal/api/handler"
	"github.com/mcoot/battleship/internal/api/middleware"
	"github.com/mcoot/battleship/internal/api/response"
	"github.com/mcoot/battleship/internal/factory"
	logging "github.com/mcoot/battleship/internal/middleware"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger *slog.Logger
	App    *factory.App
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = middleware.NotFound()
	r.MethodNotAllowedHandler = middleware.MethodNotAllowed()

	app := cfg.App

	// Create handlers
	playerHandler := handler.NewPlayerHandler(app.AuthService, app.PresenceService)
	challengeHandler := handler.NewChallengeHandler(app.ChallengeService, cfg.Logger)
	sessionHandler := handler.NewSessionHandler(app.GameController, app.Synchronizer)
	eventsHandler := handler.NewEventsHandler(app.HubManager)

	authMiddleware := middleware.Auth(app.AuthService)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.NotFoundHandler = r.NotFoundHandler
	api.MethodNotAllowedHandler = r.MethodNotAllowedHandler
	api.Use(logging.Logging(cfg.Logger))
	api.Use(middleware.Recovery(cfg.Logger))

	// Unauthenticated routes
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/players", playerHandler.Register).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(authMiddleware)

	// Presence
	protected.HandleFunc("/players/me", playerHandler.GetMe).Methods(http.MethodGet)
	protected.HandleFunc("/players/me/heartbeat", playerHandler.Heartbeat).Methods(http.MethodPost)
	protected.HandleFunc("/players/me/logout", playerHandler.Logout).Methods(http.MethodPost)
	protected.HandleFunc("/players/online", playerHandler.ListOnline).Methods(http.MethodGet)

	// Challenges
	protected.HandleFunc("/challenges", challengeHandler.Create).Methods(http.MethodPost)
	protected.HandleFunc("/challenges", challengeHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/challenges/{id}", challengeHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/challenges/{id}/respond", challengeHandler.Respond).Methods(http.MethodPost)
	protected.HandleFunc("/challenges/{id}/cancel", challengeHandler.Cancel).Methods(http.MethodPost)

	// Sessions
	protected.HandleFunc("/sessions", sessionHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/sessions/{id}/placement", sessionHandler.Placement).Methods(http.MethodPost)
	protected.HandleFunc("/sessions/{id}/shots", sessionHandler.Shots).Methods(http.MethodPost)
	protected.HandleFunc("/sessions/{id}/forfeit", sessionHandler.Forfeit).Methods(http.MethodPost)
	protected.HandleFunc("/sessions/{id}/transitions", sessionHandler.Transitions).Methods(http.MethodPost)
	protected.HandleFunc("/sessions/{id}/moves", sessionHandler.Moves).Methods(http.MethodGet)

	// Push notifications
	protected.HandleFunc("/events", eventsHandler.Stream).Methods(http.MethodGet)
	protected.HandleFunc("/events/ws", eventsHandler.Socket).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
