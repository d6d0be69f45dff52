package http

import (
	"net/http"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/broadcast"
	"live-quiz-service/internal/policy"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const serviceName = "live-quiz-service"

type RouterConfig struct {
	Service     *app.SessionService
	Hub         *broadcast.Hub
	Auth        *auth.Authenticator
	CORSOrigins []string
	// Now stamps the health endpoint; defaults to time.Now.
	Now func() time.Time
}

// NewRouter mounts every HTTP and WebSocket route behind the route policy.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	h := &handlers{service: cfg.Service, now: cfg.Now}
	ws := NewWSHandler(cfg.Service, cfg.Hub, cfg.CORSOrigins)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(policy.Middleware(cfg.Auth, policy.NewChecker(nil), writeDenied))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/public/health", h.health)
		api.Get("/auth/status", h.authStatus)
		api.Get("/auth/me", h.me)

		api.Route("/quizmaster/sessions", func(qm chi.Router) {
			qm.Post("/", h.startSession)
			qm.Post("/{sessionID}/advance", h.advance)
			qm.Post("/{sessionID}/end", h.end)
			qm.Get("/{sessionID}/rounds/{index}/answers", h.roundAnswers)
		})

		api.Route("/player/sessions/{sessionID}", func(pl chi.Router) {
			pl.Post("/join", h.join)
			pl.Post("/answers", h.submitAnswer)
			pl.Get("/leaderboard", h.leaderboard)
			pl.Get("/round", h.currentRound)
			pl.Get("/state", h.state)
			pl.Get("/players/{playerID}/answers", h.playerAnswers)
			pl.Get("/ws", ws.ServeWS)
		})

		api.Get("/admin/sessions", h.listSessions)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, "not found")
	})
	return r
}

func writeDenied(w http.ResponseWriter, status int) {
	writeFailure(w, status, http.StatusText(status))
}
