package server

import (
	"net/http"

	"wiki-comic-web/internal/builder"
	"wiki-comic-web/internal/domain"
	"wiki-comic-web/internal/server/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shouni/gcp-kit/auth"
	"github.com/shouni/gcp-kit/worker"
)

// NewRouter は、ミドルウェアとルーティングを統合した http.Handler を構築します。
func NewRouter(h *builder.AppHandlers) http.Handler {
	r := chi.NewRouter()

	setupCommonMiddleware(r)
	setupRoutes(r, h.Auth, h.API, h.Worker)

	return r
}

func setupCommonMiddleware(r *chi.Mux) {
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
}

func setupRoutes(
	r chi.Router,
	authHandler *auth.Handler,
	apiHandler *handlers.Handler,
	workerHandler *worker.Handler[domain.GenerateTaskPayload],
) {
	// --- 公開ルート ---
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// --- 公開ルート (OAuth2 認証フロー) ---
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", authHandler.Login)
		r.Get("/callback", authHandler.Callback)
	})

	// --- 認証が必要なルート (JSON API 用) ---
	r.Group(func(r chi.Router) {
		r.Use(authHandler.Middleware)

		r.Route("/api", func(r chi.Router) {
			r.Get("/search", apiHandler.Search)
			r.Post("/generate", apiHandler.Generate)

			r.Route("/topics/{topic}", func(r chi.Router) {
				r.Get("/status", apiHandler.Status)
				r.Get("/export", apiHandler.Export)
			})
		})
	})

	// --- Cloud Tasks 専用ルート (Worker 用) ---
	r.Group(func(r chi.Router) {
		r.Use(authHandler.TaskOIDCVerificationMiddleware)
		r.Post("/tasks/generate", workerHandler.ProcessTask)
	})
}
