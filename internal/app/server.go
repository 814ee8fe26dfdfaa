package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/Lectern/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/Lectern/internal/api/middlewares"
	"github.com/markdave123-py/Lectern/internal/config"
	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/services"
)

// Request deadlines per route group. Uploads stream large videos; generation
// and reprocessing wait on model calls.
const (
	defaultTimeout    = 60 * time.Second
	uploadTimeout     = 30 * time.Minute
	generationTimeout = 5 * time.Minute
	reprocessTimeout  = 2 * time.Hour
)

// Services are the application services exposed over HTTP.
type Services struct {
	Users    *services.UserService
	Lectures *services.LectureService
	Content  *services.ContentService
	Chat     *services.ChatService
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, log *logger.Logger, svc Services) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           NewRouter(cfg, log, svc),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// NewRouter returns the API routes under /api.
func NewRouter(cfg *config.Config, log *logger.Logger, svc Services) http.Handler {
	authHandler := handlers.NewAuthHandler(svc.Users, log)
	lectureHandler := handlers.NewLectureHandler(svc.Lectures, cfg.MaxUploadBytes, log)
	contentHandler := handlers.NewContentHandler(svc.Lectures, svc.Content, log)
	chatHandler := handlers.NewChatHandler(svc.Lectures, svc.Chat, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Group(func(public chi.Router) {
			public.Use(middleware.Timeout(defaultTimeout))
			public.Post("/signup", authHandler.Signup)
			public.Post("/login", authHandler.Login)
		})

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))

			protected.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(defaultTimeout))
				r.Get("/lectures", lectureHandler.List)
				r.Get("/lectures/{id}", lectureHandler.Get)
				r.Delete("/lectures/{id}", lectureHandler.Delete)
				r.Get("/lectures/{id}/status", lectureHandler.Status)
				r.Get("/lectures/{id}/transcript", lectureHandler.Transcript)
			})

			protected.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(uploadTimeout))
				r.Post("/lectures", lectureHandler.Upload)
			})

			protected.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(generationTimeout))
				r.Get("/lectures/{id}/summary", contentHandler.Summary)
				r.Get("/lectures/{id}/quiz", contentHandler.Quiz)
				r.Get("/lectures/{id}/translation", contentHandler.Translate)
				r.Post("/lectures/{id}/ask", chatHandler.Ask)
			})

			protected.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(reprocessTimeout))
				r.Post("/lectures/{id}/reprocess", lectureHandler.Reprocess)
			})
		})
	})

	return r
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
