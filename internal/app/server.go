package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/Syntra/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/Syntra/internal/api/middlewares"
	"github.com/markdave123-py/Syntra/internal/config"
	"github.com/markdave123-py/Syntra/internal/core"
	"github.com/markdave123-py/Syntra/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, logger *slog.Logger, db core.DbClient, notebooks *services.NotebookService, sources *services.SourceService, chat *services.ChatService) *Server {
	authHandler := handlers.NewAuthHandler(db, cfg.JWTSecret)
	notebookHandler := handlers.NewNotebookHandler(notebooks)
	sourceHandler := handlers.NewSourceHandler(sources)
	chatHandler := handlers.NewChatHandler(chat)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))

			protected.Post("/notebooks", notebookHandler.Create)
			protected.Get("/notebooks", notebookHandler.List)
			protected.Get("/notebooks/{notebook_id}", notebookHandler.Get)
			protected.Delete("/notebooks/{notebook_id}", notebookHandler.Delete)

			protected.Post("/notebooks/{notebook_id}/sources/upload", sourceHandler.Upload)
			protected.Post("/notebooks/{notebook_id}/sources/url", sourceHandler.AddURL)
			protected.Post("/notebooks/{notebook_id}/sources/text", sourceHandler.AddText)
			protected.Get("/notebooks/{notebook_id}/sources", sourceHandler.List)
			protected.Get("/sources/{source_id}", sourceHandler.GetStatus)
			protected.Delete("/sources/{source_id}", sourceHandler.Delete)

			protected.Post("/notebooks/{notebook_id}/conversations", chatHandler.CreateConversation)
			protected.Get("/notebooks/{notebook_id}/conversations", chatHandler.ListConversations)
			protected.Get("/conversations/{conversation_id}/messages", chatHandler.ListMessages)
			protected.Post("/conversations/{conversation_id}/messages", chatHandler.SendMessage)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, logger: logger}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
