package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/Contexta/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/Contexta/internal/api/middlewares"
	"github.com/markdave123-py/Contexta/internal/config"
	"github.com/markdave123-py/Contexta/internal/embedding"
	"github.com/markdave123-py/Contexta/internal/objectstore"
	"github.com/markdave123-py/Contexta/internal/repo"
	"github.com/markdave123-py/Contexta/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes for the thin external HTTP surface
// (§6): upload init/complete, document CRUD, job get, and the citation
// retrieval endpoint. The auth façade (signup/login) is out-of-scope glue
// kept only to mint the tenant-scoped JWT every other route requires.
func NewServer(cfg *config.Config, repos repo.Repositories, objects objectstore.Client, embedder *embedding.Client) *Server {
	docService := services.NewDocumentService(repos.Documents, repos.Versions, repos.Jobs, repos.Outbox, objects)
	userService := services.NewUserService(repos.Users)

	authHandler := handlers.NewAuthHandler(userService)
	docHandler := handlers.NewDocumentHandler(docService)
	chatHandler := handlers.NewChatHandler(repos.Embeddings, embedder)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware)

			protected.Post("/documents", docHandler.InitUpload)
			protected.Get("/documents", docHandler.ListDocuments)
			protected.Get("/documents/{documentID}", docHandler.GetDocument)
			protected.Delete("/documents/{documentID}", docHandler.DeleteDocument)
			protected.Post("/versions/{versionID}/complete", docHandler.CompleteUpload)
			protected.Post("/versions/{versionID}/query", chatHandler.Query)

			protected.Get("/jobs/{jobID}", docHandler.GetJob)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
