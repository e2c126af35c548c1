package http

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Server HTTP сервер с обработчиками
type Server struct {
	linksHandler    *LinksHandler
	redirectHandler *RedirectHandler
	healthHandler   *HealthHandler
	log             *zap.Logger
}

// NewServer создает новый HTTP сервер
func NewServer(
	linksHandler *LinksHandler,
	redirectHandler *RedirectHandler,
	healthHandler *HealthHandler,
	log *zap.Logger,
) *Server {
	return &Server{
		linksHandler:    linksHandler,
		redirectHandler: redirectHandler,
		healthHandler:   healthHandler,
		log:             log,
	}
}

// SetupRoutes настраивает маршруты
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Health checks
	mux.HandleFunc("/health", s.healthHandler.Health)
	mux.HandleFunc("/ready", s.healthHandler.Ready)

	// CRUD surface
	mux.HandleFunc("/api/links", s.linksHandler.CreateLink)
	mux.HandleFunc("/api/links/", s.handleLinksAPI)

	// Redirect endpoint - должен быть последним
	mux.HandleFunc("/", s.redirectHandler.HandleRedirect)

	return mux
}

// handleLinksAPI обрабатывает /api/links/{code}[/verify|/stats] с разными
// HTTP методами
func (s *Server) handleLinksAPI(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/links/")
	parts := strings.SplitN(rest, "/", 2)
	shortCode := parts[0]
	if shortCode == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "verify":
			s.linksHandler.VerifyPassword(w, r, shortCode)
		case "stats":
			s.linksHandler.GetStats(w, r, shortCode)
		default:
			http.NotFound(w, r)
		}
		return
	}

	switch r.Method {
	case http.MethodPatch:
		s.linksHandler.UpdateLink(w, r, shortCode)
	case http.MethodDelete:
		s.linksHandler.DeleteLink(w, r, shortCode)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
