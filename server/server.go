package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/kilnworks/go-admin-gate/guard"
	"github.com/kilnworks/go-admin-gate/internal/config"
	"github.com/rs/zerolog/log"
)

// Server exposes the gate over HTTP and guards the protected admin area.
type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	mux    *http.ServeMux
	routes []string
	config config.Config
	guard  *guard.Guard
}

func New(cfg config.Config, g *guard.Guard) (*Server, error) {
	if g == nil {
		return nil, fmt.Errorf("[server.New] guard is required")
	}

	s := &Server{
		mux:    http.NewServeMux(),
		config: cfg,
		guard:  g,
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
