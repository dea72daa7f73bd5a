package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Session routes
	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Get("/children", s.getChildren)

			// Tool execution
			r.Post("/invoke", s.invokeTool)
			r.Post("/chain", s.invokeChain)
			r.Post("/batch", s.invokeBatch)
			r.Post("/message", s.sendMessage)
		})
	})

	// Tools
	r.Get("/tool", s.listTools)

	// Event streaming (SSE)
	r.Get("/event", s.allEvents)

	// Operations
	r.Handle("/metrics", s.runtime.Metrics().Handler())
	r.Get("/health", s.health)
}
