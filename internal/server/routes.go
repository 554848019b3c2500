package server

import "github.com/go-chi/chi/v5"

// setupRoutes configures every endpoint in spec.md §6's table, normalised
// under /api/v1.
func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.health)

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", s.createConversation)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/summary", s.getConversationSummary)
				r.Get("/history", s.getConversationHistory)
				r.Put("/model", s.updateConversationModel)
				r.Put("/api-key", s.updateConversationAPIKey)
				r.Delete("/", s.dropConversation)
			})
		})

		r.Post("/chat", s.chat)

		r.Route("/files", func(r chi.Router) {
			r.Post("/scan", s.scanFiles)
			r.Post("/content", s.readFilesContent)
		})

		r.Post("/code/extract", s.extractCode)

		r.Route("/d2", func(r chi.Router) {
			r.Post("/render", s.renderD2)
			r.Post("/validate", s.validateD2)
			r.Get("/download/{filename}", s.downloadD2)
			r.Get("/export/{filename}", s.exportD2)
		})

		r.Route("/mermaid", func(r chi.Router) {
			r.Post("/render", s.renderMermaid)
			r.Post("/validate", s.validateMermaid)
			r.Get("/export/{filename}", s.exportMermaid)
		})

		r.Route("/shell/sessions", func(r chi.Router) {
			r.Post("/", s.createShellSession)
			r.Get("/", s.listShellSessions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getShellSession)
				r.Delete("/", s.closeShellSession)
			})
		})
		r.Get("/shell/ws/{id}", s.shellWebsocket)

		r.Route("/mcp", func(r chi.Router) {
			r.Get("/tools", s.listMCPTools)
			r.Post("/tools/{name}", s.callMCPTool)
		})
		r.Get("/mcp/ws", s.mcpWebsocket)

		r.Post("/diagrams/log-diagram-event", s.logDiagramEvent)
	})
}
