package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"github.com/kozaktomas/face-attendance/internal/web/static"
)

func (s *Server) setupRoutes() error {
	sm := s.sessionManager

	authHandler, err := handlers.NewAuthHandler(s.config.Admin, sm, s.log)
	if err != nil {
		return err
	}
	galleryHandler := handlers.NewGalleryHandler(s.deps.Gallery, s.deps.Store, s.log)
	uploadHandler := handlers.NewUploadHandler(s.deps.Store, s.deps.Gallery, s.log)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Ledger, s.log)
	live := s.deps.Live

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// Marking and viewing attendance is open; a logged in admin is
		// recorded on the session context.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(sm))

			r.Get("/live", live.Status)
			r.Post("/live/start", live.Start)
			r.Post("/live/stop", live.Stop)
			r.Get("/live/events", live.Events)
			r.Get("/live/frames", live.Frames)

			r.Get("/attendance", attendanceHandler.List)
			r.Get("/gallery", galleryHandler.List)
		})

		// Enrollment changes need an admin.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sm))

			r.Post("/faces", uploadHandler.Upload)
			r.Post("/gallery/reload", galleryHandler.Reload)
			r.Delete("/gallery/{name}", galleryHandler.Remove)
		})
	})

	s.router.Handle("/*", static.Handler())
	return nil
}
