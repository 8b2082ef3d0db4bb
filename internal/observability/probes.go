package observability

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

type probeResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// liveness answers 200 while the process can serve HTTP at all.
func (s *Server) liveness(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, probeResponse{Status: "alive"})
}

// readiness answers 200 only when every dependency is up and the process is
// not draining.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, probeResponse{Status: "draining"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	rep := RunChecks(ctx, s.checkers)
	if !rep.Healthy {
		for name, err := range rep.Failures {
			// Warn, not Error: orchestrators retry the probe.
			s.logger.Warn("readiness check failed",
				slog.String("component", name),
				slog.String("error", err.Error()),
			)
		}
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, probeResponse{Status: "unavailable", Components: rep.Components})
		return
	}

	render.JSON(w, r, probeResponse{Status: "ready", Components: rep.Components})
}
