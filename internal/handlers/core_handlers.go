package handlers

import "net/http"

// HandleHealth reports engine counters and the current online population.
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status": "ok",
			"online": len(s.Hub.OnlineIDs()),
		}
		if s.Config.Server.MetricsEnabled {
			body["metrics"] = s.Metrics.Snapshot()
		}
		writeJSON(w, http.StatusOK, body)
	}
}
