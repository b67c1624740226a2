package api

import (
	"net/http"
	"sort"
	"time"
)

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Mode      string            `json:"mode"`
	Services  map[string]string `json:"services"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	services := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.checks[name](r.Context()); err != nil {
			services[name] = "down"
			status = "degraded"
			continue
		}
		services[name] = "up"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Mode:      s.stocks.Mode(),
		Services:  services,
	})
}
