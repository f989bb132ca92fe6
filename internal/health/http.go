package health

import (
	"encoding/json"
	"net/http"
)

// RegisterRoutes exposes the probes:
//
//	GET /healthz  - liveness, always 200 while the process serves
//	GET /readyz   - readiness, 503 when a critical dependency is down
//	GET /health   - full component report
func (m *Manager) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		report := m.Report(r.Context())
		if !report.Ready {
			writeReport(w, http.StatusServiceUnavailable, report)
			return
		}
		writeReport(w, http.StatusOK, report)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeReport(w, http.StatusOK, m.Report(r.Context()))
	})
}

func writeReport(w http.ResponseWriter, status int, report Report) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}
