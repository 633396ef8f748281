package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/poyrazK/dnsdiff/internal/core/domain"
	"github.com/poyrazK/dnsdiff/internal/core/ports"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ClusterSource computes the fingerprint report of the corpus.
type ClusterSource interface {
	Clusters(ctx context.Context) (domain.ClusterReport, error)
}

// APIHandler serves the triage endpoints over recorded differences.
type APIHandler struct {
	clusters ClusterSource
	repo     ports.DifferenceRepository
	coord    ports.Coordinator
}

// NewAPIHandler creates and returns a new APIHandler instance.
func NewAPIHandler(clusters ClusterSource, repo ports.DifferenceRepository, coord ports.Coordinator) *APIHandler {
	return &APIHandler{clusters: clusters, repo: repo, coord: coord}
}

// RegisterRoutes registers the API routes with the provided ServeMux. An
// empty token leaves the triage routes open.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux, token string) {
	// Public Routes
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /metrics", h.Metrics)

	auth := TokenMiddleware(token)
	mux.Handle("GET /clusters", auth(http.HandlerFunc(h.GetClusters)))
	mux.Handle("GET /differences/{test_id}", auth(http.HandlerFunc(h.GetDifferences)))
}

// Metrics handles Prometheus metrics scraping requests.
func (h *APIHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// HealthCheck reports the state of the difference store and the coordinator.
func (h *APIHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "UP"
	details := make(map[string]string)
	checks := map[string]error{
		"repository":  h.repo.Ping(r.Context()),
		"coordinator": h.coord.Ping(r.Context()),
	}

	for name, checkErr := range checks {
		if checkErr != nil {
			status = "DEGRADED"
			details[name] = checkErr.Error()
		} else {
			details[name] = "OK"
		}
	}

	resp := map[string]interface{}{
		"status":  status,
		"details": details,
	}

	w.Header().Set("Content-Type", "application/json")
	if status == "DEGRADED" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("failed to encode health check response: %v", err)
	}
}

// GetClusters computes the fingerprint report from the stored differences.
func (h *APIHandler) GetClusters(w http.ResponseWriter, r *http.Request) {
	report, err := h.clusters.Clusters(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrMixedTags) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		log.Printf("failed to encode cluster report: %v", err)
	}
}

// GetDifferences returns the difference report of one test.
func (h *APIHandler) GetDifferences(w http.ResponseWriter, r *http.Request) {
	testID := r.PathValue("test_id")
	if testID == "" {
		http.Error(w, "missing test id", http.StatusBadRequest)
		return
	}

	diffs, err := h.repo.GetDifferences(r.Context(), testID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(diffs) == 0 {
		http.Error(w, "no differences recorded for test "+testID, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(diffs); err != nil {
		log.Printf("failed to encode differences response: %v", err)
	}
}
