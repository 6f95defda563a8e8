package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "kosched API",
		Version:     "v1",
		Description: "Scheduler simulation traces: runs, thread lifecycle events, and load samples",
		Endpoints: []endpointInfo{
			{"/api/v1/runs", []string{"GET"}, "List recorded runs; filter with ?state=, page with ?limit=&offset="},
			{"/api/v1/runs/{id}", []string{"GET", "DELETE"}, "Single run detail; DELETE removes the run and its trace"},
			{"/api/v1/runs/{id}/events", []string{"GET"}, "Thread lifecycle events for a run, in scheduling order"},
			{"/api/v1/runs/{id}/samples", []string{"GET"}, "Per-second load average and ready-queue samples"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
