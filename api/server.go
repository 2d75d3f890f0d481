package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/taguhoiya/mansion-watch-scraper-sub000/scheduler"
	"github.com/taguhoiya/mansion-watch-scraper-sub000/storage"
	"github.com/taguhoiya/mansion-watch-scraper-sub000/webhook"
)

// Server exposes the read API and the inbound chat webhook.
type Server struct {
	store  *storage.PostgresStore
	traces *storage.SQLiteStore
	runner scheduler.JobRunner
	http   *http.Server
}

func NewServer(addr string, store *storage.PostgresStore, traces *storage.SQLiteStore, runner scheduler.JobRunner) *Server {
	s := &Server{
		store:  store,
		traces: traces,
		runner: runner,
	}

	r := mux.NewRouter()
	r.HandleFunc("/properties", s.handleListProperties).Methods(http.MethodGet)
	r.HandleFunc("/properties/{id}", s.handleGetProperty).Methods(http.MethodGet)
	r.HandleFunc("/properties/{id}/overviews", s.handleGetOverviews).Methods(http.MethodGet)
	r.HandleFunc("/users/{line_user_id}/properties", s.handleUserProperties).Methods(http.MethodGet)
	r.HandleFunc("/jobs", s.handleRecentJobs).Methods(http.MethodGet)
	r.HandleFunc("/webhook", s.handleWebhook).Methods(http.MethodPost)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) Start() {
	go func() {
		log.Printf("API listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("API server error: %v", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	props, err := s.store.ListProperties(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	prop, err := s.store.GetPropertyByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if prop == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, prop)
}

func (s *Server) handleGetOverviews(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	po, co, err := s.store.GetPropertyOverviewsByProperty(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"property_overview": po,
		"common_overview":   co,
	})
}

func (s *Server) handleUserProperties(w http.ResponseWriter, r *http.Request) {
	lineUserID := mux.Vars(r)["line_user_id"]

	ups, err := s.store.GetUserPropertiesByUser(r.Context(), lineUserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ups)
}

func (s *Server) handleRecentJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.traces.RecentJobs(queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

type webhookRequest struct {
	LineUserID string `json:"line_user_id"`
	Message    string `json:"message"`
}

// handleWebhook takes an inbound chat message, extracts the listing URL,
// and kicks off a scrape in the background. The response only acknowledges
// that the job was accepted.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	url, ok := webhook.ExtractListingURL(req.Message)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err := webhook.ValidateListingURL(url); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := s.runner.RunJob(ctx, url, req.LineUserID); err != nil {
			log.Printf("Webhook scrape for %s: %v", url, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "url": url})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	if val := r.URL.Query().Get(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil && i > 0 {
			return i
		}
	}
	return defaultVal
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Warning: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
