// Package httpapi exposes the scan API: start, poll, stream, history.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/derivinsight/sentinel/internal/events"
	"github.com/derivinsight/sentinel/internal/memory"
	"github.com/derivinsight/sentinel/internal/models"
	"github.com/derivinsight/sentinel/internal/orchestrator"
	"github.com/derivinsight/sentinel/internal/store"
)

type Server struct {
	orch       *orchestrator.Orchestrator
	progress   *store.ProgressStore
	memory     *memory.ScanMemory
	httpServer *http.Server // Store server instance for graceful shutdown
}

func NewServer(orch *orchestrator.Orchestrator, progress *store.ProgressStore, mem *memory.ScanMemory) *Server {
	return &Server{
		orch:     orch,
		progress: progress,
		memory:   mem,
	}
}

// Handler builds the route table with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sentinel/scan", s.handleStartScan)
	mux.HandleFunc("/api/v1/sentinel/scan/stream", s.handleStream)
	mux.HandleFunc("/api/v1/sentinel/scans", s.handleListScans)
	mux.HandleFunc("/api/v1/sentinel/scans/", s.handleScanByID)
	return s.enableCORS(mux)
}

func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	log.Printf("HTTP Server listening on: %s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server with a timeout.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	log.Printf("Stopping HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	log.Printf("HTTP server stopped successfully")
	return nil
}

// handleStartScan launches a background scan and returns its ID.
func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "Method not supported", http.StatusMethodNotAllowed)
		return
	}

	scanID, err := s.orch.StartScan(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to start scan: %v", err))
		return
	}

	log.Printf("Scan started: %s", scanID)
	writeJSON(w, http.StatusOK, map[string]string{
		"scan_id": scanID,
		"status":  models.StatusRunning,
	})
}

// handleScanByID serves /scans/{id} (full record) and
// /scans/{id}/status (live snapshot, falling back to the record).
func (s *Server) handleScanByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not supported", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api/v1/sentinel/scans/{id} or api/v1/sentinel/scans/{id}/status
	if len(parts) < 5 || parts[4] == "" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}
	scanID := parts[4]

	if len(parts) == 6 && parts[5] == "status" {
		s.serveStatus(w, r, scanID)
		return
	}

	record, err := s.memory.GetScan(r.Context(), scanID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("scan %s not found", scanID))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// serveStatus returns the live snapshot while the scan is tracked;
// once the snapshot's retention window passes, the persisted record is
// reshaped into the same envelope. A poller always gets a well-formed
// answer, never a raw error for a scan that exists.
func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request, scanID string) {
	snapshot, err := s.progress.Load(r.Context(), scanID)
	if err == nil {
		writeJSON(w, http.StatusOK, snapshot)
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	record, err := s.memory.GetScan(r.Context(), scanID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("scan %s not found", scanID))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, &models.ProgressSnapshot{
		ScanID: record.ScanID,
		Status: models.StatusComplete,
		Phase:  models.PhaseComplete,
		Progress: models.Progress{
			Completed: record.Stats.TotalMissions,
			Total:     record.Stats.TotalMissions,
		},
		Detections: record.Detections,
		Clusters:   record.Clusters,
		Narrative:  record.Narrative,
		UpdatedAt:  record.Timestamp,
	})
}

// handleStream runs a scan and emits server-sent events: one named
// event per phase transition and one per completed detection.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not supported", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sink := events.NewChannelSink()
	scanID := models.NewScanID(time.Now())

	go func() {
		// The scan itself is never cancelled by a dropped client;
		// the sink just stops being read.
		if _, err := s.orch.Run(context.Background(), scanID, sink); err != nil {
			log.Printf("Streamed scan %s failed: %v", scanID, err)
		}
		sink.Close()
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-sink.C:
			if !open {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, event.Payload)
			flusher.Flush()
		}
	}
}

// handleListScans returns the scan index, newest first.
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not supported", http.StatusMethodNotAllowed)
		return
	}

	index, err := s.memory.ListScans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if index == nil {
		index = []models.ScanIndexEntry{}
	}

	writeJSON(w, http.StatusOK, index)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
