// Package health serves the liveness endpoint on its own port so load
// balancers can probe the service without touching the scan API.
package health

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// CachePinger reports whether the volatile store tier is reachable.
type CachePinger interface {
	Ping(ctx context.Context) error
}

type Response struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	CacheTier     string `json:"cache_tier"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     int64  `json:"timestamp"`
}

// StartServer serves /health on the given port in the background.
// cache may be nil when the service runs durable-only.
func StartServer(port string, cache CachePinger) {
	startTime := time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		cacheStatus := "disabled"
		if cache != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := cache.Ping(ctx); err != nil {
				cacheStatus = "unavailable"
			} else {
				cacheStatus = "connected"
			}
		}

		// The service stays healthy without its cache; the durable
		// tier alone keeps scans correct.
		response := &Response{
			Status:        "healthy",
			Service:       "sentinel",
			CacheTier:     cacheStatus,
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
			Timestamp:     time.Now().Unix(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	})

	log.Printf("Health check listening on : %s", port)

	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			log.Fatalf("Health server failed: %v", err)
		}
	}()
}
