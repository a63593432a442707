package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/steelforge/wlm/internal/eventbus"
	"github.com/steelforge/wlm/internal/pool"
)

func newStatusServer(port int, workerPool *pool.WorkerPool, bus *eventbus.Bus, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		handleStatus(w, workerPool, bus)
	})

	mux.HandleFunc("/workers", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handleAcquireWorker(w, r, workerPool)
	})

	mux.HandleFunc("/workers/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		workerID := r.URL.Path[len("/workers/"):]
		if workerID == "" {
			http.Error(w, "worker id required", http.StatusBadRequest)
			return
		}
		if !workerPool.ReleaseByWorkerID(workerID) {
			http.Error(w, "worker id not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
}

// handleAcquireWorker handles POST /workers?mnemonic=...&fingerprint=...,
// the build system's analog of checking out a build-action worker for
// one action's lifetime.
func handleAcquireWorker(w http.ResponseWriter, r *http.Request, workerPool *pool.WorkerPool) {
	mnemonic := r.URL.Query().Get("mnemonic")
	if mnemonic == "" {
		http.Error(w, "mnemonic required", http.StatusBadRequest)
		return
	}
	key := pool.WorkerKey{Mnemonic: mnemonic, Fingerprint: r.URL.Query().Get("fingerprint")}

	proc, workerID, err := workerPool.Acquire(r.Context(), key)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to acquire worker: %v", err), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"worker_id": workerID,
		"pid":       proc.PID(),
	})
}

func handleStatus(w http.ResponseWriter, workerPool *pool.WorkerPool, bus *eventbus.Bus) {
	workers := workerPool.AllWorkers()
	workerStatus := make([]map[string]interface{}, len(workers))
	for i, wr := range workers {
		workerStatus[i] = map[string]interface{}{
			"pid":        wr.PID(),
			"mnemonic":   wr.Key().Mnemonic,
			"key_hash":   wr.Key().Hash(),
			"state":      wr.State().String(),
			"status":     wr.Status().Load().String(),
			"worker_ids": wr.WorkerIDs(),
		}
	}

	status := map[string]interface{}{
		"worker_count":   len(workers),
		"workers":        workerStatus,
		"events_dropped": bus.Dropped(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
