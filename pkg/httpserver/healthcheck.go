package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dmitrymomot/imgcompare/pkg/logger"
)

// Check reports whether a dependency is reachable.
type Check func(context.Context) error

// LivenessHandler always answers 200 while the process can serve requests.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ALIVE"))
	}
}

// ReadinessHandler runs every check concurrently with timeout and answers
// 200 when all pass, 503 otherwise. The body lists each check's state.
func ReadinessHandler(log *slog.Logger, timeout time.Duration, checks map[string]Check) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		results := make(map[string]string, len(names))
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		ready := true
		for _, name := range names {
			wg.Add(1)
			go func(name string, check Check) {
				defer wg.Done()
				state := "ok"
				if err := check(ctx); err != nil {
					state = "failing"
					log.WarnContext(ctx, "readiness check failed", slog.String("check", name), logger.Error(err))
				}
				mu.Lock()
				results[name] = state
				if state != "ok" {
					ready = false
				}
				mu.Unlock()
			}(name, checks[name])
		}
		wg.Wait()

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"ready": ready, "checks": results})
	}
}
