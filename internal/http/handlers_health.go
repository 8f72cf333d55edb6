package httpx

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker is a dependency pinged by /healthz.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// healthHandler returns 200 when every checker answers and 503 otherwise.
func healthHandler(checkers ...HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		for _, c := range checkers {
			if err := c.PingContext(ctx); err != nil {
				writeHealth(w, r, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()})
				return
			}
		}
		writeHealth(w, r, http.StatusOK, healthResponse{Status: "ok"})
	}
}

func writeHealth(w http.ResponseWriter, r *http.Request, code int, body healthResponse) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(code)
		return
	}
	WriteJSON(w, code, body)
}
