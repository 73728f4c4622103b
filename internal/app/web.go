package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/relabs-tech/mag_passthrough/internal/metrics"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// newWebMux serves the latest sample, the bring-up status and Prometheus
// metrics.
func newWebMux(state *magState) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/mag", func(w http.ResponseWriter, r *http.Request) {
		m, ok := state.latest()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, m)
	})

	mux.HandleFunc("/api/mag/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, state.currentStatus())
	})

	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// startWebServer listens on addr and serves h in the background. The
// returned address is the one actually bound.
func startWebServer(addr string, h http.Handler) (*http.Server, net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("web: listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("web: server stopped: %v", err)
		}
	}()
	return srv, ln.Addr(), nil
}

func stopWebServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("web: shutdown: %v", err)
	}
}
