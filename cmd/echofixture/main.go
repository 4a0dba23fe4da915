// Command echofixture is a degradable echo server used to exercise a
// Dispatcher end to end (SPEC_FULL §4.8): it answers /get with the
// posted body and 200, until toggled into a degraded state via
// /degrade/on, at which point it answers 503 until /degrade/off.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/jonwraymond/resilientdispatch/health"
)

type fixture struct {
	degraded atomic.Bool
}

func (f *fixture) handleGet(w http.ResponseWriter, r *http.Request) {
	if f.degraded.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"degraded"}`))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if len(body) == 0 {
		_, _ = w.Write([]byte(`{}`))
		return
	}
	_, _ = w.Write(body)
}

func (f *fixture) handleDegrade(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.degraded.Store(on)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"degraded": on})
	}
}

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	flag.Parse()

	f := &fixture{}
	mux := http.NewServeMux()
	mux.HandleFunc("/get", f.handleGet)
	mux.HandleFunc("/degrade/on", f.handleDegrade(true))
	mux.HandleFunc("/degrade/off", f.handleDegrade(false))
	mux.HandleFunc("/healthz", health.LivenessHandler())

	log.Printf("echofixture listening on %s", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatal(err)
	}
}
