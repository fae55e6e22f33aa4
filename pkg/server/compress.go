package server

import (
	"compress/gzip"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/downfa11-org/go-eventlog/pkg/config"
	"github.com/downfa11-org/go-eventlog/util"
)

// writeJSON encodes v as the response body, gzip-compressed when enabled and
// accepted by the client.
func writeJSON(cfg *config.Config, w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")

	if cfg.EnableGzip && strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(status)
		gz := gzip.NewWriter(w)
		defer gz.Close()
		if err := json.NewEncoder(gz).Encode(v); err != nil {
			util.Error("encode gzip response: %v", err)
		}
		return
	}

	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.Error("encode response: %v", err)
	}
}
