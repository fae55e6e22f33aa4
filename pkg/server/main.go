package server

import (
	"crypto/subtle"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/downfa11-org/go-eventlog/pkg/config"
	"github.com/downfa11-org/go-eventlog/pkg/disk"
	"github.com/downfa11-org/go-eventlog/pkg/metrics"
	"github.com/downfa11-org/go-eventlog/pkg/types"
	"github.com/downfa11-org/go-eventlog/util"
	"github.com/google/uuid"
)

// RunServer starts the HTTP boundary with optional TLS and gzip.
func RunServer(cfg *config.Config, h *disk.Handler) error {
	if cfg.EnableExporter {
		metrics.StartMetricsServer(cfg.ExporterPort)
		util.Info("Prometheus exporter started on port %d", cfg.ExporterPort)
	} else {
		util.Info("Exporter disabled")
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewMux(cfg, h),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	util.Info("Event log listening on %s (TLS=%v, Gzip=%v)", addr, cfg.UseTLS, cfg.EnableGzip)

	if cfg.UseTLS {
		srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cfg.TLSCert}}
		return srv.ListenAndServeTLS("", "")
	}
	return srv.ListenAndServe()
}

// NewMux wires the event log endpoints onto a fresh mux so tests can serve
// them without a listening socket.
func NewMux(cfg *config.Config, h *disk.Handler) http.Handler {
	s := &handlers{cfg: cfg, log: h}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

type handlers struct {
	cfg *config.Config
	log *disk.Handler
}

type readResponse struct {
	NextMarker int64           `json:"nextMarker"`
	Events     json.RawMessage `json:"events"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *handlers) handleEvents(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	w.Header().Set("X-Request-Id", reqID)

	if !s.authorized(r) {
		util.Warn("[%s] rejected %s /events: bad or missing secret", reqID, r.Method)
		writeJSON(s.cfg, w, r, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	switch r.Method {
	case http.MethodPost:
		s.handleWrite(reqID, w, r)
	case http.MethodGet:
		s.handleRead(reqID, w, r)
	default:
		writeJSON(s.cfg, w, r, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	}
}

func (s *handlers) handleWrite(reqID string, w http.ResponseWriter, r *http.Request) {
	var events []types.Event
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		writeJSON(s.cfg, w, r, http.StatusBadRequest, errorResponse{Error: "body must be a JSON array of events"})
		return
	}

	if err := s.log.WriteEvents(events); err != nil {
		util.Error("[%s] write of %d events failed: %v", reqID, len(events), err)
		writeJSON(s.cfg, w, r, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	util.Debug("[%s] appended %d events", reqID, len(events))
	writeJSON(s.cfg, w, r, http.StatusOK, map[string]bool{"ok": true})
}

func (s *handlers) handleRead(reqID string, w http.ResponseWriter, r *http.Request) {
	marker := int64(0)
	if v := r.URL.Query().Get("marker"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(s.cfg, w, r, http.StatusBadRequest, errorResponse{Error: "marker must be an integer"})
			return
		}
		marker = parsed
	}

	next, events, err := s.log.ReadSince(marker)
	if err != nil {
		if errors.Is(err, disk.ErrMarkerOutOfRange) {
			writeJSON(s.cfg, w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		util.Error("[%s] read since %d failed: %v", reqID, marker, err)
		writeJSON(s.cfg, w, r, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(s.cfg, w, r, http.StatusOK, readResponse{NextMarker: next, Events: events})
}

func (s *handlers) authorized(r *http.Request) bool {
	if s.cfg.Secret == "" {
		return true
	}
	token := r.Header.Get("X-Auth-Token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Secret)) == 1
}
