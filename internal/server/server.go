// Package server exposes the print workflow over HTTP: commune lookup,
// interval reservations, job execution and live progress events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/local/qrprint/internal/communes"
	"github.com/local/qrprint/internal/layout"
	"github.com/local/qrprint/internal/metrics"
	"github.com/local/qrprint/internal/statuscheck"
	"github.com/local/qrprint/internal/store"
)

// Publisher uploads a finished artifact and returns where it landed.
type Publisher interface {
	Publish(ctx context.Context, job, localPath string) (string, error)
}

type Dependencies struct {
	Intervals store.Intervals
	// Publisher is optional.
	Publisher    Publisher
	Layout       layout.Config
	OutputDir    string
	StaticDir    string
	CommunesFile string
}

type Server struct {
	deps   Dependencies
	events *Broker
	status *statuscheck.Checker
	// jobs run one at a time
	jobMu sync.Mutex
}

func New(deps Dependencies) *Server {
	opts := statuscheck.Options{Store: deps.Intervals, OutputDir: deps.OutputDir, CommunesFile: deps.CommunesFile}
	if p, ok := deps.Publisher.(statuscheck.Pinger); ok {
		opts.Publisher = p
	}
	return &Server{deps: deps, events: NewBroker(), status: statuscheck.New(opts)}
}

// Events returns the progress broker.
func (s *Server) Events() *Broker { return s.events }

// HTTPServer returns an http.Server on addr serving every route. Shutting it
// down also ends open event streams.
func (s *Server) HTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	srv := &http.Server{Addr: addr, Handler: mux}
	srv.RegisterOnShutdown(s.events.Close)
	return srv
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/communes", s.handleCommunes)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/check-interval", s.handleCheckInterval)
	mux.HandleFunc("/api/jobs", s.handleJob)
	mux.Handle("/api/events", s.events)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/output/", http.StripPrefix("/output/", http.FileServer(http.Dir(s.deps.OutputDir))))
	if s.deps.StaticDir != "" {
		if info, err := os.Stat(s.deps.StaticDir); err == nil && info.IsDir() {
			mux.Handle("/", http.FileServer(http.Dir(s.deps.StaticDir)))
		} else {
			log.Warn().Str("dir", s.deps.StaticDir).Msg("static directory missing, front-end not served")
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResp struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// seq accepts both JSON numbers and numeric strings, as sent by HTML forms.
type seq int

func (n *seq) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return errors.New("start and end must be integers")
	}
	*n = seq(v)
	return nil
}

const errMissingRange = "start and end are required"

// bounds returns both ends of a range; ok is false when either is absent.
func (n *seq) bounds(end *seq) (int, int, bool) {
	if n == nil || end == nil {
		return 0, 0, false
	}
	return int(*n), int(*end), true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sum := s.status.Summary(r.Context())
	code := http.StatusOK
	if !sum.Ready() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, sum)
}

func (s *Server) handleCommunes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := communes.ReadJSON(s.deps.CommunesFile)
	if err != nil {
		log.Error().Err(err).Str("file", s.deps.CommunesFile).Msg("read communes")
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: "cannot read communes"})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	all, err := s.deps.Intervals.All(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("read intervals")
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: "cannot read history"})
		return
	}
	// history still renders with codes when the communes file is unreadable
	list, err := communes.ReadJSON(s.deps.CommunesFile)
	if err != nil {
		log.Warn().Err(err).Msg("communes unavailable for history names")
	}
	writeJSON(w, http.StatusOK, store.History(all, communes.Names(list)))
}

type checkReq struct {
	CommuneCode string `json:"communeCode"`
	Start       *seq   `json:"start"`
	End         *seq   `json:"end"`
}

func (s *Server) handleCheckInterval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req checkReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid json", Details: err.Error()})
		return
	}
	if req.CommuneCode == "" {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "missing communeCode"})
		return
	}
	start, end, ok := req.Start.bounds(req.End)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: errMissingRange})
		return
	}
	res, err := s.deps.Intervals.Check(r.Context(), req.CommuneCode, start, end)
	if errors.Is(err, store.ErrInvalidRange) {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("commune", req.CommuneCode).Msg("check interval")
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: "cannot check interval"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}
