package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	synccit "github.com/synccit/synccit"
	"github.com/synccit/synccit/assist"
	"github.com/synccit/synccit/terminal"
	"github.com/synccit/synccit/workspace"
)

// maxBodyBytes bounds JSON request bodies; uploads have their own limit.
const maxBodyBytes = 8 << 20

// Dispatcher runs one AI action.
type Dispatcher interface {
	Dispatch(ctx context.Context, action assist.Action, req *synccit.ActionRequest) (*synccit.ActionResponse, error)
}

// Runner executes one Command Gate request.
type Runner interface {
	Run(ctx context.Context, req *synccit.CommandRequest) (*terminal.Result, error)
}

// Translator turns a natural-language request into a shell command.
type Translator interface {
	Translate(ctx context.Context, req *synccit.TranslateRequest) (*synccit.Translation, error)
}

// Options wires the server's collaborators. Projects, Watcher and
// Translator are optional; their endpoints answer 503 when unset.
type Options struct {
	Config     *synccit.Config
	Dispatcher Dispatcher
	Runner     Runner
	Translator Translator
	Workspace  *workspace.Workspace
	Projects   *workspace.ProjectCache
	Watcher    *workspace.Watcher
	Logger     *zap.Logger
	Registry   *prometheus.Registry
}

// Server is the HTTP front end for the dispatcher, the gate and the workspace.
type Server struct {
	cfg        *synccit.Config
	dispatcher Dispatcher
	runner     Runner
	translator Translator
	ws         *workspace.Workspace
	projects   *workspace.ProjectCache
	watcher    *workspace.Watcher
	logger     *zap.Logger
	registry   *prometheus.Registry
	metrics    *metrics
	upgrader   websocket.Upgrader
	router     chi.Router
}

// NewServer builds the router. A nil registry gets a private one.
func NewServer(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = synccit.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	s := &Server{
		cfg:        opts.Config,
		dispatcher: opts.Dispatcher,
		runner:     opts.Runner,
		translator: opts.Translator,
		ws:         opts.Workspace,
		projects:   opts.Projects,
		watcher:    opts.Watcher,
		logger:     opts.Logger,
		registry:   opts.Registry,
		metrics:    newMetrics(opts.Registry),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	aiPath := strings.TrimRight(s.cfg.Server.AIPath, "/")
	termPath := strings.TrimRight(s.cfg.Server.TerminalPath, "/")

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(s.logger, s.metrics))
	r.Use(recoverer(s.logger, s.panicBody))
	r.Use(cors(aiPath, termPath))

	// Method checks live in the handlers so the 405 bodies keep each
	// endpoint's response shape.
	r.HandleFunc(aiPath+"/{action}", s.handleAction)
	r.HandleFunc(termPath, s.handleCommand)

	r.Route("/api", func(r chi.Router) {
		r.Get("/files", s.handleTree)
		r.Get("/file", s.handleReadFile)
		r.Post("/file", s.handleWriteFile)
		r.Post("/upload", s.handleUpload)
		r.Get("/project", s.handleProject)
		r.Post("/agent", s.handleAgent)
	})

	r.Get("/ws/terminal", s.handleTerminalSocket)
	r.Get("/ws/fs", s.handleFSSocket)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) panicBody(r *http.Request, msg string) any {
	path := r.URL.Path
	switch {
	case path == strings.TrimRight(s.cfg.Server.TerminalPath, "/"):
		return synccit.CommandResponse{Error: "Server error: " + msg, NewCwd: s.defaultCwd()}
	case strings.HasPrefix(path, strings.TrimRight(s.cfg.Server.AIPath, "/")+"/"):
		return synccit.ErrorResponse{Detail: "Internal error: " + msg}
	default:
		return synccit.APIError{Error: msg}
	}
}

func (s *Server) defaultCwd() string {
	if g, ok := s.runner.(interface{ DefaultCwd() string }); ok {
		return g.DefaultCwd()
	}
	if s.cfg.Terminal.DefaultCwd != "" {
		return s.cfg.Terminal.DefaultCwd
	}
	return "/tmp"
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, synccit.ErrorResponse{Detail: "POST only"})
		return
	}
	action, err := assist.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		s.metrics.observeAction("unknown", assist.KindClient.String(), 0)
		writeActionError(w, err)
		return
	}

	var req synccit.ActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.metrics.observeAction(action.String(), assist.KindClient.String(), 0)
		writeJSON(w, http.StatusBadRequest, synccit.ErrorResponse{Detail: "Invalid request body: " + err.Error()})
		return
	}

	start := time.Now()
	resp, err := s.dispatcher.Dispatch(r.Context(), action, &req)
	if err != nil {
		outcome := assist.KindInternal.String()
		var ae *assist.Error
		if errors.As(err, &ae) {
			outcome = ae.Kind.String()
		}
		s.metrics.observeAction(action.String(), outcome, time.Since(start))
		writeActionError(w, err)
		return
	}
	s.metrics.observeAction(action.String(), "ok", time.Since(start))
	writeJSON(w, http.StatusOK, resp)
}

func writeActionError(w http.ResponseWriter, err error) {
	var ae *assist.Error
	if errors.As(err, &ae) {
		writeJSON(w, ae.HTTPStatus(), synccit.ErrorResponse{Detail: ae.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, synccit.ErrorResponse{Detail: "Internal error: " + err.Error()})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, synccit.CommandResponse{Error: "POST only", NewCwd: s.defaultCwd()})
		return
	}
	var req synccit.CommandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, synccit.CommandResponse{Error: "Invalid request body: " + err.Error(), NewCwd: s.defaultCwd()})
		return
	}

	res, err := s.runner.Run(r.Context(), &req)
	if err != nil {
		s.metrics.commands.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusInternalServerError, synccit.CommandResponse{Error: "Server error: " + err.Error(), NewCwd: s.defaultCwd()})
		return
	}
	s.metrics.commands.WithLabelValues(string(res.Outcome)).Inc()
	if res.Duration > 0 {
		s.metrics.commandDuration.Observe(res.Duration.Seconds())
	}
	writeJSON(w, http.StatusOK, res.Response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, synccit.Health{Status: "healthy", Service: "synccit", Version: Version})
}

// decodeJSON reads a bounded JSON body. An empty body decodes to the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
