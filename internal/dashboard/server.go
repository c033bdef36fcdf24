// Package dashboard serves the diffview HTTP API and the change-notification
// websocket.
package dashboard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sergeknystautas/diffview/internal/config"
	"github.com/sergeknystautas/diffview/internal/detect"
	"github.com/sergeknystautas/diffview/internal/diff"
	"github.com/sergeknystautas/diffview/internal/github"
	"github.com/sergeknystautas/diffview/internal/session"
	"github.com/sergeknystautas/diffview/internal/state"
	"github.com/sergeknystautas/diffview/internal/workspace"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 60 * time.Second // PR diffs fetch from the remote
	shutdownTimeout = 5 * time.Second

	tracerName = "github.com/sergeknystautas/diffview/internal/dashboard"
)

// EditorResolver finds the editor command used by POST /api/open.
type EditorResolver func(ctx context.Context, preferred string) (detect.EditorPath, bool)

// EditorOpener launches the editor on a file.
type EditorOpener func(ctx context.Context, editor detect.EditorPath, path string, line int) error

// Options holds the server's collaborators.
type Options struct {
	Config    *config.Config
	State     state.StateStore
	Registry  *session.Registry
	Workspace workspace.WorkspaceManager
	// PRs supplies PR metadata; nil disables it (PR views degrade).
	PRs           github.PRSource
	CommitCache   *cache.Cache
	ResolveEditor EditorResolver
	OpenEditor    EditorOpener
	Logger        *slog.Logger
}

// Server represents the dashboard HTTP server.
type Server struct {
	config        *config.Config
	state         state.StateStore
	registry      *session.Registry
	workspace     workspace.WorkspaceManager
	prs           github.PRSource
	commitCache   *cache.Cache
	resolveEditor EditorResolver
	openEditor    EditorOpener
	logger        *slog.Logger
	tracer        trace.Tracer

	httpServer *http.Server

	// beforeSubscribe runs between the websocket upgrade and the channel
	// subscription. Tests use it.
	beforeSubscribe func()
}

// NewServer creates a new dashboard server and subscribes it to repository
// switches so the active repository is persisted.
func NewServer(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = config.CreateDefault("")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CommitCache == nil {
		opts.CommitCache = diff.NewCommitCache(opts.Config.CommitCacheTTL())
	}
	if opts.ResolveEditor == nil {
		opts.ResolveEditor = detect.ResolveEditor
	}
	if opts.OpenEditor == nil {
		opts.OpenEditor = detect.Open
	}
	s := &Server{
		config:        opts.Config,
		state:         opts.State,
		registry:      opts.Registry,
		workspace:     opts.Workspace,
		prs:           opts.PRs,
		commitCache:   opts.CommitCache,
		resolveEditor: opts.ResolveEditor,
		openEditor:    opts.OpenEditor,
		logger:        opts.Logger.With("component", "dashboard"),
		tracer:        otel.Tracer(tracerName),
	}
	s.registry.OnSwitch(s.onRepoSwitched)
	return s
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/config", s.handleConfig)

	mux.HandleFunc("GET /api/diff", s.handleWorkingDiff)
	mux.HandleFunc("GET /api/diff/file", s.handleFilePatch)
	mux.HandleFunc("GET /api/file", s.handleFileContent)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/commit/{sha}", s.handleCommit)
	mux.HandleFunc("GET /api/branches", s.handleBranches)
	mux.HandleFunc("GET /api/compare", s.handleCompare)

	mux.HandleFunc("GET /api/prs", s.handlePRs)
	mux.HandleFunc("GET /api/pr/{n}", s.handlePR)
	mux.HandleFunc("POST /api/pr/{n}/checkout", s.handlePRCheckout)
	mux.HandleFunc("POST /api/pr/{n}/worktree", s.handlePRWorktreeOpen)
	mux.HandleFunc("DELETE /api/pr/{n}/worktree", s.handlePRWorktreeClose)
	mux.HandleFunc("POST /api/fetch", s.handleFetch)

	mux.HandleFunc("GET /api/worktrees", s.handleWorktrees)
	mux.HandleFunc("POST /api/worktrees/switch", s.handleWorktreeSwitch)
	mux.HandleFunc("POST /api/open", s.handleOpen)

	mux.HandleFunc("GET /ws/changes", s.handleChangesWebSocket)

	return s.withCORS(s.withTracing(mux))
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.GetListenAddr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.GetListenAddr(), err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Stop.
func (s *Server) Serve(ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	s.logger.Info("server listening", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down and closes the active change channel,
// which disconnects websocket subscribers.
func (s *Server) Stop() error {
	s.registry.Close()
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Restore makes the first usable repository active: the path recorded in
// state, then the configured default, then fallback.
func (s *Server) Restore(ctx context.Context, fallback string) error {
	var candidates []string
	if s.state != nil {
		candidates = append(candidates, s.state.GetActiveRepo())
	}
	candidates = append(candidates, s.config.DefaultRepo, fallback)

	var lastErr error
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := s.registry.Switch(ctx, path); err != nil {
			s.logger.Warn("cannot restore repository", "path", path, "err", err)
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("no repository to serve")
	}
	return lastErr
}

func (s *Server) onRepoSwitched(old, current session.Active) {
	if s.state == nil {
		return
	}
	s.state.SetActiveRepo(current.RepoPath, time.Now())
	if err := s.state.Save(); err != nil {
		s.logger.Warn("failed to save state", "err", err)
	}
}

// isAllowedOrigin accepts browser origins served from this machine.
func (s *Server) isAllowedOrigin(origin string) bool {
	port := s.config.GetPort()
	for _, host := range []string{"localhost", "127.0.0.1"} {
		if origin == fmt.Sprintf("http://%s:%d", host, port) {
			return true
		}
	}
	return false
}

// withCORS wraps a handler with CORS headers. Requests without an Origin
// (CLI and TUI clients) pass through.
func (s *Server) withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if !s.isAllowedOrigin(origin) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// withTracing starts a span per request named after the matched route.
func (s *Server) withTracing(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pattern := mux.Handler(r)
		if pattern == "" {
			pattern = r.Method + " unmatched"
		}
		ctx, span := s.tracer.Start(r.Context(), pattern,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.target", r.URL.Path)))
		defer span.End()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		s.logger.Debug("request", "route", pattern, "status", rec.status, "duration", time.Since(start))
	})
}

// statusRecorder captures the response status. It forwards Hijack so the
// websocket upgrade keeps working behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
