package dashboard

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/apperr"
	"github.com/sergeknystautas/diffview/internal/diff"
	"github.com/sergeknystautas/diffview/internal/session"
	"github.com/sergeknystautas/diffview/internal/version"
)

// maxBodyBytes limits JSON request bodies.
const maxBodyBytes = 64 * 1024

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"error", "kind"} with the status of its kind.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, contracts.ErrorResponse{
		Error: apperr.Message(err),
		Kind:  apperr.KindOf(err).String(),
	})
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, op string, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Wrap(apperr.KindInvalidInput, op, err, "invalid request body")
	}
	return nil
}

// resolve returns the repository for r, honoring the ?repo= override.
func (s *Server) resolve(r *http.Request) (session.Active, func(), error) {
	return s.registry.Resolve(r.URL.Query().Get("repo"))
}

// service builds a diff service for the resolved repository.
func (s *Server) service(a session.Active) *diff.Service {
	return diff.New(a.Client, diff.Options{
		LargeFileThreshold: s.config.GetLargeFileThreshold(),
		MaxParallel:        s.config.GetMaxParallel(),
		CommitCache:        s.commitCache,
		PRs:                s.prs,
		Logger:             s.logger,
	})
}

// withService resolves the repository and runs fn with its diff service.
func (s *Server) withService(w http.ResponseWriter, r *http.Request, fn func(a session.Active, svc *diff.Service) (any, error)) {
	a, release, err := s.resolve(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer release()

	result, err := fn(a, s.service(a))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, op, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Invalid(op, "%s must be an integer, got %q", name, raw)
	}
	return n, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, op, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.Invalid(op, "%s must be a boolean, got %q", name, raw)
	}
	return b, nil
}

// handleHealthz handles GET /api/healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := contracts.HealthResponse{Status: "ok", Version: version.Version}
	if a, ok := s.registry.Snapshot(); ok {
		resp.Repo = a.RepoPath
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleConfig handles GET /api/config.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, contracts.ClientConfig{
		DefaultRepo:        s.config.DefaultRepo,
		DiffStyle:          s.config.GetDiffStyle(),
		LargeFileThreshold: s.config.GetLargeFileThreshold(),
		EditorConfigured:   s.config.GetEditorCommand() != "",
	})
}

// handleWorkingDiff handles GET /api/diff.
func (s *Server) handleWorkingDiff(w http.ResponseWriter, r *http.Request) {
	s.withService(w, r, func(a session.Active, svc *diff.Service) (any, error) {
		return svc.WorkingTree(r.Context())
	})
}

// handleFilePatch handles GET /api/diff/file and returns the raw patch text.
func (s *Server) handleFilePatch(w http.ResponseWriter, r *http.Request) {
	const op = "dashboard.FilePatch"
	q := r.URL.Query()
	useMergeBase, err := queryBool(r, op, "merge_base", true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, release, err := s.resolve(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer release()

	text, err := s.service(a).FilePatch(r.Context(), diff.FilePatchRequest{
		Path:         q.Get("path"),
		OldPath:      q.Get("old_path"),
		Mode:         q.Get("mode"),
		Ref:          q.Get("ref"),
		Base:         q.Get("base"),
		Head:         q.Get("head"),
		UseMergeBase: useMergeBase,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, text)
}

// handleFileContent handles GET /api/file.
func (s *Server) handleFileContent(w http.ResponseWriter, r *http.Request) {
	s.withService(w, r, func(a session.Active, svc *diff.Service) (any, error) {
		return svc.FileContent(r.Context(), r.URL.Query().Get("path"), r.URL.Query().Get("ref"))
	})
}

// handleHistory handles GET /api/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	const op = "dashboard.History"
	page, err := queryInt(r, op, "page")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	perPage, err := queryInt(r, op, "per_page")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.withService(w, r, func(a session.Active, svc *diff.Service) (any, error) {
		return svc.History(r.Context(), r.URL.Query().Get("ref"), page, perPage)
	})
}

// handleCommit handles GET /api/commit/{sha}.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	s.withService(w, r, func(a session.Active, svc *diff.Service) (any, error) {
		return svc.Commit(r.Context(), r.PathValue("sha"))
	})
}

// handleBranches handles GET /api/branches.
func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request) {
	s.withService(w, r, func(a session.Active, svc *diff.Service) (any, error) {
		return svc.Branches(r.Context())
	})
}

// handleCompare handles GET /api/compare?base=&head=&merge_base=.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	const op = "dashboard.Compare"
	useMergeBase, err := queryBool(r, op, "merge_base", true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.withService(w, r, func(a session.Active, svc *diff.Service) (any, error) {
		q := r.URL.Query()
		return svc.Compare(r.Context(), q.Get("base"), q.Get("head"), diff.CompareOptions{UseMergeBase: useMergeBase})
	})
}
