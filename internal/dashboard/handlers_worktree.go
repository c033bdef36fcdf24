package dashboard

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/apperr"
)

// handleWorktrees handles GET /api/worktrees.
func (s *Server) handleWorktrees(w http.ResponseWriter, r *http.Request) {
	a, release, err := s.resolve(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer release()

	activePath := ""
	if cur, ok := s.registry.Snapshot(); ok {
		activePath = cur.RepoPath
	}
	worktrees, err := s.workspace.ListWorktrees(r.Context(), a.Client, activePath)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if worktrees == nil {
		worktrees = []contracts.WorktreeInfo{}
	}
	writeJSON(w, http.StatusOK, worktrees)
}

// handleWorktreeSwitch handles POST /api/worktrees/switch. Subscribers of the
// previous repository are told about the switch and disconnected.
func (s *Server) handleWorktreeSwitch(w http.ResponseWriter, r *http.Request) {
	const op = "dashboard.WorktreeSwitch"
	var req contracts.SwitchWorktreeRequest
	if err := decodeBody(w, r, op, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		s.writeError(w, r, apperr.Invalid(op, "path is required"))
		return
	}
	a, err := s.registry.Switch(r.Context(), req.Path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contracts.SwitchWorktreeResponse{Path: a.RepoPath})
}

// handleOpen handles POST /api/open. The path is relative to the repository
// and may not escape it.
func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	const op = "dashboard.Open"
	var req contracts.OpenFileRequest
	if err := decodeBody(w, r, op, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Path == "" || filepath.IsAbs(req.Path) || !filepath.IsLocal(req.Path) {
		s.writeError(w, r, apperr.Invalid(op, "path must be relative to the repository: %q", req.Path))
		return
	}
	if req.Line < 0 {
		s.writeError(w, r, apperr.Invalid(op, "line must not be negative"))
		return
	}

	a, release, err := s.resolve(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer release()

	editor, ok := s.resolveEditor(r.Context(), s.config.GetEditorCommand())
	if !ok {
		s.writeError(w, r, apperr.Unavailable(op, nil, "no editor found; set editor.command in the config"))
		return
	}
	full := filepath.Join(a.RepoPath, req.Path)
	if err := s.openEditor(r.Context(), editor, full, req.Line); err != nil {
		s.writeError(w, r, apperr.Unavailable(op, err, "failed to launch %s", editor.Name))
		return
	}
	s.logger.Info("opened file in editor", "editor", editor.Name, "path", req.Path, "line", req.Line)
	writeJSON(w, http.StatusOK, contracts.OKResponse{OK: true})
}
