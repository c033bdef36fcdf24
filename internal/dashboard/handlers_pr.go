package dashboard

import (
	"net/http"
	"strconv"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/apperr"
	"github.com/sergeknystautas/diffview/internal/diff"
	"github.com/sergeknystautas/diffview/internal/session"
	"github.com/sergeknystautas/diffview/internal/state"
	"github.com/sergeknystautas/diffview/internal/vcs"
)

// prNumber parses the {n} path segment.
func prNumber(r *http.Request, op string) (int, error) {
	raw := r.PathValue("n")
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperr.Invalid(op, "invalid PR number %q", raw)
	}
	return n, nil
}

// invalidatePRs drops cached PR metadata for repo after operations that
// change what the remote reports.
func (s *Server) invalidatePRs(repo string) {
	if inv, ok := s.prs.(interface{ Invalidate(string) }); ok {
		inv.Invalidate(repo)
	}
}

// handlePRs handles GET /api/prs. Metadata failures degrade to an empty
// list with metadata_unavailable set rather than an error status.
func (s *Server) handlePRs(w http.ResponseWriter, r *http.Request) {
	s.withService(w, r, func(a session.Active, svc *diff.Service) (any, error) {
		resp, err := svc.ListPRs(r.Context())
		if resp.PullRequests == nil {
			resp.PullRequests = []contracts.PullRequest{}
		}
		return resp, err
	})
}

// handlePR handles GET /api/pr/{n}.
func (s *Server) handlePR(w http.ResponseWriter, r *http.Request) {
	n, err := prNumber(r, "dashboard.PR")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.withService(w, r, func(a session.Active, svc *diff.Service) (any, error) {
		return svc.PR(r.Context(), n)
	})
}

// handlePRCheckout handles POST /api/pr/{n}/checkout.
func (s *Server) handlePRCheckout(w http.ResponseWriter, r *http.Request) {
	n, err := prNumber(r, "dashboard.PRCheckout")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.withService(w, r, func(a session.Active, svc *diff.Service) (any, error) {
		branch, err := s.workspace.CheckoutPR(r.Context(), a.Client, svc, n)
		if err != nil {
			return nil, err
		}
		return contracts.PRCheckoutResponse{Branch: branch}, nil
	})
}

// handlePRWorktreeOpen handles POST /api/pr/{n}/worktree.
func (s *Server) handlePRWorktreeOpen(w http.ResponseWriter, r *http.Request) {
	n, err := prNumber(r, "dashboard.PRWorktreeOpen")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.withService(w, r, func(a session.Active, svc *diff.Service) (any, error) {
		return s.workspace.OpenPRWorktree(r.Context(), a.Client, svc, n)
	})
}

// handlePRWorktreeClose handles DELETE /api/pr/{n}/worktree. The request
// may target the main repository or the PR worktree itself. Closing the
// worktree the server is serving switches back to the main repository first.
func (s *Server) handlePRWorktreeClose(w http.ResponseWriter, r *http.Request) {
	const op = "dashboard.PRWorktreeClose"
	n, err := prNumber(r, op)
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

	client := a.Client
	if wt, ok := s.findPRWorktree(a.RepoPath, n); ok {
		if wt.RepoPath != a.RepoPath {
			if client, err = vcs.Open(wt.RepoPath, nil); err != nil {
				s.writeError(w, r, apperr.Wrap(apperr.KindInternal, op, err, "cannot open %s", wt.RepoPath))
				return
			}
		}
		if cur, ok := s.registry.Snapshot(); ok && cur.RepoPath == wt.Path {
			if _, err := s.registry.Switch(r.Context(), wt.RepoPath); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
	}
	if err := s.workspace.ClosePRWorktree(r.Context(), client, n); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contracts.OKResponse{OK: true})
}

// findPRWorktree looks up PR n's worktree by its main repository or by the
// worktree path itself.
func (s *Server) findPRWorktree(repo string, n int) (state.PRWorktree, bool) {
	if s.state == nil {
		return state.PRWorktree{}, false
	}
	for _, wt := range s.state.GetPRWorktrees() {
		if wt.Number == n && (wt.RepoPath == repo || wt.Path == repo) {
			return wt, true
		}
	}
	return state.PRWorktree{}, false
}

// handleFetch handles POST /api/fetch.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	a, release, err := s.resolve(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer release()

	if err := s.workspace.Fetch(r.Context(), a.Client); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.invalidatePRs(a.RepoPath)
	writeJSON(w, http.StatusOK, contracts.OKResponse{OK: true})
}
