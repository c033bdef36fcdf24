package diff

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/apperr"
	"github.com/sergeknystautas/diffview/internal/difftool"
	"github.com/sergeknystautas/diffview/internal/vcs"
)

// FilePatchRequest identifies one file's patch in a given diff context.
type FilePatchRequest struct {
	Path string
	// OldPath is the source of a rename. Without it a renamed file diffs
	// as an addition.
	OldPath string
	// Mode is contracts.PatchModeWorking (default), PatchModeCommit or
	// PatchModeCompare.
	Mode         string
	Ref          string
	Base         string
	Head         string
	UseMergeBase bool
}

// FilePatch returns the full patch of one file. It is never size-gated and
// serves files marked IsLarge in aggregate results.
func (s *Service) FilePatch(ctx context.Context, req FilePatchRequest) (text string, err error) {
	const op = "diff.FilePatch"
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return "", apperr.Invalid(op, "path is required")
	}
	ctx, span := s.startSpan(ctx, op, attribute.String("file.path", path), attribute.String("patch.mode", req.Mode))
	defer func() { endSpan(span, err) }()

	var from, to string
	switch req.Mode {
	case "", contracts.PatchModeWorking:
		from = s.workingBase(ctx)
	case contracts.PatchModeCommit:
		if req.Ref == "" {
			return "", apperr.Invalid(op, "ref is required in commit mode")
		}
		c, err := s.client.CommitInfo(ctx, req.Ref)
		if err != nil {
			return "", mapVCSError(op, err, "commit %s not found", req.Ref)
		}
		from, to = vcs.EmptyTree, c.SHA
		if len(c.Parents) > 0 {
			from = c.Parents[0]
		}
	case contracts.PatchModeCompare:
		if req.Base == "" || req.Head == "" {
			return "", apperr.Invalid(op, "base and head are required in compare mode")
		}
		from, to = req.Base, req.Head
		if req.UseMergeBase {
			mb, err := s.client.MergeBase(ctx, req.Base, req.Head)
			if err != nil {
				return "", mapVCSError(op, err, "%s and %s have no common ancestor", req.Base, req.Head)
			}
			from = mb
		}
	default:
		return "", apperr.Invalid(op, "unknown mode %q", req.Mode)
	}

	paths := patchPaths(contracts.FileDiffInfo{Path: path, OldPath: strings.TrimSpace(req.OldPath)})
	text, err = s.client.RawDiff(ctx, from, to, paths...)
	if err != nil {
		return "", mapVCSError(op, err, "failed to diff %s", path)
	}
	if text == "" && to == "" {
		if synth, ok := s.untrackedPatch(ctx, path); ok {
			return synth, nil
		}
	}
	return text, nil
}

// FileContent returns a file's content from the working tree (empty ref) or
// from ref. Images and binary data are base64 encoded.
func (s *Service) FileContent(ctx context.Context, path, ref string) (result contracts.FileContent, err error) {
	const op = "diff.FileContent"
	path = strings.TrimSpace(path)
	if path == "" {
		return contracts.FileContent{}, apperr.Invalid(op, "path is required")
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if !filepath.IsLocal(clean) {
		return contracts.FileContent{}, apperr.Invalid(op, "path %q escapes the repository", path)
	}
	ctx, span := s.startSpan(ctx, op, attribute.String("file.path", path), attribute.String("file.ref", ref))
	defer func() { endSpan(span, err) }()

	var data []byte
	if ref == "" {
		data, err = os.ReadFile(filepath.Join(s.client.RepoPath(), clean))
		if errors.Is(err, os.ErrNotExist) {
			return contracts.FileContent{}, apperr.NotFound(op, "file %s not found", path)
		}
		if err != nil {
			return contracts.FileContent{}, apperr.Wrap(apperr.KindInternal, op, err, "failed to read %s", path)
		}
	} else {
		data, err = s.client.Show(ctx, ref, filepath.ToSlash(clean))
		if err != nil {
			return contracts.FileContent{}, mapVCSError(op, err, "file %s not found at %s", path, ref)
		}
	}

	encoding, mimeType, binary := difftool.Classify(path, data)
	result = contracts.FileContent{
		Path:     path,
		Ref:      ref,
		Encoding: encoding,
		MimeType: mimeType,
		Binary:   binary,
	}
	if encoding == difftool.EncodingBase64 {
		result.Content = base64.StdEncoding.EncodeToString(data)
	} else {
		result.Content = string(data)
	}
	return result, nil
}

// History returns one page of commits reachable from ref (HEAD when empty).
// Pages are 1-based.
func (s *Service) History(ctx context.Context, ref string, page, perPage int) (result contracts.HistoryPage, err error) {
	const op = "diff.History"
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	ctx, span := s.startSpan(ctx, op, attribute.String("history.ref", ref), attribute.Int("history.page", page))
	defer func() { endSpan(span, err) }()

	result = contracts.HistoryPage{Commits: []contracts.CommitInfo{}, Page: page}
	if ref == "" {
		if !s.client.HasHead(ctx) {
			return result, nil
		}
		ref = "HEAD"
	}

	total, err := s.client.RevListCount(ctx, ref)
	if err != nil {
		return contracts.HistoryPage{}, mapVCSError(op, err, "ref %s not found", ref)
	}
	commits, err := s.client.Log(ctx, vcs.LogOptions{Ref: ref, MaxCount: perPage, Skip: (page - 1) * perPage})
	if err != nil {
		return contracts.HistoryPage{}, mapVCSError(op, err, "failed to read history of %s", ref)
	}
	for _, c := range commits {
		result.Commits = append(result.Commits, toCommitInfo(c))
	}
	result.Total = total
	result.TotalPages = (total + perPage - 1) / perPage
	return result, nil
}

// Branches lists local and remote-tracking branches and the current branch.
func (s *Service) Branches(ctx context.Context) (contracts.BranchList, error) {
	const op = "diff.Branches"
	branches, err := s.client.BranchList(ctx)
	if err != nil {
		return contracts.BranchList{}, mapVCSError(op, err, "failed to list branches")
	}
	list := contracts.BranchList{Branches: make([]contracts.BranchInfo, 0, len(branches))}
	for _, b := range branches {
		if b.IsCurrent {
			list.Current = b.Name
		}
		list.Branches = append(list.Branches, contracts.BranchInfo{
			Name:         b.Name,
			IsRemote:     b.IsRemote,
			Commit:       b.Commit,
			LastActivity: b.LastActivity,
		})
	}
	return list, nil
}
