package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/tabs"
	"github.com/sergeknystautas/diffview/pkg/cli"
)

const (
	fetchTimeout     = 60 * time.Second
	actionTimeout    = 2 * time.Minute
	resolveInterval  = 50 * time.Millisecond
	resubscribeDelay = 2 * time.Second
	historyPerPage   = 50
)

// loadedMsg carries a tab's fetch result. token identifies the request; a
// response whose token is no longer current is dropped.
type loadedMsg struct {
	tabID   string
	token   uint64
	files   []contracts.FileDiffInfo
	stats   contracts.DiffStats
	compare *contracts.CompareResult
	commit  *contracts.CommitDiff
	pr      *contracts.PRDiff
	history *contracts.HistoryPage
	err     error
}

// patchLoadedMsg carries a large file's patch.
type patchLoadedMsg struct {
	tabID string
	token uint64
	path  string
	text  string
	err   error
}

type subscribedMsg struct {
	events <-chan contracts.ChangeEvent
}

type changeMsg struct {
	event contracts.ChangeEvent
}

type subscriptionEndedMsg struct {
	err error
}

type resubscribeMsg struct{}

type resolveTickMsg struct{}

// actionDoneMsg reports a one-shot command such as fetch or checkout.
type actionDoneMsg struct {
	status  string
	err     error
	refresh bool
	newTab  *tabs.Config
}

func useMergeBase(t tabs.Tab) bool {
	return t.Context.UseMergeBase == nil || *t.Context.UseMergeBase
}

// sourceKey identifies what a tab's file list was computed from.
func sourceKey(t tabs.Tab) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%d|%t|%s",
		t.ID, t.Type, t.Context.BaseBranch, t.Context.HeadBranch, t.Context.CommitSHA,
		t.Context.PRNumber, useMergeBase(t), t.RepoPath)
}

func fetchTab(client cli.DaemonClient, t tabs.Tab, token uint64, page int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		msg := loadedMsg{tabID: t.ID, token: token}
		switch t.Type {
		case tabs.TypeWorkingChanges, tabs.TypeWorktree:
			res, err := client.WorkingDiff(ctx)
			msg.files, msg.stats, msg.err = res.Files, res.Stats, err
		case tabs.TypeBranchCompare:
			res, err := client.Compare(ctx, t.Context.BaseBranch, t.Context.HeadBranch, useMergeBase(t))
			if err == nil {
				msg.compare = &res
			}
			msg.files, msg.stats, msg.err = res.Files, res.Stats, err
		case tabs.TypeCommit:
			res, err := client.Commit(ctx, t.Context.CommitSHA)
			if err == nil {
				msg.commit = &res
			}
			msg.files, msg.stats, msg.err = res.Files, res.Stats, err
		case tabs.TypePR:
			res, err := client.PR(ctx, t.Context.PRNumber)
			if err == nil {
				msg.pr = &res
			}
			msg.files, msg.stats, msg.err = res.Files, res.Stats, err
		case tabs.TypeHistory:
			res, err := client.History(ctx, t.Context.HeadBranch, page, historyPerPage)
			if err == nil {
				msg.history = &res
			}
			msg.err = err
		default:
			msg.err = fmt.Errorf("unknown tab type %q", t.Type)
		}
		return msg
	}
}

// patchQuery describes how to fetch one file of the tab's diff.
func patchQuery(t tabs.Tab, v *tabView, path string) cli.FilePatchQuery {
	q := cli.FilePatchQuery{Path: path, Mode: contracts.PatchModeWorking}
	for _, f := range v.files {
		if f.Path == path {
			q.OldPath = f.OldPath
			break
		}
	}
	switch t.Type {
	case tabs.TypeCommit:
		q.Mode = contracts.PatchModeCommit
		q.Ref = t.Context.CommitSHA
	case tabs.TypeBranchCompare:
		q.Mode = contracts.PatchModeCompare
		q.Base, q.Head = t.Context.BaseBranch, t.Context.HeadBranch
		q.UseMergeBase = useMergeBase(t)
	case tabs.TypePR:
		q.Mode = contracts.PatchModeCompare
		q.UseMergeBase = true
		if v.pr != nil {
			q.Base, q.Head = v.pr.Base, v.pr.Head
		}
	}
	return q
}

func fetchPatch(client cli.DaemonClient, tabID string, token uint64, q cli.FilePatchQuery) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		text, err := client.FilePatch(ctx, q)
		return patchLoadedMsg{tabID: tabID, token: token, path: q.Path, text: text, err: err}
	}
}

func subscribe(ctx context.Context, client cli.DaemonClient) tea.Cmd {
	return func() tea.Msg {
		events, err := client.Subscribe(ctx)
		if err != nil {
			return subscriptionEndedMsg{err: err}
		}
		return subscribedMsg{events: events}
	}
}

func waitForEvent(events <-chan contracts.ChangeEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return subscriptionEndedMsg{}
		}
		return changeMsg{event: ev}
	}
}

func resubscribeLater() tea.Cmd {
	return tea.Tick(resubscribeDelay, func(time.Time) tea.Msg { return resubscribeMsg{} })
}

func resolveLater() tea.Cmd {
	return tea.Tick(resolveInterval, func(time.Time) tea.Msg { return resolveTickMsg{} })
}

// action runs fn as a one-shot command with a timeout.
func action(fn func(ctx context.Context) actionDoneMsg) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return fn(ctx)
	}
}

// prCleanup removes a closed PR tab's worktree. A worktree that was never
// created is not an error.
func prCleanup(client cli.DaemonClient) tabs.CleanupFunc {
	return func(ctx context.Context, t tabs.Tab) error {
		if t.Context.PRNumber <= 0 {
			return nil
		}
		err := client.ClosePRWorktree(ctx, t.Context.PRNumber)
		if err != nil && cli.ErrorKind(err) != "not_found" {
			return err
		}
		return nil
	}
}
