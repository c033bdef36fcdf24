// Package tui is the terminal client. It fetches diffs from the daemon,
// filters them, lays them out in a virtualized list and drives that list
// with vim-style keys. Each tab keeps its own fetch token so late responses
// for a tab's previous context are dropped.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sergeknystautas/diffview/internal/api/contracts"
	"github.com/sergeknystautas/diffview/internal/filter"
	"github.com/sergeknystautas/diffview/internal/logging"
	"github.com/sergeknystautas/diffview/internal/tabs"
	"github.com/sergeknystautas/diffview/internal/vimnav"
	"github.com/sergeknystautas/diffview/pkg/cli"
)

type inputMode int

const (
	inputNone inputMode = iota
	inputCommand
	inputFilter
)

// chromeRows is the tab bar, the context line and the footer.
const chromeRows = 3

// tabView is the client-side state of one tab.
type tabView struct {
	token   uint64
	loading bool
	loaded  bool
	stale   bool
	err     error

	files   []contracts.FileDiffInfo
	stats   contracts.DiffStats
	compare *contracts.CompareResult
	commit  *contracts.CommitDiff
	pr      *contracts.PRDiff
	history *contracts.HistoryPage

	histPage int
	histSel  int

	memo     filter.Memo
	renderer *diffRenderer
	nav      *vimnav.Navigator
	inflight map[string]bool

	showDescription bool
	restored        bool
}

// Options configures the model.
type Options struct {
	Client cli.DaemonClient
	// ForRepo returns a client bound to another repository, for worktree
	// tabs. When nil those tabs use Client.
	ForRepo func(repo string) cli.DaemonClient
	Tabs    *tabs.Store
	Prefs   filter.Persister
	Filters filter.Filters
	Repo    string
	// DiffStyle is the default for tabs without one.
	DiffStyle string
	// LiveUpdates subscribes to change notifications.
	LiveUpdates bool
	Logger      *slog.Logger
	// Now is the navigator clock.
	Now func() time.Time
}

// Model is the bubbletea model.
type Model struct {
	ctx     context.Context
	client  cli.DaemonClient
	forRepo func(repo string) cli.DaemonClient
	store   *tabs.Store
	prefs   filter.Persister
	filters filter.Filters
	views   map[string]*tabView
	logger  *slog.Logger
	now     func() time.Time

	keys      keyMap
	help      help.Model
	input     textinput.Model
	inputMode inputMode
	spinner   spinner.Model
	md        *markdownRenderer

	live      bool
	repo      string
	diffStyle string

	width     int
	height    int
	status    string
	statusErr bool
}

// New returns a model over opts.Tabs.
func New(ctx context.Context, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	style := opts.DiffStyle
	if style == "" {
		style = contracts.DiffStyleUnified
	}
	ti := textinput.New()
	ti.CharLimit = 256
	return Model{
		ctx:       ctx,
		client:    opts.Client,
		forRepo:   opts.ForRepo,
		store:     opts.Tabs,
		prefs:     opts.Prefs,
		filters:   opts.Filters,
		views:     map[string]*tabView{},
		logger:    logging.Component(logger, "tui"),
		now:       opts.Now,
		keys:      defaultKeyMap(),
		help:      help.New(),
		input:     ti,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(statusStyle)),
		md:        &markdownRenderer{},
		live:      opts.LiveUpdates,
		repo:      opts.Repo,
		diffStyle: style,
	}
}

// Init loads the active tab and subscribes to changes.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.ensureLoaded(m.store.Active())}
	if m.live {
		cmds = append(cmds, subscribe(m.ctx, m.client))
	}
	return tea.Batch(cmds...)
}

func (m Model) bodyHeight() int {
	return max(1, m.height-chromeRows)
}

func (m Model) clientFor(t tabs.Tab) cli.DaemonClient {
	if t.Type == tabs.TypeWorktree && t.RepoPath != "" && m.forRepo != nil {
		return m.forRepo(t.RepoPath)
	}
	return m.client
}

func (m Model) styleFor(t tabs.Tab) string {
	if t.ViewState.DiffStyle != "" {
		return t.ViewState.DiffStyle
	}
	return m.diffStyle
}

func isDiffTab(t tabs.Tab) bool {
	return t.Type != tabs.TypeHistory
}

func (m Model) view(t tabs.Tab) *tabView {
	v, ok := m.views[t.ID]
	if !ok {
		r := newDiffRenderer(m.styleFor(t), m.logger)
		r.list.SetViewport(m.bodyHeight())
		v = &tabView{
			renderer: r,
			nav:      vimnav.New(r, vimnav.Options{Now: m.now}),
			inflight: map[string]bool{},
			histPage: 1,
		}
		m.views[t.ID] = v
	}
	return v
}

// fetch starts a new request for t, superseding any in flight.
func (m Model) fetch(t tabs.Tab) tea.Cmd {
	v := m.view(t)
	v.token++
	v.loading = true
	v.stale = false
	return tea.Batch(fetchTab(m.clientFor(t), t, v.token, v.histPage), m.spinner.Tick)
}

func (m Model) loading() bool {
	for _, v := range m.views {
		if v.loading {
			return true
		}
	}
	return false
}

// ensureLoaded fetches t unless it already has a current result.
func (m Model) ensureLoaded(t tabs.Tab) tea.Cmd {
	v := m.view(t)
	if !v.loaded || v.stale {
		if v.loading && !v.stale {
			return nil
		}
		return m.fetch(t)
	}
	m.applyFiles(t, v)
	return nil
}

// applyFiles filters the tab's files into its list.
func (m Model) applyFiles(t tabs.Tab, v *tabView) {
	v.renderer.setStyle(m.styleFor(t))
	files := v.memo.Apply(v.files, m.filters)
	if v.renderer.setFiles(files, sourceKey(t)) {
		v.nav.Reset()
	}
	v.renderer.list.SetViewport(m.bodyHeight())
}

func (m *Model) setStatus(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.statusErr = true
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(10, msg.Width-4)
		for _, v := range m.views {
			v.renderer.list.SetViewport(m.bodyHeight())
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		return m.handleLoaded(msg)

	case patchLoadedMsg:
		t, ok := m.store.Get(msg.tabID)
		v := m.views[msg.tabID]
		if !ok || v == nil || msg.token != v.token {
			return m, nil
		}
		delete(v.inflight, msg.path)
		if msg.err != nil {
			m.logger.Warn("failed to load patch", "path", msg.path, "err", msg.err)
			m.setError(fmt.Errorf("load %s: %w", msg.path, msg.err))
			return m, nil
		}
		v.renderer.setPatch(msg.path, msg.text)
		v.nav.Resolve()
		return m, m.afterNav(t, v)

	case resolveTickMsg:
		t := m.store.Active()
		v := m.views[t.ID]
		if v == nil || !v.nav.Pending() {
			return m, nil
		}
		v.nav.Resolve()
		return m, m.afterNav(t, v)

	case subscribedMsg:
		m.logger.Debug("subscribed to changes")
		return m, waitForEvent(msg.events)

	case subscriptionEndedMsg:
		if msg.err != nil {
			m.logger.Warn("change subscription failed", "err", msg.err)
		}
		if !m.live || m.ctx.Err() != nil {
			return m, nil
		}
		return m, resubscribeLater()

	case resubscribeMsg:
		return m, tea.Batch(subscribe(m.ctx, m.client), m.markWorkingStale())

	case changeMsg:
		return m.handleChange(msg.event)

	case actionDoneMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else if msg.status != "" {
			m.setStatus("%s", msg.status)
		}
		var cmds []tea.Cmd
		if msg.newTab != nil {
			t := m.store.Create(*msg.newTab)
			cmds = append(cmds, m.ensureLoaded(t))
		}
		if msg.refresh {
			cmds = append(cmds, m.fetch(m.store.Active()))
		}
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

func (m Model) handleLoaded(msg loadedMsg) (tea.Model, tea.Cmd) {
	t, ok := m.store.Get(msg.tabID)
	v := m.views[msg.tabID]
	if !ok || v == nil {
		return m, nil
	}
	if msg.token != v.token {
		m.logger.Debug("dropping stale response", "tab", msg.tabID, "token", msg.token, "current", v.token)
		return m, nil
	}
	v.loading = false
	if msg.err != nil {
		v.err = msg.err
		m.logger.Warn("fetch failed", "tab", t.Label, "err", msg.err)
		return m, nil
	}
	v.err = nil
	v.loaded = true
	v.files = msg.files
	v.stats = msg.stats
	v.compare = msg.compare
	v.commit = msg.commit
	v.pr = msg.pr
	v.history = msg.history
	if v.history != nil {
		v.histSel = min(v.histSel, max(0, len(v.history.Commits)-1))
	}
	clear(v.inflight)
	m.applyFiles(t, v)
	if !v.restored {
		v.restored = true
		m.restoreViewState(t, v)
	}
	if t.ID != m.store.Active().ID {
		return m, nil
	}
	return m, m.afterNav(t, v)
}

func (m Model) restoreViewState(t tabs.Tab, v *tabView) {
	list := v.renderer.list
	if sel := t.ViewState.SelectedFile; sel != "" {
		if i := list.IndexOf(sel); i >= 0 {
			v.nav.FocusFile(i)
			list.ScrollToFile(sel)
			return
		}
	}
	if t.ViewState.ScrollPosition > 0 {
		list.SetOffset(t.ViewState.ScrollPosition)
	}
}

// markWorkingStale refetches the active working-changes tab and marks the
// others to refetch when shown.
func (m Model) markWorkingStale() tea.Cmd {
	active := m.store.Active()
	var cmd tea.Cmd
	for _, t := range m.store.Tabs() {
		if t.Type != tabs.TypeWorkingChanges {
			continue
		}
		if t.ID == active.ID {
			cmd = m.fetch(t)
			continue
		}
		if v, ok := m.views[t.ID]; ok {
			v.stale = true
		}
	}
	return cmd
}

func (m Model) handleChange(ev contracts.ChangeEvent) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch ev.Type {
	case contracts.WSTypeChanged:
		m.logger.Debug("change notification", "path", ev.Path)
		cmd = m.markWorkingStale()
	case contracts.WSTypeRepoSwitched:
		m.repo = ev.Path
		m.setStatus("daemon switched to %s", ev.Path)
		cmd = m.markWorkingStale()
	case contracts.WSTypeClosing:
		m.setStatus("daemon closed the change stream")
	}
	return m, cmd
}

// afterNav flushes what the navigator and renderer asked for: editor opens,
// large-file patches, and a resolve tick while a move is pending.
func (m Model) afterNav(t tabs.Tab, v *tabView) tea.Cmd {
	var cmds []tea.Cmd
	r := v.renderer

	// Materialize the visible window so auto-expanded large files are
	// requested now rather than on the next key.
	for _, it := range r.list.Visible() {
		if it.Expanded {
			r.doc(it.File)
		}
	}

	if r.openReq != nil {
		i := *r.openReq
		r.openReq = nil
		if f, ok := r.file(i); ok {
			line := 0
			if focus := v.nav.Focus(); focus.File == i && focus.Line >= 0 {
				if lines, ok := r.GetLines(i); ok && focus.Line < len(lines) {
					line = lines[focus.Line].NewNumber
					if line == 0 {
						line = lines[focus.Line].OldNumber
					}
				}
			}
			client := m.clientFor(t)
			path := f.Path
			cmds = append(cmds, action(func(ctx context.Context) actionDoneMsg {
				if err := client.OpenFile(ctx, path, line); err != nil {
					return actionDoneMsg{err: fmt.Errorf("open %s: %w", path, err)}
				}
				return actionDoneMsg{status: "opened " + path}
			}))
		}
	}

	for _, path := range r.takeWanted() {
		if v.inflight[path] {
			continue
		}
		v.inflight[path] = true
		cmds = append(cmds, fetchPatch(m.clientFor(t), t.ID, v.token, patchQuery(t, v, path)))
	}

	if v.nav.Pending() {
		cmds = append(cmds, resolveLater())
	}

	if focus := v.nav.Focus(); focus.File >= 0 {
		if f, ok := r.file(focus.File); ok && f.Path != t.ViewState.SelectedFile {
			path := f.Path
			m.store.UpdateViewState(t.ID, tabs.ViewStatePatch{SelectedFile: &path})
		}
	}
	return tea.Batch(cmds...)
}

// saveScroll records the active list offset before leaving a tab.
func (m Model) saveScroll() {
	t := m.store.Active()
	v, ok := m.views[t.ID]
	if !ok {
		return
	}
	off, _ := v.renderer.list.Viewport()
	if off != t.ViewState.ScrollPosition {
		m.store.UpdateViewState(t.ID, tabs.ViewStatePatch{ScrollPosition: &off})
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t := m.store.Active()
	v := m.view(t)
	k := msg.String()

	if isDiffTab(t) && !v.showDescription {
		res := v.nav.HandleKey(k, vimnav.KeyContext{TextInputFocused: m.inputMode != inputNone})
		if res.Handled {
			return m, m.afterNav(t, v)
		}
	}

	if m.inputMode != inputNone {
		switch msg.Type {
		case tea.KeyEnter:
			mode := m.inputMode
			value := strings.TrimSpace(m.input.Value())
			m.inputMode = inputNone
			m.input.Blur()
			m.input.SetValue("")
			return m.submitInput(mode, value)
		case tea.KeyEsc:
			m.inputMode = inputNone
			m.input.Blur()
			m.input.SetValue("")
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	if t.Type == tabs.TypeHistory {
		if model, cmd, ok := m.handleHistoryKey(t, v, k); ok {
			return model, cmd
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.saveScroll()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.NextTab):
		return m.switchTab(1)
	case key.Matches(msg, m.keys.PrevTab):
		return m.switchTab(-1)
	case key.Matches(msg, m.keys.CloseTab):
		m.store.Close(t.ID)
		delete(m.views, t.ID)
		return m, m.ensureLoaded(m.store.Active())
	case key.Matches(msg, m.keys.Duplicate):
		m.saveScroll()
		dup, ok := m.store.Duplicate(t.ID)
		if !ok {
			return m, nil
		}
		return m, m.ensureLoaded(dup)
	case key.Matches(msg, m.keys.MoveLeft):
		i := m.store.ActiveIndex()
		m.store.Reorder(i, i-1)
		return m, nil
	case key.Matches(msg, m.keys.MoveRight):
		i := m.store.ActiveIndex()
		m.store.Reorder(i, i+1)
		return m, nil
	case key.Matches(msg, m.keys.Command):
		m.inputMode = inputCommand
		m.input.Prompt = ":"
		m.input.Placeholder = "compare main feature | commit <sha> | pr <n> | history | worktree <path>"
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Filter):
		m.inputMode = inputFilter
		m.input.Prompt = "ext: "
		m.input.Placeholder = ".go, .md"
		m.input.SetValue(strings.Join(m.filters.Extensions, ", "))
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Statuses):
		i, _ := strconv.Atoi(k)
		if i >= 1 && i <= len(contracts.AllStatuses) {
			s := contracts.AllStatuses[i-1]
			if idx := slices.Index(m.filters.Statuses, s); idx >= 0 {
				m.filters.Statuses = slices.Delete(slices.Clone(m.filters.Statuses), idx, idx+1)
			} else {
				m.filters.Statuses = append(slices.Clone(m.filters.Statuses), s)
			}
		}
		return m.filtersChanged()
	case key.Matches(msg, m.keys.Sort):
		i := slices.Index(filter.SortKeys, m.filters.SortBy)
		m.filters.SortBy = filter.SortKeys[(i+1)%len(filter.SortKeys)]
		return m.filtersChanged()
	case key.Matches(msg, m.keys.Order):
		if m.filters.Order == filter.OrderAsc {
			m.filters.Order = filter.OrderDesc
		} else {
			m.filters.Order = filter.OrderAsc
		}
		return m.filtersChanged()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetch(t)
	case key.Matches(msg, m.keys.Style):
		style := contracts.DiffStyleSplit
		if m.styleFor(t) == contracts.DiffStyleSplit {
			style = contracts.DiffStyleUnified
		}
		m.store.UpdateViewState(t.ID, tabs.ViewStatePatch{DiffStyle: &style})
		focus := v.nav.Focus()
		v.renderer.setStyle(style)
		if focus.File >= 0 {
			v.nav.FocusFile(focus.File)
		}
		return m, nil
	case key.Matches(msg, m.keys.MergeBase):
		if t.Type != tabs.TypeBranchCompare {
			return m, nil
		}
		next := !useMergeBase(t)
		c := t.Context
		c.UseMergeBase = &next
		m.store.UpdateContext(t.ID, c)
		updated, _ := m.store.Get(t.ID)
		return m, m.fetch(updated)
	case key.Matches(msg, m.keys.PageDown):
		v.renderer.list.ScrollBy(m.bodyHeight() / 2)
		return m, m.afterNav(t, v)
	case key.Matches(msg, m.keys.PageUp):
		v.renderer.list.ScrollBy(-m.bodyHeight() / 2)
		return m, m.afterNav(t, v)
	case key.Matches(msg, m.keys.Description):
		if t.Type == tabs.TypePR {
			v.showDescription = !v.showDescription
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleHistoryKey(t tabs.Tab, v *tabView, k string) (tea.Model, tea.Cmd, bool) {
	if v.history == nil {
		return m, nil, false
	}
	commits := v.history.Commits
	switch k {
	case "j", "down":
		v.histSel = min(v.histSel+1, max(0, len(commits)-1))
	case "k", "up":
		v.histSel = max(v.histSel-1, 0)
	case "g":
		v.histSel = 0
	case "G":
		v.histSel = max(0, len(commits)-1)
	case "enter":
		if v.histSel < len(commits) {
			c := commits[v.histSel]
			nt := m.store.Create(tabs.Config{Type: tabs.TypeCommit, Context: tabs.Context{CommitSHA: c.SHA}})
			return m, m.ensureLoaded(nt), true
		}
	case "n":
		if v.histPage < v.history.TotalPages {
			v.histPage++
			v.histSel = 0
			return m, m.fetch(t), true
		}
	case "N":
		if v.histPage > 1 {
			v.histPage--
			v.histSel = 0
			return m, m.fetch(t), true
		}
	default:
		return m, nil, false
	}
	return m, nil, true
}

func (m Model) switchTab(delta int) (tea.Model, tea.Cmd) {
	all := m.store.Tabs()
	if len(all) < 2 {
		return m, nil
	}
	m.saveScroll()
	i := (m.store.ActiveIndex() + delta + len(all)) % len(all)
	m.store.Switch(all[i].ID)
	return m, m.ensureLoaded(m.store.Active())
}

func (m Model) filtersChanged() (tea.Model, tea.Cmd) {
	if m.prefs != nil {
		if err := filter.SavePrefs(m.ctx, m.prefs, m.filters); err != nil {
			m.logger.Warn("failed to save filters", "err", err)
		}
	}
	t := m.store.Active()
	v := m.view(t)
	m.applyFiles(t, v)
	return m, m.afterNav(t, v)
}

func (m Model) submitInput(mode inputMode, value string) (tea.Model, tea.Cmd) {
	if mode == inputFilter {
		var exts []string
		for _, e := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' }) {
			exts = append(exts, e)
		}
		m.filters.Extensions = exts
		return m.filtersChanged()
	}
	return m.runCommand(value)
}

// runCommand executes a ":" command line.
func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return m, nil
	}
	name, args := fields[0], fields[1:]
	t := m.store.Active()
	client := m.client

	newTab := func(cfg tabs.Config) (tea.Model, tea.Cmd) {
		m.saveScroll()
		nt := m.store.Create(cfg)
		return m, m.ensureLoaded(nt)
	}
	prNumber := func() (int, bool) {
		if len(args) != 1 {
			return 0, false
		}
		n, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
		return n, err == nil && n > 0
	}

	switch name {
	case "working", "w":
		return newTab(tabs.Config{Type: tabs.TypeWorkingChanges})
	case "compare", "c":
		if len(args) < 2 {
			m.setError(fmt.Errorf("usage: compare <base> <head> [--no-merge-base]"))
			return m, nil
		}
		ctx := tabs.Context{BaseBranch: args[0], HeadBranch: args[1]}
		if slices.Contains(args[2:], "--no-merge-base") {
			off := false
			ctx.UseMergeBase = &off
		}
		return newTab(tabs.Config{Type: tabs.TypeBranchCompare, Context: ctx})
	case "commit":
		if len(args) != 1 {
			m.setError(fmt.Errorf("usage: commit <sha>"))
			return m, nil
		}
		return newTab(tabs.Config{Type: tabs.TypeCommit, Context: tabs.Context{CommitSHA: args[0]}})
	case "history", "log":
		ctx := tabs.Context{}
		if len(args) > 0 {
			ctx.HeadBranch = args[0]
		}
		return newTab(tabs.Config{Type: tabs.TypeHistory, Context: ctx})
	case "pr":
		n, ok := prNumber()
		if !ok {
			m.setError(fmt.Errorf("usage: pr <number>"))
			return m, nil
		}
		return newTab(tabs.Config{Type: tabs.TypePR, Context: tabs.Context{PRNumber: n}})
	case "worktree":
		if len(args) != 1 {
			m.setError(fmt.Errorf("usage: worktree <path>"))
			return m, nil
		}
		return newTab(tabs.Config{Type: tabs.TypeWorktree, RepoPath: args[0]})
	case "prworktree":
		n, ok := prNumber()
		if !ok {
			m.setError(fmt.Errorf("usage: prworktree <number>"))
			return m, nil
		}
		return m, action(func(ctx context.Context) actionDoneMsg {
			res, err := client.OpenPRWorktree(ctx, n)
			if err != nil {
				return actionDoneMsg{err: fmt.Errorf("open PR #%d worktree: %w", n, err)}
			}
			return actionDoneMsg{
				status: fmt.Sprintf("PR #%d checked out at %s", n, res.Path),
				newTab: &tabs.Config{Type: tabs.TypeWorktree, RepoPath: res.Path, Context: tabs.Context{PRNumber: n, PRBranch: res.Branch}},
			}
		})
	case "checkout":
		n, ok := prNumber()
		if !ok {
			m.setError(fmt.Errorf("usage: checkout <number>"))
			return m, nil
		}
		return m, action(func(ctx context.Context) actionDoneMsg {
			branch, err := client.CheckoutPR(ctx, n)
			if err != nil {
				return actionDoneMsg{err: fmt.Errorf("checkout PR #%d: %w", n, err)}
			}
			return actionDoneMsg{status: "checked out " + branch, refresh: true}
		})
	case "prs":
		return m, action(func(ctx context.Context) actionDoneMsg {
			res, err := client.PRs(ctx)
			if err != nil {
				return actionDoneMsg{err: err}
			}
			if res.MetadataUnavailable {
				return actionDoneMsg{status: "pull request metadata unavailable: " + res.Error}
			}
			parts := make([]string, 0, len(res.PullRequests))
			for _, pr := range res.PullRequests {
				parts = append(parts, fmt.Sprintf("#%d %s", pr.Number, pr.Title))
			}
			if len(parts) == 0 {
				return actionDoneMsg{status: "no open pull requests"}
			}
			return actionDoneMsg{status: strings.Join(parts, " | ")}
		})
	case "worktrees":
		return m, action(func(ctx context.Context) actionDoneMsg {
			wts, err := client.Worktrees(ctx)
			if err != nil {
				return actionDoneMsg{err: err}
			}
			parts := make([]string, 0, len(wts))
			for _, wt := range wts {
				mark := ""
				if wt.IsActive {
					mark = "*"
				}
				parts = append(parts, fmt.Sprintf("%s%s [%s]", mark, wt.Path, wt.Branch))
			}
			return actionDoneMsg{status: strings.Join(parts, " | ")}
		})
	case "branches":
		return m, action(func(ctx context.Context) actionDoneMsg {
			bl, err := client.Branches(ctx)
			if err != nil {
				return actionDoneMsg{err: err}
			}
			names := make([]string, 0, len(bl.Branches))
			for _, b := range bl.Branches {
				if !b.IsRemote {
					names = append(names, b.Name)
				}
			}
			return actionDoneMsg{status: "on " + bl.Current + ": " + strings.Join(names, ", ")}
		})
	case "switch":
		if len(args) != 1 {
			m.setError(fmt.Errorf("usage: switch <path>"))
			return m, nil
		}
		path := args[0]
		return m, action(func(ctx context.Context) actionDoneMsg {
			active, err := client.SwitchWorktree(ctx, path)
			if err != nil {
				return actionDoneMsg{err: fmt.Errorf("switch to %s: %w", path, err)}
			}
			return actionDoneMsg{status: "serving " + active, refresh: true}
		})
	case "fetch":
		return m, action(func(ctx context.Context) actionDoneMsg {
			if err := client.Fetch(ctx); err != nil {
				return actionDoneMsg{err: fmt.Errorf("fetch: %w", err)}
			}
			return actionDoneMsg{status: "fetched origin", refresh: true}
		})
	case "rename":
		label := strings.Join(args, " ")
		if label == "" {
			m.setError(fmt.Errorf("usage: rename <label>"))
			return m, nil
		}
		m.store.Update(t.ID, tabs.Patch{Label: &label})
		return m, nil
	}
	m.setError(fmt.Errorf("unknown command %q", name))
	return m, nil
}
