package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/hangar/internal/downloads"
	"github.com/five82/hangar/internal/instances"
	"github.com/five82/hangar/internal/prefs"
	"github.com/five82/hangar/internal/session"
	"github.com/five82/hangar/internal/state"
	"github.com/five82/hangar/internal/syncx"
)

// View is the active tab.
type View int

const (
	ViewInstances View = iota
	ViewDownloads
)

func (v View) live() state.View {
	if v == ViewDownloads {
		return state.ViewDownloads
	}
	return state.ViewInstances
}

// Options configures the console.
type Options struct {
	Context     context.Context
	Store       *state.Store
	Instances   *instances.Service
	Downloads   *downloads.Service
	AuthExpired *syncx.Broadcast[session.ExpiredEvent]
	// Wake asks the pollers to re-check eligibility after a visibility change.
	Wake func()
	// Refresh fetches a view immediately.
	Refresh   func(ctx context.Context, view state.View)
	APIURL    string
	ThemeName string
	PrefsPath string
}

// Model is the root console state for Bubble Tea.
type Model struct {
	ctx       context.Context
	store     *state.Store
	instances *instances.Service
	downloads *downloads.Service
	wake      func()
	refresh   func(context.Context, state.View)
	prefsPath string
	apiURL    string
	now       func() time.Time

	keys  keyMap
	help  help.Model
	theme Theme

	view     View
	width    int
	height   int
	ready    bool
	focused  bool
	showHelp bool

	snapshot state.Snapshot
	selected [2]int

	banner    string
	status    string
	statusErr bool
}

// New creates the console model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	wake := opts.Wake
	if wake == nil {
		wake = func() {}
	}
	store := opts.Store
	if store == nil {
		store = &state.Store{}
	}
	m := Model{
		ctx:       ctx,
		store:     store,
		instances: opts.Instances,
		downloads: opts.Downloads,
		wake:      wake,
		refresh:   opts.Refresh,
		prefsPath: opts.PrefsPath,
		apiURL:    opts.APIURL,
		now:       time.Now,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		theme:     GetTheme(opts.ThemeName),
		view:      ViewInstances,
		focused:   true,
	}
	m.snapshot = store.Snapshot()
	return m
}

type tickMsg time.Time

type snapshotMsg state.Snapshot

type expiredMsg session.ExpiredEvent

type commandResultMsg struct {
	label string
	view  state.View
	job   *downloads.Job
	err   error
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(DefaultUIInterval), fetchSnapshotCmd(m.store))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case tea.FocusMsg:
		m.focused = true
		m.applyVisibility()
		return m, nil

	case tea.BlurMsg:
		m.focused = false
		m.applyVisibility()
		return m, nil

	case tickMsg:
		return m, tea.Batch(fetchSnapshotCmd(m.store), tickCmd(DefaultUIInterval))

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		if m.snapshot.SignedIn {
			m.banner = ""
		}
		m.clampSelection()
		return m, nil

	case expiredMsg:
		m.banner = expiredBanner(session.ExpiredEvent(msg))
		return m, fetchSnapshotCmd(m.store)

	case commandResultMsg:
		return m.handleResult(msg)
	}
	return m, nil
}

func expiredBanner(ev session.ExpiredEvent) string {
	text := "Session expired"
	if ev.Reason != "" {
		text += " (" + ev.Reason + ")"
	}
	return text + ". Run `hangar login` to sign in again."
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		return m, saveThemeCmd(m.prefsPath, m.theme.Name)
	case key.Matches(msg, m.keys.Tab), key.Matches(msg, m.keys.ShiftTab):
		return m.switchView(1 - m.view)
	case key.Matches(msg, m.keys.ViewInstances):
		return m.switchView(ViewInstances)
	case key.Matches(msg, m.keys.ViewDownloads):
		return m.switchView(ViewDownloads)
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd(m.view.live())
	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.selected[m.view] = 0
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.selected[m.view] = m.rowCount() - 1
		m.clampSelection()
		return m, nil
	}

	if m.view == ViewDownloads {
		return m.handleDownloadKey(msg)
	}
	return m.handleInstanceKey(msg)
}

func (m Model) switchView(v View) (tea.Model, tea.Cmd) {
	m.view = v
	m.status = ""
	m.applyVisibility()
	return m, fetchSnapshotCmd(m.store)
}

// applyVisibility marks the active view visible while the terminal has
// focus, and wakes the pollers so they notice.
func (m Model) applyVisibility() {
	for _, v := range []View{ViewInstances, ViewDownloads} {
		m.store.SetVisible(v.live(), m.focused && m.view == v)
	}
	m.wake()
}

func (m Model) rowCount() int {
	if m.view == ViewDownloads {
		return len(m.snapshot.Jobs)
	}
	return len(m.snapshot.Instances)
}

func (m *Model) moveSelection(delta int) {
	m.selected[m.view] += delta
	m.clampSelection()
}

func (m *Model) clampSelection() {
	for _, v := range []View{ViewInstances, ViewDownloads} {
		n := len(m.snapshot.Instances)
		if v == ViewDownloads {
			n = len(m.snapshot.Jobs)
		}
		m.selected[v] = min(max(m.selected[v], 0), max(n-1, 0))
	}
}

func (m Model) selectedJob() (downloads.Job, int, bool) {
	idx := m.selected[ViewDownloads]
	if idx < 0 || idx >= len(m.snapshot.Jobs) {
		return downloads.Job{}, 0, false
	}
	return m.snapshot.Jobs[idx], idx, true
}

func (m Model) selectedInstance() (instances.Instance, bool) {
	idx := m.selected[ViewInstances]
	if idx < 0 || idx >= len(m.snapshot.Instances) {
		return instances.Instance{}, false
	}
	return m.snapshot.Instances[idx], true
}

func (m Model) handleDownloadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	job, idx, ok := m.selectedJob()
	if !ok {
		return m, nil
	}
	var action downloads.Action
	position := 0
	switch {
	case key.Matches(msg, m.keys.Pause):
		action = downloads.ActionPause
	case key.Matches(msg, m.keys.Resume):
		action = downloads.ActionResume
	case key.Matches(msg, m.keys.Cancel):
		action = downloads.ActionCancel
	case key.Matches(msg, m.keys.Retry):
		action = downloads.ActionRetry
	case key.Matches(msg, m.keys.MoveUp):
		if idx == 0 {
			return m, nil
		}
		action, position = downloads.ActionReorder, idx-1
	case key.Matches(msg, m.keys.MoveDown):
		if idx >= len(m.snapshot.Jobs)-1 {
			return m, nil
		}
		action, position = downloads.ActionReorder, idx+1
	default:
		return m, nil
	}

	if err := downloads.Check(job, action); err != nil {
		m.status = fmt.Sprintf("%s is not available while %s", action, stateLabel(string(job.State)))
		m.statusErr = true
		return m, nil
	}
	if m.downloads == nil {
		return m, nil
	}
	label := fmt.Sprintf("%s %s", action, job.ID)
	m.status = label + "…"
	m.statusErr = false
	if action == downloads.ActionReorder {
		m.selected[ViewDownloads] = position
	}

	svc, ctx := m.downloads, m.ctx
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
		defer cancel()
		updated, err := svc.Apply(ctx, job, action, position)
		if err != nil {
			return commandResultMsg{label: label, view: state.ViewDownloads, err: err}
		}
		return commandResultMsg{label: label, view: state.ViewDownloads, job: &updated}
	}
}

func (m Model) handleInstanceKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	inst, ok := m.selectedInstance()
	if !ok || m.instances == nil {
		return m, nil
	}
	var cmd instances.Command
	switch {
	case key.Matches(msg, m.keys.Start):
		cmd = instances.CommandStart
	case key.Matches(msg, m.keys.Stop):
		cmd = instances.CommandStop
	case key.Matches(msg, m.keys.Restart):
		cmd = instances.CommandRestart
	default:
		return m, nil
	}
	label := fmt.Sprintf("%s %s", cmd, inst.Label())
	m.status = label + "…"
	m.statusErr = false

	svc, ctx := m.instances, m.ctx
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
		defer cancel()
		_, err := svc.Run(ctx, cmd, inst.ID)
		return commandResultMsg{label: label, view: state.ViewInstances, err: err}
	}
}

func (m Model) handleResult(msg commandResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.status = msg.label + ": " + msg.err.Error()
		m.statusErr = true
		if errors.Is(msg.err, downloads.ErrActionNotAllowed) {
			return m, nil
		}
		return m, fetchSnapshotCmd(m.store)
	}
	m.status = msg.label + " done"
	m.statusErr = false
	if msg.job != nil {
		m.store.ReplaceJob(*msg.job)
	}
	if msg.view == "" {
		return m, nil
	}
	return m, tea.Batch(fetchSnapshotCmd(m.store), m.refreshCmd(msg.view))
}

func (m Model) refreshCmd(view state.View) tea.Cmd {
	if m.refresh == nil {
		return fetchSnapshotCmd(m.store)
	}
	refresh, ctx, store := m.refresh, m.ctx, m.store
	return func() tea.Msg {
		refresh(ctx, view)
		return snapshotMsg(store.Snapshot())
	}
}

func saveThemeCmd(path, name string) tea.Cmd {
	return func() tea.Msg {
		if err := prefs.Update(path, func(p *prefs.Prefs) { p.Theme = name }); err != nil {
			return commandResultMsg{label: "save theme", err: err}
		}
		return nil
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// Run starts the Bubble Tea program and blocks until the user quits or the
// context is cancelled.
func Run(opts Options) error {
	if opts.Store == nil {
		return fmt.Errorf("ui requires a data store")
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	m := New(opts)
	m.applyVisibility()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))
	if opts.AuthExpired != nil {
		unsubscribe := opts.AuthExpired.Subscribe(func(ev session.ExpiredEvent) {
			go p.Send(expiredMsg(ev))
		})
		defer unsubscribe()
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
