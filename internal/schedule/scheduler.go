// Package schedule owns the popup's recurring refresh timers.
//
// Timers are tea.Tick commands tagged with a task and a generation. A tick
// whose generation no longer matches its task is stale and dropped, which is
// how stopping, restarting and teardown cancel ticks already in flight.
package schedule

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	DefaultCriticalEvery   = 60 * time.Second
	DefaultStatisticsEvery = 30 * time.Second
)

// Task identifies a recurring refresh.
type Task int

const (
	None Task = iota
	CriticalFallback
	StatisticsPolling
	taskCount
)

func (t Task) String() string {
	switch t {
	case CriticalFallback:
		return "critical-fallback"
	case StatisticsPolling:
		return "statistics-polling"
	default:
		return "none"
	}
}

// View is the popup view that decides whether statistics polling runs.
type View string

const (
	ViewFocus View = "focus"
	ViewUsage View = "usage"
)

// ParseView maps a stored or flag value to a View, defaulting to focus.
func ParseView(value string) View {
	if View(value) == ViewUsage {
		return ViewUsage
	}
	return ViewFocus
}

// TickMsg is delivered when a task's period elapses.
type TickMsg struct {
	Task Task
	Gen  uint64
	At   time.Time
}

// TickFunc builds a timer command. tea.Tick is the default.
type TickFunc func(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd

// Options configure a Scheduler.
type Options struct {
	CriticalEvery   time.Duration
	StatisticsEvery time.Duration
	Tick            TickFunc
}

// Scheduler tracks which tasks run and whether their ticks may fire. It is
// driven entirely from the event loop.
type Scheduler struct {
	every   [taskCount]time.Duration
	gen     [taskCount]uint64
	running [taskCount]bool
	tick    TickFunc

	mounted  bool
	visible  bool
	view     View
	tornDown bool
}

// New returns an idle scheduler.
func New(opts Options) *Scheduler {
	s := &Scheduler{tick: opts.Tick, visible: true, view: ViewFocus}
	s.every[CriticalFallback] = opts.CriticalEvery
	if s.every[CriticalFallback] <= 0 {
		s.every[CriticalFallback] = DefaultCriticalEvery
	}
	s.every[StatisticsPolling] = opts.StatisticsEvery
	if s.every[StatisticsPolling] <= 0 {
		s.every[StatisticsPolling] = DefaultStatisticsEvery
	}
	if s.tick == nil {
		s.tick = tea.Tick
	}
	return s
}

// Mount starts the critical fallback and, on the usage view, statistics
// polling. Mounting twice or after teardown does nothing.
func (s *Scheduler) Mount(view View) tea.Cmd {
	if s.mounted || s.tornDown {
		return nil
	}
	s.mounted = true
	s.view = view
	cmds := []tea.Cmd{s.start(CriticalFallback)}
	if view == ViewUsage {
		cmds = append(cmds, s.start(StatisticsPolling))
	}
	return tea.Batch(cmds...)
}

// SetView switches the current view. Entering usage restarts statistics
// polling; leaving it stops polling. The critical fallback is untouched.
func (s *Scheduler) SetView(view View) tea.Cmd {
	if !s.mounted || view == s.view {
		s.view = view
		return nil
	}
	s.view = view
	if view == ViewUsage {
		return s.start(StatisticsPolling)
	}
	s.stop(StatisticsPolling)
	return nil
}

// SetVisible records the visibility signal. A hidden to visible transition
// reports StatisticsPolling once when polling is active, however long the
// surface was hidden.
func (s *Scheduler) SetVisible(visible bool) Task {
	was := s.visible
	s.visible = visible
	if !s.mounted || was || !visible {
		return None
	}
	if s.running[StatisticsPolling] {
		return StatisticsPolling
	}
	return None
}

// HandleTick processes a tick. It returns the task whose refresh should run
// now (None when the tick is stale or the surface is hidden) and the command
// for the next tick.
func (s *Scheduler) HandleTick(msg TickMsg) (Task, tea.Cmd) {
	if !s.mounted || msg.Task <= None || msg.Task >= taskCount {
		return None, nil
	}
	if !s.running[msg.Task] || msg.Gen != s.gen[msg.Task] {
		return None, nil
	}
	next := s.schedule(msg.Task)
	if !s.visible {
		return None, next
	}
	return msg.Task, next
}

// Teardown stops every task. Ticks already in flight are dropped.
func (s *Scheduler) Teardown() {
	for task := CriticalFallback; task < taskCount; task++ {
		s.stop(task)
	}
	s.mounted = false
	s.tornDown = true
}

// Running reports whether task is active.
func (s *Scheduler) Running(task Task) bool {
	return task > None && task < taskCount && s.running[task]
}

// Idle reports whether no task is active.
func (s *Scheduler) Idle() bool {
	for task := CriticalFallback; task < taskCount; task++ {
		if s.running[task] {
			return false
		}
	}
	return true
}

// Visible reports the last visibility signal.
func (s *Scheduler) Visible() bool { return s.visible }

// View returns the current view.
func (s *Scheduler) View() View { return s.view }

// Every returns the period configured for task.
func (s *Scheduler) Every(task Task) time.Duration {
	if task <= None || task >= taskCount {
		return 0
	}
	return s.every[task]
}

func (s *Scheduler) start(task Task) tea.Cmd {
	s.gen[task]++
	s.running[task] = true
	return s.schedule(task)
}

func (s *Scheduler) stop(task Task) {
	s.gen[task]++
	s.running[task] = false
}

func (s *Scheduler) schedule(task Task) tea.Cmd {
	gen := s.gen[task]
	return s.tick(s.every[task], func(at time.Time) tea.Msg {
		return TickMsg{Task: task, Gen: gen, At: at}
	})
}
