// Package popup implements the transient control surface: a Bubble Tea
// program that mounts, renders tracking state from the background process,
// and is torn down completely when closed.
//
// Everything a mounted popup owns lives in a Session. The Update loop is the
// only goroutine that touches the Session's store. Requests run as tea.Cmd
// and come back as result messages stamped at send time. Push events arrive
// through Program.Send as events.PushMsg. Timers are schedule.TickMsg values
// tagged with a generation.
//
// After every mutation the model drains the store's dirty flags and
// compares the snapshot against what it last rendered. Renders only advances
// when that comparison reports a difference, or when a FORCE_STATE_REFRESH
// push demands it.
//
// Reads fail quietly and keep the last known value. Actions (toggle, block,
// unblock, export) report failures as a transient notice.
package popup
