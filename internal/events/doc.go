// Package events routes push events from the background process into the
// popup's event loop.
//
// Two sources feed a Sender (normally *tea.Program): the server-sent event
// stream, pumped by StartPump with reconnect backoff, and the cross-surface
// bus, a spool directory watched by BusWatcher. Both deliver PushMsg values.
// The popup's Update hands each PushMsg to Subscriber.Dispatch, which runs
// the registered handlers and returns the acknowledgement.
package events
