// Package state holds the popup's ephemeral view of background state.
//
// # Partitions
//
// The Store keeps two partitions:
//
//   - Core: focus mode, tracking flag and current domain. Loaded on mount
//     with a short budget; the popup renders its first frame from it.
//   - Enhanced: today's statistics, user info, deep focus totals, override
//     minutes, top sites and blocked sites. Each field loads independently
//     and may stay empty when its request fails.
//
// # Ordering
//
// Every mutation carries a Seq taken from Store.Issue when its source was
// issued: a request at send time, a push at arrival, a local optimistic
// change when the user acted. Each field remembers the stamp of its last
// applied mutation and rejects anything older, so a slow response can never
// overwrite a newer push:
//
//	stamp := store.Issue()          // request sent
//	...                             // push arrives, stamp+1 applied
//	store.ApplyCore(stamp, patch)   // rejected for fields the push touched
//
// Core updates are field-wise overlays (CorePatch). A FOCUS_STATE_CHANGED
// push touches FocusMode only and leaves IsTracking and CurrentDomain alone.
//
// # Change detection
//
// The store marks Dirty flags per concern. The reconciler drains them with
// TakeDirty and asks the diff functions in this package whether the rendered
// projection actually differs before touching the view.
//
// # Lifetime
//
// A Store belongs to exactly one mounted surface and is only touched from
// that surface's event loop, so it has no lock. Discard is called at
// teardown; afterwards every mutation is a no-op and reports false.
package state
