// Package background is a reference implementation of the background
// process the popup talks to. It keeps authoritative tracking state in
// memory, answers POST /api/message, streams push events over
// GET /api/events and records acknowledgements from POST /api/events/ack.
//
// Simulate drives synthetic browsing so the popup has something to show
// during development.
package background
