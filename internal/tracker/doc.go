// Package tracker speaks the background process's wire protocol.
//
// # Overview
//
// The background process holds authoritative tracking and focus state. The
// popup reaches it over a loopback HTTP API with two halves:
//
//   - Request channel: POST /api/message carrying {kind, payload} and
//     answering {success, data?, error?}.
//   - Push channel: GET /api/events, a server-sent event stream of
//     {id, kind, payload} notifications, acknowledged via
//     POST /api/events/ack.
//
// # Components
//
//   - types.go: request and push kinds, payload types, domain normalization
//   - client.go: Client with one typed method per request kind, built on a
//     channel.Requester so every call inherits the retry policy
//   - transport.go: HTTPTransport (one delivery attempt per call) and the
//     event stream reader
//
// # Errors
//
// HTTPTransport maps net/http failures onto the channel taxonomy: deadline
// expiry becomes channel.ErrChannelTimeout, refused connections, resets and
// HTTP error statuses become channel.ErrChannelClosed. A success:false answer
// surfaces as *channel.ApplicationError from the Requester. Domain input is
// validated locally and rejected with *channel.ValidationError before any
// request is sent.
//
// # Usage Example
//
//	transport, err := tracker.NewHTTPTransport("127.0.0.1:7490")
//	if err != nil {
//		return err
//	}
//	client := tracker.NewClient(channel.NewRequester(transport, logger), channel.Background)
//	core, err := client.CurrentState(ctx, channel.Critical)
package tracker
