// Package access implements the gated access flow for product surfaces:
// session lifecycle, per-product access requests, and the derived
// authorization read by route guards.
//
// Authority:
//   - Authority owns the one live auth state per process: current user,
//     session, access records, and a loading flag. Session change events are
//     applied last-event-wins; an in-flight access fetch superseded by a new
//     event is discarded rather than applied out of order. Access fetch
//     failures degrade to an empty list so nothing is granted on error.
//
// Access requests:
//   - AccessRequest rows move pending -> approved/rejected through
//     AccessStateMachine, which centralizes the transition graph, timestamp
//     handling, hooks, and persistence. Requests are never deleted; rejected
//     users may request again.
//
// Verification and notification:
//   - Gate mints bot verification tokens, Relay forwards them with the form
//     payload to the verify-and-notify endpoint under a bounded window, and
//     NotifyController implements that endpoint: it scores tokens through
//     reCAPTCHA Enterprise and emails the admin through Resend. Login
//     verification stops after the score check and never emails.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the Authority and
//     the state machine to describe sign-in, sign-up, and access lifecycle
//     events. Sinks run best-effort (errors are logged) so you can forward to
//     a database or queue without blocking the flow.
package access
