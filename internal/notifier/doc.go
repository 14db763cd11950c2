// Package notifier delivers plain-text notifications to a single chat.
//
// Delivery is synchronous and best-effort: each message is rate limited,
// retried with jittered exponential backoff, and on final failure logged and
// dropped. Callers never receive an error; Notify only reports whether the
// message was delivered.
//
// A notifier without a sender or chat target (missing token or chat id)
// logs and drops every message.
//
// The service keeps a small in-memory history of recent attempts for the
// health endpoint.
package notifier
