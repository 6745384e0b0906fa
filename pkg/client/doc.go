// Package client keeps a local mirror of the server's pipeline consistent
// with the server under full-state overwrite semantics.
//
// The server never sends diffs: every inbound message carries the whole
// pipeline, and the local Store is replaced wholesale, in strict arrival
// order. User edits flow the other way through the Dispatcher — immediately
// for discrete actions (step toggles), and through the EditBuffer's
// per-field debounce for continuous parameters — preferring the persistent
// websocket channel and falling back to REST when disconnected. A fallback
// write is always followed by a fresh snapshot fetch, because the REST
// channel does not push state.
//
// Architecture:
//
//	transport.go  - persistent channel, connectivity state machine, fixed-delay reconnect
//	rest.go       - request/response fallback channel and initial load
//	dispatcher.go - routes user intents to whichever channel is available
//	editbuffer.go - per-(step, param) debounce with cancel-and-replace timers
//	store.go      - the versioned snapshot cell
//	client.go     - composition and the inbound event loop
package client
