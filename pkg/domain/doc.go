// Package domain defines the core types shared by the viewer, server and
// client: the pipeline snapshot model and the wire messages exchanged over
// the websocket channel and the REST fallback.
//
// This package contains pure data types with zero dependencies outside the
// Go standard library. The dependency direction is
// always Infrastructure → Domain; nothing in here knows about HTTP,
// websockets, or image decoding.
//
// Snapshot semantics: a Pipeline is always transmitted and stored whole.
// There is no diff protocol — every update a client receives is a complete
// replacement, and step IDs (not array positions) are the only stable
// identity across replacements.
package domain
