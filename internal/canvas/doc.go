// Package canvas composes the command ledger, connection registry, session
// registry, and broadcaster into the single entry point used by every outer
// surface (push transport, tool server, pull API).
//
// Ownership boundary:
// - submission flow (validate -> enqueue -> broadcast)
//
// - client connect/disconnect with pending replay
//
// - acknowledgment dispatch from rendering clients
//
// - session open/close on behalf of the tool-invocation layer
package canvas
