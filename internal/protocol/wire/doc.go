// Package wire defines the JSON messages exchanged with rendering clients.
//
// Messages are closed variant sets: Outbound (server -> client) and
// Inbound (client -> server). Each set is sealed by an unexported marker
// method so callers dispatch with an exhaustive type switch instead of
// comparing type strings.
package wire
