// Package ledger owns the authoritative record of submitted canvas commands.
//
// Ownership boundary:
// - command identity and payload custody
//
// - lifecycle state transitions (pending -> sent -> executed | error)
//
// - delivery bookkeeping per client
//
// - age-based purge of terminal entries
//
// Every operation is total: missing ids and redundant acknowledgments are
// expected traffic and resolve to false/no-op results, never errors.
package ledger
