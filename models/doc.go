// Package models defines the backup subsystem's data model (spec §3):
// Backup, Table, Fragment, Trigger, File and the per-node membership
// entry, plus the flags, counters and error codes they carry.
//
// Per spec §9's design note on the source's cyclic pointer graphs
// ("Backup ↔ File ↔ Trigger ↔ Table references are cyclic"), this
// package re-models ownership as an arena of records addressed by
// stable integer handles: a Backup exclusively owns its Tables, Files
// and Triggers (held by value in slices keyed by handle), and
// cross-references (Trigger→Table, File→Backup) are plain handles,
// never pointers — they are invalidated, not dangling, once the owning
// Backup is released.
package models
