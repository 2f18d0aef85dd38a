// Package diag implements the dump/diagnostic command surface of spec
// §6.5: a small out-of-band channel a management client uses to alter
// buffer sizes live, trigger a self-backup for testing, remove a
// completed backup's files by sequence, print in-memory record dumps,
// and toggle compression defaults. Every command is gated per node by
// a Limiter backed by github.com/joeycumines/go-catrate, so a
// misbehaving client cannot flood a node with repeated dumps.
package diag
