// Package nodeloop wraps github.com/joeycumines/go-eventloop's Loop to
// express the single-threaded, run-to-completion, per-node scheduling
// model of spec §5: all handlers run to completion with no blocking
// waits, and "suspension" is modelled as a self-posted continuation at
// one of a fixed set of delays (0, 20, 50, 100, 300ms). nodeloop.Loop
// is that scheduler: one instance confines exactly one node-local
// block (one MasterEngine or one SlaveEngine, never both concurrently
// mutating the same Backup), matching spec §5's "one Backup instance
// is confined to one block".
package nodeloop
