// Package master implements MasterEngine (spec §4.5): the coordinator
// elected on one node per backup. It drives every participant's
// SlaveEngine through broadcast request/reply phase rounds over a
// Transport (the out-of-scope signalling bus of spec §1), gathers
// fan-in replies with github.com/joeycumines/go-longpoll, and batches
// BackupFragmentCompleteRep broadcasts with
// github.com/joeycumines/go-microbatch.
//
// The master phase (MasterPhase) is kept separate from the slave state
// machine of the slave package: "The slave state machine is the source
// of truth; the master phase is a derivation" (spec §9 design note).
package master
