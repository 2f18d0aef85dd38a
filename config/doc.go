// Package config enumerates the per-node backup configuration of spec
// §6.4: buffer sizes, write-size bounds, disk-sync threshold, the
// initial write-rate ceiling, and the compressed/direct-I/O/diskless
// toggles. It is consumed by fileset, slave, master and diag at
// construction time via the functional-options pattern used throughout
// the teacher's own packages (writerate.Option).
package config
