// Package slave implements spec §4.4's SlaveEngine: the per-node,
// per-backup participant state machine that defines, starts, scans
// and stops one Backup on behalf of a coordinating MasterEngine.
package slave
