// Package fileset implements spec §4.3: the three files (ctl, data,
// log) owned by one Backup, their open/close lifecycle as flag-bit
// transitions on models.File, and the background drain task that moves
// bytes from each file's FlowBuffer to the services.FileSystem
// collaborator under the shared writerate.Governor ceiling.
package fileset
