package master

import "fmt"

// MasterPhase is the coordinator-side gsn progression of spec §4.5:
//
//	UtilSequenceReq -> DefineBackupReq -> StartBackupReq -> WaitGcpReq(start)
//	  -> BackupFragmentReq (per fragment, bounded concurrency)
//	  -> WaitGcpReq(stop) -> StopBackupReq -> (cleanup)
type MasterPhase uint32

const (
	// PhaseNone is the "nothing waited-on" sentinel — see DESIGN.md's
	// Open Question decision on representing master-takeover with no
	// outstanding phase as a typed zero value rather than a magic gsn.
	PhaseNone MasterPhase = iota
	PhaseSequence
	PhaseMutexBackupDefine
	PhaseMutexDictCommit
	PhaseDefineBackup
	PhaseWaitGCPStart
	PhaseBackupFragment
	PhaseWaitGCPStop
	PhaseStopBackup
	PhaseAborting
)

func (p MasterPhase) String() string {
	switch p {
	case PhaseNone:
		return "NONE"
	case PhaseSequence:
		return "SEQUENCE"
	case PhaseMutexBackupDefine:
		return "MUTEX_BACKUP_DEFINE"
	case PhaseMutexDictCommit:
		return "MUTEX_DICT_COMMIT"
	case PhaseDefineBackup:
		return "DEFINE_BACKUP"
	case PhaseWaitGCPStart:
		return "WAIT_GCP_START"
	case PhaseBackupFragment:
		return "BACKUP_FRAGMENT"
	case PhaseWaitGCPStop:
		return "WAIT_GCP_STOP"
	case PhaseStopBackup:
		return "STOP_BACKUP"
	case PhaseAborting:
		return "ABORTING"
	default:
		return fmt.Sprintf("MasterPhase(%d)", uint32(p))
	}
}
