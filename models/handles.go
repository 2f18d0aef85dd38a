package models

// TableHandle, FragmentHandle, TriggerHandle and FileHandle are stable
// integer indices into a Backup's owned slices. -1 denotes "no handle".
type (
	TableHandle   int32
	FragmentHandle int32
	TriggerHandle int32
	FileHandle    int32
)

const InvalidHandle = -1
