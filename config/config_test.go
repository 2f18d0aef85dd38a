package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	c := New()
	require.Equal(t, DefaultDataBufferSize, c.DataBufferSize)
	require.Equal(t, DefaultDiskWriteSpeed, c.DiskWriteSpeed)
	require.False(t, c.Diskless)
	require.NoError(t, c.Validate())
}

func TestOptionsOverrideDefaults(t *testing.T) {
	t.Parallel()

	c := New(
		WithDataBufferSize(1024),
		WithWriteSizeBounds(16, 64),
		WithDiskless(true),
		WithCompressedBackup(true),
	)
	require.Equal(t, 1024, c.DataBufferSize)
	require.Equal(t, 16, c.MinWriteSize)
	require.Equal(t, 64, c.MaxWriteSize)
	require.True(t, c.Diskless)
	require.True(t, c.CompressedBackup)
}

func TestValidateRejectsBadBounds(t *testing.T) {
	t.Parallel()

	c := New(WithWriteSizeBounds(64, 16))
	require.Error(t, c.Validate())

	c = New(WithDataBufferSize(0))
	require.Error(t, c.Validate())

	c = New(WithDiskWriteSpeed(0))
	require.Error(t, c.Validate())
}

func TestLiveMutatesInPlace(t *testing.T) {
	t.Parallel()

	c := New()
	c.Live(WithDiskWriteSpeed(999))
	require.Equal(t, 999, c.DiskWriteSpeed)
}
