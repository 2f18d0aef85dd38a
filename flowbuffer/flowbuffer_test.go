package flowbuffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := Setup(make([]uint32, 64), 0, 4, 4, 4)
	require.Error(t, err, "block must be > 0")

	_, err = Setup(make([]uint32, 64), 4, 2, 4, 4)
	require.Error(t, err, "minRead rounds below one block")

	_, err = Setup(make([]uint32, 64), 4, 8, 4, 4)
	require.Error(t, err, "maxRead below minRead")

	_, err = Setup(make([]uint32, 8), 4, 4, 4, 8)
	require.Error(t, err, "usable size must be > 0 once maxWrite slack is reserved")
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	fb, err := Setup(make([]uint32, 32), 4, 8, 8, 8)
	require.NoError(t, err)

	w, ok := fb.GetWritePtr(4)
	require.True(t, ok)
	for i := range w {
		w[i] = uint32(i + 1)
	}
	fb.UpdateWritePtr(4)

	// fewer than minRead pending, not eof: come back later
	window, eof := fb.GetReadPtr()
	require.Nil(t, window)
	require.False(t, eof)

	w, ok = fb.GetWritePtr(4)
	require.True(t, ok)
	for i := range w {
		w[i] = uint32(i + 101)
	}
	fb.UpdateWritePtr(4)

	window, eof = fb.GetReadPtr()
	require.False(t, eof)
	require.Equal(t, []uint32{1, 2, 3, 4, 101, 102, 103, 104}, window)
	fb.UpdateReadPtr(len(window))

	require.Equal(t, fb.Size(), fb.Free())
}

func TestEofShortRead(t *testing.T) {
	t.Parallel()

	fb, err := Setup(make([]uint32, 32), 4, 8, 8, 8)
	require.NoError(t, err)

	w, ok := fb.GetWritePtr(4)
	require.True(t, ok)
	copy(w, []uint32{9, 9, 9, 9})
	fb.UpdateWritePtr(4)

	// below minRead, not eof
	window, eof := fb.GetReadPtr()
	require.Nil(t, window)
	require.False(t, eof)

	fb.Eof()

	window, eof = fb.GetReadPtr()
	require.True(t, eof)
	require.Equal(t, []uint32{9, 9, 9, 9}, window)
}

func TestWriteNeverFillsLastWord(t *testing.T) {
	t.Parallel()

	fb, err := Setup(make([]uint32, 32), 4, 4, 4, 16)
	require.NoError(t, err)

	// fill to exactly Free()-1, leaving one word of slack always kept
	free := fb.Free()
	_, ok := fb.GetWritePtr(free)
	require.False(t, ok, "write must never be allowed to fill the last word")

	_, ok = fb.GetWritePtr(free - 1)
	require.True(t, ok)
}

func TestWrapAroundCommitIsContiguous(t *testing.T) {
	t.Parallel()

	fb, err := Setup(make([]uint32, 24), 4, 4, 8, 8)
	require.NoError(t, err)

	// drive the write cursor near the end of the usable window, reading
	// each window back so reads keep pace, forcing a subsequent write to
	// wrap.
	for i := 0; i < 3; i++ {
		w, ok := fb.GetWritePtr(4)
		require.True(t, ok)
		for j := range w {
			w[j] = uint32(i*10 + j)
		}
		fb.UpdateWritePtr(4)
		rw, eof := fb.GetReadPtr()
		require.False(t, eof)
		require.Len(t, rw, 4)
		fb.UpdateReadPtr(4)
	}

	w, ok := fb.GetWritePtr(8)
	require.True(t, ok)
	for j := range w {
		w[j] = uint32(100 + j)
	}
	fb.UpdateWritePtr(8)

	fb.Eof()
	// 8 words pending is at least MinRead, so this is a full window;
	// eof is only reported once fewer than MinRead words remain.
	rw, eof := fb.GetReadPtr()
	require.False(t, eof)
	require.Equal(t, []uint32{100, 101, 102, 103, 104, 105, 106, 107}, rw)
}
