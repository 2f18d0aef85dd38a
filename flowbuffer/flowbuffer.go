package flowbuffer

import "fmt"

// FlowBuffer is a bounded circular stream of 32-bit words, word-addressed,
// specialised for a pattern where the writer wants contiguous windows of
// up to MaxWrite words, and the reader wants contiguous windows of
// between MinRead and MaxRead words, all aligned to Block.
//
// The wraparound technique (monotonic r/w counters, modulo-masked
// physical offsets) follows catrate's ringBuffer, adapted from a
// growable generic ring to a fixed-capacity word ring with a reserved
// tail scratch region so the writer always observes a contiguous slice
// even across a wraparound commit.
type FlowBuffer struct {
	buf      []uint32
	block    int
	minRead  int
	maxRead  int
	maxWrite int
	start    int
	size     int // usable window size, in words
	r, w     int // monotonic word counters
	eofSet   bool
}

// Setup validates the configuration and constructs a FlowBuffer backed by
// storage. storage must be at least large enough to hold the aligned
// usable window plus MaxWrite words of tail scratch space.
func Setup(storage []uint32, block, minRead, maxRead, maxWrite int) (*FlowBuffer, error) {
	if block <= 0 {
		return nil, fmt.Errorf("flowbuffer: block must be > 0, got %d", block)
	}
	roundedMinRead := minRead - minRead%block
	roundedMaxRead := maxRead - maxRead%block
	if roundedMinRead < block {
		return nil, fmt.Errorf("flowbuffer: minRead must round to >= block (%d), got %d", block, minRead)
	}
	if roundedMaxRead < roundedMinRead {
		return nil, fmt.Errorf("flowbuffer: maxRead (%d) must be >= minRead (%d) after rounding", roundedMaxRead, roundedMinRead)
	}
	if maxWrite <= 0 {
		return nil, fmt.Errorf("flowbuffer: maxWrite must be > 0, got %d", maxWrite)
	}

	start := alignUp(0, block)
	end := alignDown(len(storage)-maxWrite, block)
	size := end - start
	if size <= 0 {
		return nil, fmt.Errorf("flowbuffer: usable size must be > 0 (storage=%d, maxWrite=%d, block=%d)", len(storage), maxWrite, block)
	}

	return &FlowBuffer{
		buf:      storage,
		block:    block,
		minRead:  roundedMinRead,
		maxRead:  roundedMaxRead,
		maxWrite: maxWrite,
		start:    start,
		size:     size,
	}, nil
}

func alignUp(v, block int) int {
	if rem := v % block; rem != 0 {
		return v + (block - rem)
	}
	return v
}

func alignDown(v, block int) int {
	return v - v%block
}

// Size returns the usable window size, in words.
func (x *FlowBuffer) Size() int { return x.size }

func (x *FlowBuffer) pending() int { return x.w - x.r }

// Free reports the currently writable word count.
func (x *FlowBuffer) Free() int { return x.size - x.pending() }

// GetWritePtr returns a contiguous window of sz words, ready for the
// caller to fill, or ok=false if sz exceeds MaxWrite or there isn't
// strictly more free space than sz (one word of slack is always kept,
// so GetReadPtr can distinguish full from empty).
func (x *FlowBuffer) GetWritePtr(sz int) (window []uint32, ok bool) {
	if sz <= 0 || sz > x.maxWrite {
		return nil, false
	}
	if x.Free() <= sz {
		return nil, false
	}
	pos := x.start + (x.w % x.size)
	return x.buf[pos : pos+sz], true
}

// UpdateWritePtr commits a previously obtained write window of sz words.
// If the window crossed the logical end of the usable region, the
// spillover words (written into the reserved tail scratch space) are
// copied back to the physical start, so the next GetWritePtr/GetReadPtr
// observes a contiguous run.
func (x *FlowBuffer) UpdateWritePtr(sz int) {
	pos := x.start + (x.w % x.size)
	usableEnd := x.start + x.size
	if end := pos + sz; end > usableEnd {
		overflow := end - usableEnd
		copy(x.buf[x.start:x.start+overflow], x.buf[usableEnd:end])
	}
	x.w += sz
}

// GetReadPtr returns a contiguous window of at least MinRead words,
// sized min(pending, MaxRead) and rounded down to a Block multiple, if
// at least MinRead words are pending. If fewer than MinRead are pending
// and Eof has been called, the remainder is returned with eof=true
// (possibly a zero-length window, signalling full drain). Otherwise
// len(window)==0 and eof==false, meaning "come back later".
func (x *FlowBuffer) GetReadPtr() (window []uint32, eof bool) {
	pending := x.pending()
	if pending >= x.minRead {
		l := pending
		if l > x.maxRead {
			l = x.maxRead
		}
		l -= l % x.block
		pos := x.start + (x.r % x.size)
		return x.buf[pos : pos+l], false
	}
	if x.eofSet {
		pos := x.start + (x.r % x.size)
		return x.buf[pos : pos+pending], true
	}
	return nil, false
}

// UpdateReadPtr releases a read window of sz words, increasing free
// space.
func (x *FlowBuffer) UpdateReadPtr(sz int) {
	x.r += sz
}

// Eof marks end-of-stream; a subsequent GetReadPtr may return a short
// final window.
func (x *FlowBuffer) Eof() { x.eofSet = true }

// IsEof reports whether Eof has been called.
func (x *FlowBuffer) IsEof() bool { return x.eofSet }

// Reset drains the buffer to empty and clears eof.
func (x *FlowBuffer) Reset() {
	x.r = 0
	x.w = 0
	x.eofSet = false
}
