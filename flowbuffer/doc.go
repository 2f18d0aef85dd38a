// Package flowbuffer implements the single-producer/single-consumer word
// ring described in spec §4.1 ("FlowBuffer"): a bounded circular stream
// of 32-bit words with alignment-aware read/write windows, minimum-read
// and maximum-write size bounds, and end-of-stream marking.
//
// It is the buffer FileSet pipelines into the filesystem, and the
// mechanism by which WriteRateGovernor and a slow filesystem apply
// back-pressure to row scans and trigger-captured log entries.
package flowbuffer
