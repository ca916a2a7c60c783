package codec

// FetchStatus is the algebraic status spec.md §9's design note prefaces
// onto a FetchDataFrame response stream ahead of any data: a frame can be
// immediately Ready, still Pending for a stated reason, or Ready with a
// Warning attached (e.g. a derived frame recomputed from a stale source).
type FetchStatus int

const (
	FetchReady FetchStatus = iota
	FetchPending
	FetchWarning
)

// FetchChunk is one message of the fetch stream: either the single
// leading status message, or one of the data chunks that follow it once
// the status is Ready or Warning.
type FetchChunk struct {
	Status FetchStatus
	Reason string
	Chunk  Chunk
}

// StatusChunk builds the leading status message of a fetch stream.
func StatusChunk(status FetchStatus, reason string) FetchChunk {
	return FetchChunk{Status: status, Reason: reason}
}

// DataChunk wraps one payload chunk as a Ready fetch-stream message.
func DataChunk(c Chunk) FetchChunk {
	return FetchChunk{Status: FetchReady, Chunk: c}
}
