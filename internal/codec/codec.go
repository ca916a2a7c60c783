// Package codec implements the Chunk wire codec of spec.md §4.A: in-band
// MARKER-delimited framing of a columnar payload across a stream of
// small Chunk messages, in both the upload (decode) and fetch (encode)
// directions. It is grounded on original_source/server/src/serialization.rs,
// which this package follows byte-for-byte for the marker-scan algorithm.
package codec

import (
	"bytes"
	"context"

	"github.com/yutiansut/bastionlab/internal/errs"
)

// Marker is the literal in-band delimiter between serialized columns.
// Five bytes, exactly as original_source's serialization.rs hard-codes it.
const Marker = "[end]"

// QueueDepth is the producer/consumer channel capacity spec.md §4.A and
// §5 fix for both the upload and fetch directions.
const QueueDepth = 4

// Chunk is one wire message of the upload stream (spec.md §6): a raw
// payload slice plus the policy/metadata text carried alongside it and
// the savable flag, which the accumulator treats as "last message wins".
type Chunk struct {
	Data     []byte
	Policy   string
	Metadata string
	Savable  bool
}

// NewChunkChannel allocates an upload/fetch channel at the fixed queue
// depth spec.md's producer/consumer model requires.
func NewChunkChannel() chan Chunk {
	return make(chan Chunk, QueueDepth)
}

// splitOnMarker implements the exact scan original_source's
// serialization.rs performs: find every occurrence of Marker in data,
// then return the byte ranges between consecutive occurrences (the first
// range starting at 0, each subsequent range starting right after the
// previous marker). Bytes after the final marker are discarded. Zero
// markers found yields zero ranges, not one range spanning all of data.
func splitOnMarker(data []byte) [][]byte {
	m := []byte(Marker)
	var ranges [][]byte
	start := 0
	for {
		idx := bytes.Index(data[start:], m)
		if idx < 0 {
			break
		}
		end := start + idx
		ranges = append(ranges, data[start:end])
		start = end + len(m)
	}
	return ranges
}

// Accumulator collects chunks for one upload, concatenating raw payload
// bytes and tracking the policy/metadata/savable fields the way
// original_source/server/src/serialization.rs's decode_stream does: policy
// and metadata strings are concatenated across chunks, savable is
// overwritten by each chunk in turn (so the last chunk determines it).
type Accumulator struct {
	buf      bytes.Buffer
	policy   bytes.Buffer
	metadata bytes.Buffer
	savable  bool
	seen     bool
}

// Add appends one Chunk's contribution to the accumulator.
func (a *Accumulator) Add(c Chunk) {
	a.buf.Write(c.Data)
	a.policy.WriteString(c.Policy)
	a.metadata.WriteString(c.Metadata)
	a.savable = c.Savable
	a.seen = true
}

// ColumnSlices returns the raw byte ranges between markers accumulated
// so far, each one an independently deserializable column payload
// (spec.md §4.A's colK_bytes).
func (a *Accumulator) ColumnSlices() [][]byte {
	return splitOnMarker(a.buf.Bytes())
}

// Policy is the concatenated policy text accumulated so far.
func (a *Accumulator) Policy() string { return a.policy.String() }

// Metadata is the concatenated metadata text accumulated so far.
func (a *Accumulator) Metadata() string { return a.metadata.String() }

// Savable is the savable flag of the most recently added chunk.
func (a *Accumulator) Savable() bool { return a.savable }

// Seen reports whether at least one chunk has been added.
func (a *Accumulator) Seen() bool { return a.seen }

// ByteLen is the total number of raw payload bytes accumulated so far.
func (a *Accumulator) ByteLen() int { return a.buf.Len() }

// DrainUpload reads every Chunk off in until the stream closes or ctx is
// canceled, returning the fully populated Accumulator. This is
// decode_stream's consumer half (spec.md §4.A); turning the resulting
// column slices into a Frame is the caller's job, since that step
// depends on the external FrameOps capability.
func DrainUpload(ctx context.Context, in <-chan Chunk) (*Accumulator, error) {
	acc := &Accumulator{}
	for {
		select {
		case <-ctx.Done():
			return nil, errs.Wrap(errs.Internal, ctx.Err(), "upload stream canceled")
		case c, ok := <-in:
			if !ok {
				if !acc.seen {
					return nil, errs.New(errs.InvalidPayload, "upload stream carried no chunks")
				}
				return acc, nil
			}
			acc.Add(c)
		}
	}
}

// EncodeColumns serializes an ordered list of already-serialized column
// byte slices into a single MARKER-delimited payload, the inverse of
// splitOnMarker: each column is followed by Marker, with nothing after
// the last one's marker.
func EncodeColumns(columns [][]byte) []byte {
	var buf bytes.Buffer
	for _, col := range columns {
		buf.Write(col)
		buf.WriteString(Marker)
	}
	return buf.Bytes()
}

// SplitIntoChunks cuts a fully encoded payload into at-most-chunkSize
// pieces, the producer half of encode_stream (spec.md §4.A). A
// chunkSize <= 0 yields the whole payload as a single chunk.
func SplitIntoChunks(payload []byte, chunkSize int) [][]byte {
	if chunkSize <= 0 || len(payload) == 0 {
		return [][]byte{payload}
	}
	var out [][]byte
	for start := 0; start < len(payload); start += chunkSize {
		end := start + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		out = append(out, payload[start:end])
	}
	return out
}

// PumpChunks writes payload to out in chunkSize pieces, honoring ctx
// cancellation between sends — the producer side of encode_stream
// feeding the fixed-depth queue (spec.md §4.A, §5).
func PumpChunks(ctx context.Context, out chan<- Chunk, payload []byte, chunkSize int, policy, metadata string, savable bool) error {
	pieces := SplitIntoChunks(payload, chunkSize)
	for _, p := range pieces {
		select {
		case <-ctx.Done():
			return errs.Wrap(errs.Internal, ctx.Err(), "fetch stream canceled")
		case out <- Chunk{Data: p, Policy: policy, Metadata: metadata, Savable: savable}:
		}
	}
	return nil
}
