package codec

import (
	"bytes"
	"context"
	"testing"
)

func TestEncodeDecodeColumnsRoundTrip(t *testing.T) {
	cols := [][]byte{
		[]byte("column-one"),
		[]byte("column-two-longer-payload"),
		[]byte(""),
	}

	payload := EncodeColumns(cols)
	got := splitOnMarker(payload)

	if len(got) != len(cols) {
		t.Fatalf("got %d columns, want %d", len(got), len(cols))
	}
	for i := range cols {
		if !bytes.Equal(got[i], cols[i]) {
			t.Errorf("column %d: got %q, want %q", i, got[i], cols[i])
		}
	}
}

func TestSplitOnMarkerNoMarkerFound(t *testing.T) {
	ranges := splitOnMarker([]byte("no markers in here"))
	if len(ranges) != 0 {
		t.Fatalf("expected zero ranges, got %d", len(ranges))
	}
}

func TestAccumulatorConcatenatesPolicyAndMetadata(t *testing.T) {
	acc := &Accumulator{}
	acc.Add(Chunk{Data: []byte("a"), Policy: "{\"p\":1}", Metadata: "meta-a", Savable: false})
	acc.Add(Chunk{Data: []byte("b"), Policy: "", Metadata: "meta-b", Savable: true})

	if !acc.Seen() {
		t.Fatal("expected Seen() to be true after adding chunks")
	}
	if acc.Policy() != "{\"p\":1}" {
		t.Errorf("policy = %q, want concatenation of both chunks' policy text", acc.Policy())
	}
	if acc.Metadata() != "meta-ameta-b" {
		t.Errorf("metadata = %q, want concatenated metadata", acc.Metadata())
	}
	if !acc.Savable() {
		t.Error("savable should reflect the last chunk added, which was true")
	}
	if acc.ByteLen() != 2 {
		t.Errorf("ByteLen() = %d, want 2", acc.ByteLen())
	}
}

func TestSplitIntoChunksRespectsChunkSize(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 10)
	pieces := SplitIntoChunks(payload, 3)

	want := [][]byte{[]byte("xxx"), []byte("xxx"), []byte("xxx"), []byte("x")}
	if len(pieces) != len(want) {
		t.Fatalf("got %d pieces, want %d", len(pieces), len(want))
	}
	for i := range want {
		if !bytes.Equal(pieces[i], want[i]) {
			t.Errorf("piece %d: got %q, want %q", i, pieces[i], want[i])
		}
	}
}

func TestSplitIntoChunksZeroSizeReturnsWholePayload(t *testing.T) {
	payload := []byte("whole-payload")
	pieces := SplitIntoChunks(payload, 0)
	if len(pieces) != 1 || !bytes.Equal(pieces[0], payload) {
		t.Fatalf("expected a single piece equal to the payload, got %v", pieces)
	}
}

func TestDrainUploadRequiresAtLeastOneChunk(t *testing.T) {
	in := NewChunkChannel()
	close(in)

	_, err := DrainUpload(context.Background(), in)
	if err == nil {
		t.Fatal("expected an error draining an upload stream with no chunks")
	}
}

func TestDrainUploadAccumulatesAllChunks(t *testing.T) {
	in := NewChunkChannel()
	go func() {
		in <- Chunk{Data: []byte("one")}
		in <- Chunk{Data: []byte("two")}
		close(in)
	}()

	acc, err := DrainUpload(context.Background(), in)
	if err != nil {
		t.Fatalf("DrainUpload failed: %v", err)
	}
	if acc.ByteLen() != 6 {
		t.Errorf("ByteLen() = %d, want 6", acc.ByteLen())
	}
}

func TestStatusChunkAndDataChunk(t *testing.T) {
	status := StatusChunk(FetchWarning, "stale source")
	if status.Status != FetchWarning || status.Reason != "stale source" {
		t.Errorf("StatusChunk produced %+v", status)
	}

	data := DataChunk(Chunk{Data: []byte("payload")})
	if data.Status != FetchReady || !bytes.Equal(data.Chunk.Data, []byte("payload")) {
		t.Errorf("DataChunk produced %+v", data)
	}
}
