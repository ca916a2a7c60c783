// Package rpcfacade is the RPC facade of spec.md §4.G: the gRPC service
// surface exposing SendDataFrame (client-streaming), RunQuery (unary),
// FetchDataFrame (server-streaming, challenge + signature gated), and
// GetChallenge (unary, unauthenticated). No .proto toolchain is available
// in this environment, so the generated-code layer below (messages,
// codec, ServiceDesc, stream wrappers) is hand-assembled in the shape
// protoc-gen-go-grpc would produce, grounded on the teacher's
// daemon/api/server/gateway.go and fallback.go scaffolding.
package rpcfacade

// Chunk is the wire message of the SendDataFrame upload stream.
type Chunk struct {
	Data     []byte `json:"data"`
	Policy   string `json:"policy"`
	Metadata string `json:"metadata"`
	Savable  bool   `json:"savable"`
}

// ReferenceResponse names the frame a request produced or addressed.
type ReferenceResponse struct {
	Identifier string `json:"identifier"`
	Header     string `json:"header"`
}

// QueryRequest carries a serialized CompositePlan (spec.md §6).
type QueryRequest struct {
	CompositePlan string `json:"composite_plan"`
}

// ReferenceRequest addresses a single registered frame by identifier.
type ReferenceRequest struct {
	Identifier string `json:"identifier"`
}

// FetchChunk is one message of the FetchDataFrame response stream: the
// leading status message, or one of the data chunks following it.
type FetchChunk struct {
	Status int    `json:"status"`
	Reason string `json:"reason,omitempty"`
	Data   []byte `json:"data,omitempty"`
}

// Empty is the (no-field) request message of GetChallenge.
type Empty struct{}

// ChallengeResponse carries one freshly minted challenge.
type ChallengeResponse struct {
	Value []byte `json:"value"`
}
