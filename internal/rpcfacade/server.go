package rpcfacade

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"github.com/apache/arrow/go/v16/arrow"

	"github.com/yutiansut/bastionlab/internal/challenge"
	"github.com/yutiansut/bastionlab/internal/codec"
	"github.com/yutiansut/bastionlab/internal/errs"
	"github.com/yutiansut/bastionlab/internal/frameops"
	"github.com/yutiansut/bastionlab/internal/keyring"
	"github.com/yutiansut/bastionlab/internal/observability"
	"github.com/yutiansut/bastionlab/internal/planeval"
	"github.com/yutiansut/bastionlab/internal/ratelimit"
	"github.com/yutiansut/bastionlab/internal/registry"
)

// ChallengeHeader names the metadata key carrying the previously minted
// challenge of a signed FetchDataFrame request; the signature over the
// canonical digest covering it travels under a `signing-key-<keyid>-bin`
// key (keyring.HeaderName) (spec.md §4.D, §4.G).
const ChallengeHeader = "challenge-bin"

// DefaultChunkSize bounds how large a single outbound Chunk payload is
// allowed to get when NewService is given a non-positive chunk size; the
// configured value from internal/config is passed in by cmd/server.
const DefaultChunkSize = 32 * 1024

// Service implements DataPlaneServer, tying together the registry,
// challenge set, keyring, and plan evaluator spec.md §4 defines as
// separate subsystems. Grounded on original_source/server/src/main.rs's
// BastionLabState, which wires the same four collaborators behind one
// set of RPC handlers.
type Service struct {
	registry   *registry.Registry
	challenges *challenge.Service
	keys       *keyring.KeyRing
	log        *observability.Logger
	metrics    *observability.Metrics
	chunkSize  int
	limiter    *ratelimit.PerIdentity
}

// NewService constructs a Service. keys may be nil, in which case
// FetchDataFrame's signature check always fails closed (no identities
// are known); this should only happen in tests, never in a real
// deployment with a populated keys directory. limiter may also be nil,
// in which case GetChallenge is unbounded — tests exercise this, real
// deployments should always pass one.
func NewService(reg *registry.Registry, challenges *challenge.Service, keys *keyring.KeyRing, log *observability.Logger, metrics *observability.Metrics, chunkSize int, limiter *ratelimit.PerIdentity) *Service {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Service{
		registry:   reg,
		challenges: challenges,
		keys:       keys,
		log:        log,
		metrics:    metrics,
		chunkSize:  chunkSize,
		limiter:    limiter,
	}
}

var _ DataPlaneServer = (*Service)(nil)

// SendDataFrame accepts an upload stream, decodes its MARKER-delimited
// columns, constructs a Frame via FrameOps, and registers it under a
// fresh identifier (spec.md §4.A, §4.B, §4.G).
func (s *Service) SendDataFrame(stream DataPlane_SendDataFrameServer) error {
	acc := &codec.Accumulator{}
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return toStatus(errs.Wrap(errs.Internal, err, "reading upload stream"))
		}
		acc.Add(codec.Chunk{Data: chunk.Data, Policy: chunk.Policy, Metadata: chunk.Metadata, Savable: chunk.Savable})
	}
	resp, err := s.ingest(acc)
	if err != nil {
		return toStatus(err)
	}
	return stream.SendAndClose(resp)
}

// ingest is SendDataFrame's transport-independent core: decode the
// accumulated columns, build a Frame, and register it. Shared by the
// gRPC handler above and the native REST fallback (internal/rpcfacade's
// resthandlers.go), which both hand it a fully drained Accumulator.
func (s *Service) ingest(acc *codec.Accumulator) (*ReferenceResponse, error) {
	if !acc.Seen() {
		return nil, errs.New(errs.InvalidPayload, "upload stream carried no chunks")
	}
	if !json.Valid([]byte(acc.Policy())) {
		return nil, errs.New(errs.InvalidPolicy, "policy is not valid JSON")
	}

	schema, columns, err := decodeColumns(acc.ColumnSlices())
	if err != nil {
		return nil, err
	}
	frame, err := frameops.FromColumns(schema, columns)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidPayload, err, "constructing frame from decoded columns")
	}

	identifier := s.registry.Insert(frame, registry.Policy(acc.Policy()), acc.Metadata(), acc.Savable())
	header, _ := json.Marshal(schema)

	s.log.WithIdentifier(identifier).FrameUploaded(identifier, len(schema), frame.NumRows(), acc.ByteLen())
	s.metrics.FramesRegistered.Inc()
	s.metrics.FrameBytesUploaded.Add(float64(acc.ByteLen()))

	return &ReferenceResponse{Identifier: identifier, Header: string(header)}, nil
}

// RunQuery evaluates a composite plan against the registry and registers
// its result as a new frame (spec.md §4.F, §4.G).
func (s *Service) RunQuery(ctx context.Context, req *QueryRequest) (*ReferenceResponse, error) {
	resp, err := s.evaluate(req.CompositePlan)
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

// evaluate is RunQuery's transport-independent core.
func (s *Service) evaluate(planJSON string) (*ReferenceResponse, error) {
	start := time.Now()

	var plan planeval.CompositePlan
	_ = json.Unmarshal([]byte(planJSON), &plan)
	for _, raw := range plan {
		var env map[string]json.RawMessage
		if json.Unmarshal(raw, &env) == nil {
			for variant := range env {
				s.metrics.PlanSegmentsRun.WithLabelValues(variant).Inc()
			}
		}
	}

	evaluator := planeval.New(s.registry)
	result, err := evaluator.Evaluate([]byte(planJSON))
	s.metrics.PlanDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.PlanFailures.WithLabelValues(string(errs.KindOf(err))).Inc()
		return nil, err
	}

	identifier := s.registry.Insert(result.Frame, result.Policy, "", false)
	header, _ := json.Marshal(result.Frame.Schema())

	s.log.WithIdentifier(identifier).PlanEvaluated(identifier, len(plan), time.Since(start))
	s.metrics.PlansEvaluated.Inc()

	return &ReferenceResponse{Identifier: identifier, Header: string(header)}, nil
}

// FetchDataFrame streams a registered frame back to the caller, gated by
// a one-time challenge and an ECDSA signature over the request (spec.md
// §4.C, §4.D, §4.G; SPEC_FULL.md §4 resolves the challenge as mandatory).
func (s *Service) FetchDataFrame(req *ReferenceRequest, stream DataPlane_FetchDataFrameServer) error {
	ctx := stream.Context()
	md, _ := metadata.FromIncomingContext(ctx)

	challengeHex := first(md.Get(ChallengeHeader))
	if challengeHex == "" {
		return toStatus(errs.New(errs.PermissionDenied, "fetch request carries no challenge"))
	}
	challengeBytes, err := hex.DecodeString(challengeHex)
	if err != nil {
		return toStatus(errs.New(errs.InvalidArgument, "challenge header is not valid hex"))
	}

	keyID, sigHex, err := findSignature(md)
	if err != nil {
		return toStatus(err)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return toStatus(errs.New(errs.InvalidArgument, "signature header is not valid hex"))
	}
	body, _ := json.Marshal(req)
	method, _ := grpc.Method(ctx)

	status, reason, payload, err := s.fetch(method, req.Identifier, challengeBytes, keyID, sig, body)
	if err != nil {
		return toStatus(err)
	}

	if err := stream.Send(toWireChunk(codec.StatusChunk(status, reason))); err != nil {
		return err
	}
	pieces := codec.SplitIntoChunks(payload, s.chunkSize)
	for _, p := range pieces {
		msg := codec.DataChunk(codec.Chunk{Data: p})
		if err := stream.Send(toWireChunk(msg)); err != nil {
			return err
		}
	}

	s.log.WithIdentifier(req.Identifier).FrameFetched(req.Identifier, len(pieces), len(payload))
	s.metrics.FramesFetched.Inc()
	s.metrics.FrameBytesSent.Add(float64(len(payload)))
	return nil
}

// fetch is FetchDataFrame's transport-independent core: consume the
// challenge, verify the signature, resolve the policy status, and
// serialize the frame's wire payload. Returns the leading FetchStatus,
// its reason (if any), and the fully encoded MARKER-delimited payload
// for the caller to chunk and stream however its transport prefers.
func (s *Service) fetch(methodPath, identifier string, challengeBytes []byte, keyID string, sig []byte, body []byte) (codec.FetchStatus, string, []byte, error) {
	if err := s.challenges.Consume(challengeBytes); err != nil {
		s.metrics.ChallengesConsumed.WithLabelValues("denied").Inc()
		return 0, "", nil, err
	}
	s.metrics.ChallengesConsumed.WithLabelValues("ok").Inc()

	if s.keys == nil {
		s.metrics.SignatureChecks.WithLabelValues("denied").Inc()
		return 0, "", nil, errs.New(errs.PermissionDenied, "no keyring configured")
	}
	if err := s.keys.Verify(keyID, methodPath, challengeBytes, body, sig); err != nil {
		s.metrics.SignatureChecks.WithLabelValues("denied").Inc()
		return 0, "", nil, err
	}
	s.metrics.SignatureChecks.WithLabelValues("ok").Inc()

	artifact, err := s.registry.Get(identifier)
	if err != nil {
		return 0, "", nil, err
	}

	status := codec.FetchReady
	reason := ""
	if !artifact.Savable {
		status = codec.FetchWarning
		reason = "frame was not marked savable at upload time"
	}

	schema := artifact.Frame.Schema()
	colBytes := make([][]byte, len(schema))
	for i, field := range schema {
		b, err := frameops.SerializeColumn(field.Name, artifact.Frame.Column(i))
		if err != nil {
			return 0, "", nil, errs.Wrap(errs.Internal, err, "serializing column %q", field.Name)
		}
		colBytes[i] = b
	}
	return status, reason, codec.EncodeColumns(colBytes), nil
}

// GetChallenge mints a fresh single-use nonce. Unauthenticated by design
// (spec.md §4.G): a client must be able to obtain a challenge before it
// can prove anything.
func (s *Service) GetChallenge(ctx context.Context, _ *Empty) (*ChallengeResponse, error) {
	if s.limiter != nil && !s.limiter.Allow(peerKey(ctx)) {
		return nil, toStatus(errs.New(errs.PermissionDenied, "too many challenge requests from this peer"))
	}
	value, err := s.mintChallenge()
	if err != nil {
		return nil, toStatus(err)
	}
	return &ChallengeResponse{Value: value}, nil
}

// peerKey extracts the caller's address to key its rate limiter bucket on.
// GetChallenge is deliberately unauthenticated (spec.md §4.G), so the peer
// address is the only identity available to rate-limit by.
func peerKey(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}

func (s *Service) mintChallenge() ([]byte, error) {
	value, err := s.challenges.Mint()
	if err != nil {
		return nil, err
	}
	s.log.ChallengeIssued(s.challenges.Count())
	s.metrics.ChallengesIssued.Inc()
	return value, nil
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func findSignature(md metadata.MD) (keyID string, sigHex string, err error) {
	for header, vals := range md {
		if id, ok := keyring.KeyIDFromHeader(header); ok && len(vals) > 0 {
			return id, vals[0], nil
		}
	}
	return "", "", errs.New(errs.PermissionDenied, "fetch request carries no signing-key header")
}

// decodeColumns reverses SerializeColumn over each MARKER-delimited slice
// in upload order, rebuilding the schema and Arrow column arrays
// frameops.FromColumns needs (spec.md §4.A: "Fails with InvalidPayload
// when column deserialization fails").
func decodeColumns(slices [][]byte) (frameops.Schema, []arrow.Array, error) {
	schema := make(frameops.Schema, 0, len(slices))
	columns := make([]arrow.Array, 0, len(slices))
	for i, raw := range slices {
		name, col, err := frameops.DeserializeColumn(raw)
		if err != nil {
			return nil, nil, errs.Wrap(errs.InvalidPayload, err, "decoding column %d", i)
		}
		columns = append(columns, col)
		schema = append(schema, frameops.SchemaField{Name: name, Type: arrowColumnType(col)})
	}
	return schema, columns, nil
}

// toWireChunk adapts codec's algebraic FetchChunk (status/reason, or a
// data-bearing Chunk) onto the wire FetchChunk message FetchDataFrame's
// stream actually carries.
func toWireChunk(fc codec.FetchChunk) *FetchChunk {
	return &FetchChunk{Status: int(fc.Status), Reason: fc.Reason, Data: fc.Chunk.Data}
}

func arrowColumnType(col arrow.Array) frameops.ColumnType {
	switch col.DataType().ID() {
	case arrow.INT64:
		return frameops.TypeInt64
	case arrow.FLOAT64:
		return frameops.TypeFloat64
	case arrow.BOOL:
		return frameops.TypeBool
	default:
		return frameops.TypeUtf8
	}
}
