package rpcfacade

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/apache/arrow/go/v16/arrow/array"

	"github.com/yutiansut/bastionlab/internal/challenge"
	"github.com/yutiansut/bastionlab/internal/codec"
	"github.com/yutiansut/bastionlab/internal/errs"
	"github.com/yutiansut/bastionlab/internal/frameops"
	"github.com/yutiansut/bastionlab/internal/keyring"
	"github.com/yutiansut/bastionlab/internal/observability"
	"github.com/yutiansut/bastionlab/internal/ratelimit"
	"github.com/yutiansut/bastionlab/internal/registry"
)

var (
	testServiceOnce sync.Once
	testService     *Service
)

// sharedService lazily builds one Service for the whole test binary.
// observability.NewMetrics registers every metric with promauto's default
// registry, which panics on a second registration in the same process, so
// every test that needs metrics reuses this one instance (or its
// .metrics field, for tests that build their own Service around it).
func sharedService(t *testing.T) *Service {
	t.Helper()
	testServiceOnce.Do(func() {
		logger := observability.NewLogger("test", "0.0.0", nil)
		metrics := observability.NewMetrics()
		testService = NewService(registry.New(), challenge.New(challenge.DefaultTTL), nil, logger, metrics, 0, ratelimit.NewPerIdentity(100, 100))
	})
	return testService
}

func serializedInt64Column(t *testing.T, name string, values []int64) []byte {
	t.Helper()
	b := array.NewInt64Builder(frameops.Allocator)
	defer b.Release()
	b.AppendValues(values, nil)
	arr := b.NewArray()
	defer arr.Release()

	raw, err := frameops.SerializeColumn(name, arr)
	if err != nil {
		t.Fatalf("SerializeColumn failed: %v", err)
	}
	return raw
}

func TestIngestBuildsFrameAndRegistersIt(t *testing.T) {
	svc := sharedService(t)

	col := serializedInt64Column(t, "n", []int64{1, 2, 3})
	acc := &codec.Accumulator{}
	acc.Add(codec.Chunk{Data: codec.EncodeColumns([][]byte{col}), Policy: `{"allow":true}`, Metadata: "m", Savable: true})

	resp, err := svc.ingest(acc)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if resp.Identifier == "" {
		t.Fatal("expected a non-empty identifier")
	}

	artifact, err := svc.registry.Get(resp.Identifier)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if artifact.Frame.NumRows() != 3 {
		t.Errorf("NumRows() = %d, want 3", artifact.Frame.NumRows())
	}
}

func TestIngestEmptyAccumulatorIsInvalidPayload(t *testing.T) {
	svc := sharedService(t)

	_, err := svc.ingest(&codec.Accumulator{})
	if err == nil {
		t.Fatal("expected an error for an empty accumulator")
	}
	if errs.KindOf(err) != errs.InvalidPayload {
		t.Errorf("KindOf(err) = %v, want InvalidPayload", errs.KindOf(err))
	}
}

func TestIngestInvalidPolicyJSONFails(t *testing.T) {
	svc := sharedService(t)

	col := serializedInt64Column(t, "n", []int64{1})
	acc := &codec.Accumulator{}
	acc.Add(codec.Chunk{Data: codec.EncodeColumns([][]byte{col}), Policy: "not-json"})

	_, err := svc.ingest(acc)
	if err == nil {
		t.Fatal("expected an error for a non-JSON policy")
	}
	if errs.KindOf(err) != errs.InvalidPolicy {
		t.Errorf("KindOf(err) = %v, want InvalidPolicy", errs.KindOf(err))
	}
}

func TestEvaluateEntryPointRegistersResult(t *testing.T) {
	svc := sharedService(t)

	col := serializedInt64Column(t, "n", []int64{1, 2})
	acc := &codec.Accumulator{}
	acc.Add(codec.Chunk{Data: codec.EncodeColumns([][]byte{col}), Policy: "{}"})
	uploaded, err := svc.ingest(acc)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	planJSON, err := json.Marshal([]map[string]any{
		{"EntryPoint": uploaded.Identifier},
	})
	if err != nil {
		t.Fatalf("marshal plan failed: %v", err)
	}

	resp, err := svc.evaluate(string(planJSON))
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if resp.Identifier == uploaded.Identifier {
		t.Error("expected evaluate to register a new identifier distinct from the input frame")
	}
}

func TestEvaluateMalformedPlanIsInvalidArgument(t *testing.T) {
	svc := sharedService(t)

	_, err := svc.evaluate("not valid json at all")
	if err == nil {
		t.Fatal("expected an error for a malformed plan")
	}
	if errs.KindOf(err) != errs.InvalidArgument {
		t.Errorf("KindOf(err) = %v, want InvalidArgument", errs.KindOf(err))
	}
}

func TestMintChallengeIncrementsCount(t *testing.T) {
	svc := sharedService(t)
	before := svc.challenges.Count()

	value, err := svc.mintChallenge()
	if err != nil {
		t.Fatalf("mintChallenge failed: %v", err)
	}
	if len(value) != challenge.Size {
		t.Errorf("len(value) = %d, want %d", len(value), challenge.Size)
	}
	if svc.challenges.Count() != before+1 {
		t.Errorf("Count() = %d, want %d", svc.challenges.Count(), before+1)
	}
}

func TestFetchRequiresRegisteredKeyring(t *testing.T) {
	svc := sharedService(t)

	col := serializedInt64Column(t, "n", []int64{1})
	acc := &codec.Accumulator{}
	acc.Add(codec.Chunk{Data: codec.EncodeColumns([][]byte{col}), Policy: "{}", Savable: true})
	uploaded, err := svc.ingest(acc)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	challengeBytes, err := svc.mintChallenge()
	if err != nil {
		t.Fatalf("mintChallenge failed: %v", err)
	}

	// This Service was built with a nil keyring, so FetchDataFrame always
	// fails closed, exactly as NewService documents.
	_, _, _, err = svc.fetch("POST /fetch", uploaded.Identifier, challengeBytes, "alice", []byte("sig"), []byte("body"))
	if err == nil {
		t.Fatal("expected fetch to fail with no keyring configured")
	}
	if errs.KindOf(err) != errs.PermissionDenied {
		t.Errorf("KindOf(err) = %v, want PermissionDenied", errs.KindOf(err))
	}
}

func TestFetchWithSignedRequestSucceeds(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	dir := t.TempDir()
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey failed: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	if err := os.WriteFile(filepath.Join(dir, "alice.pem"), pemBytes, 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	kr, err := keyring.LoadDirectory(dir)
	if err != nil {
		t.Fatalf("LoadDirectory failed: %v", err)
	}

	logger := observability.NewLogger("test-fetch", "0.0.0", nil)
	reg := registry.New()
	challenges := challenge.New(challenge.DefaultTTL)
	svc := NewService(reg, challenges, kr, logger, sharedService(t).metrics, 0, nil)

	col := serializedInt64Column(t, "n", []int64{1, 2, 3})
	acc := &codec.Accumulator{}
	acc.Add(codec.Chunk{Data: codec.EncodeColumns([][]byte{col}), Policy: "{}", Savable: true})
	uploaded, err := svc.ingest(acc)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	challengeBytes, err := svc.mintChallenge()
	if err != nil {
		t.Fatalf("mintChallenge failed: %v", err)
	}

	method := "POST /fetch"
	body := []byte(`{"identifier":"` + uploaded.Identifier + `"}`)
	digest := keyring.CanonicalDigest(method, challengeBytes, body)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		t.Fatalf("SignASN1 failed: %v", err)
	}

	status, reason, payload, err := svc.fetch(method, uploaded.Identifier, challengeBytes, "alice", sig, body)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if status != codec.FetchReady {
		t.Errorf("status = %v, want FetchReady (frame was marked savable), reason=%q", status, reason)
	}
	if len(payload) == 0 {
		t.Error("expected a non-empty encoded payload")
	}
}

