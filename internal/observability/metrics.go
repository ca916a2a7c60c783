package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus metric the data-plane runtime exports,
// one gauge/counter/histogram per spec.md §4 subsystem: the frame
// registry (B), challenge service (C), token interceptor (E), plan
// evaluator (F), and the RPC facade (G) wiring them together. Grounded
// on the teacher's internal/observability.Metrics, which registers one
// promauto metric per subsystem of its own transfer pipeline the same way.
type Metrics struct {
	FramesRegistered  prometheus.Counter
	FramesFetched     prometheus.Counter
	FrameBytesSent    prometheus.Counter
	FrameBytesUploaded prometheus.Counter
	FramesResident    prometheus.GaugeFunc

	PlansEvaluated   prometheus.Counter
	PlanSegmentsRun  *prometheus.CounterVec
	PlanDuration     prometheus.Histogram
	PlanFailures     *prometheus.CounterVec

	ChallengesIssued   prometheus.Counter
	ChallengesConsumed *prometheus.CounterVec
	ChallengesOutstanding prometheus.GaugeFunc

	TokenVerifications *prometheus.CounterVec
	SignatureChecks    *prometheus.CounterVec

	RPCRequestsTotal *prometheus.CounterVec
	RPCDuration      *prometheus.HistogramVec
}

// NewMetrics constructs and registers every metric via promauto, so a
// second call within the same process (e.g. in tests) would panic on
// duplicate registration the same way the teacher's NewMetrics does —
// callers construct exactly one Metrics per process.
func NewMetrics() *Metrics {
	return &Metrics{
		FramesRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bastionlab_frames_registered_total",
			Help: "Frames inserted into the registry via SendDataFrame or RunQuery results.",
		}),
		FramesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bastionlab_frames_fetched_total",
			Help: "Completed FetchDataFrame streams.",
		}),
		FrameBytesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bastionlab_frame_bytes_sent_total",
			Help: "Bytes streamed out by FetchDataFrame.",
		}),
		FrameBytesUploaded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bastionlab_frame_bytes_uploaded_total",
			Help: "Bytes accumulated by SendDataFrame before decode.",
		}),

		PlansEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bastionlab_plans_evaluated_total",
			Help: "Composite plans evaluated to completion by RunQuery.",
		}),
		PlanSegmentsRun: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bastionlab_plan_segments_total",
			Help: "Plan segments dispatched, by variant.",
		}, []string{"variant"}),
		PlanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bastionlab_plan_duration_seconds",
			Help:    "Composite plan evaluation latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		PlanFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bastionlab_plan_failures_total",
			Help: "Plan evaluations that failed, by error kind.",
		}, []string{"kind"}),

		ChallengesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bastionlab_challenges_issued_total",
			Help: "Challenges minted via GetChallenge.",
		}),
		ChallengesConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bastionlab_challenges_consumed_total",
			Help: "Challenge consumption attempts, by result.",
		}, []string{"result"}),

		TokenVerifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bastionlab_token_verifications_total",
			Help: "Bearer-token verification attempts, by result.",
		}, []string{"result"}),
		SignatureChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bastionlab_signature_checks_total",
			Help: "Signed-request (challenge + signing key) checks, by result.",
		}, []string{"result"}),

		RPCRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bastionlab_rpc_requests_total",
			Help: "RPC calls handled, by method and status code.",
		}, []string{"method", "code"}),
		RPCDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bastionlab_rpc_duration_seconds",
			Help:    "RPC handler latency, by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// WithResidentFrames wires a gauge that reads the registry's live frame
// count on every scrape rather than being incremented by hand, avoiding
// drift between the counter and the registry's actual size.
func (m *Metrics) WithResidentFrames(count func() float64) {
	m.FramesResident = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "bastionlab_frames_resident",
		Help: "Frames currently held in the registry.",
	}, count)
}

// WithChallengesOutstanding mirrors WithResidentFrames for the challenge
// set, surfacing §9's "unbounded set" concern as a scraped gauge instead
// of leaving it invisible until memory pressure hits.
func (m *Metrics) WithChallengesOutstanding(count func() float64) {
	m.ChallengesOutstanding = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "bastionlab_challenges_outstanding",
		Help: "Challenges minted but not yet consumed or swept.",
	}, count)
}

// Handler exposes the Prometheus scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
