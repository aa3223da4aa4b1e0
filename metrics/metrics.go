// Package metrics exposes the driver's Prometheus counters and gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter and gauge the driver updates as it processes
// events, meta-votes, and blocks.
type Metrics struct {
	eventsAppended      *prometheus.CounterVec
	blocksStable        prometheus.Counter
	metaVoteDecisions   prometheus.Counter
	graphSize           prometheus.Gauge
	pendingBlocks       prometheus.Gauge
	requestsHandled     prometheus.Counter
	responsesHandled    prometheus.Counter
	insufficientVotes   prometheus.Counter
}

// New registers and returns a fresh Metrics instance against reg. Pass
// prometheus.DefaultRegisterer in production, or a prometheus.NewRegistry()
// per driver in tests that run more than one driver in the same process.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		eventsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parsec_events_appended_total",
			Help: "Total number of gossip events appended to the graph, by origin.",
		}, []string{"origin"}),

		blocksStable: factory.NewCounter(prometheus.CounterOpts{
			Name: "parsec_blocks_stable_total",
			Help: "Total number of blocks that have reached stability.",
		}),

		metaVoteDecisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "parsec_meta_vote_decisions_total",
			Help: "Total number of meta-votes that reached a decision.",
		}),

		graphSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parsec_graph_size",
			Help: "Current number of events held in the gossip graph.",
		}),

		pendingBlocks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parsec_pending_blocks",
			Help: "Current number of stable blocks waiting to be polled.",
		}),

		requestsHandled: factory.NewCounter(prometheus.CounterOpts{
			Name: "parsec_requests_handled_total",
			Help: "Total number of sync requests handled.",
		}),

		responsesHandled: factory.NewCounter(prometheus.CounterOpts{
			Name: "parsec_responses_handled_total",
			Help: "Total number of sync responses handled.",
		}),

		insufficientVotes: factory.NewCounter(prometheus.CounterOpts{
			Name: "parsec_insufficient_votes_total",
			Help: "Total number of block-assembly attempts that failed for lack of a super-majority.",
		}),
	}
}

// EventAppended records one event appended to the graph, tagged by whether
// it originated locally or from an incoming sync.
func (m *Metrics) EventAppended(origin string) {
	m.eventsAppended.WithLabelValues(origin).Inc()
}

// BlockStabilised records one newly stabilised block. It leaves the
// pending-block gauge untouched; callers should follow with SetPendingBlocks.
func (m *Metrics) BlockStabilised() {
	m.blocksStable.Inc()
}

// MetaVoteDecided records one meta-vote reaching a decision.
func (m *Metrics) MetaVoteDecided() {
	m.metaVoteDecisions.Inc()
}

// SetGraphSize updates the current graph size gauge.
func (m *Metrics) SetGraphSize(n int) {
	m.graphSize.Set(float64(n))
}

// SetPendingBlocks updates the current pending-block-queue gauge.
func (m *Metrics) SetPendingBlocks(n int) {
	m.pendingBlocks.Set(float64(n))
}

// RequestHandled records one handled sync request.
func (m *Metrics) RequestHandled() {
	m.requestsHandled.Inc()
}

// ResponseHandled records one handled sync response.
func (m *Metrics) ResponseHandled() {
	m.responsesHandled.Inc()
}

// InsufficientVotes records one failed block-assembly attempt.
func (m *Metrics) InsufficientVotes() {
	m.insufficientVotes.Inc()
}
