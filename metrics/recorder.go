package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons reported by RecordDrop.
const (
	DropOversized = "oversized"
	DropMalformed = "malformed"
	DropRole      = "role_guard"
)

// Recorder exposes Prometheus metrics for a mesh node.
//
// All methods are safe on a nil *Recorder, so components can be built
// without metrics.
type Recorder struct {
	sent        *prometheus.CounterVec
	received    *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	sendErrors  prometheus.Counter
	peers       prometheus.Gauge
	handshakes  *prometheus.CounterVec
	evictions   prometheus.Counter
	proxyMisses prometheus.Counter
	commands    *prometheus.CounterVec
	tickDur     prometheus.Histogram
}

// NewRecorder registers metrics with the provided registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lanmesh_packets_sent_total",
			Help: "Datagrams written to the socket, by packet type",
		}, []string{"type"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lanmesh_packets_received_total",
			Help: "Datagrams read from the socket, by decoded packet type",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lanmesh_packets_dropped_total",
			Help: "Inbound datagrams discarded, by reason",
		}, []string{"reason"}),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lanmesh_send_errors_total",
			Help: "Datagrams that failed to transmit",
		}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lanmesh_peers",
			Help: "Current size of the peer table",
		}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lanmesh_handshakes_total",
			Help: "Handshake outcomes observed by this node",
		}, []string{"result"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lanmesh_evictions_total",
			Help: "Peers evicted by this node while acting as host",
		}),
		proxyMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lanmesh_proxy_misses_total",
			Help: "Transform updates that matched no proxy",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lanmesh_commands_total",
			Help: "Commands applied to the endpoint",
		}, []string{"kind", "result"}),
		tickDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lanmesh_tick_duration_seconds",
			Help:    "Wall time spent in one network tick",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025},
		}),
	}

	reg.MustRegister(
		r.sent,
		r.received,
		r.dropped,
		r.sendErrors,
		r.peers,
		r.handshakes,
		r.evictions,
		r.proxyMisses,
		r.commands,
		r.tickDur,
	)
	return r
}

// Handler returns an HTTP handler for the registry.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordSent counts a datagram written to the socket.
func (r *Recorder) RecordSent(packetType string) {
	if r == nil {
		return
	}
	r.sent.WithLabelValues(packetType).Inc()
}

// RecordReceived counts a datagram that decoded to a known packet.
func (r *Recorder) RecordReceived(packetType string) {
	if r == nil {
		return
	}
	r.received.WithLabelValues(packetType).Inc()
}

// RecordDrop counts an inbound datagram discarded for reason.
func (r *Recorder) RecordDrop(reason string) {
	if r == nil {
		return
	}
	r.dropped.WithLabelValues(reason).Inc()
}

// RecordSendError counts a failed socket write.
func (r *Recorder) RecordSendError() {
	if r == nil {
		return
	}
	r.sendErrors.Inc()
}

// SetPeers sets the size of the peer table.
func (r *Recorder) SetPeers(n int) {
	if r == nil {
		return
	}
	r.peers.Set(float64(n))
}

// RecordHandshake counts a handshake step; result is one of
// "admitted", "joined", "redirected", "introduced".
func (r *Recorder) RecordHandshake(result string) {
	if r == nil {
		return
	}
	r.handshakes.WithLabelValues(result).Inc()
}

// RecordEviction counts a peer evicted for silence.
func (r *Recorder) RecordEviction() {
	if r == nil {
		return
	}
	r.evictions.Inc()
}

// RecordProxyMiss counts a transform for an owner with no proxy.
func (r *Recorder) RecordProxyMiss() {
	if r == nil {
		return
	}
	r.proxyMisses.Inc()
}

// RecordCommand counts an applied command by kind and outcome.
func (r *Recorder) RecordCommand(kind string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.commands.WithLabelValues(kind, result).Inc()
}

// ObserveTick records how long one tick took.
func (r *Recorder) ObserveTick(d time.Duration) {
	if r == nil {
		return
	}
	r.tickDur.Observe(d.Seconds())
}
