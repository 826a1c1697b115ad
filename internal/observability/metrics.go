// Package observability owns the prometheus instrumentation for a running
// DrawNet session.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	packetsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drawnet",
			Subsystem: "session",
			Name:      "packets_sent_total",
			Help:      "Total packets written to peers.",
		},
		[]string{"type"},
	)
	packetsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drawnet",
			Subsystem: "session",
			Name:      "packets_received_total",
			Help:      "Total packets decoded from peers.",
		},
		[]string{"type"},
	)
	bytesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "drawnet",
			Subsystem: "session",
			Name:      "bytes_sent_total",
			Help:      "Total wire bytes written to peers.",
		},
	)
	bytesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "drawnet",
			Subsystem: "session",
			Name:      "bytes_received_total",
			Help:      "Total wire bytes read from peers.",
		},
	)
	peersConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "drawnet",
			Subsystem: "session",
			Name:      "peers_connected",
			Help:      "Currently connected peers, local record included.",
		},
	)
	handshakeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drawnet",
			Subsystem: "session",
			Name:      "handshake_failures_total",
			Help:      "HELLO handshakes rejected by the host.",
		},
		[]string{"result"},
	)
	canvasTransfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drawnet",
			Subsystem: "canvas",
			Name:      "transfers_total",
			Help:      "Canvas transfers by direction and outcome.",
		},
		[]string{"direction", "outcome"},
	)
	protocolErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "drawnet",
			Subsystem: "session",
			Name:      "protocol_errors_total",
			Help:      "Frames dropped for magic/version/type/length violations.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			packetsSent, packetsReceived,
			bytesSent, bytesReceived,
			peersConnected, handshakeFailures,
			canvasTransfers, protocolErrors,
		)
	})
}

func RecordPacketSent(msgType string, wireBytes int) {
	RegisterMetrics()
	packetsSent.WithLabelValues(msgType).Inc()
	bytesSent.Add(float64(wireBytes))
}

func RecordPacketReceived(msgType string, wireBytes int) {
	RegisterMetrics()
	packetsReceived.WithLabelValues(msgType).Inc()
	bytesReceived.Add(float64(wireBytes))
}

func SetPeersConnected(n int) {
	RegisterMetrics()
	peersConnected.Set(float64(n))
}

func RecordHandshakeFailure(result string) {
	RegisterMetrics()
	handshakeFailures.WithLabelValues(result).Inc()
}

func RecordCanvasTransfer(direction, outcome string) {
	RegisterMetrics()
	canvasTransfers.WithLabelValues(direction, outcome).Inc()
}

func RecordProtocolError() {
	RegisterMetrics()
	protocolErrors.Inc()
}
