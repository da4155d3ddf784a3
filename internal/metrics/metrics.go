// Package metrics provides Prometheus metrics for the httpu transport.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "httpu"
)

// Metrics contains the transport counters.
//
// All Record* methods are safe to call on a nil *Metrics, in which case they
// do nothing. A connector built without a registerer carries a nil *Metrics.
type Metrics struct {
	// Connector metrics
	ConnectsTotal prometheus.Counter
	ConnectErrors *prometheus.CounterVec

	// Datagram metrics
	DatagramsSent     prometheus.Counter
	DatagramsReceived prometheus.Counter
	BytesSent         prometheus.Counter
	BytesReceived     prometheus.Counter
	SendErrors        prometheus.Counter
	ReceiveErrors     prometheus.Counter

	// Multicast metrics
	MulticastOps *prometheus.CounterVec
}

var (
	registryMu sync.Mutex
	registries = map[prometheus.Registerer]*Metrics{}
)

// For returns the Metrics registered on reg, creating and registering them
// on first use. A nil reg returns nil, which disables recording.
func For(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if m, ok := registries[reg]; ok {
		return m
	}
	m := NewMetricsWithRegistry(reg)
	registries[reg] = m
	return m
}

// NewMetricsWithRegistry creates a Metrics instance registered on reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Total destination-bound senders created by connectors",
		}),
		ConnectErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_errors_total",
			Help:      "Total failed connects by error kind",
		}, []string{"kind"}),

		DatagramsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_sent_total",
			Help:      "Total datagrams transmitted",
		}),
		DatagramsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_received_total",
			Help:      "Total datagrams received",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total payload bytes transmitted",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total payload bytes received",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Total failed datagram transmissions",
		}),
		ReceiveErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receive_errors_total",
			Help:      "Total failed datagram receives",
		}),

		MulticastOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "multicast_operations_total",
			Help:      "Total multicast membership changes by operation and family",
		}, []string{"op", "family"}),
	}
}

// RecordConnect counts a successful connect.
func (m *Metrics) RecordConnect() {
	if m == nil {
		return
	}
	m.ConnectsTotal.Inc()
}

// RecordConnectError counts a failed connect. kind is "invalid_input" or "os".
func (m *Metrics) RecordConnectError(kind string) {
	if m == nil {
		return
	}
	m.ConnectErrors.WithLabelValues(kind).Inc()
}

// RecordSent counts one transmitted datagram of n bytes.
func (m *Metrics) RecordSent(n int) {
	if m == nil {
		return
	}
	m.DatagramsSent.Inc()
	m.BytesSent.Add(float64(n))
}

// RecordSendError counts a failed transmission.
func (m *Metrics) RecordSendError() {
	if m == nil {
		return
	}
	m.SendErrors.Inc()
}

// RecordReceived counts one received datagram of n bytes.
func (m *Metrics) RecordReceived(n int) {
	if m == nil {
		return
	}
	m.DatagramsReceived.Inc()
	m.BytesReceived.Add(float64(n))
}

// RecordReceiveError counts a failed receive.
func (m *Metrics) RecordReceiveError() {
	if m == nil {
		return
	}
	m.ReceiveErrors.Inc()
}

// RecordMulticast counts a join or leave. op is "join" or "leave", family is
// "ipv4" or "ipv6".
func (m *Metrics) RecordMulticast(op, family string) {
	if m == nil {
		return
	}
	m.MulticastOps.WithLabelValues(op, family).Inc()
}
