package transport

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshuafuller/httpu/internal/logging"
	"github.com/joshuafuller/httpu/internal/metrics"
)

// Option is a functional option for configuring a UDPConnector.
//
// Options are applied in order by NewUDPConnector before the socket is bound.
//
// Example:
//
//	c, err := transport.NewUDPConnector(transport.HostPort("0.0.0.0:0"),
//	    transport.WithLogger(logger),
//	    transport.WithMetricsRegisterer(prometheus.DefaultRegisterer),
//	)
type Option func(*UDPConnector) error

// WithMulticastTTL records a multicast TTL for the connector.
//
// The value is accepted and reported by MulticastTTL, but it is NOT applied to
// the socket: setting IP_MULTICAST_TTL on the shared socket returned EINVAL in
// testing, so the call is deferred. Callers must not rely on the TTL taking
// effect; datagrams leave with the OS default (1 hop).
func WithMulticastTTL(ttl uint32) Option {
	return func(c *UDPConnector) error {
		c.multicastTTL = ttl
		c.hasMulticastTTL = true
		return nil
	}
}

// WithLogger sets the logger for lifecycle debug messages. A nil logger
// restores the default, which discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *UDPConnector) error {
		if logger == nil {
			logger = logging.NopLogger()
		}
		c.logger = logger
		return nil
	}
}

// WithMetricsRegisterer enables Prometheus metrics on reg. Connectors sharing
// a registerer share one set of collectors.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *UDPConnector) error {
		c.metrics = metrics.For(reg)
		return nil
	}
}
