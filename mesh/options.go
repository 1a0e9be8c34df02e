package mesh

import (
	"iter"
	"math"
	"math/rand/v2"
	"net/netip"
	"time"

	"github.com/aethiopicuschan/lanmesh/metrics"
	"go.uber.org/zap"
)

const (
	// DefaultBasePort is the first port of the well-known range.
	DefaultBasePort uint16 = 20200

	// DefaultPortRange is how many consecutive ports Open tries and Connect scans.
	DefaultPortRange = 10

	// DefaultDisconnectTimeout is how long a peer may stay silent before eviction.
	DefaultDisconnectTimeout = 2000 * time.Millisecond
)

type options struct {
	basePort          uint16
	portRange         int
	bindAddr          netip.Addr
	disconnectTimeout time.Duration
	logger            *zap.Logger
	recorder          *metrics.Recorder
	now               func() time.Time
	nextID            func() uint32
}

func defaultOptions() options {
	return options{
		basePort:          DefaultBasePort,
		portRange:         DefaultPortRange,
		bindAddr:          netip.IPv4Unspecified(),
		disconnectTimeout: DefaultDisconnectTimeout,
		logger:            zap.NewNop(),
		now:               time.Now,
		nextID:            rand.Uint32,
	}
}

// ports yields the ports of the bind/scan range. The range is cut at 65535
// rather than wrapping around to port 0.
func (o options) ports() iter.Seq[uint16] {
	return func(yield func(uint16) bool) {
		for i := 0; i < o.portRange; i++ {
			port := int(o.basePort) + i
			if port > math.MaxUint16 {
				return
			}
			if !yield(uint16(port)) {
				return
			}
		}
	}
}

// Option configures an Endpoint.
type Option func(*options)

// WithBasePort sets the first port of the bind/scan range.
func WithBasePort(port uint16) Option {
	return func(o *options) {
		if port != 0 {
			o.basePort = port
		}
	}
}

// WithPortRange sets how many consecutive ports are used.
func WithPortRange(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.portRange = n
		}
	}
}

// WithBindAddr sets the local IPv4 address the socket binds to.
func WithBindAddr(addr netip.Addr) Option {
	return func(o *options) {
		if addr.IsValid() {
			o.bindAddr = addr.Unmap()
		}
	}
}

// WithDisconnectTimeout sets the silence threshold used by the sweep.
func WithDisconnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.disconnectTimeout = d
		}
	}
}

// WithLogger sets the logger. A nil logger keeps the no-op default.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder. nil disables metrics.
func WithRecorder(r *metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithClock replaces time.Now, mainly for tests that exercise eviction.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDSource replaces the random source used for identities.
func WithIDSource(next func() uint32) Option {
	return func(o *options) {
		if next != nil {
			o.nextID = next
		}
	}
}
