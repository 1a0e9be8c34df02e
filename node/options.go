package node

import (
	"io"
	"time"

	"github.com/aethiopicuschan/lanmesh/metrics"
	"go.uber.org/zap"
)

const defaultTickRate = 60

type options struct {
	interval time.Duration
	world    World
	feed     Publisher
	dump     io.Writer
	logger   *zap.Logger
	recorder *metrics.Recorder
}

func defaultOptions() options {
	return options{
		interval: time.Second / defaultTickRate,
		logger:   zap.NewNop(),
	}
}

// Option configures a Node.
type Option func(*options)

// WithTickInterval sets the period of Run. Non-positive values are ignored.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithWorld sets the source of locally authoritative transforms.
func WithWorld(w World) Option {
	return func(o *options) {
		o.world = w
	}
}

// WithFeed sets a publisher that receives every tick's snapshot and events.
func WithFeed(p Publisher) Option {
	return func(o *options) {
		o.feed = p
	}
}

// WithDebugOutput sets where debug commands print the endpoint state.
func WithDebugOutput(w io.Writer) Option {
	return func(o *options) {
		o.dump = w
	}
}

// WithLogger sets the logger shared by the queue and the driver.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder sets the recorder for command results and tick durations.
func WithRecorder(r *metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}
