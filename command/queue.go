package command

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"sync"

	"github.com/aethiopicuschan/lanmesh/mesh"
	"github.com/aethiopicuschan/lanmesh/metrics"
	"go.uber.org/zap"
)

// Endpoint is the set of endpoint transitions a command can trigger.
type Endpoint interface {
	Open() error
	Connect(target netip.Addr) error
	Close()
	Snapshot() mesh.Snapshot
}

// Queue buffers commands between their issuers and the tick goroutine.
//
// Push may be called from any goroutine; Apply must be called from the
// goroutine that owns the endpoint.
type Queue struct {
	mu      sync.Mutex
	pending []Command

	dump     io.Writer
	logger   *zap.Logger
	recorder *metrics.Recorder
}

// NewQueue returns a Queue. Debug dumps go to dump when it is non-nil.
func NewQueue(dump io.Writer, logger *zap.Logger, recorder *metrics.Recorder) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		dump:     dump,
		logger:   logger,
		recorder: recorder,
	}
}

// Push enqueues c for the next Apply.
func (q *Queue) Push(c Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, c)
}

// Len reports the number of commands waiting for the next Apply.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Apply runs every pending command against ep in arrival order.
// A failing command is logged and does not stop the ones after it.
func (q *Queue) Apply(ep Endpoint) error {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	var errs []error
	for _, c := range batch {
		err := q.apply(ep, c)
		q.recorder.RecordCommand(c.Kind.String(), err)
		if err != nil {
			q.logger.Warn("command failed", zap.Stringer("command", c), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c, err))
		}
	}
	return errors.Join(errs...)
}

func (q *Queue) apply(ep Endpoint, c Command) error {
	switch c.Kind {
	case Open:
		return ep.Open()
	case Connect:
		return ep.Connect(c.Addr)
	case Close:
		ep.Close()
		return nil
	case Debug:
		return q.debug(ep.Snapshot())
	default:
		return ErrUnknownCommand
	}
}

func (q *Queue) debug(s mesh.Snapshot) error {
	peers := make([]string, 0, len(s.Peers))
	for _, p := range s.Peers {
		peers = append(peers, p.ID.String()+"@"+p.Addr.String())
	}
	q.logger.Info("endpoint state",
		zap.Stringer("self", s.SelfID),
		zap.Stringer("host", s.HostID),
		zap.Bool("bound", s.Bound),
		zap.Stringer("state", s.State),
		zap.Stringer("role", s.Role),
		zap.Strings("peers", peers),
	)
	if q.dump == nil {
		return nil
	}
	_, err := fmt.Fprintln(q.dump, s.String())
	return err
}
