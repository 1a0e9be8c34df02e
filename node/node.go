// Package node runs an Endpoint on a fixed-rate tick together with the
// command queue and the replication driver.
package node

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aethiopicuschan/lanmesh/command"
	"github.com/aethiopicuschan/lanmesh/mesh"
	"github.com/aethiopicuschan/lanmesh/metrics"
	"github.com/aethiopicuschan/lanmesh/replica"
	"github.com/aethiopicuschan/lanmesh/wire"
	"go.uber.org/zap"
)

// World yields the transforms this node is authoritative for.
// It is read once per tick from the tick goroutine.
type World interface {
	Authoritative() []wire.Position
}

// Publisher observes the outcome of every tick.
type Publisher interface {
	Publish(snap mesh.Snapshot, events *mesh.Events)
}

// Node is the single owner of an Endpoint.
//
// Only the goroutine running Tick (or Run) touches the endpoint. Other
// goroutines talk to it through Commands and read it through Snapshot.
type Node struct {
	endpoint *mesh.Endpoint
	commands *command.Queue
	proxies  *replica.Proxies
	driver   *replica.Driver
	events   mesh.Events
	snapshot atomic.Pointer[mesh.Snapshot]
	ticks    atomic.Uint64

	opts     options
	logger   *zap.Logger
	recorder *metrics.Recorder
}

// New wraps endpoint. The endpoint must not be used directly afterwards.
func New(endpoint *mesh.Endpoint, opts ...Option) *Node {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	proxies := replica.NewProxies()
	n := &Node{
		endpoint: endpoint,
		commands: command.NewQueue(o.dump, o.logger.Named("command"), o.recorder),
		proxies:  proxies,
		driver:   replica.NewDriver(endpoint, proxies, o.logger.Named("replica"), o.recorder),
		opts:     o,
		logger:   o.logger,
		recorder: o.recorder,
	}
	snap := endpoint.Snapshot()
	n.snapshot.Store(&snap)
	return n
}

// Commands is the queue user intents are pushed to.
func (n *Node) Commands() *command.Queue { return n.commands }

// Proxies is the store of remote peers' replicated positions.
func (n *Node) Proxies() *replica.Proxies { return n.proxies }

// Snapshot returns the endpoint state published by the latest tick.
func (n *Node) Snapshot() mesh.Snapshot {
	return *n.snapshot.Load()
}

// Ticks reports how many ticks have completed.
func (n *Node) Ticks() uint64 { return n.ticks.Load() }

// Events returns the events of the latest tick. Only valid on the tick
// goroutine, until the next tick.
func (n *Node) Events() *mesh.Events { return &n.events }

// Tick runs one frame: pending commands, the network pump, proxy updates,
// then the broadcast of local transforms.
func (n *Node) Tick() {
	start := time.Now()

	if err := n.commands.Apply(n.endpoint); err != nil {
		n.logger.Debug("commands applied with errors", zap.Error(err))
	}
	n.endpoint.Process(&n.events)
	n.driver.Apply(&n.events)

	if n.opts.world != nil {
		if err := n.driver.Publish(n.opts.world.Authoritative()); err != nil {
			n.logger.Debug("transform publish incomplete", zap.Error(err))
		}
	}

	n.publish()
	n.ticks.Add(1)
	n.recorder.ObserveTick(time.Since(start))
}

// Run ticks at the configured rate until ctx is done, then closes the
// endpoint and delivers the resulting disconnections.
func (n *Node) Run(ctx context.Context) {
	ticker := time.NewTicker(n.opts.interval)
	defer ticker.Stop()

	n.logger.Info("node running", zap.Duration("interval", n.opts.interval))
	for {
		select {
		case <-ctx.Done():
			n.shutdown()
			return
		case <-ticker.C:
			n.Tick()
		}
	}
}

func (n *Node) shutdown() {
	n.endpoint.Close()
	n.endpoint.Process(&n.events)
	n.driver.Apply(&n.events)
	n.publish()
	n.logger.Info("node stopped", zap.Uint64("ticks", n.ticks.Load()))
}

func (n *Node) publish() {
	snap := n.endpoint.Snapshot()
	n.snapshot.Store(&snap)
	if n.opts.feed != nil {
		n.opts.feed.Publish(snap, &n.events)
	}
}
