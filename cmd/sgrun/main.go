// Command sgrun runs a sensor-graph engine as a standalone process: it
// loads a device model and runtime configuration, builds the storage
// engine and a sensor graph with its streamer registry, then drives
// everything from wall-clock ticks until a termination signal arrives.
// It adds no nodes or streamers of its own, so the graph starts empty.
//
// Wiring a real RPC transport (the command-map/wire-protocol layer) is
// out of this subsystem's scope; sgrun demonstrates the engine running
// end to end against its own internal tick sources.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iotile-sg/sensorgraph/internal/config"
	"github.com/iotile-sg/sensorgraph/internal/eventlog"
	"github.com/iotile-sg/sensorgraph/internal/graph"
	"github.com/iotile-sg/sensorgraph/internal/hoststats"
	"github.com/iotile-sg/sensorgraph/internal/logging"
	"github.com/iotile-sg/sensorgraph/internal/rpc"
	"github.com/iotile-sg/sensorgraph/internal/scheduler"
	"github.com/iotile-sg/sensorgraph/internal/sensorlog"
	"github.com/iotile-sg/sensorgraph/internal/storage"
	"github.com/iotile-sg/sensorgraph/internal/stream"
	"github.com/iotile-sg/sensorgraph/internal/streamer"
)

// Tick streams are unbuffered system inputs, one per configurable
// interval slot. A graph descriptor triggers off one of these the same
// way it would off any other unbuffered input selector.
var tickStreams = map[scheduler.Slot]stream.ID{
	scheduler.Fast:  stream.Encode(true, stream.UnbufferedInput, 1),
	scheduler.User1: stream.Encode(true, stream.UnbufferedInput, 2),
	scheduler.User2: stream.Encode(true, stream.UnbufferedInput, 3),
}

// Host-stat constant streams, wired only when host_stats.interval_seconds
// is positive.
const (
	defaultCPUStream = 0x0D01
	defaultMemStream = 0x0D02
)

func main() {
	configPath := flag.String("config", "/etc/sgrun/runtime.yaml", "path to runtime config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer closer.Close()

	events, err := eventlog.Open(cfg.EventLog.Path, cfg.EventLog.RingSize, cfg.EventLog.MaxLines)
	if err != nil {
		logger.Error("opening event log", "error", err)
		os.Exit(1)
	}
	defer events.Close()

	log := sensorlog.New(storage.Config{
		StorageCapacity:   cfg.Device.StorageCapacity,
		StreamingCapacity: cfg.Device.StreamingCapacity,
		StorageRollover:   !cfg.Vars.StorageFillStop,
		StreamingRollover: !cfg.Vars.StreamingFillStop,
	})

	g := graph.New(log, cfg.Device, graph.DefaultRegistry(), logger)

	// rpcExecutor backs any call_rpc processing functions a compiled
	// graph declares; rpc.Handlers (the push_reading/dump_stream surface
	// an external transport would call) is not constructed here, since
	// nothing in this process would call it and wiring that transport is
	// out of this subsystem's scope.
	rpcExecutor := rpc.NewExecutor()

	if cfg.HostStats.IntervalSeconds > 0 {
		cpuStream := stream.ID(cfg.HostStats.CPUStream)
		memStream := stream.ID(cfg.HostStats.MemStream)
		if cpuStream == 0 {
			cpuStream = stream.Encode(true, stream.Constant, defaultCPUStream)
		}
		if memStream == 0 {
			memStream = stream.Encode(true, stream.Constant, defaultMemStream)
		}

		sampler := hoststats.New(log, logger, time.Duration(cfg.HostStats.IntervalSeconds)*time.Second, cpuStream, memStream)
		sampler.Start()
		defer sampler.Stop()
	}

	intervals := scheduler.Intervals{
		Fast:  cfg.Vars.Fast,
		User1: cfg.Vars.User1,
		User2: cfg.Vars.User2,
	}

	tick := func(ctx context.Context, slot scheduler.Slot, firedAt time.Time) error {
		id, ok := tickStreams[slot]
		if !ok {
			return fmt.Errorf("sgrun: no tick stream registered for slot %q", slot)
		}

		if err := g.ProcessInput(id, 1, uint32(firedAt.Unix()), rpcExecutor); err != nil {
			events.Event("error", "tick", err.Error(), int(id))
			return err
		}

		for _, ready := range g.CheckStreamers(nil) {
			reports, err := streamer.Assemble(ready, streamer.CompressionGzip)
			if err != nil {
				events.Event("error", "streamer", err.Error(), ready.Index)
				continue
			}
			for _, r := range reports {
				events.Event("info", "streamer", fmt.Sprintf("assembled report with %d readings", len(r.Readings)), ready.Index)
			}
		}

		return nil
	}

	ticker, err := scheduler.New(intervals, logger, tick)
	if err != nil {
		logger.Error("building scheduler", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	ticker.Start()
	logger.Info("sgrun started", "config", *configPath, "nodes", len(g.Nodes()))

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	ticker.Stop(ctx)
}
