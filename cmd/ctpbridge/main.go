package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"golang.org/x/sync/errgroup"

	"ctpbridge/internal/bus"
	"ctpbridge/internal/gateway"
	"ctpbridge/internal/obs"
	"ctpbridge/internal/ops"
	"ctpbridge/internal/relay"
	"ctpbridge/internal/session"
	"ctpbridge/internal/store"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("ctpbridge: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "ctpbridge.json", "Path to JSON config")
	pyroscopeAddr := flag.String("pyroscope-addr", "", "Pyroscope server address (overrides config)")
	statsInterval := flag.Duration("stats-interval", 30*time.Second, "Metrics log interval (0=disable)")
	configReload := flag.Duration("config-reload-interval", 5*time.Second, "Subscription reload interval (0=disable)")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		return err
	}
	if *pyroscopeAddr != "" {
		loaded.Pyroscope.Address = *pyroscopeAddr
	}
	stopProfiler, err := startProfiler(loaded.Pyroscope)
	if err != nil {
		return err
	}
	defer stopProfiler()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var trades *store.Store
	if loaded.Store != nil {
		s, client, err := store.Open(ctx, *loaded.Store)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		trades = s
		logs.Infof("ctpbridge: persisting trades to %s", loaded.Store.Redacted())
	}

	metrics := obs.NewMetrics()
	queue := bus.NewQueue(loaded.BusCapacity, metrics)
	gw := gateway.New(loaded.Gateway, queue)

	engine, err := newEngine(loaded)
	if err != nil {
		return err
	}
	opts := loaded.Session
	opts.Metrics = metrics
	opts.Attacher = relay.NewThreadAttacher(loaded.Attach, loaded.AttachLimit)
	sess, err := session.New(engine.Engine, gw, opts)
	if err != nil {
		return err
	}
	gw.Bind(sess)

	var consumers errgroup.Group
	consumers.Go(func() error {
		consume(ctx, queue, newSink(trades))
		return nil
	})

	var background errgroup.Group
	bgCtx, stopBackground := context.WithCancel(ctx)
	if engine.Feed != nil {
		background.Go(func() error {
			engine.Feed(bgCtx, gw.Subscriptions)
			return nil
		})
	}
	if *statsInterval > 0 {
		background.Go(func() error {
			logStats(bgCtx, metrics, *statsInterval)
			return nil
		})
	}
	if *configReload > 0 {
		background.Go(func() error {
			watchConfig(bgCtx, *configPath, *configReload, gw)
			return nil
		})
	}

	if err := sess.Start(); err != nil {
		stopBackground()
		_ = background.Wait()
		_ = sess.Close()
		queue.Close()
		_ = consumers.Wait()
		return err
	}
	logs.Infof("ctpbridge: session %s running, engine: %s", sess.ID(), loaded.EngineKind)

	<-sys.Shutdown()
	logs.Info("ctpbridge: shutting down")

	stopBackground()
	_ = background.Wait()
	if err := sess.Close(); err != nil {
		logs.Errorf("ctpbridge: close session, err: %+v", err)
	}
	// the relay holds gw weakly
	runtime.KeepAlive(gw)
	queue.Close()
	if err := consumers.Wait(); err != nil {
		return errors.Wrap(err, "consumer")
	}
	logMetrics(metrics)
	return nil
}

func startProfiler(cfg ops.PyroscopeConfig) (func(), error) {
	if cfg.Address == "" {
		return func() {}, nil
	}
	app := cfg.Application
	if app == "" {
		app = "ctpbridge"
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: app,
		ServerAddress:   cfg.Address,
		Logger:          emptyLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "start pyroscope")
	}
	return func() { _ = profiler.Stop() }, nil
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}

func logStats(ctx context.Context, metrics *obs.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logMetrics(metrics)
		}
	}
}

func logMetrics(metrics *obs.Metrics) {
	s := metrics.Snapshot()
	logs.Infof("metrics: delivered=%v dropped=%v failed=%v attach_failures=%v marshal_faults=%v bus_drops=%d bus_closed=%d handler_latency=%+v",
		s.Delivered, s.Dropped, s.Failed, s.AttachFailures, s.MarshalFaults, s.BusDrops, s.BusClosed, s.HandlerLatency)
}

// watchConfig applies subscription changes from the config file while
// running. Every other setting needs a restart.
func watchConfig(ctx context.Context, path string, interval time.Duration, gw *gateway.Gateway) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logs.Errorf("config stat, err: %+v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			loaded, err := ops.Load(path)
			if err != nil {
				logs.Errorf("config reload, err: %+v", err)
				continue
			}
			lastMod = info.ModTime()
			add, remove := diff(gw.Subscriptions(), loaded.Gateway.Instruments)
			if err := gw.Subscribe(add...); err != nil {
				logs.Errorf("config reload: subscribe %v, err: %+v", add, err)
			}
			if err := gw.Unsubscribe(remove...); err != nil {
				logs.Errorf("config reload: unsubscribe %v, err: %+v", remove, err)
			}
			logs.Infof("config reloaded: %s, subscribed %v, unsubscribed %v", path, add, remove)
		}
	}
}

func diff(current, wanted []string) (add, remove []string) {
	have := make(map[string]struct{}, len(current))
	for _, id := range current {
		have[id] = struct{}{}
	}
	want := make(map[string]struct{}, len(wanted))
	for _, id := range wanted {
		want[id] = struct{}{}
		if _, ok := have[id]; !ok {
			add = append(add, id)
		}
	}
	for _, id := range current {
		if _, ok := want[id]; !ok {
			remove = append(remove, id)
		}
	}
	return add, remove
}
