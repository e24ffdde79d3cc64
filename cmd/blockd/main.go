package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"vblock/internal/block"
	"vblock/internal/feed"
	"vblock/internal/obs"
	"vblock/internal/ops"
	"vblock/internal/rpc"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	address := flag.String("addr", "", "Listen address, overrides the config")
	debug := flag.Bool("debug", false, "Send failure details to clients")
	statsEvery := flag.Duration("stats", time.Minute, "Metrics log period, 0 disables")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %+v", err)
	}
	if *address != "" {
		cfg.Server.Address = *address
	}

	stopProfiler, err := ops.StartProfiler(cfg.Profile, map[string]string{"cmd": "blockd"})
	if err != nil {
		log.Fatalf("%+v", err)
	}
	defer stopProfiler()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sys.Shutdown()
		cancel()
	}()

	gen, err := feed.NewGenerator(cfg.Feed.Symbols, cfg.Feed.BasePrice, cfg.Feed.Step, cfg.Feed.Spread, cfg.Feed.BaseSize, cfg.Feed.Seed)
	if err != nil {
		log.Fatalf("generator init failed: %+v", err)
	}
	hub := feed.NewHub()

	metrics := obs.NewMetrics()
	factory := rpc.NewMemoryFactory(func(m *block.Memory) func() {
		logs.Infof("block %s created", m.Name())
		detach := hub.Attach(m)
		return func() {
			detach()
			logs.Infof("block %s released", m.Name())
		}
	})

	server, err := rpc.NewServer(cfg.Server.Address, factory,
		rpc.WithDebug(cfg.Debug || *debug),
		rpc.WithReadTimeout(cfg.Server.ReadTimeout),
		rpc.WithStaleAfter(cfg.Server.StaleAfter),
		rpc.WithDatagramSize(cfg.Server.DatagramSize),
		rpc.WithMetrics(metrics),
	)
	if err != nil {
		log.Fatalf("server init failed: %+v", err)
	}
	if err := server.Listen(); err != nil {
		log.Fatalf("listen %s failed: %+v", cfg.Server.Address, err)
	}
	defer server.Close()

	if cfg.Feed.Rate > 0 {
		go func() {
			if err := feed.NewSimulator(gen, hub, cfg.Feed.Rate).Run(ctx); err != nil {
				logs.Errorf("feed simulator stopped, err: %+v", err)
			}
		}()
	}

	if *statsEvery > 0 {
		go logStats(ctx, server, metrics, *statsEvery)
	}

	if err := server.Serve(ctx); err != nil {
		log.Fatalf("serve failed: %+v", err)
	}
}

func logStats(ctx context.Context, server *rpc.Server, metrics *obs.Metrics, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := metrics.Snapshot()
			logs.Infof("handles=%d datagrams=%d malformed=%d stale=%d dispatch_avg=%s dispatch_max=%s",
				server.Handles(), s.Datagrams, s.Malformed, s.StaleChunks, s.DispatchLatency.Avg, s.DispatchLatency.Max)
		}
	}
}
