package main

import (
	"context"
	"flag"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"vblock/internal/block"
	"vblock/internal/bus"
	"vblock/internal/intervalize"
	"vblock/internal/obs"
	"vblock/internal/ops"
	"vblock/internal/rpc"
	"vblock/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	address := flag.String("addr", "", "Block server address, overrides the config")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %+v", err)
	}
	if *address != "" {
		cfg.Proxy.Address = *address
	}
	subs, err := cfg.Intervalizers()
	if err != nil {
		log.Fatalf("%+v", err)
	}
	if len(subs) == 0 {
		log.Fatalf("no subscriptions configured")
	}

	stopProfiler, err := ops.StartProfiler(cfg.Profile, map[string]string{"cmd": "intervalize"})
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

	proxy, err := rpc.Dial(cfg.Proxy.Address,
		rpc.WithCallTimeout(cfg.Proxy.CallTimeout),
		rpc.WithProxyDatagramSize(cfg.Proxy.DatagramSize),
	)
	if err != nil {
		log.Fatalf("dial failed: %+v", err)
	}
	defer proxy.Close()

	if err := prepareBlock(ctx, proxy, cfg.Block, subs); err != nil {
		log.Fatalf("prepare block failed: %+v", err)
	}

	sinks, err := openSinks(ctx, cfg.Sinks)
	if err != nil {
		log.Fatalf("open sinks failed: %+v", err)
	}

	metrics := obs.NewMetrics()
	queue := bus.NewQueue(cfg.Sinks.QueueSize, metrics)
	fanout := store.NewFanout(cfg.Sinks.WriteTimeout, metrics, sinks...)

	var sinkWg sync.WaitGroup
	sinkWg.Add(1)
	go func() {
		defer sinkWg.Done()
		if err := fanout.Run(context.Background(), queue); err != nil {
			logs.Errorf("close sinks, err: %+v", err)
		}
	}()

	ids := obs.NewSeqGenerator(uint64(time.Now().UnixNano()))
	ivs := make([]*intervalize.Intervalizer, 0, len(subs))
	for _, sub := range subs {
		iv, err := intervalize.New(ctx, proxy, sub,
			func(b intervalize.Bar) {
				if err := queue.TryPublish(bus.Event{ID: ids.Next(), Bar: b}); err != nil {
					logs.Warnf("drop bar %s, err: %+v", b, err)
				}
			},
			func() {
				logs.Infof("subscription %s %s %s stopped", sub.Item, sub.Kind, sub.Interval)
			},
			intervalize.WithMetrics(metrics),
		)
		if err != nil {
			log.Fatalf("subscription %s failed: %+v", sub.Item, err)
		}
		if err := iv.Start(ctx); err != nil {
			log.Fatalf("start subscription %s failed: %+v", sub.Item, err)
		}
		logs.Infof("subscription %s %s %s every %s started", sub.Item, sub.Kind, sub.Interval, sub.UpdatePeriod)
		ivs = append(ivs, iv)
	}

	<-ctx.Done()
	for _, iv := range ivs {
		iv.Stop()
		if err := iv.Wait(); err != nil {
			logs.Errorf("subscription %s ended with error: %+v", iv.Config().Item, err)
		}
	}

	queue.Close()
	sinkWg.Wait()

	s := metrics.Snapshot()
	logs.Infof("bars=%d empty_polls=%d queue_drops=%d poll_avg=%s sink_avg=%s",
		s.BarsEmitted, s.EmptyPolls, s.QueueDrops, s.PollLatency.Avg, s.SinkLatency.Avg)
}

// prepareBlock creates the remote block and registers every item and topic the subscriptions read.
func prepareBlock(ctx context.Context, proxy *rpc.Proxy, cfg ops.BlockConfig, subs []intervalize.Config) error {
	if err := proxy.CreateBlock(ctx, cfg.Size, true, int(cfg.Timeout/time.Millisecond)); err != nil {
		return err
	}

	var items, topics []string
	for _, sub := range subs {
		items = appendNew(items, sub.Item)
		topics = appendNew(topics, sub.Topic)
		if sub.Kind.HasVolume() {
			topics = appendNew(topics, block.TopicVolume)
		}
	}

	if err := proxy.AddItems(ctx, items...); err != nil {
		return err
	}
	return proxy.AddTopics(ctx, topics...)
}

func appendNew(list []string, name string) []string {
	if slices.Contains(list, name) {
		return list
	}
	return append(list, name)
}

func openSinks(ctx context.Context, cfg ops.SinkConfig) ([]store.Sink, error) {
	var sinks []store.Sink
	if cfg.Log {
		sinks = append(sinks, store.LogSink{})
	}
	if cfg.Postgres.Enabled() {
		s, err := store.OpenPostgresSink(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.Redis.Enabled() {
		s, err := store.OpenRedisSink(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 0 {
		logs.Warnf("no sink enabled, bars are dropped")
	}
	return sinks, nil
}
