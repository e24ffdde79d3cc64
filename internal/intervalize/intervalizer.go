package intervalize

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"vblock/internal/block"
	"vblock/internal/errors"
	"vblock/internal/obs"
	"vblock/pkg/exception"
)

// Config describes one subscription.
type Config struct {
	Item  string
	Topic string // defaults to LAST
	Kind  Kind

	Interval     time.Duration
	UpdatePeriod time.Duration

	// FailOnDataLoss stops the subscription when unread points were overwritten between polls.
	FailOnDataLoss bool
	// UsePreRollValue makes close-only bars report the last point before the boundary.
	UsePreRollValue bool
	// Location is the zone phases are measured in. Nil means UTC.
	Location *time.Location
}

// Option customizes an Intervalizer.
type Option func(*Intervalizer)

func WithMetrics(m *obs.Metrics) Option {
	return func(iv *Intervalizer) { iv.metrics = m }
}

// Intervalizer polls one stream of a block from its marker and turns it into bars.
type Intervalizer struct {
	block    block.Block
	cfg      Config
	roller   *Roller
	onBar    func(Bar)
	onStop   func()
	metrics  *obs.Metrics
	stopOnce sync.Once

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error

	lastVolume decimal.Decimal
	hasVolume  bool
}

// New validates cfg against b and prepares a subscription. onBar runs for every bar and
// onStop exactly once when the subscription ends; both run on the polling goroutine.
func New(ctx context.Context, b block.Block, cfg Config, onBar func(Bar), onStop func(), opts ...Option) (*Intervalizer, error) {
	if onBar == nil || onStop == nil {
		return nil, exception.ErrNilCallback
	}
	if cfg.Topic == "" {
		cfg.Topic = block.TopicLast
	}
	cfg.Item, cfg.Topic = strings.ToUpper(cfg.Item), strings.ToUpper(cfg.Topic)
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if err := ValidateInterval(cfg.Interval); err != nil {
		return nil, err
	}
	if err := ValidatePeriod(cfg.Interval, cfg.UpdatePeriod); err != nil {
		return nil, err
	}
	if err := checkBlock(ctx, b, cfg); err != nil {
		return nil, err
	}

	iv := &Intervalizer{
		block:  b,
		cfg:    cfg,
		roller: NewRoller(cfg.Kind, cfg.Interval, cfg.Location, cfg.UsePreRollValue),
		onBar:  onBar,
		onStop: onStop,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(iv)
	}
	return iv, nil
}

func checkBlock(ctx context.Context, b block.Block, cfg Config) error {
	items, err := b.Items(ctx)
	if err != nil {
		return errors.Wrap(err, "list items")
	}
	if !slices.Contains(items, cfg.Item) {
		return errors.Wrapf(exception.ErrMissingItem, "%s", cfg.Item)
	}

	topics, err := b.Topics(ctx)
	if err != nil {
		return errors.Wrap(err, "list topics")
	}
	if !slices.Contains(topics, cfg.Topic) {
		return errors.Wrapf(exception.ErrMissingTopic, "%s", cfg.Topic)
	}
	if cfg.Kind.HasVolume() && !slices.Contains(topics, block.TopicVolume) {
		return errors.Wrapf(exception.ErrMissingTopic, "%s", block.TopicVolume)
	}

	info, err := b.Info(ctx)
	if err != nil {
		return errors.Wrap(err, "block info")
	}
	if !info.DateTime {
		return exception.ErrDateTimeDisabled
	}
	return nil
}

func (iv *Intervalizer) Config() Config {
	return iv.cfg
}

// Start launches the polling goroutine. It stops when ctx is done, Stop is called, or a poll fails.
func (iv *Intervalizer) Start(ctx context.Context) error {
	iv.mu.Lock()
	defer iv.mu.Unlock()

	if iv.started {
		return exception.ErrAlreadyStarted
	}
	iv.started = true

	ctx, iv.cancel = context.WithCancel(ctx)
	go iv.run(ctx)
	return nil
}

// Stop ends the subscription and waits for the teardown callback. It must not be called
// from the callbacks themselves.
func (iv *Intervalizer) Stop() {
	iv.mu.Lock()
	if !iv.started {
		iv.started = true
		iv.mu.Unlock()
		iv.teardown()
		close(iv.done)
		return
	}
	cancel := iv.cancel
	iv.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-iv.done
}

// Done is closed once the subscription has ended and torn down.
func (iv *Intervalizer) Done() <-chan struct{} {
	return iv.done
}

// Wait blocks until the subscription ends and returns the error that ended it, if any.
func (iv *Intervalizer) Wait() error {
	<-iv.done
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.err
}

func (iv *Intervalizer) run(ctx context.Context) {
	defer close(iv.done)
	defer iv.teardown()

	logs.Infof("intervalize %s %s %s every %s", iv.cfg.Item, iv.cfg.Topic, iv.cfg.Kind, iv.cfg.Interval)

	var carry []block.Point
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		next, err := iv.poll(ctx, carry)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logs.Errorf("intervalize %s %s, err: %+v", iv.cfg.Item, iv.cfg.Topic, err)
			iv.mu.Lock()
			iv.err = err
			iv.mu.Unlock()
			return
		}
		carry = next
		timer.Reset(iv.cfg.UpdatePeriod)
	}
}

// poll reads everything past the marker and rolls it after the carry.
func (iv *Intervalizer) poll(ctx context.Context, carry []block.Point) ([]block.Point, error) {
	start := time.Now()
	points, err := iv.block.StreamSnapshotFromMarker(ctx, iv.cfg.Item, iv.cfg.Topic, 0, iv.cfg.FailOnDataLoss)
	iv.metrics.ObservePoll(time.Since(start), len(points))
	if err != nil {
		return carry, errors.Wrap(err, "read from marker")
	}
	if len(points) == 0 {
		return carry, nil
	}

	slices.Reverse(points)
	merged := make([]block.Point, 0, len(carry)+len(points))
	merged = append(merged, carry...)
	merged = append(merged, points...)

	return iv.roller.Roll(merged, func(bar Bar) error {
		bar.Item, bar.Topic = iv.cfg.Item, iv.cfg.Topic
		if iv.cfg.Kind.HasVolume() {
			if err := iv.volume(ctx, &bar); err != nil {
				return err
			}
		}
		iv.onBar(bar)
		iv.metrics.IncBars()
		return nil
	})
}

// volume fills the bar with the cumulative volume traded since the previous bar.
func (iv *Intervalizer) volume(ctx context.Context, bar *Bar) error {
	p, err := iv.block.Get(ctx, iv.cfg.Item, block.TopicVolume, 0, false)
	if err != nil {
		return errors.Wrap(err, "read volume")
	}
	if p.IsNil() {
		return nil
	}
	v, err := price(p)
	if err != nil {
		return err
	}
	if iv.hasVolume {
		bar.Volume, bar.HasVolume = v.Sub(iv.lastVolume), true
	}
	iv.lastVolume, iv.hasVolume = v, true
	return nil
}

func (iv *Intervalizer) teardown() {
	iv.stopOnce.Do(iv.onStop)
}
