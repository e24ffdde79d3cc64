package ops

import (
	"strings"
	"time"

	"github.com/yanun0323/errors"

	"vblock/internal/block"
	"vblock/internal/intervalize"
	"vblock/pkg/exception"
)

// DefaultUpdatePeriod is used when a subscription sets none. It divides every valid interval.
const DefaultUpdatePeriod = time.Second

// Intervalizers resolves every subscription into an intervalize.Config.
func (c Config) Intervalizers() ([]intervalize.Config, error) {
	out := make([]intervalize.Config, 0, len(c.Subscriptions))
	for i, s := range c.Subscriptions {
		cfg, err := s.resolve()
		if err != nil {
			return nil, errors.Wrap(err, "resolve subscription").With("index", i).With("item", s.Item)
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (s SubscriptionConfig) resolve() (intervalize.Config, error) {
	if strings.TrimSpace(s.Item) == "" {
		return intervalize.Config{}, errors.Wrap(exception.ErrConfig, "item is required")
	}

	kind := intervalize.KindClose
	if s.Kind != "" {
		k, ok := intervalize.ParseKind(s.Kind)
		if !ok {
			return intervalize.Config{}, errors.Wrap(exception.ErrConfig, "unknown bar kind").With("kind", s.Kind)
		}
		kind = k
	}

	interval, err := intervalize.ParseInterval(s.Interval)
	if err != nil {
		return intervalize.Config{}, err
	}

	period := s.UpdatePeriod
	if period == 0 {
		period = DefaultUpdatePeriod
	}
	if err := intervalize.ValidatePeriod(interval, period); err != nil {
		return intervalize.Config{}, err
	}

	loc := time.UTC
	if s.Location != "" {
		l, err := time.LoadLocation(s.Location)
		if err != nil {
			return intervalize.Config{}, errors.Wrap(err, "load location").With("location", s.Location)
		}
		loc = l
	}

	topic := strings.ToUpper(strings.TrimSpace(s.Topic))
	if topic == "" {
		topic = block.TopicLast
	}

	failOnLoss := true
	if s.FailOnDataLoss != nil {
		failOnLoss = *s.FailOnDataLoss
	}

	return intervalize.Config{
		Item:            strings.ToUpper(strings.TrimSpace(s.Item)),
		Topic:           topic,
		Kind:            kind,
		Interval:        interval,
		UpdatePeriod:    period,
		FailOnDataLoss:  failOnLoss,
		UsePreRollValue: s.PreRoll,
		Location:        loc,
	}, nil
}
