// Package sink mirrors readings to optional secondary stores. ThingSpeak stays the primary
// upload; a failing sink is logged and tripped out, it never fails a wake cycle.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gr-butler/weathernode/data"
	logger "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

type Sink interface {
	Name() string
	Publish(ctx context.Context, r data.Reading) error
	Close() error
}

// Breaker stops calling a sink after repeated failures and tries again once openFor has
// passed.
type Breaker struct {
	Sink
	cb *gobreaker.CircuitBreaker
}

func NewBreaker(s Sink, failures uint32, openFor time.Duration) *Breaker {
	if failures < 1 {
		failures = 1
	}
	return &Breaker{
		Sink: s,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    s.Name(),
			Timeout: openFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warnf("Sink [%v] breaker [%v] -> [%v]", name, from, to)
			},
		}),
	}
}

func (b *Breaker) Publish(ctx context.Context, r data.Reading) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.Sink.Publish(ctx, r)
	})
	return err
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Fanout publishes to every sink in turn, each bounded by timeout.
type Fanout struct {
	sinks   []Sink
	timeout time.Duration
}

func NewFanout(timeout time.Duration, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, timeout: timeout}
}

func (f *Fanout) Len() int {
	return len(f.sinks)
}

// Publish returns the joined errors of the sinks that failed.
func (f *Fanout) Publish(ctx context.Context, r data.Reading) error {
	var errs []error
	for _, s := range f.sinks {
		if err := f.publishOne(ctx, s, r); err != nil {
			logger.Errorf("Sink [%v] failed [%v]", s.Name(), err)
			errs = append(errs, fmt.Errorf("%v: %w", s.Name(), err))
			continue
		}
		logger.Debugf("Sink [%v] ok", s.Name())
	}
	return errors.Join(errs...)
}

func (f *Fanout) publishOne(ctx context.Context, s Sink, r data.Reading) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	return s.Publish(ctx, r)
}

func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%v: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
