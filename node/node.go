// Package node runs the wake cycle: check the battery, read the sensor, upload, sleep.
package node

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gr-butler/weathernode/buffer"
	"github.com/gr-butler/weathernode/config"
	"github.com/gr-butler/weathernode/data"
	"github.com/gr-butler/weathernode/env"
	"github.com/gr-butler/weathernode/metrics"
	"github.com/gr-butler/weathernode/sensors"
	logger "github.com/sirupsen/logrus"
)

// ErrCriticalBattery is returned by Cycle when it went back to sleep without reading.
var ErrCriticalBattery = errors.New("battery critical")

type Atmosphere interface {
	Read(ctx context.Context) (sensors.Environment, error)
}

type BatteryReader interface {
	ReadMillivolts() (int, error)
}

type Uploader interface {
	Update(ctx context.Context, r data.Reading) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, r data.Reading) error
}

// Deps are the parts of the node that touch hardware or the network. Battery, Uploader
// and Sinks may be nil.
type Deps struct {
	Atmosphere  Atmosphere
	Battery     BatteryReader
	Uploader    Uploader
	Sinks       Publisher
	WaitNetwork func(ctx context.Context) error
}

type Node struct {
	cfg        *config.Config
	deps       Deps
	Data       *data.NodeData
	batteryBuf *buffer.SampleBuffer
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

func New(cfg *config.Config, deps Deps) *Node {
	n := &Node{
		cfg:        cfg,
		deps:       deps,
		Data:       data.CreateNodeData(cfg.Mode.Kind()),
		batteryBuf: buffer.NewBuffer(cfg.Battery.Samples),
		now:        time.Now,
		sleep:      sleepCtx,
	}
	n.Data.AddBuffer("battery", n.batteryBuf)
	return n
}

// Cycle runs one wake period bounded by the awake timeout and returns the plan for the
// following sleep.
func (n *Node) Cycle(ctx context.Context) (config.Plan, error) {
	start := n.now()
	defer func() { metrics.Prom_awake.Observe(n.now().Sub(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, n.cfg.AwakeTimeout)
	defer cancel()

	mv, known := n.readBattery()
	plan := n.cfg.Mode.Plan(mv, known)
	if known {
		metrics.SetBattery(mv, plan.Low)
	}
	n.Data.Update(func(s *data.Status) {
		s.LowBattery = plan.Low
		if known {
			s.BatteryAvg = float64(mv)
		}
	})

	if plan.Skip {
		logger.Warnf("Battery critical [%v]mV, going back to sleep", mv)
		n.fail("critical", ErrCriticalBattery)
		return plan, ErrCriticalBattery
	}
	if plan.Low {
		logger.Infof("Battery low [%v]mV, using interval [%v]", mv, plan.Interval)
	}

	e, err := n.deps.Atmosphere.Read(ctx)
	if err != nil {
		err = fmt.Errorf("reading sensor: %w", err)
		n.fail("sensor_error", err)
		return plan, err
	}
	r := data.Reading{
		Time:         start,
		TemperatureC: e.Temperature.Float64(),
		Humidity:     e.Humidity.Float64(),
		PressurehPa:  e.Pressure.Float64(),
		BatteryMV:    mv,
		HasBattery:   known,
	}
	metrics.SetReading(r)
	n.Data.Update(func(s *data.Status) {
		s.Last = &r
		s.PressureHg = r.PressureInHg()
		s.LastError = ""
	})

	if n.deps.Uploader == nil && n.deps.Sinks == nil {
		metrics.Prom_cycles.WithLabelValues("ok").Inc()
		return plan, nil
	}

	if n.deps.WaitNetwork != nil {
		if err := n.deps.WaitNetwork(ctx); err != nil {
			n.fail("network_error", err)
			return plan, err
		}
	}

	if n.deps.Uploader != nil {
		id, err := n.deps.Uploader.Update(ctx, r)
		if err != nil {
			metrics.Prom_uploads.WithLabelValues("error").Inc()
			err = fmt.Errorf("uploading reading: %w", err)
			n.fail("upload_error", err)
			n.publish(ctx, r)
			return plan, err
		}
		metrics.Prom_uploads.WithLabelValues("ok").Inc()
		n.Data.Update(func(s *data.Status) {
			s.EntryID = id
			s.LastUpload = n.now()
		})
	}
	n.publish(ctx, r)

	metrics.Prom_cycles.WithLabelValues("ok").Inc()
	return plan, nil
}

// Run repeats Cycle until ctx is cancelled. The interval is measured wake to wake.
func (n *Node) Run(ctx context.Context) error {
	logger.Infof("Node running in [%v] mode", n.cfg.Mode.Kind())
	for {
		start := n.now()
		plan, err := n.Cycle(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !errors.Is(err, ErrCriticalBattery) {
			logger.Errorf("Cycle failed [%v]", err)
		}

		next := plan.Interval - n.now().Sub(start)
		if next < 0 {
			next = 0
		}
		if plan.Interval < env.ThingSpeakMinUpdate {
			logger.Warnf("Interval [%v] is below the ThingSpeak minimum of [%v]", plan.Interval, env.ThingSpeakMinUpdate)
		}
		wake := n.now().Add(next)
		n.Data.Update(func(s *data.Status) { s.NextWake = wake })
		logger.Infof("Sleeping [%v] until [%v]", next.Round(time.Second), wake.Format(time.RFC822))

		if err := n.sleep(ctx, next); err != nil {
			return nil
		}
	}
}

func (n *Node) readBattery() (int, bool) {
	if n.deps.Battery == nil {
		return 0, false
	}
	mv, err := n.deps.Battery.ReadMillivolts()
	if err != nil {
		logger.Errorf("Battery read failed [%v]", err)
		return 0, false
	}
	n.batteryBuf.AddItem(float64(mv))
	avg, _, _ := n.batteryBuf.GetAverageMinMax()
	logger.Infof("Battery [%v]mV average [%.0f]mV", mv, avg)
	return int(math.Round(float64(avg))), true
}

func (n *Node) publish(ctx context.Context, r data.Reading) {
	if n.deps.Sinks == nil {
		return
	}
	// sink failures are already logged per sink
	_ = n.deps.Sinks.Publish(ctx, r)
}

func (n *Node) fail(result string, err error) {
	metrics.Prom_cycles.WithLabelValues(result).Inc()
	n.Data.Update(func(s *data.Status) { s.LastError = err.Error() })
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
