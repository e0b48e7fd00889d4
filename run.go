package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gr-butler/weathernode/config"
	"github.com/gr-butler/weathernode/env"
	"github.com/gr-butler/weathernode/metrics"
	"github.com/gr-butler/weathernode/network"
	"github.com/gr-butler/weathernode/node"
	"github.com/gr-butler/weathernode/sensors"
	"github.com/gr-butler/weathernode/sink"
	"github.com/gr-butler/weathernode/thingspeak"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/i2c"
)

func runNode(cmd *cobra.Command, _ []string) error {
	logger.Infof("Starting weather node [%v]", version)

	cfg, err := config.Load(args.ConfigFile)
	if err != nil {
		return err
	}
	logger.Infof("Config [%+v]", *cfg.Redacted())
	if args.NoUpload {
		logger.Info("NO UPLOAD MODE")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sensors.Init(); err != nil {
		return err
	}
	bus, err := sensors.OpenBus(cfg.Sensor.Bus, cfg.Sensor.SDAPin, cfg.Sensor.SCLPin)
	if err != nil {
		return err
	}
	defer bus.Close()

	deps, closeDeps, err := buildDeps(ctx, cfg, bus)
	if err != nil {
		return err
	}
	defer closeDeps()

	n := node.New(cfg, deps)
	metrics.Register(prometheus.DefaultRegisterer)

	if cfg.HTTPListen != "" && !args.Once {
		srv := startServer(cfg.HTTPListen, n)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	if args.Once {
		plan, err := n.Cycle(ctx)
		logger.Infof("Next wake in [%v]", plan.Interval)
		if errors.Is(err, node.ErrCriticalBattery) {
			return nil
		}
		return err
	}
	err = n.Run(ctx)
	logger.Info("Exiting...")
	return err
}

// buildDeps opens the hardware and network clients the node needs. The returned func
// releases them.
func buildDeps(ctx context.Context, cfg *config.Config, bus i2c.Bus) (node.Deps, func(), error) {
	var deps node.Deps
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var power *sensors.PowerPin
	if cfg.Sensor.PowerPin != nil {
		p, err := sensors.NewPowerPin(*cfg.Sensor.PowerPin)
		if err != nil {
			// the sensor may still be powered, carry on without switching it
			logger.Errorf("Sensor power pin unavailable [%v]", err)
		} else {
			power = p
		}
	}
	deps.Atmosphere = sensors.NewAtmosphere(bus, power, sensors.AtmosphereOpts{
		Address:      uint16(cfg.Sensor.Address),
		ReadInterval: cfg.Sensor.ReadInterval,
		DisableDelay: cfg.Sensor.DisableDelay,
	})

	if cfg.Mode.Kind() == config.KindBattery {
		b, err := sensors.NewBattery(bus, sensors.BatteryOpts{
			Address: uint16(cfg.Battery.ADCAddress),
			Channel: cfg.Battery.Channel,
			Divider: cfg.Battery.Divider,
		})
		if err != nil {
			// an unreadable battery runs the low interval
			logger.Errorf("Battery ADC unavailable [%v]", err)
		} else {
			deps.Battery = b
			closers = append(closers, func() { _ = b.Halt() })
		}
	}

	if args.NoUpload {
		return deps, closeAll, nil
	}

	deps.Uploader = thingspeak.New(cfg.ThingSpeak.Host, cfg.ThingSpeak.Port, cfg.ThingSpeak.Key)
	deps.WaitNetwork = func(ctx context.Context) error {
		return network.WaitOnline(ctx, cfg.Wifi.SSID, cfg.ThingSpeak.Host, cfg.ThingSpeak.Port, cfg.Wifi.PrintInterval)
	}

	octx, cancel := context.WithTimeout(ctx, cfg.AwakeTimeout)
	defer cancel()
	sinks := openSinks(octx, cfg)
	if sinks.Len() > 0 {
		deps.Sinks = sinks
		closers = append(closers, func() { _ = sinks.Close() })
	}
	return deps, closeAll, nil
}

// openSinks connects the optional sinks. A sink that cannot be opened is logged and left
// out.
func openSinks(ctx context.Context, cfg *config.Config) *sink.Fanout {
	var opened []sink.Sink
	add := func(s sink.Sink) {
		opened = append(opened, sink.NewBreaker(s, env.DefaultBreakerFailures, env.DefaultBreakerOpen))
	}

	if cfg.Sinks.MQTT.Enabled() {
		m, err := sink.NewMQTT(ctx, cfg.Sinks.MQTT)
		if err != nil {
			logger.Errorf("MQTT sink disabled [%v]", err)
		} else {
			add(m)
		}
	}
	if cfg.Sinks.Postgres.Enabled() {
		p, err := sink.NewPostgres(ctx, cfg.Sinks.Postgres.DSN)
		if err != nil {
			logger.Errorf("Postgres sink disabled [%v]", err)
		} else {
			add(p)
		}
	}
	if cfg.Sinks.Influx.Enabled() {
		add(sink.NewInflux(cfg.Sinks.Influx, map[string]string{"mode": cfg.Mode.Kind()}))
	}
	return sink.NewFanout(env.DefaultSinkTimeout, opened...)
}

func startServer(addr string, n *node.Node) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", n.StatusHandler)
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: time.Second * 5}
	go func() {
		logger.Infof("Starting webservice [%v]", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Webservice failed [%v]", err)
		}
	}()
	return srv
}
