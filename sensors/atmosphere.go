package sensors

import (
	"context"
	"fmt"
	"math"
	"time"

	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

type PressurehPa float64
type RelHumidity float64
type TemperatureC float64

func (p PressurehPa) Float64() float64 {
	return float64(p)
}

func (r RelHumidity) Float64() float64 {
	return float64(r)
}

func (t TemperatureC) Float64() float64 {
	return float64(t)
}

type Environment struct {
	Temperature TemperatureC
	Humidity    RelHumidity
	Pressure    PressurehPa
}

type senseHalter interface {
	Sense(e *physic.Env) error
	Halt() error
}

// Atmosphere reads a BME280. When the sensor supply is switched the device is opened
// fresh on every read since it loses its calibration state when powered down.
type Atmosphere struct {
	open         func() (senseHalter, error)
	power        *PowerPin
	interval     time.Duration
	disableDelay time.Duration
}

type AtmosphereOpts struct {
	Address      uint16
	ReadInterval time.Duration // retry period while the sensor does not answer
	DisableDelay time.Duration // settle time after switching the sensor off
}

func NewAtmosphere(bus i2c.Bus, power *PowerPin, opts AtmosphereOpts) *Atmosphere {
	logger.Infof("Starting BME280 reader [%x]", opts.Address)
	return &Atmosphere{
		open: func() (senseHalter, error) {
			return bmxx80.NewI2C(bus, opts.Address, &bmxx80.DefaultOpts)
		},
		power:        power,
		interval:     opts.ReadInterval,
		disableDelay: opts.DisableDelay,
	}
}

// Read powers the sensor, retries every read interval until it answers or ctx ends, then
// powers it down again.
func (a *Atmosphere) Read(ctx context.Context) (Environment, error) {
	if a.power != nil {
		if err := a.power.On(); err != nil {
			return Environment{}, err
		}
		defer a.powerDown(ctx)
	}

	attempt := 0
	for {
		attempt++
		env, err := a.readOnce()
		if err == nil {
			logger.Infof("Temp [%.2f]C Hum [%v]%% Pressure [%v]hPa", env.Temperature, env.Humidity, env.Pressure)
			return env, nil
		}
		logger.Warnf("BME280 read failed, attempt [%v] [%v]", attempt, err)

		select {
		case <-ctx.Done():
			return Environment{}, fmt.Errorf("BME280 not ready after [%v] attempts: %w", attempt, ctx.Err())
		case <-time.After(a.interval):
		}
	}
}

func (a *Atmosphere) readOnce() (Environment, error) {
	dev, err := a.open()
	if err != nil {
		return Environment{}, err
	}
	defer func() { _ = dev.Halt() }()

	em := physic.Env{}
	if err := dev.Sense(&em); err != nil {
		return Environment{}, err
	}
	return convert(em), nil
}

func (a *Atmosphere) powerDown(ctx context.Context) {
	if err := a.power.Off(); err != nil {
		logger.Errorf("Failed to power down sensor [%v]", err)
		return
	}
	if a.disableDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(a.disableDelay):
	}
}

// convert raw sensor output, humidity to whole percent, pressure to 2 decimals
func convert(em physic.Env) Environment {
	return Environment{
		Temperature: TemperatureC(math.Round(em.Temperature.Celsius()*100) / 100),
		Humidity:    RelHumidity(math.Round(float64(em.Humidity) / float64(physic.PercentRH))),
		Pressure:    PressurehPa(math.Round((float64(em.Pressure)/float64(100*physic.Pascal))*100) / 100),
	}
}
