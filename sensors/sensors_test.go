package sensors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

type pinnedBus struct {
	i2ctest.Playback
	sda, scl gpio.PinIO
	closed   bool
}

func (p *pinnedBus) SDA() gpio.PinIO { return p.sda }
func (p *pinnedBus) SCL() gpio.PinIO { return p.scl }
func (p *pinnedBus) Close() error {
	p.closed = true
	return nil
}

func ref(name string, b i2c.BusCloser, err error) busRef {
	return busRef{name: name, open: func() (i2c.BusCloser, error) { return b, err }}
}

func TestFindBusByPins(t *testing.T) {
	bus0 := &pinnedBus{sda: &gpiotest.Pin{N: "GPIO0", Num: 0}, scl: &gpiotest.Pin{N: "GPIO1", Num: 1}}
	bus1 := &pinnedBus{sda: &gpiotest.Pin{N: "GPIO2", Num: 2}, scl: &gpiotest.Pin{N: "GPIO3", Num: 3}}

	got, err := findBus([]busRef{
		ref("broken", nil, errors.New("no such device")),
		ref("0", bus0, nil),
		ref("1", bus1, nil),
	}, 2, 3)
	require.NoError(t, err)
	assert.Same(t, bus1, got)
	assert.True(t, bus0.closed, "non matching bus must be closed")
	assert.False(t, bus1.closed)
}

func TestFindBusNoMatch(t *testing.T) {
	bus0 := &pinnedBus{sda: &gpiotest.Pin{N: "GPIO0", Num: 0}, scl: &gpiotest.Pin{N: "GPIO1", Num: 1}}

	_, err := findBus([]busRef{ref("0", bus0, nil)}, 0, 2)
	require.ErrorIs(t, err, ErrNoBus)
	assert.True(t, bus0.closed)

	_, err = findBus(nil, 0, 2)
	require.ErrorIs(t, err, ErrNoBus)
}

func TestPowerPin(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO12", Num: 12, L: gpio.High}
	pp, err := newPowerPin(pin.N, pin)
	require.NoError(t, err)
	assert.Equal(t, gpio.Low, pin.L, "power pin must start low")

	require.NoError(t, pp.On())
	assert.Equal(t, gpio.High, pin.L)

	require.NoError(t, pp.Off())
	assert.Equal(t, gpio.Low, pin.L)
}

type fakeBME struct {
	env    physic.Env
	halted bool
}

func (f *fakeBME) Sense(e *physic.Env) error {
	*e = f.env
	return nil
}

func (f *fakeBME) Halt() error {
	f.halted = true
	return nil
}

func TestAtmosphereRetriesUntilSensorAnswers(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO12", Num: 12}
	pp, err := newPowerPin(pin.N, pin)
	require.NoError(t, err)

	dev := &fakeBME{env: physic.Env{
		Temperature: physic.ZeroCelsius + 21500*physic.MilliKelvin,
		Humidity:    55 * physic.PercentRH,
		Pressure:    101325 * physic.Pascal,
	}}
	attempts := 0
	a := &Atmosphere{
		open: func() (senseHalter, error) {
			attempts++
			// power on the sensor was checked by the caller
			assert.Equal(t, gpio.High, pin.L)
			if attempts < 3 {
				return nil, errors.New("sensor not found")
			}
			return dev, nil
		},
		power:        pp,
		interval:     time.Millisecond,
		disableDelay: time.Millisecond,
	}

	env, err := a.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, TemperatureC(21.5), env.Temperature)
	assert.Equal(t, RelHumidity(55), env.Humidity)
	assert.Equal(t, PressurehPa(1013.25), env.Pressure)
	assert.True(t, dev.halted)
	assert.Equal(t, gpio.Low, pin.L, "sensor must be powered down after the read")
}

func TestAtmosphereGivesUpAtDeadline(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO12", Num: 12}
	pp, err := newPowerPin(pin.N, pin)
	require.NoError(t, err)

	a := &Atmosphere{
		open: func() (senseHalter, error) {
			return nil, errors.New("sensor not found")
		},
		power:    pp,
		interval: 5 * time.Millisecond,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = a.Read(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, gpio.Low, pin.L)
}

func TestAtmosphereWithoutPowerPin(t *testing.T) {
	a := &Atmosphere{
		open: func() (senseHalter, error) {
			return &fakeBME{env: physic.Env{Temperature: physic.ZeroCelsius - 3*physic.Kelvin}}, nil
		},
		interval: time.Millisecond,
	}
	env, err := a.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TemperatureC(-3), env.Temperature)
}

type fakeADC struct {
	v   physic.ElectricPotential
	err error
}

func (f *fakeADC) Read() (analog.Sample, error) {
	return analog.Sample{V: f.v}, f.err
}

func (f *fakeADC) Halt() error { return nil }

func TestBatteryMillivolts(t *testing.T) {
	b := &Battery{pin: &fakeADC{v: 1150 * physic.MilliVolt}, divider: 2}
	mv, err := b.ReadMillivolts()
	require.NoError(t, err)
	assert.Equal(t, 2300, mv)

	b = &Battery{pin: &fakeADC{err: errors.New("nack")}, divider: 2}
	_, err = b.ReadMillivolts()
	require.Error(t, err)
}

func TestToMillivoltsRounds(t *testing.T) {
	assert.Equal(t, 2201, toMillivolts(1100500*physic.MicroVolt, 2))
	assert.Equal(t, 1100, toMillivolts(1100*physic.MilliVolt, 1))
	assert.Equal(t, 3300, toMillivolts(1*physic.Volt, 3.3))
}
