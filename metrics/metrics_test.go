package metrics

import (
	"testing"

	"github.com/gr-butler/weathernode/data"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetReading(t *testing.T) {
	SetReading(data.Reading{TemperatureC: 18.25, Humidity: 64, PressurehPa: 1009.5})

	assert.Equal(t, 18.25, testutil.ToFloat64(Prom_temperature))
	assert.Equal(t, float64(64), testutil.ToFloat64(Prom_humidity))
	assert.Equal(t, 1009.5, testutil.ToFloat64(Prom_atmPressure))
}

func TestSetBattery(t *testing.T) {
	SetBattery(2250, true)
	assert.Equal(t, float64(2250), testutil.ToFloat64(Prom_battery))
	assert.Equal(t, float64(1), testutil.ToFloat64(Prom_lowBattery))

	SetBattery(2700, false)
	assert.Equal(t, float64(0), testutil.ToFloat64(Prom_lowBattery))
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() { Register(reg) })
	assert.Panics(t, func() { Register(reg) }, "double registration must fail")
}
