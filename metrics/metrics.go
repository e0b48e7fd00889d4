package metrics

import (
	"github.com/gr-butler/weathernode/data"
	"github.com/prometheus/client_golang/prometheus"
)

var Prom_atmPressure = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "atmospheric_pressure",
		Help: "Atmospheric pressure hPa",
	},
)

var Prom_humidity = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "relative_humidity",
		Help: "Relative Humidity",
	},
)

var Prom_temperature = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "temperature",
		Help: "Temperature C",
	},
)

var Prom_battery = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "battery_millivolts",
		Help: "Battery voltage mV",
	},
)

var Prom_lowBattery = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "battery_low",
		Help: "1 while running on the low battery interval",
	},
)

var Prom_cycles = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wake_cycles_total",
		Help: "Wake cycles by result",
	},
	[]string{"result"},
)

var Prom_uploads = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "thingspeak_uploads_total",
		Help: "ThingSpeak updates by result",
	},
	[]string{"result"},
)

var Prom_awake = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "awake_seconds",
		Help:    "Time spent awake per cycle",
		Buckets: []float64{1, 2, 5, 10, 15, 20, 30, 60},
	},
)

// Register adds the node collectors to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		Prom_atmPressure,
		Prom_humidity,
		Prom_temperature,
		Prom_battery,
		Prom_lowBattery,
		Prom_cycles,
		Prom_uploads,
		Prom_awake)
}

func SetReading(r data.Reading) {
	Prom_temperature.Set(r.TemperatureC)
	Prom_humidity.Set(r.Humidity)
	Prom_atmPressure.Set(r.PressurehPa)
}

func SetBattery(mv int, low bool) {
	Prom_battery.Set(float64(mv))
	if low {
		Prom_lowBattery.Set(1)
	} else {
		Prom_lowBattery.Set(0)
	}
}
