package env

import "time"

// Defaults for optional settings. Setup for 1W mini solar panel + 2xAA NiMH rechargeable batteries.
const (
	DefaultWifiPrintInterval = time.Millisecond * 500

	DefaultThingSpeakHost = "api.thingspeak.com"
	DefaultThingSpeakPort = 80

	DefaultAwakeTimeout = time.Second * 20

	DefaultSDAPin          = 0
	DefaultSCLPin          = 2
	DefaultSensorInterval  = time.Second
	DefaultSensorAddress   = 0x76 // BME280 with SDO to GND
	DefaultBatteryADC      = 0x48 // ADS1115 with ADDR to GND
	DefaultBatteryChannel  = 0
	DefaultBatteryDivider  = 2.0 // 2x 100k
	DefaultBatterySamples  = 5
	DefaultHTTPListen      = ":8080"
	DefaultMQTTTopic       = "weathernode/readings"
	DefaultMQTTClientID    = "weathernode"
	DefaultSinkTimeout     = time.Second * 5
	DefaultBreakerFailures = 3
	DefaultBreakerOpen     = time.Minute * 10

	// fallback used by the example config
	ExampleIntervalNormal = time.Minute * 5
	ExampleIntervalLow    = time.Minute * 20
	ExampleBatteryLowMV   = 2300 // use low interval
	ExampleBatteryCritMV  = 2200 // go sleep

	HPaToInHg = 0.02953

	// ThingSpeak free accounts accept one update every 15 seconds
	ThingSpeakMinUpdate = time.Second * 15

	EnvPrefix = "NODE"
)

// Legacy environment variable names, one per config key.
var LegacyNames = map[string]string{
	"wifi.ssid":                "WIFI_SSID",
	"wifi.password":            "WIFI_PASS",
	"wifi.print_interval_ms":   "WIFI_PRINT_INTERVAL",
	"thingspeak.host":          "TS_HOST",
	"thingspeak.port":          "TS_PORT",
	"thingspeak.key":           "TS_KEY",
	"awake_timeout_ms":         "AWAKE_TIMEOUT",
	"sensor.sda_pin":           "SDA_PIN",
	"sensor.scl_pin":           "SCL_PIN",
	"sensor.read_interval_ms":  "BME_INTERVAL",
	"sensor.power_pin":         "BME_PWR_PIN",
	"sensor.disable_delay_ms":  "BME_DISABLE",
	"mode.kind":                "NODE_MODE",
	"mode.interval_normal_ms":  "INTERVAL_NRM",
	"mode.interval_low_ms":     "INTERVAL_LOW",
	"mode.battery_low_mv":      "BATT_LOW",
	"mode.battery_critical_mv": "BATT_CRT",
	"mode.interval_ms":         "TS_INTERVAL",
}
