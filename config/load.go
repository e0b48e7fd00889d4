package config

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/gr-butler/weathernode/env"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// file is the on-disk layout. Durations are kept as integer milliseconds.
type file struct {
	Wifi           wifiFile       `mapstructure:"wifi" yaml:"wifi"`
	ThingSpeak     thingSpeakFile `mapstructure:"thingspeak" yaml:"thingspeak"`
	AwakeTimeoutMs int64          `mapstructure:"awake_timeout_ms" yaml:"awake_timeout_ms"`
	Sensor         sensorFile     `mapstructure:"sensor" yaml:"sensor"`
	Mode           modeFile       `mapstructure:"mode" yaml:"mode"`
	Battery        batteryFile    `mapstructure:"battery" yaml:"battery"`
	Sinks          sinksFile      `mapstructure:"sinks" yaml:"sinks"`
	HTTP           httpFile       `mapstructure:"http" yaml:"http"`
}

type wifiFile struct {
	SSID            string `mapstructure:"ssid" yaml:"ssid"`
	Password        string `mapstructure:"password" yaml:"password"`
	PrintIntervalMs int64  `mapstructure:"print_interval_ms" yaml:"print_interval_ms"`
}

type thingSpeakFile struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	Key  string `mapstructure:"key" yaml:"key"`
}

type sensorFile struct {
	Bus            string `mapstructure:"bus" yaml:"bus,omitempty"`
	Address        int    `mapstructure:"address" yaml:"address"`
	SDAPin         int    `mapstructure:"sda_pin" yaml:"sda_pin"`
	SCLPin         int    `mapstructure:"scl_pin" yaml:"scl_pin"`
	ReadIntervalMs int64  `mapstructure:"read_interval_ms" yaml:"read_interval_ms"`
	PowerPin       *int   `mapstructure:"power_pin" yaml:"power_pin,omitempty"`
	DisableDelayMs int64  `mapstructure:"disable_delay_ms" yaml:"disable_delay_ms"`
}

type modeFile struct {
	Kind              string `mapstructure:"kind" yaml:"kind"`
	IntervalNormalMs  *int64 `mapstructure:"interval_normal_ms" yaml:"interval_normal_ms,omitempty"`
	IntervalLowMs     *int64 `mapstructure:"interval_low_ms" yaml:"interval_low_ms,omitempty"`
	BatteryLowMV      *int   `mapstructure:"battery_low_mv" yaml:"battery_low_mv,omitempty"`
	BatteryCriticalMV *int   `mapstructure:"battery_critical_mv" yaml:"battery_critical_mv,omitempty"`
	IntervalMs        *int64 `mapstructure:"interval_ms" yaml:"interval_ms,omitempty"`
}

type batteryFile struct {
	ADCAddress int     `mapstructure:"adc_address" yaml:"adc_address"`
	Channel    int     `mapstructure:"adc_channel" yaml:"adc_channel"`
	Divider    float64 `mapstructure:"divider" yaml:"divider"`
	Samples    int     `mapstructure:"samples" yaml:"samples"`
}

type sinksFile struct {
	MQTT struct {
		Broker   string `mapstructure:"broker" yaml:"broker,omitempty"`
		Topic    string `mapstructure:"topic" yaml:"topic"`
		ClientID string `mapstructure:"client_id" yaml:"client_id"`
		Username string `mapstructure:"username" yaml:"username,omitempty"`
		Password string `mapstructure:"password" yaml:"password,omitempty"`
	} `mapstructure:"mqtt" yaml:"mqtt"`
	Postgres struct {
		DSN string `mapstructure:"dsn" yaml:"dsn,omitempty"`
	} `mapstructure:"postgres" yaml:"postgres"`
	Influx struct {
		URL    string `mapstructure:"url" yaml:"url,omitempty"`
		Token  string `mapstructure:"token" yaml:"token,omitempty"`
		Org    string `mapstructure:"org" yaml:"org,omitempty"`
		Bucket string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	} `mapstructure:"influx" yaml:"influx"`
}

type httpFile struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// keys every config source may set, in file order
var keys = []string{
	"wifi.ssid", "wifi.password", "wifi.print_interval_ms",
	"thingspeak.host", "thingspeak.port", "thingspeak.key",
	"awake_timeout_ms",
	"sensor.bus", "sensor.address", "sensor.sda_pin", "sensor.scl_pin",
	"sensor.read_interval_ms", "sensor.power_pin", "sensor.disable_delay_ms",
	"mode.kind", "mode.interval_normal_ms", "mode.interval_low_ms",
	"mode.battery_low_mv", "mode.battery_critical_mv", "mode.interval_ms",
	"battery.adc_address", "battery.adc_channel", "battery.divider", "battery.samples",
	"sinks.mqtt.broker", "sinks.mqtt.topic", "sinks.mqtt.client_id",
	"sinks.mqtt.username", "sinks.mqtt.password",
	"sinks.postgres.dsn",
	"sinks.influx.url", "sinks.influx.token", "sinks.influx.org", "sinks.influx.bucket",
	"http.listen",
}

var required = []string{"wifi.ssid", "wifi.password", "thingspeak.key", "mode.kind"}

var requiredByKind = map[string][]string{
	KindBattery: {"mode.interval_normal_ms", "mode.interval_low_ms", "mode.battery_low_mv", "mode.battery_critical_mv"},
	KindFixed:   {"mode.interval_ms"},
}

// NewViper returns a viper instance with the node defaults and environment bindings.
// Every key can be set as NODE_<KEY> (dots become underscores) and the board keys also
// under their legacy names (WIFI_SSID, TS_KEY, BATT_LOW...). A variable that is set but
// empty counts as set, so WIFI_PASS= selects an open network.
func NewViper() *viper.Viper {
	v := newDefaults()
	v.SetEnvPrefix(env.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	for _, key := range keys {
		names := []string{key, env.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		if legacy, ok := env.LegacyNames[key]; ok {
			names = append(names, legacy)
		}
		_ = v.BindEnv(names...)
	}
	return v
}

// newDefaults returns a viper instance holding only the defaults.
func newDefaults() *viper.Viper {
	v := viper.New()
	v.SetDefault("wifi.print_interval_ms", env.DefaultWifiPrintInterval.Milliseconds())
	v.SetDefault("thingspeak.host", env.DefaultThingSpeakHost)
	v.SetDefault("thingspeak.port", env.DefaultThingSpeakPort)
	v.SetDefault("awake_timeout_ms", env.DefaultAwakeTimeout.Milliseconds())
	v.SetDefault("sensor.address", env.DefaultSensorAddress)
	v.SetDefault("sensor.sda_pin", env.DefaultSDAPin)
	v.SetDefault("sensor.scl_pin", env.DefaultSCLPin)
	v.SetDefault("sensor.read_interval_ms", env.DefaultSensorInterval.Milliseconds())
	v.SetDefault("sensor.disable_delay_ms", 0)
	v.SetDefault("battery.adc_address", env.DefaultBatteryADC)
	v.SetDefault("battery.adc_channel", env.DefaultBatteryChannel)
	v.SetDefault("battery.divider", env.DefaultBatteryDivider)
	v.SetDefault("battery.samples", env.DefaultBatterySamples)
	v.SetDefault("sinks.mqtt.topic", env.DefaultMQTTTopic)
	v.SetDefault("sinks.mqtt.client_id", env.DefaultMQTTClientID)
	v.SetDefault("http.listen", env.DefaultHTTPListen)
	return v
}

// Load reads the optional config file at path, overlays the environment and validates.
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config [%v]: %w", path, err)
		}
	}
	return LoadFrom(v)
}

// Parse loads a YAML document, as written by Marshal. The environment is not consulted.
func Parse(b []byte) (*Config, error) {
	v := newDefaults()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return LoadFrom(v)
}

// LoadFrom decodes and validates the settings of an already populated viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	if err := checkRequired(v); err != nil {
		return nil, err
	}

	var f file
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	c, err := f.toConfig()
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func checkRequired(v *viper.Viper) error {
	var missing []string
	for _, key := range required {
		if !v.IsSet(key) {
			missing = append(missing, key)
		}
	}
	kind := strings.ToLower(strings.TrimSpace(v.GetString("mode.kind")))
	for _, key := range requiredByKind[kind] {
		if !v.IsSet(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}

// maxMs is the largest millisecond value a time.Duration can hold.
const maxMs = math.MaxInt64 / int64(time.Millisecond)

func ms(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// millis lists the millisecond settings by key, unset mode fields are skipped.
func (f *file) millis() map[string]int64 {
	m := map[string]int64{
		"wifi.print_interval_ms":  f.Wifi.PrintIntervalMs,
		"awake_timeout_ms":        f.AwakeTimeoutMs,
		"sensor.read_interval_ms": f.Sensor.ReadIntervalMs,
		"sensor.disable_delay_ms": f.Sensor.DisableDelayMs,
	}
	for key, p := range map[string]*int64{
		"mode.interval_normal_ms": f.Mode.IntervalNormalMs,
		"mode.interval_low_ms":    f.Mode.IntervalLowMs,
		"mode.interval_ms":        f.Mode.IntervalMs,
	} {
		if p != nil {
			m[key] = *p
		}
	}
	return m
}

// checkMillis rejects values that would overflow once converted to a time.Duration.
func (f *file) checkMillis() error {
	var problems []string
	for key, v := range f.millis() {
		if v > maxMs || v < -maxMs {
			problems = append(problems, fmt.Sprintf("%s out of range [%v]", key, v))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func (f *file) toConfig() (*Config, error) {
	if err := f.checkMillis(); err != nil {
		return nil, err
	}
	c := &Config{
		Wifi: Wifi{
			SSID:          f.Wifi.SSID,
			Password:      f.Wifi.Password,
			PrintInterval: ms(f.Wifi.PrintIntervalMs),
		},
		ThingSpeak: ThingSpeak{
			Host: strings.TrimSpace(f.ThingSpeak.Host),
			Port: f.ThingSpeak.Port,
			Key:  f.ThingSpeak.Key,
		},
		AwakeTimeout: ms(f.AwakeTimeoutMs),
		Sensor: Sensor{
			Bus:          f.Sensor.Bus,
			Address:      f.Sensor.Address,
			SDAPin:       f.Sensor.SDAPin,
			SCLPin:       f.Sensor.SCLPin,
			ReadInterval: ms(f.Sensor.ReadIntervalMs),
			PowerPin:     f.Sensor.PowerPin,
			DisableDelay: ms(f.Sensor.DisableDelayMs),
		},
		Battery: Battery{
			ADCAddress: f.Battery.ADCAddress,
			Channel:    f.Battery.Channel,
			Divider:    f.Battery.Divider,
			Samples:    f.Battery.Samples,
		},
		Sinks: Sinks{
			MQTT: MQTTSink{
				Broker:   f.Sinks.MQTT.Broker,
				Topic:    f.Sinks.MQTT.Topic,
				ClientID: f.Sinks.MQTT.ClientID,
				Username: f.Sinks.MQTT.Username,
				Password: f.Sinks.MQTT.Password,
			},
			Postgres: PostgresSink{DSN: f.Sinks.Postgres.DSN},
			Influx: InfluxSink{
				URL:    f.Sinks.Influx.URL,
				Token:  f.Sinks.Influx.Token,
				Org:    f.Sinks.Influx.Org,
				Bucket: f.Sinks.Influx.Bucket,
			},
		},
		HTTPListen: f.HTTP.Listen,
	}

	switch kind := strings.ToLower(strings.TrimSpace(f.Mode.Kind)); kind {
	case KindBattery:
		c.Mode = BatteryAware{
			Normal:     ms(deref64(f.Mode.IntervalNormalMs)),
			Low:        ms(deref64(f.Mode.IntervalLowMs)),
			LowMV:      deref(f.Mode.BatteryLowMV),
			CriticalMV: deref(f.Mode.BatteryCriticalMV),
		}
	case KindFixed:
		c.Mode = FixedInterval{Interval: ms(deref64(f.Mode.IntervalMs))}
	default:
		return nil, fmt.Errorf("%w: mode.kind must be %q or %q [%v]", ErrInvalid, KindBattery, KindFixed, f.Mode.Kind)
	}
	return c, nil
}

func toFile(c *Config) *file {
	f := &file{AwakeTimeoutMs: c.AwakeTimeout.Milliseconds()}
	f.Wifi = wifiFile{
		SSID:            c.Wifi.SSID,
		Password:        c.Wifi.Password,
		PrintIntervalMs: c.Wifi.PrintInterval.Milliseconds(),
	}
	f.ThingSpeak = thingSpeakFile(c.ThingSpeak)
	f.Sensor = sensorFile{
		Bus:            c.Sensor.Bus,
		Address:        c.Sensor.Address,
		SDAPin:         c.Sensor.SDAPin,
		SCLPin:         c.Sensor.SCLPin,
		ReadIntervalMs: c.Sensor.ReadInterval.Milliseconds(),
		PowerPin:       c.Sensor.PowerPin,
		DisableDelayMs: c.Sensor.DisableDelay.Milliseconds(),
	}
	f.Battery = batteryFile(c.Battery)
	f.Sinks.MQTT.Broker = c.Sinks.MQTT.Broker
	f.Sinks.MQTT.Topic = c.Sinks.MQTT.Topic
	f.Sinks.MQTT.ClientID = c.Sinks.MQTT.ClientID
	f.Sinks.MQTT.Username = c.Sinks.MQTT.Username
	f.Sinks.MQTT.Password = c.Sinks.MQTT.Password
	f.Sinks.Postgres.DSN = c.Sinks.Postgres.DSN
	f.Sinks.Influx.URL = c.Sinks.Influx.URL
	f.Sinks.Influx.Token = c.Sinks.Influx.Token
	f.Sinks.Influx.Org = c.Sinks.Influx.Org
	f.Sinks.Influx.Bucket = c.Sinks.Influx.Bucket
	f.HTTP.Listen = c.HTTPListen

	switch m := c.Mode.(type) {
	case BatteryAware:
		f.Mode.Kind = KindBattery
		f.Mode.IntervalNormalMs = ptr(m.Normal.Milliseconds())
		f.Mode.IntervalLowMs = ptr(m.Low.Milliseconds())
		f.Mode.BatteryLowMV = ptr(m.LowMV)
		f.Mode.BatteryCriticalMV = ptr(m.CriticalMV)
	case FixedInterval:
		f.Mode.Kind = KindFixed
		f.Mode.IntervalMs = ptr(m.Interval.Milliseconds())
	}
	return f
}

// Marshal writes the config as YAML. Parse(Marshal(c)) yields c again.
func Marshal(c *Config) ([]byte, error) {
	b, err := yaml.Marshal(toFile(c))
	if err != nil {
		return nil, fmt.Errorf("marshalling config: %w", err)
	}
	return b, nil
}

func ptr[T any](v T) *T { return &v }

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func deref64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
