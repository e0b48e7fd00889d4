// Package config holds the node configuration: one schema for both the battery-aware and
// the fixed-interval boards, loaded from a file and/or the environment and validated
// before anything touches the hardware.
package config

import (
	"errors"
	"time"
)

var (
	ErrMissing = errors.New("missing required configuration")
	ErrInvalid = errors.New("invalid configuration")
)

const redacted = "****"

type Config struct {
	Wifi         Wifi
	ThingSpeak   ThingSpeak
	AwakeTimeout time.Duration // maximum wakeup time
	Sensor       Sensor
	Mode         Mode
	Battery      Battery
	Sinks        Sinks
	HTTPListen   string // empty disables the status server
}

type Wifi struct {
	SSID          string
	Password      string
	PrintInterval time.Duration
}

type ThingSpeak struct {
	Host string
	Port int
	Key  string
}

type Sensor struct {
	Bus          string // explicit I2C bus, otherwise found by SDA/SCL pins
	Address      int
	SDAPin       int
	SCLPin       int
	ReadInterval time.Duration
	PowerPin     *int // nil when the sensor is always powered
	DisableDelay time.Duration
}

type Battery struct {
	ADCAddress int
	Channel    int
	Divider    float64
	Samples    int
}

type Sinks struct {
	MQTT     MQTTSink
	Postgres PostgresSink
	Influx   InfluxSink
}

type MQTTSink struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
}

type PostgresSink struct {
	DSN string
}

type InfluxSink struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

func (m MQTTSink) Enabled() bool     { return m.Broker != "" }
func (p PostgresSink) Enabled() bool { return p.DSN != "" }
func (i InfluxSink) Enabled() bool   { return i.URL != "" }

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	r := *c
	r.Wifi.Password = mask(r.Wifi.Password)
	r.ThingSpeak.Key = mask(r.ThingSpeak.Key)
	r.Sinks.MQTT.Password = mask(r.Sinks.MQTT.Password)
	r.Sinks.Influx.Token = mask(r.Sinks.Influx.Token)
	if r.Sinks.Postgres.DSN != "" {
		r.Sinks.Postgres.DSN = redacted
	}
	if c.Sensor.PowerPin != nil {
		pin := *c.Sensor.PowerPin
		r.Sensor.PowerPin = &pin
	}
	return &r
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}
