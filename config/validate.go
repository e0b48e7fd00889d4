package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

var hostnameRE = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// Validate checks the whole config and reports every problem found.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Wifi.SSID == "" {
		add("wifi.ssid must not be empty")
	}
	if c.Wifi.PrintInterval <= 0 {
		add("wifi.print_interval_ms must be positive [%v]", c.Wifi.PrintInterval.Milliseconds())
	}

	if !validHost(c.ThingSpeak.Host) {
		add("thingspeak.host is not a valid hostname [%v]", c.ThingSpeak.Host)
	}
	if c.ThingSpeak.Port < 1 || c.ThingSpeak.Port > 65535 {
		add("thingspeak.port must be in 1-65535 [%v]", c.ThingSpeak.Port)
	}
	if c.ThingSpeak.Key == "" {
		add("thingspeak.key must not be empty")
	}

	if c.AwakeTimeout <= 0 {
		add("awake_timeout_ms must be positive [%v]", c.AwakeTimeout.Milliseconds())
	}

	s := c.Sensor
	if s.Address < 0x03 || s.Address > 0x77 {
		add("sensor.address is not a 7 bit I2C address [%#x]", s.Address)
	}
	if s.SDAPin < 0 {
		add("sensor.sda_pin must not be negative [%v]", s.SDAPin)
	}
	if s.SCLPin < 0 {
		add("sensor.scl_pin must not be negative [%v]", s.SCLPin)
	}
	if s.SDAPin == s.SCLPin {
		add("sensor.sda_pin and sensor.scl_pin must differ [%v]", s.SDAPin)
	}
	if s.ReadInterval <= 0 {
		add("sensor.read_interval_ms must be positive [%v]", s.ReadInterval.Milliseconds())
	}
	if s.PowerPin != nil {
		if *s.PowerPin < 0 {
			add("sensor.power_pin must not be negative [%v]", *s.PowerPin)
		} else if *s.PowerPin == s.SDAPin || *s.PowerPin == s.SCLPin {
			add("sensor.power_pin must not share a pin with the I2C bus [%v]", *s.PowerPin)
		}
	}
	if s.DisableDelay < 0 {
		add("sensor.disable_delay_ms must not be negative [%v]", s.DisableDelay.Milliseconds())
	}

	if c.Mode == nil {
		add("mode.kind must be set")
	} else {
		problems = append(problems, c.Mode.validate()...)
	}

	b := c.Battery
	if c.Mode != nil && c.Mode.Kind() == KindBattery {
		if b.ADCAddress < 0x03 || b.ADCAddress > 0x77 {
			add("battery.adc_address is not a 7 bit I2C address [%#x]", b.ADCAddress)
		}
		if b.ADCAddress == s.Address {
			add("battery.adc_address clashes with sensor.address [%#x]", b.ADCAddress)
		}
	}
	if b.Channel < 0 || b.Channel > 3 {
		add("battery.adc_channel must be in 0-3 [%v]", b.Channel)
	}
	if b.Divider < 1 {
		add("battery.divider must be at least 1 [%v]", b.Divider)
	}
	if b.Samples < 1 {
		add("battery.samples must be at least 1 [%v]", b.Samples)
	}

	if c.Sinks.MQTT.Enabled() && c.Sinks.MQTT.Topic == "" {
		add("sinks.mqtt.topic must be set when sinks.mqtt.broker is")
	}
	if in := c.Sinks.Influx; in.Enabled() && (in.Org == "" || in.Bucket == "") {
		add("sinks.influx.org and sinks.influx.bucket must be set when sinks.influx.url is")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func validHost(h string) bool {
	if h == "" || len(h) > 253 {
		return false
	}
	if net.ParseIP(h) != nil {
		return true
	}
	return hostnameRE.MatchString(h)
}
