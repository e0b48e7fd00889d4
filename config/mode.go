package config

import (
	"fmt"
	"time"
)

const (
	KindBattery = "battery"
	KindFixed   = "fixed"
)

// Mode is the operating policy of the node. It is either BatteryAware or FixedInterval.
type Mode interface {
	Kind() string
	// Plan decides the next sleep interval from the measured battery voltage.
	// known is false when the battery could not be read.
	Plan(batteryMV int, known bool) Plan
	validate() []string
}

type Plan struct {
	Interval time.Duration
	Low      bool // running on the low battery interval
	Skip     bool // battery critical, go straight back to sleep
}

// BatteryAware picks between two intervals using the low and critical thresholds.
type BatteryAware struct {
	Normal     time.Duration
	Low        time.Duration
	LowMV      int
	CriticalMV int
}

func (BatteryAware) Kind() string { return KindBattery }

func (b BatteryAware) Plan(batteryMV int, known bool) Plan {
	switch {
	case !known:
		// no reading, save power but still report
		return Plan{Interval: b.Low, Low: true}
	case batteryMV < b.CriticalMV:
		return Plan{Interval: b.Low, Low: true, Skip: true}
	case batteryMV < b.LowMV:
		return Plan{Interval: b.Low, Low: true}
	default:
		return Plan{Interval: b.Normal}
	}
}

func (b BatteryAware) validate() []string {
	var problems []string
	if b.Normal <= 0 {
		problems = append(problems, fmt.Sprintf("mode.interval_normal_ms must be positive [%v]", b.Normal.Milliseconds()))
	}
	if b.Low <= 0 {
		problems = append(problems, fmt.Sprintf("mode.interval_low_ms must be positive [%v]", b.Low.Milliseconds()))
	}
	if b.LowMV <= 0 {
		problems = append(problems, fmt.Sprintf("mode.battery_low_mv must be positive [%v]", b.LowMV))
	}
	if b.CriticalMV <= 0 {
		problems = append(problems, fmt.Sprintf("mode.battery_critical_mv must be positive [%v]", b.CriticalMV))
	}
	if b.CriticalMV >= b.LowMV {
		problems = append(problems, fmt.Sprintf("mode.battery_critical_mv [%v] must be below mode.battery_low_mv [%v]", b.CriticalMV, b.LowMV))
	}
	return problems
}

// FixedInterval wakes on a single interval and ignores the battery.
type FixedInterval struct {
	Interval time.Duration
}

func (FixedInterval) Kind() string { return KindFixed }

func (f FixedInterval) Plan(int, bool) Plan {
	return Plan{Interval: f.Interval}
}

func (f FixedInterval) validate() []string {
	if f.Interval <= 0 {
		return []string{fmt.Sprintf("mode.interval_ms must be positive [%v]", f.Interval.Milliseconds())}
	}
	return nil
}
