package data

import (
	"sync"
	"time"

	"github.com/gr-butler/weathernode/buffer"
	"github.com/gr-butler/weathernode/env"
)

// Reading is one wake cycle worth of measurements.
type Reading struct {
	Time         time.Time `json:"time"`
	TemperatureC float64   `json:"temperature_C"`
	Humidity     float64   `json:"humidity_RH"`
	PressurehPa  float64   `json:"pressure_hPa"`
	BatteryMV    int       `json:"battery_mV,omitempty"`
	HasBattery   bool      `json:"-"`
}

func (r Reading) BatteryVolts() float64 {
	return float64(r.BatteryMV) / 1000
}

func (r Reading) PressureInHg() float64 {
	return r.PressurehPa * env.HPaToInHg
}

// Status is what the node reports on its status page.
type Status struct {
	Last       *Reading  `json:"last,omitempty"`
	PressureHg float64   `json:"pressure_InchHg,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	LastUpload time.Time `json:"last_upload"`
	EntryID    int       `json:"thingspeak_entry,omitempty"`
	Mode       string    `json:"mode"`
	LowBattery bool      `json:"low_battery"`
	NextWake   time.Time `json:"next_wake"`
	BatteryAvg float64   `json:"battery_avg_mV,omitempty"`
	Battery    *Window   `json:"battery_window,omitempty"`
}

// Window summarises the samples held in a buffer.
type Window struct {
	Last    float64 `json:"last"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Samples int     `json:"samples"`
}

// WindowOf returns nil until b holds a sample.
func WindowOf(b *buffer.SampleBuffer) *Window {
	if b == nil {
		return nil
	}
	last, ok := b.GetLast()
	if !ok {
		return nil
	}
	_, min, max := b.GetAverageMinMax()
	return &Window{Last: last, Min: float64(min), Max: float64(max), Samples: b.GetSize()}
}

// NodeData holds the recent history of the node, shared between the cycle loop and the
// status handler.
type NodeData struct {
	lock    sync.Mutex
	buffers map[string]*buffer.SampleBuffer
	status  Status
}

func CreateNodeData(mode string) *NodeData {
	return &NodeData{
		buffers: make(map[string]*buffer.SampleBuffer),
		status:  Status{Mode: mode},
	}
}

func (nd *NodeData) AddBuffer(name string, b *buffer.SampleBuffer) {
	nd.lock.Lock()
	defer nd.lock.Unlock()
	nd.buffers[name] = b
}

func (nd *NodeData) GetBuffer(name string) *buffer.SampleBuffer {
	nd.lock.Lock()
	defer nd.lock.Unlock()
	return nd.buffers[name]
}

func (nd *NodeData) Update(fn func(s *Status)) {
	nd.lock.Lock()
	defer nd.lock.Unlock()
	fn(&nd.status)
}

func (nd *NodeData) Status() Status {
	nd.lock.Lock()
	defer nd.lock.Unlock()
	s := nd.status
	if s.Last != nil {
		r := *s.Last
		s.Last = &r
	}
	return s
}
