package data

import (
	"testing"

	"github.com/gr-butler/weathernode/buffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadingConversions(t *testing.T) {
	r := Reading{PressurehPa: 1013.25, BatteryMV: 2450}
	assert.Equal(t, 2.45, r.BatteryVolts())
	assert.InDelta(t, 29.92, r.PressureInHg(), 0.01)
}

func TestStatusIsACopy(t *testing.T) {
	nd := CreateNodeData("fixed")
	nd.Update(func(s *Status) { s.Last = &Reading{TemperatureC: 10} })

	s := nd.Status()
	require.NotNil(t, s.Last)
	s.Last.TemperatureC = 99

	assert.Equal(t, 10.0, nd.Status().Last.TemperatureC)
	assert.Equal(t, "fixed", nd.Status().Mode)
}

func TestBuffers(t *testing.T) {
	nd := CreateNodeData("battery")
	b := buffer.NewBuffer(3)
	nd.AddBuffer("battery", b)
	assert.Same(t, b, nd.GetBuffer("battery"))
	assert.Nil(t, nd.GetBuffer("rain"))
}

func TestWindowOf(t *testing.T) {
	b := buffer.NewBuffer(3)
	assert.Nil(t, WindowOf(b))
	assert.Nil(t, WindowOf(nil))

	for _, v := range []float64{2500, 2400, 2450, 2350} {
		b.AddItem(v)
	}
	assert.Equal(t, &Window{Last: 2350, Min: 2350, Max: 2450, Samples: 3}, WindowOf(b))
}
