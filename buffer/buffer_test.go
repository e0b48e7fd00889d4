package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddItem(t *testing.T) {
	buf := NewBuffer(10)

	a, mn, mx := buf.GetAverageMinMax()
	assert.Equal(t, Average(0), a)
	assert.Equal(t, Minimum(0), mn)
	assert.Equal(t, Maximum(0), mx)

	// first sample fills the buffer
	buf.AddItem(1)
	a, mn, mx = buf.GetAverageMinMax()
	assert.Equal(t, Average(1), a)
	assert.Equal(t, Minimum(1), mn)
	assert.Equal(t, Maximum(1), mx)

	buf.AddItem(10)
	a, mn, mx = buf.GetAverageMinMax()
	assert.Equal(t, Average(1.9), a)
	assert.Equal(t, Minimum(1), mn)
	assert.Equal(t, Maximum(10), mx)

	buf.AddItem(5)
	a, _, _ = buf.GetAverageMinMax()
	assert.Equal(t, Average(2.3), a)

	for _, v := range []float64{30, 8, 5, 9, 4.1, 5, 155, 88, 17, 9} {
		buf.AddItem(v)
	}
	_, mn, mx = buf.GetAverageMinMax()
	assert.Equal(t, Minimum(4.1), mn)
	assert.Equal(t, Maximum(155), mx)
}

func TestNegativeValues(t *testing.T) {
	buf := NewBuffer(3)
	buf.AddItem(-5)
	buf.AddItem(-1)
	_, mn, mx := buf.GetAverageMinMax()
	assert.Equal(t, Minimum(-5), mn)
	assert.Equal(t, Maximum(-1), mx)
}

func TestGetLast(t *testing.T) {
	buf := NewBuffer(3)
	_, ok := buf.GetLast()
	assert.False(t, ok)

	for _, v := range []float64{1, 2, 3, 4} {
		buf.AddItem(v)
	}
	last, ok := buf.GetLast()
	assert.True(t, ok)
	assert.Equal(t, float64(4), last)
	assert.Equal(t, 3, buf.GetSize())
}
