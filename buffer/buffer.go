package buffer

import (
	"math"
	"sync"
)

type Average float64
type Minimum float64
type Maximum float64

// SampleBuffer is a fixed size ring of samples. The first sample fills the whole ring so
// the average is usable straight after start up.
type SampleBuffer struct {
	position int
	size     int
	data     []float64
	lock     sync.Mutex
	empty    bool
}

func NewBuffer(size int) *SampleBuffer {
	if size < 1 {
		size = 1
	}
	return &SampleBuffer{
		size:  size,
		data:  make([]float64, size),
		empty: true,
	}
}

func (b *SampleBuffer) AddItem(val float64) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.empty {
		for i := range b.data {
			b.data[i] = val
		}
		b.empty = false
	}
	b.data[b.position] = val
	b.position++
	if b.position == b.size {
		b.position = 0
	}
}

// GetAverageMinMax returns zeros until the first sample arrives.
func (b *SampleBuffer) GetAverageMinMax() (Average, Minimum, Maximum) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.empty {
		return 0, 0, 0
	}
	min := math.MaxFloat64
	max := -math.MaxFloat64
	sum := 0.0
	for _, x := range b.data {
		if x > max {
			max = x
		}
		if x < min {
			min = x
		}
		sum += x
	}
	return Average(sum / float64(b.size)), Minimum(min), Maximum(max)
}

func (b *SampleBuffer) GetLast() (float64, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.empty {
		return 0, false
	}
	index := b.position - 1
	if index < 0 {
		index += b.size
	}
	return b.data[index], true
}

func (b *SampleBuffer) GetSize() int {
	return b.size
}
