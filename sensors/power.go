package sensors

import (
	"fmt"
	"strconv"
	"sync"

	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// PowerPin switches the supply of a sensor through a GPIO output.
type PowerPin struct {
	Name    string
	lock    sync.Mutex
	gpioPin gpio.PinOut
}

// NewPowerPin looks the pin up by its GPIO number and drives it low.
func NewPowerPin(number int) (*PowerPin, error) {
	p := gpioreg.ByName(strconv.Itoa(number))
	if p == nil {
		return nil, fmt.Errorf("failed to find power pin [%v]", number)
	}
	logger.Infof("Sensor power on pin [%v]", p)
	return newPowerPin(p.Name(), p)
}

func newPowerPin(name string, pin gpio.PinOut) (*PowerPin, error) {
	pp := &PowerPin{Name: name, gpioPin: pin}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("setting power pin [%v] low: %w", name, err)
	}
	return pp, nil
}

func (p *PowerPin) On() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.gpioPin.Out(gpio.High); err != nil {
		return fmt.Errorf("power pin [%v] on: %w", p.Name, err)
	}
	return nil
}

func (p *PowerPin) Off() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.gpioPin.Out(gpio.Low); err != nil {
		return fmt.Errorf("power pin [%v] off: %w", p.Name, err)
	}
	return nil
}
