package sensors

import (
	"errors"
	"fmt"

	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

/*
 * Sensors is responsible for reading the hardware and converting sensor output to real values.
 */

var ErrNoBus = errors.New("no I2C bus found")

// Init loads the periph host drivers. It must be called before any bus or pin lookup.
func Init() error {
	state, err := host.Init()
	if err != nil {
		logger.Errorf("Failed to init host drivers [%v]", err)
		return err
	}
	for _, f := range state.Failed {
		logger.Debugf("Driver [%v] failed [%v]", f.D, f.Err)
	}
	return nil
}

type busRef struct {
	name string
	open func() (i2c.BusCloser, error)
}

// OpenBus opens the named I2C bus, or when name is empty the bus wired to the given SDA and
// SCL pins.
func OpenBus(name string, sda, scl int) (i2c.BusCloser, error) {
	if name != "" {
		logger.Infof("Opening I2C bus [%v]", name)
		bus, err := i2creg.Open(name)
		if err != nil {
			return nil, fmt.Errorf("opening I2C bus [%v]: %w", name, err)
		}
		return bus, nil
	}
	var refs []busRef
	for _, r := range i2creg.All() {
		refs = append(refs, busRef{name: r.Name, open: r.Open})
	}
	return findBus(refs, sda, scl)
}

func findBus(refs []busRef, sda, scl int) (i2c.BusCloser, error) {
	for _, r := range refs {
		bus, err := r.open()
		if err != nil {
			logger.Debugf("Skipping I2C bus [%v] [%v]", r.name, err)
			continue
		}
		p, ok := bus.(i2c.Pins)
		if ok && p.SDA() != nil && p.SCL() != nil &&
			p.SDA().Number() == sda && p.SCL().Number() == scl {
			logger.Infof("Using I2C bus [%v] SDA [%v] SCL [%v]", r.name, sda, scl)
			return bus, nil
		}
		_ = bus.Close()
	}
	return nil, fmt.Errorf("%w on SDA [%v] SCL [%v], set sensor.bus", ErrNoBus, sda, scl)
}
