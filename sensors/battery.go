package sensors

import (
	"fmt"
	"math"

	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

var adcChannels = []ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}

type adcPin interface {
	Read() (analog.Sample, error)
	Halt() error
}

// Battery measures the pack voltage through a resistor divider on an ADS1115 input.
type Battery struct {
	pin     adcPin
	divider float64
}

type BatteryOpts struct {
	Address uint16
	Channel int
	Divider float64 // pack voltage / ADC input voltage
}

func NewBattery(bus i2c.Bus, opts BatteryOpts) (*Battery, error) {
	if opts.Channel < 0 || opts.Channel >= len(adcChannels) {
		return nil, fmt.Errorf("invalid ADC channel [%v]", opts.Channel)
	}
	logger.Infof("Starting battery ADC I2C [%x] channel [%v]", opts.Address, opts.Channel)
	adc, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: opts.Address})
	if err != nil {
		return nil, fmt.Errorf("opening ADS1115: %w", err)
	}
	pin, err := adc.PinForChannel(adcChannels[opts.Channel], 4096*physic.MilliVolt, 1*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return nil, fmt.Errorf("opening ADC channel [%v]: %w", opts.Channel, err)
	}
	return &Battery{pin: pin, divider: opts.Divider}, nil
}

// ReadMillivolts returns the pack voltage in mV.
func (b *Battery) ReadMillivolts() (int, error) {
	sample, err := b.pin.Read()
	if err != nil {
		return 0, fmt.Errorf("reading battery ADC: %w", err)
	}
	mv := toMillivolts(sample.V, b.divider)
	logger.Debugf("Battery raw [%v] [%v] -> [%v]mV", sample.Raw, sample.V, mv)
	return mv, nil
}

func (b *Battery) Halt() error {
	return b.pin.Halt()
}

func toMillivolts(v physic.ElectricPotential, divider float64) int {
	return int(math.Round(float64(v) / float64(physic.MilliVolt) * divider))
}
