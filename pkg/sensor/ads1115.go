package sensor

import (
	"fmt"
	"time"

	"github.com/ericogr/hczj3-to-mqtt/pkg/config"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	pointerConv   = 0x00
	pointerConfig = 0x01
)

// ADS1115Sensor reads the temperature and the humidity sensor impedance from
// two single-ended ADS1115 inputs.
type ADS1115Sensor struct {
	dev         *i2c.Dev
	bus         i2c.BusCloser
	temperature channelSettings
	impedance   channelSettings
}

func NewADS1115Sensor(cfg config.Config) (Sensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2C.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c: %w", err)
	}
	return newADS1115(bus, cfg), nil
}

func newADS1115(bus i2c.BusCloser, cfg config.Config) *ADS1115Sensor {
	temp, imp := buildChannelSettings(cfg)
	dev := &i2c.Dev{Addr: uint16(cfg.I2C.Address), Bus: bus}
	return &ADS1115Sensor{dev: dev, bus: bus, temperature: temp, impedance: imp}
}

func (s *ADS1115Sensor) Close() error {
	if s.bus != nil {
		return s.bus.Close()
	}
	return nil
}

func (s *ADS1115Sensor) Read() (Reading, error) {
	now := time.Now()
	temp, err := s.readChannel(s.temperature)
	if err != nil {
		return Reading{}, fmt.Errorf("temperature: %w", err)
	}
	imp, err := s.readChannel(s.impedance)
	if err != nil {
		return Reading{}, fmt.Errorf("impedance: %w", err)
	}
	return Reading{Temperature: temp, Impedance: imp, Timestamp: now}, nil
}

func (s *ADS1115Sensor) readChannel(ch channelSettings) (float64, error) {
	msb, lsb, err := s.configForChannel(ch.Channel, ch.sampleRate)
	if err != nil {
		return 0, err
	}
	// write config
	if err := s.dev.Tx([]byte{pointerConfig, msb, lsb}, nil); err != nil {
		return 0, fmt.Errorf("write config: %w", err)
	}
	// wait for conversion (simple sleep)
	time.Sleep(ConversionDelay(ch.sampleRate))
	readBuf := make([]byte, 2)
	if err := s.dev.Tx([]byte{pointerConv}, readBuf); err != nil {
		return 0, fmt.Errorf("read conv: %w", err)
	}
	raw := int16(readBuf[0])<<8 | int16(readBuf[1])
	return ch.value(raw), nil
}

func (s *ADS1115Sensor) configForChannel(channel, sampleRate int) (byte, byte, error) {
	var mux byte
	switch channel {
	case 0:
		mux = 0x4
	case 1:
		mux = 0x5
	case 2:
		mux = 0x6
	case 3:
		mux = 0x7
	default:
		return 0, 0, fmt.Errorf("invalid channel %d", channel)
	}
	// PGA: use ±4.096V -> bits 001
	pga := byte(0x1)
	// data rate bits
	var dr byte
	switch sampleRate {
	case 8:
		dr = 0x0
	case 16:
		dr = 0x1
	case 32:
		dr = 0x2
	case 64:
		dr = 0x3
	case 128:
		dr = 0x4
	case 250:
		dr = 0x5
	case 475:
		dr = 0x6
	case 860:
		dr = 0x7
	default:
		dr = 0x4
	}
	var config uint16 = 0x8000 // OS = 1 (start single conversion)
	config |= uint16(mux) << 12
	config |= uint16(pga) << 9
	config |= 1 << 8 // single-shot mode
	config |= uint16(dr) << 5
	// comparator default: disabled (bits 1:0 = 11)
	config |= 0x3
	return byte(config >> 8), byte(config & 0xFF), nil
}
