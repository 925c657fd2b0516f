package sensor

import (
	"math"
	"time"

	"github.com/ericogr/hczj3-to-mqtt/pkg/config"
)

// ADS1115 full scale with PGA set to ±4.096V.
const pgaFullScale = 4.096

// channelSettings is a configured input with its effective sample rate.
type channelSettings struct {
	config.ChannelConfig
	sampleRate int
}

func buildChannelSettings(cfg config.Config) (temperature, impedance channelSettings) {
	temperature = channelSettings{ChannelConfig: cfg.Temperature, sampleRate: cfg.ChannelSampleRate(cfg.Temperature)}
	impedance = channelSettings{ChannelConfig: cfg.Impedance, sampleRate: cfg.ChannelSampleRate(cfg.Impedance)}
	return
}

// value applies the linear calibration to a raw conversion result.
func (c channelSettings) value(raw int16) float64 {
	volts := float64(raw) * pgaFullScale / 32768.0
	return volts*c.CalibrationScale + c.CalibrationOffset
}

// ConversionDelay is how long a single-shot conversion takes at sampleRate
// SPS, plus a 2ms margin.
func ConversionDelay(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		sampleRate = 128
	}
	ms := int(math.Ceil(1000.0/float64(sampleRate))) + 2
	return time.Duration(ms) * time.Millisecond
}
