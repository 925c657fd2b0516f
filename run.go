package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ericogr/hczj3-to-mqtt/pkg/config"
	"github.com/ericogr/hczj3-to-mqtt/pkg/humidity"
	"github.com/ericogr/hczj3-to-mqtt/pkg/output"
	"github.com/ericogr/hczj3-to-mqtt/pkg/output/console"
	"github.com/ericogr/hczj3-to-mqtt/pkg/output/httpapi"
	"github.com/ericogr/hczj3-to-mqtt/pkg/output/mqtt"
	"github.com/ericogr/hczj3-to-mqtt/pkg/sensor"
)

type outputEntry struct {
	Type       string
	Output     output.Output
	IntervalMs int
	last       time.Time
}

func (e *outputEntry) due(now time.Time) bool {
	return e.last.IsZero() || now.Sub(e.last) >= time.Duration(e.IntervalMs)*time.Millisecond
}

// computeSensorInterval returns the time in ms one Read takes: both channels
// convert back to back.
func computeSensorInterval(cfg config.Config) int {
	total := 0
	for _, ch := range []config.ChannelConfig{cfg.Temperature, cfg.Impedance} {
		total += int(sensor.ConversionDelay(cfg.ChannelSampleRate(ch)).Milliseconds())
	}
	return total
}

func initSensor(cfg config.Config) (sensor.Sensor, error) {
	switch cfg.SensorType {
	case config.SensorSimulation:
		return sensor.NewFakeSensor(cfg)
	default:
		return sensor.NewADS1115Sensor(cfg)
	}
}

func initOutputs(cfg *config.Config, defaultInterval int, engine *humidity.Engine) ([]*outputEntry, error) {
	entries := make([]*outputEntry, 0, len(cfg.Outputs))
	for i := range cfg.Outputs {
		oc := &cfg.Outputs[i]
		if oc.IntervalMs == 0 {
			oc.IntervalMs = defaultInterval
		}
		var (
			out output.Output
			err error
		)
		switch strings.ToLower(oc.Type) {
		case config.OutputConsole:
			out = console.NewConsole()
		case config.OutputMQTT:
			if oc.MQTT == nil {
				err = fmt.Errorf("mqtt output requires mqtt settings")
				break
			}
			out, err = mqtt.NewMQTT(*oc.MQTT)
		case config.OutputHTTP:
			if oc.HTTP == nil {
				err = fmt.Errorf("http output requires http settings")
				break
			}
			out, err = httpapi.NewHTTP(*oc.HTTP, engine)
		default:
			err = fmt.Errorf("unknown output type %q", oc.Type)
		}
		if err != nil {
			closeOutputs(entries)
			return nil, fmt.Errorf("output %s: %w", oc.Type, err)
		}
		entries = append(entries, &outputEntry{Type: oc.Type, Output: out, IntervalMs: oc.IntervalMs})
	}
	return entries, nil
}

func closeOutputs(entries []*outputEntry) {
	for _, e := range entries {
		if err := e.Output.Close(); err != nil {
			logrus.WithError(err).WithField("output", e.Type).Warn("failed to close output")
		}
	}
}

// dispatch hands r to every output whose interval has elapsed.
func dispatch(entries []*outputEntry, now time.Time, r sensor.Reading) {
	for _, e := range entries {
		if !e.due(now) {
			continue
		}
		e.last = now
		if err := e.Output.Publish([]sensor.Reading{r}); err != nil {
			logrus.WithError(err).WithField("output", e.Type).Error("publish failed")
		}
	}
}

func acquire(s sensor.Sensor, engine *humidity.Engine) (sensor.Reading, error) {
	r, err := s.Read()
	if err != nil {
		return r, err
	}
	r.Humidity = engine.EstimateRH(r.Temperature, r.Impedance)
	return r, nil
}

func run(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := humidity.New(humidity.WithLegacyAnchorReuse(cfg.LegacyAnchorReuse))

	s, err := initSensor(cfg)
	if err != nil {
		return fmt.Errorf("sensor: %w", err)
	}
	defer s.Close()

	entries, err := initOutputs(&cfg, cfg.IntervalMs, engine)
	if err != nil {
		return err
	}
	defer closeOutputs(entries)

	interval := cfg.IntervalMs
	// outputs faster than the global interval need more frequent reads
	for _, e := range entries {
		if e.IntervalMs < interval {
			interval = e.IntervalMs
		}
	}
	if floor := computeSensorInterval(cfg); interval < floor {
		interval = floor
	}

	logrus.WithFields(logrus.Fields{
		"sensor":              cfg.SensorType,
		"outputs":             len(entries),
		"interval_ms":         interval,
		"legacy_anchor_reuse": cfg.LegacyAnchorReuse,
	}).Info("starting acquisition loop")

	ticker := time.NewTicker(time.Duration(interval) * time.Millisecond)
	defer ticker.Stop()
	for {
		r, err := acquire(s, engine)
		if err != nil {
			logrus.WithError(err).Error("sensor read failed")
		} else {
			logrus.WithFields(logrus.Fields{
				"temperature": r.Temperature,
				"impedance":   r.Impedance,
				"humidity":    r.Humidity,
			}).Debug("reading")
			dispatch(entries, time.Now(), r)
		}

		select {
		case <-ctx.Done():
			logrus.Info("stopping")
			return nil
		case <-ticker.C:
		}
	}
}
