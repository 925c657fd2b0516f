package console

import (
	"fmt"
	"time"

	"github.com/ericogr/hczj3-to-mqtt/pkg/output"
	"github.com/ericogr/hczj3-to-mqtt/pkg/sensor"
)

type ConsoleOutput struct{}

func NewConsole() output.Output { return &ConsoleOutput{} }

func (c *ConsoleOutput) Publish(readings []sensor.Reading) error {
	for _, r := range readings {
		fmt.Printf("%s temperature=%.2f impedance=%.2f humidity=%.2f\n", r.Timestamp.Format(time.RFC3339), r.Temperature, r.Impedance, r.Humidity)
	}
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }
