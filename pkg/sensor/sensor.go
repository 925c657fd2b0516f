package sensor

import "time"

// Reading is one acquisition. Humidity is filled in after conversion.
type Reading struct {
	Temperature float64   `json:"temperature"`
	Impedance   float64   `json:"impedance"`
	Humidity    float64   `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"`
}

type Sensor interface {
	Read() (Reading, error)
	Close() error
}
