package sensor

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ericogr/hczj3-to-mqtt/pkg/config"
)

// Simulated ranges reach past the calibration table edges on purpose.
const (
	fakeMinTemperature = -5.0
	fakeMaxTemperature = 55.0
	fakeMinImpedance   = 0.5
	fakeMaxImpedance   = 30000.0
)

type FakeSensor struct {
	rnd *rand.Rand
	mu  sync.Mutex
}

func NewFakeSensor(cfg config.Config) (Sensor, error) {
	seed := cfg.SimulationSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &FakeSensor{rnd: rand.New(rand.NewSource(seed))}, nil
}

func (f *FakeSensor) Read() (Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	temp := fakeMinTemperature + f.rnd.Float64()*(fakeMaxTemperature-fakeMinTemperature)
	// impedance spans decades, sample it log-uniformly
	lo, hi := math.Log(fakeMinImpedance), math.Log(fakeMaxImpedance)
	imp := math.Exp(lo + f.rnd.Float64()*(hi-lo))
	return Reading{Temperature: temp, Impedance: imp, Timestamp: time.Now()}, nil
}

func (f *FakeSensor) Close() error { return nil }
