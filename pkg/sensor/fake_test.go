package sensor

import (
	"testing"

	"github.com/ericogr/hczj3-to-mqtt/pkg/config"
)

func TestFakeSensorSeeded(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SimulationSeed = 42

	a, _ := NewFakeSensor(cfg)
	b, _ := NewFakeSensor(cfg)
	for i := 0; i < 100; i++ {
		ra, err := a.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		rb, _ := b.Read()
		if ra.Temperature != rb.Temperature || ra.Impedance != rb.Impedance {
			t.Fatalf("seeded sensors diverged at %d: %+v vs %+v", i, ra, rb)
		}
		if ra.Temperature < fakeMinTemperature || ra.Temperature > fakeMaxTemperature {
			t.Fatalf("temperature out of range: %v", ra.Temperature)
		}
		if ra.Impedance < fakeMinImpedance || ra.Impedance > fakeMaxImpedance {
			t.Fatalf("impedance out of range: %v", ra.Impedance)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
