package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const (
	SensorReal       = "real"
	SensorSimulation = "simulation"

	OutputConsole = "console"
	OutputMQTT    = "mqtt"
	OutputHTTP    = "http"
)

type MQTTConfig struct {
	Server            string `json:"server"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	ClientID          string `json:"client_id"`
	StateTopic        string `json:"state_topic"`
	DiscoveryTopic    string `json:"discovery_topic,omitempty"`
	DiscoveryName     string `json:"discovery_name,omitempty"`
	DiscoveryUniqueID string `json:"discovery_unique_id,omitempty"`
}

type HTTPConfig struct {
	Listen string `json:"listen"`
}

type OutputConfig struct {
	Type       string      `json:"type"`
	IntervalMs int         `json:"interval_ms,omitempty"`
	MQTT       *MQTTConfig `json:"mqtt,omitempty"`
	HTTP       *HTTPConfig `json:"http,omitempty"`
}

type I2CConfig struct {
	Bus     string `json:"bus"`
	Address int    `json:"address"`
}

// ChannelConfig maps one ADS1115 input to an engineering value:
// value = volts*CalibrationScale + CalibrationOffset.
type ChannelConfig struct {
	Channel           int     `json:"channel"`
	SampleRate        int     `json:"sample_rate,omitempty"`
	CalibrationScale  float64 `json:"calibration_scale"`
	CalibrationOffset float64 `json:"calibration_offset"`
}

type Config struct {
	I2C               I2CConfig      `json:"i2c"`
	SampleRate        int            `json:"sample_rate"`
	SensorType        string         `json:"sensor_type"`
	Temperature       ChannelConfig  `json:"temperature"`
	Impedance         ChannelConfig  `json:"impedance"`
	Outputs           []OutputConfig `json:"outputs"`
	IntervalMs        int            `json:"interval_ms"`
	LegacyAnchorReuse bool           `json:"legacy_anchor_reuse"`
	LogLevel          string         `json:"log_level"`
	SimulationSeed    int64          `json:"simulation_seed,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		I2C:               I2CConfig{Bus: "2", Address: 0x48},
		SampleRate:        128,
		SensorType:        SensorReal,
		Temperature:       ChannelConfig{Channel: 0, CalibrationScale: 100.0},
		Impedance:         ChannelConfig{Channel: 1, CalibrationScale: 5000.0},
		Outputs:           []OutputConfig{{Type: OutputConsole, IntervalMs: 1000}},
		IntervalMs:        1000,
		LegacyAnchorReuse: true,
		LogLevel:          "info",
	}
}

// Flags holds command line overrides. Only flags that were set on the
// command line are applied by Load.
type Flags struct {
	fs *pflag.FlagSet

	ConfigPath        string
	I2CBus            string
	I2CAddress        string
	SampleRate        int
	SensorType        string
	TempChannel       int
	TempScale         float64
	TempOffset        float64
	ImpChannel        int
	ImpScale          float64
	ImpOffset         float64
	Outputs           string
	OutputIntervals   string
	MQTTServer        string
	MQTTUser          string
	MQTTPass          string
	MQTTClientID      string
	MQTTTopic         string
	MQTTDiscovery     string
	HTTPListen        string
	IntervalMs        int
	LegacyAnchorReuse bool
	LogLevel          string
	SimulationSeed    int64
}

// BindFlags registers the configuration flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVarP(&f.ConfigPath, "config", "c", "", "Path to JSON config file")
	fs.StringVar(&f.I2CBus, "i2c-bus", "", "I2C bus (e.g., '2' -> /dev/i2c-2)")
	fs.StringVar(&f.I2CAddress, "i2c-address", "", "I2C address (decimal or 0x hex)")
	fs.IntVar(&f.SampleRate, "sample-rate", 0, "ADS1115 sample rate (SPS)")
	fs.StringVar(&f.SensorType, "sensor-type", "", "sensor type: real|simulation")
	fs.IntVar(&f.TempChannel, "temperature-channel", 0, "ADS1115 channel wired to the temperature sensor")
	fs.Float64Var(&f.TempScale, "temperature-scale", 0, "Temperature calibration scale (°C per volt)")
	fs.Float64Var(&f.TempOffset, "temperature-offset", 0, "Temperature calibration offset (°C)")
	fs.IntVar(&f.ImpChannel, "impedance-channel", 0, "ADS1115 channel wired to the humidity sensor")
	fs.Float64Var(&f.ImpScale, "impedance-scale", 0, "Impedance calibration scale (ohms per volt)")
	fs.Float64Var(&f.ImpOffset, "impedance-offset", 0, "Impedance calibration offset (ohms)")
	fs.StringVar(&f.Outputs, "outputs", "", "Comma-separated outputs (console,mqtt,http)")
	fs.StringVar(&f.OutputIntervals, "output-intervals", "", "Comma-separated output intervals e.g. console=1000,mqtt=5000")
	fs.StringVar(&f.MQTTServer, "mqtt-server", "", "MQTT server (tcp://host:port)")
	fs.StringVar(&f.MQTTUser, "mqtt-user", "", "MQTT username")
	fs.StringVar(&f.MQTTPass, "mqtt-pass", "", "MQTT password")
	fs.StringVar(&f.MQTTClientID, "mqtt-client-id", "", "MQTT client id")
	fs.StringVar(&f.MQTTTopic, "mqtt-topic", "", "MQTT state topic")
	fs.StringVar(&f.MQTTDiscovery, "mqtt-discovery-topic", "", "Home Assistant discovery topic")
	fs.StringVar(&f.HTTPListen, "http-listen", "", "HTTP output listen address (e.g. :8080)")
	fs.IntVar(&f.IntervalMs, "interval-ms", 0, "Publish interval in ms")
	fs.BoolVar(&f.LegacyAnchorReuse, "legacy-anchor-reuse", true, "Reuse the lower row anchor when interpolating the upper temperature row")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	fs.Int64Var(&f.SimulationSeed, "simulation-seed", 0, "Random seed for the simulated sensor (0 = time based)")
	return f
}

func (f *Flags) changed(name string) bool {
	return f != nil && f.fs != nil && f.fs.Changed(name)
}

// Load builds the configuration from defaults, the JSON file named by the
// config flag (optional) and the flags. Flags override values from the file.
func Load(f *Flags) (Config, error) {
	cfg := DefaultConfig()

	if f != nil && f.ConfigPath != "" {
		b, err := os.ReadFile(f.ConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		// decode outputs into a fresh slice so default entries don't leak into them
		defaults := cfg.Outputs
		cfg.Outputs = nil
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
		if cfg.Outputs == nil {
			cfg.Outputs = defaults
		}
	}

	if err := f.apply(&cfg); err != nil {
		return cfg, err
	}

	// ensure outputs have interval default
	for i := range cfg.Outputs {
		if cfg.Outputs[i].IntervalMs == 0 {
			cfg.Outputs[i].IntervalMs = cfg.IntervalMs
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (f *Flags) apply(cfg *Config) error {
	if f.changed("i2c-bus") {
		cfg.I2C.Bus = f.I2CBus
	}
	if f.changed("i2c-address") {
		v, err := parseIntOrHex(f.I2CAddress)
		if err != nil {
			return fmt.Errorf("i2c-address: %w", err)
		}
		cfg.I2C.Address = v
	}
	if f.changed("sample-rate") {
		cfg.SampleRate = f.SampleRate
	}
	if f.changed("sensor-type") {
		cfg.SensorType = f.SensorType
	}
	if f.changed("temperature-channel") {
		cfg.Temperature.Channel = f.TempChannel
	}
	if f.changed("temperature-scale") {
		cfg.Temperature.CalibrationScale = f.TempScale
	}
	if f.changed("temperature-offset") {
		cfg.Temperature.CalibrationOffset = f.TempOffset
	}
	if f.changed("impedance-channel") {
		cfg.Impedance.Channel = f.ImpChannel
	}
	if f.changed("impedance-scale") {
		cfg.Impedance.CalibrationScale = f.ImpScale
	}
	if f.changed("impedance-offset") {
		cfg.Impedance.CalibrationOffset = f.ImpOffset
	}
	if f.changed("interval-ms") {
		cfg.IntervalMs = f.IntervalMs
	}
	if f.changed("legacy-anchor-reuse") {
		cfg.LegacyAnchorReuse = f.LegacyAnchorReuse
	}
	if f.changed("log-level") {
		cfg.LogLevel = f.LogLevel
	}
	if f.changed("simulation-seed") {
		cfg.SimulationSeed = f.SimulationSeed
	}
	if f.changed("outputs") {
		// convert simple CSV of types into structured OutputConfig entries
		parts := parseCSV(f.Outputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: strings.ToLower(p), IntervalMs: cfg.IntervalMs})
		}
		cfg.Outputs = outs
	}
	if f.changed("output-intervals") {
		intervals, err := parseKeyIntMap(f.OutputIntervals)
		if err != nil {
			return fmt.Errorf("output-intervals: %w", err)
		}
		for i := range cfg.Outputs {
			if v, ok := intervals[cfg.Outputs[i].Type]; ok {
				cfg.Outputs[i].IntervalMs = v
			}
		}
	}

	mqttFlags := []string{"mqtt-server", "mqtt-user", "mqtt-pass", "mqtt-client-id", "mqtt-topic", "mqtt-discovery-topic"}
	if f.anyChanged(mqttFlags...) {
		out := cfg.outputsOfType(OutputMQTT)
		if len(out) == 0 {
			cfg.Outputs = append(cfg.Outputs, OutputConfig{Type: OutputMQTT, IntervalMs: cfg.IntervalMs})
			out = []*OutputConfig{&cfg.Outputs[len(cfg.Outputs)-1]}
		}
		for _, o := range out {
			if o.MQTT == nil {
				o.MQTT = &MQTTConfig{}
			}
			f.applyMQTT(o.MQTT)
		}
	}
	if f.changed("http-listen") {
		out := cfg.outputsOfType(OutputHTTP)
		if len(out) == 0 {
			cfg.Outputs = append(cfg.Outputs, OutputConfig{Type: OutputHTTP, IntervalMs: cfg.IntervalMs})
			out = []*OutputConfig{&cfg.Outputs[len(cfg.Outputs)-1]}
		}
		for _, o := range out {
			o.HTTP = &HTTPConfig{Listen: f.HTTPListen}
		}
	}
	return nil
}

func (f *Flags) anyChanged(names ...string) bool {
	for _, n := range names {
		if f.changed(n) {
			return true
		}
	}
	return false
}

func (f *Flags) applyMQTT(m *MQTTConfig) {
	if f.changed("mqtt-server") {
		m.Server = f.MQTTServer
	}
	if f.changed("mqtt-user") {
		m.Username = f.MQTTUser
	}
	if f.changed("mqtt-pass") {
		m.Password = f.MQTTPass
	}
	if f.changed("mqtt-client-id") {
		m.ClientID = f.MQTTClientID
	}
	if f.changed("mqtt-topic") {
		m.StateTopic = f.MQTTTopic
	}
	if f.changed("mqtt-discovery-topic") {
		m.DiscoveryTopic = f.MQTTDiscovery
	}
}

func (c *Config) outputsOfType(t string) []*OutputConfig {
	var out []*OutputConfig
	for i := range c.Outputs {
		if strings.EqualFold(c.Outputs[i].Type, t) {
			out = append(out, &c.Outputs[i])
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return errors.New("sample-rate must be > 0")
	}
	if c.IntervalMs <= 0 {
		return errors.New("interval-ms must be > 0")
	}
	switch c.SensorType {
	case SensorReal, SensorSimulation:
	default:
		return fmt.Errorf("unknown sensor type %q", c.SensorType)
	}
	for _, ch := range []ChannelConfig{c.Temperature, c.Impedance} {
		if ch.Channel < 0 || ch.Channel > 3 {
			return fmt.Errorf("invalid channel %d", ch.Channel)
		}
		if ch.SampleRate < 0 {
			return fmt.Errorf("channel %d: sample rate must be >= 0", ch.Channel)
		}
	}
	if c.Temperature.Channel == c.Impedance.Channel {
		return fmt.Errorf("temperature and impedance share channel %d", c.Temperature.Channel)
	}
	for _, o := range c.Outputs {
		switch strings.ToLower(o.Type) {
		case OutputConsole:
		case OutputMQTT:
			// an empty server falls back to the mqtt package default
			if o.MQTT == nil {
				return errors.New("mqtt output requires mqtt settings")
			}
		case OutputHTTP:
			if o.HTTP == nil || o.HTTP.Listen == "" {
				return errors.New("http output requires a listen address")
			}
		default:
			return fmt.Errorf("unknown output type %q", o.Type)
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	return nil
}

// ChannelSampleRate returns the channel's own sample rate or the global one.
func (c Config) ChannelSampleRate(ch ChannelConfig) int {
	if ch.SampleRate > 0 {
		return ch.SampleRate
	}
	return c.SampleRate
}

func parseIntOrHex(s string) (int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 0)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	return v, err
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseKeyIntMap parses "a=1,b=2" into a map.
func parseKeyIntMap(s string) (map[string]int, error) {
	out := map[string]int{}
	for _, p := range parseCSV(s) {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid entry '%s'", p)
		}
		v, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid value in '%s': %w", p, err)
		}
		out[strings.TrimSpace(kv[0])] = v
	}
	return out, nil
}
