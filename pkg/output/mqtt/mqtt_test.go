package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ericogr/hczj3-to-mqtt/pkg/config"
	"github.com/ericogr/hczj3-to-mqtt/pkg/sensor"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
func (t doneToken) Error() error { return t.err }

type message struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeClient records publishes; other mqtt.Client methods are not used.
type fakeClient struct {
	mqtt.Client
	published    []message
	err          error
	disconnected bool
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.published = append(f.published, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return doneToken{err: f.err}
}

func (f *fakeClient) Disconnect(uint) { f.disconnected = true }

func TestDiscoveryPayload(t *testing.T) {
	c := &fakeClient{}
	cfg := withDefaults(config.MQTTConfig{DiscoveryTopic: "homeassistant/sensor/hczj3/config"})
	newMQTTOutput(c, cfg)

	if len(c.published) != 1 {
		t.Fatalf("published %d messages; want 1", len(c.published))
	}
	msg := c.published[0]
	if msg.topic != cfg.DiscoveryTopic || !msg.retained {
		t.Fatalf("discovery message: %+v", msg)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]string{
		keyName:              "HCZ-J3 " + DefaultClientID,
		keyStateTopic:        DefaultStateTopic,
		keyUnitOfMeasurement: "%",
		keyDeviceClass:       "humidity",
		keyValueTemplate:     valueTemplateHumidity,
		keyUniqueID:          DefaultClientID,
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("discovery[%s] = %v; want %v", k, got[k], v)
		}
	}
}

func TestPublishReadings(t *testing.T) {
	c := &fakeClient{}
	m := newMQTTOutput(c, withDefaults(config.MQTTConfig{StateTopic: "home/rh"}))
	if len(c.published) != 0 {
		t.Fatalf("discovery published without topic")
	}

	readings := []sensor.Reading{{Temperature: 25, Impedance: 23, Humidity: 60}}
	if err := m.Publish(readings); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	msg := c.published[0]
	if msg.topic != "home/rh" || msg.retained {
		t.Fatalf("state message: %+v", msg)
	}
	var got map[string]float64
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["humidity"] != 60 || got["temperature"] != 25 || got["impedance"] != 23 {
		t.Fatalf("payload: %v", got)
	}

	if err := m.Close(); err != nil || !c.disconnected {
		t.Fatalf("Close: err=%v disconnected=%v", err, c.disconnected)
	}
}

func TestPublishError(t *testing.T) {
	c := &fakeClient{err: errors.New("broker gone")}
	m := newMQTTOutput(c, withDefaults(config.MQTTConfig{}))
	if err := m.Publish([]sensor.Reading{{Humidity: 50}}); err == nil {
		t.Fatalf("expected publish error")
	}
	if err := m.PublishRaw("x", []byte("y"), true); err == nil {
		t.Fatalf("expected raw publish error")
	}
}

func TestWithDefaults(t *testing.T) {
	got := withDefaults(config.MQTTConfig{Username: "sensor"})
	if got.Server != DefaultServer || got.ClientID != DefaultClientID || got.StateTopic != DefaultStateTopic || got.Username != "sensor" {
		t.Fatalf("withDefaults: %+v", got)
	}
	kept := withDefaults(config.MQTTConfig{Server: "tcp://broker:1883", ClientID: "rh", StateTopic: "a/b"})
	if kept.Server != "tcp://broker:1883" || kept.ClientID != "rh" || kept.StateTopic != "a/b" {
		t.Fatalf("withDefaults overwrote settings: %+v", kept)
	}
}
