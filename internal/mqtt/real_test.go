package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/door-monitor/internal/door"
)

// newOfflinePublisher returns a publisher whose client never connected.
func newOfflinePublisher(capacity int, onStatus func(bool)) *RealPublisher {
	return &RealPublisher{
		ctx:      context.Background(),
		client:   paho.NewClient(paho.NewClientOptions().AddBroker("tcp://127.0.0.1:1")),
		topic:    Topic,
		buf:      newRingBuffer(capacity),
		onStatus: onStatus,
	}
}

func TestRealPublisherBuffersWhileDisconnected(t *testing.T) {
	p := newOfflinePublisher(10, nil)

	if err := p.Publish(door.Transition{Timestamp: time.Now(), Type: door.TransitionOpened, Door: door.StateOpen}); err != nil {
		t.Fatalf("Publish while disconnected: %v", err)
	}
	if err := p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("PublishSystem while disconnected: %v", err)
	}

	if p.buf.len() != 2 {
		t.Fatalf("buffered: got %d, want 2", p.buf.len())
	}
	msgs := p.buf.drainAll()
	if msgs[0].topic != Topic || msgs[0].qos != 1 {
		t.Errorf("first message: topic %s qos %d", msgs[0].topic, msgs[0].qos)
	}
	if msgs[1].topic != TopicSystem || !msgs[1].retained {
		t.Errorf("second message: topic %s retained %v", msgs[1].topic, msgs[1].retained)
	}
}

func TestRealPublisherConnectionStatus(t *testing.T) {
	var statuses []bool
	p := newOfflinePublisher(10, func(c bool) { statuses = append(statuses, c) })

	if p.IsConnected() {
		t.Error("expected disconnected initially")
	}

	p.Publish(door.Transition{Type: door.TransitionOpened})
	p.onConnect(p.client)

	if !p.IsConnected() {
		t.Error("expected connected after onConnect")
	}
	if p.buf.len() != 0 {
		t.Errorf("buffer should be drained on connect, got %d", p.buf.len())
	}

	p.onConnectionLost(p.client, errors.New("EOF"))

	if p.IsConnected() {
		t.Error("expected disconnected after connection loss")
	}
	if len(statuses) != 2 || !statuses[0] || statuses[1] {
		t.Errorf("status callbacks: got %v, want [true false]", statuses)
	}
}

func TestRealPublisherBufferOverflowKeepsNewest(t *testing.T) {
	p := newOfflinePublisher(2, nil)

	for _, typ := range []door.TransitionType{door.TransitionOpened, door.TransitionAlertRaised, door.TransitionClosed} {
		p.Publish(door.Transition{Type: typ})
	}

	msgs := p.buf.drainAll()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 buffered messages, got %d", len(msgs))
	}
	var first Payload
	if err := json.Unmarshal(msgs[0].payload, &first); err != nil {
		t.Fatal(err)
	}
	if first.Door.Event != "ALERT_RAISED" {
		t.Errorf("oldest kept: got %s, want ALERT_RAISED", first.Door.Event)
	}
}

func TestNewRealPublisherRejectsEmptyBroker(t *testing.T) {
	if _, err := NewRealPublisher(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty broker")
	}
}
