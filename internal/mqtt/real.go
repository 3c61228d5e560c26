package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/door-monitor/internal/door"
	"github.com/sweeney/door-monitor/internal/logger"
)

const (
	// BufferCapacity is the number of messages held while the broker is
	// unreachable.
	BufferCapacity = 100

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

var (
	// ErrPublishTimeout is returned when the broker does not acknowledge a
	// message in time.
	ErrPublishTimeout = errors.New("publish timeout")

	bufferedTotal = metrics.NewCounter("door_mqtt_buffered_total")
	replayedTotal = metrics.NewCounter("door_mqtt_replayed_total")
	publishErrors = metrics.NewCounter("door_mqtt_publish_errors_total")
)

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	ctx    context.Context
	client paho.Client
	topic  string

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool
	onStatus  func(bool)
}

// Option configures a RealPublisher.
type Option func(*paho.ClientOptions, *RealPublisher)

// WithClientID overrides the MQTT client identifier.
func WithClientID(id string) Option {
	return func(o *paho.ClientOptions, _ *RealPublisher) {
		o.SetClientID(id)
	}
}

// WithStatusHandler registers a callback invoked on every connect and
// connection loss.
func WithStatusHandler(fn func(connected bool)) Option {
	return func(_ *paho.ClientOptions, p *RealPublisher) {
		p.onStatus = fn
	}
}

// NewRealPublisher creates a publisher for the given broker. A broker that is
// unreachable at startup is not an error: the client keeps retrying in the
// background and messages are buffered until it connects.
func NewRealPublisher(ctx context.Context, broker string, opts ...Option) (*RealPublisher, error) {
	if broker == "" {
		return nil, errors.New("mqtt: empty broker address")
	}

	p := &RealPublisher{
		ctx:   logger.WithName(ctx, "mqtt"),
		topic: Topic,
		buf:   newRingBuffer(BufferCapacity),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "SHUTDOWN", Reason: "MQTT_DISCONNECT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	co := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("door-monitor").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, false).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)
	for _, opt := range opts {
		opt(co, p)
	}

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		logger.WarnKV(p.ctx, "Broker not reachable yet, buffering until connected", "broker", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// Publish sends a door transition to the MQTT broker.
func (p *RealPublisher) Publish(tr door.Transition) error {
	payload, err := FormatPayload(tr)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1: transitions are rare and worth the acknowledgement.
	return p.send(bufferedMsg{topic: p.topic, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Close disconnects from the broker. Buffered messages are discarded.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	if n := p.buf.len(); n > 0 {
		logger.WarnKV(p.ctx, "Discarding buffered messages", "count", n)
	}
	p.buf.drainAll()
	p.mu.Unlock()

	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.connected {
		p.buf.push(msg)
		p.mu.Unlock()
		bufferedTotal.Inc()
		logger.DebugKV(p.ctx, "Buffered message", "topic", msg.topic)
		return nil
	}
	p.mu.Unlock()

	if err := p.publish(msg); err != nil {
		publishErrors.Inc()
		return err
	}
	return nil
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%s: %w", msg.topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) onConnect(_ paho.Client) {
	p.mu.Lock()
	p.connected = true
	pending := p.buf.drainAll()
	onStatus := p.onStatus
	p.mu.Unlock()

	logger.InfoKV(p.ctx, "Connected to broker", "buffered", len(pending))
	if onStatus != nil {
		onStatus(true)
	}

	// Tokens must not be waited on inside the connect handler.
	go func() {
		for _, msg := range pending {
			if err := p.publish(msg); err != nil {
				publishErrors.Inc()
				logger.WarnKV(p.ctx, "Replay failed", "topic", msg.topic, "error", err)
				continue
			}
			replayedTotal.Inc()
		}
	}()
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	onStatus := p.onStatus
	p.mu.Unlock()

	logger.WarnKV(p.ctx, "Connection to broker lost", "error", err)
	if onStatus != nil {
		onStatus(false)
	}
}
