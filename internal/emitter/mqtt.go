// Package emitter forwards dashboard events to an MQTT broker.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/aether-core/dashboard/internal/logger"
	"github.com/aether-core/dashboard/pkg/types"
)

var log = logger.For("MQTT")

const (
	queueSize      = 64
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// Config describes the broker connection.
type Config struct {
	Broker   string // host:port or full URL
	ClientID string
	Prefix   string // topic prefix, events go to <prefix>/<kind>
	QoS      byte
	Username string
	Password string
}

// publisher is the subset of mqtt.Client used for publishing.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTEmitter publishes events from a background goroutine. Emit never
// blocks; events are dropped when the queue is full.
type MQTTEmitter struct {
	cfg    Config
	client mqtt.Client
	pub    publisher

	queue chan types.Event
	wg    sync.WaitGroup

	mu        sync.RWMutex
	connected bool

	published atomic.Uint64
	dropped   atomic.Uint64
	errors    atomic.Uint64
}

// NewMQTTEmitter creates an emitter. Call Connect before Start.
func NewMQTTEmitter(cfg Config) *MQTTEmitter {
	if cfg.Prefix == "" {
		cfg.Prefix = "aether"
	}
	return &MQTTEmitter{cfg: cfg, queue: make(chan types.Event, queueSize)}
}

func newWithPublisher(cfg Config, p publisher) *MQTTEmitter {
	e := NewMQTTEmitter(cfg)
	e.pub = p
	e.connected = true
	return e
}

// Connect establishes the broker connection with automatic reconnects.
func (e *MQTTEmitter) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	if e.cfg.Username != "" {
		opts.SetUsername(e.cfg.Username)
		opts.SetPassword(e.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		e.setConnected(true)
		log.Info("connected to %s", e.cfg.Broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.setConnected(false)
		log.Warn("connection lost: %v (reconnecting)", err)
	}

	e.client = mqtt.NewClient(opts)
	e.pub = e.client

	token := e.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect to %s: timeout", e.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", e.cfg.Broker, err)
	}
	e.setConnected(true)
	return nil
}

// Start launches the publishing goroutine. It drains the queue until ctx is
// cancelled.
func (e *MQTTEmitter) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-e.queue:
				if err := e.publish(ev); err != nil {
					e.errors.Add(1)
					log.Debug("publish %s: %v", ev.Kind, err)
				}
			}
		}
	}()
}

// Emit queues ev for publishing.
func (e *MQTTEmitter) Emit(ev types.Event) {
	select {
	case e.queue <- ev:
	default:
		e.dropped.Add(1)
	}
}

// Topic returns the topic an event kind is published to.
func (e *MQTTEmitter) Topic(kind string) string {
	return e.cfg.Prefix + "/" + kind
}

func (e *MQTTEmitter) publish(ev types.Event) error {
	if !e.isConnected() {
		return fmt.Errorf("not connected")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	token := e.pub.Publish(e.Topic(ev.Kind), e.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return err
	}
	e.published.Add(1)
	return nil
}

// Stats returns published, dropped and failed event counts.
func (e *MQTTEmitter) Stats() (published, dropped, failed uint64) {
	return e.published.Load(), e.dropped.Load(), e.errors.Load()
}

// Close waits for the publishing goroutine, which exits when the context
// given to Start is cancelled, then disconnects.
func (e *MQTTEmitter) Close() {
	e.wg.Wait()
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
	}
	e.setConnected(false)
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func brokerURL(broker string) string {
	for _, scheme := range []string{"tcp://", "ssl://", "ws://", "wss://", "mqtt://", "mqtts://"} {
		if len(broker) >= len(scheme) && broker[:len(scheme)] == scheme {
			return broker
		}
	}
	return "tcp://" + broker
}
