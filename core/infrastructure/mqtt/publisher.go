package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/carlosrabelo/stbmon/core/domain/entities"
	"github.com/carlosrabelo/stbmon/core/infrastructure/config"
)

const publishTimeout = 5 * time.Second

// tokenPublisher is the part of the paho client the publisher needs
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Publisher sends every snapshot as retained JSON to <topic>/<device>
type Publisher struct {
	cfg     config.MQTTConfig
	client  paho.Client
	pub     tokenPublisher
	timeout time.Duration
	logger  *slog.Logger
}

// NewPublisher creates a publisher. Connect must be called before Publish.
func NewPublisher(cfg config.MQTTConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		cfg:     cfg,
		timeout: publishTimeout,
		logger:  logger.With("component", "mqtt"),
	}
}

// Connect establishes the broker connection
func (p *Publisher) Connect() error {
	opts := paho.NewClientOptions()
	opts.AddBroker(p.cfg.Broker)
	opts.SetClientID(p.cfg.ClientID)
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	opts.SetOnConnectHandler(func(paho.Client) {
		p.logger.Info("connected to broker", "broker", p.cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.logger.Warn("broker connection lost, will attempt to reconnect", "error", err)
	})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", p.cfg.Broker, token.Error())
	}
	p.pub = p.client
	return nil
}

// Topic returns the topic a device's snapshots are published to
func (p *Publisher) Topic(device string) string {
	return strings.TrimRight(p.cfg.Topic, "/") + "/" + device
}

// Publish implements the snapshot sink
func (p *Publisher) Publish(snap entities.Snapshot) error {
	if p.pub == nil {
		return fmt.Errorf("mqtt publisher is not connected")
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	topic := p.Topic(snap.Device)
	token := p.pub.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("timeout publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker
func (p *Publisher) Close() {
	if p.client != nil {
		p.client.Disconnect(250)
	}
}
