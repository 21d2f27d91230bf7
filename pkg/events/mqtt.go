// Package events publishes clustering run lifecycle notifications over
// MQTT, so external dashboards or pipeline orchestrators can react to a
// run's completion without polling the REST API.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rinikerlab/cnncluster/pkg/observability"
)

// RunEvent describes a completed clustering operation.
type RunEvent struct {
	Dataset      string    `json:"dataset"`
	Mode         string    `json:"mode"` // clustering, hierarchic, scan, mapping, dtrajs
	ClusterCount int       `json:"cluster_count"`
	PointCount   int       `json:"point_count"`
	DurationMS   int64     `json:"duration_ms"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Publisher publishes RunEvents to an MQTT broker.
type Publisher struct {
	client pahomqtt.Client
	topic  string
	logger *observability.Logger
}

// Config holds MQTT broker connection settings.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

// NewPublisher creates and connects an MQTT publisher.
func NewPublisher(cfg Config, logger *observability.Logger) (*Publisher, error) {
	if logger == nil {
		logger = observability.GetGlobalLogger()
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("cnncluster-%d", time.Now().UnixNano())
	}
	opts.SetClientID(clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	opts.OnConnect = func(pahomqtt.Client) {
		logger.Info("connected to mqtt broker", map[string]interface{}{"broker": cfg.Broker})
	}
	opts.OnConnectionLost = func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", map[string]interface{}{"error": err.Error()})
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if token.Error() != nil {
		return nil, fmt.Errorf("events: connect to mqtt broker: %w", token.Error())
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "cnncluster/runs"
	}

	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Publish sends a run event at QoS 1, non-blocking on acknowledgement
// beyond the token wait.
func (p *Publisher) Publish(evt RunEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: marshal run event: %w", err)
	}

	token := p.client.Publish(p.topic, 1, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("events: publish run event: %w", token.Error())
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
