// Package notify publishes attendance marks to an MQTT broker.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/stream"
)

const (
	publishTimeout = 5 * time.Second
	keepAlive      = 30 * time.Second
)

// Message is the JSON payload sent for each mark.
type Message struct {
	Identity  string `json:"identity"`
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id,omitempty"`
}

func NewMessage(e ledger.Event) Message {
	return Message{
		Identity:  string(e.Identity),
		Timestamp: e.Timestamp.Format(ledger.TimestampLayout),
		SessionID: e.SessionID,
	}
}

// client is the part of mqtt.Client the publisher needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher sends marks to a topic. It is a stream.Sink.
type Publisher struct {
	client client
	topic  string
	log    logrus.FieldLogger
}

// Connect dials the broker from cfg. An empty broker returns nil, nil and
// notifications are disabled.
func Connect(cfg config.MQTTConfig, log logrus.FieldLogger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, nil
	}

	clientID := "face-attendance-" + uuid.New().String()
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetKeepAlive(keepAlive).
		SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		log.WithField("broker", cfg.Broker).Info("connected to MQTT")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	}

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}
	return newPublisher(c, cfg.Topic, log), nil
}

func newPublisher(c client, topic string, log logrus.FieldLogger) *Publisher {
	return &Publisher{client: c, topic: topic, log: log}
}

// Publish sends one mark and waits for the broker to accept it.
func (p *Publisher) Publish(e ledger.Event) error {
	payload, err := json.Marshal(NewMessage(e))
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out", e.Identity)
	}
	return token.Error()
}

// Emit publishes the marks of one frame in the background so the stream
// never waits on the broker.
func (p *Publisher) Emit(out stream.Output) {
	if len(out.Marked) == 0 {
		return
	}
	events := out.Marked
	go func() {
		for _, e := range events {
			if err := p.Publish(e); err != nil {
				p.log.WithError(err).WithField("identity", e.Identity).Warn("MQTT publish failed")
			}
		}
	}()
}

func (p *Publisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
