package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher publishes channel status and loss-of-lock events to an MQTT
// broker. Publishing is fire-and-forget; a down broker never blocks the
// tracking channels.
type MQTTPublisher struct {
	client mqtt.Client
	config *MQTTConfig
}

// LockLossEvent is the MQTT payload for a loss-of-lock control message
type LockLossEvent struct {
	Timestamp int64  `json:"timestamp"`
	Channel   int    `json:"channel"`
	PRN       int    `json:"prn"`
	Satellite string `json:"satellite"`
}

// generateClientID creates a random client ID for the MQTT connection
func generateClientID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "ubertrack_" + hex.EncodeToString(bytes)
}

// NewMQTTPublisher connects to the configured broker
func NewMQTTPublisher(config *MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(generateClientID())

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Printf("MQTT: connected to broker %s", config.Broker)
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT: connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &MQTTPublisher{client: client, config: config}, nil
}

// PublishStatus publishes one channel status snapshot
func (p *MQTTPublisher) PublishStatus(status ChannelStatus) {
	topic := fmt.Sprintf("%s/channel/%d/status", p.config.TopicPrefix, status.Channel)
	p.publish(topic, status)
}

// PublishLockLoss publishes a loss-of-lock event
func (p *MQTTPublisher) PublishLockLoss(event LockLossEvent) {
	topic := fmt.Sprintf("%s/channel/%d/lock_loss", p.config.TopicPrefix, event.Channel)
	p.publish(topic, event)
}

func (p *MQTTPublisher) publish(topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("MQTT: marshal for %s failed: %v", topic, err)
		return
	}
	token := p.client.Publish(topic, p.config.QoS, false, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("MQTT: publish to %s failed: %v", topic, token.Error())
		}
	}()
}

// Close disconnects from the broker
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
