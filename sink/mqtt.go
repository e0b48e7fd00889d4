package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gr-butler/weathernode/config"
	"github.com/gr-butler/weathernode/data"
	logger "github.com/sirupsen/logrus"
)

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type MQTT struct {
	client mqttClient
	topic  string
}

// NewMQTT connects to the broker, retrying with exponential backoff until ctx ends.
func NewMQTT(ctx context.Context, cfg config.MQTTSink) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(time.Second * 5)

	var client mqtt.Client
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Second * 10
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			logger.Warnf("Failed to connect to MQTT broker [%v] [%v]", cfg.Broker, token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 4), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not connect to MQTT broker [%v]: %w", cfg.Broker, err)
	}
	logger.Infof("Connected to MQTT broker [%v]", cfg.Broker)
	return &MQTT{client: client, topic: cfg.Topic}, nil
}

func (m *MQTT) Name() string { return "mqtt" }

func (m *MQTT) Publish(ctx context.Context, r data.Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	// retained so subscribers see the last reading while the node sleeps
	token := m.client.Publish(m.topic, 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publishing to [%v]: %w", m.topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to [%v]: %w", m.topic, err)
	}
	return nil
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
