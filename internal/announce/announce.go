// Package announce republishes the display snapshot to an MQTT broker
// as retained JSON, so wall panels and dashboards can reuse the value
// without polling Home Assistant themselves.
package announce

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"inkbatt/internal/model"
	"inkbatt/internal/retry"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectGraceMS = 250
)

type Config struct {
	Broker   string // e.g. tcp://broker:1883
	Topic    string
	Username string
	Password string
}

// Announcer implements the same Render contract as a display sink, so
// the fanout contains its failures exactly like a display fault. The
// state message is retained: a consumer that connects later still sees
// the most recent snapshot.
type Announcer struct {
	client mqtt.Client
	topic  string
}

// New connects to the broker, retrying with the same jittered backoff
// the fetch path uses. A broker that stays down through all attempts is
// an error; callers run without the announcer in that case.
func New(ctx context.Context, cfg Config, retryCfg retry.Config) (*Announcer, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID("inkbatt-" + uuid.NewString()[:8])
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)

	client := mqtt.NewClient(opts)
	err := retry.Do(ctx, retryCfg, func() error {
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return token.Error()
		}
		return nil
	}, func(err error, delay time.Duration) {
		slog.Warn("mqtt connect failed, retrying", "broker", cfg.Broker, "error", err, "retry_in", delay)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, err)
	}

	slog.Info("mqtt announcer connected", "broker", cfg.Broker, "topic", cfg.Topic)
	return &Announcer{client: client, topic: cfg.Topic}, nil
}

// Render publishes the snapshot at QoS 1, retained.
func (a *Announcer) Render(state model.DisplayState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	token := a.client.Publish(a.topic, 1, true, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish state to %s: %w", a.topic, token.Error())
	}
	return nil
}

func (a *Announcer) Close() {
	if a.client.IsConnected() {
		a.client.Disconnect(disconnectGraceMS)
		slog.Info("mqtt announcer disconnected")
	}
}
