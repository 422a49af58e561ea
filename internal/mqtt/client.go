// Package mqtt wraps the paho client: option construction, backoff
// connect and a publish helper shared by the fog node and the simulator.
package mqtt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// Options describes one client's connection and subscription.
type Options struct {
	BrokerURL string
	ClientID  string
	// Topic to subscribe on connect; empty for publish-only clients.
	SubscribeTopic string
	QoS            byte
	OnMessage      paho.MessageHandler
}

// BuildClient constructs a paho client that resubscribes on every
// (re)connect. The client ID gets a uuid suffix so restarted instances
// do not kick each other off the broker.
func BuildClient(opts Options, log zerolog.Logger) paho.Client {
	clientID := fmt.Sprintf("%s-%s", opts.ClientID, uuid.NewString()[:8])

	pahoOpts := paho.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(clientID).
		SetOrderMatters(false).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	pahoOpts.OnConnect = func(c paho.Client) {
		log.Info().Str("broker", opts.BrokerURL).Str("client_id", clientID).Msg("connected to broker")
		if opts.SubscribeTopic == "" {
			return
		}
		if token := c.Subscribe(opts.SubscribeTopic, opts.QoS, opts.OnMessage); token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", opts.SubscribeTopic).Msg("subscribe failed")
		} else {
			log.Info().Str("topic", opts.SubscribeTopic).Uint8("qos", opts.QoS).Msg("subscribed")
		}
	}
	pahoOpts.OnConnectionLost = func(c paho.Client, err error) {
		log.Warn().Err(err).Msg("broker connection lost")
	}

	return paho.NewClient(pahoOpts)
}

// ConnectWithBackoff retries the initial connect with doubling delay
// until it succeeds or ctx is cancelled.
func ConnectWithBackoff(ctx context.Context, client paho.Client, start, max time.Duration, log zerolog.Logger) error {
	backoff := start
	for {
		token := client.Connect()
		if token.Wait() && token.Error() == nil {
			return nil
		}
		log.Warn().Err(token.Error()).Dur("retry_in", backoff).Msg("broker connect failed")

		select {
		case <-time.After(backoff):
			if backoff < max {
				backoff *= 2
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Publish sends payload to topic, waiting for broker acknowledgement up
// to publishTimeout.
func Publish(client paho.Client, topic string, qos byte, payload []byte) error {
	token := client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
