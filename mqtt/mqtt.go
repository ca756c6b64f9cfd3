// Package mqtt publishes module state snapshots to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/tr4cks/atx-power/modules"
)

type Config struct {
	Broker      string `yaml:"broker" validate:"required,url"`
	ClientId    string `yaml:"client-id"`
	TopicPrefix string `yaml:"topic-prefix" validate:"required"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// Publisher publishes state snapshots.
type Publisher interface {
	// PublishState sends a snapshot to the broker as a retained message.
	PublishState(state modules.State) error
	Close() error
}

// Payload is the JSON document published for every snapshot.
type Payload struct {
	Timestamp string        `json:"timestamp"`
	State     modules.State `json:"state"`
}

func FormatPayload(state modules.State, at time.Time) ([]byte, error) {
	return json.Marshal(Payload{
		Timestamp: at.UTC().Format(time.RFC3339),
		State:     state,
	})
}

// StateTopic returns the topic snapshots are published to.
func StateTopic(prefix string) string {
	return prefix + "/state"
}

// Run publishes every state change of module until ctx is done.
// Publish errors are logged and never stop the loop.
func Run(ctx context.Context, module modules.Module, publisher Publisher, logger zerolog.Logger) error {
	stream := module.PollStates()
	for {
		state, err := stream.Next(ctx)
		if err != nil {
			return nil
		}
		if err := publisher.PublishState(state); err != nil {
			logger.Error().Err(err).Msg("Failed to publish state")
			continue
		}
		logger.Debug().Interface("state", state).Msg("State published")
	}
}
