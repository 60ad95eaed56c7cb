// Package events publishes job lifecycle and progress events to a Dapr
// pub/sub component.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	dapr "github.com/dapr/go-sdk/client"
	"github.com/sirupsen/logrus"

	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// Publisher sends one event to a topic; the Dapr client satisfies it
type Publisher interface {
	PublishEvent(ctx context.Context, pubsubName string, topicName string, data interface{}, opts ...dapr.PublishEventOption) error
}

// JobEvent is the payload published for every job state change and progress
// update
type JobEvent struct {
	JobID    string             `json:"jobId"`
	State    schemas.JobState   `json:"state"`
	Progress *schemas.Progress  `json:"progress,omitempty"`
	Error    *schemas.ErrorInfo `json:"error,omitempty"`
	Time     time.Time          `json:"time"`
}

// Options names the pub/sub component and topic
type Options struct {
	PubSub string
	Topic  string
	Logger logrus.FieldLogger
}

// Broker publishes job events. A nil *Broker is valid and drops events.
type Broker struct {
	client Publisher
	pubsub string
	topic  string
	logger logrus.FieldLogger
}

// NewBroker creates a broker around any Publisher
func NewBroker(client Publisher, opt Options) *Broker {
	logger := opt.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Broker{
		client: client,
		pubsub: opt.PubSub,
		topic:  opt.Topic,
		logger: logger,
	}
}

// Publish sends ev. The event time is set when missing.
func (b *Broker) Publish(ctx context.Context, ev JobEvent) error {
	if b == nil || b.client == nil {
		return nil
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := b.client.PublishEvent(ctx, b.pubsub, b.topic, data, dapr.PublishEventWithContentType("application/json")); err != nil {
		b.logger.WithFields(logrus.Fields{
			"job_id": ev.JobID,
			"state":  ev.State,
		}).WithError(err).Warn("Failed to publish job event")
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// PublishState is Publish for a bare state change
func (b *Broker) PublishState(ctx context.Context, jobID string, state schemas.JobState) error {
	return b.Publish(ctx, JobEvent{JobID: jobID, State: state})
}
