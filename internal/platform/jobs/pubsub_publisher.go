// Package jobs publishes deferred bookkeeping work to Pub/Sub.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/summit-offroad/api/internal/services"
)

// PubSubViewTrackingPublisher publishes product-view tracking jobs to a
// Pub/Sub topic. The storefront acknowledges view tracking immediately; the
// actual bookkeeping happens in a worker consuming this topic.
type PubSubViewTrackingPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubViewTrackingPublisher constructs a Pub/Sub backed publisher.
func NewPubSubViewTrackingPublisher(topic *pubsub.Topic) (*PubSubViewTrackingPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub view tracking publisher: topic is required")
	}
	return &PubSubViewTrackingPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishViewTracking enqueues a view-tracking message on the configured topic.
func (p *PubSubViewTrackingPublisher) PublishViewTracking(ctx context.Context, message services.ViewTrackingMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub view tracking publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal view tracking job: %w", err)
	}

	attrs := make(map[string]string)
	if id := strings.TrimSpace(message.JobID); id != "" {
		attrs["jobId"] = id
	}
	if session := strings.TrimSpace(message.SessionID); session != "" {
		attrs["sessionId"] = session
	}
	attrs["productCount"] = strconv.Itoa(len(message.ProductIDs))

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish view tracking job: %w", err)
	}
	return id, nil
}
