package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ChangeEvent announces a committed primary store write. Consumers use it to
// re-index the row; until they do, index reads may not reflect the write.
type ChangeEvent struct {
	Table      string            `json:"table"`
	Key        map[string]string `json:"key"`
	Fields     []string          `json:"fields,omitempty"`
	InsertOnly bool              `json:"insert_only"`
	TTLSeconds int               `json:"ttl_seconds,omitempty"`
	WrittenAt  time.Time         `json:"written_at"`
	// StalenessBoundMs is the advertised upper bound, in milliseconds, on how
	// long the index may lag this write.
	StalenessBoundMs int64 `json:"staleness_bound_ms"`
}

// ChangeNotifier publishes change events after store writes.
type ChangeNotifier interface {
	NotifyChange(ctx context.Context, ev ChangeEvent) error
}

// PubSubNotifier publishes change events as JSON messages on a topic.
type PubSubNotifier struct {
	publisher Publisher
	topic     string
	bound     time.Duration
}

// NewChangeNotifier creates a notifier that publishes to topic and stamps
// every event with bound.
func NewChangeNotifier(publisher Publisher, topic string, bound time.Duration) *PubSubNotifier {
	return &PubSubNotifier{publisher: publisher, topic: topic, bound: bound}
}

func (n *PubSubNotifier) NotifyChange(ctx context.Context, ev ChangeEvent) error {
	ev.StalenessBoundMs = n.bound.Milliseconds()
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}
	if _, err := n.publisher.Publish(ctx, n.topic, payload); err != nil {
		return err
	}
	return nil
}

// NopNotifier drops every event. It is used when no change topic is
// configured and the indexing pipeline only polls the store.
type NopNotifier struct{}

func (NopNotifier) NotifyChange(context.Context, ChangeEvent) error { return nil }
