package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is the envelope published on the bus. The external container
// orchestrator subscribes to the sandbox channel and reports observed status
// changes back through the registry's transition endpoint.
type Event struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type SandboxEvent struct {
	SandboxID string `json:"sandbox_id"`
	UserID    string `json:"user_id"`
	Slug      string `json:"slug"`
	TierID    string `json:"tier_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

type QuotaEvent struct {
	UserID string `json:"user_id"`
	Check  string `json:"check"`
	Reason string `json:"reason,omitempty"`
}

const (
	ChannelSandbox = "codehaven:events:sandbox"
	ChannelQuota   = "codehaven:events:quota"
)

const (
	EventSandboxCreated       = "sandbox_created"
	EventSandboxStartRequest  = "sandbox_start_requested"
	EventSandboxStopRequest   = "sandbox_stop_requested"
	EventSandboxStatusChanged = "sandbox_status_changed"
	EventSandboxDeleted       = "sandbox_deleted"
	EventAdmissionDenied      = "admission_denied"
)

type Bus struct {
	client redis.UniversalClient
}

func NewBus(client redis.UniversalClient) *Bus {
	return &Bus{client: client}
}

func NewEvent(eventType string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:      eventType,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}, nil
}

func (b *Bus) Publish(ctx context.Context, channel string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *Bus) Subscribe(ctx context.Context, channels ...string) <-chan *Event {
	sub := b.client.Subscribe(ctx, channels...)
	ch := make(chan *Event, 100)

	go func() {
		defer close(ch)
		for msg := range sub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			ch <- &event
		}
	}()

	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	return ch
}
