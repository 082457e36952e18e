package messaging

import (
	"time"

	"github.com/boristopalov/gridhunt/pkg/core"
)

// Message is an envelope routed by the broker
type Message struct {
	From      string    // Subscriber ID of sender
	To        []string  // Subscriber IDs of recipients (empty means broadcast)
	Content   any       // Payload, usually a StepEvent
	Timestamp time.Time // When the message was sent
}

// StepEvent describes one environment transition, or a reset when Step is 0
type StepEvent struct {
	EpisodeID string           `json:"episode_id"`
	Episode   int              `json:"episode"`
	Step      int              `json:"step"`
	Action    string           `json:"action,omitempty"`
	Reward    float64          `json:"reward"`
	Done      bool             `json:"done"`
	Info      core.Info        `json:"info"`
	State     core.RenderState `json:"state"`
}

// Broker handles message routing between the evaluator and its sinks
type Broker interface {
	// Publish sends a message to specified recipients
	Publish(msg Message) error
	// Subscribe registers a receiver channel under an ID
	Subscribe(id string, ch chan<- Message) error
	// Unsubscribe removes a subscription
	Unsubscribe(id string) error
}
