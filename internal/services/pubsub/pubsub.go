// Package pubsub provides a simple publish-subscribe mechanism for pushing
// state changes to connected control surfaces.
package pubsub

import (
	"strconv"
	"sync"
)

// Topic represents a subscription topic.
type Topic string

const (
	TopicPlayerState Topic = "PLAYER_STATE_UPDATED"
	TopicProject     Topic = "PROJECT_UPDATED"
	TopicOutputs     Topic = "OUTPUTS_UPDATED"
	TopicBrightness  Topic = "BRIGHTNESS_UPDATED"
)

// AllTopics lists every topic a control surface can follow.
var AllTopics = []Topic{TopicPlayerState, TopicProject, TopicOutputs, TopicBrightness}

// Subscriber represents a subscription channel.
type Subscriber struct {
	ID      string
	Topic   Topic
	Channel chan interface{}
}

// PubSub manages subscriptions and message distribution.
type PubSub struct {
	mu          sync.RWMutex
	subscribers map[Topic][]*Subscriber
	nextID      int
}

// New creates a new PubSub instance.
func New() *PubSub {
	return &PubSub{
		subscribers: make(map[Topic][]*Subscriber),
	}
}

// Subscribe creates a new subscription for a topic.
func (ps *PubSub) Subscribe(topic Topic, bufferSize int) *Subscriber {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.nextID++
	sub := &Subscriber{
		ID:      strconv.Itoa(ps.nextID),
		Topic:   topic,
		Channel: make(chan interface{}, bufferSize),
	}

	ps.subscribers[topic] = append(ps.subscribers[topic], sub)
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (ps *PubSub) Unsubscribe(sub *Subscriber) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	subs := ps.subscribers[sub.Topic]
	for i, s := range subs {
		if s.ID == sub.ID {
			close(s.Channel)
			ps.subscribers[sub.Topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish sends a message to all subscribers of a topic.
// Slow subscribers miss messages rather than block the publisher.
func (ps *PubSub) Publish(topic Topic, message interface{}) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, sub := range ps.subscribers[topic] {
		select {
		case sub.Channel <- message:
		default:
		}
	}
}
