package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/iliria/erp-backend/pkg/outbox/registry"
)

const sendTimeout = 15 * time.Second

type topicPublishers interface {
	Publisher(topic string) *gcppubsub.Publisher
}

// pubsubSink keeps one publisher per topic for the life of the process.
type pubsubSink struct {
	topics topicPublishers

	mu   sync.Mutex
	pubs map[string]*gcppubsub.Publisher
}

func newPubSubSink(topics topicPublishers) *pubsubSink {
	return &pubsubSink{topics: topics, pubs: map[string]*gcppubsub.Publisher{}}
}

func (s *pubsubSink) publisher(topic string) *gcppubsub.Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pubs[topic]; ok {
		return p
	}
	p := s.topics.Publisher(topic)
	if p != nil {
		s.pubs[topic] = p
	}
	return p
}

func (s *pubsubSink) Send(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub := s.publisher(topic)
	if pub == nil {
		return registry.Permanent(fmt.Errorf("no publisher for topic %q", topic))
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	_, err := pub.Publish(ctx, msg).Get(ctx)
	return err
}

// Stop flushes and releases every publisher.
func (s *pubsubSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, p := range s.pubs {
		p.Stop()
		delete(s.pubs, topic)
	}
}
