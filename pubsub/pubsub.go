package pubsub2

import (
	"context"
	"fmt"
	"os"
	"sync"

	"cloud.google.com/go/pubsub"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/zanwyyy/contractsync/events"
	"github.com/zanwyyy/contractsync/model"
)

type PubSubClient struct {
	Client *pubsub.Client
	log    zerolog.Logger

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubClient connects to Cloud Pub/Sub, or to the emulator when
// PUBSUB_EMULATOR_HOST is set (no credentials needed then).
func NewPubSubClient(ctx context.Context, projectID string, log zerolog.Logger) (*PubSubClient, error) {
	log = log.With().Str("component", "pubsub").Logger()

	if emulatorHost := os.Getenv("PUBSUB_EMULATOR_HOST"); emulatorHost != "" {
		log.Info().Str("host", emulatorHost).Msg("using pubsub emulator")

		c, err := pubsub.NewClient(ctx, projectID,
			option.WithoutAuthentication(),
			option.WithEndpoint(emulatorHost),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create emulator client: %w", err)
		}
		return &PubSubClient{Client: c, log: log, topics: make(map[string]*pubsub.Topic)}, nil
	}

	log.Info().Str("project", projectID).Msg("using Google Cloud Pub/Sub")

	c, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud pubsub client: %w", err)
	}
	return &PubSubClient{Client: c, log: log, topics: make(map[string]*pubsub.Topic)}, nil
}

// Close flushes pending publishes and closes the connection.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for _, t := range p.topics {
		t.Stop()
	}
	p.topics = nil
	p.mu.Unlock()
	return p.Client.Close()
}

// topic returns the cached handle for name, so its publish bundler is
// started once and stopped on Close.
func (p *PubSubClient) topic(name string) *pubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[name]; ok {
		return t
	}
	t := p.Client.Topic(name)
	if p.topics != nil {
		p.topics[name] = t
	}
	return t
}

// NewMessage encodes data as a JSON message tagged with its type.
func NewMessage(msgType string, data interface{}) (*pubsub.Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &pubsub.Message{
		Data:       raw,
		Attributes: map[string]string{"type": msgType},
	}, nil
}

// PublishJSON publishes data to topicName and waits for the server id.
func (p *PubSubClient) PublishJSON(ctx context.Context, topicName string, data interface{}) error {
	msg, err := NewMessage(topicName, data)
	if err != nil {
		return err
	}

	res := p.topic(topicName).Publish(ctx, msg)

	id, err := res.Get(ctx)
	if err != nil {
		return fmt.Errorf("publish %s: %w", topicName, err)
	}

	p.log.Debug().Str("id", id).Str("topic", topicName).Msg("published")
	return nil
}

func (p *PubSubClient) PublishContractChanged(ctx context.Context, msg events.ContractChanged) error {
	return p.PublishJSON(ctx, events.TopicContractChanged, msg)
}

func (p *PubSubClient) PublishProviderChanged(ctx context.Context, msg events.ProviderChanged) error {
	return p.PublishJSON(ctx, events.TopicProviderChanged, msg)
}

// SnapshotPublisher announces installed registry snapshots on one topic.
// A single goroutine publishes them in increasing version order. Snapshots
// that arrive while a publish is in flight are coalesced into the newest one,
// since each carries the full state.
type SnapshotPublisher struct {
	ps    *PubSubClient
	topic string
	log   zerolog.Logger

	mu      sync.Mutex
	pending *model.Registry
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

// NewSnapshotPublisher starts the publishing goroutine.
func (p *PubSubClient) NewSnapshotPublisher(ctx context.Context, topic string) *SnapshotPublisher {
	s := &SnapshotPublisher{
		ps:    p,
		topic: topic,
		log:   p.log.With().Str("topic", topic).Logger(),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// Listener is the registry listener feeding the publisher. It never blocks
// on the network.
func (s *SnapshotPublisher) Listener(r model.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.pending == nil || r.Version > s.pending.Version {
		s.pending = &r
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Close stops accepting snapshots and waits until the newest pending one is sent.
func (s *SnapshotPublisher) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.wake)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *SnapshotPublisher) run(ctx context.Context) {
	defer close(s.done)

	var last uint64
	for {
		_, open := <-s.wake

		s.mu.Lock()
		r := s.pending
		s.pending = nil
		s.mu.Unlock()

		if r != nil && r.Version > last {
			msg := events.RegistryUpdated{Version: r.Version, Contracts: r.Contracts}
			if err := s.ps.PublishJSON(ctx, s.topic, msg); err != nil {
				s.log.Warn().Err(err).Uint64("version", r.Version).Msg("registry update not published")
			} else {
				last = r.Version
			}
		}
		if !open {
			return
		}
	}
}
