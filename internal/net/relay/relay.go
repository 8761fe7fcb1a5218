// Package relay mirrors locally originated hub broadcasts through a Redis
// pub/sub channel so several server processes can share one set of viewers.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/proto"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/telemetry"
	"github.com/OEOTYAN/BedrockServerClientInterface/logging"
	"github.com/OEOTYAN/BedrockServerClientInterface/logging/network"
)

const (
	KindShape    = "shape"
	KindShapeAll = "shapeAll"
	KindEffect   = "effect"

	defaultChannel = "bsci"
	publishTimeout = 2 * time.Second

	metricPublished = "relay_published_total"
	metricReceived  = "relay_received_total"
	metricFailures  = "relay_failures_total"
)

// ErrNoClient is returned by Run when the relay was built without Redis.
var ErrNoClient = errors.New("relay: no redis client")

// Envelope is the frame published on the channel.
type Envelope struct {
	Origin string               `json:"origin"`
	Kind   string               `json:"kind"`
	Shape  *proto.ShapeMessage  `json:"shape,omitempty"`
	Effect *proto.EffectMessage `json:"effect,omitempty"`
}

// Local applies remote frames without mirroring them again.
type Local interface {
	DeliverShape(msg proto.ShapeMessage, all bool)
	DeliverEffect(msg proto.EffectMessage)
}

type Config struct {
	Addr    string
	Channel string
	// Origin identifies this process on the channel; empty picks a random id.
	Origin string
}

type Deps struct {
	// Client overrides the client built from Config.Addr.
	Client    *redis.Client
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
}

// Relay implements hub.Mirror.
type Relay struct {
	origin    string
	channel   string
	client    *redis.Client
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher

	dropped atomic.Uint64
}

func New(cfg Config, deps Deps) *Relay {
	channel := cfg.Channel
	if channel == "" {
		channel = defaultChannel
	}
	client := deps.Client
	if client == nil && cfg.Addr != "" {
		client = redis.NewClient(&redis.Options{Addr: cfg.Addr})
	}
	logger := deps.Logger
	if logger == nil {
		logger = telemetry.Discard
	}
	origin := cfg.Origin
	if origin == "" {
		origin = uuid.NewString()
	}
	return &Relay{
		origin:    origin,
		channel:   channel,
		client:    client,
		logger:    logger,
		metrics:   deps.Metrics,
		publisher: deps.Publisher,
	}
}

// Origin identifies frames published by this process.
func (r *Relay) Origin() string { return r.origin }

func (r *Relay) Channel() string { return r.channel }

// Ping checks that the Redis server answers.
func (r *Relay) Ping(ctx context.Context) error {
	if r.client == nil {
		return ErrNoClient
	}
	return r.client.Ping(ctx).Err()
}

// MirrorShape implements hub.Mirror.
func (r *Relay) MirrorShape(msg proto.ShapeMessage, all bool) {
	kind := KindShape
	if all {
		kind = KindShapeAll
	}
	r.publish(Envelope{Origin: r.origin, Kind: kind, Shape: &msg})
}

// MirrorEffect implements hub.Mirror.
func (r *Relay) MirrorEffect(msg proto.EffectMessage) {
	r.publish(Envelope{Origin: r.origin, Kind: KindEffect, Effect: &msg})
}

func (r *Relay) publish(env Envelope) {
	if r.client == nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		r.fail(fmt.Errorf("encode envelope: %w", err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.fail(err)
		return
	}
	r.add(metricPublished, 1)
}

func (r *Relay) fail(err error) {
	dropped := r.dropped.Add(1)
	r.add(metricFailures, 1)
	r.logger.Printf("relay %s: %v", r.channel, err)
	network.RelayFailed(context.Background(), r.publisher, 0, network.RelayFailedPayload{
		Channel: r.channel,
		Error:   err.Error(),
		Dropped: dropped,
	}, nil)
}

// Run subscribes to the channel and applies frames from other origins to
// local until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, local Local) error {
	if r.client == nil {
		return ErrNoClient
	}
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Printf("relay subscribed to %s as %s", r.channel, r.origin)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := r.Handle([]byte(msg.Payload), local); err != nil {
				r.logger.Printf("relay %s: discarding frame: %v", r.channel, err)
			}
		}
	}
}

// Handle decodes one payload and delivers it unless it came from this relay.
func (r *Relay) Handle(payload []byte, local Local) error {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	if env.Origin == r.origin {
		return nil
	}
	switch env.Kind {
	case KindShape, KindShapeAll:
		if env.Shape == nil {
			return fmt.Errorf("%s frame without shape", env.Kind)
		}
		local.DeliverShape(*env.Shape, env.Kind == KindShapeAll)
	case KindEffect:
		if env.Effect == nil {
			return errors.New("effect frame without effect")
		}
		local.DeliverEffect(*env.Effect)
	default:
		return fmt.Errorf("unknown kind %q", env.Kind)
	}
	r.add(metricReceived, 1)
	return nil
}

// Close releases the Redis client.
func (r *Relay) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *Relay) add(key string, delta uint64) {
	if r.metrics != nil {
		r.metrics.Add(key, delta)
	}
}
