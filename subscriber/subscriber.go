package subscriber

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"cloud.google.com/go/pubsub"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/zanwyyy/contractsync/app"
	"github.com/zanwyyy/contractsync/config"
	"github.com/zanwyyy/contractsync/events"
	"github.com/zanwyyy/contractsync/helper"
	"github.com/zanwyyy/contractsync/provider"
)

// ErrMalformed marks messages that can never be processed. They are acked.
var ErrMalformed = errors.New("malformed message")

// Opener builds a provider from configuration. provider.Open in production.
type Opener func(config.Provider) (provider.Provider, io.Closer, error)

type Handler struct {
	app       *app.App
	open      Opener
	base      config.Provider
	simulated provider.Provider
	log       zerolog.Logger

	mu     sync.Mutex
	closer io.Closer
}

type Option func(*Handler)

// WithSimulated reuses sim whenever a memory provider is requested, so the
// simulated chain keeps its state across switches.
func WithSimulated(sim provider.Provider) Option {
	return func(h *Handler) { h.simulated = sim }
}

func WithOpener(open Opener) Option {
	return func(h *Handler) { h.open = open }
}

// NewHandler returns a handler driving a. base supplies defaults for
// provider.changed events that omit fields.
func NewHandler(a *app.App, base config.Provider, log zerolog.Logger, opts ...Option) *Handler {
	h := &Handler{
		app:  a,
		open: provider.Open,
		base: base,
		log:  log.With().Str("component", "subscriber").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle dispatches one message by its type attribute.
func (h *Handler) Handle(ctx context.Context, msgType string, data []byte) error {
	switch msgType {
	case events.TopicContractAdded:
		var req events.ContractAdded
		if err := decode(data, &req); err != nil {
			return err
		}
		code, err := hex.DecodeString(req.BytecodeHex)
		if err != nil || len(code) == 0 {
			return fmt.Errorf("%w: bytecode_hex %q", ErrMalformed, req.BytecodeHex)
		}
		_, err = h.app.AddContract(ctx, req.Name, req.Artifact, code)
		if errors.Is(err, app.ErrDuplicateName) {
			// Redelivery after a failed first sync lands here.
			h.log.Warn().Str("contract", req.Name).Msg("contract already tracked, refreshing")
			return h.app.NotifyContractChanged(ctx, req.Name)
		}
		return err

	case events.TopicContractChanged:
		var req events.ContractChanged
		if err := decode(data, &req); err != nil {
			return err
		}
		if req.Name == "" {
			return fmt.Errorf("%w: empty contract name", ErrMalformed)
		}
		return h.app.NotifyContractChanged(ctx, req.Name)

	case events.TopicProviderChanged:
		var req events.ProviderChanged
		if err := decode(data, &req); err != nil {
			return err
		}
		return h.switchProvider(ctx, req)

	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, msgType)
	}
}

// switchProvider runs one switch at a time: open, swap, refresh and closing
// the previous backend all happen under h.mu.
func (h *Handler) switchProvider(ctx context.Context, req events.ProviderChanged) error {
	cfg := withEndpoint(h.base, req.Kind, req.Endpoint)

	h.mu.Lock()
	defer h.mu.Unlock()

	var (
		p      provider.Provider
		closer io.Closer
		err    error
	)
	if cfg.Kind == config.KindMemory && h.simulated != nil {
		p = h.simulated
	} else {
		p, closer, err = h.open(cfg)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}

	prev := h.closer
	h.closer = closer

	h.log.Info().
		Str("kind", cfg.Kind).
		Str("endpoint", helper.RedactURL(req.Endpoint)).
		Msg("switching provider")
	err = h.app.SwitchProvider(ctx, p)

	if prev != nil {
		if cerr := prev.Close(); cerr != nil {
			h.log.Warn().Err(cerr).Msg("closing previous provider")
		}
	}
	return err
}

// Close releases the provider opened by the last switch, if any.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closer == nil {
		return nil
	}
	err := h.closer.Close()
	h.closer = nil
	return err
}

func withEndpoint(base config.Provider, kind, endpoint string) config.Provider {
	cfg := base
	if kind != "" {
		cfg.Kind = kind
	}
	if endpoint == "" {
		return cfg
	}
	switch cfg.Kind {
	case config.KindBadger:
		cfg.BadgerPath = endpoint
	case config.KindRedis:
		cfg.RedisAddr = endpoint
	case config.KindEsplora:
		cfg.EsploraURL = endpoint
	}
	return cfg
}

func decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}

// Receive pulls from sub until ctx is done. Malformed messages are acked and
// dropped; failed refreshes are nacked for redelivery.
func Receive(ctx context.Context, sub *pubsub.Subscription, h *Handler) error {
	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		msgType := msg.Attributes["type"]
		err := h.Handle(ctx, msgType, msg.Data)

		switch {
		case err == nil:
			msg.Ack()
		case errors.Is(err, ErrMalformed):
			h.log.Error().Err(err).Str("id", msg.ID).Str("type", msgType).Msg("dropping message")
			msg.Ack()
		default:
			h.log.Warn().Err(err).Str("id", msg.ID).Str("type", msgType).Msg("will retry")
			msg.Nack()
		}
	})
}
