// Package lab implements the conversation engine: a preset-driven
// multi-agent "lab" session in which model-backed participants take turns
// discussing the user's topic, with periodic turn handoffs to the human.
//
// The package exposes the engine through the blocking Producer contract:
// each producer computes one event at a time, blocking inside the model
// call, and is meant to be driven from a bridge worker goroutine.
package lab

import (
	"context"
	"fmt"

	"github.com/Alexeyisme/agentrylab-telegram-bot/engine"
	"github.com/Alexeyisme/agentrylab-telegram-bot/internal/util"
	"github.com/Alexeyisme/agentrylab-telegram-bot/logging"
	"github.com/Alexeyisme/agentrylab-telegram-bot/model"
	"github.com/Alexeyisme/agentrylab-telegram-bot/preset"
)

// DefaultModelKey selects the model used by participants that do not name a
// provider.
const DefaultModelKey = "default"

// Options configures a Lab instance.
type Options struct {
	// Models maps provider names (as referenced by preset participants) to
	// model implementations. The DefaultModelKey entry backs participants
	// with no provider set.
	Models map[string]model.Model

	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
}

// Lab materializes blocking producers from presets. It implements
// engine.Engine.
type Lab struct {
	catalog *preset.Catalog
	models  map[string]model.Model
	logger  logging.Logger
}

// New constructs a Lab over a preset catalog with optional overrides.
func New(catalog *preset.Catalog, optFns ...func(o *Options)) *Lab {
	opts := Options{
		Models: map[string]model.Model{},
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Lab{catalog: catalog, models: opts.Models, logger: opts.Logger}
}

// CreateProducer resolves the preset, binds every participant to a model and
// renders its prompt for the topic, then returns a producer positioned
// before the first round. All resolution failures happen here, not
// mid-stream.
func (l *Lab) CreateProducer(ctx context.Context, presetID, topic string, rounds int) (engine.Producer, error) {
	pr, err := l.catalog.Get(presetID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve preset: %w", err)
	}
	if rounds <= 0 || rounds > pr.MaxRounds {
		rounds = pr.MaxRounds
	}

	parts := make([]boundParticipant, 0, len(pr.Participants))
	for _, p := range pr.Participants {
		m, err := l.modelFor(p.Provider)
		if err != nil {
			return nil, fmt.Errorf("participant %s: %w", p.ID, err)
		}
		prompt, err := util.RenderTemplate(p.Prompt, map[string]any{"Topic": topic})
		if err != nil {
			return nil, fmt.Errorf("participant %s: failed to render prompt: %w", p.ID, err)
		}
		name := p.DisplayName
		if name == "" {
			name = p.ID
		}
		parts = append(parts, boundParticipant{
			id:     p.ID,
			role:   p.Role,
			name:   name,
			prompt: prompt,
			model:  m,
		})
	}

	l.logger.Debug("lab built producer preset=%s rounds=%d participants=%d", presetID, rounds, len(parts))
	return newProducer(ctx, topic, rounds, pr.UserTurnEvery, parts), nil
}

func (l *Lab) modelFor(provider string) (model.Model, error) {
	if provider == "" {
		provider = DefaultModelKey
	}
	m, ok := l.models[provider]
	if !ok {
		return nil, fmt.Errorf("no model configured for provider %q", provider)
	}
	return m, nil
}
