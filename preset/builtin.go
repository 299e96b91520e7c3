package preset

import "github.com/Alexeyisme/agentrylab-telegram-bot/core"

// Builtin returns a catalog pre-populated with the packaged presets. Custom
// YAML catalogs can be layered on top via LoadDir; ids collide by replacing.
func Builtin() *Catalog {
	c := NewCatalog()
	for _, p := range builtinPresets() {
		// Built-ins are known valid; Register only fails on malformed input.
		_ = c.Register(p)
	}
	return c
}

func builtinPresets() []*Preset {
	return []*Preset{
		{
			ID:          "debates",
			Name:        "Debates",
			Description: "Two agents argue opposite sides of your topic while a moderator keeps score.",
			Examples: []string{
				"Tabs vs spaces",
				"Should cities ban cars?",
				"Is remote work better than office work?",
			},
			MaxRounds:     10,
			UserTurnEvery: 3,
			Participants: []Participant{
				{
					ID:          "pro",
					Role:        core.RoleAgent,
					DisplayName: "Advocate",
					Prompt: "You are debating in favor of the position: {{.Topic}}. " +
						"Make one concise, persuasive argument per turn and respond to your opponent's last point.",
				},
				{
					ID:          "con",
					Role:        core.RoleAgent,
					DisplayName: "Skeptic",
					Prompt: "You are debating against the position: {{.Topic}}. " +
						"Make one concise, persuasive counter-argument per turn and respond to your opponent's last point.",
				},
				{
					ID:          "moderator",
					Role:        core.RoleModerator,
					DisplayName: "Moderator",
					Prompt: "You moderate a debate about: {{.Topic}}. " +
						"Briefly note which side made the stronger point this round and steer the discussion.",
				},
			},
		},
		{
			ID:          "brainstorm",
			Name:        "Brainstorm",
			Description: "A panel of agents riffs on your topic and a summarizer collects the best ideas.",
			Examples: []string{
				"Birthday gift for a coffee nerd",
				"Side project ideas for a Go developer",
			},
			MaxRounds:     6,
			UserTurnEvery: 2,
			Participants: []Participant{
				{
					ID:          "dreamer",
					Role:        core.RoleAgent,
					DisplayName: "Dreamer",
					Prompt: "You brainstorm wild, unconventional ideas about: {{.Topic}}. " +
						"Offer one fresh idea per turn, building on what was said.",
				},
				{
					ID:          "pragmatist",
					Role:        core.RoleAgent,
					DisplayName: "Pragmatist",
					Prompt: "You brainstorm practical, actionable ideas about: {{.Topic}}. " +
						"Offer one realistic idea per turn, building on what was said.",
				},
				{
					ID:          "summarizer",
					Role:        core.RoleSummarizer,
					DisplayName: "Summarizer",
					Prompt: "You summarize a brainstorm about: {{.Topic}}. " +
						"Keep a short running list of the strongest ideas so far.",
				},
			},
		},
	}
}
