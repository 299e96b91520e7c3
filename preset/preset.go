// Package preset holds the catalog of conversation presets: named rosters of
// model-backed participants plus the round budget and user-turn cadence the
// lab engine runs them with. Presets are declared in YAML files or taken
// from the built-in catalog.
package preset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Alexeyisme/agentrylab-telegram-bot/core"
)

// Participant is one member of a preset's roster.
type Participant struct {
	ID          string `yaml:"id"`
	Role        string `yaml:"role"` // agent | moderator | summarizer
	DisplayName string `yaml:"display_name,omitempty"`
	// Provider selects the backing model by name from the engine's model
	// table; empty means the engine default.
	Provider string `yaml:"provider,omitempty"`
	// Prompt is a Go template rendered with the conversation topic.
	Prompt string `yaml:"prompt"`
}

// Preset describes one conversation type.
type Preset struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Examples    []string `yaml:"examples,omitempty"`
	MaxRounds   int      `yaml:"max_rounds"`
	// UserTurnEvery hands the turn to the human after every N rounds;
	// zero disables user turns.
	UserTurnEvery int           `yaml:"user_turn_every,omitempty"`
	Participants  []Participant `yaml:"participants"`
}

// Validate checks structural requirements before a preset is registered.
func (p *Preset) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("preset id is required")
	}
	if p.MaxRounds <= 0 {
		return fmt.Errorf("preset %s: max_rounds must be positive", p.ID)
	}
	if len(p.Participants) == 0 {
		return fmt.Errorf("preset %s: at least one participant is required", p.ID)
	}
	for i, part := range p.Participants {
		if part.ID == "" {
			return fmt.Errorf("preset %s: participant %d has no id", p.ID, i)
		}
		switch part.Role {
		case core.RoleAgent, core.RoleModerator, core.RoleSummarizer:
		case "":
			return fmt.Errorf("preset %s: participant %s has no role", p.ID, part.ID)
		default:
			return fmt.Errorf("preset %s: participant %s has unknown role %q", p.ID, part.ID, part.Role)
		}
	}
	return nil
}

// Catalog is a registry of presets, safe for concurrent access.
type Catalog struct {
	mu      sync.RWMutex
	presets map[string]*Preset
	order   []string
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{presets: make(map[string]*Preset)}
}

// Register validates and adds a preset, replacing any existing preset with
// the same id.
func (c *Catalog) Register(p *Preset) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.presets[p.ID]; !exists {
		c.order = append(c.order, p.ID)
	}
	c.presets[p.ID] = p
	return nil
}

// Get returns the preset with the given id.
func (c *Catalog) Get(id string) (*Preset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.presets[id]
	if !ok {
		return nil, fmt.Errorf("preset %s: %w", id, core.ErrNotFound)
	}
	return p, nil
}

// IDs returns the registered preset ids in registration order.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, len(c.order))
	copy(ids, c.order)
	return ids
}

// List returns the registered presets in registration order.
func (c *Catalog) List() []*Preset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res := make([]*Preset, 0, len(c.order))
	for _, id := range c.order {
		res = append(res, c.presets[id])
	}
	return res
}

// LoadFile parses a single YAML preset file into the catalog.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read preset file: %w", err)
	}
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to parse preset file %s: %w", path, err)
	}
	if p.ID == "" {
		// Fall back to the file name, debates.yaml -> debates.
		base := filepath.Base(path)
		p.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return c.Register(&p)
}

// LoadDir loads every *.yaml / *.yml file in the directory into the catalog.
func (c *Catalog) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read preset directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			if err := c.LoadFile(filepath.Join(dir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}
