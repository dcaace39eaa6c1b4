package query

import (
	"fmt"
	"strings"
)

// Model describes a generation model offered to users.
type Model struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Capabilities  []string `json:"capabilities"`
	ContextWindow int      `json:"context_window"`
	Cost          string   `json:"cost"`
	IsDefault     bool     `json:"is_default"`
	Available     bool     `json:"available"`
}

// Models offered by default.
var defaultModels = []Model{
	{
		ID:            "o4-mini",
		Name:          "o4-mini (Not Yet Available)",
		Description:   "Compact high-performance model with strong reasoning capabilities.",
		Capabilities:  []string{"Efficient reasoning", "Advanced document understanding", "Mathematical equation support"},
		ContextWindow: 64000,
		Cost:          "Low",
	},
	{
		ID:            "o3-mini",
		Name:          "o3-mini",
		Description:   "Compact high-reasoning model for efficient document processing.",
		Capabilities:  []string{"Efficient reasoning", "Fast document processing", "Good for complex tasks"},
		ContextWindow: 16000,
		Cost:          "Very Low",
		IsDefault:     true,
		Available:     true,
	},
}

// Catalog is an ordered set of models with one default.
type Catalog struct {
	models []Model
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	return NewCatalog(defaultModels)
}

// NewCatalog creates a catalog from models, in order.
func NewCatalog(models []Model) *Catalog {
	c := &Catalog{models: make([]Model, len(models))}
	for i, m := range models {
		m.Capabilities = append([]string(nil), m.Capabilities...)
		c.models[i] = m
	}
	return c
}

// Models returns a copy of every model.
func (c *Catalog) Models() []Model {
	out := make([]Model, len(c.models))
	copy(out, c.models)
	return out
}

// Default returns the model marked default, else the first available
// model, else the first model.
func (c *Catalog) Default() Model {
	for _, m := range c.models {
		if m.IsDefault {
			return m
		}
	}
	for _, m := range c.models {
		if m.Available {
			return m
		}
	}
	if len(c.models) > 0 {
		return c.models[0]
	}
	return Model{}
}

// Get looks up a model by id.
func (c *Catalog) Get(id string) (Model, bool) {
	for _, m := range c.models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// IsValid reports whether id names an available model.
func (c *Catalog) IsValid(id string) bool {
	m, ok := c.Get(id)
	return ok && m.Available
}

// Resolve returns id when valid and the default model's id otherwise.
func (c *Catalog) Resolve(id string) string {
	if c.IsValid(id) {
		return id
	}
	return c.Default().ID
}

// SetDefault makes id the default model.
func (c *Catalog) SetDefault(id string) error {
	if !c.IsValid(id) {
		return fmt.Errorf("model %q is not available", id)
	}
	for i := range c.models {
		c.models[i].IsDefault = c.models[i].ID == id
	}
	return nil
}

// RunOptions returns the model and reasoning effort to request for id.
// gpt-4o-mini leaves the model unset so the assistant's own configuration
// applies; o3 models get medium reasoning effort.
func RunOptions(id string) (model, reasoningEffort string) {
	if id != "gpt-4o-mini" {
		model = id
	}
	if strings.HasPrefix(id, "o3") {
		reasoningEffort = "medium"
	}
	return model, reasoningEffort
}
