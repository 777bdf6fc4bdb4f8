// Package catalog describes the billable operations: their credit cost,
// category and minimum plan tier.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"devclip/internal/models"
)

// ErrUnknownOperation is returned by Lookup for names not in the catalog
var ErrUnknownOperation = errors.New("unknown operation")

// Category groups operations by how they are executed
type Category string

const (
	// CategoryLocal operations run in process
	CategoryLocal Category = "local"

	// CategoryAI operations call the completion provider
	CategoryAI Category = "ai"
)

// Operation names
const (
	OpJSON          = "json"
	OpYAML          = "yaml"
	OpSQL           = "sql"
	OpANSIStrip     = "ansi-strip"
	OpLogToMarkdown = "log-to-markdown"
	OpCode          = "code"
	OpExplain       = "explain"
	OpSummarize     = "summarize"
	OpRefactor      = "refactor"
)

// Definition is a catalog entry
type Definition struct {
	Name     string          `json:"name"`
	Cost     int64           `json:"cost"`
	Category Category        `json:"category"`
	MinTier  models.PlanTier `json:"min_tier,omitempty"`
}

// Catalog is an immutable set of definitions
type Catalog struct {
	defs map[string]Definition
}

// New builds a catalog. Names must be unique and costs positive.
func New(defs ...Definition) (*Catalog, error) {
	c := &Catalog{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if d.Name == "" {
			return nil, errors.New("operation name is required")
		}
		if _, dup := c.defs[d.Name]; dup {
			return nil, fmt.Errorf("duplicate operation %q", d.Name)
		}
		if d.Cost <= 0 {
			return nil, fmt.Errorf("operation %q: cost must be positive", d.Name)
		}
		if d.MinTier != "" && !d.MinTier.IsValid() {
			return nil, fmt.Errorf("operation %q: unknown tier %q", d.Name, d.MinTier)
		}
		c.defs[d.Name] = d
	}
	return c, nil
}

// Default returns the production catalog
func Default() *Catalog {
	c, err := New(
		Definition{Name: OpJSON, Cost: 1, Category: CategoryLocal},
		Definition{Name: OpYAML, Cost: 1, Category: CategoryLocal},
		Definition{Name: OpSQL, Cost: 1, Category: CategoryLocal},
		Definition{Name: OpANSIStrip, Cost: 1, Category: CategoryLocal},
		Definition{Name: OpLogToMarkdown, Cost: 1, Category: CategoryLocal},
		Definition{Name: OpCode, Cost: 1, Category: CategoryLocal},
		Definition{Name: OpExplain, Cost: 1, Category: CategoryAI},
		Definition{Name: OpSummarize, Cost: 2, Category: CategoryAI},
		Definition{Name: OpRefactor, Cost: 3, Category: CategoryAI, MinTier: models.TierPro},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the definition of an operation
func (c *Catalog) Lookup(name string) (Definition, error) {
	d, ok := c.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	return d, nil
}

// List returns all definitions ordered by category then name
func (c *Catalog) List() []Definition {
	out := make([]Definition, 0, len(c.defs))
	for _, d := range c.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category > out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// AllowedFor reports whether tier may run the operation
func (d Definition) AllowedFor(tier models.PlanTier) bool {
	return tier.AtLeast(d.MinTier)
}
