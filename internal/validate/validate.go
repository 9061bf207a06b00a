// Package validate implements the structural checks applied to a Node or
// Relationship before any side effect.
package validate

import (
	"fmt"

	"github.com/dreamware/graphdb/internal/model"
)

// Config declares which relationship types forbid self-loops. Self-loops
// are allowed by default; only types named here are rejected when
// From == To.
type Config struct {
	ForbidSelfLoops map[string]bool
}

// Validator applies the structural checks a Node or Relationship must
// pass before any side effect.
type Validator struct {
	cfg Config
}

// New builds a Validator from cfg.
func New(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Node validates a Node before creation: a non-empty type, an id (if
// set) matching model.IDPattern, and serializable property values.
func (v *Validator) Node(n *model.Node) error {
	if n.Type == "" {
		return fmt.Errorf("type must not be empty")
	}
	if n.ID != "" && !model.IDPattern.MatchString(n.ID) {
		return fmt.Errorf("invalid id %q: must match %s", n.ID, model.IDPattern.String())
	}
	return validateProperties(n.Properties)
}

// Relationship validates a Relationship before creation.
func (v *Validator) Relationship(r *model.Relationship) error {
	if r.Type == "" {
		return fmt.Errorf("type must not be empty")
	}
	if r.From == "" || r.To == "" {
		return fmt.Errorf("relationship must declare both from and to")
	}
	if r.From == r.To && v.cfg.ForbidSelfLoops[r.Type] {
		return fmt.Errorf("self-loops are forbidden for relationship type %q", r.Type)
	}
	return validateProperties(r.Properties)
}

// validateProperties rejects a property bag containing a value outside
// the legal scalar/list/nested-map shape.
func validateProperties(props model.Properties) error {
	for k, v := range props {
		if err := validateValue(v); err != nil {
			return fmt.Errorf("property %q: %w", k, err)
		}
	}
	return nil
}

func validateValue(v any) error {
	switch val := v.(type) {
	case nil, bool, string, float64, int, int64:
		return nil
	case []any:
		for i, elem := range val {
			if err := validateValue(elem); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		return nil
	case map[string]any:
		for k, elem := range val {
			if err := validateValue(elem); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
		}
		return nil
	case model.Properties:
		return validateProperties(val)
	default:
		return fmt.Errorf("unsupported property value of type %T", v)
	}
}
