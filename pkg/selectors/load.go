package selectors

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/resolve"
	"gopkg.in/yaml.v3"
)

// override is the YAML shape of one selector. Required is a pointer so a
// file may swap strategies without restating the requirement.
type override struct {
	Required   *bool              `yaml:"required"`
	Strategies []resolve.Strategy `yaml:"strategies"`
}

// Override replaces selectors named in the YAML document. Unknown names and
// malformed strategies are rejected; the catalog is left untouched on error.
func (c *Catalog) Override(data []byte) error {
	var doc map[string]override
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse selector overrides: %w", err)
	}

	idx := c.byName()
	var errs []error
	for name, o := range doc {
		if _, ok := idx[name]; !ok {
			errs = append(errs, fmt.Errorf("unknown selector %q", name))
			continue
		}
		if len(o.Strategies) == 0 {
			errs = append(errs, fmt.Errorf("selector %q: no strategies", name))
		}
		for i, st := range o.Strategies {
			if st.Kind != ports.CSS && st.Kind != ports.XPath {
				errs = append(errs, fmt.Errorf("selector %q strategy %d: unknown kind %q", name, i, st.Kind))
			}
			if st.Expr == "" {
				errs = append(errs, fmt.Errorf("selector %q strategy %d: empty expression", name, i))
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for name, o := range doc {
		sel := idx[name]
		sel.Strategies = o.Strategies
		if o.Required != nil {
			sel.Required = *o.Required
		}
	}
	return nil
}

// Load returns the default catalog with overrides from path applied.
// An empty path yields the defaults.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selector overrides: %w", err)
	}
	if err := c.Override(data); err != nil {
		return nil, err
	}
	return c, nil
}
