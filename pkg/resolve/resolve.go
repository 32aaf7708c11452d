// Package resolve implements multi-strategy element lookup.
//
// A Selector carries several independent locator hypotheses for the same
// element, tried in declared order. Required selectors fail with a
// *domain.ResolutionFailure holding one diagnostic per strategy; optional
// selectors return nil without an error.
package resolve

import (
	"context"
	"fmt"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Strategy is a single locator hypothesis.
type Strategy struct {
	ports.Locator `yaml:",inline"`
	Description   string `yaml:"description"`
}

// CSS builds a CSS strategy.
func CSS(expr, description string) Strategy {
	return Strategy{Locator: ports.Locator{Kind: ports.CSS, Expr: expr}, Description: description}
}

// XPath builds an XPath strategy.
func XPath(expr, description string) Strategy {
	return Strategy{Locator: ports.Locator{Kind: ports.XPath, Expr: expr}, Description: description}
}

func (s Strategy) label() string {
	if s.Description != "" {
		return s.Description
	}
	return s.Locator.String()
}

// Selector is an ordered set of strategies for one logical element.
type Selector struct {
	Name       string     `yaml:"name"`
	Strategies []Strategy `yaml:"strategies"`
	Required   bool       `yaml:"required"`
}

// Required builds a required selector.
func Required(name string, strategies ...Strategy) Selector {
	return Selector{Name: name, Strategies: strategies, Required: true}
}

// Optional builds an optional selector.
func Optional(name string, strategies ...Strategy) Selector {
	return Selector{Name: name, Strategies: strategies}
}

// AsRequired returns a copy of s that fails when nothing matches.
func (s Selector) AsRequired() Selector {
	s.Required = true
	return s
}

// AsOptional returns a copy of s that returns nil when nothing matches.
func (s Selector) AsOptional() Selector {
	s.Required = false
	return s
}

// FindOne returns the first match of the first strategy that matches.
func (s Selector) FindOne(ctx context.Context, scope ports.Scope) (ports.Element, error) {
	return s.find(ctx, scope, func(els []ports.Element) (ports.Element, string) {
		return els[0], ""
	})
}

// FindUsable is FindOne restricted to elements that are visible and enabled.
func (s Selector) FindUsable(ctx context.Context, scope ports.Scope) (ports.Element, error) {
	return s.find(ctx, scope, func(els []ports.Element) (ports.Element, string) {
		for _, el := range els {
			if Usable(ctx, el) {
				return el, ""
			}
		}
		return nil, fmt.Sprintf("%d matches, none visible and enabled", len(els))
	})
}

// FindMany returns the matches of the first strategy yielding a non-empty list.
// Results of different strategies are never merged.
func (s Selector) FindMany(ctx context.Context, scope ports.Scope) ([]ports.Element, error) {
	attempts := make([]domain.Attempt, 0, len(s.Strategies))
	for _, st := range s.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		els, err := scope.Query(ctx, st.Locator)
		switch {
		case err != nil:
			attempts = append(attempts, domain.Attempt{Strategy: st.label(), Reason: err.Error()})
		case len(els) == 0:
			attempts = append(attempts, domain.Attempt{Strategy: st.label(), Reason: "no match"})
		default:
			return els, nil
		}
	}
	if s.Required {
		return nil, &domain.ResolutionFailure{Name: s.Name, Attempts: attempts}
	}
	return nil, nil
}

func (s Selector) find(ctx context.Context, scope ports.Scope, pick func([]ports.Element) (ports.Element, string)) (ports.Element, error) {
	attempts := make([]domain.Attempt, 0, len(s.Strategies))
	for _, st := range s.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		els, err := scope.Query(ctx, st.Locator)
		if err != nil {
			attempts = append(attempts, domain.Attempt{Strategy: st.label(), Reason: err.Error()})
			continue
		}
		if len(els) == 0 {
			attempts = append(attempts, domain.Attempt{Strategy: st.label(), Reason: "no match"})
			continue
		}
		el, reason := pick(els)
		if el != nil {
			return el, nil
		}
		attempts = append(attempts, domain.Attempt{Strategy: st.label(), Reason: reason})
	}
	if s.Required {
		return nil, &domain.ResolutionFailure{Name: s.Name, Attempts: attempts}
	}
	return nil, nil
}

// Usable reports whether el is visible and enabled. Read errors count as unusable.
func Usable(ctx context.Context, el ports.Element) bool {
	visible, err := el.Visible(ctx)
	if err != nil || !visible {
		return false
	}
	enabled, err := el.Enabled(ctx)
	return err == nil && enabled
}

// FindPierced is FindOne for elements behind shadow roots or frames that a
// normal query cannot reach. Each strategy is retried through sess.Pierce.
func (s Selector) FindPierced(ctx context.Context, sess ports.Session) (ports.Element, error) {
	attempts := make([]domain.Attempt, 0, len(s.Strategies))
	for _, st := range s.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		els, err := sess.Pierce(ctx, st.Locator)
		switch {
		case err != nil:
			attempts = append(attempts, domain.Attempt{Strategy: st.label() + " (pierced)", Reason: err.Error()})
		case len(els) == 0:
			attempts = append(attempts, domain.Attempt{Strategy: st.label() + " (pierced)", Reason: "no match"})
		default:
			return els[0], nil
		}
	}
	if s.Required {
		return nil, &domain.ResolutionFailure{Name: s.Name, Attempts: attempts}
	}
	return nil, nil
}
