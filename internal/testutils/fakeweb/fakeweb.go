// Package fakeweb provides an in-memory page that implements ports.Session.
//
// Elements are registered against the locator expressions that should find
// them, regardless of locator kind. Interaction primitives can be refused per
// node to simulate flaky markup, and every call is logged so tests can assert
// ordering. Behavior (pagination, modals, redirects) is scripted with
// OnActivate and On callbacks.
package fakeweb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/tendril/pkg/ports"
)

// Primitive names used by Refuse and the call log.
const (
	Scroll   = "scroll"
	Dispatch = "dispatch"
	Click    = "click"
	Hover    = "hover"
	Ancestor = "ancestor"
	Enter    = "enter"
	Input    = "input"
	Select   = "select"
)

// ErrRefused is returned by primitives a node was told to refuse.
var ErrRefused = errors.New("element refused interaction")

// Page is a simulated browser page.
type Page struct {
	mu       sync.Mutex
	url      string
	index    map[string][]*Node
	pierced  map[string][]*Node
	failures map[string]error
	routes   map[string]func(*Page)
	fallback func(*Page, string)
	navErr   map[string]error
	visits   []string
	log      []string
	paces    int
}

var _ ports.Session = (*Page)(nil)

// NewPage creates an empty page at url.
func NewPage(url string) *Page {
	return &Page{
		url:      url,
		index:    make(map[string][]*Node),
		pierced:  make(map[string][]*Node),
		failures: make(map[string]error),
		routes:   make(map[string]func(*Page)),
		navErr:   make(map[string]error),
	}
}

// Add appends nodes to the matches of expr.
func (p *Page) Add(expr string, nodes ...*Node) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range nodes {
		n.attach(p)
	}
	p.index[expr] = append(p.index[expr], nodes...)
	return p
}

// Set replaces the matches of expr.
func (p *Page) Set(expr string, nodes ...*Node) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range nodes {
		n.attach(p)
	}
	p.index[expr] = append([]*Node(nil), nodes...)
	return p
}

// Remove drops every match of expr.
func (p *Page) Remove(expr string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.index, expr)
	return p
}

// AddPierced registers nodes that only Pierce can reach.
func (p *Page) AddPierced(expr string, nodes ...*Node) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range nodes {
		n.attach(p)
	}
	p.pierced[expr] = append(p.pierced[expr], nodes...)
	return p
}

// FailQuery makes every query for expr return err.
func (p *Page) FailQuery(expr string, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[expr] = err
	return p
}

// On registers a handler run after navigating to exactly url.
func (p *Page) On(url string, fn func(*Page)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[url] = fn
	return p
}

// OnAny registers a handler run after navigating to a url without its own handler.
func (p *Page) OnAny(fn func(*Page, string)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = fn
	return p
}

// FailNavigation makes navigating to url fail with err.
func (p *Page) FailNavigation(url string, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navErr[url] = err
	return p
}

// SetURL changes the location without running handlers, like a redirect.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// Visits returns every url passed to Navigate.
func (p *Page) Visits() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visits...)
}

// Log returns the interaction log as "node:primitive" entries.
func (p *Page) Log() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.log...)
}

// Paces returns how many pacing delays were requested.
func (p *Page) Paces() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paces
}

func (p *Page) record(entry string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, entry)
}

// Query implements ports.Scope.
func (p *Page) Query(ctx context.Context, loc ports.Locator) ([]ports.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failures[loc.Expr]; err != nil {
		return nil, err
	}
	return elements(p.index[loc.Expr]), nil
}

// Pierce implements ports.Session.
func (p *Page) Pierce(ctx context.Context, loc ports.Locator) ([]ports.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return elements(append(p.index[loc.Expr], p.pierced[loc.Expr]...)), nil
}

// CurrentURL implements ports.Session.
func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

// Navigate implements ports.Session.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.visits = append(p.visits, url)
	if err := p.navErr[url]; err != nil {
		p.mu.Unlock()
		return err
	}
	p.url = url
	handler, fallback := p.routes[url], p.fallback
	p.mu.Unlock()

	switch {
	case handler != nil:
		handler(p)
	case fallback != nil:
		fallback(p, url)
	}
	return nil
}

// Pace implements ports.Session without sleeping.
func (p *Page) Pace(ctx context.Context, min, max time.Duration) error {
	if min > max {
		return fmt.Errorf("invalid pacing range %s..%s", min, max)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paces++
	return ctx.Err()
}

func elements(nodes []*Node) []ports.Element {
	out := make([]ports.Element, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out
}
