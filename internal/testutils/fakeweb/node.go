package fakeweb

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/tendril/pkg/ports"
)

// Node is a simulated element. The zero configuration is visible, enabled,
// and accepts every primitive.
type Node struct {
	mu          sync.Mutex
	name        string
	text        string
	attrs       map[string]string
	hidden      bool
	disabled    bool
	children    map[string][]*Node
	refused     map[string]bool
	ancestor    *Node
	options     []string
	onActivate  func()
	value       string
	activations int
	page        *Page
}

var _ ports.Element = (*Node)(nil)

// NewNode creates a node named for the call log.
func NewNode(name string) *Node {
	return &Node{
		name:     name,
		attrs:    make(map[string]string),
		children: make(map[string][]*Node),
		refused:  make(map[string]bool),
	}
}

// WithText sets the rendered text.
func (n *Node) WithText(text string) *Node {
	n.text = text
	return n
}

// WithAttr sets an attribute.
func (n *Node) WithAttr(name, value string) *Node {
	n.attrs[name] = value
	return n
}

// Hide marks the node invisible.
func (n *Node) Hide() *Node {
	n.hidden = true
	return n
}

// Disable marks the node disabled.
func (n *Node) Disable() *Node {
	n.disabled = true
	return n
}

// Enable clears the disabled flag.
func (n *Node) Enable() *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disabled = false
	return n
}

// Child registers nodes found by querying expr inside n.
func (n *Node) Child(expr string, nodes ...*Node) *Node {
	for _, c := range nodes {
		if n.page != nil {
			c.attach(n.page)
		}
	}
	n.children[expr] = append(n.children[expr], nodes...)
	return n
}

// Refuse makes the listed primitives fail.
func (n *Node) Refuse(primitives ...string) *Node {
	for _, p := range primitives {
		n.refused[p] = true
	}
	return n
}

// WithAncestor sets the node returned by ActionableAncestor.
func (n *Node) WithAncestor(a *Node) *Node {
	n.ancestor = a
	if n.page != nil {
		a.attach(n.page)
	}
	return n
}

// WithOptions restricts Select to the given option texts.
func (n *Node) WithOptions(options ...string) *Node {
	n.options = options
	return n
}

// OnActivate runs fn every time the node is successfully activated.
func (n *Node) OnActivate(fn func()) *Node {
	n.onActivate = fn
	return n
}

// Value returns the last text written by Input or Select.
func (n *Node) Value() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.value
}

// Activations counts successful activations.
func (n *Node) Activations() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.activations
}

func (n *Node) attach(p *Page) {
	n.page = p
	for _, kids := range n.children {
		for _, c := range kids {
			c.attach(p)
		}
	}
	if n.ancestor != nil {
		n.ancestor.attach(p)
	}
}

func (n *Node) use(primitive string) error {
	if n.page != nil {
		n.page.record(n.name + ":" + primitive)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.refused[primitive] {
		return fmt.Errorf("%s %s: %w", n.name, primitive, ErrRefused)
	}
	return nil
}

func (n *Node) activate(primitive string) error {
	if err := n.use(primitive); err != nil {
		return err
	}
	n.mu.Lock()
	n.activations++
	fn := n.onActivate
	n.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// Query implements ports.Scope.
func (n *Node) Query(ctx context.Context, loc ports.Locator) ([]ports.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return elements(n.children[loc.Expr]), nil
}

func (n *Node) Text(ctx context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.text, nil
}

func (n *Node) Attribute(ctx context.Context, name string) (string, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.attrs[name]
	return v, ok, nil
}

func (n *Node) Visible(ctx context.Context) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.hidden, nil
}

func (n *Node) Enabled(ctx context.Context) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.disabled, nil
}

func (n *Node) ScrollIntoView(ctx context.Context) error { return n.use(Scroll) }

func (n *Node) Dispatch(ctx context.Context) error { return n.activate(Dispatch) }

func (n *Node) Click(ctx context.Context) error { return n.activate(Click) }

func (n *Node) HoverClick(ctx context.Context) error { return n.activate(Hover) }

func (n *Node) PressEnter(ctx context.Context) error { return n.activate(Enter) }

func (n *Node) ActionableAncestor(ctx context.Context) (ports.Element, error) {
	if err := n.use(Ancestor); err != nil {
		return nil, err
	}
	if n.ancestor == nil {
		return nil, fmt.Errorf("%s has no actionable ancestor", n.name)
	}
	return n.ancestor, nil
}

func (n *Node) Input(ctx context.Context, text string) error {
	if err := n.use(Input); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.value = text
	return nil
}

func (n *Node) Select(ctx context.Context, text string) error {
	if err := n.use(Select); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.options) > 0 && !slices.Contains(n.options, text) {
		return fmt.Errorf("%s has no option %q", n.name, text)
	}
	n.value = text
	return nil
}
