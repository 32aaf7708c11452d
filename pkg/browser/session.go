package browser

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/aretw0/tendril/pkg/ports"
)

// pierceJS collects matches of a CSS selector from the document and from
// every open shadow root below it.
const pierceJS = `(sel) => {
	const out = [];
	const walk = (root) => {
		root.querySelectorAll(sel).forEach((el) => out.push(el));
		root.querySelectorAll('*').forEach((el) => { if (el.shadowRoot) walk(el.shadowRoot); });
	};
	walk(document);
	return out;
}`

const (
	enabledJS  = `() => !this.disabled && this.getAttribute('aria-disabled') !== 'true'`
	dispatchJS = `() => this.click()`
	ancestorJS = `() => this.parentElement && this.parentElement.closest('button, a, [role="button"], [tabindex]:not([tabindex="-1"])')`
)

// Session is one browser page.
type Session struct {
	page       *rod.Page
	navTimeout time.Duration
}

var _ ports.Session = (*Session)(nil)

// Query returns every element on the page matching loc.
func (s *Session) Query(ctx context.Context, loc ports.Locator) ([]ports.Element, error) {
	return query(ctx, s.page.Context(ctx), loc)
}

// CurrentURL reports the address of the page.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// Navigate loads url and waits for the load event, bounded by the navigation timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx).Timeout(s.navTimeout)
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

// Pace sleeps for a uniformly random duration in [min, max].
func (s *Session) Pace(ctx context.Context, min, max time.Duration) error {
	if min > max {
		return fmt.Errorf("invalid pacing range %s..%s", min, max)
	}
	d := min
	if span := int64(max - min); span > 0 {
		d += time.Duration(rand.Int64N(span + 1))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pierce finds CSS matches inside shadow roots. XPath cannot cross shadow
// boundaries, so XPath locators fall back to a normal query.
func (s *Session) Pierce(ctx context.Context, loc ports.Locator) ([]ports.Element, error) {
	p := s.page.Context(ctx)
	if loc.Kind == ports.XPath {
		return query(ctx, p, loc)
	}
	els, err := p.ElementsByJS(rod.Eval(pierceJS, loc.Expr))
	if err != nil {
		return nil, err
	}
	return wrap(els), nil
}

// Close closes the page.
func (s *Session) Close() error {
	return s.page.Close()
}

type queryable interface {
	Elements(selector string) (rod.Elements, error)
	ElementsX(xpath string) (rod.Elements, error)
}

func query(_ context.Context, q queryable, loc ports.Locator) ([]ports.Element, error) {
	var (
		els rod.Elements
		err error
	)
	switch loc.Kind {
	case ports.XPath:
		els, err = q.ElementsX(loc.Expr)
	case ports.CSS, "":
		els, err = q.Elements(loc.Expr)
	default:
		return nil, fmt.Errorf("unsupported locator kind %q", loc.Kind)
	}
	if err != nil {
		return nil, err
	}
	return wrap(els), nil
}

func wrap(els rod.Elements) []ports.Element {
	out := make([]ports.Element, len(els))
	for i, el := range els {
		out[i] = &element{el: el}
	}
	return out
}

type element struct {
	el *rod.Element
}

func (e *element) Query(ctx context.Context, loc ports.Locator) ([]ports.Element, error) {
	return query(ctx, e.el.Context(ctx), loc)
}

func (e *element) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil || v == nil {
		return "", false, err
	}
	return *v, true, nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}

func (e *element) Enabled(ctx context.Context) (bool, error) {
	res, err := e.el.Context(ctx).Eval(enabledJS)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	return e.el.Context(ctx).ScrollIntoView()
}

func (e *element) Dispatch(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(dispatchJS)
	return err
}

func (e *element) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *element) HoverClick(ctx context.Context) error {
	el := e.el.Context(ctx)
	if err := el.Hover(); err != nil {
		return err
	}
	return el.Page().Mouse.Click(proto.InputMouseButtonLeft, 1)
}

func (e *element) ActionableAncestor(ctx context.Context) (ports.Element, error) {
	anc, err := e.el.Context(ctx).ElementByJS(rod.Eval(ancestorJS))
	if err != nil {
		return nil, fmt.Errorf("no actionable ancestor: %w", err)
	}
	return &element{el: anc}, nil
}

func (e *element) PressEnter(ctx context.Context) error {
	el := e.el.Context(ctx)
	if err := el.Focus(); err != nil {
		return err
	}
	return el.Page().Keyboard.Press(input.Enter)
}

// Input replaces the field's content with text.
func (e *element) Input(ctx context.Context, text string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err == nil {
		_ = el.Page().Keyboard.Press(input.Backspace)
	}
	return el.Input(text)
}

func (e *element) Select(ctx context.Context, text string) error {
	return e.el.Context(ctx).Select([]string{text}, true, rod.SelectorTypeText)
}
