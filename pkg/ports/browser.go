package ports

import (
	"context"
	"time"
)

// LocatorKind identifies the query language of a locator expression.
type LocatorKind string

const (
	CSS   LocatorKind = "css"
	XPath LocatorKind = "xpath"
)

// Locator is a single query expression.
type Locator struct {
	Kind LocatorKind `yaml:"kind" json:"kind"`
	Expr string      `yaml:"expr" json:"expr"`
}

func (l Locator) String() string {
	return string(l.Kind) + ":" + l.Expr
}

// Scope is anything elements can be looked up in: a whole page or a single element.
type Scope interface {
	// Query returns every element matching the locator. No match is an empty slice, not an error.
	Query(ctx context.Context, loc Locator) ([]Element, error)
}

// Element is a handle to a rendered UI element.
type Element interface {
	Scope

	Text(ctx context.Context) (string, error)
	// Attribute reports the attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	Visible(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)

	ScrollIntoView(ctx context.Context) error
	// Dispatch fires a synthetic click event on the element without moving the pointer.
	Dispatch(ctx context.Context) error
	// Click performs a native click through the driver.
	Click(ctx context.Context) error
	// HoverClick moves the pointer over the element and presses the button there.
	HoverClick(ctx context.Context) error
	// ActionableAncestor returns the closest enclosing button, link, or role=button element.
	ActionableAncestor(ctx context.Context) (Element, error)
	// PressEnter focuses the element and sends the Enter key.
	PressEnter(ctx context.Context) error

	// Input replaces the element's value with text.
	Input(ctx context.Context, text string) error
	// Select picks the option whose visible text equals text.
	Select(ctx context.Context, text string) error
}

// Session is a browser page leased exclusively for one workflow execution.
type Session interface {
	Scope

	CurrentURL(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	// Pace sleeps for a random duration in [min, max].
	Pace(ctx context.Context, min, max time.Duration) error
	// Pierce looks up elements across isolated rendering boundaries such as shadow roots.
	Pierce(ctx context.Context, loc Locator) ([]Element, error)
}
