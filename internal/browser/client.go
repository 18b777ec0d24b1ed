// Package browser owns the browser session: it starts or attaches to Chrome
// over the DevTools Protocol via chromedp and exposes the narrow set of DOM
// primitives the wait engine and interaction layer are built on.
package browser

import (
	"context"
	"time"
)

// DefaultTimeout bounds a single CDP action
const DefaultTimeout = 30 * time.Second

// Page is the DOM surface of a live session. Every element operation
// resolves its Locator afresh; implementations never cache nodes.
type Page interface {
	// Navigation
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)

	// Inspect reports the state of the first element loc matches. It returns
	// ErrElementNotFound when nothing matches.
	Inspect(ctx context.Context, loc Locator) (ElementState, error)

	// Element interaction, one attempt each
	Click(ctx context.Context, loc Locator) error
	Clear(ctx context.Context, loc Locator) error
	SendKeys(ctx context.Context, loc Locator, text string) error
	PressEnter(ctx context.Context, loc Locator) error

	// ValidationMessage returns the element's HTML5 constraint-validation
	// message; empty when the current value satisfies every constraint.
	ValidationMessage(ctx context.Context, loc Locator) (string, error)

	Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error)
}

// Session is a Page with an owner-controlled lifetime.
type Session interface {
	Page
	// Release tears the browser down. It is safe to call more than once and
	// on a session whose start failed half way.
	Release() error
}

// Acquirer starts a new Session.
type Acquirer func(ctx context.Context) (Session, error)

// Ensure CDPSession implements Session interface
var _ Session = (*CDPSession)(nil)
