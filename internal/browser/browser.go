// Package browser defines the browser capability consumed by the workflow
// engine, plus a static HTTP implementation suitable for scraping pages
// that do not require JavaScript.
//
// A Driver is owned by exactly one workflow run at a time. The run acquires
// it before the first node executes and releases it on every exit path;
// node executors receive it by reference and must not retain it beyond
// their own invocation.
package browser

import (
	"context"
)

// Driver drives a browser session. Close is idempotent.
type Driver interface {
	// Get navigates to the given URL.
	Get(ctx context.Context, url string) error

	// WaitForElement blocks until the selector matches an element.
	WaitForElement(ctx context.Context, selector string) error

	// WaitForNetworkIdle blocks until in-flight network activity settles.
	WaitForNetworkIdle(ctx context.Context) error

	// WaitForNavigation blocks until a pending navigation completes.
	WaitForNavigation(ctx context.Context) error

	// Click clicks the first element matching selector. When human is true
	// the driver may add randomized movement and timing.
	Click(ctx context.Context, selector string, human bool) error

	// Type types text into the first element matching selector.
	Type(ctx context.Context, selector, text string, human bool) error

	// FindElement returns the first element matching selector.
	FindElement(ctx context.Context, selector string) (Element, error)

	// FindElements returns all elements matching selector.
	FindElements(ctx context.Context, selector string) ([]Element, error)

	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// PageSource returns the current page HTML.
	PageSource(ctx context.Context) (string, error)

	// Close releases the session. Safe to call multiple times.
	Close() error
}

// Element is a handle to a single DOM element.
type Element interface {
	// Text returns the element's visible text.
	Text() (string, error)

	// HTML returns the element's outer HTML.
	HTML() (string, error)

	// GetAttribute returns the named attribute, or "" when absent.
	GetAttribute(name string) (string, error)

	// SendKeys types text into the element.
	SendKeys(text string) error

	// Clear empties an input element.
	Clear() error

	// FindElement returns the first descendant matching selector.
	FindElement(selector string) (Element, error)

	// FindElements returns all descendants matching selector.
	FindElements(selector string) ([]Element, error)
}
