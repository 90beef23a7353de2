package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/scrapeflow-ai/scrapeflow/internal/types"
)

// defaultUserAgent is sent when the caller does not override it.
const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

// StaticDriver implements Driver over plain HTTP + goquery. It covers
// navigation and extraction against server-rendered pages; interaction
// operations (click, type, screenshot) return BROWSER_OP_UNSUPPORTED so
// that workflows relying on them fail with a clear reason instead of
// silently doing nothing.
type StaticDriver struct {
	client    *http.Client
	userAgent string

	mu     sync.Mutex
	doc    *goquery.Document
	rawURL string
	source string
	closed bool
}

// StaticOption is a functional option for configuring StaticDriver.
type StaticOption func(*StaticDriver)

// WithHTTPClient overrides the HTTP client used for page fetches.
func WithHTTPClient(client *http.Client) StaticOption {
	return func(d *StaticDriver) {
		d.client = client
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) StaticOption {
	return func(d *StaticDriver) {
		d.userAgent = ua
	}
}

// NewStaticDriver creates a static HTTP driver.
func NewStaticDriver(opts ...StaticOption) *StaticDriver {
	d := &StaticDriver{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Get fetches the URL and parses the response body.
func (d *StaticDriver) Get(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.WrapError(types.BROWSER_NAVIGATE_FAILED, "invalid URL "+url, err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return types.WrapRetryableError(types.BROWSER_NAVIGATE_FAILED, "failed to fetch "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := types.NewError(types.BROWSER_NAVIGATE_FAILED,
			fmt.Sprintf("fetching %s returned status %d", url, resp.StatusCode))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			err.Retryable = true
		}
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.WrapRetryableError(types.BROWSER_NAVIGATE_FAILED, "failed to read response body", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return types.WrapError(types.BROWSER_NAVIGATE_FAILED, "failed to parse HTML", err)
	}

	d.mu.Lock()
	d.doc = doc
	d.rawURL = url
	d.source = string(body)
	d.mu.Unlock()
	return nil
}

// LoadHTML parses HTML directly without a network round trip. Used by tests
// and by callers that already hold page source.
func (d *StaticDriver) LoadHTML(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return types.WrapError(types.BROWSER_NAVIGATE_FAILED, "failed to parse HTML", err)
	}

	d.mu.Lock()
	d.doc = doc
	d.source = html
	d.mu.Unlock()
	return nil
}

// WaitForElement succeeds immediately when the selector matches the parsed
// document; there is no dynamic content to wait for.
func (d *StaticDriver) WaitForElement(ctx context.Context, selector string) error {
	doc, err := d.document()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return types.NewError(types.BROWSER_ELEMENT_MISSING, "no element matches selector "+selector)
	}
	return nil
}

// WaitForNetworkIdle is a no-op: the page is fully loaded after Get returns.
func (d *StaticDriver) WaitForNetworkIdle(ctx context.Context) error {
	return nil
}

// WaitForNavigation is a no-op: navigation is synchronous.
func (d *StaticDriver) WaitForNavigation(ctx context.Context) error {
	return nil
}

// Click is unsupported on static pages.
func (d *StaticDriver) Click(ctx context.Context, selector string, human bool) error {
	return types.NewError(types.BROWSER_OP_UNSUPPORTED, "click requires a real browser session")
}

// Type is unsupported on static pages.
func (d *StaticDriver) Type(ctx context.Context, selector, text string, human bool) error {
	return types.NewError(types.BROWSER_OP_UNSUPPORTED, "type requires a real browser session")
}

// FindElement returns the first element matching selector.
func (d *StaticDriver) FindElement(ctx context.Context, selector string) (Element, error) {
	doc, err := d.document()
	if err != nil {
		return nil, err
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, types.NewError(types.BROWSER_ELEMENT_MISSING, "no element matches selector "+selector)
	}
	return &staticElement{sel: sel}, nil
}

// FindElements returns all elements matching selector.
func (d *StaticDriver) FindElements(ctx context.Context, selector string) ([]Element, error) {
	doc, err := d.document()
	if err != nil {
		return nil, err
	}

	var elements []Element
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		elements = append(elements, &staticElement{sel: sel})
	})
	return elements, nil
}

// Screenshot is unsupported on static pages.
func (d *StaticDriver) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, types.NewError(types.BROWSER_OP_UNSUPPORTED, "screenshot requires a real browser session")
}

// PageSource returns the raw HTML of the current page.
func (d *StaticDriver) PageSource(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return "", types.NewError(types.BROWSER_NAVIGATE_FAILED, "no page loaded")
	}
	return d.source, nil
}

// Close releases the current document. Idempotent.
func (d *StaticDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc = nil
	d.source = ""
	d.closed = true
	return nil
}

func (d *StaticDriver) document() (*goquery.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil, types.NewError(types.BROWSER_NAVIGATE_FAILED, "no page loaded; navigate first")
	}
	return d.doc, nil
}

// staticElement wraps a goquery selection as an Element.
type staticElement struct {
	sel *goquery.Selection
}

func (e *staticElement) Text() (string, error) {
	return e.sel.Text(), nil
}

func (e *staticElement) HTML() (string, error) {
	html, err := goquery.OuterHtml(e.sel)
	if err != nil {
		return "", types.WrapError(types.BROWSER_ELEMENT_MISSING, "failed to render element HTML", err)
	}
	return html, nil
}

func (e *staticElement) GetAttribute(name string) (string, error) {
	value, _ := e.sel.Attr(name)
	return value, nil
}

func (e *staticElement) SendKeys(text string) error {
	return types.NewError(types.BROWSER_OP_UNSUPPORTED, "send keys requires a real browser session")
}

func (e *staticElement) Clear() error {
	return types.NewError(types.BROWSER_OP_UNSUPPORTED, "clear requires a real browser session")
}

func (e *staticElement) FindElement(selector string) (Element, error) {
	sub := e.sel.Find(selector).First()
	if sub.Length() == 0 {
		return nil, types.NewError(types.BROWSER_ELEMENT_MISSING, "no element matches selector "+selector)
	}
	return &staticElement{sel: sub}, nil
}

func (e *staticElement) FindElements(selector string) ([]Element, error) {
	var elements []Element
	e.sel.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		elements = append(elements, &staticElement{sel: sel})
	})
	return elements, nil
}
