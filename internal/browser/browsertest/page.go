// Package browsertest provides a scripted, in-memory browser.Session for
// exercising the wait engine, interaction layer and verification steps
// without a real browser.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/VetrexCZ/pemacheck/internal/browser"
)

// Element is one scripted DOM element.
type Element struct {
	Visible  bool
	Disabled bool
	Text     string
	Tag      string
	Value    string
	// Validate computes the native validation message from the current
	// value; nil means the element has no constraints.
	Validate func(value string) string
}

// Hook mutates the page in response to an action.
type Hook func(p *Page)

// Page is a fake browser.Session. The zero value is not usable; call NewPage.
type Page struct {
	mu       sync.Mutex
	title    string
	url      string
	elements map[string]*Element
	onClick  map[string]Hook
	onEnter  map[string]Hook
	onNav    Hook
	faults   map[string][]error
	calls    []string
	navErr   error
	released int
}

var _ browser.Session = (*Page)(nil)

// NewPage returns an empty page titled title.
func NewPage(title string) *Page {
	return &Page{
		title:    title,
		elements: make(map[string]*Element),
		onClick:  make(map[string]Hook),
		onEnter:  make(map[string]Hook),
		faults:   make(map[string][]error),
	}
}

// SetTitle changes the document title.
func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

// SetURL changes the current location, e.g. from an OnNavigate hook to
// simulate a redirect.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// Put adds or replaces the element loc resolves to.
func (p *Page) Put(loc browser.Locator, el Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := el
	p.elements[loc.String()] = &e
}

// PutAfter adds the element once d has elapsed.
func (p *Page) PutAfter(d time.Duration, loc browser.Locator, el Element) {
	time.AfterFunc(d, func() { p.Put(loc, el) })
}

// Show is Put for a visible element carrying text.
func (p *Page) Show(loc browser.Locator, text string) {
	p.Put(loc, Element{Visible: true, Text: text})
}

// Remove detaches the element loc resolves to.
func (p *Page) Remove(loc browser.Locator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, loc.String())
}

// Element returns a copy of the element at loc.
func (p *Page) Element(loc browser.Locator) (Element, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[loc.String()]
	if !ok {
		return Element{}, false
	}
	return *el, true
}

// OnClick runs h after every click on loc.
func (p *Page) OnClick(loc browser.Locator, h Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClick[loc.String()] = h
}

// OnEnter runs h after Enter is pressed on loc.
func (p *Page) OnEnter(loc browser.Locator, h Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEnter[loc.String()] = h
}

// OnNavigate runs h after every successful navigation.
func (p *Page) OnNavigate(h Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onNav = h
}

// FailNavigation makes Navigate return err.
func (p *Page) FailNavigation(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navErr = err
}

// Fault queues errors returned by the next Inspect calls on loc, one per call.
func (p *Page) Fault(loc browser.Locator, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.faults[loc.String()] = append(p.faults[loc.String()], errs...)
}

// Calls returns the actions performed so far, e.g. "click css:#login" or
// `type name:search "brakes"`.
// Inspections are not recorded.
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Releases reports how many times Release was called.
func (p *Page) Releases() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

func (p *Page) record(format string, args ...any) error {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
	if p.released > 0 {
		return browser.ErrSessionReleased
	}
	return nil
}

// Navigate implements browser.Page.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	if err := p.record("navigate %s", url); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.navErr != nil {
		err := p.navErr
		p.mu.Unlock()
		return fmt.Errorf("%w: %w", browser.ErrNavigationFailed, err)
	}
	p.url = url
	hook := p.onNav
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return ctx.Err()
}

// Title implements browser.Page.
func (p *Page) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released > 0 {
		return "", browser.ErrSessionReleased
	}
	return p.title, ctx.Err()
}

// URL implements browser.Page.
func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released > 0 {
		return "", browser.ErrSessionReleased
	}
	return p.url, ctx.Err()
}

// lookup must be called with p.mu held.
func (p *Page) lookup(loc browser.Locator) (*Element, error) {
	if p.released > 0 {
		return nil, browser.ErrSessionReleased
	}
	key := loc.String()
	if queued := p.faults[key]; len(queued) > 0 {
		p.faults[key] = queued[1:]
		return nil, queued[0]
	}
	el, ok := p.elements[key]
	if !ok {
		return nil, browser.ErrElementNotFound
	}
	return el, nil
}

// Inspect implements browser.Page.
func (p *Page) Inspect(ctx context.Context, loc browser.Locator) (browser.ElementState, error) {
	if err := ctx.Err(); err != nil {
		return browser.ElementState{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.lookup(loc)
	if err != nil {
		return browser.ElementState{}, err
	}
	return browser.ElementState{
		Present: true,
		Visible: el.Visible,
		Enabled: !el.Disabled,
		Text:    el.Text,
		Tag:     el.Tag,
	}, nil
}

// act resolves loc for an action; a missing node is stale because actions
// always follow a successful wait.
func (p *Page) act(loc browser.Locator, call string) (*Element, error) {
	if err := p.record("%s", call); err != nil {
		return nil, err
	}
	el, err := p.lookup(loc)
	if err == browser.ErrElementNotFound {
		return nil, browser.ErrStaleElement
	}
	return el, err
}

// Click implements browser.Page.
func (p *Page) Click(ctx context.Context, loc browser.Locator) error {
	p.mu.Lock()
	if _, err := p.act(loc, "click "+loc.String()); err != nil {
		p.mu.Unlock()
		return err
	}
	hook := p.onClick[loc.String()]
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return ctx.Err()
}

// Clear implements browser.Page.
func (p *Page) Clear(ctx context.Context, loc browser.Locator) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.act(loc, "clear "+loc.String())
	if err != nil {
		return err
	}
	el.Value = ""
	return ctx.Err()
}

// SendKeys implements browser.Page.
func (p *Page) SendKeys(ctx context.Context, loc browser.Locator, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.act(loc, fmt.Sprintf("type %s %q", loc, text))
	if err != nil {
		return err
	}
	el.Value += text
	return ctx.Err()
}

// PressEnter implements browser.Page.
func (p *Page) PressEnter(ctx context.Context, loc browser.Locator) error {
	p.mu.Lock()
	if _, err := p.act(loc, "enter "+loc.String()); err != nil {
		p.mu.Unlock()
		return err
	}
	hook := p.onEnter[loc.String()]
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return ctx.Err()
}

// ValidationMessage implements browser.Page.
func (p *Page) ValidationMessage(ctx context.Context, loc browser.Locator) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.lookup(loc)
	if err != nil {
		return "", err
	}
	if el.Validate == nil {
		return "", ctx.Err()
	}
	return el.Validate(el.Value), ctx.Err()
}

// Screenshot implements browser.Page with a fixed PNG signature.
func (p *Page) Screenshot(ctx context.Context, _ browser.ScreenshotOptions) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("screenshot"); err != nil {
		return nil, err
	}
	return []byte("\x89PNG\r\n\x1a\n"), ctx.Err()
}

// Release implements browser.Session; it only counts calls.
func (p *Page) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released++
	return nil
}
