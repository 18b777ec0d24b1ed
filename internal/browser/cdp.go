// internal/browser/cdp.go
// Session implementation over the Chrome DevTools Protocol using chromedp
package browser

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/gobwas/ws"
)

// CDPSession is a chromedp-backed Session
type CDPSession struct {
	config    Config
	allocCtx  context.Context
	allocCanc context.CancelFunc
	ctx       context.Context
	cancel    context.CancelFunc
	targetID  target.ID // existing page to attach to on remote browsers

	releaseOnce sync.Once
	released    atomic.Bool
}

// NewCDPSession creates an unstarted session
func NewCDPSession(config Config) *CDPSession {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	return &CDPSession{config: config}
}

// Acquire creates and starts a session. On failure everything that was
// started is torn down again before the error is returned.
func Acquire(ctx context.Context, config Config) (*CDPSession, error) {
	s := NewCDPSession(config)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewAcquirer binds config into an Acquirer for the run orchestrator.
func NewAcquirer(config Config) Acquirer {
	return func(ctx context.Context) (Session, error) {
		s, err := Acquire(ctx, config)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Config returns the session configuration
func (c *CDPSession) Config() Config {
	return c.config
}

// Start launches a local browser, or attaches to a remote one when
// RemoteURL is set. The browser lives until Release or until ctx ends.
func (c *CDPSession) Start(ctx context.Context) error {
	switch {
	case c.config.RemoteURL != "":
		// chromedp dials through ws.DefaultDialer; hold it for this session's
		// TLS settings until the attach below has completed
		dialMu.Lock()
		defer dialMu.Unlock()
		defer useDialerTLS(c.tlsConfig())()

		c.targetID = discoverPageTarget(ctx, c.config.RemoteURL, c.tlsConfig())

		var opts []chromedp.RemoteAllocatorOption
		if strings.Contains(c.config.RemoteURL, "/devtools/") {
			opts = append(opts, chromedp.NoModifyURL)
		}
		c.allocCtx, c.allocCanc = chromedp.NewRemoteAllocator(ctx, c.config.RemoteURL, opts...)

	case c.config.ExecPath != "":
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.ExecPath(c.config.ExecPath),
			chromedp.Flag("headless", c.config.Headless),
		)
		if c.config.Lang != "" {
			opts = append(opts, chromedp.Flag("lang", c.config.Lang))
		}
		if c.config.WindowWidth > 0 && c.config.WindowHeight > 0 {
			opts = append(opts, chromedp.WindowSize(c.config.WindowWidth, c.config.WindowHeight))
		}
		if c.config.UserDataDir != "" {
			opts = append(opts, chromedp.UserDataDir(c.config.UserDataDir))
		}
		c.allocCtx, c.allocCanc = chromedp.NewExecAllocator(ctx, opts...)

	default:
		return &SessionError{Op: "start", Err: ErrNoBrowser}
	}

	if c.targetID != "" {
		c.ctx, c.cancel = chromedp.NewContext(c.allocCtx, chromedp.WithTargetID(c.targetID))
	} else {
		c.ctx, c.cancel = chromedp.NewContext(c.allocCtx)
	}

	// An empty Run starts the browser (or attaches) and opens the first tab
	if err := chromedp.Run(c.ctx); err != nil {
		return startError(err, c.Release())
	}
	return nil
}

// startError reports a failed start together with any failure to tear the
// half-started browser down again.
func startError(err, releaseErr error) error {
	if releaseErr != nil {
		err = errors.Join(err, releaseErr)
	}
	return &SessionError{Op: "start", Err: err}
}

// dialMu guards ws.DefaultDialer while a remote session attaches.
var dialMu sync.Mutex

// useDialerTLS installs conf on ws.DefaultDialer and returns a func that
// restores the previous value.
func useDialerTLS(conf *tls.Config) func() {
	prev := ws.DefaultDialer.TLSConfig
	ws.DefaultDialer.TLSConfig = conf
	return func() { ws.DefaultDialer.TLSConfig = prev }
}

// tlsConfig returns the TLS settings for wss:// endpoints, nil for the
// system defaults.
func (c *CDPSession) tlsConfig() *tls.Config {
	if !c.config.InsecureTLS {
		return nil
	}
	// Remote endpoints behind proxies often carry self-signed certs or IP SANs
	return &tls.Config{InsecureSkipVerify: true}
}

// Released reports whether Release has been called
func (c *CDPSession) Released() bool {
	return c.released.Load()
}

// Release closes the browser (or detaches from a remote one). Only the
// first call does any work; later calls and calls on a nil session return nil.
func (c *CDPSession) Release() error {
	if c == nil {
		return nil
	}
	var err error
	c.releaseOnce.Do(func() {
		c.released.Store(true)
		if c.ctx != nil && c.config.RemoteURL == "" {
			// Graceful close so the browser process does not outlive the run
			if cerr := chromedp.Cancel(c.ctx); cerr != nil && !errors.Is(cerr, context.Canceled) {
				err = &SessionError{Op: "release", Err: cerr}
			}
		}
		if c.cancel != nil {
			c.cancel()
		}
		if c.allocCanc != nil {
			c.allocCanc()
		}
	})
	return err
}

// run executes actions on the session tab, bounded by both the caller's
// context and the per-action timeout.
func (c *CDPSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if c.released.Load() || c.ctx == nil {
		return ErrSessionReleased
	}

	runCtx, cancel := context.WithTimeout(c.ctx, c.config.Timeout)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return classify(chromedp.Run(runCtx, actions...))
}

// --- Navigation ---

// Navigate loads url and waits for the load event
func (c *CDPSession) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		if errors.Is(err, ErrNavigationFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrNavigationFailed, err)
	}
	return nil
}

// Title gets the document title
func (c *CDPSession) Title(ctx context.Context) (string, error) {
	var title string
	err := c.run(ctx, chromedp.Title(&title))
	return title, err
}

// URL gets the current location
func (c *CDPSession) URL(ctx context.Context) (string, error) {
	var url string
	err := c.run(ctx, chromedp.Location(&url))
	return url, err
}

// --- Element state ---

// elementProbe is the JSON shape returned by inspectScript
type elementProbe struct {
	Present           bool   `json:"present"`
	Visible           bool   `json:"visible"`
	Enabled           bool   `json:"enabled"`
	Text              string `json:"text"`
	Tag               string `json:"tag"`
	ValidationMessage string `json:"validationMessage"`
}

func (p elementProbe) state() ElementState {
	return ElementState{
		Present: p.Present,
		Visible: p.Visible,
		Enabled: p.Enabled,
		Text:    p.Text,
		Tag:     p.Tag,
	}
}

// inspectScript resolves a locator in the page and reports the first match.
// The two %s verbs receive JSON-encoded strategy and value.
const inspectScript = `
	(function(strategy, value) {
		let el = null;
		switch (strategy) {
		case 'id':
			el = document.getElementById(value);
			break;
		case 'name':
			el = document.getElementsByName(value)[0] || null;
			break;
		case 'css':
			el = document.querySelector(value);
			break;
		case 'xpath':
			el = document.evaluate(value, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
			break;
		}
		if (!el) return {present: false};
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		const visible = rect.width > 0 && rect.height > 0 &&
			style.visibility !== 'hidden' && style.display !== 'none';
		return {
			present: true,
			visible: visible,
			enabled: !el.disabled,
			text: (el.innerText || el.textContent || '').trim().replace(/\s+/g, ' '),
			tag: el.tagName.toLowerCase(),
			validationMessage: el.validationMessage || ''
		};
	})(%s, %s)
`

func (c *CDPSession) probe(ctx context.Context, loc Locator) (elementProbe, error) {
	var res elementProbe
	if loc.IsZero() {
		return res, ErrInvalidLocator
	}
	strategy, _ := json.Marshal(string(loc.Strategy()))
	value, _ := json.Marshal(loc.Value())
	script := fmt.Sprintf(inspectScript, strategy, value)

	err := c.run(ctx, chromedp.Evaluate(script, &res))
	if err != nil {
		// A thrown exception means the selector or expression itself is broken
		var exc *runtime.ExceptionDetails
		if errors.As(err, &exc) {
			return res, fmt.Errorf("%w %s: %v", ErrInvalidLocator, loc, exc)
		}
		return res, err
	}
	if !res.Present {
		return res, ErrElementNotFound
	}
	return res, nil
}

// Inspect reports the state of the first element loc matches
func (c *CDPSession) Inspect(ctx context.Context, loc Locator) (ElementState, error) {
	res, err := c.probe(ctx, loc)
	return res.state(), err
}

// ValidationMessage returns the element's native constraint-validation message
func (c *CDPSession) ValidationMessage(ctx context.Context, loc Locator) (string, error) {
	res, err := c.probe(ctx, loc)
	return res.ValidationMessage, err
}

// --- Element interaction ---

// query converts a Locator into a chromedp selector and query options.
// AtLeast(0) makes a vanished node fail at once instead of being re-polled;
// waiting is the wait engine's job.
func query(loc Locator) (string, []chromedp.QueryOption) {
	opts := []chromedp.QueryOption{chromedp.AtLeast(0)}
	switch loc.Strategy() {
	case StrategyID:
		return attrSelector("id", loc.Value()), append(opts, chromedp.ByQuery)
	case StrategyName:
		return attrSelector("name", loc.Value()), append(opts, chromedp.ByQuery)
	case StrategyXPath:
		return loc.Value(), append(opts, chromedp.BySearch)
	default:
		return loc.Value(), append(opts, chromedp.ByQuery)
	}
}

func attrSelector(attr, value string) string {
	quoted, _ := json.Marshal(value)
	return fmt.Sprintf("[%s=%s]", attr, quoted)
}

// Click clicks an element
func (c *CDPSession) Click(ctx context.Context, loc Locator) error {
	sel, opts := query(loc)
	return c.run(ctx, chromedp.Click(sel, opts...))
}

// Clear empties an input element
func (c *CDPSession) Clear(ctx context.Context, loc Locator) error {
	sel, opts := query(loc)
	return c.run(ctx, chromedp.Clear(sel, opts...))
}

// SendKeys types text into an element (appends)
func (c *CDPSession) SendKeys(ctx context.Context, loc Locator, text string) error {
	sel, opts := query(loc)
	return c.run(ctx, chromedp.SendKeys(sel, text, opts...))
}

// PressEnter sends the Enter key to an element
func (c *CDPSession) PressEnter(ctx context.Context, loc Locator) error {
	sel, opts := query(loc)
	return c.run(ctx, chromedp.SendKeys(sel, kb.Enter, opts...))
}

// Screenshot captures the viewport, or the whole page when FullPage is set
func (c *CDPSession) Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error) {
	var buf []byte
	var err error
	if opts.FullPage {
		quality := opts.Quality
		if quality == 0 {
			quality = 90
		}
		err = c.run(ctx, chromedp.FullScreenshot(&buf, quality))
	} else {
		err = c.run(ctx, chromedp.CaptureScreenshot(&buf))
	}
	return buf, err
}

// discoverPageTarget looks for an existing page on a remote browser so the
// session drives it instead of opening a new tab. Any failure just means
// "open a new tab".
func discoverPageTarget(ctx context.Context, remoteURL string, tlsConf *tls.Config) target.ID {
	httpURL := strings.Replace(remoteURL, "wss://", "https://", 1)
	httpURL = strings.Replace(httpURL, "ws://", "http://", 1)
	if i := strings.Index(httpURL, "/devtools/"); i >= 0 {
		httpURL = httpURL[:i]
	}
	httpURL = strings.TrimSuffix(httpURL, "/")

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, httpURL+"/json", nil)
	if err != nil {
		return ""
	}
	client := &http.Client{}
	if strings.HasPrefix(httpURL, "https://") {
		client.Transport = &http.Transport{TLSClientConfig: tlsConf}
	}
	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var targets []struct {
		ID                   string `json:"id"`
		Type                 string `json:"type"`
		URL                  string `json:"url"`
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return ""
	}

	// Prefer a page with content, fall back to the first page
	var first string
	for _, t := range targets {
		if t.Type != "page" || t.WebSocketDebuggerURL == "" {
			continue
		}
		if first == "" {
			first = t.ID
		}
		if t.URL != "" && t.URL != "about:blank" {
			return target.ID(t.ID)
		}
	}
	return target.ID(first)
}
