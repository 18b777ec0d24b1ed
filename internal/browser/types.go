package browser

import (
	"fmt"
	"strings"
	"time"
)

// Strategy names how a Locator's value is matched against the DOM.
type Strategy string

const (
	StrategyID    Strategy = "id"
	StrategyName  Strategy = "name"
	StrategyCSS   Strategy = "css"
	StrategyXPath Strategy = "xpath"
)

// ParseStrategy converts a raw strategy name. "selector" is accepted as an
// alias for css.
func ParseStrategy(raw string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(StrategyID):
		return StrategyID, nil
	case string(StrategyName):
		return StrategyName, nil
	case string(StrategyCSS), "selector":
		return StrategyCSS, nil
	case string(StrategyXPath):
		return StrategyXPath, nil
	default:
		return "", fmt.Errorf("%w: %q (expected: id, name, css or xpath)", ErrInvalidLocator, raw)
	}
}

// Locator identifies zero or more DOM elements. The zero value is invalid;
// build one with ByID, ByName, ByCSS, ByXPath or ParseLocator.
type Locator struct {
	strategy Strategy
	value    string
}

// NewLocator validates strategy and value.
func NewLocator(strategy Strategy, value string) (Locator, error) {
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return Locator{}, err
	}
	if strings.TrimSpace(value) == "" {
		return Locator{}, fmt.Errorf("%w: empty %s value", ErrInvalidLocator, strategy)
	}
	return Locator{strategy: strategy, value: value}, nil
}

// ParseLocator parses "strategy:value", e.g. "name:search" or
// "xpath://*[@id='x']". Only the first colon separates the two parts.
func ParseLocator(raw string) (Locator, error) {
	strategy, value, ok := strings.Cut(raw, ":")
	if !ok {
		return Locator{}, fmt.Errorf("%w: %q is missing a strategy prefix", ErrInvalidLocator, raw)
	}
	s, err := ParseStrategy(strategy)
	if err != nil {
		return Locator{}, err
	}
	return NewLocator(s, value)
}

// ByID matches the element with the given id attribute.
func ByID(id string) Locator { return mustLocator(StrategyID, id) }

// ByName matches elements by their name attribute.
func ByName(name string) Locator { return mustLocator(StrategyName, name) }

// ByCSS matches elements by CSS selector.
func ByCSS(selector string) Locator { return mustLocator(StrategyCSS, selector) }

// ByXPath matches elements by XPath expression.
func ByXPath(xpath string) Locator { return mustLocator(StrategyXPath, xpath) }

func mustLocator(s Strategy, value string) Locator {
	loc, err := NewLocator(s, value)
	if err != nil {
		panic(err)
	}
	return loc
}

// Strategy returns the matching strategy.
func (l Locator) Strategy() Strategy { return l.strategy }

// Value returns the raw selector, id, name or expression.
func (l Locator) Value() string { return l.value }

// IsZero reports whether l was never initialised.
func (l Locator) IsZero() bool { return l.strategy == "" }

// String renders the locator in ParseLocator form.
func (l Locator) String() string {
	if l.IsZero() {
		return "<invalid locator>"
	}
	return string(l.strategy) + ":" + l.value
}

// ElementState is what a single probe observed about the first element a
// Locator matches.
type ElementState struct {
	Present bool   `json:"present"`
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
	Text    string `json:"text"`
	Tag     string `json:"tag"`
}

// ElementHandle is a snapshot of an element taken by the wait engine. It is
// a weak reference: actions re-resolve the element through Locator, so a
// handle does not keep a DOM node alive across navigation or re-rendering.
type ElementHandle struct {
	Locator    Locator
	State      ElementState
	ObservedAt time.Time
}

// ScreenshotOptions configures screenshot capture
type ScreenshotOptions struct {
	FullPage bool // Capture full scrollable page
	Quality  int  // JPEG quality (0-100), only used for full page captures
}

// Config holds session configuration
type Config struct {
	ExecPath     string        // Browser executable supplied by the driver resolver
	RemoteURL    string        // ws:// or wss:// CDP endpoint (overrides ExecPath)
	InsecureTLS  bool          // Skip TLS verification for wss:// endpoints
	Headless     bool          // Run without a visible window
	WindowWidth  int           // Window size in CSS pixels
	WindowHeight int           // Window size in CSS pixels
	Lang         string        // UI language, controls native validation texts
	UserDataDir  string        // Optional Chrome profile dir
	Timeout      time.Duration // Upper bound for a single CDP action
}

// DefaultConfig returns the session defaults.
func DefaultConfig() Config {
	return Config{
		Headless:     false,
		WindowWidth:  1920,
		WindowHeight: 1080,
		Lang:         "en-US",
		Timeout:      DefaultTimeout,
	}
}
