// Package interact performs element actions through the wait engine: every
// action first waits for its target, then makes exactly one attempt.
package interact

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/VetrexCZ/pemacheck/internal/browser"
	"github.com/VetrexCZ/pemacheck/internal/logging"
	"github.com/VetrexCZ/pemacheck/internal/wait"
)

// TypeMode says whether Type replaces or extends a field's value.
type TypeMode int

const (
	// Overwrite clears the field before typing.
	Overwrite TypeMode = iota
	// Append types after whatever the field already holds.
	Append
)

func (m TypeMode) String() string {
	if m == Append {
		return "append"
	}
	return "overwrite"
}

// Action names used in InteractionError.
const (
	ActionFind     = "find"
	ActionClick    = "click"
	ActionClear    = "clear"
	ActionType     = "type"
	ActionSubmit   = "submit"
	ActionValidity = "read validation message"
)

// Interactor drives one Page.
type Interactor struct {
	page    browser.Page
	waits   *wait.Engine
	timeout time.Duration
	logger  *log.Logger
}

// New creates an Interactor. A zero timeout falls back to the wait engine's
// default.
func New(page browser.Page, waits *wait.Engine, timeout time.Duration, logger *log.Logger) *Interactor {
	if logger == nil {
		logger = logging.Discard()
	}
	if timeout <= 0 {
		timeout = waits.Timeout()
	}
	return &Interactor{
		page:    page,
		waits:   waits,
		timeout: timeout,
		logger:  logger.WithPrefix("interact"),
	}
}

// Page returns the underlying page.
func (i *Interactor) Page() browser.Page { return i.page }

// Timeout returns the wait used by Click, Type, Clear and SubmitViaKey.
func (i *Interactor) Timeout() time.Duration { return i.timeout }

func fail(loc browser.Locator, action string, err error) error {
	return &browser.InteractionError{Locator: loc, Action: action, Err: err}
}

// Find waits up to timeout for loc to satisfy kind.
func (i *Interactor) Find(ctx context.Context, loc browser.Locator, kind wait.Kind, timeout time.Duration) (browser.ElementHandle, error) {
	h, err := i.waits.Await(ctx, wait.Condition{Locator: loc, Kind: kind}, timeout)
	if err != nil {
		return browser.ElementHandle{}, fail(loc, ActionFind, err)
	}
	return h, nil
}

// Click waits for loc to be clickable and clicks it once.
func (i *Interactor) Click(ctx context.Context, loc browser.Locator) error {
	return i.ClickWithin(ctx, loc, i.timeout)
}

// ClickWithin is Click with an explicit wait timeout.
func (i *Interactor) ClickWithin(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	if _, err := i.waits.Await(ctx, wait.ClickableOf(loc), timeout); err != nil {
		return fail(loc, ActionClick, err)
	}
	if err := i.page.Click(ctx, loc); err != nil {
		return fail(loc, ActionClick, err)
	}
	i.logger.Debug("clicked", "locator", loc)
	return nil
}

// Clear waits for loc to be present and empties it.
func (i *Interactor) Clear(ctx context.Context, loc browser.Locator) error {
	if _, err := i.waits.Await(ctx, wait.PresenceOf(loc), i.timeout); err != nil {
		return fail(loc, ActionClear, err)
	}
	if err := i.page.Clear(ctx, loc); err != nil {
		return fail(loc, ActionClear, err)
	}
	return nil
}

// Type waits for loc to be present and sends text. With Overwrite the
// field is cleared first; with Append the text is added to the current value.
func (i *Interactor) Type(ctx context.Context, loc browser.Locator, text string, mode TypeMode) error {
	if _, err := i.waits.Await(ctx, wait.PresenceOf(loc), i.timeout); err != nil {
		return fail(loc, ActionType, err)
	}
	if mode == Overwrite {
		if err := i.page.Clear(ctx, loc); err != nil {
			return fail(loc, ActionClear, err)
		}
	}
	if err := i.page.SendKeys(ctx, loc, text); err != nil {
		return fail(loc, ActionType, err)
	}
	i.logger.Debug("typed", "locator", loc, "mode", mode, "chars", len([]rune(text)))
	return nil
}

// SubmitViaKey presses Enter in the field loc resolves to.
func (i *Interactor) SubmitViaKey(ctx context.Context, loc browser.Locator) error {
	if _, err := i.waits.Await(ctx, wait.PresenceOf(loc), i.timeout); err != nil {
		return fail(loc, ActionSubmit, err)
	}
	if err := i.page.PressEnter(ctx, loc); err != nil {
		return fail(loc, ActionSubmit, err)
	}
	return nil
}

// ReadNativeValidationMessage returns the browser's constraint-validation
// message for the field h was taken from. The message reflects the field's
// current value; an empty string means the value is valid. The element is
// re-resolved, so a node that vanished since h was taken is reported as stale.
func (i *Interactor) ReadNativeValidationMessage(ctx context.Context, h browser.ElementHandle) (string, error) {
	msg, err := i.page.ValidationMessage(ctx, h.Locator)
	if err != nil {
		if errors.Is(err, browser.ErrElementNotFound) {
			err = browser.ErrStaleElement
		}
		return "", fail(h.Locator, ActionValidity, err)
	}
	return msg, nil
}
