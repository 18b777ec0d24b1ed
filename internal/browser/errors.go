package browser

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrSessionReleased is returned when a page is used after Release
	ErrSessionReleased = errors.New("browser session released")

	// ErrElementNotFound is returned when a locator matches nothing
	ErrElementNotFound = errors.New("element not found")

	// ErrElementNotVisible is returned when element exists but isn't visible
	ErrElementNotVisible = errors.New("element is not visible")

	// ErrElementNotEnabled is returned when element is disabled
	ErrElementNotEnabled = errors.New("element is not enabled")

	// ErrStaleElement is returned when the node a handle was taken from is
	// no longer attached to the document
	ErrStaleElement = errors.New("element is stale - page may have changed")

	// ErrNavigationFailed is returned when navigation fails
	ErrNavigationFailed = errors.New("navigation failed")

	// ErrTimeout is matched by every *TimeoutError
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidLocator is returned for malformed locators
	ErrInvalidLocator = errors.New("invalid locator")

	// ErrNoBrowser is returned when neither an executable nor a remote URL is configured
	ErrNoBrowser = errors.New("no browser executable or remote CDP URL configured")

	// ErrContextLost is returned when the page's JavaScript context was torn
	// down mid-probe, typically by a navigation
	ErrContextLost = errors.New("execution context destroyed")
)

// TimeoutError reports a wait condition that never became true.
type TimeoutError struct {
	Condition string
	Elapsed   time.Duration
	Last      error // last transient error observed while polling, if any
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %v waiting for %s", e.Elapsed.Round(time.Millisecond), e.Condition)
	if e.Last != nil {
		msg += fmt.Sprintf(" (last: %v)", e.Last)
	}
	return msg
}

// Is makes errors.Is(err, ErrTimeout) hold for any *TimeoutError.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TimeoutError) Unwrap() error {
	return e.Last
}

// InteractionError reports an action that could not be completed on an element.
type InteractionError struct {
	Locator Locator
	Action  string
	Err     error
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Action, e.Locator, e.Err)
}

func (e *InteractionError) Unwrap() error {
	return e.Err
}

// SessionError reports a failure to acquire, drive or release the browser.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("browser session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether a probe error may clear up on its own while
// the page keeps loading or re-rendering.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrElementNotFound) ||
		errors.Is(err, ErrStaleElement) ||
		errors.Is(err, ErrContextLost)
}

// ParseError maps a CDP or JavaScript error message onto a sentinel.
// It returns nil when the message is not recognised.
func ParseError(output string) error {
	lower := strings.ToLower(output)

	switch {
	case strings.Contains(lower, "execution context was destroyed"),
		strings.Contains(lower, "cannot find context with specified id"),
		strings.Contains(lower, "inspected target navigated or closed"):
		return ErrContextLost
	case strings.Contains(lower, "not attached to the document"),
		strings.Contains(lower, "node with given id does not belong"),
		strings.Contains(lower, "could not find node with given id"),
		strings.Contains(lower, "did not return any nodes"),
		strings.Contains(lower, "stale"):
		return ErrStaleElement
	case strings.Contains(lower, "not found"):
		return ErrElementNotFound
	case strings.Contains(lower, "not visible"):
		return ErrElementNotVisible
	case strings.Contains(lower, "not enabled") || strings.Contains(lower, "disabled"):
		return ErrElementNotEnabled
	case strings.Contains(lower, "net::err_"):
		return ErrNavigationFailed
	default:
		return nil
	}
}

// classify wraps err with the sentinel ParseError recognises in its message,
// keeping the original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if sentinel := ParseError(err.Error()); sentinel != nil && !errors.Is(err, sentinel) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}
