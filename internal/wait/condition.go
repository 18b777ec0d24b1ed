package wait

import (
	"fmt"
	"strings"

	"github.com/VetrexCZ/pemacheck/internal/browser"
)

// Kind is the property a Condition expects of its element.
type Kind int

const (
	// Presence holds once the element exists in the DOM.
	Presence Kind = iota
	// Visible holds once the element exists and is rendered.
	Visible
	// Clickable holds once the element exists, is rendered and is enabled.
	Clickable
	// TextContains holds once the element is rendered and its text
	// contains Condition.Text.
	TextContains
)

func (k Kind) String() string {
	switch k {
	case Presence:
		return "present"
	case Visible:
		return "visible"
	case Clickable:
		return "clickable"
	case TextContains:
		return "text-contains"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a kind name as written in configuration.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "present", "presence":
		return Presence, nil
	case "visible":
		return Visible, nil
	case "clickable":
		return Clickable, nil
	case "text-contains", "text":
		return TextContains, nil
	default:
		return 0, fmt.Errorf("unknown wait kind %q (expected: present, visible, clickable or text-contains)", raw)
	}
}

// Condition is a predicate over the element a Locator resolves to.
type Condition struct {
	Locator browser.Locator
	Kind    Kind
	Text    string // only used by TextContains
}

// PresenceOf waits for loc to exist in the DOM.
func PresenceOf(loc browser.Locator) Condition {
	return Condition{Locator: loc, Kind: Presence}
}

// VisibilityOf waits for loc to be rendered.
func VisibilityOf(loc browser.Locator) Condition {
	return Condition{Locator: loc, Kind: Visible}
}

// ClickableOf waits for loc to be rendered and enabled.
func ClickableOf(loc browser.Locator) Condition {
	return Condition{Locator: loc, Kind: Clickable}
}

// TextIn waits for loc to be rendered with text containing substr.
func TextIn(loc browser.Locator, substr string) Condition {
	return Condition{Locator: loc, Kind: TextContains, Text: substr}
}

// Met reports whether st satisfies the condition.
func (c Condition) Met(st browser.ElementState) bool {
	if !st.Present {
		return false
	}
	switch c.Kind {
	case Presence:
		return true
	case Visible:
		return st.Visible
	case Clickable:
		return st.Visible && st.Enabled
	case TextContains:
		return st.Visible && strings.Contains(st.Text, c.Text)
	default:
		return false
	}
}

func (c Condition) String() string {
	if c.Kind == TextContains {
		return fmt.Sprintf("%s to contain text %q", c.Locator, c.Text)
	}
	return fmt.Sprintf("%s to be %s", c.Locator, c.Kind)
}

// describe summarises what a probe saw, for timeout messages.
func describe(st browser.ElementState) string {
	var b strings.Builder
	b.WriteString("element present")
	if !st.Visible {
		b.WriteString(", not visible")
	}
	if !st.Enabled {
		b.WriteString(", disabled")
	}
	if st.Text != "" {
		text := st.Text
		if len(text) > 80 {
			text = text[:77] + "..."
		}
		fmt.Fprintf(&b, ", text %q", text)
	}
	return b.String()
}
