package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VetrexCZ/pemacheck/internal/browser"
	"github.com/VetrexCZ/pemacheck/internal/browser/browsertest"
)

var (
	heading = browser.ByCSS("h2.heading")
	button  = browser.ByID("submit")
)

func TestAwaitSucceedsImmediately(t *testing.T) {
	page := browsertest.NewPage("shop")
	page.Show(heading, "Brzdové destičky")

	e := New(page)
	h, err := e.Await(context.Background(), VisibilityOf(heading), time.Second)
	require.NoError(t, err)
	assert.Equal(t, heading, h.Locator)
	assert.Equal(t, "Brzdové destičky", h.State.Text)
	assert.True(t, h.State.Visible)
}

func TestAwaitRetriesUntilElementAppears(t *testing.T) {
	page := browsertest.NewPage("shop")
	page.PutAfter(60*time.Millisecond, button, browsertest.Element{Visible: true})

	e := New(page, WithPollInterval(10*time.Millisecond))
	h, err := e.Await(context.Background(), ClickableOf(button), time.Second)
	require.NoError(t, err)
	assert.True(t, h.State.Enabled)
}

func TestAwaitToleratesTransientErrors(t *testing.T) {
	page := browsertest.NewPage("shop")
	page.Show(button, "Login")
	page.Fault(button, browser.ErrElementNotFound, browser.ErrStaleElement, browser.ErrContextLost)

	e := New(page, WithPollInterval(10*time.Millisecond))
	_, err := e.Await(context.Background(), PresenceOf(button), time.Second)
	require.NoError(t, err)
}

func TestAwaitStopsOnNonTransientError(t *testing.T) {
	page := browsertest.NewPage("shop")
	boom := errors.New("protocol error")
	page.Fault(button, boom)

	e := New(page, WithPollInterval(10*time.Millisecond))
	_, err := e.Await(context.Background(), PresenceOf(button), time.Second)
	require.ErrorIs(t, err, boom)

	var te *browser.TimeoutError
	assert.False(t, errors.As(err, &te), "non-transient errors must not look like timeouts")
}

func TestAwaitTimeoutIsBounded(t *testing.T) {
	testCases := []struct {
		name     string
		setup    func(p *browsertest.Page)
		cond     Condition
		timeout  time.Duration
		interval time.Duration
	}{
		{
			name:     "never present",
			setup:    func(p *browsertest.Page) {},
			cond:     PresenceOf(button),
			timeout:  80 * time.Millisecond,
			interval: 25 * time.Millisecond,
		},
		{
			name: "present but hidden",
			setup: func(p *browsertest.Page) {
				p.Put(button, browsertest.Element{Visible: false})
			},
			cond:     VisibilityOf(button),
			timeout:  50 * time.Millisecond,
			interval: 20 * time.Millisecond,
		},
		{
			name: "disabled",
			setup: func(p *browsertest.Page) {
				p.Put(button, browsertest.Element{Visible: true, Disabled: true})
			},
			cond:     ClickableOf(button),
			timeout:  50 * time.Millisecond,
			interval: 10 * time.Millisecond,
		},
		{
			name: "wrong text",
			setup: func(p *browsertest.Page) {
				p.Show(heading, "Oleje")
			},
			cond:     TextIn(heading, "Brzdy"),
			timeout:  40 * time.Millisecond,
			interval: 15 * time.Millisecond,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page := browsertest.NewPage("shop")
			tc.setup(page)
			e := New(page, WithPollInterval(tc.interval))

			start := time.Now()
			_, err := e.Await(context.Background(), tc.cond, tc.timeout)
			elapsed := time.Since(start)

			var te *browser.TimeoutError
			require.ErrorAs(t, err, &te)
			assert.ErrorIs(t, err, browser.ErrTimeout)
			assert.Equal(t, tc.cond.String(), te.Condition)
			assert.GreaterOrEqual(t, elapsed, tc.timeout)
			// generous slack for scheduler jitter on loaded CI machines
			assert.Less(t, elapsed, tc.timeout+tc.interval+50*time.Millisecond)
		})
	}
}

func TestAwaitTimeoutKeepsLastObservation(t *testing.T) {
	page := browsertest.NewPage("shop")
	page.Put(button, browsertest.Element{Visible: true, Disabled: true})

	e := New(page, WithPollInterval(10*time.Millisecond))
	_, err := e.Await(context.Background(), ClickableOf(button), 30*time.Millisecond)

	var te *browser.TimeoutError
	require.ErrorAs(t, err, &te)
	require.Error(t, te.Last)
	assert.Contains(t, te.Last.Error(), "disabled")
	assert.Contains(t, err.Error(), "id:submit to be clickable")
}

func TestAwaitHonoursContextCancellation(t *testing.T) {
	page := browsertest.NewPage("shop")
	e := New(page, WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := e.Await(ctx, PresenceOf(button), 5*time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	var te *browser.TimeoutError
	assert.False(t, errors.As(err, &te))
}

func TestAwaitArgumentValidation(t *testing.T) {
	e := New(browsertest.NewPage("shop"))

	_, err := e.Await(context.Background(), Condition{}, time.Second)
	assert.ErrorIs(t, err, browser.ErrInvalidLocator)

	_, err = e.Await(context.Background(), PresenceOf(button), -time.Second)
	assert.ErrorIs(t, err, ErrInvalidTimeout)
}

func TestAwaitZeroTimeoutUsesDefault(t *testing.T) {
	page := browsertest.NewPage("shop")
	e := New(page, WithTimeout(40*time.Millisecond), WithPollInterval(10*time.Millisecond))
	assert.Equal(t, 40*time.Millisecond, e.Timeout())

	start := time.Now()
	_, err := e.Await(context.Background(), PresenceOf(button), 0)
	require.ErrorIs(t, err, browser.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPollIntervalClamp(t *testing.T) {
	testCases := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"default on zero", 0, DefaultPollInterval},
		{"default on negative", -time.Second, DefaultPollInterval},
		{"clamped", time.Millisecond, MinPollInterval},
		{"kept", 250 * time.Millisecond, 250 * time.Millisecond},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := New(browsertest.NewPage(""), WithPollInterval(tc.in))
			assert.Equal(t, tc.want, e.PollInterval())
		})
	}
}

func TestConditionMet(t *testing.T) {
	visible := browser.ElementState{Present: true, Visible: true, Enabled: true, Text: "Přihlásit se"}
	hidden := browser.ElementState{Present: true, Enabled: true}
	disabled := browser.ElementState{Present: true, Visible: true}

	testCases := []struct {
		name string
		cond Condition
		st   browser.ElementState
		want bool
	}{
		{"presence on hidden", PresenceOf(button), hidden, true},
		{"presence on absent", PresenceOf(button), browser.ElementState{}, false},
		{"visible on hidden", VisibilityOf(button), hidden, false},
		{"visible on disabled", VisibilityOf(button), disabled, true},
		{"clickable on disabled", ClickableOf(button), disabled, false},
		{"clickable on visible", ClickableOf(button), visible, true},
		{"text match", TextIn(button, "Přihlásit"), visible, true},
		{"text mismatch", TextIn(button, "Odhlásit"), visible, false},
		{"text on hidden", TextIn(button, ""), hidden, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cond.Met(tc.st))
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Clickable ")
	require.NoError(t, err)
	assert.Equal(t, Clickable, k)

	_, err = ParseKind("hovered")
	assert.Error(t, err)
}
