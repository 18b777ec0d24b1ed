package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/VetrexCZ/pemacheck/internal/browser"
	"github.com/VetrexCZ/pemacheck/internal/interact"
	"github.com/VetrexCZ/pemacheck/internal/wait"
)

// Step names, in run order.
const (
	StepPageOpen      = "page-open"
	StepCookieConsent = "cookie-consent"
	StepTitle         = "title"
	StepSearch        = "search"
	StepLoginForm     = "login-form"
)

// PageOpen navigates to url. It asserts nothing beyond the navigation
// itself succeeding; the detail is the location the browser ended up at,
// which differs from url after a redirect.
func PageOpen(url string) Step {
	return Step{
		Name: StepPageOpen,
		Run: func(ctx context.Context, env Env) (string, error) {
			if err := env.Page().Navigate(ctx, url); err != nil {
				return "", err
			}
			landed, err := env.Page().URL(ctx)
			if err != nil {
				return "", err
			}
			env.logger().Info("opened webpage", "url", url, "location", landed)
			return landed, nil
		},
	}
}

// CookieParams configures CookieConsent.
type CookieParams struct {
	Accept  browser.Locator
	Timeout time.Duration
}

// CookieConsent clicks the consent-grant control. A banner that never shows
// up within Timeout soft-fails the step.
func CookieConsent(p CookieParams) Step {
	return Step{
		Name:     StepCookieConsent,
		SoftFail: true,
		Run: func(ctx context.Context, env Env) (string, error) {
			if err := env.UI.ClickWithin(ctx, p.Accept, p.Timeout); err != nil {
				return "", err
			}
			return "consent granted", nil
		},
	}
}

// Title passes iff expected is a substring of the document title.
func Title(expected string) Step {
	return Step{
		Name: StepTitle,
		Run: func(ctx context.Context, env Env) (string, error) {
			title, err := env.Page().Title(ctx)
			if err != nil {
				return "", err
			}
			if !strings.Contains(title, expected) {
				return "", &AssertionFailure{
					Expected: expected,
					Actual:   title,
					Message:  "page title does not contain expected text",
				}
			}
			return title, nil
		},
	}
}

// SearchParams configures Search.
type SearchParams struct {
	Field    browser.Locator
	Query    string
	Result   browser.Locator
	Expected string
	Timeout  time.Duration // wait for the result heading; zero uses the interactor default
}

// Search types Query into Field, submits with Enter and expects the result
// heading to appear, be displayed and contain Expected. A heading that never
// appears is a timeout; one that is hidden or reads differently is an
// assertion failure.
func Search(p SearchParams) Step {
	return Step{
		Name: StepSearch,
		Run: func(ctx context.Context, env Env) (string, error) {
			if err := env.UI.Type(ctx, p.Field, p.Query, interact.Overwrite); err != nil {
				return "", err
			}
			if err := env.UI.SubmitViaKey(ctx, p.Field); err != nil {
				return "", err
			}
			h, err := env.UI.Find(ctx, p.Result, wait.Presence, p.Timeout)
			if err != nil {
				return "", err
			}
			if !h.State.Visible {
				return "", &AssertionFailure{
					Expected: "displayed",
					Actual:   "hidden",
					Message:  fmt.Sprintf("result heading %s is not displayed", p.Result),
				}
			}
			if !strings.Contains(h.State.Text, p.Expected) {
				return "", &AssertionFailure{
					Expected: p.Expected,
					Actual:   h.State.Text,
					Message:  fmt.Sprintf("search for %q returned unexpected heading", p.Query),
				}
			}
			return h.State.Text, nil
		},
	}
}

// Plan is everything a full run checks, in the order it checks it.
type Plan struct {
	URL           string
	ExpectedTitle string
	Cookies       CookieParams
	Search        SearchParams
	Login         LoginParams
}

// Steps returns the run's steps in declared order: page-open,
// cookie-consent, title, search, login-form.
func (p Plan) Steps() []Step {
	return []Step{
		PageOpen(p.URL),
		CookieConsent(p.Cookies),
		Title(p.ExpectedTitle),
		Search(p.Search),
		LoginForm(p.Login),
	}
}
