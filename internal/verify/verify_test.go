package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VetrexCZ/pemacheck/internal/browser"
	"github.com/VetrexCZ/pemacheck/internal/browser/browsertest"
	"github.com/VetrexCZ/pemacheck/internal/interact"
	"github.com/VetrexCZ/pemacheck/internal/wait"
)

const (
	shopTitle       = "Autodíly, náhradní díly, motorové oleje, autobaterie, výfuky, levně"
	requiredMessage = "Please fill out this field."
	badCredentials  = "Neplatné přihlašovací údaje"
)

var plan = Plan{
	URL:           "https://www.autodily-pema.cz",
	ExpectedTitle: "Autodíly",
	Cookies: CookieParams{
		Accept:  browser.ByXPath("//*[@id='cookieConsent__buttonGrantAll']"),
		Timeout: 50 * time.Millisecond,
	},
	Search: SearchParams{
		Field:    browser.ByName("search"),
		Query:    "Brzdové destičky",
		Result:   browser.ByCSS("h2.heading.productInline__heading"),
		Expected: "Brzdové destičky",
	},
	Login: LoginParams{
		AccountTrigger:            browser.ByCSS(".headerAccount__trigger"),
		LoginIcon:                 browser.ByCSS(".headerAccount__login"),
		EmailField:                browser.ByName("email"),
		PasswordField:             browser.ByName("password"),
		Submit:                    browser.ByCSS("form.login button[type=submit]"),
		ErrorList:                 browser.ByCSS("form.login ul.errors"),
		InvalidEmail:              "test",
		ValidEmail:                "test@example.com",
		Password:                  "test",
		RequiredMessage:           requiredMessage,
		InvalidCredentialsMessage: badCredentials,
	},
}

func emailValidity(v string) string {
	switch {
	case v == "":
		return requiredMessage
	case !strings.Contains(v, "@"):
		return fmt.Sprintf("Please include an '@' in the email address. '%s' is missing an '@'.", v)
	default:
		return ""
	}
}

func passwordValidity(v string) string {
	if v == "" {
		return requiredMessage
	}
	return ""
}

// newShop scripts the storefront: a cookie banner, a search box that shows
// a result heading on Enter, and a login form that rejects every submission.
func newShop() *browsertest.Page {
	p := browsertest.NewPage(shopTitle)
	l := plan.Login

	p.Put(plan.Cookies.Accept, browsertest.Element{Visible: true, Tag: "button"})
	p.OnClick(plan.Cookies.Accept, func(p *browsertest.Page) { p.Remove(plan.Cookies.Accept) })

	p.Put(plan.Search.Field, browsertest.Element{Visible: true, Tag: "input"})
	p.OnEnter(plan.Search.Field, func(p *browsertest.Page) {
		el, _ := p.Element(plan.Search.Field)
		p.PutAfter(20*time.Millisecond, plan.Search.Result, browsertest.Element{Visible: true, Text: el.Value + " Brembo"})
	})

	p.Put(l.AccountTrigger, browsertest.Element{Visible: true})
	p.OnClick(l.AccountTrigger, func(p *browsertest.Page) {
		p.PutAfter(10*time.Millisecond, l.LoginIcon, browsertest.Element{Visible: true})
	})
	p.OnClick(l.LoginIcon, func(p *browsertest.Page) {
		p.Put(l.EmailField, browsertest.Element{Visible: true, Tag: "input", Validate: emailValidity})
		p.Put(l.PasswordField, browsertest.Element{Visible: true, Tag: "input", Validate: passwordValidity})
		p.Put(l.Submit, browsertest.Element{Visible: true, Tag: "button"})
	})
	p.OnClick(l.Submit, func(p *browsertest.Page) {
		email, _ := p.Element(l.EmailField)
		password, _ := p.Element(l.PasswordField)
		if emailValidity(email.Value) != "" || passwordValidity(password.Value) != "" {
			return
		}
		p.PutAfter(20*time.Millisecond, l.ErrorList, browsertest.Element{Visible: true, Text: badCredentials + "."})
	})
	return p
}

func newEnv(page browser.Page) Env {
	waits := wait.New(page, wait.WithTimeout(200*time.Millisecond), wait.WithPollInterval(10*time.Millisecond))
	return Env{UI: interact.New(page, waits, 0, nil)}
}

func TestTitle(t *testing.T) {
	testCases := []struct {
		name     string
		title    string
		expected string
		wantErr  bool
	}{
		{"contains", shopTitle, "Autodíly", false},
		{"exact", shopTitle, shopTitle, false},
		{"missing", "Stránka nenalezena", "Autodíly", true},
		{"case sensitive", shopTitle, "autodíly", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Execute(context.Background(), newEnv(browsertest.NewPage(tc.title)), Title(tc.expected))
			if !tc.wantErr {
				require.NoError(t, err)
				assert.True(t, out.Passed())
				assert.Equal(t, tc.title, out.Detail)
				return
			}

			var ve *VerificationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, StepTitle, ve.Step)

			var af *AssertionFailure
			require.ErrorAs(t, err, &af)
			assert.Equal(t, tc.expected, af.Expected)
			assert.Equal(t, tc.title, af.Actual)
			assert.Equal(t, StatusFail, out.Status)
			assert.True(t, out.Counts())
		})
	}
}

func TestSearch(t *testing.T) {
	page := newShop()
	out, err := Execute(context.Background(), newEnv(page), Search(plan.Search))
	require.NoError(t, err)
	assert.True(t, out.Passed())
	assert.Contains(t, out.Detail, "Brzdové destičky")
	assert.Equal(t, []string{
		"clear name:search",
		`type name:search "Brzdové destičky"`,
		"enter name:search",
	}, page.Calls())
}

func TestSearchUnexpectedHeading(t *testing.T) {
	page := newShop()
	page.OnEnter(plan.Search.Field, func(p *browsertest.Page) {
		p.Show(plan.Search.Result, "Motorové oleje")
	})

	_, err := Execute(context.Background(), newEnv(page), Search(plan.Search))
	var af *AssertionFailure
	require.ErrorAs(t, err, &af)
	assert.Equal(t, "Motorové oleje", af.Actual)
}

func TestSearchHiddenHeading(t *testing.T) {
	page := newShop()
	page.OnEnter(plan.Search.Field, func(p *browsertest.Page) {
		p.Put(plan.Search.Result, browsertest.Element{Text: "Brzdové destičky ATE"})
	})

	_, err := Execute(context.Background(), newEnv(page), Search(plan.Search))

	var af *AssertionFailure
	require.ErrorAs(t, err, &af, "a hidden heading was observed, so it is not a timeout")
	assert.Equal(t, "hidden", af.Actual)
	assert.NotErrorIs(t, err, browser.ErrTimeout)
}

func TestSearchNoResults(t *testing.T) {
	page := newShop()
	page.OnEnter(plan.Search.Field, nil)

	p := plan.Search
	p.Timeout = 40 * time.Millisecond
	_, err := Execute(context.Background(), newEnv(page), Search(p))

	var ve *VerificationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, StepSearch, ve.Step)
	assert.ErrorIs(t, err, browser.ErrTimeout)
}

func TestCookieConsent(t *testing.T) {
	t.Run("banner shown", func(t *testing.T) {
		page := newShop()
		out, err := Execute(context.Background(), newEnv(page), CookieConsent(plan.Cookies))
		require.NoError(t, err)
		assert.True(t, out.Passed())
		_, still := page.Element(plan.Cookies.Accept)
		assert.False(t, still)
	})

	t.Run("banner absent soft-fails", func(t *testing.T) {
		page := browsertest.NewPage(shopTitle)
		out, err := Execute(context.Background(), newEnv(page), CookieConsent(plan.Cookies))
		require.NoError(t, err)
		assert.Equal(t, StatusFail, out.Status)
		assert.True(t, out.SoftFail)
		assert.False(t, out.Counts())
	})

	t.Run("other errors are fatal", func(t *testing.T) {
		page := newShop()
		require.NoError(t, page.Release())
		out, err := Execute(context.Background(), newEnv(page), CookieConsent(plan.Cookies))
		require.ErrorIs(t, err, browser.ErrSessionReleased)
		assert.False(t, out.SoftFail)
	})
}

func TestPageOpen(t *testing.T) {
	page := newShop()
	out, err := Execute(context.Background(), newEnv(page), PageOpen(plan.URL))
	require.NoError(t, err)
	assert.Equal(t, plan.URL, out.Detail)

	page.OnNavigate(func(p *browsertest.Page) { p.SetURL(plan.URL + "/cs/") })
	out, err = Execute(context.Background(), newEnv(page), PageOpen(plan.URL))
	require.NoError(t, err)
	assert.Equal(t, plan.URL+"/cs/", out.Detail, "detail is where the browser landed")

	page.FailNavigation(errors.New("net::ERR_NAME_NOT_RESOLVED"))
	_, err = Execute(context.Background(), newEnv(page), PageOpen(plan.URL))
	var ve *VerificationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, StepPageOpen, ve.Step)
	assert.ErrorIs(t, err, browser.ErrNavigationFailed)
}

func TestLoginForm(t *testing.T) {
	page := newShop()
	out, err := Execute(context.Background(), newEnv(page), LoginForm(plan.Login))
	require.NoError(t, err)
	assert.True(t, out.Passed())
	assert.Equal(t, "reached LoginRejected", out.Detail)

	password, _ := page.Element(plan.Login.PasswordField)
	assert.Equal(t, "test", password.Value)
	email, _ := page.Element(plan.Login.EmailField)
	assert.Equal(t, "test@example.com", email.Value)
}

func TestLoginFormTransitionFailures(t *testing.T) {
	l := plan.Login
	testCases := []struct {
		name       string
		tamper     func(p *browsertest.Page)
		transition string
		assertion  bool
		timeout    bool
	}{
		{
			name: "unexpected required message",
			tamper: func(p *browsertest.Page) {
				p.OnClick(l.LoginIcon, func(p *browsertest.Page) {
					p.Put(l.EmailField, browsertest.Element{Visible: true, Validate: func(string) string { return "Vyplňte prosím toto pole." }})
					p.Put(l.Submit, browsertest.Element{Visible: true})
				})
			},
			transition: "LoginFormVisible -> EmailEmptyRejected",
			assertion:  true,
		},
		{
			name: "email without constraints",
			tamper: func(p *browsertest.Page) {
				p.OnClick(l.LoginIcon, func(p *browsertest.Page) {
					p.Put(l.EmailField, browsertest.Element{Visible: true, Validate: passwordValidity})
					p.Put(l.Submit, browsertest.Element{Visible: true})
				})
			},
			transition: "EmailEmptyRejected -> EmailInvalidRejected",
			assertion:  true,
		},
		{
			name: "login icon never shows",
			tamper: func(p *browsertest.Page) {
				p.OnClick(l.AccountTrigger, nil)
			},
			transition: "AccountMenuClosed -> AccountMenuOpen",
			timeout:    true,
		},
		{
			name: "server never answers",
			tamper: func(p *browsertest.Page) {
				p.OnClick(l.Submit, nil)
			},
			transition: "PasswordEmptyRejected -> LoginRejected",
			timeout:    true,
		},
		{
			name: "server answers with another error",
			tamper: func(p *browsertest.Page) {
				p.OnClick(l.Submit, func(p *browsertest.Page) {
					if pw, _ := p.Element(l.PasswordField); pw.Value != "" {
						p.Show(l.ErrorList, "Účet je zablokován.")
					}
				})
			},
			transition: "PasswordEmptyRejected -> LoginRejected",
			assertion:  true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page := newShop()
			tc.tamper(page)

			p := l
			p.Timeout = 60 * time.Millisecond
			out, err := Execute(context.Background(), newEnv(page), LoginForm(p))

			var ve *VerificationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, StepLoginForm, ve.Step)
			assert.Equal(t, tc.transition, ve.Transition)
			assert.Contains(t, out.Detail, tc.transition)

			var af *AssertionFailure
			assert.Equal(t, tc.assertion, errors.As(err, &af))
			assert.Equal(t, tc.timeout, errors.Is(err, browser.ErrTimeout))
		})
	}
}

func TestLoginMachineOrdering(t *testing.T) {
	m := NewLoginMachine()
	for _, to := range []LoginState{AccountMenuOpen, LoginFormVisible} {
		require.NoError(t, m.Advance(to))
	}

	// Submitting with both fields empty would jump straight to the password check
	err := m.Advance(PasswordEmptyRejected)
	require.ErrorIs(t, err, ErrSkippedState)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, LoginFormVisible, te.From)
	assert.Equal(t, PasswordEmptyRejected, te.To)
	assert.Equal(t, LoginFormVisible, m.State(), "a rejected advance leaves the state unchanged")
	assert.ErrorIs(t, m.Check(PasswordEmptyRejected), ErrSkippedState)
	require.NoError(t, m.Check(EmailEmptyRejected))
	assert.Equal(t, LoginFormVisible, m.State(), "Check never moves")

	testCases := []struct {
		name string
		to   LoginState
	}{
		{"stay", LoginFormVisible},
		{"backwards", AccountMenuOpen},
		{"out of range", LoginState(42)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, m.Advance(tc.to), ErrSkippedState)
		})
	}

	for _, to := range []LoginState{EmailEmptyRejected, EmailInvalidRejected, EmailValid, PasswordEmptyRejected, LoginRejected} {
		require.NoError(t, m.Advance(to))
	}
	assert.True(t, m.State().Terminal())
	assert.ErrorIs(t, m.Advance(LoginRejected), ErrSkippedState)
}

func TestLoginSkippedTransitionTouchesNothing(t *testing.T) {
	page := newShop()
	skipping := []loginTransition{
		{AccountMenuOpen, (*loginRun).openAccountMenu},
		{EmailEmptyRejected, (*loginRun).submitEmptyEmail},
	}

	_, err := driveLogin(context.Background(), newEnv(page), plan.Login, skipping)

	var ve *VerificationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "AccountMenuOpen -> EmailEmptyRejected", ve.Transition)
	assert.ErrorIs(t, err, ErrSkippedState)
	assert.Equal(t, []string{"click " + plan.Login.AccountTrigger.String()}, page.Calls(),
		"the submit button must not be clicked once the order is rejected")
}

func TestLoginTransitionsCoverEveryState(t *testing.T) {
	m := NewLoginMachine()
	for _, tr := range loginTransitions {
		require.NoError(t, m.Advance(tr.to), "transition to %s", tr.to)
	}
	assert.Equal(t, LoginRejected, m.State())
	assert.Equal(t, "LoginState(42)", LoginState(42).String())
}

func TestPlanStepsOrder(t *testing.T) {
	var names []string
	for _, s := range plan.Steps() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{StepPageOpen, StepCookieConsent, StepTitle, StepSearch, StepLoginForm}, names)
}
