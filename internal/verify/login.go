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

// LoginState is a stage of the progressive-disclosure login form.
type LoginState int

const (
	AccountMenuClosed LoginState = iota
	AccountMenuOpen
	LoginFormVisible
	EmailEmptyRejected
	EmailInvalidRejected
	EmailValid
	PasswordEmptyRejected
	LoginRejected
)

var loginStateNames = [...]string{
	AccountMenuClosed:     "AccountMenuClosed",
	AccountMenuOpen:       "AccountMenuOpen",
	LoginFormVisible:      "LoginFormVisible",
	EmailEmptyRejected:    "EmailEmptyRejected",
	EmailInvalidRejected:  "EmailInvalidRejected",
	EmailValid:            "EmailValid",
	PasswordEmptyRejected: "PasswordEmptyRejected",
	LoginRejected:         "LoginRejected",
}

func (s LoginState) String() string {
	if s < 0 || int(s) >= len(loginStateNames) {
		return fmt.Sprintf("LoginState(%d)", int(s))
	}
	return loginStateNames[s]
}

// Terminal reports whether s has no successor.
func (s LoginState) Terminal() bool { return s == LoginRejected }

// Next returns the only state s may advance to.
func (s LoginState) Next() (LoginState, bool) {
	if s < AccountMenuClosed || s >= LoginRejected {
		return s, false
	}
	return s + 1, true
}

// LoginMachine tracks the login form's progress. It only moves forward one
// state at a time.
type LoginMachine struct {
	state LoginState
}

// NewLoginMachine starts in AccountMenuClosed.
func NewLoginMachine() *LoginMachine {
	return &LoginMachine{state: AccountMenuClosed}
}

// State returns the current state.
func (m *LoginMachine) State() LoginState { return m.state }

// Check reports whether to is the successor of the current state without
// moving. Anything else returns a *TransitionError wrapping ErrSkippedState.
func (m *LoginMachine) Check(to LoginState) error {
	next, ok := m.state.Next()
	if !ok || to != next {
		return &TransitionError{From: m.state, To: to}
	}
	return nil
}

// Advance moves to to, which must pass Check.
func (m *LoginMachine) Advance(to LoginState) error {
	if err := m.Check(to); err != nil {
		return err
	}
	m.state = to
	return nil
}

// LoginParams configures LoginForm.
type LoginParams struct {
	AccountTrigger browser.Locator
	LoginIcon      browser.Locator
	EmailField     browser.Locator
	PasswordField  browser.Locator
	Submit         browser.Locator
	ErrorList      browser.Locator

	InvalidEmail string
	ValidEmail   string
	Password     string

	// RequiredMessage is the browser's native message for an empty
	// required field; it depends on the browser UI language.
	RequiredMessage string
	// InvalidCredentialsMessage must appear in the server's error list.
	InvalidCredentialsMessage string

	// Timeout bounds each wait; zero uses the interactor default.
	Timeout time.Duration
}

// loginRun carries the element handles transitions hand to each other.
type loginRun struct {
	p        LoginParams
	env      Env
	email    browser.ElementHandle
	password browser.ElementHandle
}

type loginTransition struct {
	to  LoginState
	run func(r *loginRun, ctx context.Context) error
}

// loginTransitions are the form's transitions in the only supported order.
// Each one ends by waiting for the element the next one acts on.
var loginTransitions = []loginTransition{
	{AccountMenuOpen, (*loginRun).openAccountMenu},
	{LoginFormVisible, (*loginRun).openLoginForm},
	{EmailEmptyRejected, (*loginRun).submitEmptyEmail},
	{EmailInvalidRejected, (*loginRun).submitInvalidEmail},
	{EmailValid, (*loginRun).enterValidEmail},
	{PasswordEmptyRejected, (*loginRun).submitEmptyPassword},
	{LoginRejected, (*loginRun).submitWrongPassword},
}

// LoginForm drives the login form from a closed account menu to a rejected
// login, asserting the native validation feedback on the way. The first
// failing transition aborts the step; no alternate path is tried.
func LoginForm(p LoginParams) Step {
	return Step{
		Name: StepLoginForm,
		Run: func(ctx context.Context, env Env) (string, error) {
			return driveLogin(ctx, env, p, loginTransitions)
		},
	}
}

// driveLogin runs transitions in order. Each target state is checked
// against the machine before its actions touch the page.
func driveLogin(ctx context.Context, env Env, p LoginParams, transitions []loginTransition) (string, error) {
	m := NewLoginMachine()
	r := &loginRun{p: p, env: env}
	for _, t := range transitions {
		from := m.State()
		transition := from.String() + " -> " + t.to.String()
		if err := m.Check(t.to); err != nil {
			return "", &VerificationError{Step: StepLoginForm, Transition: transition, Err: err}
		}
		if err := t.run(r, ctx); err != nil {
			return "", &VerificationError{Step: StepLoginForm, Transition: transition, Err: err}
		}
		if err := m.Advance(t.to); err != nil {
			return "", &VerificationError{Step: StepLoginForm, Transition: transition, Err: err}
		}
		env.logger().Debug("login transition", "from", from, "to", t.to)
	}
	return "reached " + m.State().String(), nil
}

func (r *loginRun) find(ctx context.Context, loc browser.Locator) (browser.ElementHandle, error) {
	return r.env.UI.Find(ctx, loc, wait.Visible, r.p.Timeout)
}

func (r *loginRun) openAccountMenu(ctx context.Context) error {
	if err := r.env.UI.ClickWithin(ctx, r.p.AccountTrigger, r.p.Timeout); err != nil {
		return err
	}
	_, err := r.find(ctx, r.p.LoginIcon)
	return err
}

func (r *loginRun) openLoginForm(ctx context.Context) error {
	if err := r.env.UI.ClickWithin(ctx, r.p.LoginIcon, r.p.Timeout); err != nil {
		return err
	}
	h, err := r.find(ctx, r.p.EmailField)
	if err != nil {
		return err
	}
	r.email = h
	return nil
}

// submit clicks the form's submit control and reads h's validation message.
func (r *loginRun) submit(ctx context.Context, h browser.ElementHandle) (string, error) {
	if err := r.env.UI.ClickWithin(ctx, r.p.Submit, r.p.Timeout); err != nil {
		return "", err
	}
	return r.env.UI.ReadNativeValidationMessage(ctx, h)
}

func (r *loginRun) submitEmptyEmail(ctx context.Context) error {
	if err := r.env.UI.Clear(ctx, r.p.EmailField); err != nil {
		return err
	}
	msg, err := r.submit(ctx, r.email)
	if err != nil {
		return err
	}
	return expectEqual("empty email validation message", r.p.RequiredMessage, msg)
}

func (r *loginRun) submitInvalidEmail(ctx context.Context) error {
	if err := r.env.UI.Type(ctx, r.p.EmailField, r.p.InvalidEmail, interact.Overwrite); err != nil {
		return err
	}
	msg, err := r.submit(ctx, r.email)
	if err != nil {
		return err
	}
	if !strings.Contains(msg, "@") || !strings.Contains(msg, r.p.InvalidEmail) {
		return &AssertionFailure{
			Expected: fmt.Sprintf("message about a missing '@' in %q", r.p.InvalidEmail),
			Actual:   msg,
			Message:  "invalid email validation message",
		}
	}
	return nil
}

func (r *loginRun) enterValidEmail(ctx context.Context) error {
	if err := r.env.UI.Type(ctx, r.p.EmailField, r.p.ValidEmail, interact.Overwrite); err != nil {
		return err
	}
	msg, err := r.env.UI.ReadNativeValidationMessage(ctx, r.email)
	if err != nil {
		return err
	}
	if err := expectEqual("valid email validation message", "", msg); err != nil {
		return err
	}
	h, err := r.find(ctx, r.p.PasswordField)
	if err != nil {
		return err
	}
	r.password = h
	return nil
}

func (r *loginRun) submitEmptyPassword(ctx context.Context) error {
	if err := r.env.UI.Clear(ctx, r.p.PasswordField); err != nil {
		return err
	}
	msg, err := r.submit(ctx, r.password)
	if err != nil {
		return err
	}
	return expectEqual("empty password validation message", r.p.RequiredMessage, msg)
}

func (r *loginRun) submitWrongPassword(ctx context.Context) error {
	if err := r.env.UI.Type(ctx, r.p.PasswordField, r.p.Password, interact.Overwrite); err != nil {
		return err
	}
	if err := r.env.UI.ClickWithin(ctx, r.p.Submit, r.p.Timeout); err != nil {
		return err
	}
	h, err := r.find(ctx, r.p.ErrorList)
	if err != nil {
		return err
	}
	if !strings.Contains(h.State.Text, r.p.InvalidCredentialsMessage) {
		return &AssertionFailure{
			Expected: r.p.InvalidCredentialsMessage,
			Actual:   h.State.Text,
			Message:  "login error list does not report invalid credentials",
		}
	}
	return nil
}

func expectEqual(what, expected, actual string) error {
	if expected != actual {
		return &AssertionFailure{Expected: expected, Actual: actual, Message: what}
	}
	return nil
}
