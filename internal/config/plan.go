package config

import (
	"time"

	"github.com/VetrexCZ/pemacheck/internal/browser"
	"github.com/VetrexCZ/pemacheck/internal/driver"
	"github.com/VetrexCZ/pemacheck/internal/verify"
	"github.com/VetrexCZ/pemacheck/internal/wait"
)

// Plan converts the step sections into verification parameters. Locators
// are parsed here, so a Plan never carries an invalid one.
func (c Config) Plan() (verify.Plan, error) {
	var (
		p   verify.Plan
		err error
	)
	parse := func(raw string) browser.Locator {
		if err != nil {
			return browser.Locator{}
		}
		var loc browser.Locator
		loc, err = browser.ParseLocator(raw)
		return loc
	}

	p.URL = c.Target.URL
	p.ExpectedTitle = c.Target.ExpectedTitle
	p.Cookies = verify.CookieParams{
		Accept:  parse(c.Cookies.Accept),
		Timeout: ms(c.Cookies.TimeoutMs),
	}
	p.Search = verify.SearchParams{
		Field:    parse(c.Search.Field),
		Query:    c.Search.Query,
		Result:   parse(c.Search.Result),
		Expected: c.Search.Expected,
		Timeout:  ms(c.Search.TimeoutMs),
	}
	p.Login = verify.LoginParams{
		AccountTrigger:            parse(c.Login.AccountTrigger),
		LoginIcon:                 parse(c.Login.LoginIcon),
		EmailField:                parse(c.Login.EmailField),
		PasswordField:             parse(c.Login.PasswordField),
		Submit:                    parse(c.Login.Submit),
		ErrorList:                 parse(c.Login.ErrorList),
		InvalidEmail:              c.Login.InvalidEmail,
		ValidEmail:                c.Login.ValidEmail,
		Password:                  c.Login.Password,
		RequiredMessage:           c.Login.RequiredMessage,
		InvalidCredentialsMessage: c.Login.InvalidCredentialsMessage,
		Timeout:                   ms(c.Login.TimeoutMs),
	}
	if err != nil {
		return verify.Plan{}, err
	}
	return p, nil
}

// DriverOptions returns the executable lookup settings. A remote browser
// needs no executable.
func (c Config) DriverOptions() driver.Options {
	return driver.Options{
		ExecPath:  c.Browser.ExecPath,
		CachePath: c.Browser.CachePath,
	}
}

// Session returns the browser session settings for execPath.
func (c Config) Session(execPath string) browser.Config {
	return browser.Config{
		ExecPath:     execPath,
		RemoteURL:    c.Browser.RemoteURL,
		InsecureTLS:  c.Browser.InsecureTLS,
		Headless:     c.Browser.Headless,
		WindowWidth:  c.Browser.WindowWidth,
		WindowHeight: c.Browser.WindowHeight,
		Lang:         c.Browser.Lang,
		UserDataDir:  c.Browser.UserDataDir,
		Timeout:      ms(c.Browser.ActionTimeoutMs),
	}
}

// WaitOptions returns the wait engine settings.
func (c Config) WaitOptions() []wait.Option {
	return []wait.Option{
		wait.WithTimeout(c.WaitTimeout()),
		wait.WithPollInterval(ms(c.Wait.PollIntervalMs)),
	}
}

// WaitTimeout is the default bound for every wait.
func (c Config) WaitTimeout() time.Duration {
	return ms(c.Wait.TimeoutMs)
}

// ActionTimeout bounds the wait before clicks and typing; zero leaves it to
// WaitTimeout.
func (c Config) ActionTimeout() time.Duration {
	return ms(c.Wait.ActionTimeoutMs)
}
