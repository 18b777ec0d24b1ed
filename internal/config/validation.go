package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/VetrexCZ/pemacheck/internal/browser"
	"github.com/VetrexCZ/pemacheck/internal/logging"
)

// Validate checks the configuration for semantic errors.
func Validate(cfg Config) error {
	var errs []string

	if u, err := url.Parse(cfg.Target.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "target.url must be an absolute http(s) URL")
	}
	if cfg.Target.ExpectedTitle == "" {
		errs = append(errs, "target.expected_title cannot be empty")
	}

	if cfg.Browser.RemoteURL != "" && !hasScheme(cfg.Browser.RemoteURL, "ws", "wss", "http", "https") {
		errs = append(errs, "browser.remote_url must be a ws://, wss://, http:// or https:// URL")
	}
	if cfg.Browser.WindowWidth <= 0 || cfg.Browser.WindowHeight <= 0 {
		errs = append(errs, "browser.window_width and browser.window_height must be > 0")
	}
	if cfg.Browser.ActionTimeoutMs <= 0 {
		errs = append(errs, "browser.action_timeout_ms must be > 0")
	}

	if cfg.Wait.TimeoutMs <= 0 {
		errs = append(errs, "wait.timeout_ms must be > 0")
	}
	if cfg.Wait.PollIntervalMs <= 0 {
		errs = append(errs, "wait.poll_interval_ms must be > 0")
	}
	if cfg.Wait.ActionTimeoutMs < 0 {
		errs = append(errs, "wait.action_timeout_ms cannot be negative")
	}
	if cfg.Cookies.TimeoutMs <= 0 {
		errs = append(errs, "cookies.timeout_ms must be > 0")
	}
	if cfg.Search.TimeoutMs < 0 {
		errs = append(errs, "search.timeout_ms cannot be negative")
	}
	if cfg.Login.TimeoutMs < 0 {
		errs = append(errs, "login.timeout_ms cannot be negative")
	}

	for key, raw := range locatorKeys(cfg) {
		if _, err := browser.ParseLocator(raw); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}

	if cfg.Search.Query == "" {
		errs = append(errs, "search.query cannot be empty")
	}
	if cfg.Login.InvalidEmail == "" || strings.Contains(cfg.Login.InvalidEmail, "@") {
		errs = append(errs, "login.invalid_email must be non-empty and lack an '@'")
	}
	if !strings.Contains(cfg.Login.ValidEmail, "@") {
		errs = append(errs, "login.valid_email must contain an '@'")
	}
	if cfg.Login.Password == "" {
		errs = append(errs, "login.password cannot be empty")
	}
	if cfg.Login.RequiredMessage == "" || cfg.Login.InvalidCredentialsMessage == "" {
		errs = append(errs, "login.required_message and login.invalid_credentials_message cannot be empty")
	}

	if cfg.Run.HistoryEnabled && cfg.Run.HistoryPath == "" {
		errs = append(errs, "run.history_path cannot be empty when history is enabled")
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, "log.level: "+err.Error())
	}
	if _, err := logging.ParseFormat(cfg.Log.Format); err != nil {
		errs = append(errs, "log.format: "+err.Error())
	}

	if len(errs) > 0 {
		slices.Sort(errs)
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func locatorKeys(cfg Config) map[string]string {
	return map[string]string{
		"cookies.accept":        cfg.Cookies.Accept,
		"search.field":          cfg.Search.Field,
		"search.result":         cfg.Search.Result,
		"login.account_trigger": cfg.Login.AccountTrigger,
		"login.login_icon":      cfg.Login.LoginIcon,
		"login.email_field":     cfg.Login.EmailField,
		"login.password_field":  cfg.Login.PasswordField,
		"login.submit":          cfg.Login.Submit,
		"login.error_list":      cfg.Login.ErrorList,
	}
}

func hasScheme(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return true
		}
	}
	return false
}
