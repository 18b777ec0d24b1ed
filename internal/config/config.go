// Package config implements layered configuration for pemacheck.
// Precedence: defaults < TOML file (--config or ./pemacheck.toml) < env (PEMACHECK_*) < flags.
package config

import (
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	Target  TargetConfig  `toml:"target" mapstructure:"target"`
	Browser BrowserConfig `toml:"browser" mapstructure:"browser"`
	Wait    WaitConfig    `toml:"wait" mapstructure:"wait"`
	Cookies CookiesConfig `toml:"cookies" mapstructure:"cookies"`
	Search  SearchConfig  `toml:"search" mapstructure:"search"`
	Login   LoginConfig   `toml:"login" mapstructure:"login"`
	Run     RunConfig     `toml:"run" mapstructure:"run"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`
}

// TargetConfig names the site under test.
type TargetConfig struct {
	URL           string `toml:"url" mapstructure:"url"`
	ExpectedTitle string `toml:"expected_title" mapstructure:"expected_title"` // substring of the document title
}

// BrowserConfig controls how the browser is started or attached to.
type BrowserConfig struct {
	ExecPath        string `toml:"exec_path" mapstructure:"exec_path"`
	CachePath       string `toml:"cache_path" mapstructure:"cache_path"`
	RemoteURL       string `toml:"remote_url" mapstructure:"remote_url"`
	InsecureTLS     bool   `toml:"insecure_tls" mapstructure:"insecure_tls"`
	Headless        bool   `toml:"headless" mapstructure:"headless"`
	WindowWidth     int    `toml:"window_width" mapstructure:"window_width"`
	WindowHeight    int    `toml:"window_height" mapstructure:"window_height"`
	Lang            string `toml:"lang" mapstructure:"lang"`
	UserDataDir     string `toml:"user_data_dir" mapstructure:"user_data_dir"`
	ActionTimeoutMs int    `toml:"action_timeout_ms" mapstructure:"action_timeout_ms"` // one CDP round trip
}

// WaitConfig tunes the wait engine.
type WaitConfig struct {
	TimeoutMs       int `toml:"timeout_ms" mapstructure:"timeout_ms"`
	PollIntervalMs  int `toml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	ActionTimeoutMs int `toml:"action_timeout_ms" mapstructure:"action_timeout_ms"` // wait before clicks and typing; 0 = timeout_ms
}

// CookiesConfig configures the consent banner step.
type CookiesConfig struct {
	Accept    string `toml:"accept" mapstructure:"accept"`
	TimeoutMs int    `toml:"timeout_ms" mapstructure:"timeout_ms"`
}

// SearchConfig configures the search step.
type SearchConfig struct {
	Field     string `toml:"field" mapstructure:"field"`
	Query     string `toml:"query" mapstructure:"query"`
	Result    string `toml:"result" mapstructure:"result"`
	Expected  string `toml:"expected" mapstructure:"expected"`
	TimeoutMs int    `toml:"timeout_ms" mapstructure:"timeout_ms"` // 0 = wait.timeout_ms
}

// LoginConfig configures the login form step.
type LoginConfig struct {
	AccountTrigger string `toml:"account_trigger" mapstructure:"account_trigger"`
	LoginIcon      string `toml:"login_icon" mapstructure:"login_icon"`
	EmailField     string `toml:"email_field" mapstructure:"email_field"`
	PasswordField  string `toml:"password_field" mapstructure:"password_field"`
	Submit         string `toml:"submit" mapstructure:"submit"`
	ErrorList      string `toml:"error_list" mapstructure:"error_list"`

	InvalidEmail string `toml:"invalid_email" mapstructure:"invalid_email"`
	ValidEmail   string `toml:"valid_email" mapstructure:"valid_email"`
	Password     string `toml:"password" mapstructure:"password"`

	RequiredMessage           string `toml:"required_message" mapstructure:"required_message"` // depends on browser.lang
	InvalidCredentialsMessage string `toml:"invalid_credentials_message" mapstructure:"invalid_credentials_message"`

	TimeoutMs int `toml:"timeout_ms" mapstructure:"timeout_ms"` // 0 = wait.timeout_ms
}

// RunConfig holds run-level outputs.
type RunConfig struct {
	ArtifactsDir   string `toml:"artifacts_dir" mapstructure:"artifacts_dir"`
	HistoryPath    string `toml:"history_path" mapstructure:"history_path"`
	HistoryEnabled bool   `toml:"history_enabled" mapstructure:"history_enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Format string `toml:"format" mapstructure:"format"` // auto | text | logfmt | json
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
