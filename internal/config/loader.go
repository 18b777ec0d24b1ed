package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// LoadOptions controls configuration loading.
type LoadOptions struct {
	// WorkDir is searched for pemacheck.toml. Defaults to CWD when empty.
	WorkDir string
	// ConfigPath overrides the working directory file. Unlike the default
	// file it must exist.
	ConfigPath string
	// FlagOverrides are highest-priority overrides from CLI flags (dot-notated keys).
	FlagOverrides map[string]any
	// Getenv overrides os.Getenv.
	Getenv func(string) string
}

// Load returns the effective configuration after applying precedence:
// defaults < config file < env (PEMACHECK_*) < flags.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	path, required := opts.ConfigPath, true
	if path == "" {
		dir := opts.WorkDir
		if dir == "" {
			if cwd, err := os.Getwd(); err == nil {
				dir = cwd
			}
		}
		path, required = filepath.Join(dir, DefaultFileName), false
	}
	if err := mergeConfigFile(v, path, required); err != nil {
		return Config{}, err
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := applyEnvOverrides(v, getenv); err != nil {
		return Config{}, err
	}

	for k, val := range opts.FlagOverrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults seeds viper with built-in defaults.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("target.url", def.Target.URL)
	v.SetDefault("target.expected_title", def.Target.ExpectedTitle)

	v.SetDefault("browser.exec_path", def.Browser.ExecPath)
	v.SetDefault("browser.cache_path", def.Browser.CachePath)
	v.SetDefault("browser.remote_url", def.Browser.RemoteURL)
	v.SetDefault("browser.insecure_tls", def.Browser.InsecureTLS)
	v.SetDefault("browser.headless", def.Browser.Headless)
	v.SetDefault("browser.window_width", def.Browser.WindowWidth)
	v.SetDefault("browser.window_height", def.Browser.WindowHeight)
	v.SetDefault("browser.lang", def.Browser.Lang)
	v.SetDefault("browser.user_data_dir", def.Browser.UserDataDir)
	v.SetDefault("browser.action_timeout_ms", def.Browser.ActionTimeoutMs)

	v.SetDefault("wait.timeout_ms", def.Wait.TimeoutMs)
	v.SetDefault("wait.poll_interval_ms", def.Wait.PollIntervalMs)
	v.SetDefault("wait.action_timeout_ms", def.Wait.ActionTimeoutMs)

	v.SetDefault("cookies.accept", def.Cookies.Accept)
	v.SetDefault("cookies.timeout_ms", def.Cookies.TimeoutMs)

	v.SetDefault("search.field", def.Search.Field)
	v.SetDefault("search.query", def.Search.Query)
	v.SetDefault("search.result", def.Search.Result)
	v.SetDefault("search.expected", def.Search.Expected)
	v.SetDefault("search.timeout_ms", def.Search.TimeoutMs)

	v.SetDefault("login.account_trigger", def.Login.AccountTrigger)
	v.SetDefault("login.login_icon", def.Login.LoginIcon)
	v.SetDefault("login.email_field", def.Login.EmailField)
	v.SetDefault("login.password_field", def.Login.PasswordField)
	v.SetDefault("login.submit", def.Login.Submit)
	v.SetDefault("login.error_list", def.Login.ErrorList)
	v.SetDefault("login.invalid_email", def.Login.InvalidEmail)
	v.SetDefault("login.valid_email", def.Login.ValidEmail)
	v.SetDefault("login.password", def.Login.Password)
	v.SetDefault("login.required_message", def.Login.RequiredMessage)
	v.SetDefault("login.invalid_credentials_message", def.Login.InvalidCredentialsMessage)
	v.SetDefault("login.timeout_ms", def.Login.TimeoutMs)

	v.SetDefault("run.artifacts_dir", def.Run.ArtifactsDir)
	v.SetDefault("run.history_path", def.Run.HistoryPath)
	v.SetDefault("run.history_enabled", def.Run.HistoryEnabled)

	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
}

// mergeConfigFile merges the TOML config file. A missing file is only an
// error when required.
func mergeConfigFile(v *viper.Viper, path string, required bool) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}
	return nil
}

type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindInt
)

var envBindings = []struct {
	Env  string
	Key  string
	Kind valueKind
}{
	{"PEMACHECK_URL", "target.url", kindString},
	{"PEMACHECK_EXPECTED_TITLE", "target.expected_title", kindString},
	{"PEMACHECK_EXEC_PATH", "browser.exec_path", kindString},
	{"PEMACHECK_REMOTE_URL", "browser.remote_url", kindString},
	{"PEMACHECK_INSECURE_TLS", "browser.insecure_tls", kindBool},
	{"PEMACHECK_HEADLESS", "browser.headless", kindBool},
	{"PEMACHECK_LANG", "browser.lang", kindString},
	{"PEMACHECK_WAIT_TIMEOUT_MS", "wait.timeout_ms", kindInt},
	{"PEMACHECK_POLL_INTERVAL_MS", "wait.poll_interval_ms", kindInt},
	{"PEMACHECK_ACTION_TIMEOUT_MS", "wait.action_timeout_ms", kindInt},
	{"PEMACHECK_SEARCH_QUERY", "search.query", kindString},
	{"PEMACHECK_SEARCH_EXPECTED", "search.expected", kindString},
	{"PEMACHECK_LOGIN_EMAIL", "login.valid_email", kindString},
	{"PEMACHECK_LOGIN_PASSWORD", "login.password", kindString},
	{"PEMACHECK_ARTIFACTS_DIR", "run.artifacts_dir", kindString},
	{"PEMACHECK_HISTORY_PATH", "run.history_path", kindString},
	{"PEMACHECK_HISTORY_ENABLED", "run.history_enabled", kindBool},
	{"PEMACHECK_LOG_LEVEL", "log.level", kindString},
	{"PEMACHECK_LOG_FORMAT", "log.format", kindString},
}

// applyEnvOverrides reads PEMACHECK_* env vars and applies them.
func applyEnvOverrides(v *viper.Viper, getenv func(string) string) error {
	for _, binding := range envBindings {
		val := getenv(binding.Env)
		if val == "" {
			continue
		}
		parsed, err := parseValueByKind(val, binding.Kind)
		if err != nil {
			return fmt.Errorf("env %s: %w", binding.Env, err)
		}
		v.Set(binding.Key, parsed)
	}
	return nil
}

func parseValueByKind(raw string, kind valueKind) (any, error) {
	switch kind {
	case kindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected boolean: %w", err)
		}
		return v, nil
	case kindInt:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("expected integer: %w", err)
		}
		return v, nil
	default:
		return raw, nil
	}
}

// WriteTOML writes cfg to path. An existing file is only replaced when
// overwrite is set.
func WriteTOML(path string, cfg Config, overwrite bool) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !overwrite {
		flags = os.O_CREATE | os.O_WRONLY | os.O_EXCL
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("create config %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	enc.Indent = "  "
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Close()
}
