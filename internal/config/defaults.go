package config

import (
	"os"
	"path/filepath"

	"github.com/VetrexCZ/pemacheck/internal/driver"
)

// DefaultFileName is looked up in the working directory when no --config
// is given.
const DefaultFileName = "pemacheck.toml"

// DefaultConfig returns the built-in configuration for autodily-pema.cz.
func DefaultConfig() Config {
	return Config{
		Target: TargetConfig{
			URL:           "https://www.autodily-pema.cz",
			ExpectedTitle: "Autodíly, náhradní díly, motorové oleje, autobaterie, výfuky, levně",
		},
		Browser: BrowserConfig{
			CachePath:       driver.DefaultCachePath(),
			WindowWidth:     1920,
			WindowHeight:    1080,
			Lang:            "en-US",
			ActionTimeoutMs: 30000,
		},
		Wait: WaitConfig{
			TimeoutMs:      5000,
			PollIntervalMs: 100,
		},
		Cookies: CookiesConfig{
			Accept:    "xpath://*[@id='cookieConsent__buttonGrantAll']",
			TimeoutMs: 5000,
		},
		Search: SearchConfig{
			Field:    "name:search",
			Query:    "Brzdové destičky",
			Result:   "css:h2.heading.productInline__heading",
			Expected: "Brzdové destičky",
		},
		Login: LoginConfig{
			AccountTrigger:            "css:.headerAccount__trigger",
			LoginIcon:                 "css:.headerAccount__login",
			EmailField:                "name:email",
			PasswordField:             "name:password",
			Submit:                    "css:form.login button[type=submit]",
			ErrorList:                 "css:form.login ul.errors",
			InvalidEmail:              "test",
			ValidEmail:                "test@example.com",
			Password:                  "test",
			RequiredMessage:           "Please fill out this field.",
			InvalidCredentialsMessage: "Neplatné přihlašovací údaje",
		},
		Run: RunConfig{
			ArtifactsDir:   "artifacts",
			HistoryPath:    defaultHistoryPath(),
			HistoryEnabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".pemacheck", "history.db")
	}
	return filepath.Join(home, ".pemacheck", "history.db")
}
