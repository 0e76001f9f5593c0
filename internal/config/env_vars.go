package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "BIMI"

const (
	KeyAppName           = "app_name"
	KeyEnv               = "env"
	KeyLogLevel          = "log_level"
	KeyProfileDir        = "profile_dir"
	KeyAPIBaseURL        = "api_base_url"
	KeyHTTPTimeout       = "http_timeout"
	KeyIdleTimeout       = "idle_timeout"
	KeySessionPassphrase = "session_passphrase"
	KeyPort              = "port"
)

const (
	DefaultAPIBaseURL  = "https://bimixapi.budgit.org"
	DefaultIdleTimeout = 15 * time.Minute
	sessionFileName    = "session.json"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyAppName, "Bimi Admin")
	v.SetDefault(KeyEnv, "DEV")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyProfileDir, defaultProfileDir())
	v.SetDefault(KeyAPIBaseURL, DefaultAPIBaseURL)
	v.SetDefault(KeyHTTPTimeout, 30*time.Second)
	v.SetDefault(KeyIdleTimeout, DefaultIdleTimeout)
	v.SetDefault(KeySessionPassphrase, "")
	v.SetDefault(KeyPort, "8080")
}

func defaultProfileDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bimi-admin"
	}
	return filepath.Join(home, ".bimi-admin")
}

type EnvVars struct{ v *viper.Viper }

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(KeyAppName)
}

func (e EnvVars) GetEnv() string {
	env := strings.ToUpper(e.v.GetString(KeyEnv))
	if env == "" {
		return "DEV"
	}
	return env
}

func (e EnvVars) GetLogLevel() string {
	return e.v.GetString(KeyLogLevel)
}

// GetProfileDir is the directory holding the one session of this profile.
func (e EnvVars) GetProfileDir() string {
	return e.v.GetString(KeyProfileDir)
}

type API struct{ v *viper.Viper }

var _ APIConfig = API{}

// GetAPIBaseURL returns the backend base URL without a trailing slash
func (a API) GetAPIBaseURL() string {
	return strings.TrimRight(a.v.GetString(KeyAPIBaseURL), "/")
}

func (a API) GetHTTPTimeout() time.Duration {
	return durationOrDefault(a.v, KeyHTTPTimeout, 30*time.Second)
}

type Session struct{ v *viper.Viper }

var _ SessionConfig = Session{}

func (s Session) GetIdleTimeout() time.Duration {
	return durationOrDefault(s.v, KeyIdleTimeout, DefaultIdleTimeout)
}

func (s Session) GetSessionFile() string {
	return filepath.Join(s.v.GetString(KeyProfileDir), sessionFileName)
}

// GetSessionPassphrase enables at-rest encryption of the session file when set.
func (s Session) GetSessionPassphrase() string {
	return s.v.GetString(KeySessionPassphrase)
}

type Server struct{ v *viper.Viper }

var _ ServerConfig = Server{}

func (s Server) GetPort() string {
	port := s.v.GetString(KeyPort)
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

// durationOrDefault falls back when the value is missing or not positive.
func durationOrDefault(v *viper.Viper, key string, def time.Duration) time.Duration {
	d := v.GetDuration(key)
	if d <= 0 {
		return def
	}
	return d
}
