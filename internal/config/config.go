package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	ServerConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetProfileDir() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetHTTPTimeout() time.Duration
}

type SessionConfig interface {
	GetIdleTimeout() time.Duration
	GetSessionFile() string
	GetSessionPassphrase() string
}

type ServerConfig interface {
	GetPort() string
}

// Option customises how configuration is loaded.
type Option func(*loadOptions)

type loadOptions struct {
	envFiles   []string
	configFile string
	overrides  map[string]any
}

// WithEnvFile loads the given dotenv files instead of ./.env.
func WithEnvFile(paths ...string) Option {
	return func(o *loadOptions) {
		o.envFiles = paths
	}
}

// WithConfigFile reads a yaml/json/toml config file in addition to the environment.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) {
		o.configFile = path
	}
}

// WithOverride forces a key, taking precedence over file and environment (CLI flags).
func WithOverride(key string, value any) Option {
	return func(o *loadOptions) {
		o.overrides[key] = value
	}
}

type mainConfig struct {
	EnvVars
	API
	Session
	Server
}

func New(opts ...Option) Config {
	o := loadOptions{overrides: make(map[string]any)}
	for _, opt := range opts {
		opt(&o)
	}

	// Missing .env files are normal outside local development
	_ = godotenv.Load(o.envFiles...)

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			log.Warn().Err(err).Str("file", o.configFile).Msg("config file not loaded, using environment")
		}
	}
	for k, val := range o.overrides {
		v.Set(k, val)
	}

	return mainConfig{
		EnvVars: EnvVars{v: v},
		API:     API{v: v},
		Session: Session{v: v},
		Server:  Server{v: v},
	}
}
