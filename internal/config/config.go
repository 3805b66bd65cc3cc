// Package config loads trustlens settings.
//
// Values are layered lowest to highest: built-in defaults, an optional
// trustlens.yaml (working directory or an explicit path), TRUSTLENS_* environment
// variables, then any command-line flags bound to the returned viper instance.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/roach88/trustlens/internal/sched"
)

// EnvPrefix prefixes every environment variable, e.g. TRUSTLENS_BASE_URL.
const EnvPrefix = "TRUSTLENS"

// Mode selects the data source.
type Mode string

const (
	// ModeMock serves fixtures through the in-process simulator.
	ModeMock Mode = "mock"

	// ModeReal talks to a backend over HTTP.
	ModeReal Mode = "real"
)

// ResolveMode maps a raw setting to a Mode. Only "real" (any case) selects the
// real backend; anything else, including empty, is mock.
func ResolveMode(value string) Mode {
	if strings.EqualFold(strings.TrimSpace(value), string(ModeReal)) {
		return ModeReal
	}
	return ModeMock
}

// EffectiveMode gives a non-empty local override precedence over the
// environment default.
func EffectiveMode(envDefault, localOverride string) Mode {
	if strings.TrimSpace(localOverride) != "" {
		return ResolveMode(localOverride)
	}
	return ResolveMode(envDefault)
}

// Keys.
const (
	KeyMode                = "mode"
	KeyModeOverride        = "mode_override"
	KeyBaseURL             = "base_url"
	KeyFixturesRoot        = "fixtures_root"
	KeyScenario            = "scenario"
	KeyTimeout             = "timeout"
	KeyRetryAttempts       = "retry.attempts"
	KeyRetryInitial        = "retry.initial_backoff"
	KeyRetryMax            = "retry.max_backoff"
	KeyAdminToken          = "admin_token"
	KeyProduction          = "production"
	KeyBottleneckThreshold = "bottleneck_threshold"
	KeyListen              = "listen"
)

// Retry configures request and dataset retries.
type Retry struct {
	Attempts       int           `mapstructure:"attempts" validate:"gte=1,lte=10"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gte=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" validate:"gte=0"`
}

// Config is the resolved configuration.
type Config struct {
	// Mode is the environment default; ModeOverride, when set, wins over it.
	// Decode folds both into Mode.
	Mode         Mode   `mapstructure:"mode"`
	ModeOverride string `mapstructure:"mode_override"`

	// BaseURL is the backend origin, without the API prefix. Required in real mode.
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`

	// FixturesRoot is a directory holding scenarios/ and datasets/. Empty uses
	// the embedded fixtures.
	FixturesRoot string `mapstructure:"fixtures_root"`

	Scenario string        `mapstructure:"scenario"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Retry    Retry         `mapstructure:"retry"`

	AdminToken string `mapstructure:"admin_token"`

	// Production marks a production-like deployment, which refuses the
	// placeholder admin token.
	Production bool `mapstructure:"production"`

	BottleneckThreshold string `mapstructure:"bottleneck_threshold"`

	// Listen is the simulation server address.
	Listen string `mapstructure:"listen" validate:"required"`
}

// SetDefaults registers the default for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyMode, string(ModeMock))
	v.SetDefault(KeyModeOverride, "")
	v.SetDefault(KeyBaseURL, "")
	v.SetDefault(KeyFixturesRoot, "")
	v.SetDefault(KeyScenario, "happy")
	v.SetDefault(KeyTimeout, 15*time.Second)
	v.SetDefault(KeyRetryAttempts, 3)
	v.SetDefault(KeyRetryInitial, 200*time.Millisecond)
	v.SetDefault(KeyRetryMax, 5*time.Second)
	v.SetDefault(KeyAdminToken, "")
	v.SetDefault(KeyProduction, false)
	v.SetDefault(KeyBottleneckThreshold, "0.1")
	v.SetDefault(KeyListen, "127.0.0.1:8787")
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file into v and decodes the result. An
// explicit path must exist; otherwise trustlens.yaml in the working directory
// is used when present.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("trustlens")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if path != "" || !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return Decode(v)
}

// Decode converts the settings held by v into a validated Config.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Mode = EffectiveMode(string(cfg.Mode), cfg.ModeOverride)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if c.Mode == ModeReal && c.BaseURL == "" {
		return fmt.Errorf("invalid config: %s is required in %s mode", KeyBaseURL, ModeReal)
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Backoff returns the retry policy with the default jitter fraction.
func (c *Config) Backoff() sched.Backoff {
	b := sched.DefaultBackoff()
	b.Attempts = c.Retry.Attempts
	b.Initial = c.Retry.InitialBackoff
	b.Max = c.Retry.MaxBackoff
	return b
}
