package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before they are mapped
// onto configuration keys.
const EnvPrefix = "CERT_"

// AppConfig holds configuration values parsed from defaults and the environment.
type AppConfig struct {
	// AcceptUntrustedCerts is the master switch. When false every override
	// query is answered by the original override service.
	AcceptUntrustedCerts bool `koanf:"accept_untrusted_certs"`

	// AssumeUntrustedIssuer pre-asserts the untrusted-issuer category for
	// every certificate.
	AssumeUntrustedIssuer bool `koanf:"assume_untrusted_issuer"`

	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Roots lists PEM bundles that replace the system trust pool. Empty
	// means use the system pool.
	Roots []string `koanf:"roots" validate:"omitempty,dive,required"`

	Store StoreConfig `koanf:"store" validate:"required"`
}

// StoreConfig configures the persistent override store.
type StoreConfig struct {
	// Path is the bbolt database file holding permanent overrides.
	Path string `koanf:"path" validate:"required"`

	// CacheSize bounds the lookup cache; 0 disables it.
	CacheSize int `koanf:"cache_size" validate:"gte=0"`

	// BloomFPRate is the target false-positive rate of the fingerprint filter.
	BloomFPRate float64 `koanf:"bloom_fp_rate" validate:"fp_rate"`
}

// DEFAULT_APP_CONFIG holds the defaults applied before the environment.
// Both policy switches default to true, matching an unset preference.
var DEFAULT_APP_CONFIG = AppConfig{
	AcceptUntrustedCerts:  true,
	AssumeUntrustedIssuer: true,
	Env:                   "prod",
	LogLevel:              "info",
	Store: StoreConfig{
		Path:        "/var/lib/rr-certoverride/overrides.db",
		CacheSize:   256,
		BloomFPRate: 0.01,
	},
}

// sections are the nested config blocks; CERT_STORE_CACHE_SIZE becomes
// store.cache_size.
var sections = []string{"store"}

// validFPRate accepts a probability strictly between 0 and 1.
func validFPRate(fl validator.FieldLevel) bool {
	p := fl.Field().Float()
	return p > 0 && p < 1
}

// envKey maps an environment variable name to a koanf path.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	for _, s := range sections {
		if strings.HasPrefix(key, s+"_") {
			return s + "." + strings.TrimPrefix(key, s+"_")
		}
	}
	return key
}

// listKeys are the config keys whose environment values hold a list.
var listKeys = map[string]bool{"roots": true}

// envLoader loads CERT_* variables. Values of list keys are split on spaces
// or commas; every other value is kept whole. It is a variable so tests can
// replace it.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = envKey(key)
			value = strings.TrimSpace(value)
			if listKeys[key] {
				return key, strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
			}
			return key, value
		},
	}), nil)
}

var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("fp_rate", validFPRate)
}

// loadKoanf layers defaults and environment into a fresh koanf instance.
func loadKoanf() (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}
	return k, nil
}

// Load returns a validated AppConfig.
func Load() (*AppConfig, error) {
	cfg, _, err := LoadWithPrefs()
	return cfg, err
}

// LoadWithPrefs returns the validated AppConfig together with a preference
// store over the same layered values.
func LoadWithPrefs() (*AppConfig, *Prefs, error) {
	k, err := loadKoanf()
	if err != nil {
		return nil, nil, err
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, NewPrefs(k), nil
}
