package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk daemon configuration.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`

	// OwnerAddress and PlatformAddress seed the role state on first start.
	// Both are 0x-prefixed 20-byte hex addresses.
	OwnerAddress    string `toml:"OwnerAddress"`
	PlatformAddress string `toml:"PlatformAddress"`

	// LeaseRouting selects how lease payments move: "direct" pays the item
	// owner straight from the holder, "custody" routes through the vault and
	// cuts the platform commission first.
	LeaseRouting string `toml:"LeaseRouting"`

	Auth      AuthConfig      `toml:"Auth"`
	RateLimit RateLimitConfig `toml:"RateLimit"`
	Telemetry TelemetryConfig `toml:"Telemetry"`
	Genesis   GenesisConfig   `toml:"Genesis"`
}

// AuthConfig configures the gateway bearer-token check. The HMAC secret is
// never stored in the file; SecretEnv names the environment variable holding
// it.
type AuthConfig struct {
	Enabled   bool   `toml:"Enabled"`
	SecretEnv string `toml:"SecretEnv"`
	Audience  string `toml:"Audience"`
}

// Secret resolves the signing secret from the environment.
func (a AuthConfig) Secret() ([]byte, error) {
	if !a.Enabled {
		return nil, nil
	}
	env := strings.TrimSpace(a.SecretEnv)
	if env == "" {
		return nil, fmt.Errorf("config: Auth.SecretEnv must be set when auth is enabled")
	}
	secret := os.Getenv(env)
	if secret == "" {
		return nil, fmt.Errorf("config: environment variable %s is empty", env)
	}
	return []byte(secret), nil
}

// RateLimitConfig bounds the per-client request rate at the gateway.
type RateLimitConfig struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// TelemetryConfig configures tracing and metrics export.
type TelemetryConfig struct {
	ServiceName  string `toml:"ServiceName"`
	OTLPEndpoint string `toml:"OTLPEndpoint"`
	Insecure     bool   `toml:"Insecure"`
}

// GenesisConfig seeds the pricing configuration on an empty database.
type GenesisConfig struct {
	UnitPrice     string `toml:"UnitPrice"`
	CommissionBps uint32 `toml:"CommissionBps"`
	RoyaltyBps    uint32 `toml:"RoyaltyBps"`
	BaseURI       string `toml:"BaseURI"`
}

// Load reads the configuration from path, writing a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: unknown key %q in %s", undecoded[0].String(), path)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8651"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./curiodata"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "development"
	}
	if strings.TrimSpace(cfg.LeaseRouting) == "" {
		cfg.LeaseRouting = "direct"
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit.RequestsPerSecond = 50
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 100
	}
	if strings.TrimSpace(cfg.Telemetry.ServiceName) == "" {
		cfg.Telemetry.ServiceName = "curiod"
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
