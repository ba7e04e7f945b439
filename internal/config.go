package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mdmemo/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// EnvPrefix is the prefix of environment variables that override the config file.
const EnvPrefix = "MDMEMO_"

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	Auth    AuthConfig        `yaml:"auth"`
	Seed    SeedConfig        `yaml:"seed"`
	Import  ImportConfig      `yaml:"import"`
	Events  EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Events.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig selects the persistence backend.
// Path is a database file for sqlite drivers and a directory for file and badger.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	drivers := make([]any, len(storage.Drivers))
	for i, d := range storage.Drivers {
		drivers[i] = d
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(drivers...)),
		validation.Field(&c.Path, validation.When(c.Driver != storage.DriverMemory, validation.Required)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//
// UserID and Email describe the single user reported by /api/me.
type AuthConfig struct {
	Mode   string `yaml:"mode"`
	Token  string `yaml:"token"`
	UserID string `yaml:"user_id"`
	Email  string `yaml:"email"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// SeedConfig controls the sample cards written into an empty store.
type SeedConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ImportConfig points at a directory of Markdown cards to import.
// When GitURL is set the directory is cloned or pulled first.
type ImportConfig struct {
	Dir    string `yaml:"dir"`
	GitURL string `yaml:"git_url"`
	Watch  bool   `yaml:"watch"`
}

// Enabled reports whether an import directory is configured.
func (c *ImportConfig) Enabled() bool {
	return c.Dir != ""
}

// EventsConfig tunes the SSE broker.
type EventsConfig struct {
	GraphThrottle time.Duration `yaml:"graph_throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GraphThrottle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Driver: storage.DriverSQLite,
			Path:   "./mdmemo.db",
		},
		Auth: AuthConfig{
			Mode:   AuthModeDisabled,
			UserID: "local",
		},
		Seed: SeedConfig{
			Enabled: true,
		},
		Events: EventsConfig{
			GraphThrottle: 2 * time.Second,
		},
	}
}
