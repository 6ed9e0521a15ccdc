// Package config declares the environment-driven settings of the service. Values are parsed
// with caarlos0/env, clamped by Sanitize and checked by Validate.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AppConfig groups every setting. Each nested struct lives in the file named after it:
// database.go, http.go, services.go, pipeline.go and observability.go.
type AppConfig struct {
	// IsDev is set by DEV=true, or by APP_ENV=development when DEV is unset.
	IsDev bool `env:"DEV" envDefault:"false"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	Reference ReferenceConfig
	HTTP      HTTPConfig

	// Services is a comma-separated subset of http, engine and reaper.
	Services string `env:"SERVICES" envDefault:"http,engine"`

	Engine        EngineConfig
	Pipeline      PipelineConfig
	Reaper        ReaperConfig
	Observability ObservabilityConfig
}

// Sanitize clamps loaded values into their supported ranges.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Reference.Sanitize()
	c.Engine.Sanitize()
	c.Pipeline.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if !c.IsDev {
		switch strings.ToLower(os.Getenv("APP_ENV")) {
		case "development", "dev":
			c.IsDev = true
		}
	}
}

// Validate reports settings that Sanitize cannot repair, naming the variable at fault.
func (c *AppConfig) Validate() error {
	if c == nil {
		return errors.New("config is required")
	}
	if _, err := ParseServices(c.Services); err != nil {
		return fmt.Errorf("SERVICES: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c.Postgres); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("DB_%s failed %s", envName(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("database config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("database config: %w", err)
	}
	return nil
}

// EnabledServices parses Services.
func (c *AppConfig) EnabledServices() (ServiceSet, error) {
	return ParseServices(c.Services)
}

// Runs reports whether mode is enabled. An unparsable service list enables nothing.
func (c *AppConfig) Runs(mode ServiceMode) bool {
	set, err := c.EnabledServices()
	return err == nil && set.Has(mode)
}

// envName turns a Go field name such as SSLMode into SSL_MODE.
func envName(field string) string {
	var b strings.Builder
	runes := []rune(field)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if i > 0 && upper {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}
