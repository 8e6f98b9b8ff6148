package config

import (
	stderrors "errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Environment holds process-level settings read from environment variables.
// Empty log settings fall back to the telemetry preset named by Env.
type Environment struct {
	Env         string `env:"STATTWEAKS_ENV"          validate:"omitempty,oneof=default development production"`
	LogLevel    string `env:"STATTWEAKS_LOG_LEVEL"`
	LogFormat   string `env:"STATTWEAKS_LOG_FORMAT"`
	DataDir     string `env:"STATTWEAKS_DATA_DIR"     envDefault:"."`
	Profile     string `env:"STATTWEAKS_PROFILE"`
	MetricsAddr string `env:"STATTWEAKS_METRICS_ADDR"`

	// CompensationFactor overrides the profile's refund factor when set.
	CompensationFactor *float64 `env:"STATTWEAKS_COMPENSATION_FACTOR" validate:"omitempty,gte=0,lt=1"`

	// DisableInventory turns the item grant off regardless of the profile.
	DisableInventory bool `env:"STATTWEAKS_DISABLE_INVENTORY"`
}

// LoadEnvironment reads Environment from the process environment and
// rejects values a profile would not accept.
func LoadEnvironment() (Environment, error) {
	var cfg Environment
	if err := env.Parse(&cfg); err != nil {
		return Environment{}, fmt.Errorf("parse env: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return Environment{}, fmt.Errorf("invalid environment: %s failed %q constraint (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return Environment{}, fmt.Errorf("invalid environment: %w", err)
	}
	return cfg, nil
}

// Apply overlays environment overrides onto a profile.
func (e Environment) Apply(p *Profile) {
	if e.CompensationFactor != nil {
		p.Compensation.Factor = *e.CompensationFactor
	}
	if e.DisableInventory {
		p.Inventory.Enabled = false
	}
}
