package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/hexshield/internal/shielding"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Search struct {
		Workers          int           `env:"SEARCH_WORKERS" envDefault:"4"`
		DefaultPrecision float64       `env:"SEARCH_DEFAULT_PRECISION" envDefault:"0.01"`
		JobTTL           time.Duration `env:"SEARCH_JOB_TTL" envDefault:"1h"`
		MaxGrid          int           `env:"SEARCH_MAX_GRID" envDefault:"50000000"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		} else {
			cfg.Logging.Level = "info"
		}
	}

	if cfg.Search.Workers < 1 {
		return nil, fmt.Errorf("SEARCH_WORKERS must be at least 1, got %d", cfg.Search.Workers)
	}
	if cfg.Search.DefaultPrecision <= 0 {
		return nil, fmt.Errorf("SEARCH_DEFAULT_PRECISION must be positive, got %g", cfg.Search.DefaultPrecision)
	}
	if cfg.Search.MaxGrid < 1 {
		return nil, fmt.Errorf("SEARCH_MAX_GRID must be at least 1, got %d", cfg.Search.MaxGrid)
	}

	return cfg, nil
}

// Batch is the on-disk layout of a batch search file.
//
//	defaults:
//	  precision: 0.05
//	  fast: true
//	panels:
//	  - frequency_ghz: 2.45
//	    shielding_effectiveness: 20
//	    x_field: 20
//	    y_field: 20
type Batch struct {
	Defaults struct {
		Precision float64 `yaml:"precision"`
		Fast      bool    `yaml:"fast"`
	} `yaml:"defaults"`
	Panels []shielding.PanelParams `yaml:"panels"`
}

// LoadBatch reads a YAML batch file and returns one PanelParams per panel.
// Panels without a precision inherit the batch default, then
// defaultPrecision. The batch fast flag turns fast mode on for every panel.
func LoadBatch(path string, defaultPrecision float64) ([]shielding.PanelParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	return ParseBatch(data, defaultPrecision)
}

// ParseBatch decodes a batch document. See LoadBatch.
func ParseBatch(data []byte, defaultPrecision float64) ([]shielding.PanelParams, error) {
	var batch Batch
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	if len(batch.Panels) == 0 {
		return nil, fmt.Errorf("batch file defines no panels")
	}

	precision := batch.Defaults.Precision
	if precision == 0 {
		precision = defaultPrecision
	}

	out := make([]shielding.PanelParams, len(batch.Panels))
	for i, p := range batch.Panels {
		if p.Precision == 0 {
			p.Precision = precision
		}
		if batch.Defaults.Fast {
			p.Fast = true
		}
		out[i] = p
	}
	return out, nil
}
