package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"parking-ledger/internal/parking"
)

const (
	DriverJSON   = "json"
	DriverBadger = "badger"
)

// dotEnvFile is read before environment overrides are applied. Variables
// already set in the process environment win.
var dotEnvFile = ".env"

type Config struct {
	Environment string             `toml:"environment"`
	Lot         LotConfig          `toml:"lot"`
	Rates       map[string]float64 `toml:"rates"`
	Storage     StorageConfig      `toml:"storage"`
	Reports     ReportsConfig      `toml:"reports"`
	Server      ServerConfig       `toml:"server"`
	Telemetry   TelemetryConfig    `toml:"telemetry"`
	Logs        LogsConfig         `toml:"logs"`
}

type LotConfig struct {
	TotalSpots int `toml:"total_spots"`
}

type StorageConfig struct {
	Driver    string `toml:"driver"`
	Path      string `toml:"path"`
	BadgerDir string `toml:"badger_dir"`
}

type ReportsConfig struct {
	Dir string `toml:"dir"`
	// Cron expression; empty disables scheduled exports.
	Schedule string `toml:"schedule"`
}

type ServerConfig struct {
	Port string `toml:"port"`
}

type TelemetryConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
	Endpoint    string `toml:"endpoint"`
}

type LogsConfig struct {
	Level string `toml:"level"`
}

func Default() *Config {
	return &Config{
		Environment: "development",
		Lot:         LotConfig{TotalSpots: 50},
		Rates: map[string]float64{
			"Car":   20,
			"Bike":  10,
			"Truck": 30,
			"SUV":   25,
		},
		Storage: StorageConfig{
			Driver:    DriverJSON,
			Path:      "parking_data.json",
			BadgerDir: "parking_data.badger",
		},
		Reports: ReportsConfig{Dir: "."},
		Server:  ServerConfig{Port: "8080"},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "parking-ledger",
			Endpoint:    "http://localhost:4318",
		},
		Logs: LogsConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, the TOML file at path (skipped
// when path is empty or the file does not exist), an optional .env file and
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", dotEnvFile, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.Storage.Driver = getEnv("PARKING_STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.Path = getEnv("PARKING_DATA_FILE", c.Storage.Path)
	c.Storage.BadgerDir = getEnv("PARKING_BADGER_DIR", c.Storage.BadgerDir)
	c.Reports.Dir = getEnv("PARKING_REPORT_DIR", c.Reports.Dir)
	c.Reports.Schedule = getEnv("PARKING_REPORT_SCHEDULE", c.Reports.Schedule)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Telemetry.ServiceName = getEnv("OTEL_SERVICE_NAME", c.Telemetry.ServiceName)
	c.Telemetry.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.Endpoint)
	c.Logs.Level = getEnv("LOG_LEVEL", c.Logs.Level)

	if v, ok := os.LookupEnv("PARKING_TOTAL_SPOTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PARKING_TOTAL_SPOTS: %w", err)
		}
		c.Lot.TotalSpots = n
	}

	if v, ok := os.LookupEnv("TELEMETRY_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TELEMETRY_ENABLED: %w", err)
		}
		c.Telemetry.Enabled = enabled
	}

	return nil
}

func (c *Config) validate() error {
	if c.Lot.TotalSpots <= 0 {
		return fmt.Errorf("lot.total_spots must be greater than 0")
	}

	switch c.Storage.Driver {
	case DriverJSON:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the json driver")
		}
	case DriverBadger:
		if c.Storage.BadgerDir == "" {
			return fmt.Errorf("storage.badger_dir is required for the badger driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	rates, err := canonicalRates(c.Rates)
	if err != nil {
		return err
	}
	c.Rates = rates

	return nil
}

// canonicalRates keys every rate by its vehicle class name, ignoring case.
// Defaults are spelled canonically, so a differently spelled key came from the
// file or environment and overrides them.
func canonicalRates(configured map[string]float64) (map[string]float64, error) {
	rates := make(map[string]float64, len(configured))
	for name, rate := range configured {
		class, err := parking.ParseVehicleClass(name)
		if err != nil {
			return nil, fmt.Errorf("unknown vehicle type %q in rates", name)
		}
		if rate <= 0 {
			return nil, fmt.Errorf("rate for %s must be greater than 0", class)
		}

		key := string(class)
		if _, set := rates[key]; set && name == key {
			continue
		}
		rates[key] = rate
	}
	return rates, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
