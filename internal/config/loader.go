package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rpattn/shiptrack/internal/db"
	"github.com/rpattn/shiptrack/internal/domain"
)

// Config is the full runtime configuration.
type Config struct {
	Warehouse       string
	IntervalSeconds int
	Retention       int
	SourceRetention int
	Outputs         []string
	ScansDir        string
	DeliveriesDir   string
	OutputDir       string
	ListenAddr      string
	StatusMapping   map[string]string
	DatabaseEnabled bool
	Database        db.Config
}

// Default returns the configuration used when no file or env overrides exist.
func Default() Config {
	return Config{
		Warehouse:       "E01",
		IntervalSeconds: 60,
		Retention:       5,
		SourceRetention: 5,
		Outputs:         []string{"aggregate", "delta"},
		ScansDir:        "./data/scans",
		DeliveriesDir:   "./data/deliveries",
		OutputDir:       "./data/output",
		ListenAddr:      ":8080",
		Database:        db.DefaultConfig(),
	}
}

// Load reads config.yaml from configPath, falling back to defaults, with
// environment overrides under the TRACKER prefix (TRACKER_WAREHOUSE,
// TRACKER_DATABASE_HOST, ...).
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("warehouse")
	v.BindEnv("interval_seconds")
	v.BindEnv("retention")
	v.BindEnv("source_retention")
	v.BindEnv("scans_dir")
	v.BindEnv("deliveries_dir")
	v.BindEnv("output_dir")
	v.BindEnv("listen_addr")
	v.BindEnv("database.enabled")
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")

	if err := v.ReadInConfig(); err != nil {
		log.Printf("[config] no config.yaml found, using defaults and env vars")
	} else {
		log.Printf("[config] loaded %s", v.ConfigFileUsed())
	}

	if v.IsSet("warehouse") {
		cfg.Warehouse = v.GetString("warehouse")
	}
	if v.IsSet("interval_seconds") {
		cfg.IntervalSeconds = v.GetInt("interval_seconds")
	}
	if v.IsSet("retention") {
		cfg.Retention = v.GetInt("retention")
	}
	if v.IsSet("source_retention") {
		cfg.SourceRetention = v.GetInt("source_retention")
	}
	if v.IsSet("outputs") {
		cfg.Outputs = v.GetStringSlice("outputs")
	}
	if v.IsSet("scans_dir") {
		cfg.ScansDir = v.GetString("scans_dir")
	}
	if v.IsSet("deliveries_dir") {
		cfg.DeliveriesDir = v.GetString("deliveries_dir")
	}
	if v.IsSet("output_dir") {
		cfg.OutputDir = v.GetString("output_dir")
	}
	if v.IsSet("listen_addr") {
		cfg.ListenAddr = v.GetString("listen_addr")
	}
	if v.IsSet("status_mapping") {
		cfg.StatusMapping = v.GetStringMapString("status_mapping")
	}
	if v.IsSet("database.enabled") {
		cfg.DatabaseEnabled = v.GetBool("database.enabled")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("interval_seconds must be positive, got %d", c.IntervalSeconds)
	}
	if c.Retention < 1 {
		return fmt.Errorf("retention must be at least 1, got %d", c.Retention)
	}
	for _, output := range c.Outputs {
		if output != "aggregate" && output != "delta" {
			return fmt.Errorf("unknown output kind %q", output)
		}
	}
	return nil
}

// Interval returns the cycle interval as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// WriteAggregate reports whether aggregate artifacts are enabled.
func (c Config) WriteAggregate() bool { return c.hasOutput("aggregate") }

// WriteDelta reports whether delta artifacts are enabled.
func (c Config) WriteDelta() bool { return c.hasOutput("delta") }

func (c Config) hasOutput(kind string) bool {
	for _, output := range c.Outputs {
		if output == kind {
			return true
		}
	}
	return false
}

// Mapping converts the configured status table into a StatusMapping,
// defaulting to the standard ASH/SHP codes when none is configured.
// Viper lowercases map keys, so codes are folded back to upper case to
// match the export's status column.
func (c Config) Mapping() domain.StatusMapping {
	if len(c.StatusMapping) == 0 {
		return domain.DefaultStatusMapping()
	}
	mapping := make(domain.StatusMapping, len(c.StatusMapping))
	for code, label := range c.StatusMapping {
		mapping[strings.ToUpper(code)] = domain.StatusClass(label)
	}
	return mapping
}
