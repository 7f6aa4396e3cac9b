// Package config provides Viper-based configuration loading for the keeper daemon.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings for snapshot storage.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// DungeonConfig holds the dungeon layout limits.
type DungeonConfig struct {
	// MaxFloors is the hard ceiling on dungeon depth.
	MaxFloors int `mapstructure:"max_floors"`
	// MinX, MinY, MaxX, MaxY bound every floor's cell grid (inclusive).
	MinX int `mapstructure:"min_x"`
	MinY int `mapstructure:"min_y"`
	MaxX int `mapstructure:"max_x"`
	MaxY int `mapstructure:"max_y"`
}

// SimConfig holds the simulation tunables.
type SimConfig struct {
	// TickInterval is the frame duration of the simulation loop.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// HourInterval is the wall-clock duration of one game hour.
	HourInterval time.Duration `mapstructure:"hour_interval"`
	// StartHour is the game hour the clock starts at, in [0, 23].
	StartHour int `mapstructure:"start_hour"`
	// HealInterval is the minimum sim time between party healing pulses.
	HealInterval time.Duration `mapstructure:"heal_interval"`
	// HealAmount is the health restored per healer per pulse.
	HealAmount int `mapstructure:"heal_amount"`
	// CooperationRadius is the Chebyshev distance within which parties
	// recruit and opposing parties engage.
	CooperationRadius int `mapstructure:"cooperation_radius"`
	// PartyBonus scales aggregate attack power during engagements.
	PartyBonus float64 `mapstructure:"party_bonus"`
}

// ScriptingConfig holds the Lua wave director settings.
type ScriptingConfig struct {
	// WaveScript is the path to the wave director script. Empty disables it.
	WaveScript string `mapstructure:"wave_script"`
	// InstructionLimit caps Lua opcodes per callback. 0 uses the package default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dungeon   DungeonConfig   `mapstructure:"dungeon"`
	Sim       SimConfig       `mapstructure:"sim"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDungeon(c.Dungeon); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSim(c.Sim); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Scripting.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 0, got %d", c.Scripting.InstructionLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateDungeon(d DungeonConfig) error {
	var errs []string
	if d.MaxFloors < 1 {
		errs = append(errs, fmt.Sprintf("dungeon.max_floors must be >= 1, got %d", d.MaxFloors))
	}
	if d.MinX > d.MaxX {
		errs = append(errs, fmt.Sprintf("dungeon.min_x (%d) must not exceed dungeon.max_x (%d)", d.MinX, d.MaxX))
	}
	if d.MinY > d.MaxY {
		errs = append(errs, fmt.Sprintf("dungeon.min_y (%d) must not exceed dungeon.max_y (%d)", d.MinY, d.MaxY))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateSim(s SimConfig) error {
	var errs []string
	if s.TickInterval <= 0 {
		errs = append(errs, "sim.tick_interval must be > 0")
	}
	if s.HourInterval <= 0 {
		errs = append(errs, "sim.hour_interval must be > 0")
	}
	if s.StartHour < 0 || s.StartHour > 23 {
		errs = append(errs, fmt.Sprintf("sim.start_hour must be 0-23, got %d", s.StartHour))
	}
	if s.HealInterval <= 0 {
		errs = append(errs, "sim.heal_interval must be > 0")
	}
	if s.HealAmount < 0 {
		errs = append(errs, fmt.Sprintf("sim.heal_amount must be >= 0, got %d", s.HealAmount))
	}
	if s.CooperationRadius < 1 {
		errs = append(errs, fmt.Sprintf("sim.cooperation_radius must be >= 1, got %d", s.CooperationRadius))
	}
	if s.PartyBonus <= 0 {
		errs = append(errs, fmt.Sprintf("sim.party_bonus must be > 0, got %g", s.PartyBonus))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with KEEPER_ prefix
	v.SetEnvPrefix("KEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "keeper")
	v.SetDefault("database.password", "keeper")
	v.SetDefault("database.name", "keeper")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("dungeon.max_floors", 50)
	v.SetDefault("dungeon.min_x", -25)
	v.SetDefault("dungeon.min_y", -25)
	v.SetDefault("dungeon.max_x", 25)
	v.SetDefault("dungeon.max_y", 25)

	v.SetDefault("sim.tick_interval", "100ms")
	v.SetDefault("sim.hour_interval", "30s")
	v.SetDefault("sim.start_hour", 7)
	v.SetDefault("sim.heal_interval", "2s")
	v.SetDefault("sim.heal_amount", 10)
	v.SetDefault("sim.cooperation_radius", 3)
	v.SetDefault("sim.party_bonus", 1.5)

	v.SetDefault("scripting.instruction_limit", 0)
}
