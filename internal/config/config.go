// Package config provides Viper-based configuration loading for the battle server and CLI.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/shinobi/internal/game/combat"
)

// DatabaseConfig holds PostgreSQL connection settings.
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

// GRPCConfig holds the battle service gRPC listener settings.
type GRPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (g GRPCConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// HTTPConfig holds the JSON API listener settings.
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Mode is the gin mode: "debug", "release" or "test".
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// ContentConfig locates the YAML content tree.
type ContentConfig struct {
	// Dir holds elements/, techniques/, equipment/ and powerstates/ subdirectories.
	// Empty means built-in content only.
	Dir string `mapstructure:"dir"`
}

// CombatConfig holds the engine balance constants and the attack selection strategy.
type CombatConfig struct {
	combat.Tuning `mapstructure:",squash"`
	// Selection is "uniform", "weighted" or "script".
	Selection combat.Selection `mapstructure:"selection"`
	// Script is the Lua selector file; required when Selection is "script".
	Script string `mapstructure:"script"`
}

// Config is the top-level application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Content  ContentConfig  `mapstructure:"content"`
	Combat   CombatConfig   `mapstructure:"combat"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, err := range []error{
		validateDatabase(c.Database),
		validateLogging(c.Logging),
		validateGRPC(c.GRPC),
		validateHTTP(c.HTTP),
		validateCombat(c.Combat),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
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

func validateGRPC(g GRPCConfig) error {
	var errs []string
	if g.Host == "" {
		errs = append(errs, "grpc.host must not be empty")
	}
	if g.Port < 1 || g.Port > 65535 {
		errs = append(errs, fmt.Sprintf("grpc.port must be 1-65535, got %d", g.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHTTP(h HTTPConfig) error {
	var errs []string
	if h.Port < 1 || h.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http.port must be 1-65535, got %d", h.Port))
	}
	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[h.Mode] {
		errs = append(errs, fmt.Sprintf("http.mode must be one of [debug, release, test], got %q", h.Mode))
	}
	if h.ReadTimeout < 0 {
		errs = append(errs, "http.read_timeout must not be negative")
	}
	if h.WriteTimeout < 0 {
		errs = append(errs, "http.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateCombat(c CombatConfig) error {
	var errs []string
	if err := c.Tuning.Validate(); err != nil {
		errs = append(errs, "combat: "+err.Error())
	}
	switch c.Selection {
	case combat.SelectionUniform, combat.SelectionWeighted:
	case combat.SelectionScript:
		if c.Script == "" {
			errs = append(errs, "combat.script must be set when combat.selection is script")
		}
	default:
		errs = append(errs, fmt.Sprintf("combat.selection must be one of [uniform, weighted, script], got %q", c.Selection))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
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

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path loads defaults and environment only.
//
// Precondition: path must be empty or a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with SHINOBI_ prefix
	v.SetEnvPrefix("SHINOBI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
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
	v.SetDefault("database.user", "shinobi")
	v.SetDefault("database.password", "shinobi")
	v.SetDefault("database.name", "shinobi")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("grpc.host", "127.0.0.1")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.mode", "release")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "10s")

	v.SetDefault("content.dir", "")

	t := combat.DefaultTuning()
	v.SetDefault("combat.pools.health_base", t.Pools.HealthBase)
	v.SetDefault("combat.pools.health_per_vitality", t.Pools.HealthPerVitality)
	v.SetDefault("combat.pools.resource_base", t.Pools.ResourceBase)
	v.SetDefault("combat.pools.resource_per_intelligence", t.Pools.ResourcePerIntelligence)
	for name, ct := range map[string]combat.CategoryTuning{
		"physical": t.Physical,
		"energy":   t.Energy,
		"illusion": t.Illusion,
	} {
		v.SetDefault("combat."+name+".attack_coefficient", ct.AttackCoefficient)
		v.SetDefault("combat."+name+".defense_reduction", ct.DefenseReduction)
	}
	v.SetDefault("combat.seal_bonus", t.SealBonus)
	v.SetDefault("combat.min_damage_percent", t.MinDamagePercent)
	v.SetDefault("combat.max_damage_percent_per_hit", t.MaxDamagePercentPerHit)
	v.SetDefault("combat.boss_dampener", t.BossDampener)
	v.SetDefault("combat.max_turns", t.MaxTurns)
	v.SetDefault("combat.tie_policy", string(t.TiePolicy))
	v.SetDefault("combat.selection", string(combat.SelectionUniform))
	v.SetDefault("combat.script", "")
}
