// Package config loads the engine configuration: the set of reachable
// databases, pool bounds, and execution limits. Sources are merged in
// viper's usual order: explicit file, search-path file, environment.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/satishbabariya/quarry/driver"
	"github.com/satishbabariya/quarry/pool"
)

var AppFs = afero.NewOsFs()

// Database is one configured database connection.
type Database struct {
	ID      int64          `mapstructure:"id"`
	Name    string         `mapstructure:"name"`
	Engine  string         `mapstructure:"engine"`
	Schema  string         `mapstructure:"schema"`
	Details map[string]any `mapstructure:"details"`
}

// Spec converts the entry to a pool spec.
func (d Database) Spec() pool.Spec {
	return pool.Spec{
		DatabaseID: d.ID,
		Engine:     d.Engine,
		Details:    driver.ConnectionDetails(d.Details),
	}
}

// Config is the full engine configuration.
type Config struct {
	Databases []Database `mapstructure:"databases"`

	Pool struct {
		MaxOpenConns    int           `mapstructure:"max_open_conns"`
		MaxIdleConns    int           `mapstructure:"max_idle_conns"`
		ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	} `mapstructure:"pool"`

	Cache struct {
		Enabled bool          `mapstructure:"enabled"`
		Size    int           `mapstructure:"size"`
		TTL     time.Duration `mapstructure:"ttl"`
	} `mapstructure:"cache"`

	Timeout time.Duration `mapstructure:"timeout"`
	MaxRows int           `mapstructure:"max_rows"`
	Verbose bool          `mapstructure:"verbose"`
}

// Load reads the configuration. With an explicit path the file must
// exist; otherwise the usual search paths are tried and a missing file
// just yields defaults.
func Load(path string) (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName(".quarry")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.AddConfigPath(filepath.Join(home, ".config", "quarry"))
	}

	viper.SetEnvPrefix("QUARRY")
	viper.AutomaticEnv()

	viper.SetDefault("pool.max_open_conns", pool.DefaultSettings.MaxOpenConns)
	viper.SetDefault("pool.max_idle_conns", pool.DefaultSettings.MaxIdleConns)
	viper.SetDefault("pool.conn_max_lifetime", pool.DefaultSettings.ConnMaxLifetime)
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.size", 256)
	viper.SetDefault("cache.ttl", time.Minute)
	viper.SetDefault("timeout", 5*time.Minute)
	viper.SetDefault("max_rows", 2000)
	viper.SetDefault("verbose", false)

	if err := viper.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		// No config file found on the search path; defaults apply.
	}

	// .env for connection credentials, .env.local overriding it.
	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// PoolSettings converts the pool section to pool manager settings.
func (c *Config) PoolSettings() pool.Settings {
	return pool.Settings{
		MaxOpenConns:    c.Pool.MaxOpenConns,
		MaxIdleConns:    c.Pool.MaxIdleConns,
		ConnMaxLifetime: c.Pool.ConnMaxLifetime,
	}
}

// Database finds a configured database by id.
func (c *Config) Database(id int64) (Database, bool) {
	for _, d := range c.Databases {
		if d.ID == id {
			return d, true
		}
	}
	return Database{}, false
}

// DatabaseByName finds a configured database by name.
func (c *Config) DatabaseByName(name string) (Database, bool) {
	for _, d := range c.Databases {
		if d.Name == name {
			return d, true
		}
	}
	return Database{}, false
}
