package mysql

import (
	"fmt"
	"time"
)

// Config carries MySQL connection and pool settings, bound from the yaml
// config file.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`

	// Pool settings. See https://github.com/go-sql-driver/mysql#important-settings
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
	// ConnMaxLifetime is not yaml-bound (yaml.v3 cannot decode duration
	// strings); the service defaults it at load time.
	ConnMaxLifetime time.Duration `yaml:"-"`

	// LogLevel: "silent", "error", "warn" or "info".
	LogLevel string `yaml:"log_level"`
}

// DSN builds the go-sql-driver connection string. parseTime is required
// so timestamp columns scan into time.Time.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
	)
}
