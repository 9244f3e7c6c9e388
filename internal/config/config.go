package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers understood by the persistence layer.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all configuration for the point-of-sale service
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Store    StoreConfig    `yaml:"store"`
	POS      POSConfig      `yaml:"pos"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

// StoreConfig selects where snapshots are persisted
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// POSConfig holds terminal settings
type POSConfig struct {
	Timezone string `yaml:"timezone"`
	NodeID   int64  `yaml:"node_id"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		HTTP:  HTTPConfig{Port: 3000},
		Store: StoreConfig{Driver: DriverFile, Path: "data/pos.json"},
		POS:   POSConfig{Timezone: "Local", NodeID: 1},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "pos",
			Password: "pos",
			Database: "pos",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			User:     "guest",
			Password: "guest",
		},
	}
}

// Load reads configuration from a YAML file on top of Default, then applies
// .env and POS_* environment overrides. A missing file is not an error.
func Load(filename string) (*Config, error) {
	config := Default()

	file, err := os.Open(filename)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	default:
		defer file.Close()
		if err := config.parse(file); err != nil {
			return nil, err
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) parse(file *os.File) error {
	scanner := bufio.NewScanner(file)

	var currentSection string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			currentSection = strings.TrimSuffix(line, ":")
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		if err := c.setValue(currentSection, key, value); err != nil {
			return fmt.Errorf("failed to set config value %s.%s: %w", currentSection, key, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// setValue sets a configuration value based on section and key
func (c *Config) setValue(section, key, value string) error {
	switch section {
	case "http":
		return c.setHTTPValue(key, value)
	case "store":
		return c.setStoreValue(key, value)
	case "pos":
		return c.setPOSValue(key, value)
	case "database":
		return c.setDatabaseValue(key, value)
	case "rabbitmq":
		return c.setRabbitMQValue(key, value)
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func (c *Config) setHTTPValue(key, value string) error {
	switch key {
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port value: %w", err)
		}
		c.HTTP.Port = port
	default:
		return fmt.Errorf("unknown http key: %s", key)
	}
	return nil
}

func (c *Config) setStoreValue(key, value string) error {
	switch key {
	case "driver":
		c.Store.Driver = strings.ToLower(value)
	case "path":
		c.Store.Path = value
	default:
		return fmt.Errorf("unknown store key: %s", key)
	}
	return nil
}

func (c *Config) setPOSValue(key, value string) error {
	switch key {
	case "timezone":
		c.POS.Timezone = value
	case "node_id":
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid node_id value: %w", err)
		}
		c.POS.NodeID = id
	default:
		return fmt.Errorf("unknown pos key: %s", key)
	}
	return nil
}

// setDatabaseValue sets database configuration values
func (c *Config) setDatabaseValue(key, value string) error {
	switch key {
	case "host":
		c.Database.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port value: %w", err)
		}
		c.Database.Port = port
	case "user":
		c.Database.User = value
	case "password":
		c.Database.Password = value
	case "database":
		c.Database.Database = value
	default:
		return fmt.Errorf("unknown database key: %s", key)
	}
	return nil
}

// setRabbitMQValue sets RabbitMQ configuration values
func (c *Config) setRabbitMQValue(key, value string) error {
	switch key {
	case "enabled":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid enabled value: %w", err)
		}
		c.RabbitMQ.Enabled = enabled
	case "host":
		c.RabbitMQ.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port value: %w", err)
		}
		c.RabbitMQ.Port = port
	case "user":
		c.RabbitMQ.User = value
	case "password":
		c.RabbitMQ.Password = value
	default:
		return fmt.Errorf("unknown rabbitmq key: %s", key)
	}
	return nil
}

// envOverrides maps environment variables onto section.key pairs.
var envOverrides = []struct {
	env, section, key string
}{
	{"POS_HTTP_PORT", "http", "port"},
	{"POS_STORE_DRIVER", "store", "driver"},
	{"POS_STORE_PATH", "store", "path"},
	{"POS_TIMEZONE", "pos", "timezone"},
	{"POS_NODE_ID", "pos", "node_id"},
	{"POS_DB_HOST", "database", "host"},
	{"POS_DB_PORT", "database", "port"},
	{"POS_DB_USER", "database", "user"},
	{"POS_DB_PASSWORD", "database", "password"},
	{"POS_DB_NAME", "database", "database"},
	{"POS_RABBITMQ_ENABLED", "rabbitmq", "enabled"},
	{"POS_RABBITMQ_HOST", "rabbitmq", "host"},
	{"POS_RABBITMQ_PORT", "rabbitmq", "port"},
	{"POS_RABBITMQ_USER", "rabbitmq", "user"},
	{"POS_RABBITMQ_PASSWORD", "rabbitmq", "password"},
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, o := range envOverrides {
		value, ok := lookup(o.env)
		if !ok || value == "" {
			continue
		}
		if err := c.setValue(o.section, o.key, value); err != nil {
			return fmt.Errorf("invalid %s: %w", o.env, err)
		}
	}
	return nil
}

// Validate checks the values that cannot be defaulted sensibly.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverPostgres:
	case DriverFile, DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for driver %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port: %d", c.HTTP.Port)
	}
	if c.POS.NodeID < 0 || c.POS.NodeID > 1023 {
		return fmt.Errorf("pos.node_id must be between 0 and 1023, got %d", c.POS.NodeID)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves pos.timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.POS.Timezone == "" || c.POS.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.POS.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid pos.timezone: %w", err)
	}
	return loc, nil
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}
