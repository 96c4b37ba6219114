package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for secretsd
type Config struct {
	// Database is the path to the SQLite database file
	Database string `yaml:"database"`

	// DefaultLabel is the label of the default collection
	DefaultLabel string `yaml:"default_label"`

	// LogFile is the path to the log file (empty for stderr)
	LogFile string `yaml:"log_file"`

	// Replace indicates whether to replace an existing secret-service provider
	Replace bool `yaml:"replace"`

	// ConfigPath is the path to the config file (set via CLI)
	ConfigPath string `yaml:"-"`

	// ShowVersion indicates whether to print version and exit
	ShowVersion bool `yaml:"-"`
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Database:     filepath.Join(homeDir, ".local/share/secretsd/secrets.db"),
		DefaultLabel: "Default",
	}
}

// Load loads configuration from CLI flags, environment, and config file
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := flag.String("c", "", "Path to config file")
	flag.StringVar(configPath, "config", "", "Path to config file")
	database := flag.String("db", "", "Path to the database file")
	flag.StringVar(database, "database", "", "Path to the database file")
	replace := flag.Bool("r", false, "Replace existing secret-service provider")
	flag.BoolVar(replace, "replace", false, "Replace existing secret-service provider")
	version := flag.Bool("version", false, "Print version and exit")
	help := flag.Bool("h", false, "Show help message")
	flag.BoolVar(help, "help", false, "Show help message")

	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}

	cfg.ShowVersion = *version

	if *configPath != "" {
		cfg.ConfigPath = *configPath
	} else if envPath := os.Getenv("SECRETSD_CONFIG"); envPath != "" {
		cfg.ConfigPath = envPath
	} else {
		homeDir, _ := os.UserHomeDir()
		cfg.ConfigPath = filepath.Join(homeDir, ".config/secretsd/config.yaml")
	}

	if err := cfg.loadFromFile(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.applyEnv()

	// CLI flags override everything
	if *database != "" {
		cfg.Database = *database
	}
	if *replace {
		cfg.Replace = true
	}

	cfg.Database = expandPath(cfg.Database)
	cfg.LogFile = expandPath(cfg.LogFile)

	return cfg, nil
}

func (c *Config) loadFromFile() error {
	data, err := os.ReadFile(c.ConfigPath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SECRETSD_DATABASE"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("SECRETSD_DEFAULT_LABEL"); v != "" {
		c.DefaultLabel = v
	}
	if v := os.Getenv("SECRETSD_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("SECRETSD_REPLACE"); v == "true" || v == "1" {
		c.Replace = true
	}
}

func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

func printUsage() {
	fmt.Println(`secretsd - Secret Service daemon for the session bus

Usage:
  secretsd [options]

Options:
  -c, --config PATH    Path to config file (default: ~/.config/secretsd/config.yaml)
      --db, --database PATH
                       Path to the database file (default: ~/.local/share/secretsd/secrets.db)
  -r, --replace        Replace existing secret-service provider
      --version        Print version and exit
  -h, --help           Show help message

Environment variables:
  SECRETSD_CONFIG         Path to config file
  SECRETSD_DATABASE       Path to the database file
  SECRETSD_DEFAULT_LABEL  Label of the default collection
  SECRETSD_LOG_FILE       Log file path
  SECRETSD_REPLACE        Replace existing provider (true/1)`)
}
