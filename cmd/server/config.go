package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server settings. Flags provide the defaults; a YAML file
// given with -config overrides any field it sets.
type Config struct {
	HTTP        string        `yaml:"http"`
	GRPC        string        `yaml:"grpc"`
	Database    string        `yaml:"database"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
	Peers       []string      `yaml:"peers"`
	Verbose     bool          `yaml:"verbose"`
	Init        []string      `yaml:"init"`
	Jobs        []Job         `yaml:"jobs"`
}

// DSN returns the driver DSN for the configured database.
func (c Config) DSN() string {
	return fmt.Sprintf("mem://?name=%s&busy_timeout=%s", url.QueryEscape(c.Database), c.BusyTimeout)
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	var (
		c     Config
		peers string
		path  string
	)
	fs.StringVar(&c.HTTP, "http", ":8080", "HTTP listen address (empty to disable)")
	fs.StringVar(&c.GRPC, "grpc", ":9090", "gRPC listen address (empty to disable)")
	fs.StringVar(&c.Database, "db", "default", "Name of the in-memory database")
	fs.DurationVar(&c.BusyTimeout, "busy-timeout", 250*time.Millisecond, "How long a statement waits for the database lock")
	fs.StringVar(&peers, "peers", "", "Comma-separated list of gRPC peer addresses for federation (optional)")
	fs.BoolVar(&c.Verbose, "v", false, "Verbose logging")
	fs.StringVar(&path, "config", "", "YAML config file overriding flags")
	if err := fs.Parse(args); err != nil {
		return c, err
	}
	c.Peers = splitPeers(peers)
	if path != "" {
		if err := c.load(path); err != nil {
			return c, err
		}
	}
	return c, nil
}

// load overlays the YAML file at path onto c.
func (c *Config) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}
