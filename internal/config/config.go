// Package config loads the operator CLI settings and the dispatch server
// settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFileName = ".notifyctl.yaml"
	DefaultServerAddr     = "http://localhost:3000"
	DefaultGRPCAddr       = "localhost:50051"
)

// Config is the notifyctl client configuration.
type Config struct {
	ServerAddr string `yaml:"server_addr"`
	GRPCAddr   string `yaml:"grpc_addr"`
	APIKey     string `yaml:"api_key"`
}

func DefaultConfig() *Config {
	return &Config{
		ServerAddr: DefaultServerAddr,
		GRPCAddr:   DefaultGRPCAddr,
	}
}

func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server_addr is required")
	}
	if c.GRPCAddr == "" {
		return fmt.Errorf("grpc_addr is required")
	}
	return nil
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(home, DefaultConfigFileName)
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if addr := os.Getenv("NOTIFYCTL_SERVER_ADDR"); addr != "" {
		cfg.ServerAddr = addr
	}
	if addr := os.Getenv("NOTIFYCTL_GRPC_ADDR"); addr != "" {
		cfg.GRPCAddr = addr
	}
	if key := os.Getenv("NOTIFYCTL_API_KEY"); key != "" {
		cfg.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
