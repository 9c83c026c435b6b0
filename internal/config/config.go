// Package config loads the worker configuration from an INI file with
// environment-variable overrides for the secret values.
//
// INI format:
//
//	[rabbitmq]
//	host = rabbit.example.org
//	port = 5672
//	username = worker
//	password = ...
//	queue = transfer-requests
//	prefetch_count = 2
//
//	[pulsar]
//	host = pulsar.example.org
//	port = 6650
//
//	[vault]
//	url = https://vault.example.org
//	token = ...
//	namespace = media
//	skip_verify = true
//
//	[destination]
//	number_parts = 4
//	free_space_percentage = 10
//	ssh_port = 22
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/ini.v1"
)

// Validation errors.
var (
	ErrMissingRabbitHost = errors.New("rabbitmq host is required")
	ErrMissingQueue      = errors.New("rabbitmq queue is required")
	ErrMissingPulsarHost = errors.New("pulsar host is required")
	ErrMissingVaultURL   = errors.New("vault url is required")
	ErrMissingVaultToken = errors.New("vault token is required")
)

// Config is the full worker configuration.
type Config struct {
	RabbitMQ    RabbitMQConfig
	Pulsar      PulsarConfig
	Vault       VaultConfig
	Destination DestinationConfig
}

// RabbitMQConfig configures the inbound queue consumer.
type RabbitMQConfig struct {
	Host          string `ini:"host"`
	Port          int    `ini:"port"`
	Username      string `ini:"username"`
	Password      string `ini:"password"`
	Queue         string `ini:"queue"`
	PrefetchCount int    `ini:"prefetch_count"`
}

// PulsarConfig configures the outcome event producer.
type PulsarConfig struct {
	Host string `ini:"host"`
	Port int    `ini:"port"`
}

// VaultConfig configures the secret store client.
type VaultConfig struct {
	URL        string `ini:"url"`
	Token      string `ini:"token"`
	Namespace  string `ini:"namespace"`
	SkipVerify bool   `ini:"skip_verify"`
}

// DestinationConfig holds the transfer defaults for the destination
// host.
type DestinationConfig struct {
	// NumberParts is the fan-out of a transfer. Default: 4.
	NumberParts int `ini:"number_parts"`
	// FreeSpacePercentage gates transfers on remote free space. Empty
	// or unparsable disables the check.
	FreeSpacePercentage string `ini:"free_space_percentage"`
	// SSHPort of the destination hosts. Default: 22.
	SSHPort int `ini:"ssh_port"`
}

// FreeSpaceThreshold parses the optional free-space percentage. Zero
// means the check is disabled.
func (c DestinationConfig) FreeSpaceThreshold() int {
	threshold, err := strconv.Atoi(c.FreeSpacePercentage)
	if err != nil || threshold < 0 {
		return 0
	}
	return threshold
}

// Load reads and validates the configuration file at path. The
// RABBITMQ_PASSWORD and VAULT_TOKEN environment variables override
// their file counterparts so secrets can stay out of the file.
func Load(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	cfg := &Config{
		RabbitMQ: RabbitMQConfig{
			Port:          5672,
			PrefetchCount: 1,
		},
		Pulsar:      PulsarConfig{Port: 6650},
		Destination: DestinationConfig{NumberParts: 4, SSHPort: 22},
	}
	if err := file.Section("rabbitmq").MapTo(&cfg.RabbitMQ); err != nil {
		return nil, fmt.Errorf("parse [rabbitmq]: %w", err)
	}
	if err := file.Section("pulsar").MapTo(&cfg.Pulsar); err != nil {
		return nil, fmt.Errorf("parse [pulsar]: %w", err)
	}
	if err := file.Section("vault").MapTo(&cfg.Vault); err != nil {
		return nil, fmt.Errorf("parse [vault]: %w", err)
	}
	if err := file.Section("destination").MapTo(&cfg.Destination); err != nil {
		return nil, fmt.Errorf("parse [destination]: %w", err)
	}

	if password := os.Getenv("RABBITMQ_PASSWORD"); password != "" {
		cfg.RabbitMQ.Password = password
	}
	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		cfg.Vault.Token = token
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the mandatory settings.
func (c *Config) Validate() error {
	if c.RabbitMQ.Host == "" {
		return ErrMissingRabbitHost
	}
	if c.RabbitMQ.Queue == "" {
		return ErrMissingQueue
	}
	if c.Pulsar.Host == "" {
		return ErrMissingPulsarHost
	}
	if c.Vault.URL == "" {
		return ErrMissingVaultURL
	}
	if c.Vault.Token == "" {
		return ErrMissingVaultToken
	}
	return nil
}
