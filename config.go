package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/tr4cks/atx-power/mqtt"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Username string            `yaml:"username" validate:"required"`
	Password string            `yaml:"password" validate:"required"`
	LogLevel string            `yaml:"log-level" validate:"omitempty,oneof=trace debug info warn error"`
	Http     HttpConfig        `yaml:"http"`
	Discord  *DiscordBotConfig `yaml:"discord"`
	Mqtt     *mqtt.Config      `yaml:"mqtt"`
	Module   map[string]interface{}
}

type HttpConfig struct {
	Addr     string `yaml:"addr" validate:"required,hostname_port"`
	Zeroconf bool   `yaml:"zeroconf"`
}

func defaultConfig() Config {
	return Config{
		LogLevel: "info",
		Http: HttpConfig{
			Addr: ":8080",
		},
	}
}

func parseYAMLFile(filePath string) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()
	config := defaultConfig()
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	err = decoder.Decode(&config)
	if err != nil {
		return nil, fmt.Errorf("error decoding YAML file %q: %w", filePath, err)
	}
	return &config, nil
}

func loadConfig(filePath string) (*Config, error) {
	config, err := parseYAMLFile(filePath)
	if err != nil {
		return nil, err
	}

	validate := validator.New()
	err = validate.Struct(config)
	if err != nil {
		return nil, fmt.Errorf("error during configuration validation: %w", err)
	}
	return config, nil
}

func parseConfigFile(filePath string) *Config {
	config, err := loadConfig(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration file %q: %s\n", filePath, err)
		os.Exit(1)
	}
	return config
}
