package mirror

import (
	"fmt"
	"os"

	"github.com/WelcomerTeam/Mirror/discord"
	"gopkg.in/yaml.v3"
)

// TokenEnvironment is the environment variable the token is read from when
// the configuration does not set one.
const TokenEnvironment = "MIRROR_TOKEN"

// Configuration represents the configuration file.
type Configuration struct {
	Identifier string `json:"identifier" yaml:"identifier"`

	Gateway struct {
		URL      string `json:"url" yaml:"url"`
		Codec    string `json:"codec" yaml:"codec"`
		Compress bool   `json:"compress" yaml:"compress"`
	} `json:"gateway" yaml:"gateway"`

	Identify struct {
		Token       string                     `json:"-" yaml:"token"`
		Properties  discord.IdentifyProperties `json:"properties" yaml:"properties"`
		Presence    *discord.UpdateStatus      `json:"presence" yaml:"presence"`
		ClientState map[string]any             `json:"client_state" yaml:"client_state"`
	} `json:"identify" yaml:"identify"`

	REST struct {
		URL string `json:"url" yaml:"url"`
	} `json:"rest" yaml:"rest"`

	Features StaticFlags `json:"features" yaml:"features"`

	Logging struct {
		Level              string `json:"level" yaml:"level"`
		FileLoggingEnabled bool   `json:"file_logging_enabled" yaml:"file_logging_enabled"`

		EncodeAsJSON bool `json:"encode_as_json" yaml:"encode_as_json"`

		Directory  string `json:"directory" yaml:"directory"`
		Filename   string `json:"filename" yaml:"filename"`
		MaxSize    int    `json:"max_size" yaml:"max_size"`
		MaxBackups int    `json:"max_backups" yaml:"max_backups"`
		MaxAge     int    `json:"max_age" yaml:"max_age"`
		Compress   bool   `json:"compress" yaml:"compress"`
	} `json:"logging" yaml:"logging"`

	Producer struct {
		Type          string         `json:"type" yaml:"type"`
		Channel       string         `json:"channel" yaml:"channel"`
		Buffer        int            `json:"buffer" yaml:"buffer"`
		Configuration map[string]any `json:"configuration" yaml:"configuration"`
	} `json:"producer" yaml:"producer"`

	Store struct {
		// Type is memory or redis.
		Type   string `json:"type" yaml:"type"`
		Prefix string `json:"prefix" yaml:"prefix"`
		TTL    string `json:"ttl" yaml:"ttl"`

		// Limit caps the number of originals kept by the memory store.
		Limit int `json:"limit" yaml:"limit"`

		Redis struct {
			Address  string `json:"address" yaml:"address"`
			Password string `json:"-" yaml:"password"`
			DB       int    `json:"db" yaml:"db"`
		} `json:"redis" yaml:"redis"`
	} `json:"store" yaml:"store"`

	Prometheus struct {
		Address string `json:"address" yaml:"address"`
	} `json:"prometheus" yaml:"prometheus"`

	HTTP struct {
		Enabled bool   `json:"enabled" yaml:"enabled"`
		Host    string `json:"host" yaml:"host"`
	} `json:"http" yaml:"http"`
}

// LoadConfiguration reads and validates a configuration file.
func LoadConfiguration(path string) (configuration Configuration, err error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return configuration, fmt.Errorf("%w: %w", ErrReadConfigurationFailure, err)
	}

	return ParseConfiguration(file)
}

// ParseConfiguration decodes YAML configuration, filling the token from the
// environment when it is not set.
func ParseConfiguration(data []byte) (configuration Configuration, err error) {
	err = yaml.Unmarshal(data, &configuration)
	if err != nil {
		return configuration, fmt.Errorf("%w: %w", ErrLoadConfigurationFailure, err)
	}

	if configuration.Identify.Token == "" {
		configuration.Identify.Token = os.Getenv(TokenEnvironment)
	}

	if configuration.Identify.Token == "" {
		return configuration, fmt.Errorf("%w: %w", ErrLoadConfigurationFailure, ErrMissingToken)
	}

	if configuration.Identifier == "" {
		configuration.Identifier = "mirror"
	}

	if configuration.Gateway.URL == "" {
		configuration.Gateway.URL = DefaultGatewayURL
	}

	if configuration.REST.URL == "" {
		configuration.REST.URL = DefaultAPIURL
	}

	return configuration, nil
}
