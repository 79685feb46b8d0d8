package config

import (
	"os"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Server Server `yaml:"server"`
	Auth   Auth   `yaml:"auth"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Auth struct {
	// ProviderURL is the base URL of the external auth provider, used for
	// the userinfo fallback when a token carries no usable claims.
	ProviderURL string `yaml:"providerUrl"`
	// JwtSecret is the HS256 shared secret the provider signs tokens with.
	JwtSecret string `yaml:"jwtSecret"`
	// SessionChannel is the redis pubsub channel the provider publishes
	// session lifecycle events on.
	SessionChannel string `yaml:"sessionChannel"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Server.Listen == "" {
		config.Server.Listen = ":8000"
	}
	if config.Auth.SessionChannel == "" {
		config.Auth.SessionChannel = "dwell:session-events"
	}

	return config, nil
}
