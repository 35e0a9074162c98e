package config

import (
	"os"

	"github.com/go-yaml/yaml"
	"github.com/google/uuid"
)

type Config struct {
	Server Server `yaml:"server"`
	Import Import `yaml:"import"`
}

type Server struct {
	Listen         string `yaml:"listen"`
	PostgresDsn    string `yaml:"postgresDsn"`
	RedisAddr      string `yaml:"redisAddr"`
	RedisPassword  string `yaml:"redisPassword"`
	RedisDB        int    `yaml:"redisDB"`
	MemcachedAddr  string `yaml:"memcachedAddr"`
	WeaviateScheme string `yaml:"weaviateScheme"`
	WeaviateHost   string `yaml:"weaviateHost"`
	EnableTrace    bool   `yaml:"enableTrace"`
	TraceEndpoint  string `yaml:"traceEndpoint"`
}

type Import struct {
	// StreamlineImport trades per-tile audit entries and descriptor
	// rendering for bulk load throughput.
	StreamlineImport bool `yaml:"streamlineImport"`

	// SystemSettingsGraphID names the graph whose resources hold
	// installation configuration; they are never indexed for search.
	SystemSettingsGraphID string `yaml:"systemSettingsGraphID"`
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
	if config.Server.WeaviateScheme == "" {
		config.Server.WeaviateScheme = "http"
	}

	return config, nil
}

// SystemSettingsGraph parses the configured system-settings graph id, or
// returns uuid.Nil when unset.
func (c Config) SystemSettingsGraph() (uuid.UUID, error) {
	if c.Import.SystemSettingsGraphID == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(c.Import.SystemSettingsGraphID)
}
