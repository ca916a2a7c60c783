// Package config holds the daemon's runtime configuration, grounded on
// the teacher's daemon/config.Config: a flat struct with a
// DefaultConfig constructor, overridden from the command line by
// cmd/server/main.go rather than parsed from a config file.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds server configuration.
type Config struct {
	GRPCAddress        string
	RESTAddress        string
	ObservabilityAddress string
	KeysDirectory      string
	TokenPolicyPath    string // empty disables bearer-token verification (spec.md §4.E)
	ChunkSize          int
	ChallengeTTL       time.Duration
	ChallengeRateLimit float64 // challenges/sec per peer
	ChallengeRateBurst int
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	keysDir := filepath.Join(homeDir, ".local", "share", "bastionlab", "keys")

	return &Config{
		GRPCAddress:          "127.0.0.1:50051",
		RESTAddress:          "127.0.0.1:8080",
		ObservabilityAddress: "127.0.0.1:9100",
		KeysDirectory:        keysDir,
		TokenPolicyPath:      "",
		ChunkSize:            32 * 1024,
		ChallengeTTL:         5 * time.Minute,
		ChallengeRateLimit:   5,
		ChallengeRateBurst:   10,
	}
}

// LoadConfig loads configuration from file (simplified - just returns
// default). In production this would parse a YAML/TOML file; for now
// cmd/server/main.go applies flag overrides on top of this.
func LoadConfig(configPath string) (*Config, error) {
	return DefaultConfig(), nil
}
