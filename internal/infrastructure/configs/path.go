package configs

import (
	"os"

	"github.com/hilthontt/convoy/internal/infrastructure/env"
)

// DetermineConfigPath resolves the config file from the --config flag value,
// then CONVOY_CONFIG, then well-known locations. An empty result means no
// file was found and Load runs on defaults and environment only.
func DetermineConfigPath(flagValue string) string {
	configPath := flagValue

	if configPath == "" {
		configPath = env.GetString("CONVOY_CONFIG", "")
	}

	if configPath == "" {
		candidates := []string{
			"./config.yaml",
			"./config.yml",
			"./tmp/config.yaml",
			"../../config.yaml", // keep for local dev
			"/etc/convoy/config.yaml",
			"/app/config.yaml", // common in Docker
		}

		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
