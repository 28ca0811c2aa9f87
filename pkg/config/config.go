package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/adrg/xdg"
	"github.com/caldev/caldav-mcp/pkg/caldav"
)

// AccountsEnvVar is the environment variable holding a JSON array of
// account registrations, for deployments that keep credentials out of the
// config file.
const AccountsEnvVar = "CALDAV_ACCOUNTS"

// Config is the caldav-mcp configuration.
type Config struct {
	Accounts []caldav.Account `json:"accounts"`
	MCP      struct {
		Tools map[string]bool `json:"tools"`
	} `json:"mcp"`
}

// Load reads the configuration from a JSON file.
// If path is empty, it searches for "caldav-mcp/config.json" in XDG config
// directories.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = xdg.SearchConfigFile("caldav-mcp/config.json")
		if err != nil {
			return nil, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseAccounts decodes a JSON array of {url, username, password} records,
// the CALDAV_ACCOUNTS format. Field-level validation happens at registry
// construction; this only rejects input that is not a list at all.
func ParseAccounts(data string) ([]caldav.Account, error) {
	var accounts []caldav.Account
	if err := json.Unmarshal([]byte(data), &accounts); err != nil {
		return nil, fmt.Errorf("parse %s: %w", AccountsEnvVar, err)
	}
	return accounts, nil
}

// AccountsFromEnv reads the CALDAV_ACCOUNTS variable. An unset variable
// yields no accounts and no error.
func AccountsFromEnv() ([]caldav.Account, error) {
	raw := os.Getenv(AccountsEnvVar)
	if raw == "" {
		return nil, nil
	}
	return ParseAccounts(raw)
}
