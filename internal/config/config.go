// Package config loads and validates the service configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ardelhq/ebics-sync/internal/domain"
)

// ConnectionConfig describes one bank relationship
type ConnectionConfig struct {
	ID         string `yaml:"id"`
	HostID     string `yaml:"host_id"`
	PartnerID  string `yaml:"partner_id"`
	UserID     string `yaml:"user_id"`
	URL        string `yaml:"url"`
	Version    string `yaml:"version"`
	Passphrase string `yaml:"passphrase"`

	// OrderType is the statement download order (C53 or Z53)
	OrderType string `yaml:"order_type"`
}

// MatchingConfig holds the reconciliation policies
type MatchingConfig struct {
	// NumericOnly strips all non-digits from both sides before the
	// substring comparison of references
	NumericOnly bool `yaml:"numeric_only"`

	// IgnoreDiacritics compares references after removing diacritics and
	// special characters
	IgnoreDiacritics bool `yaml:"ignore_diacritics"`

	// NameDistanceMax is the maximum levenshtein distance accepted when
	// resolving a party by counterparty name (0 disables fuzzy resolution)
	NameDistanceMax int `yaml:"name_distance_max"`
}

// AccountsConfig names the ledger accounts settlements post against
type AccountsConfig struct {
	Bank           string `yaml:"bank"`
	Payable        string `yaml:"payable"`
	Receivable     string `yaml:"receivable"`
	PayrollPayable string `yaml:"payroll_payable"`
}

// SettlementConfig controls settlement materialization
type SettlementConfig struct {
	AutoSubmit bool           `yaml:"auto_submit"`
	Accounts   AccountsConfig `yaml:"accounts"`
}

// SyncConfig controls the sync loop
type SyncConfig struct {
	// AllowDateDrift tolerates the bank returning a statement whose
	// embedded date differs from the requested one (logged, not fatal).
	// When false, a drifted statement fails its payload.
	AllowDateDrift bool `yaml:"allow_date_drift"`
}

// Config is the root configuration
type Config struct {
	HomeCurrency string             `yaml:"home_currency"`
	KeyDir       string             `yaml:"key_dir"`
	Connections  []ConnectionConfig `yaml:"connections"`
	Matching     MatchingConfig     `yaml:"matching"`
	Settlement   SettlementConfig   `yaml:"settlement"`
	Sync         SyncConfig         `yaml:"sync"`
}

// Load reads and validates a YAML configuration file
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{
		Sync: SyncConfig{AllowDateDrift: true},
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields
func (c *Config) Validate() error {
	if c.HomeCurrency == "" {
		return &domain.ConfigurationError{Field: "home_currency", Reason: "must be set"}
	}
	if c.KeyDir == "" {
		return &domain.ConfigurationError{Field: "key_dir", Reason: "must be set"}
	}
	for i, cc := range c.Connections {
		if cc.ID == "" {
			return &domain.ConfigurationError{
				Field:  fmt.Sprintf("connections[%d].id", i),
				Reason: "must be set",
			}
		}
		if cc.HostID == "" || cc.PartnerID == "" || cc.UserID == "" {
			return &domain.ConfigurationError{
				Field:  fmt.Sprintf("connections[%d]", i),
				Reason: "host_id, partner_id and user_id must all be set",
			}
		}
		if cc.URL == "" {
			return &domain.ConfigurationError{
				Field:  fmt.Sprintf("connections[%d].url", i),
				Reason: "must be set",
			}
		}
	}
	return nil
}

// Connection returns the connection config with the given id
func (c *Config) Connection(id string) (*ConnectionConfig, error) {
	for i := range c.Connections {
		if c.Connections[i].ID == id {
			return &c.Connections[i], nil
		}
	}
	return nil, &domain.ConfigurationError{
		Field:  "connections",
		Reason: fmt.Sprintf("no connection with id %q", id),
	}
}
