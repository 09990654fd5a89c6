package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardelhq/ebics-sync/internal/config"
	"github.com/ardelhq/ebics-sync/internal/domain"
)

const sampleConfig = `home_currency: CHF
key_dir: /var/lib/ebicsync/keys
connections:
  - id: conn-1
    host_id: TESTHOST
    partner_id: PARTNER1
    user_id: USER1
    url: https://ebics.example.test/ebicsweb
    version: H005
    passphrase: secret
    order_type: Z53
matching:
  numeric_only: true
  name_distance_max: 2
settlement:
  auto_submit: true
  accounts:
    bank: "1020"
    payable: "2000"
    receivable: "1100"
    payroll_payable: "2270"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HomeCurrency != "CHF" {
		t.Errorf("Expected home currency CHF, got %s", cfg.HomeCurrency)
	}
	if !cfg.Matching.NumericOnly || cfg.Matching.IgnoreDiacritics {
		t.Errorf("Unexpected matching config: %+v", cfg.Matching)
	}
	if cfg.Settlement.Accounts.PayrollPayable != "2270" {
		t.Errorf("Expected payroll account 2270, got %s", cfg.Settlement.Accounts.PayrollPayable)
	}

	// Date drift is tolerated unless explicitly disabled
	if !cfg.Sync.AllowDateDrift {
		t.Error("Expected allow_date_drift to default to true")
	}

	cc, err := cfg.Connection("conn-1")
	if err != nil {
		t.Fatalf("Connection: %v", err)
	}
	if cc.OrderType != "Z53" {
		t.Errorf("Expected order type Z53, got %s", cc.OrderType)
	}

	if _, err := cfg.Connection("missing"); err == nil {
		t.Error("Expected error for unknown connection id")
	}
}

func TestLoadRejectsIncompleteConnection(t *testing.T) {
	broken := `home_currency: CHF
key_dir: /tmp/keys
connections:
  - id: conn-1
    host_id: TESTHOST
    url: https://ebics.example.test/ebicsweb
`
	_, err := config.Load(writeConfig(t, broken))
	var ce *domain.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
}

func TestLoadRequiresHomeCurrency(t *testing.T) {
	_, err := config.Load(writeConfig(t, "key_dir: /tmp/keys\n"))
	var ce *domain.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
	if ce.Field != "home_currency" {
		t.Errorf("Expected home_currency field, got %s", ce.Field)
	}
}
