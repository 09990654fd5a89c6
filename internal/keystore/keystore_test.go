package keystore_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardelhq/ebics-sync/internal/domain"
	"github.com/ardelhq/ebics-sync/internal/keystore"
)

func newStore(t *testing.T, pass string) *keystore.Store {
	t.Helper()
	dir := t.TempDir()
	return keystore.NewStore(dir, func(ref string) string { return pass })
}

func testConn() *domain.Connection {
	return &domain.Connection{ID: "conn-1", PassphraseRef: "ref-1"}
}

func TestGenerateKeysIsIdempotent(t *testing.T) {
	store := newStore(t, "secret")
	conn := testConn()

	if err := store.GenerateKeys(conn); err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	if !store.HasKeys(conn.ID) {
		t.Fatal("Expected key material to exist")
	}

	before, err := store.PublicDigests(conn.ID)
	if err != nil {
		t.Fatalf("PublicDigests: %v", err)
	}

	// Second call must succeed and must not regenerate
	if err := store.GenerateKeys(conn); err != nil {
		t.Fatalf("GenerateKeys (second): %v", err)
	}
	after, err := store.PublicDigests(conn.ID)
	if err != nil {
		t.Fatalf("PublicDigests: %v", err)
	}
	if before != after {
		t.Error("Expected digests to be unchanged after repeated GenerateKeys")
	}
}

func TestGenerateKeysRequiresPassphrase(t *testing.T) {
	store := newStore(t, "")
	conn := testConn()

	err := store.GenerateKeys(conn)
	var ce *domain.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
	if store.HasKeys(conn.ID) {
		t.Error("Expected no key material after failed generation")
	}
}

func TestPublicDigestsDistinctPerKey(t *testing.T) {
	store := newStore(t, "secret")
	conn := testConn()
	if err := store.GenerateKeys(conn); err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}

	d, err := store.PublicDigests(conn.ID)
	if err != nil {
		t.Fatalf("PublicDigests: %v", err)
	}
	if d.Signature == "" || d.Authentication == "" || d.Encryption == "" {
		t.Fatal("Expected all three digests to be set")
	}
	if d.Signature == d.Authentication || d.Signature == d.Encryption || d.Authentication == d.Encryption {
		t.Error("Expected three distinct key pairs")
	}
}

func TestCreateCertificateRequiresKeys(t *testing.T) {
	store := newStore(t, "secret")
	conn := testConn()

	_, err := store.CreateCertificate(conn, keystore.CertIdentity{Name: "Jane Example"})
	var ke *domain.KeyStateError
	if !errors.As(err, &ke) {
		t.Fatalf("Expected KeyStateError, got %v", err)
	}
}

func TestCreateCertificate(t *testing.T) {
	store := newStore(t, "secret")
	conn := testConn()
	if err := store.GenerateKeys(conn); err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}

	certPEM, err := store.CreateCertificate(conn, keystore.CertIdentity{
		Name:         "Jane Example",
		Organization: "Example AG",
		Country:      "CH",
		Locality:     "Zurich",
	})
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	if !strings.Contains(certPEM, "BEGIN CERTIFICATE") {
		t.Errorf("Expected a PEM certificate, got %q", certPEM[:40])
	}
}

func TestBundleDoesNotLeakPrivateKeys(t *testing.T) {
	dir := t.TempDir()
	store := keystore.NewStore(dir, func(ref string) string { return "secret" })
	conn := testConn()
	if err := store.GenerateKeys(conn); err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, conn.ID+".keys"))
	if err != nil {
		t.Fatalf("reading bundle: %v", err)
	}
	if strings.Contains(string(raw), "RSA PRIVATE KEY") {
		t.Error("Bundle must not contain plaintext private keys")
	}
}
