package keystore

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/ardelhq/ebics-sync/internal/domain"
)

// CertIdentity holds the tenant-supplied subject fields of the self-signed
// identity certificate.
type CertIdentity struct {
	Name         string
	Organization string
	Country      string
	Locality     string
}

// CreateCertificate builds a self-signed identity certificate from the
// connection's signature key and stores it in the bundle. Requires the key
// material to exist already.
func (s *Store) CreateCertificate(conn *domain.Connection, identity CertIdentity) (string, error) {
	lock := s.connLock(conn.ID)
	lock.Lock()
	defer lock.Unlock()

	b, err := s.readBundle(conn.ID)
	if err != nil {
		return "", err
	}

	pass := s.passphrase(conn.PassphraseRef)
	if pass == "" {
		return "", &domain.ConfigurationError{
			Field:  "passphrase",
			Reason: fmt.Sprintf("no passphrase configured for connection %s", conn.ID),
		}
	}

	priv, err := s.openPrivate(b, pass)
	if err != nil {
		return "", err
	}

	block, _ := pem.Decode([]byte(priv.Signature))
	if block == nil {
		return "", &domain.KeyStateError{ConnectionID: conn.ID, Reason: "corrupt signature key"}
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("parsing signature key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return "", fmt.Errorf("generating serial: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   identity.Name,
			Organization: []string{identity.Organization},
			Country:      []string{identity.Country},
			Locality:     []string{identity.Locality},
		},
		NotBefore:             now,
		NotAfter:              now.AddDate(5, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return "", fmt.Errorf("creating certificate: %w", err)
	}

	certPEM := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	b.Certificate = certPEM
	if err := s.writeBundle(conn.ID, b); err != nil {
		return "", err
	}

	return certPEM, nil
}

// openPrivate unseals the private section of a bundle
func (s *Store) openPrivate(b *bundle, pass string) (*privateKeys, error) {
	salt, err := hexField(b.Salt, "salt")
	if err != nil {
		return nil, err
	}
	nonce, err := hexField(b.Nonce, "nonce")
	if err != nil {
		return nil, err
	}
	sealed, err := hexField(b.Private, "private")
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(pass, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("unsealing key bundle (wrong passphrase?): %w", err)
	}

	var priv privateKeys
	if err := json.Unmarshal(plaintext, &priv); err != nil {
		return nil, fmt.Errorf("decoding private keys: %w", err)
	}
	return &priv, nil
}
