// Package keystore manages the cryptographic material of a connection:
// three RSA key pairs per bank relationship, encrypted at rest under the
// connection's passphrase. Raw key bytes never leave this package;
// consumers reference keys by connection id.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/ardelhq/ebics-sync/internal/domain"
)

const (
	keyBits     = 2048
	pbkdf2Iters = 210_000
	saltLen     = 16
)

// Digests carries the SHA-256 digests of the three public keys, printed on
// the initialization letter so the bank can verify the INI/HIA orders.
type Digests struct {
	Signature      string
	Authentication string
	Encryption     string
}

// PassphraseFunc resolves a connection's passphrase reference to the actual
// passphrase. An empty result means no passphrase is configured.
type PassphraseFunc func(ref string) string

// bundle is the on-disk format: public halves in the clear, private halves
// sealed under the passphrase.
type bundle struct {
	PublicSignature      string `json:"public_signature"`
	PublicAuthentication string `json:"public_authentication"`
	PublicEncryption     string `json:"public_encryption"`
	Certificate          string `json:"certificate,omitempty"`

	Salt    string `json:"salt"`
	Nonce   string `json:"nonce"`
	Private string `json:"private"` // AES-256-GCM sealed JSON of the three private keys
}

type privateKeys struct {
	Signature      string `json:"signature"`
	Authentication string `json:"authentication"`
	Encryption     string `json:"encryption"`
}

// Store is a file-backed key store, one encrypted bundle per connection.
// All operations against the same connection are serialized: concurrent
// generation or signing over a half-written bundle would corrupt it.
type Store struct {
	dir        string
	passphrase PassphraseFunc

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a store rooted at dir
func NewStore(dir string, passphrase PassphraseFunc) *Store {
	return &Store{
		dir:        dir,
		passphrase: passphrase,
		locks:      make(map[string]*sync.Mutex),
	}
}

// connLock returns the exclusive lock for one connection
func (s *Store) connLock(connectionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[connectionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[connectionID] = l
	}
	return l
}

func (s *Store) bundlePath(connectionID string) string {
	return filepath.Join(s.dir, connectionID+".keys")
}

// HasKeys reports whether key material exists for the connection
func (s *Store) HasKeys(connectionID string) bool {
	_, err := os.Stat(s.bundlePath(connectionID))
	return err == nil
}

// GenerateKeys creates the signature, authentication and encryption key
// pairs for a connection. Idempotent: existing material is never
// regenerated. Fails with ConfigurationError when no passphrase is
// configured.
func (s *Store) GenerateKeys(conn *domain.Connection) error {
	lock := s.connLock(conn.ID)
	lock.Lock()
	defer lock.Unlock()

	if s.HasKeys(conn.ID) {
		return nil
	}

	pass := s.passphrase(conn.PassphraseRef)
	if pass == "" {
		return &domain.ConfigurationError{
			Field:  "passphrase",
			Reason: fmt.Sprintf("no passphrase configured for connection %s", conn.ID),
		}
	}

	var pems [3]string
	for i := range pems {
		key, err := rsa.GenerateKey(rand.Reader, keyBits)
		if err != nil {
			return fmt.Errorf("generating RSA key: %w", err)
		}
		pems[i] = string(pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		}))
	}

	priv := privateKeys{Signature: pems[0], Authentication: pems[1], Encryption: pems[2]}
	plaintext, err := json.Marshal(priv)
	if err != nil {
		return fmt.Errorf("encoding private keys: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}

	gcm, err := newGCM(pass, salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	b := bundle{
		PublicSignature:      publicPEM(pems[0]),
		PublicAuthentication: publicPEM(pems[1]),
		PublicEncryption:     publicPEM(pems[2]),
		Salt:                 hex.EncodeToString(salt),
		Nonce:                hex.EncodeToString(nonce),
		Private:              hex.EncodeToString(sealed),
	}

	return s.writeBundle(conn.ID, &b)
}

// PublicDigests returns the SHA-256 digests of the three public keys in the
// exponent-modulus form banks print on initialization letters.
func (s *Store) PublicDigests(connectionID string) (Digests, error) {
	lock := s.connLock(connectionID)
	lock.Lock()
	defer lock.Unlock()

	b, err := s.readBundle(connectionID)
	if err != nil {
		return Digests{}, err
	}

	sig, err := digestPublicPEM(b.PublicSignature)
	if err != nil {
		return Digests{}, err
	}
	auth, err := digestPublicPEM(b.PublicAuthentication)
	if err != nil {
		return Digests{}, err
	}
	enc, err := digestPublicPEM(b.PublicEncryption)
	if err != nil {
		return Digests{}, err
	}

	return Digests{Signature: sig, Authentication: auth, Encryption: enc}, nil
}

func (s *Store) readBundle(connectionID string) (*bundle, error) {
	raw, err := os.ReadFile(s.bundlePath(connectionID))
	if os.IsNotExist(err) {
		return nil, &domain.KeyStateError{ConnectionID: connectionID, Reason: "no key material"}
	}
	if err != nil {
		return nil, fmt.Errorf("reading key bundle: %w", err)
	}
	var b bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decoding key bundle: %w", err)
	}
	return &b, nil
}

func (s *Store) writeBundle(connectionID string, b *bundle) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding key bundle: %w", err)
	}
	if err := os.WriteFile(s.bundlePath(connectionID), raw, 0o600); err != nil {
		return fmt.Errorf("writing key bundle: %w", err)
	}
	return nil
}

func newGCM(pass string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(pass), salt, pbkdf2Iters, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}

// publicPEM derives the public key PEM from a private key PEM
func publicPEM(privPEM string) string {
	block, _ := pem.Decode([]byte(privPEM))
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		// the PEM was produced two lines above; a parse failure here is a bug
		panic(fmt.Sprintf("keystore: re-parsing freshly generated key: %v", err))
	}
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey),
	}))
}

// hexField decodes a hex-encoded bundle field
func hexField(value, name string) ([]byte, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decoding bundle field %s: %w", name, err)
	}
	return raw, nil
}

// digestPublicPEM hashes "<exponent-hex> <modulus-hex>" as EBICS letters do
func digestPublicPEM(pubPEM string) (string, error) {
	block, _ := pem.Decode([]byte(pubPEM))
	if block == nil {
		return "", fmt.Errorf("invalid public key PEM in bundle")
	}
	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("parsing public key: %w", err)
	}
	material := fmt.Sprintf("%x %x", pub.E, pub.N)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:]), nil
}
