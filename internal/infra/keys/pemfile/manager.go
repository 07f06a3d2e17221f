// Package pemfile keeps the process RSA key pair in two PEM files.
package pemfile

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"recordproof/internal/domain"

	"go.uber.org/zap"
)

const (
	KeyDir         = "keys"
	PrivateKeyFile = "private.pem"
	PublicKeyFile  = "public.pem"

	pemTypePrivate = "PRIVATE KEY"
	pemTypePublic  = "PUBLIC KEY"
)

// Manager owns the single key pair of the process. Construct it, call
// Initialize once at startup, then share it freely: after Initialize
// returns nil the key pair never changes.
type Manager struct {
	root   string
	logger *zap.Logger
	random io.Reader

	mu        sync.Mutex
	ready     bool
	key       *rsa.PrivateKey
	publicPEM []byte
}

func NewManager(root string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{root: root, logger: logger, random: rand.Reader}
}

func (m *Manager) PrivateKeyPath() string {
	return filepath.Join(m.root, KeyDir, PrivateKeyFile)
}

func (m *Manager) PublicKeyPath() string {
	return filepath.Join(m.root, KeyDir, PublicKeyFile)
}

// Initialize loads the key pair from disk, or generates and persists one
// when neither file exists. Only one of the two files present is a
// configuration error. Repeated calls after success are no-ops.
func (m *Manager) Initialize() error {
	return m.open(true)
}

// Load is Initialize for read-only callers: it never writes to disk and
// fails with ErrKeyUnavailable when no key pair exists yet.
func (m *Manager) Load() error {
	return m.open(false)
}

func (m *Manager) open(allowGenerate bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return nil
	}

	privPath, pubPath := m.PrivateKeyPath(), m.PublicKeyPath()
	privExists, err := fileExists(privPath)
	if err != nil {
		return keyUnavailable("stat private key", err)
	}
	pubExists, err := fileExists(pubPath)
	if err != nil {
		return keyUnavailable("stat public key", err)
	}

	var key *rsa.PrivateKey
	switch {
	case privExists && pubExists:
		key, err = loadKeyPair(privPath, pubPath)
		if err != nil {
			return err
		}
		m.logger.Info("loaded signing key pair", zap.String("dir", filepath.Dir(privPath)))
	case !privExists && !pubExists && !allowGenerate:
		return fmt.Errorf("%w: no key pair under %s", domain.ErrKeyUnavailable, filepath.Dir(privPath))
	case !privExists && !pubExists:
		key, err = m.generate(privPath, pubPath)
		if err != nil {
			return err
		}
		m.logger.Info("generated signing key pair", zap.String("dir", filepath.Dir(privPath)), zap.Int("bits", domain.KeyBits))
	default:
		return fmt.Errorf("%w: only one of %s and %s exists", domain.ErrKeyUnavailable, privPath, pubPath)
	}

	publicPEM, err := encodePublicKey(&key.PublicKey)
	if err != nil {
		return keyUnavailable("encode public key", err)
	}
	m.key = key
	m.publicPEM = publicPEM
	m.ready = true
	return nil
}

// PublicKeyPEM returns the SPKI PEM encoding handed to external verifiers.
func (m *Manager) PublicKeyPEM() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return nil, errNotInitialized
	}
	return append([]byte(nil), m.publicPEM...), nil
}

func (m *Manager) PublicKey() (*rsa.PublicKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return nil, errNotInitialized
	}
	pub := m.key.PublicKey
	return &pub, nil
}

// Signer returns a crypto.Signer backed by the private key. The private
// key itself is not reachable through it.
func (m *Manager) Signer() (crypto.Signer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return nil, errNotInitialized
	}
	return keySigner{key: m.key}, nil
}

type keySigner struct {
	key *rsa.PrivateKey
}

func (s keySigner) Public() crypto.PublicKey {
	return s.key.Public()
}

func (s keySigner) Sign(random io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	return s.key.Sign(random, digest, opts)
}

var errNotInitialized = fmt.Errorf("%w: key manager not initialized", domain.ErrKeyUnavailable)

func (m *Manager) generate(privPath, pubPath string) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(m.random, domain.KeyBits)
	if err != nil {
		return nil, keyUnavailable("generate key pair", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, keyUnavailable("marshal private key", err)
	}
	pubPEM, err := encodePublicKey(&key.PublicKey)
	if err != nil {
		return nil, keyUnavailable("encode public key", err)
	}
	if err := os.MkdirAll(filepath.Dir(privPath), 0o755); err != nil {
		return nil, keyUnavailable("create key directory", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: pemTypePrivate, Bytes: privDER})
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return nil, keyUnavailable("write private key", err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		_ = os.Remove(privPath)
		return nil, keyUnavailable("write public key", err)
	}
	return key, nil
}

func loadKeyPair(privPath, pubPath string) (*rsa.PrivateKey, error) {
	privRaw, err := os.ReadFile(privPath)
	if err != nil {
		return nil, keyUnavailable("read private key", err)
	}
	pubRaw, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, keyUnavailable("read public key", err)
	}
	key, err := parsePrivateKey(privRaw)
	if err != nil {
		return nil, keyUnavailable("parse private key", err)
	}
	pub, err := parsePublicKey(pubRaw)
	if err != nil {
		return nil, keyUnavailable("parse public key", err)
	}
	if key.N.BitLen() != domain.KeyBits {
		return nil, fmt.Errorf("%w: key size is %d bits, want %d", domain.ErrKeyUnavailable, key.N.BitLen(), domain.KeyBits)
	}
	if !key.PublicKey.Equal(pub) {
		return nil, fmt.Errorf("%w: public key does not match private key", domain.ErrKeyUnavailable)
	}
	return key, nil
}

func parsePrivateKey(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil || block.Type != pemTypePrivate {
		return nil, errors.New("failed to decode PKCS8 PEM block")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}

func parsePublicKey(raw []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil || block.Type != pemTypePublic {
		return nil, errors.New("failed to decode SPKI PEM block")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return pub, nil
}

func encodePublicKey(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePublic, Bytes: der}), nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func keyUnavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrKeyUnavailable, op, err)
}
