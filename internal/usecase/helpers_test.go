package usecase

import (
	"os"
	"sync"
	"testing"
	"time"

	cryptoinfra "recordproof/internal/infra/crypto"
	"recordproof/internal/infra/keys/pemfile"
)

var (
	keyOnce    sync.Once
	keyManager *pemfile.Manager
	keyErr     error
)

// sharedKeys generates one key pair for the package; RSA generation is slow.
func sharedKeys(t *testing.T) *pemfile.Manager {
	t.Helper()
	keyOnce.Do(func() {
		dir, err := os.MkdirTemp("", "recordproof-usecase-keys")
		if err != nil {
			keyErr = err
			return
		}
		keyManager = pemfile.NewManager(dir, nil)
		keyErr = keyManager.Initialize()
	})
	if keyErr != nil {
		t.Fatalf("init keys: %v", keyErr)
	}
	return keyManager
}

func newTestAuthenticity(t *testing.T) *Authenticity {
	return NewAuthenticity(cryptoinfra.HashEmail, cryptoinfra.NewSigner(sharedKeys(t)))
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}
