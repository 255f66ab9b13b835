package proof

import (
	"errors"
	"fmt"
	"sync"

	"github.com/consensys/gnark/logger"
	lru "github.com/hashicorp/golang-lru"

	"github.com/PolyhedraZK/ProvableVM/vm"
)

// ErrNotFound is returned by a KeyStore that holds no keys for a shape.
var ErrNotFound = errors.New("keys not found")

// KeyStore persists key pairs between processes.
type KeyStore interface {
	Load(cfg vm.Config) (*ProvingKey, *VerifyingKey, error)
	Save(cfg vm.Config, pk *ProvingKey, vk *VerifyingKey) error
}

type keyPair struct {
	pk *ProvingKey
	vk *VerifyingKey
}

// KeyCache hands out one key pair per shape. Keys are looked up in memory,
// then in the store, and generated by Setup as a last resort; generated
// keys are written back to the store.
type KeyCache struct {
	mu    sync.Mutex
	lru   *lru.Cache
	store KeyStore
}

// NewKeyCache keeps at most size shapes in memory. store may be nil.
func NewKeyCache(size int, store KeyStore) (*KeyCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("key cache: %w", err)
	}
	return &KeyCache{lru: c, store: store}, nil
}

// Get returns the key pair for cfg. Concurrent calls for a shape that is
// not cached yet run Setup only once.
func (c *KeyCache) Get(cfg vm.Config) (*ProvingKey, *VerifyingKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.lru.Get(cfg); ok {
		kp := v.(keyPair)
		return kp.pk, kp.vk, nil
	}

	log := logger.Logger()
	if c.store != nil {
		pk, vk, err := c.store.Load(cfg)
		switch {
		case err == nil:
			if pk.Config != cfg || vk.Config != cfg || pk.Fingerprint() != vk.Fingerprint() {
				return nil, nil, fmt.Errorf("%w: stored keys for %s do not match", ErrKeyShapeMismatch, cfg.ID())
			}
			c.lru.Add(cfg, keyPair{pk, vk})
			log.Debug().Str("shape", cfg.ID()).Msg("keys loaded")
			return pk, vk, nil
		case !errors.Is(err, ErrNotFound):
			return nil, nil, err
		}
	}

	pk, vk, err := Setup(cfg)
	if err != nil {
		return nil, nil, err
	}
	if c.store != nil {
		if err := c.store.Save(cfg, pk, vk); err != nil {
			return nil, nil, err
		}
	}
	c.lru.Add(cfg, keyPair{pk, vk})
	return pk, vk, nil
}

// Put installs keys produced elsewhere, e.g. by an earlier Setup.
func (c *KeyCache) Put(pk *ProvingKey, vk *VerifyingKey) error {
	if !pk.ready() || !vk.ready() {
		return ErrKeysNotReady
	}
	if pk.Config != vk.Config || pk.fingerprint != vk.fingerprint {
		return fmt.Errorf("%w: keys are not a pair", ErrKeyShapeMismatch)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(pk.Config, keyPair{pk, vk})
	return nil
}

func (c *KeyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
