// Package keystore keeps Groth16 key pairs on disk, one pair of files per
// machine shape. Several processes may share a directory; access is
// serialized through a lock file.
package keystore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/consensys/gnark/logger"
	"github.com/juju/fslock"

	"github.com/PolyhedraZK/ProvableVM/proof"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

const lockName = ".provablevm.lock"

// Dir is a key store rooted at a directory.
type Dir struct {
	path string
}

// Open creates the directory if needed.
func Open(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("key store: %w", err)
	}
	return &Dir{path: path}, nil
}

func (d *Dir) Path() string {
	return d.path
}

// ProvingKeyPath is where the proving key for cfg lives.
func (d *Dir) ProvingKeyPath(cfg vm.Config) string {
	return filepath.Join(d.path, cfg.ID()+".pk")
}

func (d *Dir) VerifyingKeyPath(cfg vm.Config) string {
	return filepath.Join(d.path, cfg.ID()+".vk")
}

func (d *Dir) lock() (*fslock.Lock, error) {
	l := fslock.New(filepath.Join(d.path, lockName))
	if err := l.Lock(); err != nil {
		return nil, fmt.Errorf("key store lock: %w", err)
	}
	return l, nil
}

// Load reads both keys for cfg. It returns proof.ErrNotFound when either
// file is missing.
func (d *Dir) Load(cfg vm.Config) (*proof.ProvingKey, *proof.VerifyingKey, error) {
	l, err := d.lock()
	if err != nil {
		return nil, nil, err
	}
	defer l.Unlock()

	var pk proof.ProvingKey
	if err := readFile(d.ProvingKeyPath(cfg), &pk); err != nil {
		return nil, nil, err
	}
	var vk proof.VerifyingKey
	if err := readFile(d.VerifyingKeyPath(cfg), &vk); err != nil {
		return nil, nil, err
	}
	return &pk, &vk, nil
}

// LoadVerifyingKey reads only the verifying key, which is all a verifier
// needs.
func (d *Dir) LoadVerifyingKey(cfg vm.Config) (*proof.VerifyingKey, error) {
	l, err := d.lock()
	if err != nil {
		return nil, err
	}
	defer l.Unlock()

	var vk proof.VerifyingKey
	if err := readFile(d.VerifyingKeyPath(cfg), &vk); err != nil {
		return nil, err
	}
	return &vk, nil
}

// Save writes both keys. Each file is replaced atomically.
func (d *Dir) Save(cfg vm.Config, pk *proof.ProvingKey, vk *proof.VerifyingKey) error {
	if pk.Config != cfg || vk.Config != cfg {
		return fmt.Errorf("%w: saving %s keys under %s", proof.ErrKeyShapeMismatch, pk.Config.ID(), cfg.ID())
	}
	pkData, err := pk.MarshalBinary()
	if err != nil {
		return err
	}
	vkData, err := vk.MarshalBinary()
	if err != nil {
		return err
	}

	l, err := d.lock()
	if err != nil {
		return err
	}
	defer l.Unlock()

	if err := writeFile(d.ProvingKeyPath(cfg), pkData); err != nil {
		return err
	}
	if err := writeFile(d.VerifyingKeyPath(cfg), vkData); err != nil {
		return err
	}
	log := logger.Logger()
	log.Info().Str("dir", d.path).Str("shape", cfg.ID()).Msg("keys saved")
	return nil
}

type binaryUnmarshaler interface {
	UnmarshalBinary([]byte) error
}

func readFile(path string, into binaryUnmarshaler) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", proof.ErrNotFound, path)
	}
	if err != nil {
		return err
	}
	if err := into.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
