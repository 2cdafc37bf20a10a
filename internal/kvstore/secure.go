package kvstore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealedPrefix = "sealed:"
	// keySlot holds the generated sealing key when none is configured.
	keySlot  = "presensia_sealing_key"
	keySize  = 32
	nonceLen = 24
)

var ErrSealed = errors.New("sealed value cannot be opened")

// SecureStore seals values with secretbox before writing them to a backing
// store. The sealing key lives in a memguard enclave; plaintext only exists
// in a locked buffer while a value is sealed or opened.
type SecureStore struct {
	backing Store
	key     *memguard.Enclave
}

type SecureOption func(*secureConfig)

type secureConfig struct {
	secret []byte
}

// WithSecret derives the sealing key from secret. Without it a random key is
// generated once and kept in the backing store.
func WithSecret(secret string) SecureOption {
	return func(c *secureConfig) {
		if secret != "" {
			c.secret = []byte(secret)
		}
	}
}

func NewSecureStore(ctx context.Context, backing Store, opts ...SecureOption) (*SecureStore, error) {
	if backing == nil {
		return nil, errors.New("secure store needs a backing store")
	}
	var cfg secureConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		key []byte
		err error
	)
	if cfg.secret != nil {
		key, err = deriveKey(cfg.secret)
	} else {
		key, err = loadOrCreateKey(ctx, backing)
	}
	if err != nil {
		return nil, err
	}

	// NewEnclave wipes key.
	return &SecureStore{backing: backing, key: memguard.NewEnclave(key)}, nil
}

func deriveKey(secret []byte) ([]byte, error) {
	key := make([]byte, keySize)
	r := hkdf.New(sha256.New, secret, nil, []byte("presensia secure store"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}
	return key, nil
}

func loadOrCreateKey(ctx context.Context, backing Store) ([]byte, error) {
	raw, ok, err := backing.Get(ctx, keySlot)
	if err != nil {
		return nil, fmt.Errorf("load sealing key: %w", err)
	}
	if ok {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil || len(key) != keySize {
			return nil, fmt.Errorf("load sealing key: %w", ErrSealed)
		}
		return key, nil
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate sealing key: %w", err)
	}
	if err := backing.Set(ctx, keySlot, base64.StdEncoding.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("save sealing key: %w", err)
	}
	return key, nil
}

func (s *SecureStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	raw, ok, err := s.backing.Get(ctx, sealedPrefix+key)
	if err != nil || !ok {
		return "", false, err
	}

	box, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(box) < nonceLen+secretbox.Overhead {
		return "", false, fmt.Errorf("open %s: %w", key, ErrSealed)
	}
	var nonce [nonceLen]byte
	copy(nonce[:], box[:nonceLen])

	buf, err := s.key.Open()
	if err != nil {
		return "", false, fmt.Errorf("open sealing key: %w", err)
	}
	defer buf.Destroy()

	plain, ok := secretbox.Open(nil, box[nonceLen:], &nonce, buf.ByteArray32())
	if !ok {
		return "", false, fmt.Errorf("open %s: %w", key, ErrSealed)
	}
	return string(plain), true, nil
}

func (s *SecureStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if value == "" {
		return s.Remove(ctx, key)
	}

	var nonce [nonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}

	buf, err := s.key.Open()
	if err != nil {
		return fmt.Errorf("open sealing key: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(value), &nonce, buf.ByteArray32())
	buf.Destroy()

	return s.backing.Set(ctx, sealedPrefix+key, base64.StdEncoding.EncodeToString(box))
}

func (s *SecureStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.backing.Remove(ctx, sealedPrefix+key)
}

// Purge wipes every memguard buffer. Sealed values stay in the backing store.
// Call on shutdown.
func (s *SecureStore) Purge() {
	memguard.Purge()
}
