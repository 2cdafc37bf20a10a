package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/presensia/presensia-core/internal/auth/domain"
	"github.com/presensia/presensia-core/internal/kvstore"
)

// ProfileCache keeps the last known profile in a plaintext store. It is a
// fallback copy, never the source of truth.
type ProfileCache struct {
	store kvstore.Store
}

func NewProfileCache(store kvstore.Store) *ProfileCache {
	return &ProfileCache{store: store}
}

func (c *ProfileCache) Save(ctx context.Context, p *domain.UserProfile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode cached profile: %w", err)
	}
	return c.store.Set(ctx, kvstore.KeyUserData, string(b))
}

// Load returns ok=false when nothing is cached.
func (c *ProfileCache) Load(ctx context.Context) (*domain.UserProfile, bool, error) {
	raw, ok, err := c.store.Get(ctx, kvstore.KeyUserData)
	if err != nil || !ok {
		return nil, false, err
	}
	var p domain.UserProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false, fmt.Errorf("decode cached profile: %w", err)
	}
	return &p, true, nil
}

func (c *ProfileCache) Clear(ctx context.Context) error {
	return c.store.Remove(ctx, kvstore.KeyUserData)
}

// TokenStore keeps the session token in the secure store.
type TokenStore struct {
	store kvstore.Store
}

func NewTokenStore(store kvstore.Store) *TokenStore {
	return &TokenStore{store: store}
}

func (t *TokenStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return t.Clear(ctx)
	}
	return t.store.Set(ctx, kvstore.KeyToken, token)
}

func (t *TokenStore) Load(ctx context.Context) (string, bool, error) {
	return t.store.Get(ctx, kvstore.KeyToken)
}

func (t *TokenStore) Clear(ctx context.Context) error {
	return t.store.Remove(ctx, kvstore.KeyToken)
}

// Preferences holds device-level settings in the plaintext store.
type Preferences struct {
	store kvstore.Store
}

func NewPreferences(store kvstore.Store) *Preferences {
	return &Preferences{store: store}
}

func (p *Preferences) Language(ctx context.Context) (string, bool, error) {
	return p.store.Get(ctx, kvstore.KeyLanguage)
}

func (p *Preferences) SetLanguage(ctx context.Context, lang string) error {
	return p.store.Set(ctx, kvstore.KeyLanguage, lang)
}
