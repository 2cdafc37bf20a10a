package gateway

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryIdentity is an in-process IdentityProvider for development and tests.
type MemoryIdentity struct {
	mu       sync.Mutex
	accounts map[string]*memoryAccount // by lowercased email
	tokens   map[string]string         // token -> uid
}

type memoryAccount struct {
	uid      string
	email    string
	password string
}

func NewMemoryIdentity() *MemoryIdentity {
	return &MemoryIdentity{
		accounts: make(map[string]*memoryAccount),
		tokens:   make(map[string]string),
	}
}

func (m *MemoryIdentity) CreateAccount(ctx context.Context, email, password string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	if err := checkCredentials(email, password); err != nil {
		return Identity{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(email))
	if _, ok := m.accounts[key]; ok {
		return Identity{}, ErrEmailExists
	}
	acc := &memoryAccount{uid: uuid.NewString(), email: strings.TrimSpace(email), password: password}
	m.accounts[key] = acc
	return Identity{UID: acc.uid, Email: acc.email}, nil
}

func (m *MemoryIdentity) VerifyPassword(ctx context.Context, email, password string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return Identity{}, ErrIdentityNotFound
	}
	if acc.password != password {
		return Identity{}, ErrInvalidCredentials
	}
	token := uuid.NewString()
	m.tokens[token] = acc.uid
	return Identity{UID: acc.uid, Email: acc.email, Token: token}, nil
}

func (m *MemoryIdentity) VerifyToken(ctx context.Context, token string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.tokens[token]
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	for _, acc := range m.accounts {
		if acc.uid == uid {
			return Identity{UID: uid, Email: acc.email, Token: token}, nil
		}
	}
	return Identity{}, ErrInvalidToken
}

func (m *MemoryIdentity) UpdatePassword(ctx context.Context, uid, newPassword string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if acc.uid == uid {
			acc.password = newPassword
			return nil
		}
	}
	return ErrIdentityNotFound
}

// MemoryStore is an in-process DocumentStore. Collections keep insertion
// order.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	order []string
	docs  map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) coll(name string) *memoryCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{docs: make(map[string]map[string]any)}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return Document{}, ErrNotFound
	}
	data, ok := c.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: cloneData(data)}, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	existing, ok := c.docs[id]
	if !ok {
		c.order = append(c.order, id)
		c.docs[id] = cloneData(data)
		return nil
	}
	if !merge {
		c.docs[id] = cloneData(data)
		return nil
	}
	for k, v := range data {
		existing[k] = cloneValue(v)
	}
	return nil
}

func (s *MemoryStore) Create(ctx context.Context, collection, id string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	if _, ok := c.docs[id]; ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
	}
	c.order = append(c.order, id)
	c.docs[id] = cloneData(data)
	return nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.Create(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	existing, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	for k, v := range patch {
		existing[k] = cloneValue(v)
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil
	}
	if _, ok := c.docs[id]; !ok {
		return nil
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, collection string) ([]Document, error) {
	return s.filter(ctx, collection, func(map[string]any) bool { return true })
}

func (s *MemoryStore) Query(ctx context.Context, collection, field, op string, value any) ([]Document, error) {
	if err := checkOperator(op); err != nil {
		return nil, err
	}
	return s.filter(ctx, collection, func(data map[string]any) bool {
		v, ok := data[field]
		return ok && matches(v, op, value)
	})
}

func (s *MemoryStore) filter(ctx context.Context, collection string, keep func(map[string]any) bool) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return []Document{}, nil
	}
	out := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		data := c.docs[id]
		if keep(data) {
			out = append(out, Document{ID: id, Data: cloneData(data)})
		}
	}
	return out, nil
}

func matches(field any, op string, value any) bool {
	switch op {
	case OpEqual:
		return equalValues(field, value)
	case OpNotEqual:
		return !equalValues(field, value)
	case OpIn:
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if equalValues(field, rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	}

	c, ok := compareValues(field, value)
	if !ok {
		return false
	}
	switch op {
	case OpLess:
		return c < 0
	case OpLessEqual:
		return c <= 0
	case OpGreater:
		return c > 0
	case OpGreaterEqual:
		return c >= 0
	}
	return false
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, ok := a.(string)
	if !ok {
		return 0, false
	}
	sb, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
