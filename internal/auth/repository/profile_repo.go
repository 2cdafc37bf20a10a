package repository

import (
	"context"

	"github.com/presensia/presensia-core/internal/auth/domain"
	"github.com/presensia/presensia-core/internal/gateway"
)

// UsersCollection holds one profile document per account, keyed by UID.
const UsersCollection = "users"

type ProfileRepository struct {
	gw *gateway.Gateway
}

func NewProfileRepository(gw *gateway.Gateway) *ProfileRepository {
	return &ProfileRepository{gw: gw}
}

// Get returns found=false when the account has no profile document.
func (r *ProfileRepository) Get(ctx context.Context, uid string) (*domain.UserProfile, bool, error) {
	doc, found, err := r.gw.GetDocument(ctx, UsersCollection, uid)
	if err != nil || !found {
		return nil, found, err
	}
	return domain.ProfileFromData(doc.ID, doc.Data), true, nil
}

// Put writes p as the whole profile document of p.ID.
func (r *ProfileRepository) Put(ctx context.Context, p *domain.UserProfile) error {
	return r.gw.SetDocument(ctx, UsersCollection, p.ID, p.Data(), false)
}

// Merge writes patch into the profile of uid, creating it if absent.
func (r *ProfileRepository) Merge(ctx context.Context, uid string, patch map[string]any) error {
	return r.gw.SetDocument(ctx, UsersCollection, uid, patch, true)
}

// Update writes patch into an existing profile; a missing profile fails.
func (r *ProfileRepository) Update(ctx context.Context, uid string, patch map[string]any) error {
	return r.gw.UpdateDocument(ctx, UsersCollection, uid, patch)
}

// Add stores p under a store-assigned id and returns p with that id.
func (r *ProfileRepository) Add(ctx context.Context, p *domain.UserProfile) (*domain.UserProfile, error) {
	id, err := r.gw.AddDocument(ctx, UsersCollection, p.Data())
	if err != nil {
		return nil, err
	}
	out := p.Clone()
	out.ID = id
	return out, nil
}

func (r *ProfileRepository) Delete(ctx context.Context, uid string) error {
	return r.gw.DeleteDocument(ctx, UsersCollection, uid)
}

// List returns every profile in store order.
func (r *ProfileRepository) List(ctx context.Context) ([]*domain.UserProfile, error) {
	docs, err := r.gw.ListCollection(ctx, UsersCollection)
	if err != nil {
		return nil, err
	}
	return profiles(docs), nil
}

// FindBy returns the profiles whose field equals value.
func (r *ProfileRepository) FindBy(ctx context.Context, field string, value any) ([]*domain.UserProfile, error) {
	docs, err := r.gw.QueryCollection(ctx, UsersCollection, field, gateway.OpEqual, value)
	if err != nil {
		return nil, err
	}
	return profiles(docs), nil
}

func profiles(docs []gateway.Document) []*domain.UserProfile {
	out := make([]*domain.UserProfile, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.ProfileFromData(d.ID, d.Data))
	}
	return out
}
