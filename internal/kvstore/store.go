// Package kvstore holds the key-value persistence used for the profile cache,
// the session token and the language preference.
package kvstore

import "context"

const (
	KeyUserData = "presensia_user_data"
	KeyToken    = "presensia_token"
	KeyLanguage = "presensia_language"
)

// Store is an opaque single-key store. Get reports ok=false for an absent key;
// Remove of an absent key is not an error. Operations on different keys are
// independent; there is no multi-key transaction.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
