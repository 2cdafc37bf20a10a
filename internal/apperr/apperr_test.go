package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Message(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)

	t.Run("english messages", func(t *testing.T) {
		assert.Equal(t, "Invalid password.", catalog.Message(KindInvalidPassword, LocaleEnglish))
		assert.Equal(t, "Plan limit reached. Upgrade your subscription to add more users.",
			catalog.Message(KindPlanLimitReached, LocaleEnglish))
	})

	t.Run("indonesian messages", func(t *testing.T) {
		assert.Equal(t, "Password kamu salah.", catalog.Message(KindInvalidPassword, LocaleIndonesian))
	})

	t.Run("legacy locale names resolve", func(t *testing.T) {
		assert.Equal(t, "Email udah dipakai.", catalog.Message(KindEmailAlreadyExists, "indonesian"))
		assert.Equal(t, "Email already in use.", catalog.Message(KindEmailAlreadyExists, "English"))
	})

	t.Run("unseen locale falls back to english", func(t *testing.T) {
		assert.Equal(t, "Invalid email address.", catalog.Message(KindInvalidEmail, "fr"))
		assert.False(t, catalog.Supports("fr"))
		assert.True(t, catalog.Supports("id"))
	})

	t.Run("every kind has a message in every locale", func(t *testing.T) {
		for _, k := range Kinds {
			for _, locale := range []string{LocaleEnglish, LocaleIndonesian} {
				msg, ok := catalog.lookup(k, locale)
				assert.True(t, ok, "missing %s in %s", k, locale)
				assert.NotEmpty(t, msg)
			}
		}
	})

	t.Run("kind outside the catalog gets the generic text", func(t *testing.T) {
		assert.Equal(t, fallbackMessage, catalog.Message(Kind("NOPE"), LocaleEnglish))
	})
}

func TestError_Is(t *testing.T) {
	loc := NewLocalizer(MustCatalog(), "en")
	cause := errors.New("auth/wrong-password")

	err := loc.New(KindInvalidPassword, cause)
	wrapped := fmt.Errorf("sign in: %w", err)

	assert.True(t, errors.Is(wrapped, ErrInvalidPassword))
	assert.False(t, errors.Is(wrapped, ErrUserNotFound))
	assert.True(t, errors.Is(wrapped, cause), "original failure stays reachable")
	assert.Equal(t, KindInvalidPassword, KindOf(wrapped))
	assert.Equal(t, "Invalid password.", MessageOf(wrapped))
	assert.Contains(t, err.Error(), "auth/wrong-password")
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, "boom", MessageOf(errors.New("boom")))
	assert.Equal(t, "", MessageOf(nil))
}

func TestLocalizer(t *testing.T) {
	loc := NewLocalizer(MustCatalog(), "indonesian")
	assert.Equal(t, LocaleIndonesian, loc.Locale())

	err := loc.New(KindNetwork, nil)
	assert.Equal(t, "Koneksi internet bermasalah nih.", err.Error())

	english := loc.WithLocale("en").Localize(err)
	assert.Equal(t, KindNetwork, english.Kind)
	assert.Equal(t, "Network error. Check your connection.", english.Message)

	detail := loc.Newf(KindValidation, nil, "course %s already exists", "CS101")
	assert.Equal(t, "course CS101 already exists", detail.Message)
	assert.True(t, errors.Is(detail, ErrValidation))

	assert.Nil(t, loc.Localize(nil))
}

func TestIsKnown(t *testing.T) {
	assert.True(t, IsKnown(KindStore))
	assert.False(t, IsKnown(Kind("FIRESTORE_ERROR")))
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindInvalidPassword:    http.StatusUnauthorized,
		KindPermissionDenied:   http.StatusForbidden,
		KindUserNotFound:       http.StatusNotFound,
		KindEmailAlreadyExists: http.StatusConflict,
		KindRequiredField:      http.StatusUnprocessableEntity,
		KindPlanLimitReached:   http.StatusTooManyRequests,
		KindNetwork:            http.StatusServiceUnavailable,
		KindStore:              http.StatusInternalServerError,
		KindUnknown:            http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, HTTPStatus(kind), kind)
	}
}
