package apperr

import (
	"fmt"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/id"
	ut "github.com/go-playground/universal-translator"
)

const (
	LocaleEnglish    = "en"
	LocaleIndonesian = "id"

	// DefaultLocale is used when a requested locale has no catalog.
	DefaultLocale = LocaleEnglish

	fallbackMessage = "An error occurred."
)

var englishMessages = map[Kind]string{
	KindUserNotFound:       "No user found with this email.",
	KindInvalidPassword:    "Invalid password.",
	KindInvalidEmail:       "Invalid email address.",
	KindEmailAlreadyExists: "Email already in use.",
	KindWeakPassword:       "Password is too weak.",
	KindNetwork:            "Network error. Check your connection.",
	KindPermissionDenied:   "You do not have permission to access this.",
	KindStore:              "Database error. Please try again.",
	KindValidation:         "Please check your input.",
	KindRequiredField:      "This field is required.",
	KindInvalidFormat:      "Invalid format.",
	KindAuthFailed:         "Authentication failed. Please try again.",
	KindUnknown:            "Something went wrong. Please try again.",
	KindPlanLimitReached:   "Plan limit reached. Upgrade your subscription to add more users.",
}

var indonesianMessages = map[Kind]string{
	KindUserNotFound:       "Email ini belum terdaftar nih.",
	KindInvalidPassword:    "Password kamu salah.",
	KindInvalidEmail:       "Format email nggak valid.",
	KindEmailAlreadyExists: "Email udah dipakai.",
	KindWeakPassword:       "Password terlalu lemah.",
	KindNetwork:            "Koneksi internet bermasalah nih.",
	KindPermissionDenied:   "Kamu nggak punya akses untuk ini.",
	KindStore:              "Ada masalah dengan database nih.",
	KindValidation:         "Cek lagi inputnya ya.",
	KindRequiredField:      "Field ini wajib diisi.",
	KindInvalidFormat:      "Format nggak valid.",
	KindAuthFailed:         "Login gagal. Coba lagi ya.",
	KindUnknown:            "Ada yang salah. Coba lagi ya.",
	KindPlanLimitReached:   "Batas paket tercapai. Silakan upgrade langganan untuk menambah lebih banyak user.",
}

// legacy locale names stored by older clients
var localeAliases = map[string]string{
	"english":    LocaleEnglish,
	"indonesian": LocaleIndonesian,
	"en-us":      LocaleEnglish,
	"en_us":      LocaleEnglish,
	"id-id":      LocaleIndonesian,
	"id_id":      LocaleIndonesian,
}

// Catalog resolves kinds to localized messages. It is immutable after
// NewCatalog returns and safe for concurrent use.
type Catalog struct {
	uni *ut.UniversalTranslator
}

// NewCatalog builds the English and Indonesian catalogs.
func NewCatalog() (*Catalog, error) {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, id.New())

	if err := register(uni, LocaleEnglish, englishMessages); err != nil {
		return nil, err
	}
	if err := register(uni, LocaleIndonesian, indonesianMessages); err != nil {
		return nil, err
	}
	return &Catalog{uni: uni}, nil
}

// MustCatalog is NewCatalog for package initialization.
func MustCatalog() *Catalog {
	c, err := NewCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

func register(uni *ut.UniversalTranslator, locale string, messages map[Kind]string) error {
	trans, ok := uni.GetTranslator(locale)
	if !ok {
		return fmt.Errorf("apperr: no translator for locale %q", locale)
	}
	for kind, text := range messages {
		if err := trans.Add(string(kind), text, true); err != nil {
			return fmt.Errorf("apperr: add %s/%s: %w", locale, kind, err)
		}
	}
	return nil
}

// Supports reports whether locale (or an alias of it) has a catalog.
func (c *Catalog) Supports(locale string) bool {
	_, ok := c.uni.GetTranslator(NormalizeLocale(locale))
	return ok
}

// Message returns the message for kind in locale. Unknown locales fall back
// to English; kinds missing from a locale fall back to the English text.
func (c *Catalog) Message(kind Kind, locale string) string {
	if msg, ok := c.lookup(kind, NormalizeLocale(locale)); ok {
		return msg
	}
	if msg, ok := c.lookup(kind, DefaultLocale); ok {
		return msg
	}
	return fallbackMessage
}

func (c *Catalog) lookup(kind Kind, locale string) (string, bool) {
	trans, ok := c.uni.GetTranslator(locale)
	if !ok {
		return "", false
	}
	msg, err := trans.T(string(kind))
	if err != nil || msg == "" {
		return "", false
	}
	return msg, true
}

// Translator exposes the underlying translator for locale, e.g. to register
// validator translations against the same catalog.
func (c *Catalog) Translator(locale string) ut.Translator {
	if trans, ok := c.uni.GetTranslator(NormalizeLocale(locale)); ok {
		return trans
	}
	return c.uni.GetFallback()
}

// NormalizeLocale lowercases locale and resolves legacy aliases.
func NormalizeLocale(locale string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if alias, ok := localeAliases[l]; ok {
		return alias
	}
	return l
}

// Localizer builds errors in a fixed locale.
type Localizer struct {
	catalog *Catalog
	locale  string
}

// NewLocalizer binds catalog to locale.
func NewLocalizer(catalog *Catalog, locale string) *Localizer {
	return &Localizer{catalog: catalog, locale: NormalizeLocale(locale)}
}

// Locale returns the bound locale.
func (l *Localizer) Locale() string {
	return l.locale
}

// WithLocale returns a localizer over the same catalog in another locale.
func (l *Localizer) WithLocale(locale string) *Localizer {
	return NewLocalizer(l.catalog, locale)
}

// New returns an error of kind with the localized catalog message.
func (l *Localizer) New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Message: l.catalog.Message(kind, l.locale), Err: cause}
}

// Newf returns an error of kind whose message is a caller-supplied detail.
// Used where the catalog text is too generic, e.g. a duplicate course code.
func (l *Localizer) Newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Message returns the catalog text for kind in the bound locale.
func (l *Localizer) Message(kind Kind) string {
	return l.catalog.Message(kind, l.locale)
}

// Localize re-renders err's message in the bound locale when err is an
// *Error built from the catalog. Other errors become KindUnknown.
func (l *Localizer) Localize(err error) *Error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	return &Error{Kind: kind, Message: l.catalog.Message(kind, l.locale), Err: err}
}
