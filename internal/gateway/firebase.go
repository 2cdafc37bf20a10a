package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/presensia/presensia-core/config"
)

const signInEndpoint = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword"

// NewFirebaseApp initializes the Firebase Admin SDK from a service-account file.
func NewFirebaseApp(ctx context.Context, cfg *config.FirebaseConfig) (*firebase.App, error) {
	if cfg.CredentialsPath == "" {
		return nil, fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required")
	}

	opt := option.WithCredentialsFile(cfg.CredentialsPath)
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	return app, nil
}

// FirebaseIdentity is the Firebase Authentication backend. Account management
// and token checks go through the Admin SDK; password sign-in goes through the
// public REST endpoint because the Admin SDK cannot verify passwords.
type FirebaseIdentity struct {
	auth     *auth.Client
	apiKey   string
	endpoint string
	client   *http.Client
}

// FirebaseIdentityOption configures a FirebaseIdentity.
type FirebaseIdentityOption func(*FirebaseIdentity)

// WithSignInEndpoint points password sign-in at another base URL, e.g. the
// Auth emulator.
func WithSignInEndpoint(endpoint string) FirebaseIdentityOption {
	return func(f *FirebaseIdentity) { f.endpoint = endpoint }
}

func WithHTTPClient(c *http.Client) FirebaseIdentityOption {
	return func(f *FirebaseIdentity) { f.client = c }
}

func NewFirebaseIdentity(authClient *auth.Client, apiKey string, opts ...FirebaseIdentityOption) *FirebaseIdentity {
	f := &FirebaseIdentity{
		auth:     authClient,
		apiKey:   apiKey,
		endpoint: signInEndpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FirebaseIdentity) CreateAccount(ctx context.Context, email, password string) (Identity, error) {
	if err := checkCredentials(email, password); err != nil {
		return Identity{}, err
	}
	params := (&auth.UserToCreate{}).Email(strings.TrimSpace(email)).Password(password)
	rec, err := f.auth.CreateUser(ctx, params)
	if err != nil {
		return Identity{}, fmt.Errorf("create user: %w", err)
	}
	return Identity{UID: rec.UID, Email: rec.Email}, nil
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
	IDToken string `json:"idToken"`
}

type restErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (f *FirebaseIdentity) VerifyPassword(ctx context.Context, email, password string) (Identity, error) {
	body, err := json.Marshal(signInRequest{Email: strings.TrimSpace(email), Password: password, ReturnSecureToken: true})
	if err != nil {
		return Identity{}, fmt.Errorf("encode sign-in request: %w", err)
	}

	reqURL := f.endpoint + "?key=" + url.QueryEscape(f.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return Identity{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("sign-in request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Identity{}, fmt.Errorf("read sign-in response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var eb restErrorBody
		_ = json.Unmarshal(raw, &eb)
		return Identity{}, signInError(resp.StatusCode, eb.Error.Message)
	}

	var out signInResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Identity{}, fmt.Errorf("decode sign-in response: %w", err)
	}
	return Identity{UID: out.LocalID, Email: out.Email, Token: out.IDToken}, nil
}

// signInError maps the REST error message, e.g. "INVALID_PASSWORD" or
// "TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled...", onto backend sentinels.
func signInError(statusCode int, message string) error {
	code := strings.TrimSpace(strings.SplitN(message, ":", 2)[0])
	var sentinel error
	switch code {
	case "EMAIL_NOT_FOUND":
		sentinel = ErrIdentityNotFound
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		sentinel = ErrInvalidCredentials
	case "INVALID_EMAIL":
		sentinel = ErrInvalidEmail
	case "USER_DISABLED", "TOO_MANY_ATTEMPTS_TRY_LATER":
		sentinel = ErrAccountDisabled
	case "WEAK_PASSWORD":
		sentinel = ErrWeakPassword
	default:
		if statusCode >= 500 {
			sentinel = ErrUnavailable
		} else {
			return fmt.Errorf("sign-in rejected: status %d: %s", statusCode, message)
		}
	}
	return fmt.Errorf("sign-in rejected: %s: %w", code, sentinel)
}

func (f *FirebaseIdentity) VerifyToken(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	tok, err := f.auth.VerifyIDToken(ctx, token)
	if err != nil {
		return Identity{}, fmt.Errorf("verify id token: %w", err)
	}
	id := Identity{UID: tok.UID, Token: token}
	if email, ok := tok.Claims["email"].(string); ok {
		id.Email = email
	}
	return id, nil
}

func (f *FirebaseIdentity) UpdatePassword(ctx context.Context, uid, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	if _, err := f.auth.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).Password(newPassword)); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}
