package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

const (
	firebaseIssuerPrefix = "https://securetoken.google.com/"
	// DefaultFirebaseKeysURL serves the JWKS used to sign Firebase ID tokens.
	DefaultFirebaseKeysURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
	// DefaultFirebaseSignInEndpoint is the identitytoolkit password sign-in endpoint.
	DefaultFirebaseSignInEndpoint = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword"

	defaultFirebaseTimeout = 5 * time.Second
)

// FirebaseConfig configures Firebase Authentication.
type FirebaseConfig struct {
	ProjectID      string
	APIKey         string
	SignInEndpoint string
	KeysURL        string
	// Timeout bounds each sign-in and key fetch.
	Timeout    time.Duration
	HTTPClient *http.Client
	Clock      func() time.Time
}

// FirebaseProvider verifies Firebase ID tokens as OIDC JWTs and performs
// password sign-in through the identitytoolkit REST API.
type FirebaseProvider struct {
	verifier *oidc.IDTokenVerifier
	client   *http.Client
	apiKey   string
	signIn   string
	timeout  time.Duration
}

// NewFirebaseProvider builds a provider backed by Google's published signing keys.
func NewFirebaseProvider(ctx context.Context, cfg FirebaseConfig) (*FirebaseProvider, error) {
	keysURL := strings.TrimSpace(cfg.KeysURL)
	if keysURL == "" {
		keysURL = DefaultFirebaseKeysURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: firebaseTimeout(cfg.Timeout)}
	}
	ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	return newFirebaseProvider(cfg, oidc.NewRemoteKeySet(ctx, keysURL))
}

func newFirebaseProvider(cfg FirebaseConfig, keySet oidc.KeySet) (*FirebaseProvider, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, errors.New("firebase: project id is required")
	}

	signIn := strings.TrimSpace(cfg.SignInEndpoint)
	if signIn == "" {
		signIn = DefaultFirebaseSignInEndpoint
	}
	timeout := firebaseTimeout(cfg.Timeout)
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	verifier := oidc.NewVerifier(firebaseIssuerPrefix+projectID, keySet, &oidc.Config{
		ClientID: projectID,
		Now:      cfg.Clock,
	})

	return &FirebaseProvider{
		verifier: verifier,
		client:   client,
		apiKey:   strings.TrimSpace(cfg.APIKey),
		signIn:   signIn,
		timeout:  timeout,
	}, nil
}

func firebaseTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultFirebaseTimeout
	}
	return d
}

type firebaseClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// VerifyToken validates signature, issuer, audience and expiry of a Firebase ID token.
func (p *FirebaseProvider) VerifyToken(ctx context.Context, token string) (*Actor, error) {
	idToken, err := p.verifier.Verify(ctx, token)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims firebaseClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %v", ErrInvalidToken, err)
	}
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: token has no email claim", ErrInvalidToken)
	}

	return &Actor{
		Subject:   idToken.Subject,
		Email:     email,
		Provider:  "firebase",
		ExpiresAt: idToken.Expiry,
	}, nil
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	Email        string `json:"email"`
}

type signInError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn exchanges email and password for a Firebase ID token.
func (p *FirebaseProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: firebase api key not configured", ErrProviderUnavailable)
	}

	body, err := json.Marshal(signInRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, err
	}

	endpoint, err := url.Parse(p.signIn)
	if err != nil {
		return nil, fmt.Errorf("firebase: parse sign-in endpoint: %w", err)
	}
	query := endpoint.Query()
	query.Set("key", p.apiKey)
	endpoint.RawQuery = query.Encode()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrProviderUnavailable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		var failure signInError
		_ = json.Unmarshal(payload, &failure)
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, failure.Error.Message)
	}

	var result signInResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProviderUnavailable, err)
	}
	expiresIn, _ := strconv.ParseInt(result.ExpiresIn, 10, 64)

	return &Session{
		IDToken:      result.IDToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    expiresIn,
		Email:        strings.ToLower(result.Email),
	}, nil
}
