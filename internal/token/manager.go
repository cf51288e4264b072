package token

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stravasync/stravasync/internal/errors"
	"github.com/stravasync/stravasync/internal/logging"
	"github.com/stravasync/stravasync/internal/models"
)

// DefaultSafetyMargin is how long before actual expiry a credential is
// treated as expired. A token valid for only a few seconds could lapse
// mid-pagination and force retry-on-401 logic into the fetcher.
const DefaultSafetyMargin = 300 * time.Second

// Manager decides whether the stored credential is still usable and
// drives renewal against the authorization server when it is not.
type Manager struct {
	store        *Store
	authURL      string
	clientID     string
	clientSecret string
	safetyMargin time.Duration
	httpClient   *http.Client
	logger       *logging.Logger
	now          func() time.Time

	observeRefresh func(outcome string)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSafetyMargin overrides the proactive renewal margin.
func WithSafetyMargin(margin time.Duration) ManagerOption {
	return func(m *Manager) {
		m.safetyMargin = margin
	}
}

// WithTimeout overrides the authorization request timeout.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.httpClient.Timeout = timeout
	}
}

// WithClock overrides the time source for testing.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithRefreshObserver attaches a callback invoked after every refresh
// attempt with "success" or "failure", typically a metrics counter.
func WithRefreshObserver(obs func(outcome string)) ManagerOption {
	return func(m *Manager) {
		m.observeRefresh = obs
	}
}

// NewManager creates a token lifecycle manager.
func NewManager(store *Store, authURL, clientID, clientSecret string, logger *logging.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:        store,
		authURL:      authURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		safetyMargin: DefaultSafetyMargin,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetValidCredential loads the stored credential and refreshes it when
// less than the safety margin remains. The refreshed credential is
// persisted before it is returned, so the caller never holds a token
// the store does not.
func (m *Manager) GetValidCredential(ctx context.Context) (*models.Credential, error) {
	cred, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	remaining := cred.Remaining(m.now())
	if remaining >= m.safetyMargin {
		m.logger.Debug("token still valid",
			"access_token", models.Redacted(cred.AccessToken),
			"remaining_seconds", int(remaining.Seconds()))
		return cred, nil
	}

	m.logger.InfoWithContext(ctx, "token expired or about to expire, refreshing",
		"remaining_seconds", int(remaining.Seconds()))

	refreshed, err := m.refresh(ctx, cred)
	if err != nil {
		m.recordRefresh("failure")
		return nil, err
	}
	m.recordRefresh("success")

	if err := m.store.Save(refreshed); err != nil {
		return nil, err
	}

	m.logger.InfoWithContext(ctx, "token refreshed",
		"access_token", models.Redacted(refreshed.AccessToken),
		"expires_at", refreshed.ExpiresAtTime().UTC().Format(time.RFC3339))

	return refreshed, nil
}

// Exchange performs the initial authorization-code exchange and
// persists the resulting credential.
func (m *Manager) Exchange(ctx context.Context, code string) (*models.Credential, error) {
	if m.clientID == "" || m.clientSecret == "" {
		return nil, &errors.AuthError{Reason: "client credentials not configured"}
	}

	form := url.Values{
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
	}

	cred, err := m.tokenRequest(ctx, form)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(cred); err != nil {
		return nil, err
	}
	return cred, nil
}

func (m *Manager) recordRefresh(outcome string) {
	if m.observeRefresh != nil {
		m.observeRefresh(outcome)
	}
}

func (m *Manager) refresh(ctx context.Context, current *models.Credential) (*models.Credential, error) {
	clientID := m.clientID
	clientSecret := m.clientSecret
	// Credentials stored alongside the token win over configuration so
	// a token file is self-contained.
	if current.ClientID != "" {
		clientID = current.ClientID
	}
	if current.ClientSecret != "" {
		clientSecret = current.ClientSecret
	}
	if clientID == "" || clientSecret == "" {
		return nil, &errors.AuthError{Reason: "client credentials not configured"}
	}
	if current.RefreshToken == "" {
		return nil, &errors.AuthError{Reason: "stored credential has no refresh_token"}
	}

	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {current.RefreshToken},
	}

	cred, err := m.tokenRequest(ctx, form)
	if err != nil {
		return nil, err
	}

	// Carry the client credentials forward; the authorization server
	// never echoes them back.
	cred.ClientID = current.ClientID
	cred.ClientSecret = current.ClientSecret
	return cred, nil
}

func (m *Manager) tokenRequest(ctx context.Context, form url.Values) (*models.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &errors.AuthError{Reason: "building token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, &errors.AuthError{Reason: "authorization server unreachable", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, &errors.AuthError{
			Reason: "authorization server rejected request",
			Status: resp.StatusCode,
			Body:   string(body),
		}
	}

	var cred models.Credential
	if err := json.Unmarshal(body, &cred); err != nil {
		return nil, &errors.AuthError{Reason: "token response is not valid JSON", Err: err}
	}
	if err := cred.Validate(); err != nil {
		return nil, &errors.AuthError{Reason: "token response incomplete", Err: err}
	}
	return &cred, nil
}
