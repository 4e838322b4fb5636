package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

// MessagingScope is the OAuth scope required by the push endpoint.
const MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"

const assertionGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// tokenExpirySlack forces a refresh slightly before the advertised expiry.
const tokenExpirySlack = time.Minute

// ServiceAccount is the credential document issued for a service identity.
type ServiceAccount struct {
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// LoadServiceAccount reads and parses a service-account JSON file.
func LoadServiceAccount(path string) (ServiceAccount, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ServiceAccount{}, fmt.Errorf("read service account: %w", err)
	}

	var account ServiceAccount
	if err := json.Unmarshal(raw, &account); err != nil {
		return ServiceAccount{}, fmt.Errorf("parse service account: %w", err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" || account.TokenURI == "" {
		return ServiceAccount{}, errors.New("service account is missing client_email, private_key or token_uri")
	}

	return account, nil
}

// OAuthTokenSource exchanges a signed service-account assertion for a bearer
// token and caches it until shortly before expiry.
type OAuthTokenSource struct {
	account ServiceAccount
	scope   string
	client  *resty.Client

	mu     sync.Mutex
	cached string
	expiry time.Time
}

// NewTokenSource validates the account's signing key and returns a source
// scoped for push messaging.
func NewTokenSource(account ServiceAccount) (*OAuthTokenSource, error) {
	if _, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey)); err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}

	return &OAuthTokenSource{
		account: account,
		scope:   MessagingScope,
		client:  resty.New().SetTimeout(defaultTimeout),
	}, nil
}

// Token returns a valid bearer token, minting a new one when the cached
// token is absent or near expiry.
func (s *OAuthTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" && time.Now().Before(s.expiry.Add(-tokenExpirySlack)) {
		return s.cached, nil
	}

	assertion, err := s.signAssertion()
	if err != nil {
		return "", err
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type": assertionGrantType,
			"assertion":  assertion,
		}).
		SetResult(&result).
		Post(s.account.TokenURI)
	if err != nil {
		return "", fmt.Errorf("exchange token assertion: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode(), resp.Body())
	}
	if result.AccessToken == "" {
		return "", errors.New("token endpoint returned no access token")
	}

	s.cached = result.AccessToken
	s.expiry = time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	return s.cached, nil
}

func (s *OAuthTokenSource) signAssertion() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(s.account.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse service account key: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   s.account.ClientEmail,
		"scope": s.scope,
		"aud":   s.account.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token assertion: %w", err)
	}
	return assertion, nil
}
