package notify

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrivateKeyPEM(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	return string(pem.EncodeToMemory(block)), key
}

func TestTokenExchangeAndCaching(t *testing.T) {
	keyPEM, key := testPrivateKeyPEM(t)

	exchanges := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, assertionGrantType, r.Form.Get("grant_type"))

		assertion := r.Form.Get("assertion")
		require.NotEmpty(t, assertion)

		parsed, err := jwt.Parse(assertion, func(token *jwt.Token) (any, error) {
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		require.NoError(t, err)

		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, "svc@example.iam.gserviceaccount.com", claims["iss"])
		assert.Equal(t, MessagingScope, claims["scope"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"minted-token","expires_in":3600}`))
	}))
	t.Cleanup(server.Close)

	source, err := NewTokenSource(ServiceAccount{
		ProjectID:   "test-project",
		ClientEmail: "svc@example.iam.gserviceaccount.com",
		PrivateKey:  keyPEM,
		TokenURI:    server.URL,
	})
	require.NoError(t, err)

	token, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minted-token", token)

	// Second call is served from cache.
	token, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minted-token", token)
	assert.Equal(t, 1, exchanges)
}

func TestNewTokenSourceRejectsBadKey(t *testing.T) {
	_, err := NewTokenSource(ServiceAccount{
		ClientEmail: "svc@example.iam.gserviceaccount.com",
		PrivateKey:  "not a key",
		TokenURI:    "https://oauth2.example.com/token",
	})
	assert.Error(t, err)
}

func TestLoadServiceAccount(t *testing.T) {
	keyPEM, _ := testPrivateKeyPEM(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "service-account.json")
	raw := `{
		"project_id": "test-project",
		"client_email": "svc@example.iam.gserviceaccount.com",
		"private_key": ` + mustJSONString(t, keyPEM) + `,
		"token_uri": "https://oauth2.example.com/token"
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	account, err := LoadServiceAccount(path)
	require.NoError(t, err)
	assert.Equal(t, "test-project", account.ProjectID)
	assert.Equal(t, "svc@example.iam.gserviceaccount.com", account.ClientEmail)

	_, err = LoadServiceAccount(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	incomplete := filepath.Join(dir, "incomplete.json")
	require.NoError(t, os.WriteFile(incomplete, []byte(`{"project_id":"p"}`), 0o600))
	_, err = LoadServiceAccount(incomplete)
	assert.Error(t, err)
}

func mustJSONString(t *testing.T, s string) string {
	t.Helper()

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	return string(raw)
}
