package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testIssuer = "https://keycloak.test/realms/practice"

// TestVerifier_ParseAndVerifyToken_Success tests successful token parsing
func TestVerifier_ParseAndVerifyToken_Success(t *testing.T) {
	privateKey, publicKey := generateTestKeyPair(t)
	verifier := NewVerifier(Config{Issuer: testIssuer}, newMockKeys(publicKey))

	tokenString := signToken(t, privateKey, jwt.MapClaims{
		"sub":   "user-123",
		"iss":   testIssuer,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
		"email": "dr.smile@practice.test",
		"name":  "Dr Smile",
		"realm_access": map[string]interface{}{
			"roles": []interface{}{"ORTHODONTIST", "offline_access"},
		},
	})

	principal, err := verifier.ParseAndVerifyToken(tokenString)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if principal.UserID != "user-123" {
		t.Errorf("Expected UserID 'user-123', got '%s'", principal.UserID)
	}
	if principal.Email != "dr.smile@practice.test" {
		t.Errorf("Expected email claim, got '%s'", principal.Email)
	}
	if principal.Name != "Dr Smile" {
		t.Errorf("Expected name 'Dr Smile', got '%s'", principal.Name)
	}
	if len(principal.Roles) != 2 {
		t.Errorf("Expected 2 roles, got %d", len(principal.Roles))
	}
	if !principal.HasRole("orthodontist") {
		t.Error("Expected case-insensitive role match")
	}
}

func TestVerifier_ParseAndVerifyToken_EmptyToken(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)
	verifier := NewVerifier(Config{Issuer: testIssuer}, newMockKeys(publicKey))

	_, err := verifier.ParseAndVerifyToken("   ")
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("Expected ErrNoToken, got %v", err)
	}
}

func TestVerifier_ParseAndVerifyToken_InvalidIssuer(t *testing.T) {
	privateKey, publicKey := generateTestKeyPair(t)
	verifier := NewVerifier(Config{Issuer: testIssuer}, newMockKeys(publicKey))

	tokenString := signToken(t, privateKey, jwt.MapClaims{
		"sub": "user-123",
		"iss": "https://evil.test/realms/other",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := verifier.ParseAndVerifyToken(tokenString)
	if !errors.Is(err, ErrInvalidIssuer) {
		t.Errorf("Expected ErrInvalidIssuer, got %v", err)
	}
}

func TestVerifier_ParseAndVerifyToken_ExpiredToken(t *testing.T) {
	privateKey, publicKey := generateTestKeyPair(t)
	verifier := NewVerifier(Config{Issuer: testIssuer}, newMockKeys(publicKey))

	tokenString := signToken(t, privateKey, jwt.MapClaims{
		"sub": "user-123",
		"iss": testIssuer,
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := verifier.ParseAndVerifyToken(tokenString)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifier_ParseAndVerifyToken_MissingSubClaim(t *testing.T) {
	privateKey, publicKey := generateTestKeyPair(t)
	verifier := NewVerifier(Config{Issuer: testIssuer}, newMockKeys(publicKey))

	tokenString := signToken(t, privateKey, jwt.MapClaims{
		"iss": testIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := verifier.ParseAndVerifyToken(tokenString)
	if !errors.Is(err, ErrMissingSub) {
		t.Errorf("Expected ErrMissingSub, got %v", err)
	}
}

func TestVerifier_ParseAndVerifyToken_NoKid(t *testing.T) {
	privateKey, publicKey := generateTestKeyPair(t)
	verifier := NewVerifier(Config{Issuer: testIssuer}, newMockKeys(publicKey))

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "user-123",
		"iss": testIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tokenString, err := token.SignedString(privateKey)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	_, err = verifier.ParseAndVerifyToken(tokenString)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifier_ParseAndVerifyToken_WrongAlgorithm(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)
	verifier := NewVerifier(Config{Issuer: testIssuer}, newMockKeys(publicKey))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-123",
		"iss": testIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "test-key-id"
	tokenString, err := token.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	_, err = verifier.ParseAndVerifyToken(tokenString)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifier_ParseAndVerifyToken_Audience(t *testing.T) {
	privateKey, publicKey := generateTestKeyPair(t)
	verifier := NewVerifier(Config{Issuer: testIssuer, Audience: "practice-api"}, newMockKeys(publicKey))

	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "user-123",
			"iss": testIssuer,
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	withAud := base()
	withAud["aud"] = []interface{}{"account", "practice-api"}
	if _, err := verifier.ParseAndVerifyToken(signToken(t, privateKey, withAud)); err != nil {
		t.Errorf("Expected aud match, got %v", err)
	}

	withAzp := base()
	withAzp["azp"] = "practice-api"
	if _, err := verifier.ParseAndVerifyToken(signToken(t, privateKey, withAzp)); err != nil {
		t.Errorf("Expected azp match, got %v", err)
	}

	other := base()
	other["aud"] = "account"
	if _, err := verifier.ParseAndVerifyToken(signToken(t, privateKey, other)); !errors.Is(err, ErrInvalidAudience) {
		t.Errorf("Expected ErrInvalidAudience, got %v", err)
	}
}

func TestVerifier_ParseAndVerifyToken_NoRoles(t *testing.T) {
	privateKey, publicKey := generateTestKeyPair(t)
	verifier := NewVerifier(Config{Issuer: testIssuer}, newMockKeys(publicKey))

	principal, err := verifier.ParseAndVerifyToken(signToken(t, privateKey, jwt.MapClaims{
		"sub": "user-123",
		"iss": testIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	}))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(principal.Roles) != 0 {
		t.Errorf("Expected no roles, got %v", principal.Roles)
	}
}

func TestJWKS_FetchesAndCachesKeys(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(jwksJSON{Keys: []jwkKey{
			{
				Kty: "RSA",
				Kid: "test-key-id",
				Alg: "RS256",
				Use: "sig",
				N:   base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes()),
			},
			{Kty: "EC", Kid: "ec-key"},
		}})
	}))
	defer srv.Close()

	jwks, err := NewJWKS(srv.URL, time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer jwks.Close()

	got, err := jwks.Get("test-key-id")
	if err != nil {
		t.Fatalf("Expected key, got error: %v", err)
	}
	if got.N.Cmp(publicKey.N) != 0 || got.E != publicKey.E {
		t.Error("Expected decoded key to equal the published key")
	}
	if hits.Load() != 1 {
		t.Errorf("Expected cached lookup, got %d fetches", hits.Load())
	}

	if _, err := jwks.Get("unknown"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("Expected one refresh on unknown kid, got %d fetches", hits.Load())
	}

	if _, err := jwks.Get("another-unknown"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("Expected throttled refresh for repeated misses, got %d fetches", hits.Load())
	}
}

func TestJWKS_NoSigningKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jwksJSON{Keys: []jwkKey{{Kty: "RSA", Kid: "enc", Use: "enc"}}})
	}))
	defer srv.Close()

	if _, err := NewJWKS(srv.URL, time.Hour); err == nil {
		t.Error("Expected error when no signing keys are published")
	}
}

func TestJWKS_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewJWKS(srv.URL, time.Hour); err == nil {
		t.Error("Expected error for non-200 JWKS response")
	}
}

// Helper functions

func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	return privateKey, &privateKey.PublicKey
}

type mockKeys map[string]*rsa.PublicKey

func (m mockKeys) Get(kid string) (*rsa.PublicKey, error) {
	if k, ok := m[kid]; ok {
		return k, nil
	}
	return nil, ErrKeyNotFound
}

func newMockKeys(publicKey *rsa.PublicKey) mockKeys {
	return mockKeys{"test-key-id": publicKey}
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key-id"
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return s
}
