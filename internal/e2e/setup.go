//go:build integration

// Package e2e drives the HTTP API against a real Postgres database.
// Run with: TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/e2e/...
package e2e

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orthoflow/practice-service/internal/appointment"
	"github.com/orthoflow/practice-service/internal/auth"
	"github.com/orthoflow/practice-service/internal/db"
	httpserver "github.com/orthoflow/practice-service/internal/http"
	"github.com/orthoflow/practice-service/internal/patient"
	"github.com/orthoflow/practice-service/internal/payment"
	"github.com/orthoflow/practice-service/internal/staff"
	"github.com/orthoflow/practice-service/internal/stats"
	"github.com/orthoflow/practice-service/internal/testutil"
	"github.com/orthoflow/practice-service/internal/treatment"
)

const (
	testIssuer = "https://keycloak.test/realms/practice"
	testKID    = "e2e-key"
)

type staticKeys map[string]*rsa.PublicKey

func (k staticKeys) Get(kid string) (*rsa.PublicKey, error) {
	if key, ok := k[kid]; ok {
		return key, nil
	}
	return nil, auth.ErrKeyNotFound
}

// TestServer is the API mounted on an httptest server over a migrated database.
type TestServer struct {
	Server        *httptest.Server
	DB            *sql.DB
	MockPublisher *testutil.MockPublisher
	privateKey    *rsa.PrivateKey
}

// SetupE2ETest migrates TEST_DATABASE_URL and serves the API against it.
func SetupE2ETest(t *testing.T) *TestServer {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	conn, err := db.Connect(ctx, db.Options{URL: dsn}, zerolog.Nop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.MigrateUp(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	verifier := auth.NewVerifier(auth.Config{Issuer: testIssuer}, staticKeys{testKID: &key.PublicKey})

	perms, err := auth.LoadPermissions("../../permissions.yml")
	if err != nil {
		t.Fatalf("load permissions: %v", err)
	}

	pub := testutil.NewMockPublisher()
	logger := zerolog.Nop()
	router := httpserver.SetupRouter(httpserver.Dependencies{
		Verifier:     verifier,
		Permissions:  perms,
		DB:           conn,
		Logger:       logger,
		Patients:     patient.NewHandler(patient.NewService(patient.NewRepository(conn), pub, nil, logger)),
		Staff:        staff.NewHandler(staff.NewService(staff.NewRepository(conn), pub, logger)),
		Treatment:    treatment.NewHandler(treatment.NewService(treatment.NewRepository(conn), pub, nil, logger)),
		Appointments: appointment.NewHandler(appointment.NewService(appointment.NewRepository(conn), pub, nil, logger)),
		Payments:     payment.NewHandler(payment.NewService(payment.NewRepository(conn), pub, nil, logger)),
		Stats:        stats.NewHandler(stats.NewService(conn, nil, 0, time.UTC, logger)),
	})

	ts := &TestServer{
		Server:        httptest.NewServer(router),
		DB:            conn,
		MockPublisher: pub,
		privateKey:    key,
	}
	t.Cleanup(func() { ts.cleanup(t) })
	return ts
}

func (ts *TestServer) cleanup(t *testing.T) {
	t.Helper()
	ts.Server.Close()
	_, err := ts.DB.Exec(`TRUNCATE patients, staff, sync_runs CASCADE`)
	if err != nil {
		t.Errorf("truncate: %v", err)
	}
	ts.DB.Close()
}

// Token signs an access token carrying role as its only realm role.
func (ts *TestServer) Token(t *testing.T, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":          testIssuer,
		"sub":          uuid.NewString(),
		"email":        role + "@practice.test",
		"exp":          time.Now().Add(time.Hour).Unix(),
		"realm_access": map[string]interface{}{"roles": []string{role}},
	})
	tok.Header["kid"] = testKID
	signed, err := tok.SignedString(ts.privateKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// Client is a JSON client bound to one bearer token.
type Client struct {
	base  string
	token string
}

func (ts *TestServer) NewClient(token string) *Client {
	return &Client{base: ts.Server.URL, token: token}
}

// Do sends body as JSON and decodes the response into out when out is non-nil.
func (c *Client) Do(t *testing.T, method, path string, body, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}
