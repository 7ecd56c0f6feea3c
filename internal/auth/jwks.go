package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// KeyProvider resolves RSA public keys by kid.
type KeyProvider interface {
	Get(kid string) (*rsa.PublicKey, error)
}

var ErrKeyNotFound = errors.New("jwks: key not found")

const (
	defaultJWKSRefresh = 15 * time.Minute
	fetchTimeout       = 10 * time.Second
	// minMissRefresh bounds how often an unknown kid may trigger a fetch, so
	// tokens with forged kids cannot hammer Keycloak.
	minMissRefresh = 10 * time.Second
)

type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksJSON struct {
	Keys []jwkKey `json:"keys"`
}

// JWKS caches the realm's RSA signing keys by kid and refreshes them in
// the background, picking up Keycloak key rotation.
type JWKS struct {
	url    string
	client *http.Client
	logger zerolog.Logger

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	lastMissRef time.Time

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

var _ KeyProvider = (*JWKS)(nil)

// NewJWKS loads the key set once and refreshes it every refreshInterval
// (15m when zero) until Close.
func NewJWKS(url string, refreshInterval time.Duration) (*JWKS, error) {
	return NewJWKSWithLogger(url, refreshInterval, zerolog.Nop())
}

// NewJWKSWithLogger is NewJWKS with refresh failures logged to logger.
func NewJWKSWithLogger(url string, refreshInterval time.Duration, logger zerolog.Logger) (*JWKS, error) {
	if refreshInterval <= 0 {
		refreshInterval = defaultJWKSRefresh
	}
	j := &JWKS{
		url:    url,
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger.With().Str("component", "jwks").Logger(),
		keys:   map[string]*rsa.PublicKey{},
		done:   make(chan struct{}),
	}
	if err := j.refresh(context.Background()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	go j.loop(ctx, refreshInterval)
	return j, nil
}

func (j *JWKS) loop(ctx context.Context, every time.Duration) {
	defer close(j.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := j.refresh(ctx); err != nil && ctx.Err() == nil {
				// keep serving the previous key set
				j.logger.Warn().Err(err).Msg("jwks refresh failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close stops background refresh and waits for it to exit.
func (j *JWKS) Close() {
	j.once.Do(func() {
		if j.cancel != nil {
			j.cancel()
			<-j.done
		}
	})
}

func (j *JWKS) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
	if err != nil {
		return err
	}
	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("jwks: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks: unexpected status %d", resp.StatusCode)
	}

	var raw jwksJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("jwks: decode: %w", err)
	}
	keys, err := parseKeys(raw.Keys)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return errors.New("jwks: no RSA signing keys published")
	}

	j.mu.Lock()
	j.keys = keys
	j.mu.Unlock()
	return nil
}

// parseKeys keeps RSA signing keys; encryption and non-RSA keys are skipped.
func parseKeys(keys []jwkKey) (map[string]*rsa.PublicKey, error) {
	out := make(map[string]*rsa.PublicKey, len(keys))
	for _, k := range keys {
		if k.Kty != "RSA" || k.Use == "enc" || k.Kid == "" {
			continue
		}
		n, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, fmt.Errorf("jwks: key %s modulus: %w", k.Kid, err)
		}
		e, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, fmt.Errorf("jwks: key %s exponent: %w", k.Kid, err)
		}
		exp := new(big.Int).SetBytes(e)
		if !exp.IsInt64() || exp.Int64() < 3 || exp.Int64() > 1<<31-1 {
			return nil, fmt.Errorf("jwks: key %s has an invalid exponent", k.Kid)
		}
		out[k.Kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}
	}
	return out, nil
}

// Get returns the key for kid. An unknown kid triggers at most one refetch
// per minMissRefresh.
func (j *JWKS) Get(kid string) (*rsa.PublicKey, error) {
	j.mu.RLock()
	p := j.keys[kid]
	j.mu.RUnlock()
	if p != nil {
		return p, nil
	}

	j.mu.Lock()
	throttled := time.Since(j.lastMissRef) < minMissRefresh
	if !throttled {
		j.lastMissRef = time.Now()
	}
	j.mu.Unlock()
	if throttled {
		return nil, ErrKeyNotFound
	}

	if err := j.refresh(context.Background()); err != nil {
		return nil, err
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if p = j.keys[kid]; p == nil {
		return nil, ErrKeyNotFound
	}
	return p, nil
}
