package identity

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"kpitracker/apperrors"
	"kpitracker/config"
	"kpitracker/models"

	"github.com/golang-jwt/jwt/v5"
)

var errKeysUnavailable = errors.New("identity provider signing keys unavailable")

// Claims is the verified identity of a caller.
type Claims struct {
	UID   string
	Email string
	Name  string
	Role  models.Role
}

func (c *Claims) IsAdmin() bool {
	return c != nil && c.Role == models.RoleAdmin
}

type tokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates identity-provider ID tokens. Signing keys are fetched
// lazily and cached until the provider's max-age passes; an unknown kid
// triggers a refetch at most once per minRefresh.
type Verifier struct {
	keysURL    string
	audience   string
	issuer     string
	minRefresh time.Duration
	leeway     time.Duration
	client     *http.Client
	now        func() time.Time

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	expiresAt time.Time
}

func NewVerifier(cfg config.IdentityConfig, client *http.Client) *Verifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Verifier{
		keysURL:    cfg.KeysURL,
		audience:   cfg.ProjectID,
		issuer:     cfg.Issuer(),
		minRefresh: cfg.MinRefreshInterval,
		leeway:     cfg.ClockSkew,
		client:     client,
		now:        time.Now,
	}
}

// Verify checks signature, expiry, audience and issuer of raw and returns its claims.
// Failures are classified unauthenticated, except an unreachable key endpoint which is internal.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}
		return v.publicKey(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, errKeysUnavailable) {
			return nil, apperrors.Internal(err, "Unable to verify authentication token")
		}
		return nil, apperrors.Wrap(err, apperrors.KindUnauthenticated, "Invalid or expired authentication token")
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, apperrors.Unauthenticated("Invalid authentication token claims")
	}
	return &Claims{
		UID:   claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  models.RoleOrDefault(claims.Role),
	}, nil
}

func (v *Verifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := v.freshLocked()
	v.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	// Refreshes are serialized; waiters reuse the result.
	v.mu.Lock()
	defer v.mu.Unlock()

	key, ok = v.keys[kid]
	fresh = v.freshLocked()
	if ok && fresh {
		return key, nil
	}
	if v.keys == nil || !fresh || v.now().Sub(v.fetchedAt) >= v.minRefresh {
		if err := v.refreshLocked(ctx); err != nil {
			if ok {
				return key, nil
			}
			return nil, err
		}
		key, ok = v.keys[kid]
	}
	if !ok {
		return nil, fmt.Errorf("no public key for kid %q", kid)
	}
	return key, nil
}

func (v *Verifier) freshLocked() bool {
	if v.keys == nil {
		return false
	}
	return v.expiresAt.IsZero() || v.now().Before(v.expiresAt)
}

func (v *Verifier) refreshLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.keysURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", errKeysUnavailable, err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errKeysUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: key endpoint returned %s", errKeysUnavailable, resp.Status)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return fmt.Errorf("%w: decode keys: %v", errKeysUnavailable, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pem := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return fmt.Errorf("%w: parse key %q: %v", errKeysUnavailable, kid, err)
		}
		keys[kid] = key
	}

	now := v.now()
	v.keys = keys
	v.fetchedAt = now
	v.expiresAt = time.Time{}
	if maxAge, ok := parseMaxAge(resp.Header.Get("Cache-Control")); ok {
		v.expiresAt = now.Add(maxAge)
	}
	return nil
}

func parseMaxAge(cacheControl string) (time.Duration, bool) {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(value)
		if err != nil || seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	return 0, false
}
