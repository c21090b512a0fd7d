package jwt

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TypeAccess is the only token type this codec issues or accepts.
const TypeAccess = "access"

// MinSecretLength is the shortest accepted HMAC secret in bytes.
const MinSecretLength = 32

// ErrTokenInvalid is the single failure Verify reports. The wrapped cause is
// meant for logs only.
var ErrTokenInvalid = errors.New("token invalid")

// Config holds codec parameters.
type Config struct {
	Secret    []byte
	Issuer    string
	Audience  string
	AccessTTL time.Duration
	Leeway    time.Duration

	// KeyID is written to the kid header. When VerifyKeys is set, verification
	// selects the secret by kid, which allows a previous secret to keep
	// validating tokens during rotation.
	KeyID      string
	VerifyKeys map[string][]byte
}

// Codec signs and verifies HS512 access tokens.
type Codec struct {
	config Config
	now    func() time.Time
}

// AccessClaims is the access-token claim set.
type AccessClaims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// NewCodec validates cfg and returns a [Codec].
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if strings.TrimSpace(cfg.Issuer) == "" || strings.TrimSpace(cfg.Audience) == "" {
		return nil, errors.New("issuer and audience are required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	for kid, key := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		if len(key) < MinSecretLength {
			return nil, fmt.Errorf("verify key for kid %q is shorter than %d bytes", kid, MinSecretLength)
		}
	}
	if len(cfg.VerifyKeys) > 0 {
		if cfg.KeyID == "" {
			return nil, errors.New("KeyID is required when VerifyKeys is set")
		}
		current, ok := cfg.VerifyKeys[cfg.KeyID]
		if !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
		if !hmac.Equal(current, cfg.Secret) {
			return nil, errors.New("VerifyKeys entry for KeyID must equal Secret")
		}
	}

	return &Codec{config: cfg, now: time.Now}, nil
}

// WithClock returns a copy of the codec that reads time from now. Intended
// for tests and deterministic replays.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// AccessTTL returns the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration {
	return c.config.AccessTTL
}

// SignAccess mints an access token for the user.
func (c *Codec) SignAccess(uid, email string) (string, error) {
	if uid == "" {
		return "", errors.New("empty subject")
	}
	now := c.now()
	claims := AccessClaims{
		UID:   uid,
		Email: email,
		Type:  TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    c.config.Issuer,
			Audience:  jwt.ClaimStrings{c.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.config.AccessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}

	return token.SignedString(c.config.Secret)
}

// Verify checks the token and returns its claims. A token issued in the
// future beyond the leeway is rejected. Every failure wraps [ErrTokenInvalid].
func (c *Codec) Verify(tokenStr string) (*AccessClaims, error) {
	if tokenStr == "" {
		return nil, ErrTokenInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer(c.config.Issuer),
		jwt.WithAudience(c.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(c.config.Leeway),
		jwt.WithTimeFunc(c.now),
	)

	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.verifyKey(t)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Type != TypeAccess {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrTokenInvalid, claims.Type)
	}
	if claims.UID == "" || claims.Subject != claims.UID {
		return nil, fmt.Errorf("%w: subject mismatch", ErrTokenInvalid)
	}

	return claims, nil
}

func (c *Codec) verifyKey(t *jwt.Token) (interface{}, error) {
	kid, _ := t.Header["kid"].(string)

	if len(c.config.VerifyKeys) > 0 {
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := c.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return key, nil
	}

	if c.config.KeyID != "" && kid != c.config.KeyID {
		return nil, errors.New("unknown kid")
	}

	return c.config.Secret, nil
}
