package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour

	tokenTypeRefresh = "refresh"
)

// TokenKind selects which validation rules Verify applies. Access and refresh
// tokens are signed with the same secret, so the kind check is what keeps a
// refresh token from ever acting as an access credential.
type TokenKind int

const (
	KindAccess TokenKind = iota
	KindRefresh
)

// reservedClaims are payload keys owned by the issuer. Caller-supplied metadata
// never shadows them.
var reservedClaims = map[string]struct{}{
	"sub": {}, "username": {}, "email": {}, "roles": {}, "permissions": {},
	"iat": {}, "exp": {}, "nbf": {}, "iss": {}, "aud": {}, "jti": {}, "type": {},
}

// Tokens issues and verifies HS256-signed tokens with a single shared secret.
// Issuance is pure computation; nothing here touches storage.
type Tokens struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokensOption configures Tokens.
type TokensOption func(*Tokens)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) TokensOption {
	return func(t *Tokens) {
		if ttl > 0 {
			t.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokensOption {
	return func(t *Tokens) {
		if ttl > 0 {
			t.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokensOption {
	return func(t *Tokens) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokens constructs a token issuer/verifier around the shared secret.
func NewTokens(secret string, opts ...TokensOption) (*Tokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	t := &Tokens{
		secret:     []byte(secret),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// AccessTTL returns the configured access token lifetime.
func (t *Tokens) AccessTTL() time.Duration { return t.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (t *Tokens) RefreshTTL() time.Duration { return t.refreshTTL }

// IssueAccessToken signs an access token carrying identity, the flattened RBAC
// sets, and the user's appMetadata merged into the top level of the payload.
func (t *Tokens) IssueAccessToken(c Claims) (string, time.Time, error) {
	if strings.TrimSpace(c.Subject) == "" {
		return "", time.Time{}, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	now := t.now().UTC()
	exp := now.Add(t.accessTTL)

	mc := jwt.MapClaims{
		"sub":         c.Subject,
		"username":    c.Username,
		"email":       c.Email,
		"roles":       stringSlice(c.Roles),
		"permissions": stringSlice(c.Permissions),
		"iat":         now.Unix(),
		"exp":         exp.Unix(),
		"jti":         uuid.NewString(),
	}
	for k, v := range c.Metadata {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		mc[k] = v
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// IssueRefreshToken signs a refresh token carrying only the subject reference
// and the refresh type marker.
func (t *Tokens) IssueRefreshToken(subjectID string) (string, time.Time, error) {
	if strings.TrimSpace(subjectID) == "" {
		return "", time.Time{}, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	now := t.now().UTC()
	exp := now.Add(t.refreshTTL)

	mc := jwt.MapClaims{
		"sub":  subjectID,
		"type": tokenTypeRefresh,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature and expiry and returns the decoded claims. Malformed
// structure, signature mismatch, and expiry all collapse to ErrInvalidToken;
// callers get no distinction between tampered and expired. The kind parameter
// rejects refresh tokens presented as access credentials and vice versa.
func (t *Tokens) Verify(raw string, kind TokenKind) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.Parse(raw, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	claims, err := claimsFromPayload(mc)
	if err != nil {
		return nil, ErrInvalidToken
	}
	switch kind {
	case KindAccess:
		if claims.TokenType == tokenTypeRefresh {
			return nil, ErrInvalidToken
		}
	case KindRefresh:
		if claims.TokenType != tokenTypeRefresh {
			return nil, ErrInvalidToken
		}
	default:
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func claimsFromPayload(payload map[string]any) (*Claims, error) {
	sub, _ := payload["sub"].(string)
	if strings.TrimSpace(sub) == "" {
		return nil, ErrInvalidToken
	}
	c := &Claims{Subject: sub}
	if v, ok := payload["username"].(string); ok {
		c.Username = v
	}
	if v, ok := payload["email"].(string); ok {
		c.Email = v
	}
	if v, ok := payload["type"].(string); ok {
		c.TokenType = v
	}
	c.Roles = toStringSlice(payload["roles"])
	c.Permissions = toStringSlice(payload["permissions"])
	if v, ok := toInt64(payload["iat"]); ok {
		c.IssuedAt = time.Unix(v, 0).UTC()
	}
	if v, ok := toInt64(payload["exp"]); ok {
		c.ExpiresAt = time.Unix(v, 0).UTC()
	}
	for k, v := range payload {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		if c.Metadata == nil {
			c.Metadata = make(map[string]any)
		}
		c.Metadata[k] = v
	}
	return c, nil
}

func stringSlice(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case int64:
		return t, true
	case int:
		return int64(t), true
	default:
		return 0, false
	}
}

// decodePayload decodes the middle segment of a three-part token without any
// signature check. Shared by the edge validator.
func decodePayload(raw string) (map[string]any, error) {
	segments := strings.Split(raw, ".")
	if len(segments) != 3 {
		return nil, ErrInvalidToken
	}
	payloadJSON, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return nil, ErrInvalidToken
	}
	var payload map[string]any
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return nil, ErrInvalidToken
	}
	return payload, nil
}
