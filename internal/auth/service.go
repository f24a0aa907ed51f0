package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Service wires credential verification, RBAC expansion, and token issuance
// into the login and refresh flows. It is stateless per request: every call
// reconstructs the claim sets from the current store contents, so role changes
// take effect on the next issuance, never retroactively on outstanding tokens.
type Service struct {
	store    Store
	tokens   *Tokens
	resolver *Resolver
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the login/refresh service.
func NewService(store Store, tokens *Tokens, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if tokens == nil {
		return nil, errors.New("tokens is required")
	}
	s := &Service{
		store:    store,
		tokens:   tokens,
		resolver: NewResolver(store.Roles(), store.Permissions()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Tokens exposes the underlying issuer/verifier for the HTTP layer.
func (s *Service) Tokens() *Tokens { return s.tokens }

// Resolver exposes the RBAC resolver.
func (s *Service) Resolver() *Resolver { return s.resolver }

// TokenPair holds a freshly issued access/refresh pair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// LoginResult is everything a successful login or refresh produces.
type LoginResult struct {
	User    *User
	Session *Session
	Pair    TokenPair
}

// Login verifies credentials against the store, expands RBAC, mints a token
// pair, and records the login time. Unknown identifier, inactive account, and
// wrong password all collapse to ErrInvalidCredentials — callers must not be
// able to tell which check failed.
func (s *Service) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(strings.ToLower(identifier))
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.store.Users().FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrInvalidCredentials
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	result, err := s.issueFor(ctx, user)
	if err != nil {
		return nil, err
	}

	when := s.now().UTC()
	if err := s.store.Users().UpdateLastLogin(ctx, user.ID, when); err != nil {
		return nil, err
	}
	user.LastLogin = &when
	return result, nil
}

// Refresh validates a refresh token, reloads the subject, and mints a fresh
// pair from the user's current role assignments. The refresh type marker is
// enforced: an access token presented here is rejected.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.tokens.Verify(refreshToken, KindRefresh)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.store.Users().FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrInvalidToken
	}
	return s.issueFor(ctx, user)
}

// ResolveAccessToken verifies an access token and builds the session it
// describes. Sessions are built from claims alone; no store round trip.
func (s *Service) ResolveAccessToken(raw string) (*Session, error) {
	claims, err := s.tokens.Verify(raw, KindAccess)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return NewSession(claims), nil
}

func (s *Service) issueFor(ctx context.Context, user *User) (*LoginResult, error) {
	roleNames, permNames, err := s.resolver.Expand(ctx, user)
	if err != nil {
		return nil, err
	}

	claims := Claims{
		Subject:     user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Roles:       roleNames,
		Permissions: permNames,
		Metadata:    user.AppMetadata,
	}
	access, accessExp, err := s.tokens.IssueAccessToken(claims)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User:    user,
		Session: NewSession(&claims),
		Pair: TokenPair{
			AccessToken:      access,
			RefreshToken:     refresh,
			AccessExpiresAt:  accessExp,
			RefreshExpiresAt: refreshExp,
		},
	}, nil
}
