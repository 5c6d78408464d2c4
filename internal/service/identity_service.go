package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"docchat-client/internal/entity"
	"docchat-client/internal/pkg/logger"
	"docchat-client/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// IdentityListener sees every identity transition. prev or next is nil when
// signed out. Listeners run synchronously, in registration order.
type IdentityListener func(ctx context.Context, prev, next *entity.Identity)

type IIdentityService interface {
	SignIn(ctx context.Context, accessToken string) (entity.Identity, error)
	SignOut(ctx context.Context)
	Current() (entity.Identity, bool)
	Verify(accessToken string) (entity.Identity, error)
	OnChange(fn IdentityListener)
	TokenSource() oauth2.TokenSource
}

// supabaseClaims mirrors the access token issued by Supabase auth.
type supabaseClaims struct {
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

type identityService struct {
	secret []byte
	logger logger.ILogger
	now    func() time.Time

	mu        sync.RWMutex
	current   *entity.Identity
	listeners []IdentityListener
}

func NewIdentityService(jwtSecret string, log logger.ILogger) IIdentityService {
	if jwtSecret == "" {
		log.Warn("IdentityService", "No JWT secret configured, access tokens are not verified", nil)
	}
	return &identityService{
		secret: []byte(jwtSecret),
		logger: log,
		now:    time.Now,
	}
}

// Verify parses accessToken into an Identity. Without a secret the signature
// is not checked; the chat backend and store still enforce it.
func (s *identityService) Verify(accessToken string) (entity.Identity, error) {
	const op = "IdentityService.Verify"

	claims := &supabaseClaims{}
	var err error
	if len(s.secret) > 0 {
		_, err = jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	} else {
		_, _, err = jwt.NewParser().ParseUnverified(accessToken, claims)
		if err == nil && claims.ExpiresAt != nil && claims.ExpiresAt.Before(s.now()) {
			err = jwt.ErrTokenExpired
		}
	}
	if err != nil {
		return entity.Identity{}, apperror.Validation(op, fmt.Errorf("invalid access token: %w", err))
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return entity.Identity{}, apperror.Validation(op, errors.New("access token subject is not a user id"))
	}

	identity := entity.Identity{
		Id:          id,
		Email:       claims.Email,
		Metadata:    claims.UserMetadata,
		AccessToken: accessToken,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

func (s *identityService) SignIn(ctx context.Context, accessToken string) (entity.Identity, error) {
	identity, err := s.Verify(accessToken)
	if err != nil {
		return entity.Identity{}, err
	}

	s.mu.Lock()
	prev := s.current
	next := identity
	s.current = &next
	listeners := append([]IdentityListener(nil), s.listeners...)
	s.mu.Unlock()

	s.logger.Info("IdentityService", "Signed in", map[string]interface{}{
		"user_id": identity.Id,
		"email":   identity.Email,
	})
	for _, fn := range listeners {
		fn(ctx, prev, &next)
	}
	return identity, nil
}

func (s *identityService) SignOut(ctx context.Context) {
	s.mu.Lock()
	prev := s.current
	s.current = nil
	listeners := append([]IdentityListener(nil), s.listeners...)
	s.mu.Unlock()

	if prev == nil {
		return
	}
	s.logger.Info("IdentityService", "Signed out", map[string]interface{}{
		"user_id": prev.Id,
	})
	for _, fn := range listeners {
		fn(ctx, prev, nil)
	}
}

func (s *identityService) Current() (entity.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return entity.Identity{}, false
	}
	return *s.current, true
}

func (s *identityService) OnChange(fn IdentityListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// TokenSource hands the signed-in user's access token to outgoing requests.
func (s *identityService) TokenSource() oauth2.TokenSource {
	return identityTokenSource{s}
}

type identityTokenSource struct {
	s *identityService
}

func (ts identityTokenSource) Token() (*oauth2.Token, error) {
	identity, ok := ts.s.Current()
	if !ok {
		return nil, apperror.ErrNoIdentity
	}
	return &oauth2.Token{
		AccessToken: identity.AccessToken,
		TokenType:   "Bearer",
		Expiry:      identity.ExpiresAt,
	}, nil
}
