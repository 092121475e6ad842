package tokens

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gomartvn/gomart-backend/pkg/config"
	"github.com/gomartvn/gomart-backend/pkg/enums"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
	"github.com/gomartvn/gomart-backend/pkg/logger"
	"github.com/gomartvn/gomart-backend/pkg/redis"
)

// Store is the slice of the Redis client the token service needs for
// revocation markers and rate-limit counters.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)

	BlacklistKey(jti string) string
	WatermarkKey(subject string) string
	RateLimitKey(parts ...string) string
}

// Claims is the signed token payload: registered claims plus the token kind.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Service issues and verifies self-contained bearer tokens, and enforces
// fixed-window rate limits on auth-sensitive actions.
//
// Revocation state lives in Redis. When Redis is unreachable the service
// fails open: a token that cannot be checked against the blacklist or the
// watermark is accepted, and a rate-limit counter that cannot be bumped does
// not block the request. Availability wins over strictness here.
type Service interface {
	Issue(ctx context.Context, kind enums.TokenKind, subject string) (string, error)
	Verify(ctx context.Context, token string, kind enums.TokenKind) (string, error)
	Revoke(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, subject string) error
	CheckRateLimit(ctx context.Context, identifier, action string, max int, window time.Duration) error
}

type service struct {
	cfg   config.TokenConfig
	store Store
	logg  *logger.Logger
	now   func() time.Time
}

func NewService(cfg config.TokenConfig, store Store, logg *logger.Logger) (Service, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("token secret required")
	}
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("token issuer required")
	}
	if store == nil {
		return nil, fmt.Errorf("token store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		cfg:   cfg,
		store: store,
		logg:  logg,
		now:   time.Now,
	}, nil
}

func (s *service) ttlFor(kind enums.TokenKind) time.Duration {
	switch kind {
	case enums.TokenKindAccess:
		return s.cfg.AccessTTL
	case enums.TokenKindRefresh:
		return s.cfg.RefreshTTL
	case enums.TokenKindEmailVerification:
		return s.cfg.EmailVerificationTTL
	case enums.TokenKindPasswordReset:
		return s.cfg.PasswordResetTTL
	default:
		return 0
	}
}

func (s *service) Issue(_ context.Context, kind enums.TokenKind, subject string) (string, error) {
	if !kind.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown token kind")
	}
	if subject == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "token subject required")
	}

	now := s.now()
	claims := Claims{
		Type: kind.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttlFor(kind))),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sign token")
	}
	return signed, nil
}

func (s *service) parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	return claims, nil
}

// Verify checks signature, expiry and kind, then consults the revocation
// state. Blacklist and watermark lookups fail open on store errors.
func (s *service) Verify(ctx context.Context, token string, kind enums.TokenKind) (string, error) {
	claims, err := s.parse(token)
	if err != nil {
		return "", err
	}
	if claims.Type != kind.String() {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "token kind mismatch")
	}
	if claims.ID == "" || claims.Subject == "" || claims.IssuedAt == nil {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "token missing required claims")
	}

	blacklisted, err := s.store.Exists(ctx, s.store.BlacklistKey(claims.ID))
	if err != nil {
		s.logg.Warn(ctx, "token blacklist check failed, accepting token")
	} else if blacklisted {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "token revoked")
	}

	watermark, err := s.store.Get(ctx, s.store.WatermarkKey(claims.Subject))
	switch {
	case err == nil:
		cutoff, parseErr := strconv.ParseInt(watermark, 10, 64)
		if parseErr == nil && claims.IssuedAt.Unix() < cutoff {
			return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "token issued before revocation watermark")
		}
	case redis.IsNil(err):
		// no watermark for the subject
	default:
		s.logg.Warn(ctx, "token watermark check failed, accepting token")
	}

	return claims.Subject, nil
}

// Revoke blacklists a single token by its id for the remainder of its
// validity; an already-expired token needs no marker.
func (s *service) Revoke(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "token missing required claims")
	}

	remaining := claims.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return nil
	}
	if err := s.store.Set(ctx, s.store.BlacklistKey(claims.ID), "1", remaining); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "blacklist token")
	}
	return nil
}

// RevokeAll stamps a per-subject watermark; every token issued before it is
// rejected. The marker outlives the longest-lived token kind.
func (s *service) RevokeAll(ctx context.Context, subject string) error {
	if subject == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subject required")
	}
	value := strconv.FormatInt(s.now().Unix(), 10)
	if err := s.store.Set(ctx, s.store.WatermarkKey(subject), value, s.cfg.RefreshTTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set revocation watermark")
	}
	return nil
}

// CheckRateLimit bumps a fixed-window counter and rejects once the window
// budget is spent. Counter errors fail open.
func (s *service) CheckRateLimit(ctx context.Context, identifier, action string, max int, window time.Duration) error {
	if max <= 0 || window <= 0 {
		return nil
	}
	count, err := s.store.IncrWithTTL(ctx, s.store.RateLimitKey(action, identifier), window)
	if err != nil {
		s.logg.Warn(ctx, "rate limit counter unavailable, allowing request")
		return nil
	}
	if count > int64(max) {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded").
			WithDetails(map[string]any{"action": action, "window": window.String()})
	}
	return nil
}
