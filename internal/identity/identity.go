// Package identity adapts the external identity provider: it verifies bearer
// tokens to a caller id and resolves user profiles in batches.
package identity

import (
	"context"
	"directchat/backend/internal/apperror"
	"directchat/backend/internal/models"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/samber/lo"
)

const issuer = "directchat-service"

// Profile is the public view of a user. ProfileImageURL is derived on every
// lookup and never persisted.
type Profile struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
}

// Gateway authenticates callers and resolves profiles. Profile lookups return
// partial results: unknown ids or usernames are absent from the map.
type Gateway interface {
	Authenticate(header string) (string, error)
	ProfilesByID(ctx context.Context, ids []string) (map[string]Profile, error)
	ProfilesByUsername(ctx context.Context, usernames []string) (map[string]Profile, error)
}

// UserStore is the slice of storage the gateway reads profiles from.
type UserStore interface {
	FindUsers(ctx context.Context, ids []string) ([]models.User, error)
	FindUsersByUsername(ctx context.Context, usernames []string) ([]models.User, error)
}

// Service is the JWT-backed Gateway.
type Service struct {
	users          UserStore
	secret         []byte
	ttl            time.Duration
	avatarTemplate string
	now            func() time.Time
}

var _ Gateway = (*Service)(nil)

func NewService(users UserStore, secret string, ttl time.Duration, avatarTemplate string) *Service {
	return &Service{
		users:          users,
		secret:         []byte(secret),
		ttl:            ttl,
		avatarTemplate: avatarTemplate,
		now:            time.Now,
	}
}

// IssueToken signs a token whose subject is callerID.
func (s *Service) IssueToken(callerID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   callerID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Authenticate accepts "Bearer <token>" or a bare token and returns the
// caller id. Every failure is reported as apperror.Unauthenticated.
func (s *Service) Authenticate(header string) (string, error) {
	raw := strings.TrimSpace(header)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw == "" {
		return "", apperror.Unauthenticated()
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", &apperror.AppError{
			Err:     apperror.ErrUnauthenticated,
			Message: fmt.Sprintf("invalid token: %v", unwrapJWT(err)),
			Key:     "error.unauthenticated",
		}
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", apperror.Unauthenticated()
	}
	return claims.Subject, nil
}

func unwrapJWT(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return jwt.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return jwt.ErrTokenSignatureInvalid
	default:
		return jwt.ErrTokenMalformed
	}
}

func (s *Service) ProfilesByID(ctx context.Context, ids []string) (map[string]Profile, error) {
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 {
		return map[string]Profile{}, nil
	}
	users, err := s.users.FindUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve profiles by id: %w", err)
	}
	return lo.SliceToMap(users, func(u models.User) (string, Profile) {
		return u.ID, s.profile(u)
	}), nil
}

// ProfilesByUsername keys the result by the normalized username.
func (s *Service) ProfilesByUsername(ctx context.Context, usernames []string) (map[string]Profile, error) {
	names := lo.Uniq(lo.Compact(lo.Map(usernames, func(n string, _ int) string {
		return strings.ToLower(strings.TrimSpace(n))
	})))
	if len(names) == 0 {
		return map[string]Profile{}, nil
	}
	users, err := s.users.FindUsersByUsername(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("resolve profiles by username: %w", err)
	}
	return lo.SliceToMap(users, func(u models.User) (string, Profile) {
		return u.Username, s.profile(u)
	}), nil
}

func (s *Service) profile(u models.User) Profile {
	return Profile{
		ID:              u.ID,
		Username:        u.Username,
		ProfileImageURL: s.avatarURL(u.ID),
	}
}

func (s *Service) avatarURL(id string) string {
	if s.avatarTemplate == "" {
		return ""
	}
	return fmt.Sprintf(s.avatarTemplate, url.QueryEscape(id))
}
