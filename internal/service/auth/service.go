package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/lab-cases/internal/config"
	"github.com/jwalitptl/lab-cases/internal/model"
	"github.com/jwalitptl/lab-cases/pkg/auth"
	apperrors "github.com/jwalitptl/lab-cases/pkg/errors"
	"github.com/jwalitptl/lab-cases/pkg/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// IdentityProvider resolves who the caller is. The case engine only ever
// sees the resulting Principal.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	GetSession(ctx context.Context, token string) (*model.Session, error)
	CurrentUser(ctx context.Context, token string) (*model.Principal, error)
	SignOut(ctx context.Context, token string) error
}

// Service issues JWT sessions for a fixed user directory.
type Service struct {
	users   map[string]*model.User
	hasher  security.PasswordHasher
	jwtSvc  auth.JWTService
	revoked *cache.Cache
}

func NewService(users []*model.User, hasher security.PasswordHasher, jwtSvc auth.JWTService) *Service {
	byEmail := make(map[string]*model.User, len(users))
	for _, u := range users {
		byEmail[normalizeEmail(u.Email)] = u
	}
	return &Service{
		users:   byEmail,
		hasher:  hasher,
		jwtSvc:  jwtSvc,
		revoked: cache.New(time.Hour, 10*time.Minute),
	}
}

var _ IdentityProvider = (*Service)(nil)

func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	user, ok := s.users[normalizeEmail(email)]
	if !ok {
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	principal := model.Principal{ID: user.ID, Email: user.Email, Role: user.Role}
	token, claims, err := s.jwtSvc.GenerateToken(principal)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      principal,
	}, nil
}

func (s *Service) GetSession(ctx context.Context, token string) (*model.Session, error) {
	claims, err := s.validate(token)
	if err != nil {
		return nil, err
	}
	return &model.Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      claims.Principal(),
	}, nil
}

func (s *Service) CurrentUser(ctx context.Context, token string) (*model.Principal, error) {
	claims, err := s.validate(token)
	if err != nil {
		return nil, err
	}
	p := claims.Principal()
	return &p, nil
}

// SignOut revokes the session until it would have expired. Signing out an
// invalid or already revoked token is a no-op.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	s.revoked.Set(claims.ID, struct{}{}, ttl)
	return nil
}

func (s *Service) validate(token string) (*auth.Claims, error) {
	if token == "" {
		return nil, apperrors.Unauthorized(errors.New("missing token"))
	}
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	if _, revoked := s.revoked.Get(claims.ID); revoked {
		return nil, apperrors.Unauthorized(errors.New("session signed out"))
	}
	// The directory is fixed at startup; a removed user loses access.
	if _, ok := s.users[normalizeEmail(claims.Email)]; !ok {
		return nil, apperrors.Unauthorized(errors.New("unknown user"))
	}
	return claims, nil
}

// UsersFromConfig builds the directory, hashing plain passwords.
func UsersFromConfig(entries []config.UserConfig, hasher security.PasswordHasher) ([]*model.User, error) {
	users := make([]*model.User, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.ID == "" || e.Email == "" {
			return nil, fmt.Errorf("auth.users[%d]: id and email are required", i)
		}
		key := normalizeEmail(e.Email)
		if seen[key] {
			return nil, fmt.Errorf("auth.users[%d]: duplicate email %s", i, e.Email)
		}
		seen[key] = true

		hash := e.PasswordHash
		if hash == "" {
			if e.Password == "" {
				return nil, fmt.Errorf("auth.users[%d]: password or password_hash is required", i)
			}
			var err error
			if hash, err = hasher.Hash(e.Password); err != nil {
				return nil, fmt.Errorf("auth.users[%d]: %w", i, err)
			}
		} else if !security.IsHash(hash) {
			return nil, fmt.Errorf("auth.users[%d]: password_hash is not a bcrypt hash", i)
		}

		users = append(users, &model.User{
			ID:           e.ID,
			Email:        e.Email,
			PasswordHash: hash,
			Role:         model.Role(e.Role),
		})
	}
	return users, nil
}

// DemoUsers is the directory used with the mock backend.
func DemoUsers() []config.UserConfig {
	return []config.UserConfig{
		{ID: "user-mineers", Email: "mineers@example.com", Password: "password", Role: string(model.RoleAdmin)},
		{ID: "user-lab", Email: "lab@example.com", Password: "password", Role: string(model.RoleLab)},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
