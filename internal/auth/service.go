// Package auth implements password-based registration and login with
// stateless HS256 session tokens.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"portalapi/internal/config"
	"portalapi/internal/logging"
	"portalapi/internal/model"
	"portalapi/internal/repository"
)

// Identity is the user a verified token speaks for.
type Identity struct {
	UserID   int64
	Username string
}

// Session is the result of a successful login.
type Session struct {
	Token    string
	Identity Identity
}

// Authenticator is the auth contract used by the HTTP layer.
type Authenticator interface {
	Register(ctx context.Context, username, password string) (model.Record, error)
	Login(ctx context.Context, username, password string) (Session, error)
	Verify(ctx context.Context, token string) (Identity, error)
}

// Service stores users through the repository and signs tokens with a
// shared secret.
type Service struct {
	repo   repository.Repository
	log    logging.Logger
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewService builds an auth Service from cfg.
func NewService(repo repository.Repository, cfg config.AuthConfig, log logging.Logger) *Service {
	return &Service{
		repo:   repo,
		log:    log.With("component", "auth"),
		secret: []byte(cfg.JWTSecret),
		ttl:    time.Duration(cfg.TokenTTLSec) * time.Second,
		cost:   cfg.BcryptCost,
		now:    time.Now,
	}
}

var _ Authenticator = (*Service)(nil)

// Register creates a user holding only the username and a password hash.
// Usernames are unique by exact match.
func (s *Service) Register(ctx context.Context, username, password string) (model.Record, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", model.ErrValidation)
	}

	existing, err := s.findUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: username %q is taken", model.ErrConflict, username)
	}

	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	// The repository re-checks uniqueness under its lock.
	user, err := s.repo.Create(ctx, model.Users, model.Record{"username": username, "password": hash})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user registered", "username", username)
	return model.SchemaFor(model.Users).Public(user), nil
}

// Login checks the credentials and issues a token. Unknown users and wrong
// passwords fail identically, including in timing.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return Session{}, err
	}
	if user == nil {
		CheckPassword(s.dummy(), password)
		return Session{}, ErrUnauthorized
	}
	if !CheckPassword(user.String("password"), password) {
		return Session{}, ErrUnauthorized
	}

	id, _ := user.ID()
	ident := Identity{UserID: id, Username: user.String("username")}
	token, err := GenerateToken(ident, s.secret, s.ttl, s.now())
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: token, Identity: ident}, nil
}

// Verify returns the identity a token was issued for.
func (s *Service) Verify(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrTokenMissing
	}
	claims, err := ParseToken(token, s.secret)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

func (s *Service) findUser(ctx context.Context, username string) (model.Record, error) {
	users, err := s.repo.ListWhere(ctx, model.Users, func(r model.Record) bool {
		return r.String("username") == username
	})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

// dummy returns a hash to compare against when the user does not exist.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := HashPassword("portal-unknown-user", s.cost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
