package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fastygo/todo-backend/domain"
	"github.com/fastygo/todo-backend/pkg/logger"
	"github.com/fastygo/todo-backend/pkg/token"
	"github.com/fastygo/todo-backend/repository"
)

// dummyHash is compared against when the email is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("todo-backend-dummy-password"), bcrypt.DefaultCost)

// Result is returned by Signin and Refresh.
type Result struct {
	User      *domain.User
	Session   *domain.Session
	Token     string
	ExpiresAt time.Time
}

type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   *token.Manager
	logger   *zap.Logger
	cost     int
	now      func() time.Time
}

func New(users repository.UserRepository, sessions repository.SessionRepository, tokens *token.Manager, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// Signup registers a new account. The email is stored lower-cased.
func (uc *UseCase) Signup(ctx context.Context, email, password, name string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.Invalid("email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), uc.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, domain.Invalid("password must be at most 72 bytes")
		}
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.WithRequestID(ctx, uc.logger).Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Signin verifies credentials and opens a new session.
func (uc *UseCase) Signin(ctx context.Context, email, password string) (*Result, error) {
	user, err := uc.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	now := uc.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(uc.tokens.TTL()),
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	return uc.issue(user, session)
}

// ValidateSession confirms the session exists, belongs to userID and is not expired.
func (uc *UseCase) ValidateSession(ctx context.Context, sessionID, userID string) error {
	_, err := uc.session(ctx, sessionID, userID)
	return err
}

// Refresh extends the caller's session and signs a fresh token.
func (uc *UseCase) Refresh(ctx context.Context, sessionID, userID string) (*Result, error) {
	session, err := uc.session(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	ttl := uc.tokens.TTL()
	if err := uc.sessions.Extend(ctx, sessionID, ttl); err != nil {
		return nil, err
	}
	session.ExpiresAt = uc.now().Add(ttl)

	return uc.issue(user, session)
}

// Signout revokes the session; tokens bound to it stop authenticating.
func (uc *UseCase) Signout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return domain.ErrUnauthorized
	}
	return uc.sessions.Delete(ctx, sessionID)
}

func (uc *UseCase) session(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, domain.ErrUnauthorized
	}
	if session.IsExpired(uc.now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (uc *UseCase) issue(user *domain.User, session *domain.Session) (*Result, error) {
	signed, err := uc.tokens.Issue(user.ID, session.ID, session.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &Result{
		User:      user,
		Session:   session,
		Token:     signed,
		ExpiresAt: session.ExpiresAt,
	}, nil
}
