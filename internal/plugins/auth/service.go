package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tinylog/tinylog/internal/apperror"
	"github.com/tinylog/tinylog/internal/ident"
)

// usernamePattern is the allowed username shape: 1-30 chars of lowercase
// letters, digits, and underscore. Input is lowercased before matching so
// "Alice" and "alice" are the same account.
var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{1,30}$`)

// maxDisplayNameLen matches the display_name column width.
const maxDisplayNameLen = 30

// CaptchaVerifier checks a registration captcha token against the external
// provider. Implementations must fail closed: any doubt means false.
type CaptchaVerifier interface {
	Verify(ctx context.Context, responseToken string) bool
}

// AuthService defines the business logic contract for authentication.
// Handlers and middleware call these methods -- they never touch the
// repository or session store directly.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*User, error)
	Login(ctx context.Context, input LoginInput) (token string, user *User, err error)
	ResolveSession(ctx context.Context, token string) (*Session, *User, error)
	Logout(ctx context.Context, token string) error
	GetUser(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// authService implements AuthService with argon2id hashing, a Redis session
// store, and a captcha gate on registration.
type authService struct {
	repo     UserRepository
	sessions *SessionStore
	captcha  CaptchaVerifier
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(repo UserRepository, sessions *SessionStore, captcha CaptchaVerifier) AuthService {
	return &authService{
		repo:     repo,
		sessions: sessions,
		captcha:  captcha,
	}
}

// Register creates a new user account. The captcha token must verify first;
// a provider outage reads the same as a wrong answer, since both must block
// account creation. Then the username is validated, uniqueness checked, and
// the password hashed with argon2id. The raw password is never persisted or
// logged.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*User, error) {
	if !s.captcha.Verify(ctx, input.CaptchaToken) {
		return nil, apperror.NewBadRequest("captcha verification failed")
	}

	username := strings.ToLower(strings.TrimSpace(input.Username))
	if username == "" {
		return nil, apperror.NewBadRequest("username is required")
	}
	if !usernamePattern.MatchString(username) {
		return nil, apperror.NewBadRequest("username must be 1-30 characters of a-z, 0-9, or _")
	}
	if input.Password == "" {
		return nil, apperror.NewBadRequest("password is required")
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = username
	}
	// Rune count, not bytes: the column limit is in characters.
	if utf8.RuneCountInString(displayName) > maxDisplayNameLen {
		return nil, apperror.NewBadRequest(fmt.Sprintf("display name must be at most %d characters", maxDisplayNameLen))
	}

	// Advisory pre-check so we can reject duplicates before the expensive
	// hash. The UNIQUE constraint in the repository closes the race.
	exists, err := s.repo.UsernameExists(ctx, username)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("checking username: %w", err))
	}
	if exists {
		return nil, apperror.NewConflict("username is already taken")
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		ID:           ident.New(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			// Conflict from the UNIQUE constraint (lost the race).
			return nil, appErr
		}
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// Login authenticates a user by username and password. On success it issues
// a new session and returns the bearer token. An unknown username and a
// wrong password produce the identical error so login can't be used to
// probe which usernames exist.
func (s *authService) Login(ctx context.Context, input LoginInput) (string, *User, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == 404 {
			return "", nil, badCredentials()
		}
		return "", nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if !verifyPassword(input.Password, user.PasswordHash) {
		return "", nil, badCredentials()
	}

	// The password checked out against a legacy hash -- replace it with an
	// argon2id hash while we still hold the plaintext. Non-critical: a
	// failure here must not block the login.
	if needsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, input.Password)
	}

	session, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return "", nil, apperror.NewInternal(fmt.Errorf("issuing session: %w", err))
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return session.Token, user, nil
}

// ResolveSession validates a bearer token and resolves the owning user.
// Both failure modes (unknown token, expired session) surface unchanged;
// the middleware collapses them for the caller.
func (s *authService) ResolveSession(ctx context.Context, token string) (*Session, *User, error) {
	session, err := s.sessions.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrSessionExpired) {
			return nil, nil, err
		}
		return nil, nil, apperror.NewInternal(fmt.Errorf("validating session: %w", err))
	}

	user, err := s.repo.FindByID(ctx, session.UserID)
	if err != nil {
		// Session points at a user that no longer exists -- treat as an
		// invalid token rather than leaking a 404.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == 404 {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, apperror.NewInternal(fmt.Errorf("resolving session user: %w", err))
	}

	return session, user, nil
}

// Logout revokes the session for the given token. Revoking a token that no
// longer has a session fails with 403, matching what any other request with
// that token would get.
func (s *authService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return apperror.NewForbidden("invalid session")
		}
		return apperror.NewInternal(fmt.Errorf("revoking session: %w", err))
	}

	slog.Info("session revoked")
	return nil
}

// GetUser returns the user with the given username.
func (s *authService) GetUser(ctx context.Context, username string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}
	return user, nil
}

// ListUsers returns all registered users.
func (s *authService) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing users: %w", err))
	}
	return users, nil
}

// upgradeHash rehashes the password with the current scheme and stores it.
func (s *authService) upgradeHash(ctx context.Context, user *User, password string) {
	hash, err := hashPassword(password)
	if err != nil {
		slog.Warn("failed to rehash legacy password",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
		return
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		slog.Warn("failed to store upgraded password hash",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
		return
	}
	user.PasswordHash = hash
	slog.Info("password hash upgraded to argon2id", slog.String("user_id", user.ID))
}

// badCredentials is the single error for any failed login attempt.
func badCredentials() *apperror.AppError {
	return apperror.NewForbidden("invalid username or password")
}
