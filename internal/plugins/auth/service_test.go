package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/tinylog/tinylog/internal/apperror"
)

// --- Mock Repository ---

// mockUserRepo implements UserRepository for testing.
type mockUserRepo struct {
	createFn             func(ctx context.Context, user *User) error
	findByIDFn           func(ctx context.Context, id string) (*User, error)
	findByUsernameFn     func(ctx context.Context, username string) (*User, error)
	usernameExistsFn     func(ctx context.Context, username string) (bool, error)
	updatePasswordHashFn func(ctx context.Context, id, passwordHash string) error
	listFn               func(ctx context.Context) ([]User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*User, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(ctx, username)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	if m.usernameExistsFn != nil {
		return m.usernameExistsFn(ctx, username)
	}
	return false, nil
}

func (m *mockUserRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	if m.updatePasswordHashFn != nil {
		return m.updatePasswordHashFn(ctx, id, passwordHash)
	}
	return nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

// --- Mock Captcha Verifier ---

// mockCaptcha implements CaptchaVerifier with a fixed answer.
type mockCaptcha struct {
	ok bool
}

func (m *mockCaptcha) Verify(ctx context.Context, responseToken string) bool {
	return m.ok
}

// --- Test Helpers ---

// newTestAuthService wires an authService with a mock repo, a miniredis
// session store, and a captcha verifier that always passes unless told
// otherwise.
func newTestAuthService(t *testing.T, repo *mockUserRepo) *authService {
	t.Helper()
	sessions, _ := newTestSessionStore(t, 3*time.Hour)
	return &authService{
		repo:     repo,
		sessions: sessions,
		captcha:  &mockCaptcha{ok: true},
	}
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// --- Register Tests ---

func TestRegister_Success(t *testing.T) {
	var created *User
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *User) error {
			created = user
			return nil
		},
	}
	service := newTestAuthService(t, repo)

	user, err := service.Register(context.Background(), RegisterInput{
		CaptchaToken: "valid",
		Username:     "Alice",
		Password:     "secretpw",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if user.Username != "alice" {
		t.Errorf("expected lowercased username, got %q", user.Username)
	}
	if user.DisplayName != "alice" {
		t.Errorf("expected display name to default to username, got %q", user.DisplayName)
	}
	if user.ID == "" {
		t.Error("user has no ID")
	}
	if user.PasswordHash == "" || strings.Contains(user.PasswordHash, "secretpw") {
		t.Error("password not hashed")
	}
	if !verifyPassword("secretpw", user.PasswordHash) {
		t.Error("stored hash does not verify the password")
	}
	if created == nil {
		t.Fatal("user never persisted")
	}
}

func TestRegister_ExplicitDisplayName(t *testing.T) {
	service := newTestAuthService(t, &mockUserRepo{})

	user, err := service.Register(context.Background(), RegisterInput{
		CaptchaToken: "valid",
		Username:     "bob",
		Password:     "pw",
		DisplayName:  "Bob the Builder",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.DisplayName != "Bob the Builder" {
		t.Errorf("display name not honored, got %q", user.DisplayName)
	}
}

func TestRegister_MultibyteDisplayName(t *testing.T) {
	service := newTestAuthService(t, &mockUserRepo{})

	// 30 runes but 90 bytes; the limit is characters, not bytes.
	name := strings.Repeat("日", 30)
	user, err := service.Register(context.Background(), RegisterInput{
		CaptchaToken: "valid",
		Username:     "yuki",
		Password:     "pw",
		DisplayName:  name,
	})
	if err != nil {
		t.Fatalf("Register rejected a 30-rune display name: %v", err)
	}
	if user.DisplayName != name {
		t.Errorf("display name mangled: %q", user.DisplayName)
	}

	// 31 runes is over the limit regardless of encoding.
	_, err = service.Register(context.Background(), RegisterInput{
		CaptchaToken: "valid",
		Username:     "yuki2",
		Password:     "pw",
		DisplayName:  strings.Repeat("日", 31),
	})
	assertAppError(t, err, http.StatusBadRequest)
}

func TestRegister_CaptchaFailsClosed(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *User) error {
			t.Error("user created despite failed captcha")
			return nil
		},
	}
	service := newTestAuthService(t, repo)
	service.captcha = &mockCaptcha{ok: false}

	_, err := service.Register(context.Background(), RegisterInput{
		CaptchaToken: "whatever",
		Username:     "alice",
		Password:     "pw",
	})
	assertAppError(t, err, http.StatusBadRequest)
}

func TestRegister_MissingUsername(t *testing.T) {
	service := newTestAuthService(t, &mockUserRepo{})

	_, err := service.Register(context.Background(), RegisterInput{
		CaptchaToken: "valid",
		Username:     "   ",
		Password:     "pw",
	})
	assertAppError(t, err, http.StatusBadRequest)
}

func TestRegister_InvalidUsername(t *testing.T) {
	service := newTestAuthService(t, &mockUserRepo{})

	for _, username := range []string{
		"has space",
		"exclaim!",
		"slash/name",
		strings.Repeat("a", 31),
	} {
		_, err := service.Register(context.Background(), RegisterInput{
			CaptchaToken: "valid",
			Username:     username,
			Password:     "pw",
		})
		assertAppError(t, err, http.StatusBadRequest)
	}
}

func TestRegister_MissingPassword(t *testing.T) {
	service := newTestAuthService(t, &mockUserRepo{})

	_, err := service.Register(context.Background(), RegisterInput{
		CaptchaToken: "valid",
		Username:     "alice",
	})
	assertAppError(t, err, http.StatusBadRequest)
}

func TestRegister_UsernameTaken(t *testing.T) {
	repo := &mockUserRepo{
		usernameExistsFn: func(ctx context.Context, username string) (bool, error) {
			return true, nil
		},
	}
	service := newTestAuthService(t, repo)

	_, err := service.Register(context.Background(), RegisterInput{
		CaptchaToken: "valid",
		Username:     "alice",
		Password:     "different-pw",
		DisplayName:  "Different Name",
	})
	assertAppError(t, err, http.StatusConflict)
}

func TestRegister_UsernameTakenRace(t *testing.T) {
	// The advisory check passes but the INSERT loses the race and the
	// repository reports the UNIQUE violation as a conflict.
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *User) error {
			return apperror.NewConflict("username is already taken")
		},
	}
	service := newTestAuthService(t, repo)

	_, err := service.Register(context.Background(), RegisterInput{
		CaptchaToken: "valid",
		Username:     "alice",
		Password:     "pw",
	})
	assertAppError(t, err, http.StatusConflict)
}

// --- Login Tests ---

// userWithPassword builds a stored user whose password is hashed with the
// current scheme.
func userWithPassword(t *testing.T, username, password string) *User {
	t.Helper()
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	return &User{
		ID:           "user-1",
		Username:     username,
		DisplayName:  username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestLogin_Success(t *testing.T) {
	stored := userWithPassword(t, "alice", "secretpw")
	repo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*User, error) {
			if username != "alice" {
				return nil, apperror.NewNotFound("user not found")
			}
			return stored, nil
		},
	}
	service := newTestAuthService(t, repo)

	token, user, err := service.Login(context.Background(), LoginInput{
		Username: "alice",
		Password: "secretpw",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Error("empty access token")
	}
	if user.ID != "user-1" {
		t.Errorf("wrong user resolved: %q", user.ID)
	}

	// The token round-trips through session validation.
	session, resolved, err := service.ResolveSession(context.Background(), token)
	if err != nil {
		t.Fatalf("ResolveSession: %v", err)
	}
	if session.UserID != "user-1" || resolved == nil {
		t.Error("session does not resolve to the logged-in user")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	stored := userWithPassword(t, "alice", "secretpw")
	repo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*User, error) {
			return stored, nil
		},
	}
	service := newTestAuthService(t, repo)

	_, _, err := service.Login(context.Background(), LoginInput{
		Username: "alice",
		Password: "not-the-password",
	})
	assertAppError(t, err, http.StatusForbidden)
}

func TestLogin_UnknownUserSameError(t *testing.T) {
	stored := userWithPassword(t, "alice", "secretpw")
	repo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*User, error) {
			if username == "alice" {
				return stored, nil
			}
			return nil, apperror.NewNotFound("user not found")
		},
	}
	service := newTestAuthService(t, repo)

	_, _, errUnknown := service.Login(context.Background(), LoginInput{
		Username: "nobody",
		Password: "secretpw",
	})
	_, _, errWrongPw := service.Login(context.Background(), LoginInput{
		Username: "alice",
		Password: "wrong",
	})

	assertAppError(t, errUnknown, http.StatusForbidden)
	assertAppError(t, errWrongPw, http.StatusForbidden)

	// Identical message, so responses can't be used to probe usernames.
	if errUnknown.Error() != errWrongPw.Error() {
		t.Errorf("login errors differ: %q vs %q", errUnknown, errWrongPw)
	}
}

func TestLogin_UpgradesLegacyHash(t *testing.T) {
	stored := &User{
		ID:           "user-1",
		Username:     "alice",
		DisplayName:  "alice",
		PasswordHash: legacyHash("oldsecret", 29000),
	}

	var upgradedHash string
	repo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*User, error) {
			return stored, nil
		},
		updatePasswordHashFn: func(ctx context.Context, id, passwordHash string) error {
			upgradedHash = passwordHash
			return nil
		},
	}
	service := newTestAuthService(t, repo)

	_, _, err := service.Login(context.Background(), LoginInput{
		Username: "alice",
		Password: "oldsecret",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if upgradedHash == "" {
		t.Fatal("legacy hash was not upgraded on login")
	}
	if !strings.HasPrefix(upgradedHash, "$argon2id$") {
		t.Errorf("upgraded hash is not argon2id: %q", upgradedHash)
	}
	if !verifyPassword("oldsecret", upgradedHash) {
		t.Error("upgraded hash does not verify the password")
	}
}

func TestLogin_RehashFailureDoesNotBlockLogin(t *testing.T) {
	stored := &User{
		ID:           "user-1",
		Username:     "alice",
		PasswordHash: legacyHash("oldsecret", 29000),
	}
	repo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*User, error) {
			return stored, nil
		},
		updatePasswordHashFn: func(ctx context.Context, id, passwordHash string) error {
			return errors.New("db write failed")
		},
	}
	service := newTestAuthService(t, repo)

	token, _, err := service.Login(context.Background(), LoginInput{
		Username: "alice",
		Password: "oldsecret",
	})
	if err != nil {
		t.Fatalf("Login failed because rehash failed: %v", err)
	}
	if token == "" {
		t.Error("empty access token")
	}
}

// --- Session Resolution / Logout Tests ---

func TestResolveSession_UnknownToken(t *testing.T) {
	service := newTestAuthService(t, &mockUserRepo{})

	_, _, err := service.ResolveSession(context.Background(), "never-issued")
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestResolveSession_DeletedUser(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*User, error) {
			return nil, apperror.NewNotFound("user not found")
		},
	}
	service := newTestAuthService(t, repo)

	session, err := service.sessions.Issue(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, _, err = service.ResolveSession(context.Background(), session.Token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for orphaned session, got %v", err)
	}
}

func TestLogout_RevokesSession(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*User, error) {
			return &User{ID: id, Username: "alice"}, nil
		},
	}
	service := newTestAuthService(t, repo)

	session, err := service.sessions.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := service.Logout(context.Background(), session.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// The token is dead for all subsequent requests.
	_, _, err = service.ResolveSession(context.Background(), session.Token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken after logout, got %v", err)
	}

	// A second logout with the same token is a 403, not a crash.
	assertAppError(t, service.Logout(context.Background(), session.Token), http.StatusForbidden)
}
