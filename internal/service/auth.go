package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/musicrec/internal/apperror"
	"github.com/sakif/musicrec/internal/auth"
	"github.com/sakif/musicrec/internal/model"
	"github.com/sakif/musicrec/internal/repository"
	"github.com/sakif/musicrec/internal/validation"
)

// invalidLoginMessage is shown for unknown email and wrong password alike.
const invalidLoginMessage = "Login inválido. Verifique e-mail e senha."

// AuthOptions are the configurable auth rules.
type AuthOptions struct {
	// AdminEmail receives the admin flag when it registers. Empty disables
	// the rule.
	AdminEmail        string
	MinPasswordLength int
}

// AuthService handles registration, login and session lookup.
//
// DEPENDENCIES (injected via NewAuthService):
//   - store      repository.Store       → users and their favorites
//   - tokens     *auth.TokenService     → session tokens
//   - passwords  *auth.PasswordService  → bcrypt hashing
//   - logger     *slog.Logger           → structured logging
type AuthService struct {
	store     repository.Store
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	opts      AuthOptions
	logger    *slog.Logger
}

func NewAuthService(
	store repository.Store,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	opts AuthOptions,
	logger *slog.Logger,
) *AuthService {
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 6
	}
	opts.AdminEmail = normalizeEmail(opts.AdminEmail)
	return &AuthService{
		store:     store,
		tokens:    tokens,
		passwords: passwords,
		opts:      opts,
		logger:    logger,
	}
}

// AuthResult bundles the user and a freshly issued session token so the
// handler can set the cookie and redirect in one step.
//
// NeedsPreferences is true when the user has no favorites yet; the handler
// then sends them to the preference form instead of home.
type AuthResult struct {
	User             *model.User
	Token            string
	NeedsPreferences bool
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Name     string `validate:"notblank,min=2,max=150" label:"Nome"`
	Email    string `validate:"required,email,max=254" label:"E-mail"`
	Password string `validate:"required" label:"Senha"`
}

// Register validates the form, creates the account and signs it in.
//
// The admin flag is decided here, once: it is true only for the configured
// admin email. Nothing else ever writes it.
//
// A taken email is reported as apperror.ErrConflict, whether it is caught by
// the lookup or by the unique index when two registrations race.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)

	if err := validation.ValidateStruct(&in); err != nil {
		return nil, firstFieldError(err)
	}
	rule := fmt.Sprintf("min=%d", s.opts.MinPasswordLength)
	if err := validation.ValidateVar(in.Password, rule, "password", "Senha"); err != nil {
		return nil, firstFieldError(err)
	}

	if _, err := s.store.Users().GetByEmail(ctx, in.Email); err == nil {
		return nil, apperror.Conflict("email", "Este e-mail já está cadastrado.")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		IsAdmin:      s.isAdminEmail(in.Email),
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.Bool("admin", user.IsAdmin),
	)

	return s.issue(user, true)
}

func (s *AuthService) isAdminEmail(email string) bool {
	return s.opts.AdminEmail != "" && email == s.opts.AdminEmail
}

// Login checks the credentials and issues a session.
//
// Unknown email and wrong password both return the same apperror.ErrUnauthorized
// message. For an unknown email a dummy bcrypt comparison still runs, so the
// two cases take about the same time.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.Unauthorized(invalidLoginMessage)
	}

	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.VerifyDummy(password)
			return nil, apperror.Unauthorized(invalidLoginMessage)
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("stored password hash is unusable",
				slog.Int64("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.Unauthorized(invalidLoginMessage)
	}

	prefs, err := s.store.Favorites().Get(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading favorites: %w", err)
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))
	return s.issue(user, prefs.Empty())
}

// LoginGitHub signs in with a GitHub profile. The profile email is matched
// against existing accounts; when none matches, an account is created with
// a random password nobody knows, so it can only be used through GitHub.
// The admin email rule applies to accounts created this way too.
func (s *AuthService) LoginGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil || gh.Email == "" {
		return nil, apperror.Unauthorized("Não foi possível obter o e-mail da conta GitHub.")
	}
	email := normalizeEmail(gh.Email)

	user, err := s.store.Users().GetByEmail(ctx, email)
	switch {
	case err == nil:
		prefs, err := s.store.Favorites().Get(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("service/auth: loading favorites: %w", err)
		}
		s.logger.Info("user logged in via GitHub", slog.Int64("userID", user.ID))
		return s.issue(user, prefs.Empty())

	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	hash, err := s.passwords.Hash(xid.New().String() + xid.New().String())
	if err != nil {
		return nil, err
	}

	name := gh.DisplayName()
	if len([]rune(name)) < 2 {
		name = email
	}
	user = &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      s.isAdminEmail(email),
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating GitHub user: %w", err)
	}

	s.logger.Info("user registered via GitHub",
		slog.Int64("userID", user.ID),
		slog.String("login", gh.Login),
	)
	return s.issue(user, true)
}

func (s *AuthService) issue(user *model.User, needsPreferences bool) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token, NeedsPreferences: needsPreferences}, nil
}

// GetUser returns the user with the given id. It satisfies auth.UserLoader,
// which the session middleware calls once per request.
func (s *AuthService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", id, err)
	}
	return user, nil
}
