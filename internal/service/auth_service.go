package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/digital-library-api/internal/dto"
	"github.com/noah-isme/digital-library-api/internal/models"
	"github.com/noah-isme/digital-library-api/pkg/config"
	appErrors "github.com/noah-isme/digital-library-api/pkg/errors"
	"github.com/noah-isme/digital-library-api/pkg/sanitize"
)

const pqUniqueViolation = "23505"

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
}

// AuthService provides login, registration, and the admin account seed.
// Passwords are stored as bcrypt hashes; comparison is bcrypt's own
// constant-time check.
type AuthService struct {
	repo      authUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{repo: repo, validator: validate, logger: logger}
}

// Login authenticates by email and password and returns the principal.
// Validation failures are accumulated; credential failures never reveal
// which part was wrong.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*models.Principal, error) {
	email := sanitize.Clean(req.Email)

	var errs []string
	if email == "" {
		errs = append(errs, "Email is required.")
	} else if s.validator.Var(email, "email") != nil {
		errs = append(errs, "Please enter a valid email address.")
	}
	if req.Password == "" {
		errs = append(errs, "Password is required.")
	}
	if len(errs) > 0 {
		return nil, appErrors.Validation(errs)
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "Invalid email or password.")
		}
		s.logger.Error("login lookup failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "An error occurred. Please try again.")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "Invalid email or password.")
	}

	return &models.Principal{UserID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}, nil
}

// Register creates a student account. All field checks run and accumulate;
// the duplicate-email check is part of validation so the form can report it
// alongside other problems.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*models.Principal, error) {
	name := sanitize.Clean(req.Name)
	email := sanitize.Clean(req.Email)

	var errs []string
	if name == "" {
		errs = append(errs, "Full name is required.")
	} else if len(name) < 2 || len(name) > 100 {
		errs = append(errs, "Name must be between 2 and 100 characters.")
	}

	if email == "" {
		errs = append(errs, "Email is required.")
	} else if s.validator.Var(email, "email") != nil {
		errs = append(errs, "Please enter a valid email address.")
	} else {
		exists, err := s.repo.EmailExists(ctx, email)
		if err != nil {
			s.logger.Error("registration email check failed", zap.Error(err))
			errs = append(errs, "An error occurred. Please try again.")
		} else if exists {
			errs = append(errs, "This email is already registered. Please login instead.")
		}
	}

	if req.Password == "" {
		errs = append(errs, "Password is required.")
	} else if len(req.Password) < 6 {
		errs = append(errs, "Password must be at least 6 characters long.")
	}
	if req.Password != req.ConfirmPassword {
		errs = append(errs, "Passwords do not match.")
	}
	if len(errs) > 0 {
		return nil, appErrors.Validation(errs)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("password hash failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Registration failed. Please try again.")
	}

	user := &models.User{Name: name, Email: email, PasswordHash: string(hash), Role: models.RoleStudent}
	if err := s.repo.Create(ctx, user); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, appErrors.Clone(appErrors.ErrConflict, "This email is already registered. Please login instead.")
		}
		s.logger.Error("registration insert failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Registration failed. Please try again.")
	}

	return &models.Principal{UserID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}, nil
}

// EnsureAdmin seeds the administrator account from configuration when it does
// not exist yet. A blank configured password skips the seed.
func (s *AuthService) EnsureAdmin(ctx context.Context, cfg config.AdminConfig) error {
	if cfg.Password == "" {
		s.logger.Warn("admin seed skipped: no ADMIN_PASSWORD configured")
		return nil
	}

	if _, err := s.repo.FindByEmail(ctx, cfg.Email); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &models.User{Name: cfg.Name, Email: cfg.Email, PasswordHash: string(hash), Role: models.RoleAdmin}
	if err := s.repo.Create(ctx, admin); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil
		}
		return err
	}
	s.logger.Sugar().Infow("admin account seeded", "email", admin.Email)
	return nil
}
