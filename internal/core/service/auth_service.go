package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
	"github.com/gadgetcloud/gc-backend/internal/pkg/ids"
	"github.com/gadgetcloud/gc-backend/internal/pkg/metrics"
)

type authService struct {
	users    ports.UserRepository
	hasher   ports.PasswordHasher
	tokens   ports.TokenService
	audit    ports.AuditService
	throttle ports.LoginThrottle
	now      func() time.Time
	log      zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService returns an AuthService implementation. throttle may be nil,
// in which case failed logins are not rate limited.
func NewAuthService(
	users ports.UserRepository,
	hasher ports.PasswordHasher,
	tokens ports.TokenService,
	audit ports.AuditService,
	throttle ports.LoginThrottle,
	log zerolog.Logger,
) ports.AuthService {
	return &authService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		audit:    audit,
		throttle: throttle,
		now:      time.Now,
		log:      log,
	}
}

// Signup registers a customer account and signs it in.
func (s *authService) Signup(ctx context.Context, in ports.SignupInput) (*ports.AuthResult, error) {
	email := domain.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.DisplayName)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}

	// 1. Email must be free.
	if err := ensureEmailAvailable(ctx, s.users, email); err != nil {
		return nil, err
	}

	// 2. Password policy.
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	// 3. Persist.
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	now := s.now().UTC()
	user := &domain.User{
		ID:           ids.NewAt(now),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  name,
		Role:         domain.RoleCustomer,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}

	// 4. Token and audit.
	token, exp, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	s.audit.Record(ctx, ports.RecordInput{
		EventType: domain.EventSignup,
		ActorID:   user.ID,
		TargetID:  user.ID,
	})
	metrics.SignupsTotal.Inc()

	s.log.Info().Str("user_id", user.ID).Msg("user signed up")

	return &ports.AuthResult{Token: token, ExpiresAt: exp, User: user}, nil
}

// Login authenticates by email and password. Unknown emails and wrong
// passwords produce the same error.
func (s *authService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	if !s.attemptAllowed(ctx, email) {
		metrics.LoginAttemptsTotal.WithLabelValues("throttled").Inc()
		return nil, domain.ErrTooManyAttempts
	}

	// 1. Lookup.
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.equalizeTiming(password)
		s.failedAttempt(ctx, email)
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	// 2. Status.
	if !user.IsActive() {
		s.audit.Record(ctx, ports.RecordInput{
			EventType: domain.EventLoginFailure,
			ActorID:   user.ID,
			TargetID:  user.ID,
			Metadata:  map[string]string{"reason": "account_inactive"},
		})
		metrics.LoginAttemptsTotal.WithLabelValues("inactive").Inc()
		return nil, domain.ErrAccountInactive
	}

	// 3. Password.
	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("login: user %s: %w", user.ID, err)
	}
	if !ok {
		s.failedAttempt(ctx, email)
		s.audit.Record(ctx, ports.RecordInput{
			EventType: domain.EventLoginFailure,
			ActorID:   user.ID,
			TargetID:  user.ID,
			Metadata:  map[string]string{"reason": "invalid_password"},
		})
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	// 4. Success.
	s.clearAttempts(ctx, email)
	token, exp, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	s.audit.Record(ctx, ports.RecordInput{
		EventType: domain.EventLoginSuccess,
		ActorID:   user.ID,
		TargetID:  user.ID,
	})
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()

	return &ports.AuthResult{Token: token, ExpiresAt: exp, User: user}, nil
}

// Logout only records the event; issued tokens stay valid until expiry.
func (s *authService) Logout(ctx context.Context, userID string) error {
	s.audit.Record(ctx, ports.RecordInput{
		EventType: domain.EventLogout,
		ActorID:   userID,
		TargetID:  userID,
	})
	return nil
}

func (s *authService) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, in ports.ProfileUpdate) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.DisplayName == nil {
		return user, nil
	}

	name := strings.TrimSpace(*in.DisplayName)
	if name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", domain.ErrInvalidInput)
	}
	if name == user.DisplayName {
		return user, nil
	}

	now := s.now()
	if err := s.users.UpdateProfile(ctx, userID, name, now); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	old := user.DisplayName
	user.DisplayName = name
	user.Touch(now)

	s.audit.Record(ctx, ports.RecordInput{
		EventType: domain.EventProfileUpdate,
		ActorID:   userID,
		TargetID:  userID,
		Metadata:  map[string]string{"old_name": old, "new_name": name},
	})
	return user, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if !ok {
		return domain.ErrInvalidCredentials
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash, s.now()); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	s.audit.Record(ctx, ports.RecordInput{
		EventType: domain.EventPasswordChange,
		ActorID:   userID,
		TargetID:  userID,
	})
	return nil
}

// Authenticate verifies token and re-reads the account so that deactivation
// and role changes take effect on the next request.
func (s *authService) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.Identity{}, fmt.Errorf("%w: subject no longer exists", domain.ErrUnauthenticated)
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("authenticate: %w", err)
	}

	if !user.IsActive() {
		return domain.Identity{}, domain.ErrAccountInactive
	}

	return domain.Identity{UserID: user.ID, Role: user.Role}, nil
}

func ensureEmailAvailable(ctx context.Context, users ports.UserRepository, email string) error {
	_, err := users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return domain.ErrUserExists
	case errors.Is(err, domain.ErrUserNotFound):
		return nil
	default:
		return fmt.Errorf("lookup email: %w", err)
	}
}

// equalizeTiming runs a bcrypt comparison against a throwaway hash so that
// unknown emails cost as much as wrong passwords.
func (s *authService) equalizeTiming(password string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("timing-equalizer-" + ids.New())
		if err != nil {
			s.log.Warn().Err(err).Msg("could not prepare timing hash")
			return
		}
		s.dummyHash = h
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
	}
}

// attemptAllowed fails open on throttle errors.
func (s *authService) attemptAllowed(ctx context.Context, email string) bool {
	if s.throttle == nil {
		return true
	}
	ok, err := s.throttle.Allowed(ctx, email)
	if err != nil {
		s.log.Warn().Err(err).Msg("login throttle check failed, allowing attempt")
		return true
	}
	return ok
}

func (s *authService) failedAttempt(ctx context.Context, email string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.RecordFailure(ctx, email); err != nil {
		s.log.Warn().Err(err).Msg("failed to record login failure")
	}
}

func (s *authService) clearAttempts(ctx context.Context, email string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Reset(ctx, email); err != nil {
		s.log.Warn().Err(err).Msg("failed to reset login throttle")
	}
}
