// Package service is the local identity gateway: accounts with bcrypt
// password hashes and stateless JWT sessions that can be revoked before they
// expire.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"findthem/internal/identity/metrics"
	"findthem/internal/identity/models"
	"findthem/internal/identity/token"
	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
	"findthem/pkg/email"
	audit "findthem/pkg/platform/audit"
	"findthem/pkg/platform/sentinel"
	"findthem/pkg/platform/validation"
	"findthem/pkg/requestcontext"
)

const (
	minPasswordLength = 8
	// bcrypt rejects longer inputs
	maxPasswordLength = 72
	defaultSessionTTL = 12 * time.Hour
)

type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, userID id.UserID) (*models.Account, error)
	Delete(ctx context.Context, userID id.UserID) error
}

type TokenRevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, expiresIn time.Duration) (string, string, time.Time, error)
	ValidateToken(tokenString string) (*token.Claims, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service implements the identity gateway contract used by registration and
// by the auth middleware.
type Service struct {
	accounts       AccountStore
	revocations    TokenRevocationList
	tokens         TokenIssuer
	sessionTTL     time.Duration
	bcryptCost     int
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	dummyHash      []byte
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithBcryptCost lowers the hashing cost in tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func New(accounts AccountStore, revocations TokenRevocationList, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		accounts:    accounts,
		revocations: revocations,
		tokens:      tokens,
		sessionTTL:  defaultSessionTTL,
		bcryptCost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	// compared against when the email is unknown so both paths pay for bcrypt
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("findthem-dummy-password"), s.bcryptCost)
	return s
}

// SignUp creates an account. A taken email is CodeConflict; store failures are
// CodeUpstream.
func (s *Service) SignUp(ctx context.Context, address, password string, meta models.Metadata) (id.UserID, error) {
	address = email.Normalize(address)
	if validation.Var(address, "email") != nil {
		return id.UserID{}, dErrors.WithFields(dErrors.CodeValidation, "email must be a valid email address", "email")
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return id.UserID{}, dErrors.WithFields(dErrors.CodeValidation, "password must be between 8 and 72 characters", "password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return id.UserID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	account := &models.Account{
		ID:           id.NewUserID(),
		Email:        address,
		PasswordHash: hash,
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return id.UserID{}, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return id.UserID{}, dErrors.Wrap(err, dErrors.CodeUpstream, "identity provider unavailable")
	}

	if s.metrics != nil {
		s.metrics.IncSignUp()
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "account created",
			"user_id", account.ID.String(),
			"role", meta.Role,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return account.ID, nil
}

// DeleteAccount removes an account whose registration could not be finished.
// Deleting an unknown account succeeds.
func (s *Service) DeleteAccount(ctx context.Context, userID id.UserID) error {
	if err := s.accounts.Delete(ctx, userID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeUpstream, "identity provider unavailable")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "account deleted",
			"user_id", userID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return nil
}

// SignIn checks credentials and issues a session. Unknown emails and wrong
// passwords are indistinguishable.
func (s *Service) SignIn(ctx context.Context, address, password string) (*models.Session, error) {
	address = email.Normalize(address)
	account, err := s.accounts.FindByEmail(ctx, address)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "identity provider unavailable")
	}

	hash := s.dummyHash
	if account != nil {
		hash = account.PasswordHash
	}
	if cmpErr := bcrypt.CompareHashAndPassword(hash, []byte(password)); cmpErr != nil || account == nil {
		s.incSignIn("failure")
		s.logAudit(ctx, audit.EventAuthFailed, id.UserID{}, "login")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}

	accessToken, _, expiresAt, err := s.tokens.GenerateAccessToken(account.ID, s.sessionTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session")
	}
	s.incSignIn("success")
	s.logAudit(ctx, audit.EventSessionCreated, account.ID, account.ID.String())

	return &models.Session{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		UserID:      account.ID,
	}, nil
}

// CurrentUser resolves a bearer token. Expired, revoked and malformed tokens
// are CodeUnauthorized.
func (s *Service) CurrentUser(ctx context.Context, accessToken string) (id.UserID, error) {
	claims, err := s.tokens.ValidateToken(accessToken)
	if err != nil {
		return id.UserID{}, err
	}

	start := time.Now()
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if s.metrics != nil {
		s.metrics.ObserveRevocationCheck(time.Since(start))
	}
	if err != nil {
		return id.UserID{}, dErrors.Wrap(err, dErrors.CodeUpstream, "failed to check session")
	}
	if revoked {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "session has been revoked")
	}
	return claims.UserID()
}

// SignOut revokes the token until it would have expired.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.ValidateToken(accessToken)
	if err != nil {
		return err
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := s.revocations.RevokeToken(ctx, claims.ID, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstream, "failed to revoke session")
	}
	if s.metrics != nil {
		s.metrics.IncSignOut()
	}
	userID, _ := claims.UserID()
	s.logAudit(ctx, audit.EventSessionRevoked, userID, claims.ID)
	return nil
}

func (s *Service) incSignIn(outcome string) {
	if s.metrics != nil {
		s.metrics.IncSignIn(outcome)
	}
}

// logAudit records session events. They are security signals, so a failed
// audit write is logged and the request proceeds.
func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, userID id.UserID, subject string) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"event", string(event),
			"log_type", "audit",
			"user_id", userID.String(),
			"request_id", requestID,
		)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:    userID,
		Subject:   subject,
		Resource:  "session",
		Action:    string(event),
		RequestID: requestID,
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit session audit event",
			"event", string(event),
			"error", err,
			"request_id", requestID,
		)
	}
}
