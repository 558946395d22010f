// Package service implements organization registration, the verification
// gate and the admin review of verification requests.
//
// Registration is a saga over two systems: the identity gateway owns the
// credentials and the profile store owns everything else. The profile write
// is retried a few times; if it still fails the account is deleted so no
// credentials exist without a profile. A profile whose verification request
// could not be written stays registration_incomplete until
// RetryIncompleteRegistrations writes it.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	identitymodels "findthem/internal/identity/models"
	"findthem/internal/policy"
	"findthem/internal/profile/metrics"
	"findthem/internal/profile/models"
	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
	audit "findthem/pkg/platform/audit"
	"findthem/pkg/platform/sentinel"
	"findthem/pkg/requestcontext"
)

const (
	defaultRetryBatch   = 100
	defaultPendingLimit = 100

	profileWriteAttempts       = 3
	defaultProfileWriteBackoff = 100 * time.Millisecond
)

var tracer = otel.Tracer("findthem/profile")

type ProfileStore interface {
	Insert(ctx context.Context, p *models.Profile) error
	FindByID(ctx context.Context, userID id.UserID) (*models.Profile, error)
	SetVerified(ctx context.Context, userID id.UserID, verified bool, at time.Time) error
	SetRegistrationState(ctx context.Context, userID id.UserID, state models.RegistrationState, at time.Time) error
	ListIncomplete(ctx context.Context, limit int) ([]*models.Profile, error)
}

type VerificationStore interface {
	Insert(ctx context.Context, r *models.VerificationRequest) error
	FindByID(ctx context.Context, requestID id.VerificationRequestID) (*models.VerificationRequest, error)
	FindByUserID(ctx context.Context, userID id.UserID) (*models.VerificationRequest, error)
	ListByStatus(ctx context.Context, status models.VerificationStatus, limit int) ([]*models.VerificationRequest, error)
	Review(ctx context.Context, requestID id.VerificationRequestID, status models.VerificationStatus, at time.Time) error
}

// IdentityGateway creates and removes credentials. Its errors are already
// domain errors.
type IdentityGateway interface {
	SignUp(ctx context.Context, email, password string, meta identitymodels.Metadata) (id.UserID, error)
	DeleteAccount(ctx context.Context, userID id.UserID) error
}

type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	profiles       ProfileStore
	requests       VerificationStore
	identity       IdentityGateway
	tx             StoreTx
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	retryBatch     int
	profileBackoff time.Duration
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

func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

// WithRetryBatch caps how many incomplete registrations one retry pass handles.
func WithRetryBatch(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retryBatch = n
		}
	}
}

// WithProfileWriteBackoff sets the base delay between profile write attempts
// during registration. Attempt n waits n times the base.
func WithProfileWriteBackoff(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.profileBackoff = d
		}
	}
}

type noopTx struct{}

func (noopTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func New(profiles ProfileStore, requests VerificationStore, identity IdentityGateway, opts ...Option) *Service {
	s := &Service{
		profiles:       profiles,
		requests:       requests,
		identity:       identity,
		tx:             noopTx{},
		retryBatch:     defaultRetryBatch,
		profileBackoff: defaultProfileWriteBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register signs the organization up with the identity gateway, then writes
// its unverified profile and pending verification request. When only the
// verification request fails, the profile id is still returned.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (id.UserID, error) {
	ctx, span := tracer.Start(ctx, "profile.Register")
	defer span.End()

	if err := policy.Authorize(policy.Anonymous(), policy.Resource{Kind: policy.KindProfile}, policy.ActionCreate).Err(); err != nil {
		return id.UserID{}, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return id.UserID{}, err
	}

	userID, err := s.identity.SignUp(ctx, req.Email, req.Password, identitymodels.Metadata{
		FullName:         req.FullName,
		OrganizationName: req.OrganizationName,
		Role:             req.Role,
		PoliceID:         req.PoliceID,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return id.UserID{}, err
	}
	span.SetAttributes(attribute.String("profile.id", userID.String()))

	now := clock(ctx)
	// starts incomplete so a crash before the verification request is
	// written leaves it visible to the retry pass
	profile := &models.Profile{
		ID:                userID,
		Email:             req.Email,
		FullName:          req.FullName,
		OrganizationName:  req.OrganizationName,
		Role:              models.Role(req.Role),
		PoliceID:          req.OptionalPoliceID(),
		RegistrationState: models.RegistrationIncomplete,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	ctx = requestcontext.WithUserID(ctx, userID)
	if err := s.writeProfile(ctx, profile); err != nil {
		span.SetStatus(codes.Error, err.Error())
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "profile write failed after identity sign-up",
				"user_id", userID.String(),
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		s.abandonRegistration(ctx, userID)
		return id.UserID{}, dErrors.Wrap(err, dErrors.CodeUpstream, "failed to create profile")
	}
	s.logAudit(ctx, audit.EventProfileRegistered, userID, "role", string(profile.Role))

	if err := s.completeRegistration(ctx, profile); err != nil {
		s.incRegistration("incomplete")
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "verification request write failed, registration left incomplete",
				"user_id", userID.String(),
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		s.emitBestEffort(ctx, audit.EventRegistrationIncomplete, userID, userID.String())
		return userID, nil
	}
	s.incRegistration("complete")
	return userID, nil
}

// writeProfile inserts the profile and its registration event, retrying with
// a linear backoff. A row left behind by an earlier attempt counts as written.
func (s *Service) writeProfile(ctx context.Context, p *models.Profile) error {
	var err error
	for attempt := 1; attempt <= profileWriteAttempts; attempt++ {
		err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.profiles.Insert(ctx, p); err != nil && !(attempt > 1 && errors.Is(err, sentinel.ErrAlreadyUsed)) {
				return err
			}
			return s.emit(ctx, audit.EventProfileRegistered, p.ID, p.ID.String(), string(p.Role))
		})
		if err == nil || attempt == profileWriteAttempts {
			break
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "profile write failed, retrying",
				"user_id", p.ID.String(),
				"attempt", attempt,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt) * s.profileBackoff):
		}
	}
	return err
}

// abandonRegistration deletes the account of a registration whose profile
// could not be written. A failed delete is logged with the account id so the
// orphan can be removed by hand.
func (s *Service) abandonRegistration(ctx context.Context, userID id.UserID) {
	s.incRegistration("abandoned")
	if err := s.identity.DeleteAccount(ctx, userID); err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "account left without a profile",
				"user_id", userID.String(),
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return
	}
	s.logAudit(ctx, audit.EventRegistrationAbandoned, userID)
	s.emitBestEffort(ctx, audit.EventRegistrationAbandoned, userID, userID.String())
}

// completeRegistration writes the verification request and marks the profile
// complete. An existing request for the profile counts as written.
func (s *Service) completeRegistration(ctx context.Context, p *models.Profile) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := clock(ctx)
		err := s.requests.Insert(ctx, models.NewVerificationRequest(p, now))
		if err != nil && !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return err
		}
		return s.profiles.SetRegistrationState(ctx, p.ID, models.RegistrationComplete, now)
	})
}

// RetryIncompleteRegistrations writes the missing verification requests of
// incomplete registrations and returns how many it completed. A failure on
// one profile does not stop the pass.
func (s *Service) RetryIncompleteRegistrations(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "profile.RetryIncompleteRegistrations")
	defer span.End()

	pending, err := s.profiles.ListIncomplete(ctx, s.retryBatch)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, dErrors.Wrap(err, dErrors.CodeUpstream, "failed to list incomplete registrations")
	}

	completed := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		pctx := requestcontext.WithUserID(ctx, p.ID)
		if err := s.completeRegistration(pctx, p); err != nil {
			s.incCompensation("failed")
			if s.logger != nil {
				s.logger.WarnContext(ctx, "registration retry failed",
					"user_id", p.ID.String(),
					"error", err,
				)
			}
			continue
		}
		completed++
		s.incCompensation("completed")
		s.logAudit(pctx, audit.EventRegistrationCompensated, p.ID)
		s.emitBestEffort(pctx, audit.EventRegistrationCompensated, p.ID, p.ID.String())
	}
	if s.metrics != nil {
		s.metrics.SetIncomplete(len(pending) - completed)
	}
	span.SetAttributes(attribute.Int("registrations.completed", completed))
	return completed, nil
}

// Status returns the caller's own profile and verification request. It is
// available before verification.
func (s *Service) Status(ctx context.Context, caller policy.Caller) (*models.Status, error) {
	ctx, span := tracer.Start(ctx, "profile.Status")
	defer span.End()

	resource := policy.Resource{Kind: policy.KindProfile, OwnerID: caller.ProfileID}
	if err := policy.Authorize(caller, resource, policy.ActionRead).Err(); err != nil {
		return nil, err
	}

	p, err := s.profiles.FindByID(ctx, caller.ProfileID)
	if err != nil {
		return nil, translateStoreErr(err, "profile not found", "failed to load profile")
	}
	status := &models.Status{Profile: p}

	request, err := s.requests.FindByUserID(ctx, caller.ProfileID)
	switch {
	case err == nil:
		status.VerificationRequest = request
	case errors.Is(err, sentinel.ErrNotFound):
		// incomplete registration; the retry pass will write it
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "failed to load verification request")
	}
	return status, nil
}

// ResolveCaller builds the policy caller for the authenticated user in ctx.
// A user without a profile row is authenticated but never verified.
func (s *Service) ResolveCaller(ctx context.Context) (policy.Caller, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return policy.Anonymous(), nil
	}
	p, err := s.profiles.FindByID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return policy.Caller{ProfileID: userID, Authenticated: true}, nil
	}
	if err != nil {
		return policy.Caller{}, dErrors.Wrap(err, dErrors.CodeUpstream, "failed to load profile")
	}
	return policy.Caller{ProfileID: userID, Authenticated: true, Verified: p.IsVerified}, nil
}

// ListPending returns the review queue, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]*models.VerificationRequest, error) {
	out, err := s.requests.ListByStatus(ctx, models.VerificationPending, defaultPendingLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "failed to list verification requests")
	}
	return out, nil
}

// Approve marks the request approved and the profile verified.
func (s *Service) Approve(ctx context.Context, requestID id.VerificationRequestID) (*models.VerificationRequest, error) {
	return s.review(ctx, requestID, models.VerificationApproved)
}

// Reject closes the request. The profile stays unverified.
func (s *Service) Reject(ctx context.Context, requestID id.VerificationRequestID) (*models.VerificationRequest, error) {
	return s.review(ctx, requestID, models.VerificationRejected)
}

// review repeats of the same decision are no-ops; reversing a decision is a
// conflict.
func (s *Service) review(ctx context.Context, requestID id.VerificationRequestID, decision models.VerificationStatus) (*models.VerificationRequest, error) {
	ctx, span := tracer.Start(ctx, "profile.Review", trace.WithAttributes(
		attribute.String("verification_request.id", requestID.String()),
		attribute.String("decision", string(decision)),
	))
	defer span.End()

	var reviewed *models.VerificationRequest
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.requests.FindByID(ctx, requestID)
		if err != nil {
			return translateStoreErr(err, "verification request not found", "failed to load verification request")
		}
		if current.Status == decision {
			reviewed = current
			return nil
		}
		if current.Status != models.VerificationPending {
			return dErrors.New(dErrors.CodeConflict, "verification request was already "+string(current.Status))
		}

		now := clock(ctx)
		if err := s.requests.Review(ctx, requestID, decision, now); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeConflict, "verification request was already reviewed")
			}
			return translateStoreErr(err, "verification request not found", "failed to review verification request")
		}
		if decision == models.VerificationApproved {
			if err := s.profiles.SetVerified(ctx, current.UserID, true, now); err != nil {
				return translateStoreErr(err, "profile not found", "failed to verify profile")
			}
		}

		event := audit.EventVerificationRejected
		if decision == models.VerificationApproved {
			event = audit.EventVerificationApproved
		}
		if err := s.emitAdmin(ctx, event, current, decision); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUpstream, "failed to record verification decision")
		}

		current.Status = decision
		current.ReviewedAt = &now
		reviewed = current
		if s.metrics != nil {
			s.metrics.IncDecision(string(decision))
		}
		s.logAudit(ctx, event, current.UserID, "verification_request_id", requestID.String())
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return reviewed, nil
}

func translateStoreErr(err error, notFound, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFound)
	}
	return dErrors.Wrap(err, dErrors.CodeUpstream, msg)
}

func (s *Service) incRegistration(outcome string) {
	if s.metrics != nil {
		s.metrics.IncRegistration(outcome)
	}
}

func (s *Service) incCompensation(result string) {
	if s.metrics != nil {
		s.metrics.IncCompensation(result)
	}
}

// emit writes a compliance event in the current transaction.
func (s *Service) emit(ctx context.Context, event audit.AuditEvent, userID id.UserID, subject, reason string) error {
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, audit.Event{
		Category:  event.Category(),
		Timestamp: clock(ctx),
		UserID:    userID,
		Subject:   subject,
		Resource:  "profile",
		Action:    string(event),
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	})
}

func (s *Service) emitAdmin(ctx context.Context, event audit.AuditEvent, r *models.VerificationRequest, decision models.VerificationStatus) error {
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, audit.Event{
		Category:  event.Category(),
		Timestamp: clock(ctx),
		UserID:    r.UserID,
		Subject:   r.ID.String(),
		Resource:  "verification_request",
		Action:    string(event),
		Decision:  string(decision),
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   "admin",
	})
}

// emitBestEffort records saga bookkeeping events. The saga has already
// committed, so a failed write is only logged.
func (s *Service) emitBestEffort(ctx context.Context, event audit.AuditEvent, userID id.UserID, subject string) {
	if err := s.emit(ctx, event, userID, subject, ""); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit registration audit event",
			"event", string(event),
			"user_id", userID.String(),
			"error", err,
		)
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, userID id.UserID, attributes ...any) {
	if s.logger == nil {
		return
	}
	args := append(attributes,
		"event", string(event),
		"log_type", "audit",
		"user_id", userID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.logger.InfoContext(ctx, string(event), args...)
}

func clock(ctx context.Context) time.Time {
	return requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
}
