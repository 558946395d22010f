package audit

import (
	"context"
	"time"

	id "findthem/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers who registered, who was verified, and every
	// change to case and sighting records.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers denied access, failed logins and throttling.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity such as session issuance.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// UserID is the acting profile; nil for anonymous submissions.
	UserID id.UserID
	// Subject is the id of the record the event is about.
	Subject  string
	Resource string
	Action   string
	Decision string
	Reason   string
	// RequestID correlates the event with the HTTP request log lines.
	RequestID string
	// ActorID is set for admin actions taken on a user's behalf.
	ActorID string
}

type AuditEvent string

const (
	// Registration and verification
	EventProfileRegistered       AuditEvent = "profile_registered"
	EventRegistrationIncomplete  AuditEvent = "registration_incomplete"
	EventRegistrationCompensated AuditEvent = "registration_compensated"
	EventRegistrationAbandoned   AuditEvent = "registration_abandoned"
	EventVerificationApproved    AuditEvent = "verification_approved"
	EventVerificationRejected    AuditEvent = "verification_rejected"

	// Cases
	EventCaseCreated       AuditEvent = "case_created"
	EventCaseUpdated       AuditEvent = "case_updated"
	EventCaseStatusChanged AuditEvent = "case_status_changed"

	// Sightings
	EventSightingSubmitted     AuditEvent = "sighting_submitted"
	EventSightingStatusChanged AuditEvent = "sighting_status_changed"

	// Sessions and access
	EventSessionCreated    AuditEvent = "session_created"
	EventSessionRevoked    AuditEvent = "session_revoked"
	EventAuthFailed        AuditEvent = "auth_failed"
	EventAccessDenied      AuditEvent = "access_denied"
	EventRateLimitExceeded AuditEvent = "rate_limit_exceeded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventProfileRegistered:       CategoryCompliance,
	EventRegistrationIncomplete:  CategoryCompliance,
	EventRegistrationCompensated: CategoryCompliance,
	EventRegistrationAbandoned:   CategoryCompliance,
	EventVerificationApproved:    CategoryCompliance,
	EventVerificationRejected:    CategoryCompliance,
	EventCaseCreated:             CategoryCompliance,
	EventCaseUpdated:             CategoryCompliance,
	EventCaseStatusChanged:       CategoryCompliance,
	EventSightingSubmitted:       CategoryCompliance,
	EventSightingStatusChanged:   CategoryCompliance,

	EventAuthFailed:        CategorySecurity,
	EventAccessDenied:      CategorySecurity,
	EventSessionRevoked:    CategorySecurity,
	EventRateLimitExceeded: CategorySecurity,

	EventSessionCreated: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. The PostgreSQL implementation joins the
// caller's transaction so an event is written if and only if the change is.
type Store interface {
	Append(ctx context.Context, event Event) error
}
