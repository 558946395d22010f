// Package policy decides who may do what to which record.
//
// Authorize is pure: it sees only the caller's identity flags and the
// resource's owner and status, never a store, and it never fails. Services
// call it before every read of owner-scoped data and before every mutation.
package policy

import (
	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
)

type Kind string

const (
	KindCase                Kind = "case"
	KindSighting            Kind = "sighting"
	KindProfile             Kind = "profile"
	KindVerificationRequest Kind = "verification_request"
	KindDashboard           Kind = "dashboard"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionList   Action = "list"
)

// Caller is the acting identity. The zero value is an anonymous caller.
type Caller struct {
	ProfileID     id.UserID
	Authenticated bool
	Verified      bool
}

// Anonymous returns the caller for unauthenticated requests.
func Anonymous() Caller { return Caller{} }

// Resource describes the target. OwnerID is the reporting profile for cases,
// the parent case's reporter for sightings, and the profile itself for
// profiles and verification requests. CaseStatus is only meaningful for cases.
type Resource struct {
	Kind       Kind
	OwnerID    id.UserID
	CaseStatus string
}

// Reasons reported on denials.
const (
	ReasonAuthenticationRequired = "authentication_required"
	ReasonVerificationPending    = "verification_pending"
	ReasonNotOwner               = "not_owner"
	ReasonPublicRead             = "public_read"
	ReasonPublicSubmission       = "public_submission"
	ReasonRegistration           = "registration"
	ReasonOwnRecord              = "own_record"
	ReasonOwner                  = "owner"
)

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed              bool
	Reason               string
	RequiresVerification bool
}

// Err converts a denial into a domain error; nil when allowed.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.Reason == ReasonAuthenticationRequired:
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	case d.RequiresVerification:
		return dErrors.New(dErrors.CodeVerificationPending, "profile verification is pending")
	default:
		return dErrors.New(dErrors.CodeForbidden, "access denied")
	}
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }

const activeStatus = "active"

// Authorize applies, in order: public rules, then own-profile rules, then the
// verification gate, then ownership.
func Authorize(caller Caller, resource Resource, action Action) Decision {
	if resource.Kind == KindCase && action == ActionRead && resource.CaseStatus == activeStatus {
		return allow(ReasonPublicRead)
	}
	if resource.Kind == KindSighting && action == ActionCreate {
		return allow(ReasonPublicSubmission)
	}

	authenticated := caller.Authenticated && !caller.ProfileID.IsNil()
	if !authenticated {
		if action == ActionCreate && (resource.Kind == KindProfile || resource.Kind == KindVerificationRequest) {
			return allow(ReasonRegistration)
		}
		return Decision{Reason: ReasonAuthenticationRequired}
	}

	if resource.Kind == KindProfile || resource.Kind == KindVerificationRequest {
		if action == ActionRead && resource.OwnerID == caller.ProfileID {
			return allow(ReasonOwnRecord)
		}
		return Decision{Reason: ReasonNotOwner}
	}

	if !caller.Verified {
		return Decision{Reason: ReasonVerificationPending, RequiresVerification: true}
	}

	if resource.Kind == KindDashboard {
		return allow(ReasonOwner)
	}
	if resource.OwnerID.IsNil() || resource.OwnerID != caller.ProfileID {
		return Decision{Reason: ReasonNotOwner}
	}
	return allow(ReasonOwner)
}
