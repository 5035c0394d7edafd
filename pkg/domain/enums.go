package domain

import "fmt"

// Role labels what a user claims to be. A role grants nothing on its own:
// privileged operations require the role AND a Verified status together, so a
// self-declared inspector has no power until the government verifies them.
type Role string

const (
	RoleRegularUser      Role = "regular_user"
	RoleInspector        Role = "inspector"
	RoleConformityExpert Role = "conformity_expert"
	RoleGovernment       Role = "government"
)

// ParseRole validates and returns a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleRegularUser, RoleInspector, RoleConformityExpert, RoleGovernment:
		return r, nil
	}
	return "", fmt.Errorf("unknown role: %q", s)
}

// VerificationStatus tracks the government decision on a user record. The
// transition is one-way: Pending moves to Verified or Rejected exactly once.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// ParseVerificationStatus validates and returns a VerificationStatus.
func ParseVerificationStatus(s string) (VerificationStatus, error) {
	switch st := VerificationStatus(s); st {
	case VerificationPending, VerificationVerified, VerificationRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown verification status: %q", s)
}

// InspectionStatus is the roadworthiness state carried on a car record.
type InspectionStatus string

const (
	InspectionPending InspectionStatus = "pending"
	InspectionPassed  InspectionStatus = "passed"
	InspectionFailed  InspectionStatus = "failed"
)

// ParseInspectionStatus validates and returns an InspectionStatus.
func ParseInspectionStatus(s string) (InspectionStatus, error) {
	switch st := InspectionStatus(s); st {
	case InspectionPending, InspectionPassed, InspectionFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown inspection status: %q", s)
}

// BuyRequestStatus tracks the marketplace negotiation state machine.
// Accepted and Rejected are terminal.
type BuyRequestStatus string

const (
	BuyRequestPending  BuyRequestStatus = "pending"
	BuyRequestAccepted BuyRequestStatus = "accepted"
	BuyRequestRejected BuyRequestStatus = "rejected"
)

// ParseBuyRequestStatus validates and returns a BuyRequestStatus.
func ParseBuyRequestStatus(s string) (BuyRequestStatus, error) {
	switch st := BuyRequestStatus(s); st {
	case BuyRequestPending, BuyRequestAccepted, BuyRequestRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown buy request status: %q", s)
}
