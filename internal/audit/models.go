package audit

import (
	"time"

	"carledger/pkg/domain"
)

// Action names a ledger transition for the audit trail.
type Action string

const (
	ActionUserRegistered Action = "user_registered"
	ActionUserVerified   Action = "user_verified"
	ActionUserRejected   Action = "user_rejected"
	ActionCarRegistered  Action = "car_registered"
	ActionCarListed      Action = "car_listed"
	ActionCarUnlisted    Action = "car_unlisted"
	ActionBuyRequested   Action = "buy_requested"
	ActionBuyAccepted    Action = "buy_accepted"
	ActionBuyRejected    Action = "buy_rejected"
	ActionCarTransferred Action = "car_transferred"
	ActionReportIssued   Action = "report_issued"
	ActionReportApproved Action = "report_approved"
)

// Event is emitted after a transition is applied. It is transport-agnostic so
// stores and sinks can fan out; the Kafka sink serializes it as-is.
type Event struct {
	Timestamp time.Time
	Actor     domain.Authority
	Action    Action
	// Subject is the derived address of the record the transition mutated
	// or created.
	Subject string
	// Detail carries the human-readable natural key (vin, user name, report
	// id) for operators reading the trail without an address resolver.
	Detail    string
	RequestID string
}
