package models

import (
	"encoding/binary"
	"time"

	"carledger/internal/ledger/address"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
)

// Field bounds from the fixed report layouts.
const (
	MinConditionScore = 1
	MaxConditionScore = 10
	MaxReportURILen   = 256
	MaxSummaryLen     = 512
	MaxNotesLen       = 512
	MaxModsLen        = 256
	MaxStampLen       = 256
)

// InspectionReport is a roadworthiness assessment anchored at
// ("car_report", carAddress, inspector, reportID). The reportID is a
// caller-chosen nonce, so a car accumulates reports over time instead of
// holding a single slot.
type InspectionReport struct {
	Address          address.Address
	ReportID         uint64
	Car              address.Address
	Inspector        domain.Authority
	CarOwner         domain.Authority
	ReportDate       time.Time
	OverallCondition uint8
	EngineCondition  uint8
	BodyCondition    uint8
	FullReportURI    string
	ReportSummary    string
	ApprovedByOwner  bool
	Notes            string
	Bump             uint8
}

// ConformityReport records a regulatory pass/fail verdict, anchored at
// ("conformity_report", carAddress, expert, reportID).
type ConformityReport struct {
	Address          address.Address
	ReportID         uint64
	Car              address.Address
	ConformityExpert domain.Authority
	CarOwner         domain.Authority
	ReportDate       time.Time
	ConformityStatus bool
	Modifications    string
	MinesStamp       string
	FullReportURI    string
	AcceptedByOwner  bool
	Notes            string
	Bump             uint8
}

// InspectionReportAddress derives the record address for
// (car, inspector, reportID).
func InspectionReportAddress(car address.Address, inspector domain.Authority, reportID uint64) (address.Address, uint8, error) {
	return address.Derive(address.TagInspectionReport, car.Bytes(), inspector.Bytes(), reportIDSeed(reportID))
}

// ConformityReportAddress derives the record address for
// (car, expert, reportID).
func ConformityReportAddress(car address.Address, expert domain.Authority, reportID uint64) (address.Address, uint8, error) {
	return address.Derive(address.TagConformityReport, car.Bytes(), expert.Bytes(), reportIDSeed(reportID))
}

func reportIDSeed(reportID uint64) []byte {
	seed := make([]byte, 8)
	binary.LittleEndian.PutUint64(seed, reportID)
	return seed
}

// ValidateConditionScore enforces the 1-10 rating scale.
func ValidateConditionScore(score uint8) error {
	if score < MinConditionScore || score > MaxConditionScore {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "condition score must be between 1 and 10")
	}
	return nil
}

// ValidateReportText bounds the free-text and URI fields shared by both
// report types.
func ValidateReportText(fullReportURI, summary, notes string) error {
	if len(fullReportURI) > MaxReportURILen {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "report uri must be at most 256 characters")
	}
	if len(summary) > MaxSummaryLen {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "report summary must be at most 512 characters")
	}
	if len(notes) > MaxNotesLen {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "notes must be at most 512 characters")
	}
	return nil
}

// ValidateConformityText bounds the conformity-specific fields.
func ValidateConformityText(modifications, minesStamp string) error {
	if len(modifications) > MaxModsLen {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "modifications must be at most 256 characters")
	}
	if len(minesStamp) > MaxStampLen {
		return ledgererrors.New(ledgererrors.CodeInvalidInput, "mines stamp must be at most 256 characters")
	}
	return nil
}
