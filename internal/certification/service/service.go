package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"carledger/internal/audit"
	"carledger/internal/certification/metrics"
	"carledger/internal/certification/models"
	identitymodels "carledger/internal/identity/models"
	"carledger/internal/ledger/address"
	registrymodels "carledger/internal/registry/models"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
	"carledger/pkg/platform/sentinel"
	"carledger/pkg/platform/tx"
	"carledger/pkg/requestcontext"
)

// Store is the slice of the ledger the certification subsystem touches.
// It reads users and cars to authorize issuers and owners but only ever
// writes report records.
type Store interface {
	GetUser(ctx context.Context, addr address.Address) (identitymodels.User, error)
	GetCar(ctx context.Context, addr address.Address) (registrymodels.Car, error)

	CreateInspectionReport(ctx context.Context, report models.InspectionReport) error
	GetInspectionReport(ctx context.Context, addr address.Address) (models.InspectionReport, error)
	UpdateInspectionReport(ctx context.Context, report models.InspectionReport) error
	ListInspectionReports(ctx context.Context) ([]models.InspectionReport, error)

	CreateConformityReport(ctx context.Context, report models.ConformityReport) error
	GetConformityReport(ctx context.Context, addr address.Address) (models.ConformityReport, error)
	UpdateConformityReport(ctx context.Context, report models.ConformityReport) error
	ListConformityReports(ctx context.Context) ([]models.ConformityReport, error)
}

// Auditor records applied transitions.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service owns report issuance by certified professionals and the owner's
// one-way approval flag.
type Service struct {
	store      Store
	runner     tx.Runner
	government domain.Authority
	auditor    Auditor
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func New(store Store, runner tx.Runner, government domain.Authority, auditor Auditor, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		runner:     runner,
		government: government,
		auditor:    auditor,
		metrics:    m,
		logger:     logger,
	}
}

// IssueInspectionParams mirrors the issueInspectionReport transition
// arguments. IssuerUserName locates the signer's own user record.
type IssueInspectionParams struct {
	ReportID         uint64
	Vin              string
	IssuerUserName   string
	OverallCondition uint8
	EngineCondition  uint8
	BodyCondition    uint8
	FullReportURI    string
	ReportSummary    string
	Notes            string
}

// IssueInspectionReport creates an inspection report. The signer must hold a
// Verified Inspector record; role alone is not enough.
func (s *Service) IssueInspectionReport(ctx context.Context, signer domain.Authority, params IssueInspectionParams) (models.InspectionReport, error) {
	for _, score := range []uint8{params.OverallCondition, params.EngineCondition, params.BodyCondition} {
		if err := models.ValidateConditionScore(score); err != nil {
			s.metrics.IncRejected()
			return models.InspectionReport{}, err
		}
	}
	if err := models.ValidateReportText(params.FullReportURI, params.ReportSummary, params.Notes); err != nil {
		s.metrics.IncRejected()
		return models.InspectionReport{}, err
	}

	var report models.InspectionReport
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		car, err := s.loadCar(ctx, params.Vin)
		if err != nil {
			return err
		}
		if err := s.requireVerifiedRole(ctx, signer, params.IssuerUserName, domain.RoleInspector); err != nil {
			return err
		}
		addr, bump, err := models.InspectionReportAddress(car.Address, signer, params.ReportID)
		if err != nil {
			return err
		}
		report = models.InspectionReport{
			Address:          addr,
			ReportID:         params.ReportID,
			Car:              car.Address,
			Inspector:        signer,
			CarOwner:         car.Owner,
			ReportDate:       requestcontext.Now(ctx),
			OverallCondition: params.OverallCondition,
			EngineCondition:  params.EngineCondition,
			BodyCondition:    params.BodyCondition,
			FullReportURI:    params.FullReportURI,
			ReportSummary:    params.ReportSummary,
			Notes:            params.Notes,
			Bump:             bump,
		}
		return s.store.CreateInspectionReport(ctx, report)
	})
	if err != nil {
		return models.InspectionReport{}, s.translateIssueErr(err)
	}

	s.metrics.IncIssued("inspection")
	s.auditor.Emit(ctx, audit.Event{
		Actor:   signer,
		Action:  audit.ActionReportIssued,
		Subject: report.Address.String(),
		Detail:  fmt.Sprintf("inspection %s #%d", params.Vin, params.ReportID),
	})
	s.logger.Info("inspection report issued", "vin", params.Vin, "report_id", params.ReportID)
	return report, nil
}

// IssueConformityParams mirrors the issueConformityReport transition
// arguments.
type IssueConformityParams struct {
	ReportID         uint64
	Vin              string
	IssuerUserName   string
	ConformityStatus bool
	Modifications    string
	MinesStamp       string
	FullReportURI    string
	Notes            string
}

// IssueConformityReport creates a conformity report. The signer must hold a
// Verified ConformityExpert record.
func (s *Service) IssueConformityReport(ctx context.Context, signer domain.Authority, params IssueConformityParams) (models.ConformityReport, error) {
	if err := models.ValidateReportText(params.FullReportURI, "", params.Notes); err != nil {
		s.metrics.IncRejected()
		return models.ConformityReport{}, err
	}
	if err := models.ValidateConformityText(params.Modifications, params.MinesStamp); err != nil {
		s.metrics.IncRejected()
		return models.ConformityReport{}, err
	}

	var report models.ConformityReport
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		car, err := s.loadCar(ctx, params.Vin)
		if err != nil {
			return err
		}
		if err := s.requireVerifiedRole(ctx, signer, params.IssuerUserName, domain.RoleConformityExpert); err != nil {
			return err
		}
		addr, bump, err := models.ConformityReportAddress(car.Address, signer, params.ReportID)
		if err != nil {
			return err
		}
		report = models.ConformityReport{
			Address:          addr,
			ReportID:         params.ReportID,
			Car:              car.Address,
			ConformityExpert: signer,
			CarOwner:         car.Owner,
			ReportDate:       requestcontext.Now(ctx),
			ConformityStatus: params.ConformityStatus,
			Modifications:    params.Modifications,
			MinesStamp:       params.MinesStamp,
			FullReportURI:    params.FullReportURI,
			Notes:            params.Notes,
			Bump:             bump,
		}
		return s.store.CreateConformityReport(ctx, report)
	})
	if err != nil {
		return models.ConformityReport{}, s.translateIssueErr(err)
	}

	s.metrics.IncIssued("conformity")
	s.auditor.Emit(ctx, audit.Event{
		Actor:   signer,
		Action:  audit.ActionReportIssued,
		Subject: report.Address.String(),
		Detail:  fmt.Sprintf("conformity %s #%d", params.Vin, params.ReportID),
	})
	s.logger.Info("conformity report issued", "vin", params.Vin, "report_id", params.ReportID)
	return report, nil
}

// AcceptInspectionReport flips the owner approval flag. Only the car's
// current owner may sign; approval of an already-approved report is a no-op
// success because the flag is one-way.
func (s *Service) AcceptInspectionReport(ctx context.Context, signer domain.Authority, vin string, issuer domain.Authority, reportID uint64) (models.InspectionReport, error) {
	var report models.InspectionReport
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		car, err := s.requireCurrentOwner(ctx, signer, vin)
		if err != nil {
			return err
		}
		addr, _, err := models.InspectionReportAddress(car.Address, issuer, reportID)
		if err != nil {
			return err
		}
		report, err = s.store.GetInspectionReport(ctx, addr)
		if err != nil {
			return err
		}
		if report.Car != car.Address {
			return ledgererrors.New(ledgererrors.CodeAddressMismatch, "report does not belong to this car")
		}
		if report.ApprovedByOwner {
			return nil
		}
		report.ApprovedByOwner = true
		return s.store.UpdateInspectionReport(ctx, report)
	})
	if err != nil {
		return models.InspectionReport{}, s.translateAcceptErr(err)
	}

	s.metrics.IncApproved("inspection")
	s.auditor.Emit(ctx, audit.Event{
		Actor:   signer,
		Action:  audit.ActionReportApproved,
		Subject: report.Address.String(),
		Detail:  fmt.Sprintf("inspection %s #%d", vin, reportID),
	})
	return report, nil
}

// AcceptConformityReport is the conformity twin of AcceptInspectionReport.
func (s *Service) AcceptConformityReport(ctx context.Context, signer domain.Authority, vin string, issuer domain.Authority, reportID uint64) (models.ConformityReport, error) {
	var report models.ConformityReport
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		car, err := s.requireCurrentOwner(ctx, signer, vin)
		if err != nil {
			return err
		}
		addr, _, err := models.ConformityReportAddress(car.Address, issuer, reportID)
		if err != nil {
			return err
		}
		report, err = s.store.GetConformityReport(ctx, addr)
		if err != nil {
			return err
		}
		if report.Car != car.Address {
			return ledgererrors.New(ledgererrors.CodeAddressMismatch, "report does not belong to this car")
		}
		if report.AcceptedByOwner {
			return nil
		}
		report.AcceptedByOwner = true
		return s.store.UpdateConformityReport(ctx, report)
	})
	if err != nil {
		return models.ConformityReport{}, s.translateAcceptErr(err)
	}

	s.metrics.IncApproved("conformity")
	s.auditor.Emit(ctx, audit.Event{
		Actor:   signer,
		Action:  audit.ActionReportApproved,
		Subject: report.Address.String(),
		Detail:  fmt.Sprintf("conformity %s #%d", vin, reportID),
	})
	return report, nil
}

// InspectionFilter narrows a full scan of inspection reports.
type InspectionFilter struct {
	Car      *address.Address
	CarOwner *domain.Authority
	Issuer   *domain.Authority
}

// ListInspectionReports scans all inspection reports, applying the filter.
// CarOwner matches the owner snapshotted at issuance, which is what the
// owner dashboards key on.
func (s *Service) ListInspectionReports(ctx context.Context, filter InspectionFilter) ([]models.InspectionReport, error) {
	reports, err := s.store.ListInspectionReports(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]models.InspectionReport, 0, len(reports))
	for _, report := range reports {
		if filter.Car != nil && report.Car != *filter.Car {
			continue
		}
		if filter.CarOwner != nil && report.CarOwner != *filter.CarOwner {
			continue
		}
		if filter.Issuer != nil && report.Inspector != *filter.Issuer {
			continue
		}
		matched = append(matched, report)
	}
	return matched, nil
}

// ConformityFilter narrows a full scan of conformity reports.
type ConformityFilter struct {
	Car      *address.Address
	CarOwner *domain.Authority
	Issuer   *domain.Authority
}

// ListConformityReports scans all conformity reports, applying the filter.
func (s *Service) ListConformityReports(ctx context.Context, filter ConformityFilter) ([]models.ConformityReport, error) {
	reports, err := s.store.ListConformityReports(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]models.ConformityReport, 0, len(reports))
	for _, report := range reports {
		if filter.Car != nil && report.Car != *filter.Car {
			continue
		}
		if filter.CarOwner != nil && report.CarOwner != *filter.CarOwner {
			continue
		}
		if filter.Issuer != nil && report.ConformityExpert != *filter.Issuer {
			continue
		}
		matched = append(matched, report)
	}
	return matched, nil
}

func (s *Service) loadCar(ctx context.Context, vin string) (registrymodels.Car, error) {
	addr, _, err := registrymodels.CarAddress(s.government, vin)
	if err != nil {
		return registrymodels.Car{}, err
	}
	car, err := s.store.GetCar(ctx, addr)
	if err != nil {
		return registrymodels.Car{}, err
	}
	return car, nil
}

// requireVerifiedRole loads the signer's own user record and gates on the
// role and Verified status together.
func (s *Service) requireVerifiedRole(ctx context.Context, signer domain.Authority, userName string, role domain.Role) error {
	addr, _, err := identitymodels.UserAddress(signer, userName)
	if err != nil {
		return err
	}
	user, err := s.store.GetUser(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ledgererrors.Wrap(ledgererrors.CodeUnauthorized, "issuer has no user record", err)
		}
		return err
	}
	if !user.HasVerifiedRole(role) {
		return ledgererrors.New(ledgererrors.CodeUnauthorized,
			fmt.Sprintf("issuer must be a verified %s", role))
	}
	return nil
}

func (s *Service) requireCurrentOwner(ctx context.Context, signer domain.Authority, vin string) (registrymodels.Car, error) {
	car, err := s.loadCar(ctx, vin)
	if err != nil {
		return registrymodels.Car{}, err
	}
	if !car.OwnedBy(signer) {
		return registrymodels.Car{}, ledgererrors.New(ledgererrors.CodeUnauthorized,
			"only the current owner may approve reports")
	}
	return car, nil
}

func (s *Service) translateIssueErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		s.metrics.IncRejected()
		return ledgererrors.Wrap(ledgererrors.CodeAddressAlreadyInUse,
			"report id already used; retry with a fresh nonce", err)
	case errors.Is(err, sentinel.ErrNotFound):
		return ledgererrors.Wrap(ledgererrors.CodeNotFound, "referenced record not found", err)
	case ledgererrors.HasCode(err, ledgererrors.CodeUnauthorized):
		s.metrics.IncRejected()
		return err
	default:
		return err
	}
}

func (s *Service) translateAcceptErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return ledgererrors.Wrap(ledgererrors.CodeNotFound, "report not found", err)
	case ledgererrors.HasCode(err, ledgererrors.CodeUnauthorized):
		s.metrics.IncRejected()
		return err
	default:
		return err
	}
}
