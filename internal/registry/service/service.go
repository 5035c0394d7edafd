package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"carledger/internal/audit"
	"carledger/internal/ledger/address"
	"carledger/internal/registry/cache"
	"carledger/internal/registry/metrics"
	"carledger/internal/registry/models"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
	"carledger/pkg/platform/sentinel"
	"carledger/pkg/platform/tx"
	"carledger/pkg/requestcontext"
)

// Store is the slice of the ledger the vehicle registry touches.
type Store interface {
	CreateCar(ctx context.Context, car models.Car) error
	GetCar(ctx context.Context, addr address.Address) (models.Car, error)
	UpdateCar(ctx context.Context, car models.Car) error
	ListCars(ctx context.Context) ([]models.Car, error)
}

// Auditor records applied transitions.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service owns car creation (government only) and the owner-controlled sale
// flags.
type Service struct {
	store      Store
	runner     tx.Runner
	government domain.Authority
	forSale    *cache.ForSaleCache
	auditor    Auditor
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func New(store Store, runner tx.Runner, government domain.Authority, forSale *cache.ForSaleCache, auditor Auditor, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		runner:     runner,
		government: government,
		forSale:    forSale,
		auditor:    auditor,
		metrics:    m,
		logger:     logger,
	}
}

// RegisterCarParams mirrors the registerCar transition arguments.
type RegisterCarParams struct {
	CarID                     string
	Vin                       string
	Brand                     string
	Model                     string
	Year                      uint16
	Color                     string
	EngineNumber              string
	Owner                     domain.Authority
	LastInspectionDate        *time.Time
	InspectionStatus          domain.InspectionStatus
	LatestInspectionReportURI string
	Mileage                   uint32
}

// RegisterCar mints a car title. Only the government authority may sign it;
// a duplicate VIN under the same government collides on the derived address.
func (s *Service) RegisterCar(ctx context.Context, signer domain.Authority, params RegisterCarParams) (models.Car, error) {
	if signer != s.government {
		s.metrics.IncRejected()
		return models.Car{}, ledgererrors.New(ledgererrors.CodeUnauthorized,
			"only the government authority may register cars")
	}
	now := requestcontext.Now(ctx)
	if err := models.ValidateRegistration(params.CarID, params.Vin, params.Brand, params.Model, params.Year, params.EngineNumber, now); err != nil {
		s.metrics.IncRejected()
		return models.Car{}, err
	}
	if params.Owner.IsZero() {
		s.metrics.IncRejected()
		return models.Car{}, ledgererrors.New(ledgererrors.CodeInvalidInput, "owner authority is required")
	}
	if params.InspectionStatus == "" {
		params.InspectionStatus = domain.InspectionPending
	} else if _, err := domain.ParseInspectionStatus(string(params.InspectionStatus)); err != nil {
		s.metrics.IncRejected()
		return models.Car{}, ledgererrors.Wrap(ledgererrors.CodeInvalidInput, "invalid inspection status", err)
	}

	addr, bump, err := models.CarAddress(s.government, params.Vin)
	if err != nil {
		return models.Car{}, err
	}
	car := models.Car{
		Address:                   addr,
		CarID:                     params.CarID,
		Vin:                       params.Vin,
		Brand:                     params.Brand,
		Model:                     params.Model,
		Year:                      params.Year,
		Color:                     params.Color,
		EngineNumber:              params.EngineNumber,
		Owner:                     params.Owner,
		RegisteredBy:              signer,
		RegistrationDate:          now,
		IsActive:                  true,
		InspectionStatus:          params.InspectionStatus,
		LastInspectionDate:        params.LastInspectionDate,
		LatestInspectionReportURI: params.LatestInspectionReportURI,
		Mileage:                   params.Mileage,
		Bump:                      bump,
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.CreateCar(ctx, car)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncRejected()
			return models.Car{}, ledgererrors.Wrap(ledgererrors.CodeAddressAlreadyInUse,
				"vin already registered under this government", err)
		}
		return models.Car{}, err
	}

	s.metrics.IncRegistered()
	s.auditor.Emit(ctx, audit.Event{
		Actor:   signer,
		Action:  audit.ActionCarRegistered,
		Subject: addr.String(),
		Detail:  params.Vin,
	})
	s.logger.Info("car registered", "vin", params.Vin, "address", addr.String(), "owner", params.Owner.String())
	return car, nil
}

// SetForSale lists a car at the given price. Only the current owner may sign.
func (s *Service) SetForSale(ctx context.Context, signer domain.Authority, vin string, price uint64) (models.Car, error) {
	if price == 0 || price > models.MaxSalePrice {
		s.metrics.IncRejected()
		return models.Car{}, ledgererrors.New(ledgererrors.CodeInvalidPrice,
			fmt.Sprintf("sale price must be between 1 and %d", models.MaxSalePrice))
	}
	car, err := s.mutateOwnedCar(ctx, signer, vin, func(car *models.Car) error {
		car.IsForSale = true
		car.SalePrice = &price
		return nil
	})
	if err != nil {
		return models.Car{}, err
	}

	s.metrics.IncListing("listed")
	s.invalidateForSale(ctx)
	s.auditor.Emit(ctx, audit.Event{
		Actor:   signer,
		Action:  audit.ActionCarListed,
		Subject: car.Address.String(),
		Detail:  vin,
	})
	s.logger.Info("car listed for sale", "vin", vin, "price", price)
	return car, nil
}

// CancelForSale delists a car, clearing the price with the flag so the
// isForSale ⇔ salePrice invariant holds.
func (s *Service) CancelForSale(ctx context.Context, signer domain.Authority, vin string) (models.Car, error) {
	car, err := s.mutateOwnedCar(ctx, signer, vin, func(car *models.Car) error {
		car.IsForSale = false
		car.SalePrice = nil
		return nil
	})
	if err != nil {
		return models.Car{}, err
	}

	s.metrics.IncListing("unlisted")
	s.invalidateForSale(ctx)
	s.auditor.Emit(ctx, audit.Event{
		Actor:   signer,
		Action:  audit.ActionCarUnlisted,
		Subject: car.Address.String(),
		Detail:  vin,
	})
	s.logger.Info("car delisted", "vin", vin)
	return car, nil
}

// mutateOwnedCar re-derives the car address from the vin, loads the record,
// enforces current ownership, applies mutate, and writes back in one unit.
func (s *Service) mutateOwnedCar(ctx context.Context, signer domain.Authority, vin string, mutate func(car *models.Car) error) (models.Car, error) {
	addr, _, err := models.CarAddress(s.government, vin)
	if err != nil {
		return models.Car{}, err
	}
	var car models.Car
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		car, err = s.store.GetCar(ctx, addr)
		if err != nil {
			return err
		}
		if !car.OwnedBy(signer) {
			return ledgererrors.New(ledgererrors.CodeUnauthorized, "only the current owner may change sale state")
		}
		if err := mutate(&car); err != nil {
			return err
		}
		return s.store.UpdateCar(ctx, car)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Car{}, ledgererrors.Wrap(ledgererrors.CodeNotFound, "car not found", err)
		}
		if ledgererrors.HasCode(err, ledgererrors.CodeUnauthorized) {
			s.metrics.IncRejected()
		}
		return models.Car{}, err
	}
	return car, nil
}

func (s *Service) invalidateForSale(ctx context.Context) {
	if err := s.forSale.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate for-sale cache", "error", err)
	}
}

// Get returns the car record at a derived address.
func (s *Service) Get(ctx context.Context, addr address.Address) (models.Car, error) {
	car, err := s.store.GetCar(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Car{}, ledgererrors.Wrap(ledgererrors.CodeNotFound, "car not found", err)
		}
		return models.Car{}, err
	}
	return car, nil
}

// GetByVin resolves (government, vin) and returns the record there.
func (s *Service) GetByVin(ctx context.Context, vin string) (models.Car, error) {
	addr, _, err := models.CarAddress(s.government, vin)
	if err != nil {
		return models.Car{}, err
	}
	return s.Get(ctx, addr)
}

// CarFilter narrows a full scan. Nil fields match everything.
type CarFilter struct {
	Owner   *domain.Authority
	ForSale *bool
}

// List scans all car records, applying the filter.
func (s *Service) List(ctx context.Context, filter CarFilter) ([]models.Car, error) {
	cars, err := s.store.ListCars(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]models.Car, 0, len(cars))
	for _, car := range cars {
		if filter.Owner != nil && car.Owner != *filter.Owner {
			continue
		}
		if filter.ForSale != nil && car.IsForSale != *filter.ForSale {
			continue
		}
		matched = append(matched, car)
	}
	return matched, nil
}

// ListForSale returns the marketplace listing, served from the Redis cache
// when warm.
func (s *Service) ListForSale(ctx context.Context) ([]models.Car, error) {
	if cars, ok := s.forSale.Get(ctx); ok {
		return cars, nil
	}
	forSale := true
	cars, err := s.List(ctx, CarFilter{ForSale: &forSale})
	if err != nil {
		return nil, err
	}
	if err := s.forSale.Set(ctx, cars); err != nil {
		s.logger.Warn("populate for-sale cache", "error", err)
	}
	return cars, nil
}
