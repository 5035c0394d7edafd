package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"carledger/internal/audit"
	identitymodels "carledger/internal/identity/models"
	"carledger/internal/ledger/address"
	"carledger/internal/marketplace/metrics"
	"carledger/internal/marketplace/models"
	registrycache "carledger/internal/registry/cache"
	registrymodels "carledger/internal/registry/models"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
	"carledger/pkg/platform/sentinel"
	"carledger/pkg/platform/tx"
	"carledger/pkg/requestcontext"
)

// Store is the slice of the ledger the marketplace touches. Ownership
// transfers mutate the car record, so cars are read-write here.
type Store interface {
	GetUser(ctx context.Context, addr address.Address) (identitymodels.User, error)
	GetCar(ctx context.Context, addr address.Address) (registrymodels.Car, error)
	UpdateCar(ctx context.Context, car registrymodels.Car) error

	CreateBuyRequest(ctx context.Context, request models.BuyRequest) error
	GetBuyRequest(ctx context.Context, addr address.Address) (models.BuyRequest, error)
	UpdateBuyRequest(ctx context.Context, request models.BuyRequest) error
	ListBuyRequests(ctx context.Context) ([]models.BuyRequest, error)
}

// Auditor records applied transitions.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service owns the buy-request lifecycle and ownership transfer. Accepting a
// buy request and the car-side effects of the sale commit as one unit.
type Service struct {
	store      Store
	runner     tx.Runner
	government domain.Authority
	forSale    *registrycache.ForSaleCache
	auditor    Auditor
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

func New(store Store, runner tx.Runner, government domain.Authority, forSale *registrycache.ForSaleCache, auditor Auditor, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		runner:     runner,
		government: government,
		forSale:    forSale,
		auditor:    auditor,
		metrics:    m,
		tracer:     otel.Tracer("carledger/marketplace"),
		logger:     logger,
	}
}

// RequestBuyParams mirrors the requestToBuy transition arguments. The offer
// amount is not a parameter: it is snapshotted from the car's sale price.
type RequestBuyParams struct {
	Vin           string
	BuyerUserName string
	Message       string
}

// RequestBuy opens a buy request against a for-sale car. The buyer must hold
// a Verified user record and cannot be the current owner. The request amount
// snapshots the listed price, so a later price change does not move an offer
// already made.
func (s *Service) RequestBuy(ctx context.Context, signer domain.Authority, params RequestBuyParams) (models.BuyRequest, error) {
	ctx, span := s.tracer.Start(ctx, "marketplace.RequestBuy",
		trace.WithAttributes(attribute.String("vin", params.Vin)))
	defer span.End()

	if err := models.ValidateMessage(params.Message); err != nil {
		s.metrics.IncRejected()
		return models.BuyRequest{}, err
	}

	var request models.BuyRequest
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		car, err := s.loadCar(ctx, params.Vin)
		if err != nil {
			return err
		}
		if !car.IsForSale || car.SalePrice == nil {
			return ledgererrors.New(ledgererrors.CodeCarNotForSale, "car is not listed for sale")
		}
		if car.OwnedBy(signer) {
			return ledgererrors.New(ledgererrors.CodeInvalidInput, "owner cannot buy their own car")
		}
		if err := s.requireVerifiedUser(ctx, signer, params.BuyerUserName); err != nil {
			return err
		}
		addr, bump, err := models.BuyRequestAddress(params.Vin, signer)
		if err != nil {
			return err
		}
		request = models.BuyRequest{
			Address:   addr,
			Vin:       params.Vin,
			Buyer:     signer,
			Seller:    car.Owner,
			Amount:    *car.SalePrice,
			Message:   params.Message,
			Status:    domain.BuyRequestPending,
			CreatedAt: requestcontext.Now(ctx),
			Bump:      bump,
		}
		return s.store.CreateBuyRequest(ctx, request)
	})
	if err != nil {
		return models.BuyRequest{}, s.translateErr(err, "buy request already open for this buyer and car")
	}

	s.metrics.IncRequested()
	s.auditor.Emit(ctx, audit.Event{
		Actor:   signer,
		Action:  audit.ActionBuyRequested,
		Subject: request.Address.String(),
		Detail:  params.Vin,
	})
	s.logger.Info("buy request created", "vin", params.Vin, "buyer", signer.String(), "amount", request.Amount)
	return request, nil
}

// AcceptBuyParams mirrors the acceptBuyRequest transition arguments. The
// user names locate the seller's and buyer's own user records for the
// Verified checks.
type AcceptBuyParams struct {
	Vin            string
	Buyer          domain.Authority
	SellerUserName string
	BuyerUserName  string
}

// AcceptBuyRequest accepts a pending request and performs the sale. The car
// must still be listed, the request must have been opened against the signing
// owner, and both parties must hold Verified user records. The car moves to
// the buyer, the transfer counter advances, and the listing is cleared, all
// in the same transaction that marks the request Accepted.
func (s *Service) AcceptBuyRequest(ctx context.Context, signer domain.Authority, params AcceptBuyParams) (models.BuyRequest, error) {
	ctx, span := s.tracer.Start(ctx, "marketplace.AcceptBuyRequest",
		trace.WithAttributes(attribute.String("vin", params.Vin)))
	defer span.End()

	var request models.BuyRequest
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		car, err := s.requireCurrentOwner(ctx, signer, params.Vin)
		if err != nil {
			return err
		}
		if !car.IsForSale {
			return ledgererrors.New(ledgererrors.CodeCarNotForSale, "car is no longer listed for sale")
		}
		request, err = s.loadPendingRequest(ctx, params.Vin, params.Buyer)
		if err != nil {
			return err
		}
		if request.Seller != signer {
			return ledgererrors.New(ledgererrors.CodeUnauthorized,
				"buy request was opened against a previous owner")
		}
		if err := s.requireVerifiedUser(ctx, signer, params.SellerUserName); err != nil {
			return err
		}
		if err := s.requireVerifiedUser(ctx, params.Buyer, params.BuyerUserName); err != nil {
			return err
		}
		request.Status = domain.BuyRequestAccepted
		if err := s.store.UpdateBuyRequest(ctx, request); err != nil {
			return err
		}
		car.Owner = params.Buyer
		car.TransferCount++
		car.IsForSale = false
		car.SalePrice = nil
		return s.store.UpdateCar(ctx, car)
	})
	if err != nil {
		return models.BuyRequest{}, s.translateErr(err, "")
	}

	s.metrics.IncDecided("accepted")
	s.metrics.IncTransferred()
	s.invalidateForSale(ctx)
	s.auditor.Emit(ctx, audit.Event{
		Actor:   signer,
		Action:  audit.ActionBuyAccepted,
		Subject: request.Address.String(),
		Detail:  params.Vin,
	})
	s.auditor.Emit(ctx, audit.Event{
		Actor:   signer,
		Action:  audit.ActionCarTransferred,
		Subject: request.Address.String(),
		Detail:  fmt.Sprintf("%s -> %s", params.Vin, params.Buyer),
	})
	s.logger.Info("buy request accepted", "vin", params.Vin, "buyer", params.Buyer.String(), "amount", request.Amount)
	return request, nil
}

// RejectBuyRequest finalizes a pending request as Rejected. The car record
// is untouched.
func (s *Service) RejectBuyRequest(ctx context.Context, signer domain.Authority, vin string, buyer domain.Authority) (models.BuyRequest, error) {
	ctx, span := s.tracer.Start(ctx, "marketplace.RejectBuyRequest",
		trace.WithAttributes(attribute.String("vin", vin)))
	defer span.End()

	var request models.BuyRequest
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.requireCurrentOwner(ctx, signer, vin); err != nil {
			return err
		}
		var err error
		request, err = s.loadPendingRequest(ctx, vin, buyer)
		if err != nil {
			return err
		}
		request.Status = domain.BuyRequestRejected
		return s.store.UpdateBuyRequest(ctx, request)
	})
	if err != nil {
		return models.BuyRequest{}, s.translateErr(err, "")
	}

	s.metrics.IncDecided("rejected")
	s.auditor.Emit(ctx, audit.Event{
		Actor:   signer,
		Action:  audit.ActionBuyRejected,
		Subject: request.Address.String(),
		Detail:  vin,
	})
	s.logger.Info("buy request rejected", "vin", vin, "buyer", buyer.String())
	return request, nil
}

// TransferCarParams mirrors the transferCar transition arguments. Both the
// current owner and the new owner must sign; NewOwnerUserName locates the
// new owner's user record for the Verified check.
type TransferCarParams struct {
	Vin              string
	NewOwner         domain.Authority
	NewOwnerUserName string
}

// TransferCar moves ownership directly, outside the buy-request flow. The
// new owner must hold a Verified user record. The car leaves the transfer
// delisted regardless of its prior sale state.
func (s *Service) TransferCar(ctx context.Context, currentOwner domain.Authority, params TransferCarParams) (registrymodels.Car, error) {
	ctx, span := s.tracer.Start(ctx, "marketplace.TransferCar",
		trace.WithAttributes(attribute.String("vin", params.Vin)))
	defer span.End()

	var car registrymodels.Car
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		car, err = s.requireCurrentOwner(ctx, currentOwner, params.Vin)
		if err != nil {
			return err
		}
		if params.NewOwner == currentOwner {
			return ledgererrors.New(ledgererrors.CodeInvalidInput, "new owner must differ from current owner")
		}
		if err := s.requireVerifiedUser(ctx, params.NewOwner, params.NewOwnerUserName); err != nil {
			return err
		}
		car.Owner = params.NewOwner
		car.TransferCount++
		car.IsForSale = false
		car.SalePrice = nil
		return s.store.UpdateCar(ctx, car)
	})
	if err != nil {
		return registrymodels.Car{}, s.translateErr(err, "")
	}

	s.metrics.IncTransferred()
	s.invalidateForSale(ctx)
	s.auditor.Emit(ctx, audit.Event{
		Actor:   currentOwner,
		Action:  audit.ActionCarTransferred,
		Subject: car.Address.String(),
		Detail:  fmt.Sprintf("%s -> %s", params.Vin, params.NewOwner),
	})
	s.logger.Info("car transferred", "vin", params.Vin, "new_owner", params.NewOwner.String())
	return car, nil
}

// Get returns the buy request at a derived address.
func (s *Service) Get(ctx context.Context, addr address.Address) (models.BuyRequest, error) {
	request, err := s.store.GetBuyRequest(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.BuyRequest{}, ledgererrors.Wrap(ledgererrors.CodeNotFound, "buy request not found", err)
		}
		return models.BuyRequest{}, err
	}
	return request, nil
}

// GetByKey resolves (vin, buyer) and returns the record there.
func (s *Service) GetByKey(ctx context.Context, vin string, buyer domain.Authority) (models.BuyRequest, error) {
	addr, _, err := models.BuyRequestAddress(vin, buyer)
	if err != nil {
		return models.BuyRequest{}, err
	}
	return s.Get(ctx, addr)
}

// Filter narrows a full scan of buy requests. Nil fields match everything.
type Filter struct {
	Vin    *string
	Buyer  *domain.Authority
	Seller *domain.Authority
	Status *domain.BuyRequestStatus
}

// List scans all buy requests, applying the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]models.BuyRequest, error) {
	requests, err := s.store.ListBuyRequests(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]models.BuyRequest, 0, len(requests))
	for _, request := range requests {
		if filter.Vin != nil && request.Vin != *filter.Vin {
			continue
		}
		if filter.Buyer != nil && request.Buyer != *filter.Buyer {
			continue
		}
		if filter.Seller != nil && request.Seller != *filter.Seller {
			continue
		}
		if filter.Status != nil && request.Status != *filter.Status {
			continue
		}
		matched = append(matched, request)
	}
	return matched, nil
}

func (s *Service) loadCar(ctx context.Context, vin string) (registrymodels.Car, error) {
	addr, _, err := registrymodels.CarAddress(s.government, vin)
	if err != nil {
		return registrymodels.Car{}, err
	}
	return s.store.GetCar(ctx, addr)
}

func (s *Service) requireCurrentOwner(ctx context.Context, signer domain.Authority, vin string) (registrymodels.Car, error) {
	car, err := s.loadCar(ctx, vin)
	if err != nil {
		return registrymodels.Car{}, err
	}
	if !car.OwnedBy(signer) {
		return registrymodels.Car{}, ledgererrors.New(ledgererrors.CodeUnauthorized,
			"only the current owner may decide on this car")
	}
	return car, nil
}

// requireVerifiedUser checks that (authority, userName) resolves to a user
// record with Verified status. Role does not matter here; any verified
// participant may buy or receive a car.
func (s *Service) requireVerifiedUser(ctx context.Context, authority domain.Authority, userName string) error {
	addr, _, err := identitymodels.UserAddress(authority, userName)
	if err != nil {
		return err
	}
	user, err := s.store.GetUser(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ledgererrors.Wrap(ledgererrors.CodeUnauthorized, "no user record at derived address", err)
		}
		return err
	}
	if !user.IsVerified() {
		return ledgererrors.New(ledgererrors.CodeUnauthorized, "user identity is not verified")
	}
	return nil
}

// loadPendingRequest re-derives the request address and requires Pending
// status, so a second decision on the same request fails cleanly.
func (s *Service) loadPendingRequest(ctx context.Context, vin string, buyer domain.Authority) (models.BuyRequest, error) {
	addr, _, err := models.BuyRequestAddress(vin, buyer)
	if err != nil {
		return models.BuyRequest{}, err
	}
	request, err := s.store.GetBuyRequest(ctx, addr)
	if err != nil {
		return models.BuyRequest{}, err
	}
	if !request.IsPending() {
		return models.BuyRequest{}, ledgererrors.New(ledgererrors.CodeAlreadyFinalized,
			fmt.Sprintf("buy request already %s", request.Status))
	}
	return request, nil
}

func (s *Service) invalidateForSale(ctx context.Context) {
	if err := s.forSale.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate for-sale cache", "error", err)
	}
}

func (s *Service) translateErr(err error, conflictMsg string) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		s.metrics.IncRejected()
		if conflictMsg == "" {
			conflictMsg = "record already exists at derived address"
		}
		return ledgererrors.Wrap(ledgererrors.CodeAddressAlreadyInUse, conflictMsg, err)
	case errors.Is(err, sentinel.ErrNotFound):
		return ledgererrors.Wrap(ledgererrors.CodeNotFound, "referenced record not found", err)
	case ledgererrors.HasCode(err, ledgererrors.CodeUnauthorized),
		ledgererrors.HasCode(err, ledgererrors.CodeAlreadyFinalized),
		ledgererrors.HasCode(err, ledgererrors.CodeCarNotForSale):
		s.metrics.IncRejected()
		return err
	default:
		return err
	}
}
