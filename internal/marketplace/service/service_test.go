package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"carledger/internal/audit"
	identitymodels "carledger/internal/identity/models"
	"carledger/internal/ledger/store"
	"carledger/internal/marketplace/models"
	registrymodels "carledger/internal/registry/models"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
	"carledger/pkg/testutil"
)

var (
	government = domain.MustAuthority("00000000000000000000000000000000000000000000000000000000000000ff")
	seller     = domain.MustAuthority("0000000000000000000000000000000000000000000000000000000000000001")
	buyer      = domain.MustAuthority("0000000000000000000000000000000000000000000000000000000000000002")
	outsider   = domain.MustAuthority("0000000000000000000000000000000000000000000000000000000000000003")
)

const (
	testVin   = "1HGBH41JXMN109186"
	listPrice = uint64(5_000_000_000)
)

type nopAuditor struct{}

func (nopAuditor) Emit(context.Context, audit.Event) {}

type MarketplaceServiceSuite struct {
	suite.Suite
	ledger  *store.MemoryLedger
	service *Service
	now     time.Time
	ctx     context.Context
}

func TestMarketplaceServiceSuite(t *testing.T) {
	suite.Run(t, new(MarketplaceServiceSuite))
}

func (s *MarketplaceServiceSuite) SetupTest() {
	s.reset()
}

// reset rebuilds the ledger from scratch. Subtests that mutate seeded state
// call it so each scenario starts from the same snapshot.
func (s *MarketplaceServiceSuite) reset() {
	s.ledger = store.NewMemoryLedger()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(s.ledger, s.ledger, government, nil, nopAuditor{}, nil, logger)
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = testutil.FrozenContext(s.now)

	s.seedUser(seller, "seller-sam", domain.VerificationVerified)
	s.seedUser(buyer, "buyer-bella", domain.VerificationVerified)
	s.seedCar(testVin, seller, true, listPrice)
}

func (s *MarketplaceServiceSuite) seedUser(authority domain.Authority, name string, status domain.VerificationStatus) {
	addr, bump, err := identitymodels.UserAddress(authority, name)
	s.Require().NoError(err)
	s.Require().NoError(s.ledger.CreateUser(s.ctx, identitymodels.User{
		Address:            addr,
		Authority:          authority,
		UserName:           name,
		Role:               domain.RoleRegularUser,
		VerificationStatus: status,
		CreatedAt:          s.now,
		UpdatedAt:          s.now,
		Bump:               bump,
	}))
}

func (s *MarketplaceServiceSuite) seedCar(vin string, owner domain.Authority, forSale bool, price uint64) registrymodels.Car {
	addr, bump, err := registrymodels.CarAddress(government, vin)
	s.Require().NoError(err)
	car := registrymodels.Car{
		Address:          addr,
		CarID:            "CAR001",
		Vin:              vin,
		Brand:            "Toyota",
		Model:            "Camry",
		Year:             2023,
		EngineNumber:     "EN-1",
		Owner:            owner,
		RegisteredBy:     government,
		RegistrationDate: s.now,
		IsActive:         true,
		InspectionStatus: domain.InspectionPending,
		IsForSale:        forSale,
	}
	if forSale {
		car.SalePrice = &price
	}
	car.Bump = bump
	s.Require().NoError(s.ledger.CreateCar(s.ctx, car))
	return car
}

func (s *MarketplaceServiceSuite) getCar(vin string) registrymodels.Car {
	addr, _, err := registrymodels.CarAddress(government, vin)
	s.Require().NoError(err)
	car, err := s.ledger.GetCar(s.ctx, addr)
	s.Require().NoError(err)
	return car
}

func (s *MarketplaceServiceSuite) requestBuy() models.BuyRequest {
	request, err := s.service.RequestBuy(s.ctx, buyer, RequestBuyParams{
		Vin:           testVin,
		BuyerUserName: "buyer-bella",
		Message:       "still available?",
	})
	s.Require().NoError(err)
	return request
}

func (s *MarketplaceServiceSuite) TestRequestBuy() {
	s.Run("snapshots the listed price into the request", func() {
		request := s.requestBuy()

		expected, _, err := models.BuyRequestAddress(testVin, buyer)
		s.Require().NoError(err)
		s.Equal(expected, request.Address)
		s.Equal(listPrice, request.Amount)
		s.Equal(seller, request.Seller)
		s.Equal(domain.BuyRequestPending, request.Status)
		s.Equal(s.now, request.CreatedAt)
	})

	s.Run("car not for sale is refused", func() {
		s.reset()
		s.seedCar("5YJSA1DG9DFP14705", seller, false, 0)

		_, err := s.service.RequestBuy(s.ctx, buyer, RequestBuyParams{
			Vin:           "5YJSA1DG9DFP14705",
			BuyerUserName: "buyer-bella",
		})
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeCarNotForSale))
	})

	s.Run("owner cannot buy their own car", func() {
		_, err := s.service.RequestBuy(s.ctx, seller, RequestBuyParams{
			Vin:           testVin,
			BuyerUserName: "seller-sam",
		})
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeInvalidInput))
	})

	s.Run("unverified buyer is refused", func() {
		s.reset()
		s.seedUser(outsider, "newcomer-ned", domain.VerificationPending)

		_, err := s.service.RequestBuy(s.ctx, outsider, RequestBuyParams{
			Vin:           testVin,
			BuyerUserName: "newcomer-ned",
		})
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeUnauthorized))
	})

	s.Run("second request from the same buyer collides", func() {
		s.reset()
		s.requestBuy()
		_, err := s.service.RequestBuy(s.ctx, buyer, RequestBuyParams{
			Vin:           testVin,
			BuyerUserName: "buyer-bella",
		})
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeAddressAlreadyInUse))
	})

	s.Run("message over the limit is refused", func() {
		long := make([]byte, models.MaxMessageLen+1)
		for i := range long {
			long[i] = 'a'
		}
		_, err := s.service.RequestBuy(s.ctx, buyer, RequestBuyParams{
			Vin:           testVin,
			BuyerUserName: "buyer-bella",
			Message:       string(long),
		})
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeInvalidInput))
	})
}

func (s *MarketplaceServiceSuite) acceptParams() AcceptBuyParams {
	return AcceptBuyParams{
		Vin:            testVin,
		Buyer:          buyer,
		SellerUserName: "seller-sam",
		BuyerUserName:  "buyer-bella",
	}
}

func (s *MarketplaceServiceSuite) TestAcceptBuyRequest() {
	s.Run("sale moves title, advances the counter, and delists", func() {
		s.requestBuy()

		request, err := s.service.AcceptBuyRequest(s.ctx, seller, s.acceptParams())
		s.Require().NoError(err)
		s.Equal(domain.BuyRequestAccepted, request.Status)

		car := s.getCar(testVin)
		s.Equal(buyer, car.Owner)
		s.Equal(uint32(1), car.TransferCount)
		s.False(car.IsForSale)
		s.Nil(car.SalePrice)
	})

	s.Run("only the current owner may accept", func() {
		s.reset()
		s.requestBuy()

		_, err := s.service.AcceptBuyRequest(s.ctx, outsider, s.acceptParams())
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeUnauthorized))
	})

	s.Run("delisted car cannot be sold", func() {
		s.reset()
		s.requestBuy()

		car := s.getCar(testVin)
		car.IsForSale = false
		car.SalePrice = nil
		s.Require().NoError(s.ledger.UpdateCar(s.ctx, car))

		_, err := s.service.AcceptBuyRequest(s.ctx, seller, s.acceptParams())
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeCarNotForSale))

		request, err := s.service.GetByKey(s.ctx, testVin, buyer)
		s.Require().NoError(err)
		s.Equal(domain.BuyRequestPending, request.Status)
	})

	s.Run("request against a previous owner cannot be accepted", func() {
		s.reset()
		s.requestBuy()

		car := s.getCar(testVin)
		car.Owner = outsider
		s.Require().NoError(s.ledger.UpdateCar(s.ctx, car))
		s.seedUser(outsider, "outsider-olga", domain.VerificationVerified)

		params := s.acceptParams()
		params.SellerUserName = "outsider-olga"
		_, err := s.service.AcceptBuyRequest(s.ctx, outsider, params)
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeUnauthorized))
	})

	s.Run("seller without a user record may not accept", func() {
		s.reset()
		s.requestBuy()

		params := s.acceptParams()
		params.SellerUserName = "nobody"
		_, err := s.service.AcceptBuyRequest(s.ctx, seller, params)
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeUnauthorized))

		car := s.getCar(testVin)
		s.Equal(seller, car.Owner)
	})

	s.Run("buyer rejected after requesting may not receive the car", func() {
		s.reset()
		s.requestBuy()

		addr, _, err := identitymodels.UserAddress(buyer, "buyer-bella")
		s.Require().NoError(err)
		user, err := s.ledger.GetUser(s.ctx, addr)
		s.Require().NoError(err)
		user.VerificationStatus = domain.VerificationRejected
		s.Require().NoError(s.ledger.UpdateUser(s.ctx, user))

		_, err = s.service.AcceptBuyRequest(s.ctx, seller, s.acceptParams())
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeUnauthorized))

		car := s.getCar(testVin)
		s.Equal(seller, car.Owner)
		s.True(car.IsForSale)
	})

	s.Run("a sold car cannot be sold again", func() {
		s.reset()
		s.requestBuy()
		_, err := s.service.AcceptBuyRequest(s.ctx, seller, s.acceptParams())
		s.Require().NoError(err)

		_, err = s.service.AcceptBuyRequest(s.ctx, buyer, s.acceptParams())
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeCarNotForSale))
	})

	s.Run("unknown request is not found", func() {
		s.reset()
		params := s.acceptParams()
		params.Buyer = outsider
		_, err := s.service.AcceptBuyRequest(s.ctx, seller, params)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeNotFound))
	})
}

func (s *MarketplaceServiceSuite) TestRejectBuyRequest() {
	s.Run("rejection finalizes the request and leaves the car untouched", func() {
		s.requestBuy()

		request, err := s.service.RejectBuyRequest(s.ctx, seller, testVin, buyer)
		s.Require().NoError(err)
		s.Equal(domain.BuyRequestRejected, request.Status)

		car := s.getCar(testVin)
		s.Equal(seller, car.Owner)
		s.Equal(uint32(0), car.TransferCount)
		s.True(car.IsForSale)
	})

	s.Run("rejected request cannot be accepted later", func() {
		s.reset()
		s.requestBuy()
		_, err := s.service.RejectBuyRequest(s.ctx, seller, testVin, buyer)
		s.Require().NoError(err)

		_, err = s.service.AcceptBuyRequest(s.ctx, seller, s.acceptParams())
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeAlreadyFinalized))
	})
}

func (s *MarketplaceServiceSuite) TestTransferCar() {
	s.Run("direct transfer moves title and delists", func() {
		car, err := s.service.TransferCar(s.ctx, seller, TransferCarParams{
			Vin:              testVin,
			NewOwner:         buyer,
			NewOwnerUserName: "buyer-bella",
		})
		s.Require().NoError(err)
		s.Equal(buyer, car.Owner)
		s.Equal(uint32(1), car.TransferCount)
		s.False(car.IsForSale)
		s.Nil(car.SalePrice)
	})

	s.Run("new owner must be verified", func() {
		s.reset()
		s.seedUser(outsider, "newcomer-ned", domain.VerificationPending)

		_, err := s.service.TransferCar(s.ctx, seller, TransferCarParams{
			Vin:              testVin,
			NewOwner:         outsider,
			NewOwnerUserName: "newcomer-ned",
		})
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeUnauthorized))
	})

	s.Run("new owner must differ from current owner", func() {
		s.reset()
		_, err := s.service.TransferCar(s.ctx, seller, TransferCarParams{
			Vin:              testVin,
			NewOwner:         seller,
			NewOwnerUserName: "seller-sam",
		})
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeInvalidInput))
	})

	s.Run("non-owner may not transfer", func() {
		s.reset()
		_, err := s.service.TransferCar(s.ctx, outsider, TransferCarParams{
			Vin:              testVin,
			NewOwner:         buyer,
			NewOwnerUserName: "buyer-bella",
		})
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeUnauthorized))
	})
}

func (s *MarketplaceServiceSuite) TestList() {
	s.requestBuy()
	otherVin := "5YJSA1DG9DFP14705"
	s.seedCar(otherVin, buyer, true, 777)
	s.seedUser(outsider, "outsider-olga", domain.VerificationVerified)
	_, err := s.service.RequestBuy(s.ctx, outsider, RequestBuyParams{
		Vin:           otherVin,
		BuyerUserName: "outsider-olga",
	})
	s.Require().NoError(err)

	s.Run("filters by vin", func() {
		vin := testVin
		requests, err := s.service.List(s.ctx, Filter{Vin: &vin})
		s.Require().NoError(err)
		s.Require().Len(requests, 1)
		s.Equal(buyer, requests[0].Buyer)
	})

	s.Run("filters by seller and status", func() {
		status := domain.BuyRequestPending
		requests, err := s.service.List(s.ctx, Filter{Seller: &seller, Status: &status})
		s.Require().NoError(err)
		s.Require().Len(requests, 1)
		s.Equal(testVin, requests[0].Vin)
	})

	s.Run("lookup by key round-trips", func() {
		request, err := s.service.GetByKey(s.ctx, testVin, buyer)
		s.Require().NoError(err)
		s.Equal(listPrice, request.Amount)
	})
}
