package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"carledger/internal/audit"
	"carledger/internal/ledger/store"
	"carledger/internal/registry/models"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
	"carledger/pkg/testutil"
)

var (
	government = domain.MustAuthority("00000000000000000000000000000000000000000000000000000000000000ff")
	owner      = domain.MustAuthority("0000000000000000000000000000000000000000000000000000000000000001")
	stranger   = domain.MustAuthority("0000000000000000000000000000000000000000000000000000000000000002")
)

const testVin = "1HGBH41JXMN109186"

type nopAuditor struct{}

func (nopAuditor) Emit(context.Context, audit.Event) {}

type RegistryServiceSuite struct {
	suite.Suite
	ledger  *store.MemoryLedger
	service *Service
	now     time.Time
	ctx     context.Context
}

func TestRegistryServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistryServiceSuite))
}

func (s *RegistryServiceSuite) SetupTest() {
	s.reset()
}

// reset rebuilds the ledger from scratch. Subtests that register or mutate
// cars call it so each scenario starts empty.
func (s *RegistryServiceSuite) reset() {
	s.ledger = store.NewMemoryLedger()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(s.ledger, s.ledger, government, nil, nopAuditor{}, nil, logger)
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = testutil.FrozenContext(s.now)
}

func (s *RegistryServiceSuite) registerCar() models.Car {
	car, err := s.service.RegisterCar(s.ctx, government, RegisterCarParams{
		CarID:        "CAR001",
		Vin:          testVin,
		Brand:        "Toyota",
		Model:        "Camry",
		Year:         2023,
		Color:        "Silver",
		EngineNumber: "EN-4G63-001",
		Owner:        owner,
	})
	s.Require().NoError(err)
	return car
}

func (s *RegistryServiceSuite) TestRegisterCar() {
	s.Run("mints an active title with a zero transfer count", func() {
		car := s.registerCar()

		expected, _, err := models.CarAddress(government, testVin)
		s.Require().NoError(err)
		s.Equal(expected, car.Address)
		s.True(car.IsActive)
		s.Equal(uint32(0), car.TransferCount)
		s.False(car.IsForSale)
		s.Nil(car.SalePrice)
		s.Equal(owner, car.Owner)
		s.Equal(government, car.RegisteredBy)
		s.Equal(s.now, car.RegistrationDate)
		s.Equal(domain.InspectionPending, car.InspectionStatus)
	})

	s.Run("only the government may register", func() {
		_, err := s.service.RegisterCar(s.ctx, owner, RegisterCarParams{
			CarID:        "CAR002",
			Vin:          "2HGBH41JXMN109186",
			Brand:        "Honda",
			Model:        "Civic",
			Year:         2022,
			EngineNumber: "EN-2",
			Owner:        owner,
		})
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeUnauthorized))
	})

	s.Run("duplicate vin collides on the derived address", func() {
		s.reset()
		s.registerCar()
		_, err := s.service.RegisterCar(s.ctx, government, RegisterCarParams{
			CarID:        "CAR999",
			Vin:          testVin,
			Brand:        "Toyota",
			Model:        "Camry",
			Year:         2024,
			EngineNumber: "EN-other",
			Owner:        stranger,
		})
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeAddressAlreadyInUse))
	})

	s.Run("rejects a malformed vin", func() {
		for _, vin := range []string{"", "SHORT", "1HGBH41JXMN109186X"} {
			_, err := s.service.RegisterCar(s.ctx, government, RegisterCarParams{
				CarID:        "CAR003",
				Vin:          vin,
				Brand:        "Toyota",
				Model:        "Camry",
				Year:         2023,
				EngineNumber: "EN-3",
				Owner:        owner,
			})
			s.Require().Error(err, "vin %q must be rejected", vin)
			s.True(ledgererrors.HasCode(err, ledgererrors.CodeInvalidVin), "vin %q", vin)
		}
	})

	s.Run("rejects an implausible year", func() {
		_, err := s.service.RegisterCar(s.ctx, government, RegisterCarParams{
			CarID:        "CAR004",
			Vin:          "3HGBH41JXMN109186",
			Brand:        "Benz",
			Model:        "Patent-Motorwagen",
			Year:         1800,
			EngineNumber: "EN-4",
			Owner:        owner,
		})
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeInvalidInput))
	})
}

func (s *RegistryServiceSuite) TestSetForSale() {
	s.Run("owner lists the car and the price sticks", func() {
		s.registerCar()
		price := uint64(5_000_000_000)

		car, err := s.service.SetForSale(s.ctx, owner, testVin, price)
		s.Require().NoError(err)
		s.True(car.IsForSale)
		s.Require().NotNil(car.SalePrice)
		s.Equal(price, *car.SalePrice)

		got, err := s.service.GetByVin(s.ctx, testVin)
		s.Require().NoError(err)
		s.True(got.IsForSale)
	})

	s.Run("zero price is invalid", func() {
		s.reset()
		s.registerCar()
		_, err := s.service.SetForSale(s.ctx, owner, testVin, 0)
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeInvalidPrice))
	})

	s.Run("price beyond the storable bound is invalid", func() {
		s.reset()
		s.registerCar()
		_, err := s.service.SetForSale(s.ctx, owner, testVin, models.MaxSalePrice+1)
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeInvalidPrice))

		got, err := s.service.GetByVin(s.ctx, testVin)
		s.Require().NoError(err)
		s.False(got.IsForSale)
	})

	s.Run("the bound itself is accepted", func() {
		s.reset()
		s.registerCar()
		car, err := s.service.SetForSale(s.ctx, owner, testVin, models.MaxSalePrice)
		s.Require().NoError(err)
		s.Require().NotNil(car.SalePrice)
		s.Equal(models.MaxSalePrice, *car.SalePrice)
	})

	s.Run("non-owner may not list", func() {
		s.reset()
		s.registerCar()
		_, err := s.service.SetForSale(s.ctx, stranger, testVin, 100)
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeUnauthorized))

		got, err := s.service.GetByVin(s.ctx, testVin)
		s.Require().NoError(err)
		s.False(got.IsForSale)
	})

	s.Run("unknown vin is not found", func() {
		_, err := s.service.SetForSale(s.ctx, owner, "9HGBH41JXMN109186", 100)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeNotFound))
	})
}

func (s *RegistryServiceSuite) TestCancelForSale() {
	s.Run("clears both the flag and the price", func() {
		s.registerCar()
		_, err := s.service.SetForSale(s.ctx, owner, testVin, 100)
		s.Require().NoError(err)

		car, err := s.service.CancelForSale(s.ctx, owner, testVin)
		s.Require().NoError(err)
		s.False(car.IsForSale)
		s.Nil(car.SalePrice)
	})

	s.Run("non-owner may not delist", func() {
		s.reset()
		s.registerCar()
		_, err := s.service.SetForSale(s.ctx, owner, testVin, 100)
		s.Require().NoError(err)

		_, err = s.service.CancelForSale(s.ctx, stranger, testVin)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeUnauthorized))
	})
}

func (s *RegistryServiceSuite) TestListing() {
	otherVin := "5YJSA1DG9DFP14705"
	s.registerCar()
	_, err := s.service.RegisterCar(s.ctx, government, RegisterCarParams{
		CarID:        "CAR002",
		Vin:          otherVin,
		Brand:        "Tesla",
		Model:        "Model S",
		Year:         2021,
		EngineNumber: "EN-EV-1",
		Owner:        stranger,
	})
	s.Require().NoError(err)
	_, err = s.service.SetForSale(s.ctx, owner, testVin, 250)
	s.Require().NoError(err)

	s.Run("filters by owner", func() {
		cars, err := s.service.List(s.ctx, CarFilter{Owner: &stranger})
		s.Require().NoError(err)
		s.Require().Len(cars, 1)
		s.Equal(otherVin, cars[0].Vin)
	})

	s.Run("for-sale listing holds only listed cars", func() {
		cars, err := s.service.ListForSale(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(cars, 1)
		s.Equal(testVin, cars[0].Vin)
	})

	s.Run("delisting empties the listing", func() {
		_, err := s.service.CancelForSale(s.ctx, owner, testVin)
		s.Require().NoError(err)

		cars, err := s.service.ListForSale(s.ctx)
		s.Require().NoError(err)
		s.Empty(cars)
	})
}
