//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"carledger/internal/registry/cache"
	"carledger/internal/registry/models"
	"carledger/pkg/domain"
	"carledger/pkg/testutil/containers"
)

type ForSaleCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.ForSaleCache
}

func TestForSaleCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ForSaleCacheSuite))
}

func (s *ForSaleCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = cache.New(s.redis.Client, time.Minute)
}

func (s *ForSaleCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *ForSaleCacheSuite) sampleListing() []models.Car {
	government := domain.MustAuthority("00000000000000000000000000000000000000000000000000000000000000ff")
	addr, bump, err := models.CarAddress(government, "1HGBH41JXMN109186")
	s.Require().NoError(err)
	price := uint64(100)
	return []models.Car{{
		Address:          addr,
		CarID:            "CAR001",
		Vin:              "1HGBH41JXMN109186",
		Brand:            "Toyota",
		Model:            "Camry",
		Year:             2023,
		Owner:            government,
		RegisteredBy:     government,
		RegistrationDate: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		IsActive:         true,
		InspectionStatus: domain.InspectionPending,
		IsForSale:        true,
		SalePrice:        &price,
		Bump:             bump,
	}}
}

func (s *ForSaleCacheSuite) TestSetGetRoundTrip() {
	ctx := context.Background()

	_, ok := s.cache.Get(ctx)
	s.False(ok, "cold cache must miss")

	listing := s.sampleListing()
	s.Require().NoError(s.cache.Set(ctx, listing))

	got, ok := s.cache.Get(ctx)
	s.Require().True(ok)
	s.Require().Len(got, 1)
	s.Equal(listing[0].Vin, got[0].Vin)
	s.Require().NotNil(got[0].SalePrice)
	s.Equal(*listing[0].SalePrice, *got[0].SalePrice)
}

func (s *ForSaleCacheSuite) TestInvalidateDropsListing() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, s.sampleListing()))

	s.Require().NoError(s.cache.Invalidate(ctx))

	_, ok := s.cache.Get(ctx)
	s.False(ok)
}

func (s *ForSaleCacheSuite) TestEmptyListingIsAHit() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, []models.Car{}))

	got, ok := s.cache.Get(ctx)
	s.True(ok, "an empty listing is still a cached value")
	s.Empty(got)
}
