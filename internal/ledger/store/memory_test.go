package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identitymodels "carledger/internal/identity/models"
	registrymodels "carledger/internal/registry/models"
	"carledger/pkg/domain"
	"carledger/pkg/platform/sentinel"
)

func testUser(t *testing.T, name string) identitymodels.User {
	t.Helper()
	authority := domain.MustAuthority("0101010101010101010101010101010101010101010101010101010101010101")
	addr, bump, err := identitymodels.UserAddress(authority, name)
	require.NoError(t, err)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return identitymodels.User{
		Address:            addr,
		Authority:          authority,
		UserName:           name,
		Role:               domain.RoleRegularUser,
		VerificationStatus: domain.VerificationPending,
		CreatedAt:          now,
		UpdatedAt:          now,
		Bump:               bump,
	}
}

func testCar(t *testing.T, vin string) registrymodels.Car {
	t.Helper()
	government := domain.MustAuthority("0202020202020202020202020202020202020202020202020202020202020202")
	addr, bump, err := registrymodels.CarAddress(government, vin)
	require.NoError(t, err)
	return registrymodels.Car{
		Address:          addr,
		CarID:            "CAR001",
		Vin:              vin,
		Brand:            "Toyota",
		Model:            "Camry",
		Year:             2023,
		EngineNumber:     "EN-123",
		Owner:            government,
		RegisteredBy:     government,
		RegistrationDate: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		IsActive:         true,
		InspectionStatus: domain.InspectionPending,
		Bump:             bump,
	}
}

func TestMemoryLedgerCreateConflict(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()
	user := testUser(t, "alice")

	require.NoError(t, ledger.CreateUser(ctx, user))
	err := ledger.CreateUser(ctx, user)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrConflict))
}

func TestMemoryLedgerGetNotFound(t *testing.T) {
	ledger := NewMemoryLedger()
	user := testUser(t, "alice")

	_, err := ledger.GetUser(context.Background(), user.Address)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestMemoryLedgerUpdateRequiresExisting(t *testing.T) {
	ledger := NewMemoryLedger()
	car := testCar(t, "1HGBH41JXMN109186")

	err := ledger.UpdateCar(context.Background(), car)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestMemoryLedgerTxRollsBackAllWrites(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()
	user := testUser(t, "alice")
	car := testCar(t, "1HGBH41JXMN109186")
	boom := errors.New("boom")

	err := ledger.RunInTx(ctx, func(ctx context.Context) error {
		require.NoError(t, ledger.CreateUser(ctx, user))
		require.NoError(t, ledger.CreateCar(ctx, car))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = ledger.GetUser(ctx, user.Address)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound), "user write must not survive rollback")
	_, err = ledger.GetCar(ctx, car.Address)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound), "car write must not survive rollback")
}

func TestMemoryLedgerTxCommitsAllWrites(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()
	user := testUser(t, "alice")
	car := testCar(t, "1HGBH41JXMN109186")

	err := ledger.RunInTx(ctx, func(ctx context.Context) error {
		if err := ledger.CreateUser(ctx, user); err != nil {
			return err
		}
		return ledger.CreateCar(ctx, car)
	})
	require.NoError(t, err)

	got, err := ledger.GetUser(ctx, user.Address)
	require.NoError(t, err)
	assert.Equal(t, user, got)
	_, err = ledger.GetCar(ctx, car.Address)
	require.NoError(t, err)
}

func TestMemoryLedgerTxReadsOwnWrites(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()
	user := testUser(t, "alice")

	err := ledger.RunInTx(ctx, func(ctx context.Context) error {
		if err := ledger.CreateUser(ctx, user); err != nil {
			return err
		}
		staged, err := ledger.GetUser(ctx, user.Address)
		if err != nil {
			return err
		}
		staged.VerificationStatus = domain.VerificationVerified
		return ledger.UpdateUser(ctx, staged)
	})
	require.NoError(t, err)

	got, err := ledger.GetUser(ctx, user.Address)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationVerified, got.VerificationStatus)
}

func TestMemoryLedgerNestedTxJoins(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()
	user := testUser(t, "alice")

	err := ledger.RunInTx(ctx, func(ctx context.Context) error {
		return ledger.RunInTx(ctx, func(ctx context.Context) error {
			return ledger.CreateUser(ctx, user)
		})
	})
	require.NoError(t, err)

	_, err = ledger.GetUser(ctx, user.Address)
	assert.NoError(t, err)
}
