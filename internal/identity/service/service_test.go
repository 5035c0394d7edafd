package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"carledger/internal/audit"
	"carledger/internal/identity/models"
	"carledger/internal/ledger/store"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
	"carledger/pkg/testutil"
)

var (
	government = domain.MustAuthority("00000000000000000000000000000000000000000000000000000000000000ff")
	alice      = domain.MustAuthority("0000000000000000000000000000000000000000000000000000000000000001")
	bob        = domain.MustAuthority("0000000000000000000000000000000000000000000000000000000000000002")
)

// auditRecorder collects emitted events for assertions.
type auditRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *auditRecorder) Emit(_ context.Context, event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *auditRecorder) actions() []audit.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]audit.Action, 0, len(r.events))
	for _, event := range r.events {
		actions = append(actions, event.Action)
	}
	return actions
}

type IdentityServiceSuite struct {
	suite.Suite
	ledger  *store.MemoryLedger
	auditor *auditRecorder
	service *Service
	now     time.Time
	ctx     context.Context
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) SetupTest() {
	s.ledger = store.NewMemoryLedger()
	s.auditor = &auditRecorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(s.ledger, s.ledger, government, s.auditor, nil, logger)
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = testutil.FrozenContext(s.now)
}

func (s *IdentityServiceSuite) register(signer domain.Authority, name string, role domain.Role) models.User {
	user, err := s.service.RegisterUser(s.ctx, signer, RegisterUserParams{
		UserName: name,
		Role:     role,
	})
	s.Require().NoError(err)
	return user
}

func (s *IdentityServiceSuite) TestRegisterUser() {
	s.Run("creates a pending record at the derived address", func() {
		user := s.register(alice, "alice", domain.RoleRegularUser)

		expected, _, err := models.UserAddress(alice, "alice")
		s.Require().NoError(err)
		s.Equal(expected, user.Address)
		s.Equal(domain.VerificationPending, user.VerificationStatus)
		s.Nil(user.VerifiedAt)
		s.Nil(user.VerifiedBy)
		s.Equal(s.now, user.CreatedAt)
		s.Equal([]audit.Action{audit.ActionUserRegistered}, s.auditor.actions())
	})

	s.Run("same authority and name collides", func() {
		s.register(alice, "dup", domain.RoleRegularUser)
		_, err := s.service.RegisterUser(s.ctx, alice, RegisterUserParams{
			UserName: "dup",
			Role:     domain.RoleInspector,
		})
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeAddressAlreadyInUse))
	})

	s.Run("same name under another authority is a distinct record", func() {
		s.register(alice, "shared", domain.RoleRegularUser)
		user := s.register(bob, "shared", domain.RoleRegularUser)
		s.Equal(bob, user.Authority)
	})

	s.Run("rejects an empty name", func() {
		_, err := s.service.RegisterUser(s.ctx, alice, RegisterUserParams{
			UserName: "   ",
			Role:     domain.RoleRegularUser,
		})
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeInvalidInput))
	})

	s.Run("rejects an unknown role", func() {
		_, err := s.service.RegisterUser(s.ctx, alice, RegisterUserParams{
			UserName: "carol",
			Role:     domain.Role("astronaut"),
		})
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeInvalidInput))
	})
}

func (s *IdentityServiceSuite) TestVerifyUser() {
	s.Run("non-government signer is refused and the record is untouched", func() {
		s.register(alice, "alice", domain.RoleRegularUser)

		_, err := s.service.VerifyUser(s.ctx, bob, alice, "alice", true)
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeUnauthorized))

		user, err := s.service.GetByKey(s.ctx, alice, "alice")
		s.Require().NoError(err)
		s.Equal(domain.VerificationPending, user.VerificationStatus)
	})

	s.Run("approval records verifier and timestamp", func() {
		s.register(alice, "approve-me", domain.RoleInspector)

		user, err := s.service.VerifyUser(s.ctx, government, alice, "approve-me", true)
		s.Require().NoError(err)
		s.Equal(domain.VerificationVerified, user.VerificationStatus)
		s.Require().NotNil(user.VerifiedAt)
		s.Equal(s.now, *user.VerifiedAt)
		s.Require().NotNil(user.VerifiedBy)
		s.Equal(government, *user.VerifiedBy)
	})

	s.Run("rejection also records verifier and timestamp", func() {
		s.register(alice, "reject-me", domain.RoleRegularUser)

		user, err := s.service.VerifyUser(s.ctx, government, alice, "reject-me", false)
		s.Require().NoError(err)
		s.Equal(domain.VerificationRejected, user.VerificationStatus)
		s.Require().NotNil(user.VerifiedAt)
		s.Equal(s.now, *user.VerifiedAt)
		s.Require().NotNil(user.VerifiedBy)
		s.Equal(government, *user.VerifiedBy)
	})

	s.Run("second decision is refused", func() {
		s.register(alice, "decided", domain.RoleRegularUser)
		_, err := s.service.VerifyUser(s.ctx, government, alice, "decided", true)
		s.Require().NoError(err)

		_, err = s.service.VerifyUser(s.ctx, government, alice, "decided", false)
		s.Require().Error(err)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeAlreadyFinalized))

		user, err := s.service.GetByKey(s.ctx, alice, "decided")
		s.Require().NoError(err)
		s.Equal(domain.VerificationVerified, user.VerificationStatus)
	})

	s.Run("unknown user is not found", func() {
		_, err := s.service.VerifyUser(s.ctx, government, alice, "ghost", true)
		s.True(ledgererrors.HasCode(err, ledgererrors.CodeNotFound))
	})
}

func (s *IdentityServiceSuite) TestList() {
	s.register(alice, "alice", domain.RoleInspector)
	s.register(bob, "bob", domain.RoleRegularUser)
	_, err := s.service.VerifyUser(s.ctx, government, alice, "alice", true)
	s.Require().NoError(err)

	s.Run("no filter returns everything", func() {
		users, err := s.service.List(s.ctx, UserFilter{})
		s.Require().NoError(err)
		s.Len(users, 2)
	})

	s.Run("filters by role", func() {
		role := domain.RoleInspector
		users, err := s.service.List(s.ctx, UserFilter{Role: &role})
		s.Require().NoError(err)
		s.Require().Len(users, 1)
		s.Equal("alice", users[0].UserName)
	})

	s.Run("filters by status and authority together", func() {
		status := domain.VerificationVerified
		users, err := s.service.List(s.ctx, UserFilter{Status: &status, Authority: &alice})
		s.Require().NoError(err)
		s.Require().Len(users, 1)
		s.Equal("alice", users[0].UserName)
	})

	s.Run("filter with no matches is empty", func() {
		status := domain.VerificationRejected
		users, err := s.service.List(s.ctx, UserFilter{Status: &status})
		s.Require().NoError(err)
		s.Empty(users)
	})
}
