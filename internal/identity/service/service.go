package service

import (
	"context"
	"errors"
	"log/slog"

	"carledger/internal/audit"
	"carledger/internal/identity/metrics"
	"carledger/internal/identity/models"
	"carledger/internal/ledger/address"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
	"carledger/pkg/platform/sentinel"
	"carledger/pkg/platform/tx"
	"carledger/pkg/requestcontext"
)

// Store is the slice of the ledger the identity subsystem touches.
type Store interface {
	CreateUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, addr address.Address) (models.User, error)
	UpdateUser(ctx context.Context, user models.User) error
	ListUsers(ctx context.Context) ([]models.User, error)
}

// Auditor records applied transitions.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service owns user registration and the government verification decision.
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

// RegisterUserParams mirrors the registerUser transition arguments. The
// encrypted key blobs are opaque ciphertext; the ledger stores them without
// interpretation.
type RegisterUserParams struct {
	UserName            string
	PublicDataURI       string
	PrivateDataURI      string
	EncryptedKeyForGov  string
	EncryptedKeyForUser string
	Role                domain.Role
}

// RegisterUser creates a user record signed by its own authority. The record
// starts Pending; a self-declared role grants nothing until verified.
func (s *Service) RegisterUser(ctx context.Context, signer domain.Authority, params RegisterUserParams) (models.User, error) {
	if err := models.ValidateUserName(params.UserName); err != nil {
		s.metrics.IncRejected()
		return models.User{}, err
	}
	if _, err := domain.ParseRole(string(params.Role)); err != nil {
		s.metrics.IncRejected()
		return models.User{}, ledgererrors.Wrap(ledgererrors.CodeInvalidInput, "invalid role", err)
	}

	addr, bump, err := models.UserAddress(signer, params.UserName)
	if err != nil {
		return models.User{}, err
	}
	now := requestcontext.Now(ctx)
	user := models.User{
		Address:             addr,
		Authority:           signer,
		UserName:            params.UserName,
		PublicDataURI:       params.PublicDataURI,
		PrivateDataURI:      params.PrivateDataURI,
		EncryptedKeyForGov:  params.EncryptedKeyForGov,
		EncryptedKeyForUser: params.EncryptedKeyForUser,
		Role:                params.Role,
		VerificationStatus:  domain.VerificationPending,
		CreatedAt:           now,
		UpdatedAt:           now,
		Bump:                bump,
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.CreateUser(ctx, user)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncRejected()
			return models.User{}, ledgererrors.Wrap(ledgererrors.CodeAddressAlreadyInUse,
				"user already registered for this authority and name", err)
		}
		return models.User{}, err
	}

	s.metrics.IncRegistered()
	s.auditor.Emit(ctx, audit.Event{
		Actor:   signer,
		Action:  audit.ActionUserRegistered,
		Subject: addr.String(),
		Detail:  params.UserName,
	})
	s.logger.Info("user registered", "user_name", params.UserName, "address", addr.String(), "role", params.Role)
	return user, nil
}

// VerifyUser applies the government decision on a pending user. Only the
// designated government authority may sign it, and the Pending state can be
// left exactly once.
func (s *Service) VerifyUser(ctx context.Context, signer domain.Authority, userAuthority domain.Authority, userName string, approve bool) (models.User, error) {
	if signer != s.government {
		s.metrics.IncRejected()
		return models.User{}, ledgererrors.New(ledgererrors.CodeUnauthorized,
			"only the government authority may verify users")
	}
	if err := models.ValidateUserName(userName); err != nil {
		s.metrics.IncRejected()
		return models.User{}, err
	}
	addr, _, err := models.UserAddress(userAuthority, userName)
	if err != nil {
		return models.User{}, err
	}

	var user models.User
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		user, err = s.store.GetUser(ctx, addr)
		if err != nil {
			return err
		}
		if user.VerificationStatus != domain.VerificationPending {
			return ledgererrors.New(ledgererrors.CodeAlreadyFinalized,
				"verification decision already recorded")
		}
		now := requestcontext.Now(ctx)
		if approve {
			user.VerificationStatus = domain.VerificationVerified
		} else {
			user.VerificationStatus = domain.VerificationRejected
		}
		// Both outcomes record who decided and when.
		user.VerifiedAt = &now
		verifier := signer
		user.VerifiedBy = &verifier
		user.UpdatedAt = now
		return s.store.UpdateUser(ctx, user)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.User{}, ledgererrors.Wrap(ledgererrors.CodeNotFound, "user not found", err)
		}
		if ledgererrors.HasCode(err, ledgererrors.CodeAlreadyFinalized) {
			s.metrics.IncRejected()
		}
		return models.User{}, err
	}

	action := audit.ActionUserVerified
	outcome := "verified"
	if !approve {
		action = audit.ActionUserRejected
		outcome = "rejected"
	}
	s.metrics.IncDecision(outcome)
	s.auditor.Emit(ctx, audit.Event{
		Actor:   signer,
		Action:  action,
		Subject: addr.String(),
		Detail:  userName,
	})
	s.logger.Info("user verification decided", "user_name", userName, "outcome", outcome)
	return user, nil
}

// Get returns the user record at a derived address.
func (s *Service) Get(ctx context.Context, addr address.Address) (models.User, error) {
	user, err := s.store.GetUser(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.User{}, ledgererrors.Wrap(ledgererrors.CodeNotFound, "user not found", err)
		}
		return models.User{}, err
	}
	return user, nil
}

// GetByKey resolves (authority, userName) and returns the record there.
func (s *Service) GetByKey(ctx context.Context, authority domain.Authority, userName string) (models.User, error) {
	addr, _, err := models.UserAddress(authority, userName)
	if err != nil {
		return models.User{}, err
	}
	return s.Get(ctx, addr)
}

// UserFilter narrows a full scan. Nil fields match everything; this is the
// scan-and-filter read contract, there is no index.
type UserFilter struct {
	Role      *domain.Role
	Status    *domain.VerificationStatus
	Authority *domain.Authority
}

// List scans all user records, applying the filter.
func (s *Service) List(ctx context.Context, filter UserFilter) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]models.User, 0, len(users))
	for _, user := range users {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		if filter.Status != nil && user.VerificationStatus != *filter.Status {
			continue
		}
		if filter.Authority != nil && user.Authority != *filter.Authority {
			continue
		}
		matched = append(matched, user)
	}
	return matched, nil
}
