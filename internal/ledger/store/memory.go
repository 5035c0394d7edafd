// Package store provides the in-memory ledger. One struct backs every typed
// store interface so a transition touching several records commits or fails
// as a unit, mirroring the all-or-nothing execution of the target platform.
package store

import (
	"context"
	"fmt"
	"sync"

	certmodels "carledger/internal/certification/models"
	identitymodels "carledger/internal/identity/models"
	"carledger/internal/ledger/address"
	marketmodels "carledger/internal/marketplace/models"
	registrymodels "carledger/internal/registry/models"
	"carledger/pkg/platform/sentinel"
)

type state struct {
	users             map[address.Address]identitymodels.User
	cars              map[address.Address]registrymodels.Car
	buyRequests       map[address.Address]marketmodels.BuyRequest
	inspectionReports map[address.Address]certmodels.InspectionReport
	conformityReports map[address.Address]certmodels.ConformityReport
}

func newState() state {
	return state{
		users:             map[address.Address]identitymodels.User{},
		cars:              map[address.Address]registrymodels.Car{},
		buyRequests:       map[address.Address]marketmodels.BuyRequest{},
		inspectionReports: map[address.Address]certmodels.InspectionReport{},
		conformityReports: map[address.Address]certmodels.ConformityReport{},
	}
}

// Records are stored by value and replaced whole on update, so a shallow map
// copy is a complete snapshot.
func (s state) clone() state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.cars {
		c.cars[k] = v
	}
	for k, v := range s.buyRequests {
		c.buyRequests[k] = v
	}
	for k, v := range s.inspectionReports {
		c.inspectionReports[k] = v
	}
	for k, v := range s.conformityReports {
		c.conformityReports[k] = v
	}
	return c
}

type stagedKey struct{}

func withStaged(ctx context.Context, staged *state) context.Context {
	return context.WithValue(ctx, stagedKey{}, staged)
}

func stagedFrom(ctx context.Context) (*state, bool) {
	staged, ok := ctx.Value(stagedKey{}).(*state)
	return staged, ok
}

// MemoryLedger keeps every record type in memory. It favors clarity over
// performance: reads scan linearly, exactly like the platform's
// scan-and-filter query model.
type MemoryLedger struct {
	mu    sync.RWMutex
	state state
}

// NewMemoryLedger constructs an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{state: newState()}
}

// RunInTx stages a full snapshot, runs fn against it, and swaps the snapshot
// in only on success. Transitions against the same ledger serialize here,
// which is what makes precondition checks (status, ownership) race-free.
func (l *MemoryLedger) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := stagedFrom(ctx); ok {
		return fn(ctx)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	staged := l.state.clone()
	if err := fn(withStaged(ctx, &staged)); err != nil {
		return err
	}
	l.state = staged
	return nil
}

// write hands fn the mutable state, honoring a staged transaction when one is
// in flight.
func (l *MemoryLedger) write(ctx context.Context, fn func(s *state) error) error {
	if staged, ok := stagedFrom(ctx); ok {
		return fn(staged)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(&l.state)
}

func (l *MemoryLedger) read(ctx context.Context, fn func(s *state) error) error {
	if staged, ok := stagedFrom(ctx); ok {
		return fn(staged)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(&l.state)
}

// --- identity ---

func (l *MemoryLedger) CreateUser(ctx context.Context, user identitymodels.User) error {
	return l.write(ctx, func(s *state) error {
		if _, exists := s.users[user.Address]; exists {
			return fmt.Errorf("user address %s: %w", user.Address, sentinel.ErrConflict)
		}
		s.users[user.Address] = user
		return nil
	})
}

func (l *MemoryLedger) GetUser(ctx context.Context, addr address.Address) (identitymodels.User, error) {
	var user identitymodels.User
	err := l.read(ctx, func(s *state) error {
		found, ok := s.users[addr]
		if !ok {
			return fmt.Errorf("user address %s: %w", addr, sentinel.ErrNotFound)
		}
		user = found
		return nil
	})
	return user, err
}

func (l *MemoryLedger) UpdateUser(ctx context.Context, user identitymodels.User) error {
	return l.write(ctx, func(s *state) error {
		if _, ok := s.users[user.Address]; !ok {
			return fmt.Errorf("user address %s: %w", user.Address, sentinel.ErrNotFound)
		}
		s.users[user.Address] = user
		return nil
	})
}

func (l *MemoryLedger) ListUsers(ctx context.Context) ([]identitymodels.User, error) {
	var users []identitymodels.User
	err := l.read(ctx, func(s *state) error {
		for _, user := range s.users {
			users = append(users, user)
		}
		return nil
	})
	return users, err
}

// --- registry ---

func (l *MemoryLedger) CreateCar(ctx context.Context, car registrymodels.Car) error {
	return l.write(ctx, func(s *state) error {
		if _, exists := s.cars[car.Address]; exists {
			return fmt.Errorf("car address %s: %w", car.Address, sentinel.ErrConflict)
		}
		s.cars[car.Address] = car
		return nil
	})
}

func (l *MemoryLedger) GetCar(ctx context.Context, addr address.Address) (registrymodels.Car, error) {
	var car registrymodels.Car
	err := l.read(ctx, func(s *state) error {
		found, ok := s.cars[addr]
		if !ok {
			return fmt.Errorf("car address %s: %w", addr, sentinel.ErrNotFound)
		}
		car = found
		return nil
	})
	return car, err
}

func (l *MemoryLedger) UpdateCar(ctx context.Context, car registrymodels.Car) error {
	return l.write(ctx, func(s *state) error {
		if _, ok := s.cars[car.Address]; !ok {
			return fmt.Errorf("car address %s: %w", car.Address, sentinel.ErrNotFound)
		}
		s.cars[car.Address] = car
		return nil
	})
}

func (l *MemoryLedger) ListCars(ctx context.Context) ([]registrymodels.Car, error) {
	var cars []registrymodels.Car
	err := l.read(ctx, func(s *state) error {
		for _, car := range s.cars {
			cars = append(cars, car)
		}
		return nil
	})
	return cars, err
}

// --- marketplace ---

func (l *MemoryLedger) CreateBuyRequest(ctx context.Context, request marketmodels.BuyRequest) error {
	return l.write(ctx, func(s *state) error {
		if _, exists := s.buyRequests[request.Address]; exists {
			return fmt.Errorf("buy request address %s: %w", request.Address, sentinel.ErrConflict)
		}
		s.buyRequests[request.Address] = request
		return nil
	})
}

func (l *MemoryLedger) GetBuyRequest(ctx context.Context, addr address.Address) (marketmodels.BuyRequest, error) {
	var request marketmodels.BuyRequest
	err := l.read(ctx, func(s *state) error {
		found, ok := s.buyRequests[addr]
		if !ok {
			return fmt.Errorf("buy request address %s: %w", addr, sentinel.ErrNotFound)
		}
		request = found
		return nil
	})
	return request, err
}

func (l *MemoryLedger) UpdateBuyRequest(ctx context.Context, request marketmodels.BuyRequest) error {
	return l.write(ctx, func(s *state) error {
		if _, ok := s.buyRequests[request.Address]; !ok {
			return fmt.Errorf("buy request address %s: %w", request.Address, sentinel.ErrNotFound)
		}
		s.buyRequests[request.Address] = request
		return nil
	})
}

func (l *MemoryLedger) ListBuyRequests(ctx context.Context) ([]marketmodels.BuyRequest, error) {
	var requests []marketmodels.BuyRequest
	err := l.read(ctx, func(s *state) error {
		for _, request := range s.buyRequests {
			requests = append(requests, request)
		}
		return nil
	})
	return requests, err
}

// --- certification ---

func (l *MemoryLedger) CreateInspectionReport(ctx context.Context, report certmodels.InspectionReport) error {
	return l.write(ctx, func(s *state) error {
		if _, exists := s.inspectionReports[report.Address]; exists {
			return fmt.Errorf("inspection report address %s: %w", report.Address, sentinel.ErrConflict)
		}
		s.inspectionReports[report.Address] = report
		return nil
	})
}

func (l *MemoryLedger) GetInspectionReport(ctx context.Context, addr address.Address) (certmodels.InspectionReport, error) {
	var report certmodels.InspectionReport
	err := l.read(ctx, func(s *state) error {
		found, ok := s.inspectionReports[addr]
		if !ok {
			return fmt.Errorf("inspection report address %s: %w", addr, sentinel.ErrNotFound)
		}
		report = found
		return nil
	})
	return report, err
}

func (l *MemoryLedger) UpdateInspectionReport(ctx context.Context, report certmodels.InspectionReport) error {
	return l.write(ctx, func(s *state) error {
		if _, ok := s.inspectionReports[report.Address]; !ok {
			return fmt.Errorf("inspection report address %s: %w", report.Address, sentinel.ErrNotFound)
		}
		s.inspectionReports[report.Address] = report
		return nil
	})
}

func (l *MemoryLedger) ListInspectionReports(ctx context.Context) ([]certmodels.InspectionReport, error) {
	var reports []certmodels.InspectionReport
	err := l.read(ctx, func(s *state) error {
		for _, report := range s.inspectionReports {
			reports = append(reports, report)
		}
		return nil
	})
	return reports, err
}

func (l *MemoryLedger) CreateConformityReport(ctx context.Context, report certmodels.ConformityReport) error {
	return l.write(ctx, func(s *state) error {
		if _, exists := s.conformityReports[report.Address]; exists {
			return fmt.Errorf("conformity report address %s: %w", report.Address, sentinel.ErrConflict)
		}
		s.conformityReports[report.Address] = report
		return nil
	})
}

func (l *MemoryLedger) GetConformityReport(ctx context.Context, addr address.Address) (certmodels.ConformityReport, error) {
	var report certmodels.ConformityReport
	err := l.read(ctx, func(s *state) error {
		found, ok := s.conformityReports[addr]
		if !ok {
			return fmt.Errorf("conformity report address %s: %w", addr, sentinel.ErrNotFound)
		}
		report = found
		return nil
	})
	return report, err
}

func (l *MemoryLedger) UpdateConformityReport(ctx context.Context, report certmodels.ConformityReport) error {
	return l.write(ctx, func(s *state) error {
		if _, ok := s.conformityReports[report.Address]; !ok {
			return fmt.Errorf("conformity report address %s: %w", report.Address, sentinel.ErrNotFound)
		}
		s.conformityReports[report.Address] = report
		return nil
	})
}

func (l *MemoryLedger) ListConformityReports(ctx context.Context) ([]certmodels.ConformityReport, error) {
	var reports []certmodels.ConformityReport
	err := l.read(ctx, func(s *state) error {
		for _, report := range s.conformityReports {
			reports = append(reports, report)
		}
		return nil
	})
	return reports, err
}
