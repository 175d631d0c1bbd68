package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/domain/settings"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/types"
)

// InMemorySettingsStore implements settings.Repository keyed by freelancer, with the
// unique freelancer_id constraint and per-freelancer row locks.
type InMemorySettingsStore struct {
	mu    sync.RWMutex
	items map[string]*settings.FreelancerSetting
	locks *rowLocks

	// FailUpdateSequence, when set, is returned by UpdateSequence
	FailUpdateSequence error

	lockFailures int
}

var _ settings.Repository = (*InMemorySettingsStore)(nil)

func NewInMemorySettingsStore() *InMemorySettingsStore {
	return &InMemorySettingsStore{
		items: make(map[string]*settings.FreelancerSetting),
		locks: newRowLocks(DefaultLockTimeout),
	}
}

func copySetting(s *settings.FreelancerSetting) *settings.FreelancerSetting {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func settingNotFound(freelancerID string) error {
	return ierr.NewError("settings not found").
		WithHint("Freelancer settings were not found").
		WithReportableDetails(map[string]any{
			"freelancer_id": freelancerID,
		}).
		Mark(ierr.ErrNotFound)
}

func (s *InMemorySettingsStore) Create(ctx context.Context, setting *settings.FreelancerSetting) error {
	freelancerID := types.GetFreelancerID(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[freelancerID]; exists {
		return ierr.NewError("settings already exist").
			WithHint("Settings for this freelancer already exist").
			Mark(ierr.ErrAlreadyExists)
	}
	if err := s.checkPrefixLocked(freelancerID, setting.InvoicePrefix); err != nil {
		return err
	}

	stored := copySetting(setting)
	stored.FreelancerID = freelancerID
	s.items[freelancerID] = stored
	recordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.items, freelancerID)
	})
	return nil
}

func (s *InMemorySettingsStore) Get(ctx context.Context) (*settings.FreelancerSetting, error) {
	freelancerID := types.GetFreelancerID(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	setting, ok := s.items[freelancerID]
	if !ok {
		return nil, settingNotFound(freelancerID)
	}
	return copySetting(setting), nil
}

// GetForUpdate blocks while another transaction holds the freelancer's row
func (s *InMemorySettingsStore) GetForUpdate(ctx context.Context) (*settings.FreelancerSetting, error) {
	freelancerID := types.GetFreelancerID(ctx)
	if txFromContext(ctx) == nil {
		return nil, ierr.NewError("settings lock requires a transaction").
			WithHint("Locking reads must run inside a transaction").
			Mark(ierr.ErrInvalidOperation)
	}

	// a missing row takes no lock, as in postgres
	if _, err := s.Get(ctx); err != nil {
		return nil, err
	}
	if s.takeLockFailure() {
		return nil, ierr.NewError("lock not available").
			WithHint("The record is being modified by another request, please retry").
			Mark(ierr.ErrConcurrencyConflict)
	}
	if err := s.locks.acquire(ctx, freelancerID); err != nil {
		return nil, err
	}
	return s.Get(ctx)
}

func (s *InMemorySettingsStore) Update(ctx context.Context, setting *settings.FreelancerSetting) error {
	return s.update(ctx, func(stored *settings.FreelancerSetting) error {
		if err := s.checkPrefixLocked(stored.FreelancerID, setting.InvoicePrefix); err != nil {
			return err
		}
		stored.InvoicePrefix = setting.InvoicePrefix
		stored.BaseCurrency = setting.BaseCurrency
		stored.DefaultTaxRate = setting.DefaultTaxRate
		stored.InvoiceDueDays = setting.InvoiceDueDays
		stored.UpdatedAt = setting.UpdatedAt
		return nil
	})
}

func (s *InMemorySettingsStore) UpdateSequence(ctx context.Context, setting *settings.FreelancerSetting) error {
	if s.FailUpdateSequence != nil {
		return s.FailUpdateSequence
	}
	return s.update(ctx, func(stored *settings.FreelancerSetting) error {
		stored.NextInvoiceNumber = setting.NextInvoiceNumber
		stored.InvoiceYear = setting.InvoiceYear
		stored.UpdatedAt = setting.UpdatedAt
		return nil
	})
}

func (s *InMemorySettingsStore) update(ctx context.Context, apply func(*settings.FreelancerSetting) error) error {
	freelancerID := types.GetFreelancerID(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.items[freelancerID]
	if !ok {
		return settingNotFound(freelancerID)
	}

	previous := copySetting(stored)
	updated := copySetting(stored)
	if err := apply(updated); err != nil {
		return err
	}
	s.items[freelancerID] = updated
	recordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.items[freelancerID] = previous
	})
	return nil
}

// checkPrefixLocked enforces the unique invoice_prefix constraint. s.mu must be held.
func (s *InMemorySettingsStore) checkPrefixLocked(freelancerID, prefix string) error {
	for owner, other := range s.items {
		if owner != freelancerID && other.InvoicePrefix == prefix {
			return ierr.NewError("invoice prefix already exists").
				WithHintf("Invoice prefix %s is already in use", prefix).
				WithReportableDetails(map[string]any{
					"invoice_prefix": prefix,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
	}
	return nil
}

// FailNextLocks makes the next n locking reads fail with a concurrency conflict
func (s *InMemorySettingsStore) FailNextLocks(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockFailures = n
}

func (s *InMemorySettingsStore) takeLockFailure() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockFailures == 0 {
		return false
	}
	s.lockFailures--
	return true
}

// SetLockTimeout changes how long GetForUpdate waits for a held row
func (s *InMemorySettingsStore) SetLockTimeout(d time.Duration) {
	s.locks.mu.Lock()
	defer s.locks.mu.Unlock()
	s.locks.timeout = d
}

// Put stores a setting directly, bypassing the repository contract
func (s *InMemorySettingsStore) Put(setting *settings.FreelancerSetting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[setting.FreelancerID] = copySetting(setting)
}

func (s *InMemorySettingsStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*settings.FreelancerSetting)
}
